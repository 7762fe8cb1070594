package tasks

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/moodring/backend/internal/models"
)

const defaultExportWorkers = 4

// TagSource lists a user's tags and the tracks carrying each of them.
type TagSource interface {
	List(ctx context.Context, userID int64) ([]models.Tag, error)
}

// TrackSource lists the tracks carrying one tag.
type TrackSource interface {
	ListTracksForTag(ctx context.Context, userID, tagID int64) ([]string, error)
}

type exportJob struct {
	index int
	tag   models.Tag
}

type exportResult struct {
	index  int
	tracks []string
	err    error
}

// ExportTags collects every tag of user with its tracks.
//
// Track lists are fetched by a small worker pool; tag order is preserved.
// The first failure cancels the remaining lookups.
func ExportTags(ctx context.Context, user *models.User, tags TagSource, tracks TrackSource, workers int) (*models.TagExport, error) {
	list, err := tags.List(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list tags: %w", err)
	}

	export := &models.TagExport{
		UserID:     user.ID,
		ExternalID: user.ExternalID,
		ExportedAt: time.Now().UTC(),
		Tags:       make([]models.TaggedTracks, len(list)),
	}
	if len(list) == 0 {
		return export, nil
	}

	if workers <= 0 {
		workers = defaultExportWorkers
	}
	workers = min(workers, len(list))

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	jobs := make(chan exportJob, len(list))
	results := make(chan exportResult, len(list))

	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobs {
				if ctx.Err() != nil {
					results <- exportResult{index: job.index, err: ctx.Err()}
					continue
				}
				ids, err := tracks.ListTracksForTag(ctx, user.ID, job.tag.ID)
				results <- exportResult{index: job.index, tracks: ids, err: err}
			}
		}()
	}

	for i, tag := range list {
		jobs <- exportJob{index: i, tag: tag}
	}
	close(jobs)

	go func() {
		wg.Wait()
		close(results)
	}()

	var firstErr error
	for res := range results {
		if res.err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("failed to list tracks for tag %q: %w", list[res.index].Name, res.err)
				cancel()
			}
			continue
		}
		ids := res.tracks
		if ids == nil {
			ids = []string{}
		}
		export.Tags[res.index] = models.TaggedTracks{Tag: list[res.index], TrackIDs: ids}
	}
	if firstErr != nil {
		return nil, firstErr
	}
	return export, nil
}
