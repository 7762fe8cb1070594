package main

import (
	"context"

	"github.com/moodring/backend/internal/models"
	"github.com/moodring/backend/internal/repositories"
	"github.com/moodring/backend/internal/ui"
	"github.com/urfave/cli/v3"
)

// TracksTags lists the tags of --user attached to a track.
func (r *Runner) TracksTags(ctx context.Context, cmd *cli.Command) error {
	id, err := userID(cmd)
	if err != nil {
		return err
	}
	db, err := r.store(ctx)
	if err != nil {
		return err
	}

	trackID := cmd.StringArg("track-id")
	tags, err := repositories.NewSongTagRepository(db).ListForTrack(ctx, id, trackID)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		if tags == nil {
			tags = []models.Tag{}
		}
		return r.writeJSON(tags, cmd.Bool("pretty"))
	}

	if len(tags) == 0 {
		return r.writePlain("Track %s has no tags\n", trackID)
	}
	r.writePlain("Track %s:\n", trackID)
	for _, t := range tags {
		r.writePlain("%4d  %s\n", t.ID, ui.Swatch(t.Name, t.Color))
	}
	return nil
}

// TracksAdd attaches a tag to a track. Attaching twice is a no-op.
func (r *Runner) TracksAdd(ctx context.Context, cmd *cli.Command) error {
	id, err := userID(cmd)
	if err != nil {
		return err
	}
	tagID, err := tagIDArg(cmd)
	if err != nil {
		return err
	}
	db, err := r.store(ctx)
	if err != nil {
		return err
	}

	st, err := repositories.NewSongTagRepository(db).Create(ctx, id, cmd.StringArg("track-id"), tagID)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(st, cmd.Bool("pretty"))
	}
	return r.writePlain("%s Tagged %s with %d\n", ui.Styles.OK("✓"), st.TrackID, st.TagID)
}

// TracksRemove detaches a tag from a track.
func (r *Runner) TracksRemove(ctx context.Context, cmd *cli.Command) error {
	id, err := userID(cmd)
	if err != nil {
		return err
	}
	tagID, err := tagIDArg(cmd)
	if err != nil {
		return err
	}
	db, err := r.store(ctx)
	if err != nil {
		return err
	}

	trackID := cmd.StringArg("track-id")
	if err := repositories.NewSongTagRepository(db).Delete(ctx, id, trackID, tagID); err != nil {
		return err
	}
	return r.writePlain("%s Removed tag %d from %s\n", ui.Styles.OK("✓"), tagID, trackID)
}
