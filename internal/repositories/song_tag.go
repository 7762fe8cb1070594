package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/moodring/backend/internal/models"
	"github.com/moodring/backend/internal/shared"
)

// SongTagRepository persists [models.SongTag] associations between external track ids and tags.
type SongTagRepository struct {
	db *shared.DB
}

// NewSongTagRepository creates a new [SongTagRepository] with the given database connection
func NewSongTagRepository(db *shared.DB) *SongTagRepository {
	return &SongTagRepository{db: db}
}

func validTrackID(trackID string) error {
	if strings.TrimSpace(trackID) == "" {
		return fmt.Errorf("%w: track id is required", shared.ErrInvalidInput)
	}
	return nil
}

// ListForTrack returns the user's tags attached to trackID, ordered by name.
func (r *SongTagRepository) ListForTrack(ctx context.Context, userID int64, trackID string) ([]models.Tag, error) {
	if err := validTrackID(trackID); err != nil {
		return nil, err
	}

	query := r.db.Rebind(fmt.Sprintf(`
		SELECT t.id, t.user_id, t.name, t.color, t.created_at, t.updated_at
		FROM song_tags st
		JOIN tags t ON t.id = st.tag_id AND t.user_id = st.user_id
		WHERE st.user_id = ? AND st.song_id = ?
		ORDER BY t.name %s, t.id
	`, r.db.CollateBinary()))

	rows, err := r.db.QueryContext(ctx, query, userID, trackID)
	if err != nil {
		return nil, fmt.Errorf("failed to list track tags: %w", classify(err))
	}
	return scanTags(rows)
}

// Create attaches tagID to trackID for userID.
//
// The tag must belong to userID; otherwise it is reported as not found.
// Attaching a tag twice returns the existing association.
func (r *SongTagRepository) Create(ctx context.Context, userID int64, trackID string, tagID int64) (*models.SongTag, error) {
	if err := validTrackID(trackID); err != nil {
		return nil, err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", classify(err))
	}
	defer rollback(tx)

	// The owner is copied from the tag row, so a foreign tag inserts nothing.
	insert := r.db.Rebind(`
		INSERT INTO song_tags (user_id, song_id, tag_id)
		SELECT t.user_id, CAST(? AS TEXT), t.id FROM tags t WHERE t.id = ? AND t.user_id = ?
		ON CONFLICT (user_id, song_id, tag_id) DO NOTHING
	`)
	if _, err := tx.ExecContext(ctx, insert, trackID, tagID, userID); err != nil {
		return nil, fmt.Errorf("failed to insert track tag: %w", classify(err))
	}

	selectQuery := r.db.Rebind(`
		SELECT id, user_id, song_id, tag_id, created_at
		FROM song_tags
		WHERE user_id = ? AND song_id = ? AND tag_id = ?
	`)

	var st models.SongTag
	err = tx.QueryRowContext(ctx, selectQuery, userID, trackID, tagID).
		Scan(&st.ID, &st.UserID, &st.TrackID, &st.TagID, &st.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("tag %d: %w", tagID, shared.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query track tag: %w", classify(err))
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit track tag: %w", classify(err))
	}
	return &st, nil
}

// Delete detaches tagID from trackID. Only the user's own associations match.
func (r *SongTagRepository) Delete(ctx context.Context, userID int64, trackID string, tagID int64) error {
	if err := validTrackID(trackID); err != nil {
		return err
	}

	query := r.db.Rebind(`DELETE FROM song_tags WHERE user_id = ? AND song_id = ? AND tag_id = ?`)

	result, err := r.db.ExecContext(ctx, query, userID, trackID, tagID)
	if err != nil {
		return fmt.Errorf("failed to delete track tag: %w", classify(err))
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", classify(err))
	}
	if rows == 0 {
		return fmt.Errorf("tag %d on track %q: %w", tagID, trackID, shared.ErrNotFound)
	}
	return nil
}

// ListTracksForTag returns the track ids carrying one of the user's tags, oldest first.
func (r *SongTagRepository) ListTracksForTag(ctx context.Context, userID, tagID int64) ([]string, error) {
	var exists int
	check := r.db.Rebind(`SELECT 1 FROM tags WHERE id = ? AND user_id = ?`)
	err := r.db.QueryRowContext(ctx, check, tagID, userID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("tag %d: %w", tagID, shared.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query tag: %w", classify(err))
	}

	query := r.db.Rebind(`
		SELECT song_id FROM song_tags
		WHERE user_id = ? AND tag_id = ?
		ORDER BY created_at, id
	`)

	rows, err := r.db.QueryContext(ctx, query, userID, tagID)
	if err != nil {
		return nil, fmt.Errorf("failed to list tagged tracks: %w", classify(err))
	}
	defer rows.Close()

	tracks := []string{}
	for rows.Next() {
		var trackID string
		if err := rows.Scan(&trackID); err != nil {
			return nil, fmt.Errorf("failed to scan track id: %w", classify(err))
		}
		tracks = append(tracks, trackID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate tracks: %w", classify(err))
	}
	return tracks, nil
}
