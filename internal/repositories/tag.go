package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/moodring/backend/internal/models"
	"github.com/moodring/backend/internal/shared"
)

const tagColumns = `id, user_id, name, color, created_at, updated_at`

// TagRepository persists user-owned [models.Tag] records.
type TagRepository struct {
	db *shared.DB
}

// NewTagRepository creates a new [TagRepository] with the given database connection
func NewTagRepository(db *shared.DB) *TagRepository {
	return &TagRepository{db: db}
}

func scanTag(row scanner) (*models.Tag, error) {
	var t models.Tag
	if err := row.Scan(&t.ID, &t.UserID, &t.Name, &t.Color, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, err
	}
	return &t, nil
}

func scanTags(rows *sql.Rows) ([]models.Tag, error) {
	defer rows.Close()

	tags := []models.Tag{}
	for rows.Next() {
		tag, err := scanTag(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan tag: %w", classify(err))
		}
		tags = append(tags, *tag)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate tags: %w", classify(err))
	}
	return tags, nil
}

// List returns the user's tags ordered by name, byte-wise, so "Zebra" sorts before "apple".
func (r *TagRepository) List(ctx context.Context, userID int64) ([]models.Tag, error) {
	query := r.db.Rebind(fmt.Sprintf(
		`SELECT %s FROM tags WHERE user_id = ? ORDER BY name %s, id`, tagColumns, r.db.CollateBinary()))

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list tags: %w", classify(err))
	}
	return scanTags(rows)
}

// Get retrieves one of the user's tags. Tags owned by someone else are reported as not found.
func (r *TagRepository) Get(ctx context.Context, userID, tagID int64) (*models.Tag, error) {
	query := r.db.Rebind(`SELECT ` + tagColumns + ` FROM tags WHERE id = ? AND user_id = ?`)

	tag, err := scanTag(r.db.QueryRowContext(ctx, query, tagID, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("tag %d: %w", tagID, shared.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query tag: %w", classify(err))
	}
	return tag, nil
}

// Create stores a new tag for userID.
//
// The name is trimmed and must be unique per user. An unknown user is reported as not found.
func (r *TagRepository) Create(ctx context.Context, userID int64, name string, color *string) (*models.Tag, error) {
	now := timestamp()
	tag := &models.Tag{UserID: userID, Name: name, Color: color, CreatedAt: now, UpdatedAt: now}
	if err := tag.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", shared.ErrInvalidInput, err)
	}

	query := r.db.Rebind(`
		INSERT INTO tags (user_id, name, color, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		RETURNING id
	`)

	err := r.db.QueryRowContext(ctx, query, tag.UserID, tag.Name, tag.Color, tag.CreatedAt, tag.UpdatedAt).Scan(&tag.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to insert tag %q: %w", tag.Name, classify(err))
	}
	return tag, nil
}

// Delete removes one of the user's tags together with its associations.
func (r *TagRepository) Delete(ctx context.Context, userID, tagID int64) error {
	query := r.db.Rebind(`DELETE FROM tags WHERE id = ? AND user_id = ?`)

	result, err := r.db.ExecContext(ctx, query, tagID, userID)
	if err != nil {
		return fmt.Errorf("failed to delete tag: %w", classify(err))
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", classify(err))
	}
	if rows == 0 {
		return fmt.Errorf("tag %d: %w", tagID, shared.ErrNotFound)
	}
	return nil
}
