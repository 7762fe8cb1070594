package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/moodring/backend/internal/models"
	"github.com/moodring/backend/internal/shared"
)

const userColumns = `id, external_id, email, display_name, access_token, refresh_token,
	token_expires_at, profile_image_url, created_at, updated_at`

// upsertUserSQL creates or refreshes a user in one statement. A NULL refresh
// token keeps the stored one.
const upsertUserSQL = `
	INSERT INTO users (external_id, email, display_name, access_token, refresh_token,
		token_expires_at, profile_image_url, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT (external_id) DO UPDATE SET
		email = excluded.email,
		display_name = excluded.display_name,
		access_token = excluded.access_token,
		refresh_token = COALESCE(excluded.refresh_token, users.refresh_token),
		token_expires_at = excluded.token_expires_at,
		profile_image_url = excluded.profile_image_url,
		updated_at = excluded.updated_at
	RETURNING id
`

// UserRepository persists [models.User] records, keyed by the provider's external id.
type UserRepository struct {
	db *shared.DB
}

// NewUserRepository creates a new [UserRepository] with the given database connection
func NewUserRepository(db *shared.DB) *UserRepository {
	return &UserRepository{db: db}
}

// scanUser reads the columns listed in userColumns.
func scanUser(row scanner) (*models.User, error) {
	var u models.User
	err := row.Scan(
		&u.ID, &u.ExternalID, &u.Email, &u.DisplayName, &u.AccessToken, &u.RefreshToken,
		&u.TokenExpiresAt, &u.ProfileImageURL, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UserRepository) getByID(ctx context.Context, q querier, id int64) (*models.User, error) {
	query := r.db.Rebind(`SELECT ` + userColumns + ` FROM users WHERE id = ?`)

	user, err := scanUser(q.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user %d: %w", id, shared.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query user: %w", classify(err))
	}
	return user, nil
}

// Get retrieves a user by store id.
func (r *UserRepository) Get(ctx context.Context, id int64) (*models.User, error) {
	return r.getByID(ctx, r.db, id)
}

// FindByExternalID retrieves the user linked to the provider account externalID.
func (r *UserRepository) FindByExternalID(ctx context.Context, externalID string) (*models.User, error) {
	query := r.db.Rebind(`SELECT ` + userColumns + ` FROM users WHERE external_id = ?`)

	user, err := scanUser(r.db.QueryRowContext(ctx, query, externalID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user with external id %q: %w", externalID, shared.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query user: %w", classify(err))
	}
	return user, nil
}

// UpsertFromAuthentication creates the user for profile or updates the existing one.
//
// Concurrent calls for the same profile converge on a single row. When
// tokens carries no refresh token the stored one is kept.
func (r *UserRepository) UpsertFromAuthentication(ctx context.Context, profile *models.Profile, tokens *models.TokenPair, expiresAt time.Time) (*models.User, error) {
	if profile == nil || profile.ID == "" {
		return nil, fmt.Errorf("%w: profile id is required", shared.ErrInvalidInput)
	}
	if tokens == nil {
		return nil, fmt.Errorf("%w: tokens are required", shared.ErrInvalidInput)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", classify(err))
	}
	defer rollback(tx)

	now := timestamp()
	expires := expiresAt.UTC().Truncate(time.Microsecond)

	var id int64
	err = tx.QueryRowContext(ctx, r.db.Rebind(upsertUserSQL),
		profile.ID,
		profile.EmailOrEmpty(),
		profile.DisplayName,
		nullable(tokens.AccessToken),
		nullable(tokens.RefreshToken),
		expires,
		profile.PrimaryImageURL(),
		now,
		now,
	).Scan(&id)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert user: %w", classify(err))
	}

	user, err := r.getByID(ctx, tx, id)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit user upsert: %w", classify(err))
	}
	return user, nil
}

// UpdateTokens stores a refreshed access token. An empty refreshToken keeps the stored one.
func (r *UserRepository) UpdateTokens(ctx context.Context, userID int64, accessToken, refreshToken string, expiresAt time.Time) (*models.User, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", classify(err))
	}
	defer rollback(tx)

	query := r.db.Rebind(`
		UPDATE users
		SET access_token = ?, refresh_token = COALESCE(?, refresh_token), token_expires_at = ?, updated_at = ?
		WHERE id = ?
	`)

	result, err := tx.ExecContext(ctx, query,
		nullable(accessToken),
		nullable(refreshToken),
		expiresAt.UTC().Truncate(time.Microsecond),
		timestamp(),
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update tokens: %w", classify(err))
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to get affected rows: %w", classify(err))
	}
	if rows == 0 {
		return nil, fmt.Errorf("user %d: %w", userID, shared.ErrNotFound)
	}

	user, err := r.getByID(ctx, tx, userID)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit token update: %w", classify(err))
	}
	return user, nil
}
