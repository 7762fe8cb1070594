package repositories

import (
	"context"
	"strings"
	"testing"

	"github.com/moodring/backend/internal/models"
	"github.com/moodring/backend/internal/shared"
	tu "github.com/moodring/backend/internal/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tagNames(tags []models.Tag) []string {
	names := make([]string, len(tags))
	for i, tag := range tags {
		names[i] = tag.Name
	}
	return names
}

func TestTagRepository(t *testing.T) {
	ctx := context.Background()

	t.Run("Create", func(t *testing.T) {
		db := tu.NewTestDB(t)
		repo := NewTagRepository(db)
		user := createUser(t, db, "abc")

		tag, err := repo.Create(ctx, user.ID, "  Chill  ", ptr("#00AAFF"))
		require.NoError(t, err)
		assert.NotZero(t, tag.ID)
		assert.Equal(t, user.ID, tag.UserID)
		assert.Equal(t, "Chill", tag.Name)
		assert.Equal(t, "#00AAFF", *tag.Color)

		stored, err := repo.Get(ctx, user.ID, tag.ID)
		require.NoError(t, err)
		assert.Equal(t, tag.Name, stored.Name)
		assert.True(t, tag.CreatedAt.Equal(stored.CreatedAt))
	})

	t.Run("Create Errors", func(t *testing.T) {
		db := tu.NewTestDB(t)
		repo := NewTagRepository(db)
		user := createUser(t, db, "abc")

		t.Run("duplicate name", func(t *testing.T) {
			_, err := repo.Create(ctx, user.ID, "Chill", nil)
			require.NoError(t, err)

			_, err = repo.Create(ctx, user.ID, "Chill", nil)
			assert.ErrorIs(t, err, shared.ErrDuplicate)
		})

		t.Run("same name for another user is allowed", func(t *testing.T) {
			other := createUser(t, db, "other")
			_, err := repo.Create(ctx, other.ID, "Chill", nil)
			assert.NoError(t, err)
		})

		t.Run("unknown user", func(t *testing.T) {
			_, err := repo.Create(ctx, user.ID+1000, "Chill", nil)
			assert.ErrorIs(t, err, shared.ErrNotFound)
		})

		t.Run("invalid input", func(t *testing.T) {
			_, err := repo.Create(ctx, user.ID, " ", nil)
			assert.ErrorIs(t, err, shared.ErrInvalidInput)

			_, err = repo.Create(ctx, user.ID, strings.Repeat("x", models.MaxTagNameLength+1), nil)
			assert.ErrorIs(t, err, shared.ErrInvalidInput)

			_, err = repo.Create(ctx, user.ID, "Colour", ptr("red"))
			assert.ErrorIs(t, err, shared.ErrInvalidInput)
		})
	})

	t.Run("List", func(t *testing.T) {
		db := tu.NewTestDB(t)
		repo := NewTagRepository(db)
		user := createUser(t, db, "abc")
		other := createUser(t, db, "other")

		for _, name := range []string{"b", "a", "C"} {
			_, err := repo.Create(ctx, user.ID, name, nil)
			require.NoError(t, err)
		}
		_, err := repo.Create(ctx, other.ID, "aaa", nil)
		require.NoError(t, err)

		tags, err := repo.List(ctx, user.ID)
		require.NoError(t, err)
		assert.Equal(t, []string{"C", "a", "b"}, tagNames(tags), "ordering is byte-wise")

		empty, err := repo.List(ctx, user.ID+1000)
		require.NoError(t, err)
		assert.NotNil(t, empty)
		assert.Empty(t, empty)
	})

	t.Run("Delete", func(t *testing.T) {
		db := tu.NewTestDB(t)
		repo := NewTagRepository(db)
		owner := createUser(t, db, "owner")
		intruder := createUser(t, db, "intruder")

		tag, err := repo.Create(ctx, owner.ID, "Mine", nil)
		require.NoError(t, err)

		t.Run("by another user is not found and keeps the tag", func(t *testing.T) {
			err := repo.Delete(ctx, intruder.ID, tag.ID)
			assert.ErrorIs(t, err, shared.ErrNotFound)

			_, err = repo.Get(ctx, owner.ID, tag.ID)
			assert.NoError(t, err)
		})

		t.Run("get by another user is not found", func(t *testing.T) {
			_, err := repo.Get(ctx, intruder.ID, tag.ID)
			assert.ErrorIs(t, err, shared.ErrNotFound)
		})

		t.Run("by the owner", func(t *testing.T) {
			require.NoError(t, repo.Delete(ctx, owner.ID, tag.ID))
			assert.ErrorIs(t, repo.Delete(ctx, owner.ID, tag.ID), shared.ErrNotFound)
		})
	})
}
