package session

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/moodring/backend/internal/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() shared.SessionConfig {
	return shared.SessionConfig{
		SecretKey: GenerateKey(),
		Issuer:    "moodring",
		Audience:  "moodring-app",
		TTL:       time.Hour,
	}
}

func TestPasetoIssuer(t *testing.T) {
	t.Run("NewPasetoIssuer", func(t *testing.T) {
		t.Run("valid key", func(t *testing.T) {
			_, err := NewPasetoIssuer(testConfig())
			assert.NoError(t, err)
		})

		t.Run("short key", func(t *testing.T) {
			cfg := testConfig()
			cfg.SecretKey = "abcd"
			_, err := NewPasetoIssuer(cfg)
			assert.ErrorIs(t, err, shared.ErrConfiguration)
		})

		t.Run("non hex key", func(t *testing.T) {
			cfg := testConfig()
			cfg.SecretKey = strings.Repeat("zz", keyBytesSize)
			_, err := NewPasetoIssuer(cfg)
			assert.ErrorIs(t, err, shared.ErrConfiguration)
		})

		t.Run("zero ttl", func(t *testing.T) {
			cfg := testConfig()
			cfg.TTL = 0
			_, err := NewPasetoIssuer(cfg)
			assert.ErrorIs(t, err, shared.ErrConfiguration)
		})
	})

	t.Run("GenerateKey", func(t *testing.T) {
		key := GenerateKey()
		assert.Len(t, key, keyHexSize)
		assert.NotEqual(t, key, GenerateKey())
	})

	t.Run("Issue And Verify", func(t *testing.T) {
		issuer, err := NewPasetoIssuer(testConfig())
		require.NoError(t, err)

		cred, err := issuer.IssueSession(context.Background(), 42)
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(cred.Token, "v4.local."))
		assert.WithinDuration(t, time.Now().Add(time.Hour), cred.ExpiresAt, 5*time.Second)

		claims, err := issuer.Verify(cred.Token)
		require.NoError(t, err)
		assert.Equal(t, int64(42), claims.UserID)
		assert.Equal(t, "42", claims.Subject)
		assert.Equal(t, "moodring", claims.Issuer)
		assert.Equal(t, "moodring-app", claims.Audience)
		assert.NotEmpty(t, claims.TokenID)

		t.Run("tokens are unique", func(t *testing.T) {
			other, err := issuer.IssueSession(context.Background(), 42)
			require.NoError(t, err)
			assert.NotEqual(t, cred.Token, other.Token)
		})
	})

	t.Run("Verify Rejects", func(t *testing.T) {
		issuer, err := NewPasetoIssuer(testConfig())
		require.NoError(t, err)
		cred, err := issuer.IssueSession(context.Background(), 7)
		require.NoError(t, err)

		t.Run("garbage", func(t *testing.T) {
			_, err := issuer.Verify("not-a-token")
			assert.ErrorIs(t, err, shared.ErrUnauthorized)
		})

		t.Run("another key", func(t *testing.T) {
			other, err := NewPasetoIssuer(testConfig())
			require.NoError(t, err)
			_, err = other.Verify(cred.Token)
			assert.ErrorIs(t, err, shared.ErrUnauthorized)
		})

		t.Run("another audience", func(t *testing.T) {
			cfg := testConfig()
			cfg.SecretKey = issuer.key.ExportHex()
			cfg.Audience = "someone-else"
			other, err := NewPasetoIssuer(cfg)
			require.NoError(t, err)
			_, err = other.Verify(cred.Token)
			assert.ErrorIs(t, err, shared.ErrUnauthorized)
		})

		t.Run("expired", func(t *testing.T) {
			issuer.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
			defer func() { issuer.now = time.Now }()

			_, err := issuer.Verify(cred.Token)
			assert.ErrorIs(t, err, shared.ErrUnauthorized)
		})
	})

	t.Run("Cancelled Context", func(t *testing.T) {
		issuer, err := NewPasetoIssuer(testConfig())
		require.NoError(t, err)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err = issuer.IssueSession(ctx, 1)
		assert.ErrorIs(t, err, context.Canceled)
	})
}
