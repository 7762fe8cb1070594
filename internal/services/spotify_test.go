package services

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"testing"

	"github.com/moodring/backend/internal/shared"
	tu "github.com/moodring/backend/internal/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func newTestService(t *testing.T, stub *tu.SpotifyStub) *SpotifyService {
	t.Helper()
	srv, err := NewSpotifyService(stub.Config())
	require.NoError(t, err)
	return srv
}

func TestSpotifyService(t *testing.T) {
	t.Run("NewSpotifyService", func(t *testing.T) {
		t.Run("With Valid Credentials", func(t *testing.T) {
			srv, err := NewSpotifyService(shared.SpotifyConfig{
				ClientID:     "test_client_id",
				ClientSecret: "test_client_secret",
				RedirectURI:  "moodring://auth",
			})
			require.NoError(t, err)
			assert.Equal(t, spotifyTokenURL, srv.config.Endpoint.TokenURL)
			assert.Equal(t, spotifyBaseURL, srv.baseURL)
			assert.Equal(t, oauth2.AuthStyleInHeader, srv.config.Endpoint.AuthStyle)
			assert.Equal(t, defaultTimeout, srv.httpClient.Timeout)
		})

		t.Run("Missing Client ID", func(t *testing.T) {
			_, err := NewSpotifyService(shared.SpotifyConfig{ClientSecret: "s", RedirectURI: "r"})
			assert.ErrorIs(t, err, shared.ErrConfiguration)
			assert.ErrorIs(t, err, shared.ErrMissingCredentials)
		})

		t.Run("Missing Client Secret", func(t *testing.T) {
			_, err := NewSpotifyService(shared.SpotifyConfig{ClientID: "c", RedirectURI: "r"})
			assert.ErrorIs(t, err, shared.ErrConfiguration)
		})

		t.Run("Missing Redirect URI", func(t *testing.T) {
			_, err := NewSpotifyService(shared.SpotifyConfig{ClientID: "c", ClientSecret: "s"})
			assert.ErrorIs(t, err, shared.ErrConfiguration)
		})
	})

	t.Run("AuthCodeURL", func(t *testing.T) {
		stub := tu.NewSpotifyStub(t)
		srv := newTestService(t, stub)

		raw := srv.AuthCodeURL("state-123", oauth2.GenerateVerifier())
		u, err := url.Parse(raw)
		require.NoError(t, err)

		q := u.Query()
		assert.Equal(t, "state-123", q.Get("state"))
		assert.Equal(t, "S256", q.Get("code_challenge_method"))
		assert.NotEmpty(t, q.Get("code_challenge"))
		assert.Equal(t, tu.StubRedirectURI, q.Get("redirect_uri"))
	})

	t.Run("ExchangeCode", func(t *testing.T) {
		stub := tu.NewSpotifyStub(t)
		stub.AddCode("good-code", tu.StubProfile{ID: "abc"})
		srv := newTestService(t, stub)

		pair, err := srv.ExchangeCode(context.Background(), "good-code", "verifier-xyz")
		require.NoError(t, err)

		assert.NotEmpty(t, pair.AccessToken)
		assert.NotEmpty(t, pair.RefreshToken)
		assert.Equal(t, "Bearer", pair.TokenType)
		assert.Equal(t, int64(3600), pair.ExpiresIn)
		assert.Equal(t, "user-read-private user-read-email", pair.Scope)

		t.Run("sends the authorization code grant", func(t *testing.T) {
			form, auth := stub.LastForm()
			assert.Equal(t, "authorization_code", form.Get("grant_type"))
			assert.Equal(t, "good-code", form.Get("code"))
			assert.Equal(t, "verifier-xyz", form.Get("code_verifier"))
			assert.Equal(t, tu.StubRedirectURI, form.Get("redirect_uri"))
			assert.True(t, strings.HasPrefix(auth, "Basic "), "client credentials go in the Authorization header")
			assert.Empty(t, form.Get("client_secret"))
		})
	})

	t.Run("ExchangeCode Rejected", func(t *testing.T) {
		stub := tu.NewSpotifyStub(t)
		srv := newTestService(t, stub)

		_, err := srv.ExchangeCode(context.Background(), "unknown", "v")
		require.Error(t, err)

		var perr *ProviderError
		require.ErrorAs(t, err, &perr)
		assert.Equal(t, http.StatusBadRequest, perr.Status)
		assert.Contains(t, perr.Body, "invalid_grant")
		assert.ErrorIs(t, err, shared.ErrProvider)
	})

	t.Run("RefreshToken", func(t *testing.T) {
		stub := tu.NewSpotifyStub(t)
		stub.AddCode("code", tu.StubProfile{ID: "abc"})
		srv := newTestService(t, stub)

		first, err := srv.ExchangeCode(context.Background(), "code", "v")
		require.NoError(t, err)

		t.Run("without rotation reports no refresh token", func(t *testing.T) {
			pair, err := srv.RefreshToken(context.Background(), first.RefreshToken)
			require.NoError(t, err)
			assert.NotEmpty(t, pair.AccessToken)
			assert.NotEqual(t, first.AccessToken, pair.AccessToken)
			assert.Empty(t, pair.RefreshToken)

			form, _ := stub.LastForm()
			assert.Equal(t, "refresh_token", form.Get("grant_type"))
			assert.Equal(t, first.RefreshToken, form.Get("refresh_token"))
		})

		t.Run("with rotation returns the new token", func(t *testing.T) {
			stub.SetRotateRefresh(true)
			defer stub.SetRotateRefresh(false)

			pair, err := srv.RefreshToken(context.Background(), first.RefreshToken)
			require.NoError(t, err)
			assert.NotEmpty(t, pair.RefreshToken)
			assert.NotEqual(t, first.RefreshToken, pair.RefreshToken)
		})

		t.Run("rejected", func(t *testing.T) {
			_, err := srv.RefreshToken(context.Background(), "revoked")
			assert.ErrorIs(t, err, shared.ErrProvider)
		})
	})

	t.Run("FetchProfile", func(t *testing.T) {
		stub := tu.NewSpotifyStub(t)
		stub.AddCode("code", tu.StubProfile{ID: "abc", Email: "a@example.com", DisplayName: "Ada", ImageURL: "https://img/ada.png"})
		srv := newTestService(t, stub)

		pair, err := srv.ExchangeCode(context.Background(), "code", "v")
		require.NoError(t, err)

		profile, err := srv.FetchProfile(context.Background(), pair.AccessToken)
		require.NoError(t, err)
		assert.Equal(t, "abc", profile.ID)
		assert.Equal(t, "a@example.com", profile.EmailOrEmpty())
		require.NotNil(t, profile.DisplayName)
		assert.Equal(t, "Ada", *profile.DisplayName)
		assert.Equal(t, "https://img/ada.png", *profile.PrimaryImageURL())
	})

	t.Run("FetchProfile Errors", func(t *testing.T) {
		t.Run("expired token", func(t *testing.T) {
			stub := tu.NewSpotifyStub(t)
			stub.FailProfile(http.StatusUnauthorized)
			srv := newTestService(t, stub)

			_, err := srv.FetchProfile(context.Background(), "expired")
			var perr *ProviderError
			require.ErrorAs(t, err, &perr)
			assert.Equal(t, http.StatusUnauthorized, perr.Status)
		})

		t.Run("malformed body", func(t *testing.T) {
			stub := tu.NewSpotifyStub(t)
			stub.SetProfileBody(`{"id": 42`)
			srv := newTestService(t, stub)

			_, err := srv.FetchProfile(context.Background(), "token")
			var derr *DecodeError
			require.ErrorAs(t, err, &derr)
			assert.ErrorIs(t, err, shared.ErrDecode)
		})

		t.Run("missing id", func(t *testing.T) {
			stub := tu.NewSpotifyStub(t)
			stub.SetProfileBody(`{"display_name": "nobody"}`)
			srv := newTestService(t, stub)

			_, err := srv.FetchProfile(context.Background(), "token")
			assert.ErrorIs(t, err, shared.ErrDecode)
		})

		t.Run("transport failure", func(t *testing.T) {
			stub := tu.NewSpotifyStub(t)
			client := &http.Client{Transport: tu.NewMockRoundTripper(nil, errors.New("connection refused"))}
			srv, err := NewSpotifyService(stub.Config(), WithHTTPClient(client))
			require.NoError(t, err)

			_, err = srv.FetchProfile(context.Background(), "token")
			var terr *TransportError
			require.ErrorAs(t, err, &terr)
			assert.ErrorIs(t, err, shared.ErrTransport)

			_, err = srv.ExchangeCode(context.Background(), "code", "v")
			assert.ErrorIs(t, err, shared.ErrTransport)
		})
	})
}

func TestClassifyTokenError(t *testing.T) {
	t.Run("retrieve error", func(t *testing.T) {
		err := classifyTokenError("op", &oauth2.RetrieveError{
			Response: &http.Response{StatusCode: http.StatusUnauthorized},
			Body:     []byte(strings.Repeat("x", maxErrorBody*2)),
		})
		var perr *ProviderError
		require.ErrorAs(t, err, &perr)
		assert.Equal(t, http.StatusUnauthorized, perr.Status)
		assert.Len(t, perr.Body, maxErrorBody+len("..."))
	})

	t.Run("url error", func(t *testing.T) {
		err := classifyTokenError("op", &url.Error{Op: "Post", URL: "x", Err: errors.New("dial")})
		assert.ErrorIs(t, err, shared.ErrTransport)
	})

	t.Run("anything else", func(t *testing.T) {
		err := classifyTokenError("op", errors.New("oauth2: server response missing access_token"))
		assert.ErrorIs(t, err, shared.ErrDecode)
	})
}
