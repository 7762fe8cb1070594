package services

import (
	"context"

	"github.com/moodring/backend/internal/models"
)

// IdentityProvider is an OAuth 2.0 authorization server plus profile endpoint.
type IdentityProvider interface {
	// ExchangeCode trades an authorization code and its PKCE verifier for tokens.
	ExchangeCode(ctx context.Context, code, codeVerifier string) (*models.TokenPair, error)

	// RefreshToken obtains a new access token. The returned RefreshToken is
	// empty when the provider did not rotate it.
	RefreshToken(ctx context.Context, refreshToken string) (*models.TokenPair, error)

	// FetchProfile returns the profile of the account owning accessToken.
	FetchProfile(ctx context.Context, accessToken string) (*models.Profile, error)
}

var _ IdentityProvider = (*SpotifyService)(nil)
