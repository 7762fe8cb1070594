// Spotify implementation of [IdentityProvider]
//
// Response types based on https://developer.spotify.com/documentation/web-api/reference/get-current-users-profile
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/moodring/backend/internal/models"
	"github.com/moodring/backend/internal/shared"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

const (
	spotifyAuthURL  = "https://accounts.spotify.com/authorize"
	spotifyTokenURL = "https://accounts.spotify.com/api/token"
	spotifyBaseURL  = "https://api.spotify.com/v1"

	defaultTimeout = 10 * time.Second
)

// SpotifyService talks to the Spotify accounts service and Web API.
//
// Credentials are fixed at construction. A SpotifyService is safe for concurrent use.
type SpotifyService struct {
	config     *oauth2.Config
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// SpotifyOption customises a [SpotifyService].
type SpotifyOption func(*SpotifyService)

// WithHTTPClient replaces the HTTP client used for every provider call.
func WithHTTPClient(c *http.Client) SpotifyOption {
	return func(s *SpotifyService) { s.httpClient = c }
}

// NewSpotifyService creates a new Spotify client from cfg.
//
// Missing client credentials are a configuration error.
func NewSpotifyService(cfg shared.SpotifyConfig, opts ...SpotifyOption) (*SpotifyService, error) {
	if cfg.ClientID == "" {
		return nil, fmt.Errorf("%w: %w: missing spotify client_id", shared.ErrConfiguration, shared.ErrMissingCredentials)
	}
	if cfg.ClientSecret == "" {
		return nil, fmt.Errorf("%w: %w: missing spotify client_secret", shared.ErrConfiguration, shared.ErrMissingCredentials)
	}
	if cfg.RedirectURI == "" {
		return nil, fmt.Errorf("%w: missing spotify redirect_uri", shared.ErrConfiguration)
	}

	authURL, tokenURL, baseURL := cfg.AuthURL, cfg.TokenURL, cfg.APIBaseURL
	if authURL == "" {
		authURL = spotifyAuthURL
	}
	if tokenURL == "" {
		tokenURL = spotifyTokenURL
	}
	if baseURL == "" {
		baseURL = spotifyBaseURL
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), 1)
	}

	s := &SpotifyService{
		config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURI,
			Scopes:       cfg.Scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:   authURL,
				TokenURL:  tokenURL,
				AuthStyle: oauth2.AuthStyleInHeader,
			},
		},
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		limiter:    limiter,
	}

	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// AuthCodeURL returns the authorization URL for a PKCE login with the given state and verifier.
func (s *SpotifyService) AuthCodeURL(state, verifier string) string {
	return s.config.AuthCodeURL(state, oauth2.S256ChallengeOption(verifier))
}

// ExchangeCode trades an authorization code for tokens.
func (s *SpotifyService) ExchangeCode(ctx context.Context, code, codeVerifier string) (*models.TokenPair, error) {
	const op = "exchange code"
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, &TransportError{Op: op, Err: err}
	}

	tok, err := s.config.Exchange(s.clientContext(ctx), code, oauth2.VerifierOption(codeVerifier))
	if err != nil {
		return nil, classifyTokenError(op, err)
	}
	return tokenPair(tok, ""), nil
}

// RefreshToken uses refreshToken to obtain a new access token.
//
// The returned pair has an empty RefreshToken unless Spotify rotated it.
func (s *SpotifyService) RefreshToken(ctx context.Context, refreshToken string) (*models.TokenPair, error) {
	const op = "refresh token"
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, &TransportError{Op: op, Err: err}
	}

	src := s.config.TokenSource(s.clientContext(ctx), &oauth2.Token{RefreshToken: refreshToken})
	tok, err := src.Token()
	if err != nil {
		return nil, classifyTokenError(op, err)
	}
	return tokenPair(tok, refreshToken), nil
}

// FetchProfile retrieves the profile of the account owning accessToken.
func (s *SpotifyService) FetchProfile(ctx context.Context, accessToken string) (*models.Profile, error) {
	var profile models.Profile
	if err := s.doRequest(ctx, "fetch profile", http.MethodGet, "/me", accessToken, &profile); err != nil {
		return nil, err
	}
	if profile.ID == "" {
		return nil, &DecodeError{Op: "fetch profile", Err: fmt.Errorf("profile has no id")}
	}
	return &profile, nil
}

// clientContext carries the configured HTTP client into the oauth2 package.
func (s *SpotifyService) clientContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, s.httpClient)
}

// doRequest performs a Bearer-authenticated request against the Web API and decodes the JSON body into result.
func (s *SpotifyService) doRequest(ctx context.Context, op, method, endpoint, accessToken string, result any) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return &TransportError{Op: op, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+endpoint, nil)
	if err != nil {
		return fmt.Errorf("%s: failed to create request: %w", op, err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return &TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody+1))
		return &ProviderError{Op: op, Status: resp.StatusCode, Body: truncate(string(body))}
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return &DecodeError{Op: op, Err: err}
	}
	return nil
}

// tokenPair converts an oauth2 token. A refresh token equal to sent means
// the provider echoed or omitted it, so it is reported as absent.
func tokenPair(tok *oauth2.Token, sent string) *models.TokenPair {
	pair := &models.TokenPair{
		AccessToken: tok.AccessToken,
		TokenType:   tok.TokenType,
		ExpiresIn:   tok.ExpiresIn,
	}

	if scope, ok := tok.Extra("scope").(string); ok {
		pair.Scope = scope
	}

	if pair.ExpiresIn == 0 {
		switch v := tok.Extra("expires_in").(type) {
		case float64:
			pair.ExpiresIn = int64(v)
		case json.Number:
			pair.ExpiresIn, _ = v.Int64()
		}
	}
	if pair.ExpiresIn == 0 && !tok.Expiry.IsZero() {
		pair.ExpiresIn = int64(time.Until(tok.Expiry).Round(time.Second) / time.Second)
	}

	if tok.RefreshToken != sent {
		pair.RefreshToken = tok.RefreshToken
	}
	return pair
}
