package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/moodring/backend/internal/models"
	"github.com/moodring/backend/internal/tasks"
)

// Authenticator runs the login and refresh workflows. Implemented by [tasks.Authenticator].
type Authenticator interface {
	Authenticate(ctx context.Context, code, codeVerifier string, progress chan<- tasks.ProgressUpdate) (*tasks.AuthResult, error)
	RefreshSession(ctx context.Context, userID int64, progress chan<- tasks.ProgressUpdate) (*tasks.AuthResult, error)
}

// UserGetter loads users by id.
type UserGetter interface {
	Get(ctx context.Context, id int64) (*models.User, error)
}

// AuthRequest is the body of POST /auth/spotify.
type AuthRequest struct {
	Code         string `json:"code" validate:"required"`
	CodeVerifier string `json:"code_verifier" validate:"required"`
}

// AuthResponse is returned by the login and refresh endpoints.
type AuthResponse struct {
	User        *models.User `json:"user"`
	AccessToken string       `json:"access_token"`
	ExpiresAt   time.Time    `json:"expires_at"`
}

// tokenLeeway is how close to expiry a provider token counts as stale.
const tokenLeeway = time.Minute

// MeResponse is the current user plus whether their stored provider token
// needs a refresh.
type MeResponse struct {
	*models.User
	ProviderTokenExpired bool `json:"provider_token_expired"`
}

// AuthHandler serves login, session refresh and the current user.
type AuthHandler struct {
	auth  Authenticator
	users UserGetter
}

// NewAuthHandler creates an [AuthHandler].
func NewAuthHandler(auth Authenticator, users UserGetter) *AuthHandler {
	return &AuthHandler{auth: auth, users: users}
}

// Mount implements [Handler].
func (h *AuthHandler) Mount(public, private chi.Router) {
	public.Post("/auth/spotify", h.login)
	private.Post("/auth/refresh", h.refresh)
	private.Get("/me", h.me)
}

func (h *AuthHandler) login(w http.ResponseWriter, r *http.Request) {
	var req AuthRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	result, err := h.auth.Authenticate(r.Context(), req.Code, req.CodeVerifier, nil)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, authResponse(result))
}

func (h *AuthHandler) refresh(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	result, err := h.auth.RefreshSession(r.Context(), userID, nil)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, authResponse(result))
}

func (h *AuthHandler) me(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	user, err := h.users.Get(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, MeResponse{
		User:                 user,
		ProviderTokenExpired: user.TokenExpired(time.Now(), tokenLeeway),
	})
}

func authResponse(result *tasks.AuthResult) AuthResponse {
	return AuthResponse{
		User:        result.User,
		AccessToken: result.Session.Token,
		ExpiresAt:   result.Session.ExpiresAt,
	}
}
