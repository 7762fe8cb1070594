package tasks

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/moodring/backend/internal/models"
	"github.com/moodring/backend/internal/services"
	"github.com/moodring/backend/internal/session"
	"github.com/moodring/backend/internal/shared"
)

// Workflow step names used in [StepError].
const (
	StepExchangeCode    = "exchange_code"
	StepFetchProfile    = "fetch_profile"
	StepLoadUser        = "load_user"
	StepRefreshToken    = "refresh_token"
	StepResolveIdentity = "resolve_identity"
	StepIssueSession    = "issue_session"
)

// StepError is a workflow failure. State is the last state reached before Step failed.
type StepError struct {
	Step  string
	State State
	Err   error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s failed after %s: %v", e.Step, e.State, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

// UserStore is the subset of the identity store the workflows use.
type UserStore interface {
	Get(ctx context.Context, id int64) (*models.User, error)
	UpsertFromAuthentication(ctx context.Context, profile *models.Profile, tokens *models.TokenPair, expiresAt time.Time) (*models.User, error)
	UpdateTokens(ctx context.Context, userID int64, accessToken, refreshToken string, expiresAt time.Time) (*models.User, error)
}

// AuthResult is the outcome of a successful workflow.
type AuthResult struct {
	User    *models.User        `json:"user"`
	Session *session.Credential `json:"session"`
}

// Authenticator runs the authenticate and refresh workflows.
type Authenticator struct {
	provider services.IdentityProvider
	users    UserStore
	sessions session.Issuer
	logger   *log.Logger
	now      func() time.Time
}

// NewAuthenticator creates an [Authenticator].
func NewAuthenticator(provider services.IdentityProvider, users UserStore, sessions session.Issuer, logger *log.Logger) *Authenticator {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Authenticator{
		provider: provider,
		users:    users,
		sessions: sessions,
		logger:   logger.WithPrefix("auth"),
		now:      time.Now,
	}
}

// workflow tracks the current state of one run and reports transitions.
type workflow struct {
	name     string
	state    State
	total    int
	step     int
	progress chan<- ProgressUpdate
	logger   *log.Logger
}

func (w *workflow) advance(to State, msg string) {
	w.state = to
	w.step++
	w.logger.Debug("state transition", "workflow", w.name, "state", to)
	sendProgress(w.progress, ProgressUpdate{State: to, Step: w.step, Total: w.total, Message: msg})
}

func (w *workflow) fail(step string, err error) error {
	serr := &StepError{Step: step, State: w.state, Err: err}
	w.logger.Warn("workflow failed", "workflow", w.name, "step", step, "state", w.state, "err", err)
	sendProgress(w.progress, ProgressUpdate{State: Failed, Step: w.step, Total: w.total, Message: serr.Error(), Err: serr})
	w.state = Failed
	return serr
}

// Authenticate links the provider account behind code to a user and issues a session.
//
// code and codeVerifier come from the client's PKCE authorization flow.
// progress may be nil.
func (a *Authenticator) Authenticate(ctx context.Context, code, codeVerifier string, progress chan<- ProgressUpdate) (*AuthResult, error) {
	w := &workflow{name: "authenticate", state: Start, total: 4, progress: progress, logger: a.logger}

	if strings.TrimSpace(code) == "" || strings.TrimSpace(codeVerifier) == "" {
		return nil, w.fail(StepExchangeCode, fmt.Errorf("%w: code and code_verifier are required", shared.ErrInvalidInput))
	}

	tokens, err := a.provider.ExchangeCode(ctx, code, codeVerifier)
	if err != nil {
		return nil, w.fail(StepExchangeCode, err)
	}
	expiresAt := tokens.ExpiresAt(a.now())
	w.advance(CodeExchanged, "Exchanged authorization code")

	profile, err := a.provider.FetchProfile(ctx, tokens.AccessToken)
	if err != nil {
		return nil, w.fail(StepFetchProfile, err)
	}
	w.advance(ProfileFetched, "Fetched Spotify profile")

	user, err := a.users.UpsertFromAuthentication(ctx, profile, tokens, expiresAt)
	if err != nil {
		return nil, w.fail(StepResolveIdentity, err)
	}
	w.advance(IdentityResolved, fmt.Sprintf("Linked user %d", user.ID))

	cred, err := a.sessions.IssueSession(ctx, user.ID)
	if err != nil {
		return nil, w.fail(StepIssueSession, err)
	}
	w.advance(SessionIssued, "Issued session")

	a.logger.Info("user authenticated", "user_id", user.ID, "external_id", user.ExternalID)
	return &AuthResult{User: user, Session: cred}, nil
}

// RefreshSession refreshes the stored provider tokens of userID and issues a new session.
//
// The stored refresh token is kept unless the provider rotates it. progress may be nil.
func (a *Authenticator) RefreshSession(ctx context.Context, userID int64, progress chan<- ProgressUpdate) (*AuthResult, error) {
	w := &workflow{name: "refresh", state: Start, total: 4, progress: progress, logger: a.logger}

	user, err := a.users.Get(ctx, userID)
	if err != nil {
		return nil, w.fail(StepLoadUser, err)
	}
	if !user.HasRefreshToken() {
		return nil, w.fail(StepLoadUser, fmt.Errorf("user %d: %w", userID, shared.ErrNoRefreshToken))
	}
	w.advance(UserLoaded, fmt.Sprintf("Loaded user %d", user.ID))

	tokens, err := a.provider.RefreshToken(ctx, *user.RefreshToken)
	if err != nil {
		return nil, w.fail(StepRefreshToken, err)
	}
	expiresAt := tokens.ExpiresAt(a.now())
	w.advance(TokensRefreshed, "Refreshed access token")

	user, err = a.users.UpdateTokens(ctx, user.ID, tokens.AccessToken, tokens.RefreshToken, expiresAt)
	if err != nil {
		return nil, w.fail(StepResolveIdentity, err)
	}
	w.advance(IdentityResolved, "Stored refreshed tokens")

	cred, err := a.sessions.IssueSession(ctx, user.ID)
	if err != nil {
		return nil, w.fail(StepIssueSession, err)
	}
	w.advance(SessionIssued, "Issued session")

	a.logger.Info("session refreshed", "user_id", user.ID, "rotated", tokens.RefreshToken != "")
	return &AuthResult{User: user, Session: cred}, nil
}
