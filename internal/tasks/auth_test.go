package tasks

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/moodring/backend/internal/models"
	"github.com/moodring/backend/internal/repositories"
	"github.com/moodring/backend/internal/services"
	"github.com/moodring/backend/internal/session"
	"github.com/moodring/backend/internal/shared"
	tu "github.com/moodring/backend/internal/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingIssuer records how many sessions it issued.
type countingIssuer struct {
	mu    sync.Mutex
	count int
	err   error
}

func (c *countingIssuer) IssueSession(ctx context.Context, userID int64) (*session.Credential, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return nil, c.err
	}
	c.count++
	return &session.Credential{Token: "session-token", ExpiresAt: time.Now().Add(time.Hour)}, nil
}

func (c *countingIssuer) issued() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.count
}

// failingStore fails every write with err.
type failingStore struct {
	UserStore
	err error
}

func (f *failingStore) UpsertFromAuthentication(context.Context, *models.Profile, *models.TokenPair, time.Time) (*models.User, error) {
	return nil, f.err
}

type fixture struct {
	stub   *tu.SpotifyStub
	db     *shared.DB
	users  *repositories.UserRepository
	issuer *countingIssuer
	auth   *Authenticator
	logs   *bytes.Buffer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	stub := tu.NewSpotifyStub(t)
	provider, err := services.NewSpotifyService(stub.Config())
	require.NoError(t, err)

	db := tu.NewTestDB(t)
	users := repositories.NewUserRepository(db)
	issuer := &countingIssuer{}
	var logs bytes.Buffer
	logger := shared.NewLogger(&logs)
	shared.SetLogLevel(logger, "debug")

	return &fixture{
		stub:   stub,
		db:     db,
		users:  users,
		issuer: issuer,
		auth:   NewAuthenticator(provider, users, issuer, logger),
		logs:   &logs,
	}
}

func (f *fixture) userCount(t *testing.T) int {
	t.Helper()
	var n int
	require.NoError(t, f.db.QueryRow("SELECT COUNT(*) FROM users").Scan(&n))
	return n
}

func TestAuthenticate(t *testing.T) {
	ctx := context.Background()

	t.Run("first login creates the user and issues a session", func(t *testing.T) {
		f := newFixture(t)
		f.stub.AddCode("C", tu.StubProfile{ID: "abc", Email: "a@x"})

		progress := make(chan ProgressUpdate, 8)
		result, err := f.auth.Authenticate(ctx, "C", "V", progress)
		require.NoError(t, err)

		assert.NotZero(t, result.User.ID)
		assert.Equal(t, "abc", result.User.ExternalID)
		assert.Equal(t, "a@x", result.User.Email)
		assert.NotEmpty(t, *result.User.AccessToken)
		assert.NotEmpty(t, *result.User.RefreshToken)
		require.NotNil(t, result.User.TokenExpiresAt)
		assert.WithinDuration(t, time.Now().Add(time.Hour), *result.User.TokenExpiresAt, time.Minute)
		assert.Equal(t, "session-token", result.Session.Token)
		assert.Equal(t, 1, f.userCount(t))

		close(progress)
		var states []State
		for u := range progress {
			states = append(states, u.State)
		}
		assert.Equal(t, []State{CodeExchanged, ProfileFetched, IdentityResolved, SessionIssued}, states)
		assert.Contains(t, f.logs.String(), "state transition")
	})

	t.Run("re-authentication returns the same user", func(t *testing.T) {
		f := newFixture(t)
		f.stub.AddCode("C1", tu.StubProfile{ID: "abc"})
		f.stub.AddCode("C2", tu.StubProfile{ID: "abc", DisplayName: "Ada"})

		first, err := f.auth.Authenticate(ctx, "C1", "V", nil)
		require.NoError(t, err)
		second, err := f.auth.Authenticate(ctx, "C2", "V", nil)
		require.NoError(t, err)

		assert.Equal(t, first.User.ID, second.User.ID)
		assert.Equal(t, "Ada", *second.User.DisplayName)
		assert.NotEqual(t, *first.User.AccessToken, *second.User.AccessToken)
		assert.Equal(t, 1, f.userCount(t))
	})

	t.Run("concurrent first logins resolve to one user", func(t *testing.T) {
		f := newFixture(t)
		codes := []string{"c0", "c1", "c2", "c3", "c4", "c5", "c6", "c7", "c8", "c9"}
		for _, c := range codes {
			f.stub.AddCode(c, tu.StubProfile{ID: "same"})
		}

		ids := make([]int64, len(codes))
		errs := make([]error, len(codes))
		var wg sync.WaitGroup
		for i, c := range codes {
			wg.Add(1)
			go func() {
				defer wg.Done()
				result, err := f.auth.Authenticate(ctx, c, "V", nil)
				errs[i] = err
				if err == nil {
					ids[i] = result.User.ID
				}
			}()
		}
		wg.Wait()

		for i := range codes {
			require.NoError(t, errs[i])
			assert.Equal(t, ids[0], ids[i])
		}
		assert.Equal(t, 1, f.userCount(t))
	})

	t.Run("empty inputs are rejected before any provider call", func(t *testing.T) {
		f := newFixture(t)

		_, err := f.auth.Authenticate(ctx, "", "V", nil)
		assert.ErrorIs(t, err, shared.ErrInvalidInput)
		_, err = f.auth.Authenticate(ctx, "C", " ", nil)
		assert.ErrorIs(t, err, shared.ErrInvalidInput)

		assert.Zero(t, f.stub.Calls("token"))
	})

	t.Run("rejected code fails at exchange", func(t *testing.T) {
		f := newFixture(t)

		_, err := f.auth.Authenticate(ctx, "bogus", "V", nil)
		var serr *StepError
		require.ErrorAs(t, err, &serr)
		assert.Equal(t, StepExchangeCode, serr.Step)
		assert.Equal(t, Start, serr.State)
		assert.ErrorIs(t, err, shared.ErrProvider)
		assert.Zero(t, f.stub.Calls("profile"))
		assert.Zero(t, f.userCount(t))
	})

	t.Run("profile failure writes nothing", func(t *testing.T) {
		f := newFixture(t)
		f.stub.AddCode("C", tu.StubProfile{ID: "abc"})
		f.stub.FailProfile(http.StatusInternalServerError)

		progress := make(chan ProgressUpdate, 8)
		_, err := f.auth.Authenticate(ctx, "C", "V", progress)
		var serr *StepError
		require.ErrorAs(t, err, &serr)
		assert.Equal(t, StepFetchProfile, serr.Step)
		assert.Equal(t, CodeExchanged, serr.State)
		assert.Zero(t, f.userCount(t))
		assert.Zero(t, f.issuer.issued())

		close(progress)
		var last ProgressUpdate
		for u := range progress {
			last = u
		}
		assert.Equal(t, Failed, last.State)
		assert.Error(t, last.Err)
	})

	t.Run("store failure issues no session", func(t *testing.T) {
		f := newFixture(t)
		f.stub.AddCode("C", tu.StubProfile{ID: "abc"})
		storeErr := errors.New("disk on fire")
		f.auth.users = &failingStore{UserStore: f.users, err: storeErr}

		_, err := f.auth.Authenticate(ctx, "C", "V", nil)
		var serr *StepError
		require.ErrorAs(t, err, &serr)
		assert.Equal(t, StepResolveIdentity, serr.Step)
		assert.Equal(t, ProfileFetched, serr.State)
		assert.ErrorIs(t, err, storeErr)
		assert.Zero(t, f.issuer.issued())
	})

	t.Run("issuer failure is reported", func(t *testing.T) {
		f := newFixture(t)
		f.stub.AddCode("C", tu.StubProfile{ID: "abc"})
		f.issuer.err = errors.New("no entropy")

		_, err := f.auth.Authenticate(ctx, "C", "V", nil)
		var serr *StepError
		require.ErrorAs(t, err, &serr)
		assert.Equal(t, StepIssueSession, serr.Step)
		assert.Equal(t, IdentityResolved, serr.State)
	})
}

func TestRefreshSession(t *testing.T) {
	ctx := context.Background()

	t.Run("keeps the stored refresh token when not rotated", func(t *testing.T) {
		f := newFixture(t)
		f.stub.AddCode("C", tu.StubProfile{ID: "abc"})

		first, err := f.auth.Authenticate(ctx, "C", "V", nil)
		require.NoError(t, err)
		originalRefresh := *first.User.RefreshToken

		result, err := f.auth.RefreshSession(ctx, first.User.ID, nil)
		require.NoError(t, err)

		assert.Equal(t, first.User.ID, result.User.ID)
		assert.NotEqual(t, *first.User.AccessToken, *result.User.AccessToken)
		assert.Equal(t, originalRefresh, *result.User.RefreshToken)
		assert.Equal(t, 2, f.issuer.issued())

		stored, err := f.users.Get(ctx, first.User.ID)
		require.NoError(t, err)
		assert.Equal(t, originalRefresh, *stored.RefreshToken)
	})

	t.Run("stores a rotated refresh token", func(t *testing.T) {
		f := newFixture(t)
		f.stub.AddCode("C", tu.StubProfile{ID: "abc"})

		first, err := f.auth.Authenticate(ctx, "C", "V", nil)
		require.NoError(t, err)

		f.stub.SetRotateRefresh(true)
		result, err := f.auth.RefreshSession(ctx, first.User.ID, nil)
		require.NoError(t, err)
		assert.NotEqual(t, *first.User.RefreshToken, *result.User.RefreshToken)
	})

	t.Run("unknown user", func(t *testing.T) {
		f := newFixture(t)

		_, err := f.auth.RefreshSession(ctx, 999, nil)
		var serr *StepError
		require.ErrorAs(t, err, &serr)
		assert.Equal(t, StepLoadUser, serr.Step)
		assert.ErrorIs(t, err, shared.ErrNotFound)
		assert.Zero(t, f.stub.Calls("token"))
	})

	t.Run("user without refresh token", func(t *testing.T) {
		f := newFixture(t)
		user, err := f.users.UpsertFromAuthentication(ctx, &models.Profile{ID: "abc"}, &models.TokenPair{AccessToken: "A"}, time.Now())
		require.NoError(t, err)

		_, err = f.auth.RefreshSession(ctx, user.ID, nil)
		assert.ErrorIs(t, err, shared.ErrNoRefreshToken)
		assert.Zero(t, f.stub.Calls("token"))
	})

	t.Run("provider rejection leaves the stored tokens alone", func(t *testing.T) {
		f := newFixture(t)
		f.stub.AddCode("C", tu.StubProfile{ID: "abc"})
		first, err := f.auth.Authenticate(ctx, "C", "V", nil)
		require.NoError(t, err)

		f.stub.FailToken(http.StatusBadRequest)
		_, err = f.auth.RefreshSession(ctx, first.User.ID, nil)
		var serr *StepError
		require.ErrorAs(t, err, &serr)
		assert.Equal(t, StepRefreshToken, serr.Step)
		assert.Equal(t, UserLoaded, serr.State)

		stored, err := f.users.Get(ctx, first.User.ID)
		require.NoError(t, err)
		assert.Equal(t, *first.User.AccessToken, *stored.AccessToken)
	})
}

func TestState(t *testing.T) {
	assert.Equal(t, "code_exchanged", CodeExchanged.String())
	assert.Equal(t, "failed", Failed.String())
	assert.Equal(t, "", State(99).String())
}

func TestSendProgress(t *testing.T) {
	t.Run("nil channel", func(t *testing.T) {
		assert.NotPanics(t, func() { sendProgress(nil, ProgressUpdate{}) })
	})

	t.Run("full channel does not block", func(t *testing.T) {
		ch := make(chan ProgressUpdate)
		done := make(chan struct{})
		go func() {
			sendProgress(ch, ProgressUpdate{State: Start})
			close(done)
		}()

		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("sendProgress blocked")
		}
	})
}
