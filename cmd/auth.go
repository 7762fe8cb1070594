package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/moodring/backend/internal/server"
	"github.com/moodring/backend/internal/shared"
	"github.com/moodring/backend/internal/tasks"
	"github.com/moodring/backend/internal/ui"
	"github.com/urfave/cli/v3"
	"golang.org/x/oauth2"
)

const defaultLoginTimeout = 2 * time.Minute

// AuthLogin performs a PKCE authorization code login in the browser.
//
// A local callback server receives the code, which goes through the
// authenticate workflow like any client login. The resulting session token is printed.
func (r *Runner) AuthLogin(ctx context.Context, cmd *cli.Command) error {
	listen := cmd.String("listen")

	spotifyCfg := r.cfg().Credentials.Spotify
	spotifyCfg.RedirectURI = "http://" + listen + server.CallbackPath

	provider, err := r.spotify(spotifyCfg)
	if err != nil {
		return err
	}

	auth, err := r.authenticator(ctx, provider)
	if err != nil {
		return err
	}

	state := shared.GenerateID()
	verifier := oauth2.GenerateVerifier()
	authURL := provider.AuthCodeURL(state, verifier)

	code, err := r.waitForCode(ctx, listen, state, authURL, cmd.Duration("timeout"), !cmd.Bool("no-browser"))
	if err != nil {
		return err
	}

	result, err := r.runWorkflow(func(progress chan<- tasks.ProgressUpdate) (*tasks.AuthResult, error) {
		return auth.Authenticate(ctx, code, verifier, progress)
	})
	if err != nil {
		return workflowError("login", err)
	}

	return r.writeAuthResult(result, cmd)
}

// AuthRefresh refreshes the stored Spotify tokens of --user and prints a new session token.
func (r *Runner) AuthRefresh(ctx context.Context, cmd *cli.Command) error {
	id, err := userID(cmd)
	if err != nil {
		return err
	}

	provider, err := r.spotify(r.cfg().Credentials.Spotify)
	if err != nil {
		return err
	}

	auth, err := r.authenticator(ctx, provider)
	if err != nil {
		return err
	}

	result, err := r.runWorkflow(func(progress chan<- tasks.ProgressUpdate) (*tasks.AuthResult, error) {
		return auth.RefreshSession(ctx, id, progress)
	})
	if err != nil {
		return workflowError("refresh", err)
	}

	return r.writeAuthResult(result, cmd)
}

// runWorkflow runs fn while printing its progress updates.
func (r *Runner) runWorkflow(fn func(chan<- tasks.ProgressUpdate) (*tasks.AuthResult, error)) (*tasks.AuthResult, error) {
	progress := make(chan tasks.ProgressUpdate, 8)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for u := range progress {
			if u.Err != nil {
				r.writePlain("%s %s\n", ui.Styles.Err("✗"), u.Message)
				continue
			}
			r.writePlain("%s [%d/%d] %s\n", ui.Styles.OK("→"), u.Step, u.Total, u.Message)
		}
	}()

	result, err := fn(progress)
	close(progress)
	wg.Wait()
	return result, err
}

func (r *Runner) writeAuthResult(result *tasks.AuthResult, cmd *cli.Command) error {
	if cmd.Bool("json") {
		return r.writeJSON(server.AuthResponse{
			User:        result.User,
			AccessToken: result.Session.Token,
			ExpiresAt:   result.Session.ExpiresAt,
		}, cmd.Bool("pretty"))
	}

	name := result.User.ExternalID
	if result.User.DisplayName != nil && *result.User.DisplayName != "" {
		name = *result.User.DisplayName
	}

	r.writePlainln("%s Signed in as %s (user %d)", ui.Styles.OK("✓"), name, result.User.ID)
	r.writePlain("Session token (expires %s):\n%s\n", result.Session.ExpiresAt.Local().Format(time.RFC1123), result.Session.Token)
	return nil
}

// waitForCode serves the OAuth callback on listen and returns the authorization code.
func (r *Runner) waitForCode(ctx context.Context, listen, state, authURL string, timeout time.Duration, openBrowser bool) (string, error) {
	if timeout <= 0 {
		timeout = defaultLoginTimeout
	}

	oauthHandler := server.NewOAuthHandler(state)
	router := chi.NewRouter()
	router.Method(http.MethodGet, server.CallbackPath, oauthHandler)

	ln, err := net.Listen("tcp", listen)
	if err != nil {
		return "", fmt.Errorf("failed to start callback server on %s: %w", listen, err)
	}

	httpServer := &http.Server{Handler: router, ReadHeaderTimeout: 10 * time.Second}

	serverErrors := make(chan error, 1)
	go func() {
		r.logger.Infof("starting OAuth callback server at %v", listen)
		if err := httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrors <- err
		}
	}()

	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			r.logger.Warn("error shutting down server", "error", err)
		}
	}()

	if openBrowser {
		r.writePlain("→ Opening browser for Spotify authorization...\n")
		if err := shared.OpenBrowser(authURL); err != nil {
			r.logger.Warnf("failed to open browser automatically %v", err)
			r.writePlainln("⚠ Could not open browser automatically.")
			openBrowser = false
		}
	}
	if !openBrowser {
		r.writePlain("Please open this URL in your browser:\n%s\n\n", authURL)
	}

	r.writePlain("→ Waiting for authorization (%s timeout)...\n", timeout)

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	var result server.OAuthResult
	select {
	case result = <-oauthHandler.Result():
	case err := <-serverErrors:
		return "", fmt.Errorf("server error: %w", err)
	case <-timer.C:
		return "", fmt.Errorf("authorization timed out after %s", timeout)
	case <-ctx.Done():
		return "", ctx.Err()
	}

	if result.Error() != nil {
		return "", fmt.Errorf("authorization failed: %w", result.Error())
	}
	if result.Code == "" {
		return "", fmt.Errorf("no authorization code received")
	}
	return result.Code, nil
}
