package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/moodring/backend/internal/repositories"
	"github.com/moodring/backend/internal/server"
	"github.com/moodring/backend/internal/shared"
	"github.com/urfave/cli/v3"
)

// Serve validates configuration, opens the store and runs the HTTP API until interrupted.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	cfg := r.cfg()
	if err := cfg.Validate(); err != nil {
		return err
	}

	if cmd.Bool("migrate") {
		r.logger.Info("applying migrations", "driver", cfg.Database.Driver)
		if err := shared.RunMigrations(cfg.Database); err != nil {
			return err
		}
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv, err := r.newServer(ctx)
	if err != nil {
		return err
	}
	return srv.ListenAndServe(ctx)
}

// newServer builds the HTTP server with all handlers wired to the store.
func (r *Runner) newServer(ctx context.Context) (*server.Server, error) {
	provider, err := r.spotify(r.cfg().Credentials.Spotify)
	if err != nil {
		return nil, err
	}

	auth, err := r.authenticator(ctx, provider)
	if err != nil {
		return nil, err
	}

	db, err := r.store(ctx)
	if err != nil {
		return nil, err
	}

	verifier, err := r.sessions()
	if err != nil {
		return nil, err
	}

	users := repositories.NewUserRepository(db)
	tags := repositories.NewTagRepository(db)
	songTags := repositories.NewSongTagRepository(db)

	return server.NewServer(r.cfg().Server, r.logger.WithPrefix("http"), db, verifier,
		server.NewAuthHandler(auth, users),
		server.NewTagHandler(tags, songTags),
		server.NewTrackHandler(songTags),
	), nil
}
