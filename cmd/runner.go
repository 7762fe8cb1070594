package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"

	"github.com/charmbracelet/log"
	"github.com/moodring/backend/internal/repositories"
	"github.com/moodring/backend/internal/services"
	"github.com/moodring/backend/internal/session"
	"github.com/moodring/backend/internal/shared"
	"github.com/moodring/backend/internal/tasks"
	"github.com/urfave/cli/v3"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
//
// The database and provider client are opened on first use so that commands
// like `setup config` work without a valid configuration.
type Runner struct {
	config     *shared.Config
	configPath string
	httpClient *http.Client
	logger     *log.Logger
	output     io.Writer
	getenv     func(string) string
	db         *shared.DB
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	HTTPClient *http.Client
	Logger     *log.Logger
	Output     io.Writer
	Getenv     func(string) string
	DB         *shared.DB
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.Getenv == nil {
		opts.Getenv = os.Getenv
	}

	return &Runner{
		config:     opts.Config,
		configPath: opts.ConfigPath,
		httpClient: opts.HTTPClient,
		logger:     opts.Logger,
		output:     opts.Output,
		getenv:     opts.Getenv,
		db:         opts.DB,
	}
}

// Init loads configuration for the root command. It runs before every subcommand.
//
// A missing config file falls back to the embedded defaults. Values from the
// .env file and the environment override the file.
func (r *Runner) Init(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	if r.config != nil {
		return ctx, nil
	}

	r.configPath = cmd.String("config")
	if err := shared.LoadDotEnv(cmd.String("env-file")); err != nil {
		return ctx, err
	}

	config := shared.DefaultConfig()
	if _, err := os.Stat(r.configPath); err == nil {
		loaded, err := shared.LoadConfig(r.configPath)
		if err != nil {
			return ctx, fmt.Errorf("%w: %w", shared.ErrConfiguration, err)
		}
		config = loaded
	} else {
		r.logger.Debug("config file not found, using defaults", "path", r.configPath)
	}

	if err := config.ApplyEnv(r.getenv); err != nil {
		return ctx, err
	}

	level := config.Log.Level
	if l := cmd.String("log-level"); l != "" {
		level = l
	}
	shared.SetLogLevel(r.logger, level)

	r.config = config
	return ctx, nil
}

// Close releases the database connection, if one was opened.
func (r *Runner) Close() {
	if r.db == nil {
		return
	}
	if err := r.db.Close(); err != nil {
		r.logger.Warn("failed to close database", "error", err)
	}
	r.db = nil
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		serveCommand, setupCommand, authCommand, tagsCommand, tracksCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

func (r *Runner) cfg() *shared.Config {
	if r.config == nil {
		r.config = shared.DefaultConfig()
	}
	return r.config
}

// store opens the configured database on first use.
func (r *Runner) store(ctx context.Context) (*shared.DB, error) {
	if r.db != nil {
		return r.db, nil
	}

	db, err := shared.OpenDatabase(ctx, r.cfg().Database)
	if err != nil {
		return nil, err
	}
	r.db = db
	return db, nil
}

func (r *Runner) spotify(cfg shared.SpotifyConfig) (*services.SpotifyService, error) {
	var opts []services.SpotifyOption
	if r.httpClient != nil {
		opts = append(opts, services.WithHTTPClient(r.httpClient))
	}
	return services.NewSpotifyService(cfg, opts...)
}

func (r *Runner) sessions() (*session.PasetoIssuer, error) {
	return session.NewPasetoIssuer(r.cfg().Session)
}

// authenticator wires the provider, identity store and session issuer.
func (r *Runner) authenticator(ctx context.Context, provider services.IdentityProvider) (*tasks.Authenticator, error) {
	issuer, err := r.sessions()
	if err != nil {
		return nil, err
	}

	db, err := r.store(ctx)
	if err != nil {
		return nil, err
	}

	return tasks.NewAuthenticator(provider, repositories.NewUserRepository(db), issuer, r.logger), nil
}

// userID reads the required --user flag.
func userID(cmd *cli.Command) (int64, error) {
	id := cmd.Int64("user")
	if id <= 0 {
		return 0, fmt.Errorf("%w: --user must be a positive user id", shared.ErrInvalidInput)
	}
	return id, nil
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

// workflowError wraps a workflow failure once, adding a hint for the
// failures a user can fix from the terminal.
func workflowError(action string, err error) error {
	switch {
	case errors.Is(err, shared.ErrNoRefreshToken):
		return fmt.Errorf("%s failed: %w (run `moodring auth login` again)", action, err)
	case errors.Is(err, shared.ErrMissingCredentials):
		return fmt.Errorf("%s failed: %w (set the spotify client credentials in config.toml or the environment)", action, err)
	default:
		return fmt.Errorf("%s failed: %w", action, err)
	}
}

// tagIDArg parses the <tag-id> argument.
func tagIDArg(cmd *cli.Command) (int64, error) {
	raw := cmd.StringArg("tag-id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: tag id must be a positive integer, got %q", shared.ErrInvalidInput, raw)
	}
	return id, nil
}
