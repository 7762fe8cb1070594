package main

import (
	"context"
	"fmt"

	"github.com/moodring/backend/internal/session"
	"github.com/moodring/backend/internal/shared"
	"github.com/moodring/backend/internal/ui"
	"github.com/urfave/cli/v3"
)

// SetupConfig writes the example configuration to the --config path.
func (r *Runner) SetupConfig(ctx context.Context, cmd *cli.Command) error {
	path := r.configPath
	if path == "" {
		path = "config.toml"
	}

	if err := shared.CreateConfigFile(path); err != nil {
		return err
	}
	r.logger.Info("config file created", "path", path)

	r.writePlain("%s Config written to %s\n", ui.Styles.OK("✓"), path)
	r.writePlainln("Next steps:")
	r.writePlain("1. Set credentials.spotify.client_id and client_secret\n")
	r.writePlain("2. Run 'moodring setup keys' and paste the key into session.secret_key\n")
	r.writePlain("3. Run 'moodring setup database'\n")
	return nil
}

// SetupDatabase runs all pending migrations.
func (r *Runner) SetupDatabase(ctx context.Context, cmd *cli.Command) error {
	cfg := r.cfg().Database

	r.logger.Info("running database migrations", "driver", cfg.Driver)
	if err := shared.RunMigrations(cfg); err != nil {
		return err
	}

	version, _, err := shared.MigrationVersion(cfg)
	if err != nil {
		return err
	}
	r.logger.Infof("setup complete for database: %v", cfg.URL)
	return r.writePlain("%s Database ready (schema version %d)\n", ui.Styles.OK("✓"), version)
}

// SetupRollback rolls back the most recent migration.
func (r *Runner) SetupRollback(ctx context.Context, cmd *cli.Command) error {
	cfg := r.cfg().Database

	if err := shared.RollbackMigration(cfg); err != nil {
		return err
	}

	version, _, err := shared.MigrationVersion(cfg)
	if err != nil {
		return err
	}
	return r.writePlain("%s Rolled back to schema version %d\n", ui.Styles.OK("✓"), version)
}

// SetupVersion prints the current schema version.
func (r *Runner) SetupVersion(ctx context.Context, cmd *cli.Command) error {
	version, dirty, err := shared.MigrationVersion(r.cfg().Database)
	if err != nil {
		return err
	}

	if dirty {
		return r.writePlain("Schema version: %d %s\n", version, ui.Styles.Warn("(dirty)"))
	}
	return r.writePlain("Schema version: %d\n", version)
}

// SetupKeys prints a new random session key.
func (r *Runner) SetupKeys(ctx context.Context, cmd *cli.Command) error {
	key := session.GenerateKey()

	r.writePlain("%s\n", ui.Styles.Title("Session secret key"))
	r.writePlain("%s\n", key)
	r.writePlainln("%s", ui.Styles.Help(fmt.Sprintf("Add to config.toml under [session] as secret_key, or export SESSION_SECRET_KEY=%s", key)))
	return nil
}
