package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/linkd/internal/shared"
	"github.com/urfave/cli/v3"
)

// SetupDatabase initializes the database and runs migrations.
func (r *Runner) SetupDatabase(ctx context.Context, cmd *cli.Command) error {
	config, err := r.loadConfig(cmd)
	if err != nil {
		return err
	}

	r.logger.Info("initializing database", "driver", r.driver(config))

	db, err := r.openDatabase(config)
	if err != nil {
		return fmt.Errorf("failed to set up database: %w", err)
	}
	defer db.Close()

	r.logger.Info("setup complete", "driver", r.driver(config), "path", config.Database.Path)
	return r.writePlain("%s database ready\n", styles.ok.Render("✓"))
}

// SetupConfig writes the example configuration to the --config path. An existing file is left untouched.
func (r *Runner) SetupConfig(ctx context.Context, cmd *cli.Command) error {
	path := cmd.String("config")
	if err := shared.CreateConfigFile(path); err != nil {
		return err
	}

	r.logger.Info("config file created", "path", path)
	return r.writePlain("%s wrote %s\n", styles.ok.Render("✓"), path)
}
