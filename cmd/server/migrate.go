package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"slices"

	"github.com/phrazzld/scry-forge/internal/config"
	"github.com/phrazzld/scry-forge/internal/platform/postgres"
	"github.com/spf13/cobra"
)

// migrateCommands are the goose commands exposed by the migrate subcommand.
var migrateCommands = []string{"up", "down", "status", "version", "redo", "reset"}

func newMigrateCmd() *cobra.Command {
	var (
		databaseURL string
		verbose     bool
	)
	cmd := &cobra.Command{
		Use:       "migrate <up|down|status|version|redo|reset>",
		Short:     "Apply or inspect database migrations",
		Args:      validateMigrateArgs,
		ValidArgs: migrateCommands,
		RunE: func(cmd *cobra.Command, args []string) error {
			level := slog.LevelInfo
			if verbose {
				level = slog.LevelDebug
			}
			log := slog.New(slog.NewJSONHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))

			url, err := migrationDatabaseURL(databaseURL)
			if err != nil {
				return err
			}
			return runMigration(cmd.Context(), url, args[0], log)
		},
	}
	cmd.Flags().StringVar(&databaseURL, "database-url", os.Getenv("SCRY_DATABASE_URL"),
		"database connection URL (defaults to the configured database.url)")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	return cmd
}

func validateMigrateArgs(_ *cobra.Command, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("expected exactly one migration command, got %d", len(args))
	}
	if !slices.Contains(migrateCommands, args[0]) {
		return fmt.Errorf("unknown migration command %q (valid: %v)", args[0], migrateCommands)
	}
	return nil
}

// migrationDatabaseURL prefers an explicit URL and falls back to the full
// configuration.
func migrationDatabaseURL(explicit string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}
	cfg, err := config.Load()
	if err != nil {
		return "", fmt.Errorf("no --database-url given and configuration failed to load: %w", err)
	}
	return cfg.Database.URL, nil
}

func runMigration(ctx context.Context, url, command string, log *slog.Logger) error {
	db, err := openDatabase(ctx, config.DatabaseConfig{URL: url, MaxOpenConns: 1})
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	log.Info("running migration", "command", command)
	if err := postgres.Migrate(ctx, db, command, log); err != nil {
		return err
	}
	log.Info("migration finished", "command", command)
	return nil
}
