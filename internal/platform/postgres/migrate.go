package postgres

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"log/slog"
	"strings"

	"github.com/pressly/goose/v3"
)

// MigrationTableName is the goose version table.
const MigrationTableName = "schema_migrations"

//go:embed migrations/*.sql
var migrationsFS embed.FS

// MigrationsFS returns the embedded migration files.
func MigrationsFS() embed.FS {
	return migrationsFS
}

// GooseLogger forwards goose output to slog.
type GooseLogger struct {
	Logger *slog.Logger
}

// Printf implements goose.Logger.
func (l GooseLogger) Printf(format string, v ...any) {
	l.logger().Info(strings.TrimSpace(fmt.Sprintf(format, v...)), "source", "goose")
}

// Fatalf implements goose.Logger. It logs at error level and does not exit;
// goose returns the failure to the caller as well.
func (l GooseLogger) Fatalf(format string, v ...any) {
	l.logger().Error(strings.TrimSpace(fmt.Sprintf(format, v...)), "source", "goose")
}

func (l GooseLogger) logger() *slog.Logger {
	if l.Logger == nil {
		return slog.Default()
	}
	return l.Logger
}

// Migrate runs a goose command ("up", "down", "status", "version", "reset",
// "redo") against the embedded migrations.
func Migrate(ctx context.Context, db *sql.DB, command string, logger *slog.Logger, args ...string) error {
	goose.SetBaseFS(migrationsFS)
	goose.SetLogger(GooseLogger{Logger: logger})
	goose.SetTableName(MigrationTableName)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	if err := goose.RunContext(ctx, command, db, "migrations", args...); err != nil {
		return fmt.Errorf("migration %q failed: %w", command, err)
	}
	return nil
}
