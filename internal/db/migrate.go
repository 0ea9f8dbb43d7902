package db

import (
	"embed"
	"errors"
	"fmt"
	"log/slog"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	migratepgx "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
)

//go:embed migrations
var migrationsFS embed.FS

// Migrate applies every pending schema migration for the connection's
// driver. The migrator is not closed because closing it would close conn.
func Migrate(conn *sqlx.DB, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	var (
		driver database.Driver
		dir    string
		err    error
	)
	switch conn.DriverName() {
	case DriverSQLite:
		dir = "migrations/sqlite3"
		driver, err = migratesqlite.WithInstance(conn.DB, &migratesqlite.Config{})
	case DriverPostgres:
		dir = "migrations/postgres"
		driver, err = migratepgx.WithInstance(conn.DB, &migratepgx.Config{})
	default:
		return fmt.Errorf("migration: unsupported driver %q", conn.DriverName())
	}
	if err != nil {
		return fmt.Errorf("migration: driver init: %w", err)
	}

	source, err := iofs.New(migrationsFS, dir)
	if err != nil {
		return fmt.Errorf("migration: source init: %w", err)
	}

	migrator, err := migrate.NewWithInstance("iofs", source, conn.DriverName(), driver)
	if err != nil {
		return fmt.Errorf("migration: failed to initialize: %w", err)
	}
	migrator.Log = &migrateLogger{logger: logger}

	current, dirty, err := migrator.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("migration: failed to get current version: %w", err)
	}
	if dirty {
		return fmt.Errorf("migration: database is dirty at version %d", current)
	}

	if err := migrator.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			logger.Debug("migration_already_up_to_date", slog.Int("version", int(current)))
			return nil
		}
		return fmt.Errorf("migration: up failed: %w", err)
	}

	next, _, _ := migrator.Version()
	logger.Info("migration_successful",
		slog.Int("from_version", int(current)),
		slog.Int("to_version", int(next)),
	)
	return nil
}

type migrateLogger struct {
	logger *slog.Logger
}

func (l *migrateLogger) Printf(format string, args ...any) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

func (l *migrateLogger) Verbose() bool { return false }
