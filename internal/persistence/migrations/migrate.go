// Package migrations wires golang-migrate execution for the engine's
// Postgres-backed audit trail.
package migrations

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"

	"github.com/golang-migrate/migrate/v4"
	pgxv5 "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	_ "github.com/golang-migrate/migrate/v4/source/file" // file:// migrations loader
	_ "github.com/jackc/pgx/v5/stdlib"                    // register pgx driver for database/sql
)

// Apply ensures the migrations at migrationsDir (a "file://" or bare
// filesystem path) are applied to the Postgres instance reachable via dsn.
// A nil logger disables informational logging.
func Apply(ctx context.Context, dsn, migrationsDir string, logger *log.Logger) error {
	m, cleanup, err := prepareMigrator(ctx, dsn, migrationsDir)
	if err != nil {
		return err
	}
	defer cleanup()

	if logger != nil {
		logger.Printf("persistence: running migrations from %s", migrationsDir)
	}

	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			if logger != nil {
				logger.Printf("persistence: migrations already up to date")
			}
			return nil
		}
		return fmt.Errorf("apply migrations: %w", err)
	}
	if logger != nil {
		logger.Printf("persistence: migrations applied")
	}
	return nil
}

// Rollback steps the database backwards by steps migrations (defaulting to
// one when steps <= 0).
func Rollback(ctx context.Context, dsn, migrationsDir string, steps int, logger *log.Logger) error {
	if steps <= 0 {
		steps = 1
	}
	m, cleanup, err := prepareMigrator(ctx, dsn, migrationsDir)
	if err != nil {
		return err
	}
	defer cleanup()

	if err := m.Steps(-steps); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			return nil
		}
		return fmt.Errorf("rollback migrations: %w", err)
	}
	if logger != nil {
		logger.Printf("persistence: rolled back %d migration(s)", steps)
	}
	return nil
}

func prepareMigrator(ctx context.Context, dsn, migrationsDir string) (*migrate.Migrate, func(), error) {
	if migrationsDir == "" {
		return nil, func() {}, fmt.Errorf("migrations directory required")
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, func() {}, fmt.Errorf("open migrations connection: %w", err)
	}
	cleanup := func() { _ = db.Close() }

	if err := db.PingContext(ctx); err != nil {
		cleanup()
		return nil, func() {}, fmt.Errorf("ping migrations database: %w", err)
	}

	driver, err := pgxv5.WithInstance(db, &pgxv5.Config{})
	if err != nil {
		cleanup()
		return nil, func() {}, fmt.Errorf("initialise pgx driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(sourceURL(migrationsDir), "pgx5", driver)
	if err != nil {
		cleanup()
		return nil, func() {}, fmt.Errorf("initialise migrate instance: %w", err)
	}

	return m, func() {
		sourceErr, dbErr := m.Close()
		_ = sourceErr
		_ = dbErr
		cleanup()
	}, nil
}

func sourceURL(dir string) string {
	if len(dir) >= 7 && dir[:7] == "file://" {
		return dir
	}
	return "file://" + dir
}
