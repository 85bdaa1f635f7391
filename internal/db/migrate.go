package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/RezaEskandarii/tablequeue/internal/constants"
	"github.com/RezaEskandarii/tablequeue/internal/db/migrations"
	"github.com/RezaEskandarii/tablequeue/internal/lock"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

const migrationsTable = "tablequeue_schema_migrations"

type migrateRunner interface {
	Up() error
	Close() (sourceErr, dbErr error)
}

type migrateFactory func(db *sql.DB) (migrateRunner, error)

var newMigrator migrateFactory = func(db *sql.DB) (migrateRunner, error) {
	driver, err := postgres.WithInstance(db, &postgres.Config{MigrationsTable: migrationsTable})
	if err != nil {
		return nil, fmt.Errorf("init postgres migration driver: %w", err)
	}

	source, err := iofs.New(migrations.FS, ".")
	if err != nil {
		return nil, fmt.Errorf("init migration source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return nil, fmt.Errorf("init migrator: %w", err)
	}
	return m, nil
}

// Migrate applies pending migrations of the static schema. Only one process migrates at a
// time; the others wait on the advisory lock and then find nothing to do. The migrator gets
// its own connection pool because closing the migrator closes the pool.
func Migrate(ctx context.Context, driverName, url string, locks lock.DistributedLockManager, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}

	release, err := locks.Acquire(ctx, constants.MigrationLock)
	if err != nil {
		return err
	}
	defer func() {
		if err := release(); err != nil {
			logger.Warn("failed to release migration lock", "err", err)
		}
	}()

	db, err := sql.Open(driverName, url)
	if err != nil {
		return fmt.Errorf("open migration connection: %w", err)
	}
	m, err := newMigrator(db)
	if err != nil {
		_ = db.Close()
		return err
	}
	defer func() {
		sourceErr, dbErr := m.Close()
		if sourceErr != nil {
			logger.Warn("failed to close migration source", "err", sourceErr)
		}
		if dbErr != nil {
			logger.Warn("failed to close migration db", "err", dbErr)
		}
	}()

	if err := ctx.Err(); err != nil {
		return err
	}

	logger.Info("applying migrations")
	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			logger.Info("no migrations to apply")
			return nil
		}
		return fmt.Errorf("apply migrations: %w", err)
	}
	logger.Info("migrations applied")
	return nil
}
