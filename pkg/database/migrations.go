package database

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file" // file:// source for the migrations dir
	"go.uber.org/zap"
)

// RunMigrations applies any pending schema migrations from migrationsPath.
// Safe to run on every startup: an up-to-date schema is a no-op, and a dirty
// version (a previously interrupted migration) fails loudly instead of
// guessing.
func RunMigrations(db *sql.DB, migrationsPath string, logger *zap.Logger) error {
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance("file://"+migrationsPath, "postgres", driver)
	if err != nil {
		return fmt.Errorf("migration setup: %w", err)
	}
	defer closeMigrator(m, logger)

	before, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("read schema version: %w", err)
	}
	if dirty {
		return fmt.Errorf("schema version %d is dirty; resolve it manually before starting", before)
	}

	switch err := m.Up(); {
	case errors.Is(err, migrate.ErrNoChange):
		logger.Info("Schema up to date", zap.Uint("version", before))
	case err != nil:
		return fmt.Errorf("apply migrations: %w", err)
	default:
		after, _, _ := m.Version()
		logger.Info("Schema migrated", zap.Uint("from", before), zap.Uint("to", after))
	}
	return nil
}

func closeMigrator(m *migrate.Migrate, logger *zap.Logger) {
	srcErr, dbErr := m.Close()
	if srcErr != nil {
		logger.Warn("Failed to close migration source", zap.Error(srcErr))
	}
	if dbErr != nil {
		logger.Warn("Failed to close migration driver", zap.Error(dbErr))
	}
}
