package repository

import (
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

// Migrator applies the embedded schema migrations to a database.
type Migrator struct {
	m      *migrate.Migrate
	logger *slog.Logger
}

func NewMigrator(db *sql.DB, migrationsFS fs.FS, logger *slog.Logger) (*Migrator, error) {
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to set up migrate driver: %w", err)
	}

	sourceDriver, err := iofs.New(migrationsFS, ".")
	if err != nil {
		return nil, fmt.Errorf("failed to create iofs source driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "postgres", driver)
	if err != nil {
		return nil, fmt.Errorf("failed to set up migrate instance: %w", err)
	}

	return &Migrator{m: m, logger: logger}, nil
}

func (mg *Migrator) Up() error {
	err := mg.m.Up()
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migration(up): %w", err)
	}
	mg.logVersion()
	return nil
}

func (mg *Migrator) Down() error {
	err := mg.m.Down()
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migration(down): %w", err)
	}
	mg.logVersion()
	return nil
}

func (mg *Migrator) logVersion() {
	version, dirty, err := mg.m.Version()
	if err != nil {
		if errors.Is(err, migrate.ErrNilVersion) {
			mg.logger.Info("Schema has no migrations applied")
			return
		}
		mg.logger.Warn("Failed to read schema version", "error", err)
		return
	}
	mg.logger.Info("Schema migrated", "version", version, "dirty", dirty)
}
