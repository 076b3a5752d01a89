package persistence

import (
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres" // PostgreSQL driver
	_ "github.com/golang-migrate/migrate/v4/source/file"       // File source driver
)

// RunMigrations brings the schema up to date from the migration files at
// migrationsPath (e.g. ./migrations/postgres). A schema already at the
// latest version is not an error.
func RunMigrations(databaseURL string, migrationsPath string) error {
	switch {
	case databaseURL == "":
		return errors.New("database URL cannot be empty")
	case migrationsPath == "":
		return errors.New("migrations path cannot be empty")
	}

	m, err := migrate.New("file://"+migrationsPath, databaseURL)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}

	if upErr := m.Up(); upErr != nil && !errors.Is(upErr, migrate.ErrNoChange) {
		// A dirty version means a previous run died mid-migration and needs
		// operator attention; surface the version to make that obvious.
		if version, dirty, verr := m.Version(); verr == nil && dirty {
			m.Close()
			return fmt.Errorf("migration failed at version %d and left the schema dirty: %w", version, upErr)
		}
		m.Close()
		return fmt.Errorf("failed to apply migrations: %w", upErr)
	}

	sourceErr, dbErr := m.Close()
	if sourceErr != nil {
		return fmt.Errorf("migration source error: %w", sourceErr)
	}
	if dbErr != nil {
		return fmt.Errorf("migration database error: %w", dbErr)
	}

	return nil
}
