package persistence

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres" // PostgreSQL driver
	_ "github.com/golang-migrate/migrate/v4/source/file"       // File source driver
)

// schemaMigrator is the part of *migrate.Migrate used at startup.
type schemaMigrator interface {
	Up() error
	Version() (version uint, dirty bool, err error)
	Close() (source error, database error)
}

// RunMigrations brings the batch and credit ledger schema under
// migrationsPath (e.g. migrations/postgres) up to date on databaseURL.
func RunMigrations(logger *slog.Logger, databaseURL string, migrationsPath string) error {
	if migrationsPath == "" {
		return errors.New("migrations path cannot be empty")
	}
	if databaseURL == "" {
		return errors.New("database URL cannot be empty")
	}

	m, err := migrate.New(migrationSourceURL(migrationsPath), databaseURL)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}
	return applyMigrations(logger, m)
}

func applyMigrations(logger *slog.Logger, m schemaMigrator) (err error) {
	defer func() {
		sourceErr, dbErr := m.Close()
		switch {
		case err != nil:
		case sourceErr != nil:
			err = fmt.Errorf("migration source error: %w", sourceErr)
		case dbErr != nil:
			err = fmt.Errorf("migration database error: %w", dbErr)
		}
	}()

	// A dirty version is left by a run that stopped halfway.
	from, dirty, err := m.Version()
	switch {
	case errors.Is(err, migrate.ErrNilVersion):
		from, err = 0, nil
	case err != nil:
		return fmt.Errorf("failed to read schema version: %w", err)
	case dirty:
		return fmt.Errorf("schema version %d is dirty, fix it and force the version before restarting", from)
	}

	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			logger.Info("Schema is up to date", "version", from)
			return nil
		}
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	to, _, err := m.Version()
	if err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}
	logger.Info("Applied schema migrations", "from_version", from, "to_version", to)
	return nil
}

func migrationSourceURL(path string) string {
	if strings.HasPrefix(path, "file://") {
		return path
	}
	return "file://" + path
}
