package storage

import (
	"database/sql"
	"embed"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

// targetSchemaVersion is the newest migration this build ships. Version 1
// creates the costs and settings tables; version 2 adds the denormalized
// date parts, their (year, month) index and the legacy backfill.
const targetSchemaVersion = 2

//go:embed migrations/*.sql
var migrationsFS embed.FS

// RunMigrations brings the database file up to targetSchemaVersion and
// returns the version the file ends at. A file already carrying a newer
// version (written by a newer build) is left untouched and its own version
// is returned; downgrading would destroy data the newer build relies on.
// A dirty version means an earlier migration run died halfway and needs
// manual attention, so it is an error.
func RunMigrations(dbPath string) (uint, error) {
	// Separate connection so migrations never interfere with the store's pool.
	migrateDB, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return 0, fmt.Errorf("open migration database: %w", err)
	}
	defer migrateDB.Close()

	driver, err := sqlite.WithInstance(migrateDB, &sqlite.Config{})
	if err != nil {
		return 0, fmt.Errorf("create sqlite driver: %w", err)
	}

	d, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return 0, fmt.Errorf("create iofs source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", d, "sqlite", driver)
	if err != nil {
		return 0, fmt.Errorf("create migrate instance: %w", err)
	}
	defer m.Close()

	version, dirty, err := m.Version()
	if err != nil && err != migrate.ErrNilVersion {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	if dirty {
		return 0, fmt.Errorf("schema version %d is dirty, refusing to touch it", version)
	}
	if version > targetSchemaVersion {
		return version, nil
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return 0, fmt.Errorf("run migrations: %w", err)
	}

	return targetSchemaVersion, nil
}
