// Schema migrations for the hearthd SQLite store. Migration SQL is
// embedded in the binary so the daemon never depends on files on disk.
package sqlite

import (
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"sort"
)

//go:embed migrations/*.up.sql
var migrationFS embed.FS

const migrationsTable = `
	CREATE TABLE IF NOT EXISTS schema_migrations (
		version     INTEGER NOT NULL PRIMARY KEY,
		name        TEXT    NOT NULL,
		applied_at  TEXT    NOT NULL DEFAULT (datetime('now'))
	)`

// MigrateUp brings the database schema up to date. Each pending
// *.up.sql file runs inside its own transaction and is recorded in
// schema_migrations, so re-running is a no-op.
func MigrateUp(db *sql.DB) error {
	if _, err := db.Exec(migrationsTable); err != nil {
		return fmt.Errorf("migrate: create schema_migrations: %w", err)
	}

	applied, err := appliedVersions(db)
	if err != nil {
		return fmt.Errorf("migrate: read applied versions: %w", err)
	}

	names, err := fs.Glob(migrationFS, "migrations/*.up.sql")
	if err != nil {
		return fmt.Errorf("migrate: glob embedded files: %w", err)
	}
	// Numeric filename prefixes (001_, 002_, ...) make lexicographic
	// order the apply order.
	sort.Strings(names)

	for _, path := range names {
		version, name := parseMigrationPath(path)
		if version == 0 {
			return fmt.Errorf("migrate: %s has no numeric version prefix", path)
		}
		if applied[version] {
			continue
		}

		body, readErr := migrationFS.ReadFile(path)
		if readErr != nil {
			return fmt.Errorf("migrate: read %s: %w", path, readErr)
		}
		if runErr := runMigration(db, version, name, string(body)); runErr != nil {
			return fmt.Errorf("migrate: apply %s: %w", name, runErr)
		}
	}

	return nil
}

// MigrationVersion reports the highest applied migration version,
// or 0 when the schema has never been migrated.
func MigrationVersion(db *sql.DB) (int, error) {
	if _, err := db.Exec(migrationsTable); err != nil {
		return 0, fmt.Errorf("migrate: create schema_migrations: %w", err)
	}

	var version int
	err := db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("migrate: query version: %w", err)
	}
	return version, nil
}

func appliedVersions(db *sql.DB) (map[int]bool, error) {
	rows, err := db.Query("SELECT version FROM schema_migrations")
	if err != nil {
		return nil, err
	}
	defer rows.Close() //nolint:errcheck

	applied := make(map[int]bool)
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		applied[v] = true
	}
	return applied, rows.Err()
}

// parseMigrationPath splits "migrations/001_init_schema.up.sql" into
// its version (1) and bare filename.
func parseMigrationPath(path string) (int, string) {
	name := path
	if i := len("migrations/"); len(path) > i {
		name = path[i:]
	}
	var version int
	if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
		return 0, name
	}
	return version, name
}

func runMigration(db *sql.DB, version int, name, body string) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op once committed

	if _, err := tx.Exec(body); err != nil {
		return fmt.Errorf("exec: %w", err)
	}
	if _, err := tx.Exec(
		"INSERT INTO schema_migrations (version, name) VALUES (?, ?)", version, name,
	); err != nil {
		return fmt.Errorf("record: %w", err)
	}
	return tx.Commit()
}
