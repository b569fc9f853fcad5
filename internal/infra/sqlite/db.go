// Package sqlite provides the SQLite database connection factory for hearthd.
// Uses modernc.org/sqlite — a pure-Go SQLite driver (no CGO required), which
// matters for a desktop app shipped as a single static binary per platform.
package sqlite

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	// Register the modernc sqlite driver under the name "sqlite"
	_ "modernc.org/sqlite"
)

// NewDB opens (or creates) a SQLite database at path and configures it for use
// as a local single-user store:
//   - WAL journal mode (a streaming turn appends while the UI reads)
//   - Foreign key enforcement (SQLite disables FKs by default)
//   - 5-second busy timeout (prevents SQLITE_BUSY under stop+complete races)
//   - Synchronous=NORMAL (safe + faster than FULL for WAL mode)
//
// The parent directory is created if missing — first launch on a fresh machine
// must succeed without any manual setup.
// Use ":memory:" as path for in-memory databases in tests.
func NewDB(path string) (*sql.DB, error) {
	if path != ":memory:" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("sqlite.NewDB: create parent directory %q: %w", dir, err)
		}
	}

	// DSN with PRAGMAs applied at connection time via query parameters.
	// modernc.org/sqlite supports _pragma=... params in the DSN.
	dsn := path +
		"?_pragma=journal_mode(WAL)" +
		"&_pragma=foreign_keys(ON)" +
		"&_pragma=busy_timeout(5000)" +
		"&_pragma=synchronous(NORMAL)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite.NewDB: open %q: %w", path, err)
	}

	// WAL allows concurrent readers but serializes writers; a handful of
	// connections covers the UI reads plus one streaming writer per turn.
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite.NewDB: ping %q: %w", path, err)
	}

	return db, nil
}
