// Package storage handles data persistence: the output filesystem and the SQLite call ledger.
package storage

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3" // Blank import: registers the SQLite driver.
	// In Go, importing a package for its side effects (init function) is done
	// with `_`. The sqlite3 package registers itself as a database/sql driver.
)

// The schema lives in a Go constant so no migration files need to exist at runtime.
const schema = `
CREATE TABLE IF NOT EXISTS provider_calls (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id      TEXT NOT NULL,
    item_id     TEXT NOT NULL,
    kind        TEXT NOT NULL,
    provider    TEXT NOT NULL,
    model       TEXT NOT NULL DEFAULT '',
    success     BOOLEAN NOT NULL DEFAULT 0,
    duration_ms INTEGER NOT NULL DEFAULT 0,
    bytes       INTEGER NOT NULL DEFAULT 0,
    error       TEXT,
    created_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_provider_calls_run ON provider_calls(run_id);
CREATE INDEX IF NOT EXISTS idx_provider_calls_item ON provider_calls(item_id);
`

// NewDatabase creates a new SQLite connection and runs migrations.
// sqlx wraps database/sql with convenience methods like StructScan and NamedExec.
//
// Key Go pattern: the constructor creates the resource AND validates it (Ping).
// If anything fails, we return an error and the caller decides what to do.
func NewDatabase(dbPath string) (*sqlx.DB, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	// - WAL mode: allows concurrent reads while writing
	// - busy_timeout: wait up to 5s instead of failing on lock contention
	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=5000", dbPath)

	db, err := sqlx.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Ping actually opens the connection (Open is lazy in database/sql)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	// SQLite performs best with a single writer connection
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return db, nil
}
