package storage

import (
	"database/sql"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// dsnOptions apply to every pooled connection: foreign keys on, and lock waits of up to
// busyTimeoutMS instead of SQLITE_BUSY while concurrent batches record.
const (
	busyTimeoutMS = 5000
	dsnOptions    = "?_busy_timeout=5000&_foreign_keys=on"
)

// New opens the SQLite ledger at the given path.
func New(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path+dsnOptions)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return db, nil
}

// Migrate creates the ledger tables. It is idempotent.
func Migrate(db *sql.DB) error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			dir TEXT NOT NULL,
			reset INTEGER NOT NULL DEFAULT 0,
			status TEXT NOT NULL,
			documents INTEGER NOT NULL DEFAULT 0,
			chunks INTEGER NOT NULL DEFAULT 0,
			committed INTEGER NOT NULL DEFAULT 0,
			error TEXT NOT NULL DEFAULT '',
			index_version TEXT NOT NULL DEFAULT '',
			started_at TEXT NOT NULL,
			finished_at TEXT
		);`,
		`CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs (started_at);`,
		`CREATE TABLE IF NOT EXISTS batches (
			run_id TEXT NOT NULL,
			batch_index INTEGER NOT NULL,
			size INTEGER NOT NULL,
			committed_at TEXT NOT NULL,
			PRIMARY KEY (run_id, batch_index),
			FOREIGN KEY (run_id) REFERENCES runs(id) ON DELETE CASCADE
		);`,
	}

	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}

	return nil
}
