// Package sqlite persists the ledger in a single SQLite database via the
// cgo-free modernc driver. Schema lives here as migration statements;
// entry operations live in entries.go.
package sqlite

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// DB wraps the SQLite handle.
type DB struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and applies migrations.
// Use ":memory:" for an ephemeral database in tests.
func Open(path string) (*DB, error) {
	handle, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// Single writer; SQLite serializes writes anyway.
	handle.SetMaxOpenConns(1)

	for _, pragma := range []string{
		`PRAGMA journal_mode = WAL`,
		`PRAGMA foreign_keys = ON`,
		`PRAGMA busy_timeout = 5000`,
	} {
		if _, err := handle.Exec(pragma); err != nil {
			handle.Close()
			return nil, fmt.Errorf("pragma: %w", err)
		}
	}

	db := &DB{db: handle}
	if err := db.migrate(); err != nil {
		handle.Close()
		return nil, err
	}
	return db, nil
}

// Close closes the underlying handle.
func (db *DB) Close() error { return db.db.Close() }

// ─── Schema ─────────────────────────────────────────────────────────────────

// Migrations returns the schema migration statements.
// Each string is a single SQL statement (SQLite executes one at a time).
//
// Note: there is deliberately NO unique constraint over the identity-key
// columns. Duplicate detection is application-level; concurrent ingestion
// runs can race, and the read path plus `tally dedupe` repair after the
// fact.
func Migrations() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS entries (
			id               TEXT PRIMARY KEY,
			occurred_on      TEXT NOT NULL,
			occurred_at      TEXT,
			amount           TEXT NOT NULL,
			direction        TEXT NOT NULL,
			account          TEXT NOT NULL,
			description      TEXT NOT NULL DEFAULT '',
			user_description TEXT NOT NULL DEFAULT '',
			external_ref     TEXT NOT NULL DEFAULT '',
			source_channel   TEXT NOT NULL DEFAULT '',
			source_signature TEXT NOT NULL DEFAULT '',
			is_shared        INTEGER NOT NULL DEFAULT 0,
			split_json       TEXT,
			group_id         TEXT NOT NULL DEFAULT '',
			is_group_rep     INTEGER NOT NULL DEFAULT 0,
			is_split_member  INTEGER NOT NULL DEFAULT 0,
			is_deleted       INTEGER NOT NULL DEFAULT 0,
			deleted_at       TEXT,
			created_at       TEXT NOT NULL,
			updated_at       TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_entries_date_account ON entries(occurred_on, account)`,
		`CREATE INDEX IF NOT EXISTS idx_entries_group ON entries(group_id)`,
		`CREATE INDEX IF NOT EXISTS idx_entries_external ON entries(external_ref)`,
		`CREATE INDEX IF NOT EXISTS idx_entries_deleted ON entries(is_deleted)`,
	}
}

func (db *DB) migrate() error {
	for _, stmt := range Migrations() {
		if _, err := db.db.Exec(stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}
