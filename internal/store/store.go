// Package store implements component C7: the durable relational
// persistence layer for sessions, layers, objects, and the location
// stream, plus the session-leasing operations of §4.7/§12.2.
package store

import (
	"database/sql"
	"embed"
	"fmt"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// DB wraps a sqlite connection, mirroring the teacher's own thin
// embedding of *sql.DB rather than a heavier ORM layer.
type DB struct {
	*sql.DB
}

// applyPragmas sets the WAL/synchronous/busy-timeout pragmas the
// teacher applies to every connection regardless of how it was opened.
func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA temp_store = MEMORY",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	return nil
}

// Open opens (creating if necessary) a sqlite database at path, applies
// the standard pragmas, and runs every pending migration. path may be
// ":memory:" for tests, per the teacher's own test_helpers.go idiom of
// a fresh in-memory store per test rather than a shared fixture file.
func Open(path string) (*DB, error) {
	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if path == ":memory:" {
		// A single in-memory sqlite file is only shared across
		// connections sharing one handle; pooling would otherwise
		// hand out a second, empty database to the next query.
		sqlDB.SetMaxOpenConns(1)
	}

	db := &DB{sqlDB}
	if err := applyPragmas(sqlDB); err != nil {
		return nil, err
	}
	if err := db.MigrateUp(); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return db, nil
}
