// Package storage provides the embedded SQLite storage layer for Gatehouse.
//
// It holds draft records, structured gate results, and an append-only audit
// log of pipeline transitions. SQLite runs in WAL mode with a busy timeout so
// concurrent pipeline instances contend gracefully.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/url"

	_ "modernc.org/sqlite"
)

// DB wraps the embedded database handle.
type DB struct {
	sql    *sql.DB
	logger *slog.Logger
}

// Open opens (creating if needed) the SQLite database at path.
// ":memory:" is accepted for tests.
func Open(ctx context.Context, path string, logger *slog.Logger) (*DB, error) {
	dsn := "file:" + url.PathEscape(path) +
		"?_pragma=journal_mode(WAL)" +
		"&_pragma=busy_timeout(5000)" +
		"&_pragma=foreign_keys(1)"

	handle, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("storage: open %s: %w", path, err)
	}
	// A single writer keeps SQLITE_BUSY contention out of the common path.
	handle.SetMaxOpenConns(1)

	if err := handle.PingContext(ctx); err != nil {
		handle.Close()
		return nil, fmt.Errorf("storage: ping %s: %w", path, err)
	}

	return &DB{sql: handle, logger: logger}, nil
}

// Ping checks connectivity to the database.
func (db *DB) Ping(ctx context.Context) error {
	return db.sql.PingContext(ctx)
}

// Close shuts down the database handle.
func (db *DB) Close() error {
	return db.sql.Close()
}
