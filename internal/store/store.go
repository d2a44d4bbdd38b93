// Package store provides the SQLite-backed note store.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/mattn/go-sqlite3"
)

const driverName = "sqlite3_notely"

const schemaSQL = `
CREATE TABLE IF NOT EXISTS notes (
	seq        INTEGER PRIMARY KEY AUTOINCREMENT,
	id         TEXT NOT NULL UNIQUE,
	owner_id   TEXT NOT NULL,
	title      TEXT NOT NULL,
	content    TEXT NOT NULL,
	summary    TEXT NOT NULL DEFAULT '',
	tags       TEXT NOT NULL DEFAULT '[]',
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_notes_owner_created ON notes(owner_id, created_at DESC, seq DESC);

CREATE TABLE IF NOT EXISTS note_sources (
	owner_id TEXT NOT NULL,
	path     TEXT NOT NULL,
	checksum TEXT NOT NULL,
	note_id  TEXT NOT NULL,
	version  TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (owner_id, path)
);
`

func init() {
	sql.Register(driverName, &sqlite3.SQLiteDriver{
		ConnectHook: func(conn *sqlite3.SQLiteConn) error {
			return conn.RegisterFunc("contains_fold", containsFold, true)
		},
	})
}

// containsFold is exposed to SQL as contains_fold(haystack, needle).
// SQLite's LIKE only folds ASCII, so search goes through Go instead.
func containsFold(haystack, needle string) int64 {
	if strings.Contains(strings.ToLower(haystack), strings.ToLower(needle)) {
		return 1
	}
	return 0
}

// DB wraps a sql.DB with note operations.
type DB struct {
	conn *sql.DB
}

// Open opens (or creates) the SQLite database and applies the schema.
// Write transactions take the database lock up front (_txlock=immediate) so
// a read-then-write sequence inside one transaction cannot interleave with
// another writer.
func Open(dsn string) (*DB, error) {
	conn, err := sql.Open(driverName, dsn+"?_journal_mode=WAL&_busy_timeout=5000&_txlock=immediate")
	if err != nil {
		return nil, fmt.Errorf("store: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("store: ping: %w", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("store: apply schema: %w", err)
	}
	return &DB{conn: conn}, nil
}

// Ping checks that the database is reachable.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}
