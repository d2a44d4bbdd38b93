package store

import (
	"context"
	"fmt"
)

// Source links a markdown file of a vault directory to the note it was
// imported into or exported from.
type Source struct {
	Path     string
	Checksum string
	NoteID   string
	// Version is the note's ETag when the file and the note were last
	// in sync.
	Version string
}

// Sources returns the recorded sources of owner keyed by path.
func (db *DB) Sources(ctx context.Context, owner string) (map[string]Source, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT path, checksum, note_id, version FROM note_sources WHERE owner_id = ?`, owner)
	if err != nil {
		return nil, fmt.Errorf("store: sources: %w", err)
	}
	defer rows.Close()

	out := make(map[string]Source)
	for rows.Next() {
		var s Source
		if err := rows.Scan(&s.Path, &s.Checksum, &s.NoteID, &s.Version); err != nil {
			return nil, err
		}
		out[s.Path] = s
	}
	return out, rows.Err()
}

// PutSource records or replaces the source of path for owner.
func (db *DB) PutSource(ctx context.Context, owner string, s Source) error {
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO note_sources (owner_id, path, checksum, note_id, version)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(owner_id, path) DO UPDATE SET
			checksum = excluded.checksum,
			note_id  = excluded.note_id,
			version  = excluded.version
	`, owner, s.Path, s.Checksum, s.NoteID, s.Version)
	if err != nil {
		return fmt.Errorf("store: put source: %w", err)
	}
	return nil
}

// DeleteSource forgets the source of path for owner.
func (db *DB) DeleteSource(ctx context.Context, owner, path string) error {
	if _, err := db.conn.ExecContext(ctx,
		`DELETE FROM note_sources WHERE owner_id = ? AND path = ?`, owner, path); err != nil {
		return fmt.Errorf("store: delete source: %w", err)
	}
	return nil
}
