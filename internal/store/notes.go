package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/starford/notely/internal/apperr"
	"github.com/starford/notely/internal/models"
	"github.com/starford/notely/pkg/pagination"
)

const noteColumns = `id, owner_id, title, content, summary, tags, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func scanNote(row rowScanner) (*models.Note, error) {
	var (
		n    models.Note
		tags string
	)
	if err := row.Scan(&n.ID, &n.UserID, &n.Title, &n.Content, &n.Summary, &tags, &n.CreatedAt, &n.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(tags), &n.Tags); err != nil {
		return nil, fmt.Errorf("store: decode tags of %s: %w", n.ID, err)
	}
	if n.Tags == nil {
		n.Tags = []string{}
	}
	return &n, nil
}

func encodeTags(tags []string) (string, error) {
	if tags == nil {
		tags = []string{}
	}
	b, err := json.Marshal(tags)
	if err != nil {
		return "", fmt.Errorf("store: encode tags: %w", err)
	}
	return string(b), nil
}

// Insert stores a new note. Timestamps are persisted in UTC so that
// created_at sorts chronologically.
func (db *DB) Insert(ctx context.Context, n *models.Note) error {
	tags, err := encodeTags(n.Tags)
	if err != nil {
		return err
	}
	_, err = db.conn.ExecContext(ctx, `
		INSERT INTO notes (id, owner_id, title, content, summary, tags, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, n.ID, n.UserID, n.Title, n.Content, n.Summary, tags, n.CreatedAt.UTC(), n.UpdatedAt.UTC())
	if err != nil {
		return fmt.Errorf("store: insert note: %w", err)
	}
	return nil
}

// Get returns the note with id owned by owner.
func (db *DB) Get(ctx context.Context, owner, id string) (*models.Note, error) {
	return getNote(ctx, db.conn, owner, id)
}

func getNote(ctx context.Context, q queryer, owner, id string) (*models.Note, error) {
	row := q.QueryRowContext(ctx, `SELECT `+noteColumns+` FROM notes WHERE id = ? AND owner_id = ?`, id, owner)
	n, err := scanNote(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: get note: %w", err)
	}
	return n, nil
}

// whereClause builds the owner-scoped filter predicate shared by count and select.
func whereClause(owner string, f models.NoteFilter) (string, []any) {
	clauses := []string{"owner_id = ?"}
	args := []any{owner}

	if f.Search != "" {
		clauses = append(clauses, "(contains_fold(title, ?) = 1 OR contains_fold(content, ?) = 1)")
		args = append(args, f.Search, f.Search)
	}
	if len(f.Tags) > 0 {
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(f.Tags)), ",")
		clauses = append(clauses,
			"EXISTS (SELECT 1 FROM json_each(notes.tags) WHERE json_each.value IN ("+placeholders+"))")
		for _, t := range f.Tags {
			args = append(args, t)
		}
	}
	return strings.Join(clauses, " AND "), args
}

// List returns one page of the owner's notes matching f, newest first, and
// the total number of matches. f must already be normalized (Page, Limit >= 1).
func (db *DB) List(ctx context.Context, owner string, f models.NoteFilter) ([]models.Note, int, error) {
	where, args := whereClause(owner, f)

	var total int
	if err := db.conn.QueryRowContext(ctx, `SELECT count(*) FROM notes WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("store: count notes: %w", err)
	}

	pageArgs := append(args, f.Limit, pagination.Offset(f.Page, f.Limit))
	rows, err := db.conn.QueryContext(ctx, `
		SELECT `+noteColumns+`
		FROM notes
		WHERE `+where+`
		ORDER BY created_at DESC, seq DESC
		LIMIT ? OFFSET ?
	`, pageArgs...)
	if err != nil {
		return nil, 0, fmt.Errorf("store: list notes: %w", err)
	}
	defer rows.Close()

	out := []models.Note{}
	for rows.Next() {
		n, err := scanNote(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *n)
	}
	return out, total, rows.Err()
}

// Update loads the owner's note, lets mutate change it and writes it back,
// all inside one transaction. The UPDATE repeats the owner predicate; when
// it touches no row the note is reported as not found.
func (db *DB) Update(ctx context.Context, owner, id string, mutate func(*models.Note) error) (*models.Note, error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("store: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	n, err := getNote(ctx, tx, owner, id)
	if err != nil {
		return nil, err
	}
	if err := mutate(n); err != nil {
		return nil, err
	}
	tags, err := encodeTags(n.Tags)
	if err != nil {
		return nil, err
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE notes
		SET title = ?, content = ?, summary = ?, tags = ?, updated_at = ?
		WHERE id = ? AND owner_id = ?
	`, n.Title, n.Content, n.Summary, tags, n.UpdatedAt.UTC(), id, owner)
	if err != nil {
		return nil, fmt.Errorf("store: update note: %w", err)
	}
	if affected, err := res.RowsAffected(); err != nil {
		return nil, fmt.Errorf("store: update note: %w", err)
	} else if affected == 0 {
		return nil, apperr.ErrNotFound
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("store: commit update: %w", err)
	}
	if n.Tags == nil {
		n.Tags = []string{}
	}
	return n, nil
}

// Delete removes the owner's note and returns it as it was before deletion.
func (db *DB) Delete(ctx context.Context, owner, id string) (*models.Note, error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("store: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	n, err := getNote(ctx, tx, owner, id)
	if err != nil {
		return nil, err
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM notes WHERE id = ? AND owner_id = ?`, id, owner)
	if err != nil {
		return nil, fmt.Errorf("store: delete note: %w", err)
	}
	if affected, err := res.RowsAffected(); err != nil {
		return nil, fmt.Errorf("store: delete note: %w", err)
	} else if affected == 0 {
		return nil, apperr.ErrNotFound
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("store: commit delete: %w", err)
	}
	return n, nil
}

// Tags returns the distinct tags used across the owner's notes, sorted.
func (db *DB) Tags(ctx context.Context, owner string) ([]string, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT DISTINCT t.value
		FROM notes, json_each(notes.tags) AS t
		WHERE notes.owner_id = ? AND t.value <> ''
		ORDER BY t.value
	`, owner)
	if err != nil {
		return nil, fmt.Errorf("store: tags: %w", err)
	}
	defer rows.Close()

	out := []string{}
	for rows.Next() {
		var tag string
		if err := rows.Scan(&tag); err != nil {
			return nil, err
		}
		out = append(out, tag)
	}
	return out, rows.Err()
}
