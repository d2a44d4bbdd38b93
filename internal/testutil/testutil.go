// Package testutil provides shared test helpers for setting up databases and notes.
package testutil

import (
	"context"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/starford/notely/internal/models"
	"github.com/starford/notely/internal/store"
)

// TestDB creates a temporary SQLite database that is automatically cleaned up.
func TestDB(t *testing.T) *store.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "notely-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() {
		os.Remove(dbFile.Name())
		os.Remove(dbFile.Name() + "-wal")
		os.Remove(dbFile.Name() + "-shm")
	})

	db, err := store.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// SeedNote inserts a note for owner directly through the store.
func SeedNote(t *testing.T, db *store.DB, owner, title, content string, created time.Time, tags ...string) models.Note {
	t.Helper()
	if tags == nil {
		tags = []string{}
	}
	n := models.Note{
		ID:        uuid.NewString(),
		UserID:    owner,
		Title:     title,
		Content:   content,
		Tags:      tags,
		CreatedAt: created,
		UpdatedAt: created,
	}
	if err := db.Insert(context.Background(), &n); err != nil {
		t.Fatalf("seed note: %v", err)
	}
	return n
}

// Logger returns a logger that discards everything.
func Logger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// SignToken returns an HS256 access token for owner valid for one hour.
func SignToken(t *testing.T, secret, owner string) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   owner,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	signed, err := tok.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}
