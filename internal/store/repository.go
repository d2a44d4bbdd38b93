package store

import (
	"context"

	"github.com/starford/notely/internal/models"
)

// NoteRepository is the persistence contract the services depend on.
// Every read and write is scoped to an owner.
type NoteRepository interface {
	Insert(ctx context.Context, n *models.Note) error
	Get(ctx context.Context, owner, id string) (*models.Note, error)
	List(ctx context.Context, owner string, f models.NoteFilter) ([]models.Note, int, error)
	Update(ctx context.Context, owner, id string, mutate func(*models.Note) error) (*models.Note, error)
	Delete(ctx context.Context, owner, id string) (*models.Note, error)
	Tags(ctx context.Context, owner string) ([]string, error)
}

// Verify *DB satisfies NoteRepository at compile time.
var _ NoteRepository = (*DB)(nil)
