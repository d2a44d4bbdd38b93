package notesclient

import (
	"github.com/starford/notely/internal/apperr"
	"github.com/starford/notely/internal/models"
)

// Wire types of the API, usable outside this module.
type (
	Note       = models.Note
	NoteFilter = models.NoteFilter
	NoteInput  = models.NoteInput
	NotePatch  = models.NotePatch
	NoteList   = models.NoteList
)

// Errors matched by APIError.Is.
var (
	ErrNotFound        = apperr.ErrNotFound
	ErrConflict        = apperr.ErrConflict
	ErrInvalidInput    = apperr.ErrInvalidInput
	ErrUnauthenticated = apperr.ErrUnauthenticated
)
