package api

import (
	"github.com/starford/notely/internal/models"
)

// CreateNoteRequest is the request body for creating a note.
type CreateNoteRequest = models.NoteInput

// UpdateNoteRequest is the request body for a partial note update.
type UpdateNoteRequest = models.NotePatch

// NoteListResponse is one page of notes with its pagination metadata.
type NoteListResponse = models.NoteList

// GenerateTagsRequest is the request body of POST /api/tags/generate.
type GenerateTagsRequest struct {
	Content string `json:"content" example:"Long enough text to suggest tags for..." validate:"required"`
}

// SendTokenRequest is the request body of POST /api/auth/send-token.
type SendTokenRequest struct {
	Email string `json:"email" example:"me@example.com" validate:"required"`
}

// SendTokenResponse reports whether the identity provider accepted the
// magic-link request.
type SendTokenResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}
