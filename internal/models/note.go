// Package models defines the domain types for notely.
package models

import (
	"time"

	"github.com/starford/notely/pkg/pagination"
)

// Note is a single user-owned note.
type Note struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Summary   string    `json:"summary,omitempty"`
	Tags      []string  `json:"tags"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// NoteFilter selects one page of an owner's notes.
// Search matches title or content case-insensitively; Tags match when a note
// carries at least one of them.
type NoteFilter struct {
	Page   int      `json:"page"`
	Limit  int      `json:"limit"`
	Search string   `json:"search,omitempty"`
	Tags   []string `json:"tags,omitempty"`
}

// NoteInput is the payload for creating a note.
type NoteInput struct {
	Title   string   `json:"title"`
	Content string   `json:"content"`
	Tags    []string `json:"tags,omitempty"`
}

// NotePatch is a partial update; nil fields are left unchanged.
type NotePatch struct {
	Title   *string   `json:"title,omitempty"`
	Content *string   `json:"content,omitempty"`
	Tags    *[]string `json:"tags,omitempty"`
	Summary *string   `json:"summary,omitempty"`
}

// Empty reports whether the patch carries no field.
func (p NotePatch) Empty() bool {
	return p.Title == nil && p.Content == nil && p.Tags == nil && p.Summary == nil
}

// Apply copies the provided fields onto n.
func (p NotePatch) Apply(n *Note) {
	if p.Title != nil {
		n.Title = *p.Title
	}
	if p.Content != nil {
		n.Content = *p.Content
	}
	if p.Tags != nil {
		n.Tags = append([]string{}, (*p.Tags)...)
	}
	if p.Summary != nil {
		n.Summary = *p.Summary
	}
}

// NoteList is one page of notes plus its pagination metadata.
type NoteList struct {
	Data []Note          `json:"data"`
	Meta pagination.Meta `json:"meta"`
}
