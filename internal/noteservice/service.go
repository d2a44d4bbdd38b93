// Package noteservice implements the owner-scoped notes query and mutation service.
package noteservice

import (
	"context"
	"log/slog"
	"time"
	"unicode/utf8"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"

	"github.com/starford/notely/internal/apperr"
	"github.com/starford/notely/internal/checksum"
	"github.com/starford/notely/internal/generator"
	"github.com/starford/notely/internal/models"
	"github.com/starford/notely/internal/store"
	"github.com/starford/notely/pkg/pagination"
)

// Note event kinds passed to an EventPublisher.
const (
	EventCreated = "created"
	EventUpdated = "updated"
	EventDeleted = "deleted"
)

// EventPublisher is notified after every successful mutation.
type EventPublisher interface {
	PublishNoteEvent(owner, kind, id string)
}

// Config holds the tunables of the service.
type Config struct {
	DefaultLimit int
	MaxLimit     int
	// SummaryThreshold is the content length (in characters) above which a
	// summary is generated on create.
	SummaryThreshold int
}

// DefaultConfig returns the canonical service settings.
func DefaultConfig() Config {
	return Config{
		DefaultLimit:     pagination.DefaultLimit,
		MaxLimit:         100,
		SummaryThreshold: 200,
	}
}

// Service coordinates the note repository and the generator.
type Service struct {
	repo   store.NoteRepository
	gen    generator.Generator
	cfg    Config
	logger *slog.Logger
	events EventPublisher
	now    func() time.Time
}

// NewService creates a new note service.
func NewService(repo store.NoteRepository, gen generator.Generator, cfg Config, logger *slog.Logger) *Service {
	if gen == nil {
		gen = generator.Unavailable{}
	}
	return &Service{
		repo:   repo,
		gen:    gen,
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
	}
}

// WithEvents sets the publisher notified of note mutations.
func (s *Service) WithEvents(p EventPublisher) *Service {
	s.events = p
	return s
}

// List returns one page of the owner's notes matching f.
// Zero Page or Limit select the defaults.
func (s *Service) List(ctx context.Context, owner string, f models.NoteFilter) (*models.NoteList, error) {
	if owner == "" {
		return nil, apperr.ErrUnauthenticated
	}
	if f.Page == 0 {
		f.Page = pagination.DefaultPage
	}
	if f.Limit == 0 {
		f.Limit = s.cfg.DefaultLimit
	}
	if err := validation.ValidateStruct(&f,
		validation.Field(&f.Page, validation.Min(1)),
		validation.Field(&f.Limit, validation.Min(1), validation.Max(s.cfg.MaxLimit)),
	); err != nil {
		return nil, apperr.InvalidInput(err)
	}

	notes, total, err := s.repo.List(ctx, owner, f)
	if err != nil {
		return nil, err
	}
	return &models.NoteList{
		Data: notes,
		Meta: pagination.NewMeta(total, f.Page, f.Limit),
	}, nil
}

// Get returns a single note of the owner.
func (s *Service) Get(ctx context.Context, owner, id string) (*models.Note, error) {
	if owner == "" {
		return nil, apperr.ErrUnauthenticated
	}
	return s.repo.Get(ctx, owner, id)
}

// Create stores a new note for owner. Long content gets a generated summary;
// a generator that is unavailable or fails leaves the summary empty.
func (s *Service) Create(ctx context.Context, owner string, in models.NoteInput) (*models.Note, error) {
	if owner == "" {
		return nil, apperr.ErrUnauthenticated
	}
	if err := validation.ValidateStruct(&in,
		validation.Field(&in.Title, validation.Required),
		validation.Field(&in.Content, validation.Required),
		validation.Field(&in.Tags, validation.Each(validation.Required)),
	); err != nil {
		return nil, apperr.InvalidInput(err)
	}

	now := s.now().UTC()
	n := &models.Note{
		ID:        uuid.NewString(),
		UserID:    owner,
		Title:     in.Title,
		Content:   in.Content,
		Tags:      append([]string{}, in.Tags...),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if utf8.RuneCountInString(in.Content) > s.cfg.SummaryThreshold {
		n.Summary = s.summarize(ctx, n.Content)
	}

	if err := s.repo.Insert(ctx, n); err != nil {
		return nil, err
	}
	s.publish(owner, EventCreated, n.ID)
	return n, nil
}

func (s *Service) summarize(ctx context.Context, content string) string {
	if !s.gen.Available() {
		return ""
	}
	summary, err := s.gen.Summarize(ctx, content)
	if err != nil {
		s.logger.Warn("summary generation failed, storing note without summary",
			slog.String("error", err.Error()))
		return ""
	}
	return summary
}

// Update applies patch to the owner's note. When ifMatch is non-empty it
// must equal the note's current ETag. UpdatedAt is refreshed on every
// successful update, even for an empty patch.
func (s *Service) Update(ctx context.Context, owner, id string, patch models.NotePatch, ifMatch string) (*models.Note, error) {
	if owner == "" {
		return nil, apperr.ErrUnauthenticated
	}
	if err := validation.ValidateStruct(&patch,
		validation.Field(&patch.Title, validation.NilOrNotEmpty),
		validation.Field(&patch.Content, validation.NilOrNotEmpty),
	); err != nil {
		return nil, apperr.InvalidInput(err)
	}
	if patch.Tags != nil {
		if err := validation.Validate(*patch.Tags, validation.Each(validation.Required)); err != nil {
			return nil, apperr.InvalidInput(validation.Errors{"tags": err})
		}
	}

	n, err := s.repo.Update(ctx, owner, id, func(n *models.Note) error {
		if ifMatch != "" && ifMatch != ETag(n) {
			return apperr.ErrConflict
		}
		patch.Apply(n)
		now := s.now().UTC()
		if now.Before(n.CreatedAt) {
			now = n.CreatedAt
		}
		n.UpdatedAt = now
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.publish(owner, EventUpdated, n.ID)
	return n, nil
}

// Delete permanently removes the owner's note and returns it.
func (s *Service) Delete(ctx context.Context, owner, id string) (*models.Note, error) {
	if owner == "" {
		return nil, apperr.ErrUnauthenticated
	}
	n, err := s.repo.Delete(ctx, owner, id)
	if err != nil {
		return nil, err
	}
	s.publish(owner, EventDeleted, n.ID)
	return n, nil
}

func (s *Service) publish(owner, kind, id string) {
	if s.events != nil {
		s.events.PublishNoteEvent(owner, kind, id)
	}
}

// ETag returns the entity tag of n's current state.
func ETag(n *models.Note) string {
	return checksum.JSON(n)
}
