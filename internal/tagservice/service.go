// Package tagservice lists the tags in use and suggests tags for content.
package tagservice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"unicode/utf8"

	"github.com/starford/notely/internal/apperr"
	"github.com/starford/notely/internal/generator"
)

// MinContentLength is the shortest content tags are generated for.
const MinContentLength = 50

// TagLister returns the distinct tags of an owner's notes.
type TagLister interface {
	Tags(ctx context.Context, owner string) ([]string, error)
}

// Service serves tag listing and generation.
type Service struct {
	tags   TagLister
	gen    generator.Generator
	logger *slog.Logger
}

// NewService creates a new tag service.
func NewService(tags TagLister, gen generator.Generator, logger *slog.Logger) *Service {
	if gen == nil {
		gen = generator.Unavailable{}
	}
	return &Service{tags: tags, gen: gen, logger: logger}
}

// All returns the owner's distinct tags.
func (s *Service) All(ctx context.Context, owner string) ([]string, error) {
	if owner == "" {
		return nil, apperr.ErrUnauthenticated
	}
	return s.tags.Tags(ctx, owner)
}

// Generate suggests up to generator.MaxTags tags for content.
// Content shorter than MinContentLength is rejected before the generator is
// called. An unconfigured generator yields no tags; a failing one is
// reported as apperr.ErrGeneratorFailure.
func (s *Service) Generate(ctx context.Context, content string) ([]string, error) {
	if utf8.RuneCountInString(content) < MinContentLength {
		return nil, apperr.InvalidInput(
			fmt.Errorf("content must be at least %d characters long for tag generation", MinContentLength))
	}

	tags, err := s.gen.Tags(ctx, content)
	switch {
	case errors.Is(err, apperr.ErrGeneratorUnavailable):
		return []string{}, nil
	case err != nil:
		s.logger.Error("tag generation failed", slog.String("error", err.Error()))
		if !errors.Is(err, apperr.ErrGeneratorFailure) {
			err = fmt.Errorf("%w: %w", apperr.ErrGeneratorFailure, err)
		}
		return nil, err
	}
	if len(tags) > generator.MaxTags {
		tags = tags[:generator.MaxTags]
	}
	if tags == nil {
		tags = []string{}
	}
	return tags, nil
}
