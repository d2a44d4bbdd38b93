// Package generator produces note summaries and tag suggestions through an
// external large-language-model API.
//
// The variant is chosen once at startup: with credentials New returns a
// Gemini generator, without them an Unavailable one. Callers check
// Available or handle apperr.ErrGeneratorUnavailable; they never probe
// credentials themselves.
package generator

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/starford/notely/internal/apperr"
)

// MaxTags is the number of tags a tag suggestion yields at most.
const MaxTags = 2

// DefaultModel is used when no model is configured.
const DefaultModel = "gemini-1.5-flash-latest"

// DefaultTimeout bounds a single generator call.
const DefaultTimeout = 5 * time.Second

// Generator produces summaries and tags for note content.
type Generator interface {
	// Available reports whether the generator can produce output at all.
	Available() bool
	// Summarize returns a short summary of content.
	Summarize(ctx context.Context, content string) (string, error)
	// Tags returns at most MaxTags tags describing content.
	Tags(ctx context.Context, content string) ([]string, error)
}

// Options configures New.
type Options struct {
	APIKey  string
	Model   string
	Timeout time.Duration
}

// New selects the generator variant for opts.
func New(ctx context.Context, opts Options, logger *slog.Logger) (Generator, error) {
	if opts.APIKey == "" {
		logger.Warn("generator: no API key configured, summaries and tag suggestions are disabled")
		return Unavailable{}, nil
	}
	return NewGemini(ctx, opts, logger)
}

// Unavailable is the generator used when no credentials are configured.
type Unavailable struct{}

// Available always reports false.
func (Unavailable) Available() bool { return false }

// Summarize always fails with apperr.ErrGeneratorUnavailable.
func (Unavailable) Summarize(context.Context, string) (string, error) {
	return "", apperr.ErrGeneratorUnavailable
}

// Tags always fails with apperr.ErrGeneratorUnavailable.
func (Unavailable) Tags(context.Context, string) ([]string, error) {
	return nil, apperr.ErrGeneratorUnavailable
}

// ParseTags turns a comma-separated model reply into at most MaxTags
// distinct, trimmed tags. A leading '#' is dropped.
func ParseTags(reply string) []string {
	out := make([]string, 0, MaxTags)
	seen := make(map[string]struct{}, MaxTags)
	for _, raw := range strings.Split(reply, ",") {
		tag := strings.TrimSpace(raw)
		tag = strings.TrimSpace(strings.TrimLeft(tag, "#"))
		if tag == "" {
			continue
		}
		if _, dup := seen[tag]; dup {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
		if len(out) == MaxTags {
			break
		}
	}
	return out
}
