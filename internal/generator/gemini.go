package generator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/starford/notely/internal/apperr"
)

const (
	summaryPrompt = "Please generate a concise summary (maximum 2 sentences) of the following note:\n\n"
	tagsPrompt    = "Given the following content, generate exactly two relevant tags that best categorize or describe it. " +
		"Return only the tags as a comma-separated list, no additional text:\n\n"
)

// textModel sends one prompt and returns the model's text reply.
type textModel interface {
	generate(ctx context.Context, prompt string) (string, error)
}

// Gemini generates text with the Gemini API.
type Gemini struct {
	model   textModel
	timeout time.Duration
	logger  *slog.Logger
}

// NewGemini creates a Gemini generator from opts.
func NewGemini(ctx context.Context, opts Options, logger *slog.Logger) (*Gemini, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  opts.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("generator: create gemini client: %w", err)
	}
	model := opts.Model
	if model == "" {
		model = DefaultModel
	}
	logger.Info("generator: gemini enabled", slog.String("model", model))
	return newGemini(&genaiModel{client: client, name: model}, opts.Timeout, logger), nil
}

func newGemini(m textModel, timeout time.Duration, logger *slog.Logger) *Gemini {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Gemini{model: m, timeout: timeout, logger: logger}
}

// Available always reports true.
func (g *Gemini) Available() bool { return true }

// Summarize asks the model for a summary of at most two sentences.
func (g *Gemini) Summarize(ctx context.Context, content string) (string, error) {
	reply, err := g.call(ctx, summaryPrompt+content)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(reply), nil
}

// Tags asks the model for two tags and parses its reply.
func (g *Gemini) Tags(ctx context.Context, content string) ([]string, error) {
	reply, err := g.call(ctx, tagsPrompt+content)
	if err != nil {
		return nil, err
	}
	return ParseTags(reply), nil
}

// call runs one prompt under the configured timeout. Any failure, including
// the timeout, is reported as apperr.ErrGeneratorFailure.
func (g *Gemini) call(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	reply, err := g.model.generate(ctx, prompt)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return "", fmt.Errorf("%w: timed out after %s", apperr.ErrGeneratorFailure, g.timeout)
		}
		return "", fmt.Errorf("%w: %w", apperr.ErrGeneratorFailure, err)
	}
	return reply, nil
}

type genaiModel struct {
	client *genai.Client
	name   string
}

func (m *genaiModel) generate(ctx context.Context, prompt string) (string, error) {
	resp, err := m.client.Models.GenerateContent(ctx, m.name, genai.Text(prompt), nil)
	if err != nil {
		return "", err
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", errors.New("empty response")
	}
	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part != nil {
			sb.WriteString(part.Text)
		}
	}
	return sb.String(), nil
}
