package markdown

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/notely/internal/models"
)

func TestParse_FrontmatterAndBody(t *testing.T) {
	input := []byte("---\ntitle: Hello\ntags:\n  - go\n  - notes\n---\n# Hello\nBody text.\n")
	d, err := Parse(input)
	require.NoError(t, err)
	assert.Equal(t, "Hello", d.Title)
	assert.Equal(t, []string{"go", "notes"}, d.Tags)
	assert.Equal(t, "# Hello\nBody text.\n", d.Body)
}

func TestParse_NoFrontmatter(t *testing.T) {
	d, err := Parse([]byte("# Just a heading\nSome text.\n"))
	require.NoError(t, err)
	assert.Nil(t, d.Frontmatter)
	assert.Equal(t, "Just a heading", d.Title)
	assert.Empty(t, d.Tags)
	assert.NotNil(t, d.Tags)
}

func TestParse_InvalidYAMLFallback(t *testing.T) {
	input := "---\n: invalid: yaml: {{{\n---\nBody\n"
	d, err := Parse([]byte(input))
	require.NoError(t, err)
	assert.Nil(t, d.Frontmatter)
	assert.Equal(t, input, d.Body)
}

func TestParse_UnclosedFrontmatter(t *testing.T) {
	input := "---\ntitle: x\nno end"
	d, err := Parse([]byte(input))
	require.NoError(t, err)
	assert.Nil(t, d.Frontmatter)
	assert.Equal(t, input, d.Body)
}

func TestExtractTags_InlineAndFrontmatter(t *testing.T) {
	fm := map[string]any{"tags": []any{"alpha"}}
	tags := extractTags("Some text #beta and #alpha again.", fm)
	assert.Equal(t, []string{"alpha", "beta"}, tags)
}

func TestExtractTags_CommaString(t *testing.T) {
	fm := map[string]any{"tags": "work, #idea, ,work"}
	assert.Equal(t, []string{"work", "idea"}, extractTags("", fm))
}

func TestExtractTags_UnicodeAndCodeBlocks(t *testing.T) {
	body := "Заметка #идея\n```sh\n# comment\necho #notatag\n```\n# Heading\n"
	assert.Equal(t, []string{"идея"}, extractTags(body, nil))
}

func TestDeriveTitle_FrontmatterOverH1(t *testing.T) {
	fm := map[string]any{"title": "FM Title"}
	assert.Equal(t, "FM Title", deriveTitle(fm, "# H1 Title\ntext"))
}

func TestDeriveTitle_H1Fallback(t *testing.T) {
	assert.Equal(t, "My Heading", deriveTitle(nil, "some text\n# My Heading\nmore"))
}

func TestRender_ParsesBack(t *testing.T) {
	created := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)
	n := &models.Note{
		ID:        "abc",
		Title:     "Weekly plan: #1",
		Content:   "First line\n\nSecond paragraph\n\n",
		Tags:      []string{"work", "plans"},
		CreatedAt: created,
		UpdatedAt: created.Add(time.Hour),
	}

	out, err := Render(n)
	require.NoError(t, err)

	d, err := Parse(out)
	require.NoError(t, err)
	assert.Equal(t, "Weekly plan: #1", d.Title)
	assert.Equal(t, "First line\n\nSecond paragraph\n", d.Body)
	assert.Equal(t, []string{"work", "plans"}, d.Tags)
	assert.Equal(t, "abc", d.Frontmatter["id"])
}

func TestRender_NoTags(t *testing.T) {
	out, err := Render(&models.Note{ID: "x", Title: "T", Content: "c"})
	require.NoError(t, err)
	assert.NotContains(t, string(out), "tags:")

	d, err := Parse(out)
	require.NoError(t, err)
	assert.Empty(t, d.Tags)
	assert.Equal(t, "c\n", d.Body)
}
