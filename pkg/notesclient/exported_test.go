package notesclient_test

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/starford/notely/pkg/notesclient"
)

// Uses only the exported surface, as a caller outside the module would.
func TestExportedSurface(t *testing.T) {
	title := "renamed"
	patch := notesclient.NotePatch{Title: &title}
	assert.False(t, patch.Empty())

	q := notesclient.FilterQuery(notesclient.NoteFilter{Page: 2, Search: "go", Tags: []string{"a", "b"}})
	assert.Equal(t, "2", q.Get("page"))
	assert.Equal(t, "go", q.Get("search"))

	cases := map[int]error{
		http.StatusBadRequest:         notesclient.ErrInvalidInput,
		http.StatusUnauthorized:       notesclient.ErrUnauthenticated,
		http.StatusNotFound:           notesclient.ErrNotFound,
		http.StatusPreconditionFailed: notesclient.ErrConflict,
	}
	for status, want := range cases {
		var err error = &notesclient.APIError{Status: status, Message: "x"}
		assert.True(t, errors.Is(err, want), "status %d", status)
	}
	assert.False(t, errors.Is(&notesclient.APIError{Status: http.StatusInternalServerError}, notesclient.ErrNotFound))
}
