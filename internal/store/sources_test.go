package store_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/notely/internal/store"
	"github.com/starford/notely/internal/testutil"
)

func TestSources(t *testing.T) {
	db := testutil.TestDB(t)
	ctx := context.Background()

	empty, err := db.Sources(ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, empty)

	require.NoError(t, db.PutSource(ctx, "alice", store.Source{Path: "a.md", Checksum: "c1", NoteID: "n1", Version: "v1"}))
	require.NoError(t, db.PutSource(ctx, "alice", store.Source{Path: "a.md", Checksum: "c2", NoteID: "n1", Version: "v2"}))
	require.NoError(t, db.PutSource(ctx, "bob", store.Source{Path: "a.md", Checksum: "b", NoteID: "n2"}))

	got, err := db.Sources(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, map[string]store.Source{
		"a.md": {Path: "a.md", Checksum: "c2", NoteID: "n1", Version: "v2"},
	}, got)

	require.NoError(t, db.DeleteSource(ctx, "alice", "a.md"))
	got, err = db.Sources(ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = db.Sources(ctx, "bob")
	require.NoError(t, err)
	assert.Len(t, got, 1)
}
