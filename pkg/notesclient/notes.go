package notesclient

import (
	"context"
	"net/url"
	"slices"
	"strconv"
	"strings"

	"github.com/starford/notely/pkg/pagination"
	"github.com/starford/notely/pkg/querycache"
)

// Cache namespaces.
var (
	KeyNotes = querycache.NewKey("notes")
	KeyLists = KeyNotes.Append("list")
	KeyTags  = querycache.NewKey("tags")
)

// DetailKey is the cache key of one note.
func DetailKey(id string) querycache.Key {
	return KeyNotes.Append("detail", id)
}

// ListKey is the cache key of one page of notes. Filters that select the
// same page map to the same key: defaults are filled in and tag order is
// ignored.
func ListKey(f NoteFilter) querycache.Key {
	return KeyLists.Append(filterID(f, true))
}

func filterID(f NoteFilter, withPage bool) string {
	q := url.Values{}
	if withPage {
		page := f.Page
		if page <= 0 {
			page = pagination.DefaultPage
		}
		q.Set("page", strconv.Itoa(page))
	}
	limit := f.Limit
	if limit <= 0 {
		limit = pagination.DefaultLimit
	}
	q.Set("limit", strconv.Itoa(limit))
	if s := strings.TrimSpace(f.Search); s != "" {
		q.Set("search", s)
	}
	if len(f.Tags) > 0 {
		tags := slices.Clone(f.Tags)
		slices.Sort(tags)
		q.Set("tags", strings.Join(slices.Compact(tags), ","))
	}
	return q.Encode()
}

// Notes is the cached data layer over a Client. Reads go through the cache;
// writes go to the server and then invalidate what they may have changed.
type Notes struct {
	client *Client
	cache  *querycache.Cache
}

// NewNotes creates a data layer backed by cache.
func NewNotes(client *Client, cache *querycache.Cache) *Notes {
	return &Notes{client: client, cache: cache}
}

// Cache returns the underlying cache.
func (n *Notes) Cache() *querycache.Cache { return n.cache }

// List returns one page of notes matching f.
func (n *Notes) List(ctx context.Context, f NoteFilter) (*NoteList, error) {
	return querycache.Fetch(ctx, n.cache, ListKey(f), func(ctx context.Context) (*NoteList, error) {
		return n.client.ListNotes(ctx, f)
	})
}

// Get returns a single note.
func (n *Notes) Get(ctx context.Context, id string) (*Note, error) {
	return querycache.Fetch(ctx, n.cache, DetailKey(id), func(ctx context.Context) (*Note, error) {
		note, _, err := n.client.GetNote(ctx, id)
		return note, err
	})
}

// Tags returns the distinct tags of the caller's notes.
func (n *Notes) Tags(ctx context.Context) ([]string, error) {
	return querycache.Fetch(ctx, n.cache, KeyTags, n.client.Tags)
}

// Create creates a note. Every list and the tag list become stale because
// the new note may belong to any of them.
func (n *Notes) Create(ctx context.Context, in NoteInput) (*Note, error) {
	note, err := n.client.CreateNote(ctx, in)
	if err != nil {
		return nil, err
	}
	n.invalidateLists()
	n.cache.Set(DetailKey(note.ID), note)
	return note, nil
}

// Update patches a note and invalidates its detail, every list and the tags.
func (n *Notes) Update(ctx context.Context, id string, patch NotePatch) (*Note, error) {
	note, err := n.client.UpdateNote(ctx, id, patch, "")
	if err != nil {
		return nil, err
	}
	n.cache.Invalidate(DetailKey(id))
	n.invalidateLists()
	n.cache.Set(DetailKey(id), note)
	return note, nil
}

// Delete deletes a note, drops its detail and invalidates every list and
// the tags.
func (n *Notes) Delete(ctx context.Context, id string) (*Note, error) {
	note, err := n.client.DeleteNote(ctx, id)
	if err != nil {
		return nil, err
	}
	n.cache.Invalidate(DetailKey(id))
	n.cache.Remove(DetailKey(id))
	n.invalidateLists()
	return note, nil
}

func (n *Notes) invalidateLists() {
	n.cache.Invalidate(KeyLists)
	n.cache.Invalidate(KeyTags)
}

// Apply invalidates the cache for a change made elsewhere, e.g. in another
// browser tab, as reported by Client.Events.
func (n *Notes) Apply(ev Event) {
	switch ev.Type {
	case "note.created":
		n.invalidateLists()
	case "note.updated":
		n.cache.Invalidate(DetailKey(ev.ID))
		n.invalidateLists()
	case "note.deleted":
		n.cache.Invalidate(DetailKey(ev.ID))
		n.cache.Remove(DetailKey(ev.ID))
		n.invalidateLists()
	case "tags.updated":
		n.cache.Invalidate(KeyTags)
	}
}

// Watch keeps the cache in sync with server-side changes until ctx is
// cancelled.
func (n *Notes) Watch(ctx context.Context) error {
	return n.client.Events(ctx, n.Apply)
}
