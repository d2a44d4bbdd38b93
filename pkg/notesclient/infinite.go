package notesclient

import (
	"context"

	"github.com/starford/notely/pkg/querycache"
)

// Pages is the merged result of an infinite list, in fetch order.
type Pages struct {
	Pages []NoteList
}

// Notes returns the notes of every fetched page.
func (p Pages) Notes() []Note {
	var out []Note
	for _, pg := range p.Pages {
		out = append(out, pg.Data...)
	}
	return out
}

// HasNextPage reports whether another page exists after the last one.
func (p Pages) HasNextPage() bool {
	if len(p.Pages) == 0 {
		return false
	}
	return p.Pages[len(p.Pages)-1].Meta.HasNext()
}

// Infinite is a paged list that grows one page at a time. It lives under
// the list namespace, so any note mutation resets it to its first page.
type Infinite struct {
	notes  *Notes
	filter NoteFilter
	key    querycache.Key
}

// Infinite returns the infinite list for f. The page of f is ignored.
func (n *Notes) Infinite(f NoteFilter) *Infinite {
	f.Page = 0
	return &Infinite{
		notes:  n,
		filter: f,
		key:    KeyLists.Append("infinite", filterID(f, false)),
	}
}

// Key returns the cache key of the list.
func (l *Infinite) Key() querycache.Key { return l.key }

func (l *Infinite) page(ctx context.Context, page int) (NoteList, error) {
	f := l.filter
	f.Page = page
	list, err := l.notes.client.ListNotes(ctx, f)
	if err != nil {
		return NoteList{}, err
	}
	return *list, nil
}

// Pages returns the pages fetched so far, loading the first page when
// nothing is cached or the cache was invalidated.
func (l *Infinite) Pages(ctx context.Context) (Pages, error) {
	return querycache.Fetch(ctx, l.notes.cache, l.key, func(ctx context.Context) (Pages, error) {
		first, err := l.page(ctx, 1)
		if err != nil {
			return Pages{}, err
		}
		return Pages{Pages: []NoteList{first}}, nil
	})
}

// FetchNextPage appends the page after the last fetched one. It is a no-op
// when the last page is the final one. After an invalidation the list
// starts over from the first page.
func (l *Infinite) FetchNextPage(ctx context.Context) (Pages, error) {
	st := l.notes.cache.State(l.key)
	if _, ok := st.Data.(Pages); !ok || st.Stale {
		return l.Pages(ctx)
	}

	return querycache.Extend(ctx, l.notes.cache, l.key, func(ctx context.Context, cur Pages) (Pages, error) {
		if len(cur.Pages) == 0 {
			first, err := l.page(ctx, 1)
			if err != nil {
				return cur, err
			}
			return Pages{Pages: []NoteList{first}}, nil
		}
		next, ok := cur.Pages[len(cur.Pages)-1].Meta.NextPage()
		if !ok {
			return cur, nil
		}
		pg, err := l.page(ctx, next)
		if err != nil {
			return cur, err
		}
		merged := make([]NoteList, 0, len(cur.Pages)+1)
		merged = append(merged, cur.Pages...)
		return Pages{Pages: append(merged, pg)}, nil
	})
}
