// Package querycache is a client-side query cache: it stores the result of
// each query under a hierarchical key, coalesces concurrent loads of one
// key and drops results that were invalidated while in flight.
package querycache

import (
	"context"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Status is the lifecycle state of a cached query.
type Status int

const (
	StatusIdle Status = iota
	StatusLoading
	StatusSuccess
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusLoading:
		return "loading"
	case StatusSuccess:
		return "success"
	case StatusError:
		return "error"
	default:
		return "idle"
	}
}

// State is a snapshot of one cache entry.
type State struct {
	Status    Status
	Data      any
	Err       error
	Stale     bool
	UpdatedAt time.Time
}

type entry struct {
	key       Key
	status    Status
	data      any
	hasData   bool
	err       error
	stale     bool
	updatedAt time.Time
	// gen is bumped by every invalidation. A load started under an older
	// generation is not committed.
	gen      uint64
	fetchGen uint64
}

// Cache holds query results. The zero value is not usable; call New.
type Cache struct {
	mu        sync.Mutex
	entries   map[string]*entry
	group     singleflight.Group
	flights   map[string]*flight
	flightSeq uint64
	staleTime time.Duration
	now       func() time.Time
}

// Option configures a Cache.
type Option func(*Cache)

// WithStaleTime keeps successful results fresh for d. The default of zero
// keeps them fresh until invalidated.
func WithStaleTime(d time.Duration) Option {
	return func(c *Cache) { c.staleTime = d }
}

// New creates an empty cache.
func New(opts ...Option) *Cache {
	c := &Cache{
		entries: make(map[string]*entry),
		flights: make(map[string]*flight),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// entryLocked returns the entry for key, creating an idle one.
func (c *Cache) entryLocked(key Key) *entry {
	id := key.String()
	e, ok := c.entries[id]
	if !ok {
		e = &entry{key: append(Key(nil), key...)}
		c.entries[id] = e
	}
	return e
}

func (c *Cache) freshLocked(e *entry) bool {
	if e.status != StatusSuccess || e.stale {
		return false
	}
	return c.staleTime <= 0 || c.now().Sub(e.updatedAt) < c.staleTime
}

// State returns a snapshot of the entry under key.
func (c *Cache) State(key Key) State {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key.String()]
	if !ok {
		return State{Status: StatusIdle}
	}
	return State{
		Status:    e.status,
		Data:      e.data,
		Err:       e.err,
		Stale:     e.stale || (e.status == StatusSuccess && !c.freshLocked(e)),
		UpdatedAt: e.updatedAt,
	}
}

// Invalidate marks every entry under prefix stale and discards loads of
// those entries that are still in flight. It returns the number of entries
// affected.
func (c *Cache) Invalidate(prefix Key) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, e := range c.entries {
		if e.key.HasPrefix(prefix) {
			e.gen++
			e.stale = true
			n++
		}
	}
	return n
}

// Remove drops every entry under prefix.
func (c *Cache) Remove(prefix Key) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, e := range c.entries {
		if e.key.HasPrefix(prefix) {
			delete(c.entries, id)
		}
	}
}

// Set stores data under key as a fresh successful result.
func (c *Cache) Set(key Key, data any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e := c.entryLocked(key)
	e.gen++
	c.commitLocked(e, data, nil)
}

func (c *Cache) commitLocked(e *entry, data any, err error) {
	if err != nil {
		e.status = StatusError
		e.err = err
		return
	}
	e.status = StatusSuccess
	e.data = data
	e.hasData = true
	e.err = nil
	e.stale = false
	e.updatedAt = c.now()
}

// begin marks the entry under key as loading and returns its generation
// and current data.
func (c *Cache) begin(key Key) (uint64, any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e := c.entryLocked(key)
	e.status = StatusLoading
	e.fetchGen = e.gen
	return e.gen, e.data
}

// finish commits a load result if the entry was not invalidated since gen.
// A load aborted by its context is never committed.
func (c *Cache) finish(ctx context.Context, key Key, gen uint64, data any, err error) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key.String()]
	if !ok {
		return false
	}
	if e.gen != gen || ctx.Err() != nil {
		// Leave the loading state only if no newer load runs.
		if e.status == StatusLoading && e.fetchGen == gen {
			if e.hasData {
				e.status = StatusSuccess
			} else {
				e.status = StatusIdle
			}
		}
		return false
	}
	c.commitLocked(e, data, err)
	return true
}

func flightKey(key Key, gen uint64, kind string) string {
	return key.String() + "#" + strconv.FormatUint(gen, 10) + "#" + kind
}

// Peek returns the data cached under key, fresh or not.
func Peek[T any](c *Cache, key Key) (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var zero T
	e, ok := c.entries[key.String()]
	if !ok || !e.hasData {
		return zero, false
	}
	v, ok := e.data.(T)
	if !ok {
		return zero, false
	}
	return v, true
}

// Fetch returns the fresh result cached under key or loads it with fn.
// Concurrent calls for the same key and generation share one call of fn.
// The result is returned to every caller but only cached when key was not
// invalidated while fn ran.
func Fetch[T any](ctx context.Context, c *Cache, key Key, fn func(context.Context) (T, error)) (T, error) {
	c.mu.Lock()
	if e, ok := c.entries[key.String()]; ok && c.freshLocked(e) {
		if v, ok := e.data.(T); ok {
			c.mu.Unlock()
			return v, nil
		}
	}
	c.mu.Unlock()

	gen, _ := c.begin(key)
	return share[T](ctx, c, flightKey(key, gen, "fetch"), func(fctx context.Context) (any, error) {
		v, err := fn(fctx)
		if err != nil {
			c.finish(fctx, key, gen, nil, err)
			return nil, err
		}
		c.finish(fctx, key, gen, v, nil)
		return v, nil
	})
}

// Extend grows the successful result cached under key: fn receives the
// current value and returns the next one. Concurrent calls for the same
// key and generation share one call of fn. When key holds no successful
// result, Extend behaves like Fetch with fn receiving the zero value.
func Extend[T any](ctx context.Context, c *Cache, key Key, fn func(ctx context.Context, current T) (T, error)) (T, error) {
	gen, data := c.begin(key)
	current, _ := data.(T)
	return share[T](ctx, c, flightKey(key, gen, "extend"), func(fctx context.Context) (any, error) {
		v, err := fn(fctx, current)
		if err != nil {
			c.finish(fctx, key, gen, nil, err)
			return nil, err
		}
		c.finish(fctx, key, gen, v, nil)
		return v, nil
	})
}

// flight is the context a shared load runs under. It is cancelled once
// every caller waiting on the load has gone.
type flight struct {
	// id names the singleflight call. A flight cancelled while its load
	// still runs is replaced by one with a new id.
	id      string
	ctx     context.Context
	cancel  context.CancelFunc
	waiters int
}

func (c *Cache) join(ctx context.Context, id string) *flight {
	c.mu.Lock()
	defer c.mu.Unlock()
	f, ok := c.flights[id]
	if !ok {
		c.flightSeq++
		fctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		f = &flight{
			id:     id + "#" + strconv.FormatUint(c.flightSeq, 10),
			ctx:    fctx,
			cancel: cancel,
		}
		c.flights[id] = f
	}
	f.waiters++
	return f
}

func (c *Cache) leave(id string, f *flight) {
	c.mu.Lock()
	defer c.mu.Unlock()
	f.waiters--
	if f.waiters > 0 {
		return
	}
	f.cancel()
	if c.flights[id] == f {
		delete(c.flights, id)
	}
}

// share runs load once per id for all concurrent callers. A caller whose
// ctx ends stops waiting without failing the others.
func share[T any](ctx context.Context, c *Cache, id string, load func(context.Context) (any, error)) (T, error) {
	var zero T
	f := c.join(ctx, id)
	defer c.leave(id, f)

	ch := c.group.DoChan(f.id, func() (any, error) { return load(f.ctx) })
	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Err
		}
		return res.Val.(T), nil
	}
}
