package notesclient

import (
	"context"
	"errors"
	"sync"
)

// ErrSuperseded is returned by View.SetFilter when a later SetFilter call
// replaced the filter before the result arrived.
var ErrSuperseded = errors.New("notesclient: filter superseded")

// View tracks the filter a screen currently shows. Only the most recently
// requested filter can become current; changing the filter cancels the
// fetch of the previous one. The last shown list stays available while
// the new one loads.
type View struct {
	notes *Notes

	mu       sync.Mutex
	seq      uint64
	cancel   context.CancelFunc
	filter   NoteFilter
	current  *NoteList
	previous *NoteList
	loading  bool
	err      error
}

// NewView creates a view with no filter applied yet.
func (n *Notes) NewView() *View {
	return &View{notes: n}
}

// SetFilter makes f the current filter and loads its page.
func (v *View) SetFilter(ctx context.Context, f NoteFilter) (*NoteList, error) {
	v.mu.Lock()
	if v.cancel != nil {
		v.cancel()
	}
	v.seq++
	seq := v.seq
	ctx, cancel := context.WithCancel(ctx)
	v.cancel = cancel
	v.filter = f
	if v.current != nil {
		v.previous = v.current
	}
	v.current = nil
	v.loading = true
	v.err = nil
	v.mu.Unlock()

	list, err := v.notes.List(ctx, f)

	v.mu.Lock()
	defer v.mu.Unlock()
	if seq != v.seq {
		return nil, ErrSuperseded
	}
	cancel()
	v.cancel = nil
	v.loading = false
	if err != nil {
		v.err = err
		return nil, err
	}
	v.current = list
	return list, nil
}

// Filter returns the current filter.
func (v *View) Filter() NoteFilter {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.filter
}

// Data returns the list of the current filter. While it loads or after it
// failed, the previously shown list is returned with placeholder set.
func (v *View) Data() (list *NoteList, placeholder bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.current != nil {
		return v.current, false
	}
	return v.previous, v.previous != nil
}

// Loading reports whether the current filter is still being fetched.
func (v *View) Loading() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.loading
}

// Err returns the error of the last completed fetch of the current filter.
func (v *View) Err() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.err
}

// Close cancels any fetch in flight.
func (v *View) Close() {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.cancel != nil {
		v.cancel()
		v.cancel = nil
	}
}
