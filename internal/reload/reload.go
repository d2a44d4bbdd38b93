// Package reload watches the configuration file and re-applies the
// settings that can change without a restart.
package reload

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

const debounce = 200 * time.Millisecond

// Watcher reports changes of a single file. The parent directory is
// watched so that editors which replace the file by rename are noticed.
type Watcher struct {
	path   string
	w      *fsnotify.Watcher
	logger *slog.Logger
}

// New starts watching path.
func New(path string, logger *slog.Logger) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := w.Add(filepath.Dir(abs)); err != nil {
		w.Close()
		return nil, err
	}
	return &Watcher{path: abs, w: w, logger: logger}, nil
}

// Run calls apply after every burst of changes to the file until ctx is
// cancelled. A failing apply is logged and the previous settings stay in
// effect.
func (rw *Watcher) Run(ctx context.Context, apply func() error) error {
	defer rw.w.Close()

	rw.logger.Info("config watcher: started", slog.String("path", rw.path))

	var timer *time.Timer
	var timerCh <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			rw.logger.Info("config watcher: stopped")
			return nil

		case <-timerCh:
			timerCh = nil
			if err := apply(); err != nil {
				rw.logger.Warn("config watcher: reload failed", slog.String("error", err.Error()))
				continue
			}
			rw.logger.Info("config watcher: reloaded", slog.String("path", rw.path))

		case ev, ok := <-rw.w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != rw.path || ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(debounce)
			} else {
				timer.Reset(debounce)
			}
			timerCh = timer.C

		case err, ok := <-rw.w.Errors:
			if !ok {
				return nil
			}
			rw.logger.Error("config watcher: error", slog.String("error", err.Error()))
		}
	}
}
