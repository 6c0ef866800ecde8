// Package watcher reports changes to a single file by polling it.
package watcher

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/heimdex/heimdex-flow/internal/logging"
)

const DefaultInterval = 500 * time.Millisecond

type Watcher interface {
	Watch(ctx context.Context, path string) error
	Stop() error
	OnChange(callback func(path string, event EventType))
}

type EventType int

const (
	EventCreate EventType = iota
	EventModify
	EventDelete
)

func (e EventType) String() string {
	switch e {
	case EventCreate:
		return "create"
	case EventModify:
		return "modify"
	case EventDelete:
		return "delete"
	}
	return "unknown"
}

// PollWatcher compares a file's size and modification time at a fixed
// interval. Callbacks run on the watching goroutine, so a slow callback
// delays the next poll instead of overlapping with it.
type PollWatcher struct {
	interval time.Duration
	logger   *slog.Logger

	mu       sync.Mutex
	callback func(path string, event EventType)
	cancel   context.CancelFunc
}

func NewPollWatcher(interval time.Duration, logger *slog.Logger) *PollWatcher {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &PollWatcher{interval: interval, logger: logging.WithComponent(logger, "watcher")}
}

func (w *PollWatcher) OnChange(callback func(path string, event EventType)) {
	w.mu.Lock()
	w.callback = callback
	w.mu.Unlock()
}

// Watch blocks until ctx is cancelled or Stop is called. A missing file is
// not an error; its creation is reported.
func (w *PollWatcher) Watch(ctx context.Context, path string) error {
	ctx, cancel := context.WithCancel(ctx)
	w.mu.Lock()
	w.cancel = cancel
	w.mu.Unlock()
	defer cancel()

	last, err := stat(path)
	if err != nil {
		return err
	}
	w.logger.Info("watching file", "path", logging.SanitizePath(path))

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		cur, err := stat(path)
		if err != nil {
			w.logger.Warn("cannot stat watched file", "error", err)
			continue
		}
		ev, changed := diff(last, cur)
		last = cur
		if !changed {
			continue
		}

		w.mu.Lock()
		cb := w.callback
		w.mu.Unlock()
		if cb != nil {
			cb(path, ev)
		}
	}
}

func (w *PollWatcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cancel != nil {
		w.cancel()
	}
	return nil
}

type snapshot struct {
	exists  bool
	size    int64
	modTime time.Time
}

func stat(path string) (snapshot, error) {
	fi, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return snapshot{}, nil
	}
	if err != nil {
		return snapshot{}, err
	}
	return snapshot{exists: true, size: fi.Size(), modTime: fi.ModTime()}, nil
}

func diff(prev, cur snapshot) (EventType, bool) {
	switch {
	case !prev.exists && cur.exists:
		return EventCreate, true
	case prev.exists && !cur.exists:
		return EventDelete, true
	case cur.exists && (cur.size != prev.size || !cur.modTime.Equal(prev.modTime)):
		return EventModify, true
	}
	return 0, false
}
