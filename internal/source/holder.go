package source

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/reillywatson/dorastats/internal/observability"
	"github.com/reillywatson/dorastats/internal/snapshot"
)

type state struct {
	store    *snapshot.Store
	err      error
	loadedAt time.Time
}

// Holder keeps the result of the most recent load. A failed load replaces
// the previous store, so readers see either a complete snapshot or
// ErrUnavailable. Concurrent reloads are last-write-wins.
type Holder struct {
	location string
	open     Opener
	logger   *slog.Logger
	current  atomic.Pointer[state]
}

// NewHolder creates a holder for location. A nil opener uses Open.
func NewHolder(location string, open Opener, logger *slog.Logger) *Holder {
	if open == nil {
		open = Open
	}
	if logger == nil {
		logger = slog.Default()
	}
	h := &Holder{location: location, open: open, logger: logger}
	h.current.Store(&state{err: fmt.Errorf("snapshot %s not loaded yet", location)})
	return h
}

// Location is where the holder loads from
func (h *Holder) Location() string {
	return h.location
}

// Reload loads the snapshot and publishes the outcome
func (h *Holder) Reload(ctx context.Context) error {
	store, err := h.open(ctx, h.location)
	observability.SnapshotLoaded(err)
	if err != nil {
		h.logger.Error("snapshot load failed", "location", h.location, "error", err)
		h.current.Store(&state{err: err, loadedAt: time.Now()})
		return err
	}
	h.logger.Info("snapshot loaded",
		"location", h.location,
		"deployments", len(store.Deployments),
		"rollups", len(store.Rollups))
	h.current.Store(&state{store: store, loadedAt: time.Now()})
	return nil
}

// Store returns the current snapshot, or an error wrapping ErrUnavailable
func (h *Holder) Store() (*snapshot.Store, error) {
	s := h.current.Load()
	if s.store == nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, s.err)
	}
	return s.store, nil
}

// LoadedAt is when the last load attempt finished
func (h *Holder) LoadedAt() time.Time {
	return h.current.Load().loadedAt
}

// Watch reloads a local snapshot whenever the file is written or replaced.
// It blocks until ctx is cancelled.
func (h *Holder) Watch(ctx context.Context) error {
	if !IsLocal(h.location) {
		return fmt.Errorf("cannot watch remote snapshot %s", h.location)
	}
	path, err := filepath.Abs(h.location)
	if err != nil {
		return fmt.Errorf("failed to resolve %s: %w", h.location, err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	// a file replaced by rename drops a direct watch, so watch its directory
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(path), err)
	}
	h.logger.Debug("watching snapshot", "path", path)

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			h.logger.Info("snapshot changed, reloading", "path", path, "op", event.Op.String())
			_ = h.Reload(ctx)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			h.logger.Warn("snapshot watcher error", "error", err)

		case <-ctx.Done():
			return nil
		}
	}
}
