// Copyright 2025 Vulntor Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");

// Package watch turns file changes into config_changed events.
package watch

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/vulntor/circuitry/pkg/core"
	"github.com/vulntor/circuitry/pkg/event"
)

// DefaultDebounce coalesces bursts of writes into one event.
const DefaultDebounce = 100 * time.Millisecond

// Watcher fires config_changed on its manager when the watched file is written or
// created. Rapid successive changes produce a single event.
type Watcher struct {
	manager *core.Manager
	path    string

	// fsnotify requires watching directories, not files directly
	watcher *fsnotify.Watcher

	debounceDelay time.Duration
	logger        zerolog.Logger

	// mu protects the debounce timer
	mu            sync.Mutex
	debounceTimer *time.Timer
}

// New creates a watcher for path.
func New(m *core.Manager, path string, logger zerolog.Logger) (*Watcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		_ = watcher.Close()
		return nil, err
	}

	return &Watcher{
		manager:       m,
		path:          abs,
		watcher:       watcher,
		debounceDelay: DefaultDebounce,
		logger:        logger.With().Str("component", "watch").Logger(),
	}, nil
}

// SetDebounce overrides the debounce delay. Call before Start.
func (w *Watcher) SetDebounce(d time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.debounceDelay = d
}

// Path returns the absolute path being watched.
func (w *Watcher) Path() string { return w.path }

// Start watches until ctx is cancelled. It should be run in a separate goroutine.
func (w *Watcher) Start(ctx context.Context) error {
	dir := filepath.Dir(w.path)
	file := filepath.Base(w.path)

	if err := w.watcher.Add(dir); err != nil {
		w.logger.Error().Err(err).Str("dir", dir).Msg("Failed to watch config directory")
		return err
	}

	w.logger.Info().Str("file", w.path).Dur("debounce", w.debounceDelay).Msg("Started watching config file")

	defer func() {
		w.mu.Lock()
		if w.debounceTimer != nil {
			w.debounceTimer.Stop()
		}
		w.mu.Unlock()
		if err := w.watcher.Close(); err != nil {
			w.logger.Warn().Err(err).Msg("Error closing watcher")
		}
		w.logger.Info().Msg("Stopped watching config file")
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case ev, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Base(ev.Name) != file {
				continue
			}
			// remove is followed by a create on the next write
			if ev.Op&fsnotify.Write == fsnotify.Write || ev.Op&fsnotify.Create == fsnotify.Create {
				w.logger.Debug().Str("op", ev.Op.String()).Str("file", ev.Name).Msg("Detected config file change")
				w.schedule()
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn().Err(err).Msg("File watcher error")
		}
	}
}

// schedule fires config_changed after the debounce delay, resetting any pending timer.
func (w *Watcher) schedule() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
	}
	w.debounceTimer = time.AfterFunc(w.debounceDelay, func() {
		if _, err := w.manager.Emit(event.NameConfigChanged, event.WithKwarg("path", w.path)); err != nil {
			w.logger.Error().Err(err).Msg("Failed to fire config_changed")
		}
	})
}

// Close stops the watcher and releases resources.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}
