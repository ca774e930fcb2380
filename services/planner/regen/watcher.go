// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package regen

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/AleutianAI/AleutianPlanner/services/planner/datatypes"
	"github.com/fsnotify/fsnotify"
)

// Trigger receives concept snapshots. *Regenerator implements it.
type Trigger interface {
	Trigger(concept *datatypes.AppConcept) uint64
}

// ConceptWatcher reloads a concept file on change and triggers regeneration.
//
// # Description
//
// The parent directory is watched rather than the file so that editors that
// save by rename are still seen. Unparseable or invalid files are logged and
// skipped; the previous snapshot stays in effect. Debouncing is left to the
// Trigger.
//
// # Thread Safety
//
// Safe for concurrent use. Events are handled on one goroutine.
type ConceptWatcher struct {
	path    string
	target  Trigger
	logger  *slog.Logger
	watcher *fsnotify.Watcher

	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewConceptWatcher creates a watcher for the concept file at path.
//
// # Outputs
//
//   - *ConceptWatcher: Call Start to begin watching.
//   - error: Non-nil if the path cannot be resolved or fsnotify fails.
func NewConceptWatcher(path string, target Trigger, logger *slog.Logger) (*ConceptWatcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve concept path: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create file watcher: %w", err)
	}
	return &ConceptWatcher{
		path:    abs,
		target:  target,
		logger:  logger,
		watcher: w,
		done:    make(chan struct{}),
	}, nil
}

// Start loads the file once, triggers, then watches for changes until ctx
// is done or Stop is called.
//
// # Outputs
//
//   - error: Non-nil if the initial load fails or the directory cannot be
//     watched.
func (w *ConceptWatcher) Start(ctx context.Context) error {
	concept, err := datatypes.LoadConceptFile(w.path)
	if err != nil {
		return err
	}
	if err := w.watcher.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(w.path), err)
	}
	w.target.Trigger(concept)

	w.wg.Add(1)
	go w.processEvents(ctx)
	return nil
}

// Stop stops watching and waits for the event goroutine to exit.
func (w *ConceptWatcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.done)
		w.watcher.Close()
	})
	w.wg.Wait()
}

func (w *ConceptWatcher) processEvents(ctx context.Context) {
	defer w.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			w.reload()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("concept watcher error", "error", err)
		}
	}
}

func (w *ConceptWatcher) reload() {
	concept, err := datatypes.LoadConceptFile(w.path)
	if err != nil {
		w.logger.Warn("ignoring concept change", "path", w.path, "error", err)
		return
	}
	seq := w.target.Trigger(concept)
	w.logger.Debug("concept changed", "path", w.path, "seq", seq)
}
