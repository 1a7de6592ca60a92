// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package watch keeps a node graph in sync with a directory of JSON record
// files.
//
// Each record file is a source. A source's records are grouped by their
// FilePath, and each group replaces the nodes of that note file, so a note
// whose headlines were deleted loses those nodes. Deleting a source removes
// every note file it last contributed. Two sources naming the same note
// file overwrite each other; the later sync wins.
package watch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/AleutianAI/nodegraph/services/nodegraph/ingest"
)

// DefaultDebounce is used when Options.Debounce is zero.
const DefaultDebounce = 200 * time.Millisecond

// ErrAlreadyStarted is returned by a second call to Start.
var ErrAlreadyStarted = errors.New("watcher already started")

// Target receives the synchronized records.
//
// *nodegraph.Service implements Target.
type Target interface {
	SyncFile(ctx context.Context, path string, records []ingest.Record) ([]string, ingest.ApplyResult, error)
	RemoveFile(ctx context.Context, path string) ([]string, error)
}

// Options configures a Watcher.
type Options struct {
	// Debounce is how long to wait after the last change before syncing.
	Debounce time.Duration

	// BufferSize is the capacity of the change channel. Default: 1000.
	BufferSize int

	// Logger defaults to slog.Default().
	Logger *slog.Logger

	// OnSync, when set, is called after each batch of changes is applied.
	OnSync func(changed int)
}

type change struct {
	path    string
	removed bool
}

// Watcher follows a record directory and mirrors it into a Target.
//
// Thread Safety: Start and Stop may be called from any goroutine. Syncing
// happens on a single goroutine, one batch at a time.
type Watcher struct {
	root    string
	target  Target
	watcher *fsnotify.Watcher
	opts    Options
	logger  *slog.Logger

	changes  chan change
	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	// mu guards started and sources.
	mu      sync.Mutex
	started bool

	// sources maps each record file to the note files it last contributed.
	// Written by Start before the loops run, and then by the debounce loop.
	sources map[string][]string
}

// New creates a watcher for root. Call Start to begin.
func New(root string, target Target, opts Options) (*Watcher, error) {
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.BufferSize <= 0 {
		opts.BufferSize = 1000
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", root, err)
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}

	return &Watcher{
		root:    abs,
		target:  target,
		watcher: fw,
		opts:    opts,
		logger:  logger.With(slog.String("component", "watch"), slog.String("dir", abs)),
		changes: make(chan change, opts.BufferSize),
		done:    make(chan struct{}),
		sources: make(map[string][]string),
	}, nil
}

// Start syncs every record file under the root, then follows changes
// until ctx is done or Stop is called.
//
// Outputs:
//
//	int - Number of record files synced initially.
//	error - The root cannot be watched, or ErrAlreadyStarted. Per-file
//	failures are logged and do not stop the watcher.
func (w *Watcher) Start(ctx context.Context) (int, error) {
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return 0, ErrAlreadyStarted
	}
	w.started = true
	w.mu.Unlock()

	var files []string
	err := filepath.WalkDir(w.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != w.root && isHidden(path) {
				return filepath.SkipDir
			}
			return w.watcher.Add(path)
		}
		if isRecordFile(path) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("watch %s: %w", w.root, err)
	}

	for _, path := range files {
		w.syncSource(ctx, path)
	}
	w.logger.Info("watching record directory", slog.Int("files", len(files)))

	w.wg.Add(2)
	go w.processEvents(ctx)
	go w.debounceLoop(ctx)
	return len(files), nil
}

// Stop stops watching and waits for an in-flight batch to finish.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.done)
		_ = w.watcher.Close()
	})
	w.wg.Wait()
}

// processEvents turns fsnotify events into changes.
func (w *Watcher) processEvents(ctx context.Context) {
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
			w.handleEvent(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watch error", slog.String("error", err.Error()))
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if isHidden(event.Name) {
		return
	}

	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			w.addDir(event.Name)
			return
		}
	}
	if !isRecordFile(event.Name) {
		return
	}

	c := change{
		path:    event.Name,
		removed: event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename),
	}
	select {
	case w.changes <- c:
	default:
		watchEvents.WithLabelValues("dropped").Inc()
		w.logger.Warn("change buffer full, dropping event", slog.String("path", event.Name))
	}
}

// addDir watches a new directory and queues the record files already in
// it, since they may have been written before the watch was added.
func (w *Watcher) addDir(dir string) {
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if isHidden(path) {
				return filepath.SkipDir
			}
			if err := w.watcher.Add(path); err != nil {
				w.logger.Warn("cannot watch directory", slog.String("path", path), slog.String("error", err.Error()))
			}
			return nil
		}
		if isRecordFile(path) {
			select {
			case w.changes <- change{path: path}:
			default:
			}
		}
		return nil
	})
}

// debounceLoop batches changes and syncs them once the debounce window
// passes without a new change.
func (w *Watcher) debounceLoop(ctx context.Context) {
	defer w.wg.Done()

	pending := make(map[string]bool)
	var timer *time.Timer
	var timerC <-chan time.Time

	flush := func() {
		if len(pending) == 0 {
			return
		}
		for _, path := range slices.Sorted(maps.Keys(pending)) {
			if pending[path] {
				w.removeSource(ctx, path)
			} else {
				w.syncSource(ctx, path)
			}
		}
		n := len(pending)
		clear(pending)
		if w.opts.OnSync != nil {
			w.opts.OnSync(n)
		}
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case c := <-w.changes:
			// The latest event for a path wins.
			pending[c.path] = c.removed
			if timer == nil {
				timer = time.NewTimer(w.opts.Debounce)
				timerC = timer.C
			} else {
				timer.Reset(w.opts.Debounce)
			}
		case <-timerC:
			timer, timerC = nil, nil
			flush()
		}
	}
}

// =============================================================================
// Syncing
// =============================================================================

// syncSource applies the records of one record file.
func (w *Watcher) syncSource(ctx context.Context, path string) {
	records, err := ingest.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			w.removeSource(ctx, path)
			return
		}
		watchEvents.WithLabelValues("error").Inc()
		w.logger.Warn("cannot read record file", slog.String("path", path), slog.String("error", err.Error()))
		return
	}

	groups := make(map[string][]ingest.Record)
	for _, rec := range records {
		groups[rec.FilePath] = append(groups[rec.FilePath], rec)
	}

	// Note files this source no longer mentions.
	w.mu.Lock()
	previous := w.sources[path]
	w.mu.Unlock()
	for _, file := range previous {
		if _, ok := groups[file]; !ok {
			w.removeNoteFile(ctx, file)
		}
	}

	files := slices.Sorted(maps.Keys(groups))
	for _, file := range files {
		if file == "" {
			// Apply rejects these and reports why.
			w.logRejected(path, "", ingest.ApplyResult{Rejected: len(groups[file])},
				fmt.Errorf("%d records without file_path", len(groups[file])))
			continue
		}
		removed, result, err := w.target.SyncFile(ctx, file, groups[file])
		if err != nil {
			w.logRejected(path, file, result, err)
		}
		w.logger.Debug("note file synced",
			slog.String("source", path),
			slog.String("file", file),
			slog.Int("applied", result.Applied),
			slog.Int("removed", len(removed)),
		)
	}
	w.mu.Lock()
	w.sources[path] = slices.DeleteFunc(files, func(f string) bool { return f == "" })
	w.mu.Unlock()
	watchEvents.WithLabelValues("synced").Inc()
}

// removeSource removes every note file path last contributed.
func (w *Watcher) removeSource(ctx context.Context, path string) {
	w.mu.Lock()
	files, ok := w.sources[path]
	delete(w.sources, path)
	w.mu.Unlock()
	if !ok {
		return
	}
	for _, file := range files {
		w.removeNoteFile(ctx, file)
	}
	watchEvents.WithLabelValues("removed").Inc()
	w.logger.Info("record file removed", slog.String("source", path), slog.Int("files", len(files)))
}

func (w *Watcher) removeNoteFile(ctx context.Context, file string) {
	if _, err := w.target.RemoveFile(ctx, file); err != nil {
		w.logger.Warn("cannot remove note file", slog.String("file", file), slog.String("error", err.Error()))
	}
}

func (w *Watcher) logRejected(source, file string, result ingest.ApplyResult, err error) {
	watchEvents.WithLabelValues("rejected").Inc()
	w.logger.Warn("records rejected",
		slog.String("source", source),
		slog.String("file", file),
		slog.Int("rejected", result.Rejected),
		slog.String("error", err.Error()),
	)
}

// Sources returns the record files currently mirrored, sorted.
func (w *Watcher) Sources() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return slices.Sorted(maps.Keys(w.sources))
}

func isRecordFile(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".json") && !isHidden(path)
}

// isHidden reports whether the base name starts with a dot, which also
// covers editor swap files such as .note.json.swp.
func isHidden(path string) bool {
	return strings.HasPrefix(filepath.Base(path), ".")
}
