// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package nodegraph serves a note graph over HTTP.
//
// Service owns one ingest.DB behind a read/write lock, keeps it indexed
// after every mutation and persists it to a snapshot file and optionally
// a badger directory. Handlers exposes the service as gin routes under
// /v1/nodegraph.
package nodegraph

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/AleutianAI/nodegraph/services/nodegraph/cache"
	"github.com/AleutianAI/nodegraph/services/nodegraph/graph"
	"github.com/AleutianAI/nodegraph/services/nodegraph/ingest"
	"github.com/AleutianAI/nodegraph/services/nodegraph/snapshot"
	badgerstore "github.com/AleutianAI/nodegraph/services/nodegraph/storage/badger"
	"github.com/AleutianAI/nodegraph/services/nodegraph/store"
)

// ServiceVersion is the nodegraph service version.
const ServiceVersion = "0.1.0"

// ServiceConfig configures a Service.
type ServiceConfig struct {
	// SnapshotPath is where Save writes and OpenService reads the snapshot.
	// Empty disables the snapshot file.
	SnapshotPath string

	// Compress enables zstd compression of snapshots.
	Compress bool

	// CacheCapacity is the number of path query results kept.
	// Zero disables the cache.
	CacheCapacity int

	// PathTimeout bounds one path enumeration, which is exponential in
	// the depth on dense graphs and holds the read lock while it runs.
	// Zero leaves it unbounded.
	PathTimeout time.Duration

	// Badger is an optional second persistence target. The service does
	// not close it.
	Badger *badgerstore.DB

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// DefaultServiceConfig returns a config with the path cache enabled and no
// persistence.
func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		CacheCapacity: cache.DefaultCapacity,
		PathTimeout:   DefaultPathTimeout,
	}
}

// DefaultPathTimeout is the PathTimeout of DefaultServiceConfig.
const DefaultPathTimeout = 30 * time.Second

// pathKey identifies one path query.
type pathKey struct {
	from, to string
	maxDepth int
	limit    int
}

type pathResult struct {
	paths     [][]string
	truncated bool
}

// Service is a concurrency-safe wrapper around an indexed ingest.DB.
//
// Readers share the lock. Mutations take it exclusively and reindex before
// releasing it, so readers never observe stale indexes.
type Service struct {
	mu sync.RWMutex
	db *ingest.DB

	// saveMu serializes Save, so two saves never race on the snapshot
	// file or on the next badger generation.
	saveMu sync.Mutex

	// savedVersion is the DB version last persisted successfully.
	savedVersion atomic.Uint64

	paths  *cache.Versioned[pathKey, pathResult]
	config ServiceConfig
	logger *slog.Logger
}

// NewService wraps db, or a new empty DB when db is nil.
//
// The default record indexes are registered if db has none, and the DB is
// reindexed. The resulting state counts as saved.
func NewService(config ServiceConfig, db *ingest.DB) *Service {
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if db == nil {
		db = store.New[ingest.Record](store.WithLogger(logger))
	}
	if !db.HasIndex(ingest.IndexTitle) {
		ingest.DefaultIndexes(db)
	}
	db.Reindex(context.Background())

	s := &Service{
		db:     db,
		config: config,
		logger: logger,
	}
	if config.CacheCapacity > 0 {
		s.paths = cache.NewVersioned[pathKey, pathResult](config.CacheCapacity)
	}
	s.savedVersion.Store(db.Version())
	return s
}

// OpenService restores the DB from the configured snapshot file, falling
// back to the badger directory, falling back to an empty DB.
//
// A missing snapshot file or an empty badger directory is not an error.
// A corrupt one is.
func OpenService(ctx context.Context, config ServiceConfig) (*Service, error) {
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	db, source, err := restore(ctx, config, logger)
	if err != nil {
		return nil, err
	}

	s := NewService(config, db)
	logger.Info("node graph opened",
		slog.String("source", source),
		slog.Int("nodes", db.Len()),
		slog.Int("edges", db.EdgeCount()),
	)
	return s, nil
}

func restore(ctx context.Context, config ServiceConfig, logger *slog.Logger) (*ingest.DB, string, error) {
	storeOpts := []store.Option{store.WithLogger(logger)}

	if config.SnapshotPath != "" {
		db, err := snapshot.LoadFile[ingest.Record](ctx, config.SnapshotPath,
			snapshot.WithLogger(logger),
			snapshot.WithStoreOptions(storeOpts...),
		)
		switch {
		case err == nil:
			return db, "snapshot", nil
		case !errors.Is(err, fs.ErrNotExist):
			return nil, "", fmt.Errorf("open snapshot: %w", err)
		}
	}

	if config.Badger != nil {
		db, err := badgerstore.Load[ingest.Record](ctx, config.Badger, storeOpts...)
		switch {
		case err == nil:
			return db, "badger", nil
		case !errors.Is(err, badgerstore.ErrNoSnapshot):
			return nil, "", fmt.Errorf("open badger: %w", err)
		}
	}

	return nil, "empty", nil
}

// =============================================================================
// Mutations
// =============================================================================

// Apply stores records and reindexes. See ingest.Apply.
func (s *Service) Apply(ctx context.Context, records ...ingest.Record) (ingest.ApplyResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := ingest.Apply(s.db, records...)
	if result.Applied > 0 {
		s.db.Reindex(ctx)
	}
	return result, err
}

// SyncFile replaces the nodes of one file and reindexes. See ingest.SyncFile.
func (s *Service) SyncFile(ctx context.Context, path string, records []ingest.Record) ([]string, ingest.ApplyResult, error) {
	if path == "" {
		return nil, ingest.ApplyResult{}, ErrEmptyPath
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	removed, result, err := ingest.SyncFile(s.db, path, records)
	if len(removed) > 0 || result.Applied > 0 {
		s.db.Reindex(ctx)
	}
	return removed, result, err
}

// RemoveFile removes every node parsed from path and reindexes.
func (s *Service) RemoveFile(ctx context.Context, path string) ([]string, error) {
	if path == "" {
		return nil, ErrEmptyPath
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := ingest.RemoveFile(s.db, path)
	if len(removed) > 0 {
		s.db.Reindex(ctx)
		s.logger.Info("file removed", slog.String("path", path), slog.Int("nodes", len(removed)))
	}
	return removed, nil
}

// IngestDir reads every record file under dir and applies the records.
//
// Files are read without holding the lock. A read or decode failure aborts
// before anything is applied.
func (s *Service) IngestDir(ctx context.Context, dir string) (ingest.ApplyResult, error) {
	start := time.Now()
	records, err := ingest.LoadDir(ctx, dir)
	if err != nil {
		return ingest.ApplyResult{}, err
	}

	result, err := s.Apply(ctx, records...)
	s.logger.Info("directory ingested",
		slog.String("dir", dir),
		slog.Int("applied", result.Applied),
		slog.Int("rejected", result.Rejected),
		slog.Int("links", result.Links),
		slog.Duration("elapsed", time.Since(start)),
	)
	return result, err
}

// =============================================================================
// Queries
// =============================================================================

// Node returns the record and direct links of id.
//
// Outputs:
//
//	NodeResponse - Record is nil for a phantom node.
//	error - ErrNodeNotFound if id has neither a value nor any edge.
func (s *Service) Node(id string) (NodeResponse, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	resp := NodeResponse{
		ID:        id,
		Links:     s.db.Links(id),
		Backlinks: s.db.Backlinks(id),
	}
	if rec, ok := s.db.Get(id); ok {
		resp.Record = &rec
	} else if len(resp.Links) == 0 && len(resp.Backlinks) == 0 {
		return NodeResponse{}, fmt.Errorf("%w: %q", ErrNodeNotFound, id)
	}
	return resp, nil
}

// Reach returns every node reachable from id in dir within depth hops,
// mapped to its minimum distance. A negative depth is unbounded.
func (s *Service) Reach(id string, dir graph.Direction, depth int) map[string]int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if dir == graph.Backward {
		return s.db.GetBacklinks(id, store.WithMaxDepth(depth))
	}
	return s.db.GetLinks(id, store.WithMaxDepth(depth))
}

// Walk visits nodes breadth-first from start and returns them in visit
// order, start first. Negative maxDepth or maxNodes means unbounded.
func (s *Service) Walk(start string, dir graph.Direction, maxDepth, maxNodes int) []WalkStep {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seq := s.db.IterNodes
	if dir == graph.Backward {
		seq = s.db.IterBacklinkNodes
	}

	var steps []WalkStep
	for id, distance := range seq(start, store.WithMaxDepth(maxDepth), store.WithMaxNodes(maxNodes)) {
		steps = append(steps, WalkStep{ID: id, Distance: distance})
	}
	return steps
}

// Paths returns up to q.Limit simple paths from q.From to q.To, shortest
// first.
//
// Results are cached per DB version, so a repeated query against an
// unchanged graph is answered from the cache. A cached load is shared by
// concurrent callers and is bounded by PathTimeout rather than by ctx; an
// uncached one stops when either ends. A search that runs out of time
// returns context.DeadlineExceeded and is not cached.
func (s *Service) Paths(ctx context.Context, q PathQuery) (PathResponse, error) {
	key := pathKey{from: q.From, to: q.To, maxDepth: q.MaxDepth, limit: q.Limit}
	search := func(ctx context.Context) (pathResult, error) {
		if s.config.PathTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, s.config.PathTimeout)
			defer cancel()
		}
		s.mu.RLock()
		defer s.mu.RUnlock()
		return s.findPaths(ctx, key)
	}

	var result pathResult
	var cached bool
	if s.paths == nil {
		var err error
		if result, err = search(ctx); err != nil {
			return PathResponse{}, err
		}
	} else {
		s.mu.RLock()
		version := s.db.Version()
		s.mu.RUnlock()

		var err error
		load := func() (pathResult, error) {
			return search(context.Background())
		}
		result, cached, err = s.paths.GetOrLoad(ctx, key, version, load)
		if err != nil {
			return PathResponse{}, err
		}
	}

	paths := make([][]string, len(result.paths))
	for i, p := range result.paths {
		paths[i] = slices.Clone(p)
	}
	return PathResponse{
		From:      q.From,
		To:        q.To,
		Paths:     paths,
		Truncated: result.truncated,
		Cached:    cached,
	}, nil
}

// findPaths collects one path beyond the limit to detect truncation.
// Caller must hold the read lock.
func (s *Service) findPaths(ctx context.Context, key pathKey) (pathResult, error) {
	limit := key.limit
	if limit <= 0 {
		limit = 1
	}
	result := pathResult{paths: [][]string{}}
	paths := s.db.IterPaths(key.from, key.to,
		store.WithMaxDepth(key.maxDepth), store.WithDone(ctx.Done()))
	for path := range paths {
		if len(result.paths) == limit {
			result.truncated = true
			break
		}
		result.paths = append(result.paths, path)
	}
	if err := ctx.Err(); err != nil && !result.truncated {
		s.logger.Warn("path search abandoned",
			slog.String("from", key.from),
			slog.String("to", key.to),
			slog.Int("max_depth", key.maxDepth),
			slog.String("error", err.Error()))
		return pathResult{}, err
	}
	return result, nil
}

// FindByIndex returns the sorted IDs stored under key in the named index.
func (s *Service) FindByIndex(name, key string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.db.FindByIndex(name, key)
}

// IndexKeys returns every key of the named index, sorted.
func (s *Service) IndexKeys(name string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys, err := s.db.IndexKeys(name)
	if err != nil {
		return nil, err
	}
	return slices.Collect(keys), nil
}

// IndexNames returns the registered index names.
func (s *Service) IndexNames() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.db.IndexNames()
}

// Stats returns store counters and, when enabled, cache counters.
func (s *Service) Stats() StatsResponse {
	s.mu.RLock()
	resp := StatsResponse{Stats: s.db.Stats()}
	s.mu.RUnlock()

	if s.paths != nil {
		cs := s.paths.Stats()
		resp.Cache = &cs
	}
	return resp
}

// Dirty reports whether the DB changed since the last successful Save.
func (s *Service) Dirty() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.db.Version() != s.savedVersion.Load()
}

// =============================================================================
// Persistence
// =============================================================================

// Save writes the snapshot file and, if configured, a badger generation.
//
// Description:
//
//	The snapshot is encoded under the read lock, so readers continue
//	during the save and writers wait only for the encoding. The file
//	itself is written after the lock is released. Concurrent calls run
//	one at a time.
//
// Outputs:
//
//	SnapshotResponse - Path, saved version and badger generation.
//	error - ErrNoSnapshotPath if neither target is configured, otherwise
//	the first write failure.
func (s *Service) Save(ctx context.Context) (SnapshotResponse, error) {
	if s.config.SnapshotPath == "" && s.config.Badger == nil {
		return SnapshotResponse{}, ErrNoSnapshotPath
	}

	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	s.mu.RLock()
	version := s.db.Version()
	var file *snapshot.Future[struct{}]
	if s.config.SnapshotPath != "" {
		file = snapshot.WriteFileAsync(ctx, s.config.SnapshotPath, s.db,
			snapshot.WithCompression(s.config.Compress),
			snapshot.WithLogger(s.logger),
		)
	}
	var gen uint64
	var badgerErr error
	if s.config.Badger != nil {
		gen, badgerErr = badgerstore.Save(ctx, s.config.Badger, s.db)
	}
	s.mu.RUnlock()

	var errs []error
	if file != nil {
		if _, err := file.Wait(ctx); err != nil {
			errs = append(errs, fmt.Errorf("write snapshot: %w", err))
		}
	}
	if badgerErr != nil {
		errs = append(errs, fmt.Errorf("save badger: %w", badgerErr))
	}
	if err := errors.Join(errs...); err != nil {
		return SnapshotResponse{}, err
	}

	s.markSaved(version)
	s.logger.Info("node graph saved",
		slog.String("path", s.config.SnapshotPath),
		slog.Uint64("version", version),
		slog.Uint64("generation", gen),
	)
	return SnapshotResponse{Path: s.config.SnapshotPath, Version: version, Generation: gen}, nil
}

// markSaved advances savedVersion, never moving it backwards when two
// saves finish out of order.
func (s *Service) markSaved(version uint64) {
	for {
		cur := s.savedVersion.Load()
		if version <= cur || s.savedVersion.CompareAndSwap(cur, version) {
			return
		}
	}
}

// ParseDirection converts "forward" or "backward".
func ParseDirection(s string) (graph.Direction, error) {
	switch s {
	case "", graph.Forward.String():
		return graph.Forward, nil
	case graph.Backward.String():
		return graph.Backward, nil
	default:
		return graph.Forward, fmt.Errorf("%w: %q", ErrInvalidDirection, s)
	}
}
