// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package store provides DB, the node graph database.
//
// DB composes three parts behind one facade:
//   - a value store mapping node IDs to values of type V
//   - a graph.EdgeStore holding counted links and backlinks
//   - an index.Engine holding named derived indexes
//
// # Identity
//
// Node IDs are opaque strings, either supplied with WithID or generated as
// UUID v4. An ID does not need a value: links may point at phantom nodes,
// and traversals and backlink queries tolerate them.
//
// # Thread Safety
//
// DB is NOT safe for concurrent use. It is a single-writer structure; every
// operation runs to completion without blocking. Callers that share a DB
// across goroutines must guard it, for example with a sync.RWMutex. Lazy
// sequences returned by DB read live state and must not be consumed while
// the DB is being mutated.
package store

import (
	"context"
	"iter"
	"log/slog"
	"maps"
	"slices"

	"github.com/AleutianAI/nodegraph/services/nodegraph/graph"
	"github.com/AleutianAI/nodegraph/services/nodegraph/index"
)

// DB is an in-memory node graph database over values of type V.
type DB[V any] struct {
	values  map[string]V
	edges   *graph.EdgeStore
	indexes *index.Engine[V]

	// version increments on every mutation.
	version uint64

	logger *slog.Logger
	newID  func() string
}

// New creates an empty DB.
func New[V any](opts ...Option) *DB[V] {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &DB[V]{
		values:  make(map[string]V),
		edges:   graph.NewEdgeStore(),
		indexes: index.NewEngine[V](),
		logger:  o.logger,
		newID:   o.newID,
	}
}

// Insert stores v and returns its ID.
//
// Description:
//
//	Without WithID a fresh ID is generated. With WithID, inserting over an
//	ID that already has a value fails unless WithOverwrite is also given.
//	Overwriting replaces the value only: links and backlinks of the ID are
//	preserved. Indexes are not updated until Reindex.
//
// Outputs:
//
//	string - The ID the value is stored under.
//	error - *DuplicateIDError (wraps ErrDuplicateID) on collision,
//	ErrEmptyID when WithID was given "".
func (db *DB[V]) Insert(v V, opts ...InsertOption) (string, error) {
	var o insertOptions
	for _, opt := range opts {
		opt(&o)
	}

	id := o.id
	if !o.hasID {
		id = db.newID()
	}
	if id == "" {
		return "", ErrEmptyID
	}

	if _, exists := db.values[id]; exists && !o.overwrite {
		recordMutation("insert", false)
		return "", &DuplicateIDError{ID: id}
	}

	db.values[id] = v
	db.version++
	recordMutation("insert", true)
	return id, nil
}

// Get returns the value stored under id.
// Absence is not an error: the zero value and false are returned.
func (db *DB[V]) Get(id string) (V, bool) {
	v, ok := db.values[id]
	return v, ok
}

// GetMany returns the values of every given ID that has one.
// Missing IDs are absent from the result.
func (db *DB[V]) GetMany(ids ...string) map[string]V {
	result := make(map[string]V, len(ids))
	for _, id := range ids {
		if v, ok := db.values[id]; ok {
			result[id] = v
		}
	}
	return result
}

// Has reports whether id has a stored value.
func (db *DB[V]) Has(id string) bool {
	_, ok := db.values[id]
	return ok
}

// Remove deletes the value of id and every edge touching id.
//
// Description:
//
//	Links from id and backlinks to id are both removed, so no other node
//	keeps an edge to id afterwards. Removing an absent ID is a no-op that
//	returns the zero value and false. A phantom ID (edges but no value)
//	still has its edges removed.
func (db *DB[V]) Remove(id string) (V, bool) {
	v, ok := db.values[id]
	delete(db.values, id)
	removed := db.edges.RemoveNode(id)

	if ok || removed > 0 {
		db.version++
		db.logger.Debug("node removed",
			slog.String("id", id),
			slog.Bool("had_value", ok),
			slog.Int("edges_removed", removed),
		)
	}
	recordMutation("remove", ok)
	return v, ok
}

// IDs returns every ID with a stored value. Order is unspecified.
func (db *DB[V]) IDs() []string {
	return slices.Collect(maps.Keys(db.values))
}

// AllIDs returns a lazy sequence over every ID with a stored value.
// Each call starts a fresh pass.
func (db *DB[V]) AllIDs() iter.Seq[string] {
	return maps.Keys(db.values)
}

// All returns a lazy sequence over every (id, value) pair.
func (db *DB[V]) All() iter.Seq2[string, V] {
	return maps.All(db.values)
}

// Len returns the number of stored values.
func (db *DB[V]) Len() int {
	return len(db.values)
}

// Version returns a counter that increases on every mutation.
//
// Two equal versions of the same DB imply identical contents. Caches use it
// to detect staleness.
func (db *DB[V]) Version() uint64 {
	return db.version
}

// Stats contains counters about a DB.
type Stats struct {
	// Nodes is the number of stored values.
	Nodes int `json:"nodes"`

	// PhantomNodes is the number of IDs that have edges but no value.
	PhantomNodes int `json:"phantom_nodes"`

	// Edges is the number of distinct (from, to) pairs.
	Edges int `json:"edges"`

	// Links is the sum of all edge multiplicities.
	Links int `json:"links"`

	// IndexKeys is the number of distinct keys per registered index.
	IndexKeys map[string]int `json:"index_keys"`

	// Version is the mutation counter at the time of the call.
	Version uint64 `json:"version"`
}

// Stats returns counters about the DB.
func (db *DB[V]) Stats() Stats {
	es := db.edges.Stats()
	phantoms := 0
	for _, id := range db.edges.Nodes() {
		if _, ok := db.values[id]; !ok {
			phantoms++
		}
	}
	return Stats{
		Nodes:        len(db.values),
		PhantomNodes: phantoms,
		Edges:        es.EdgeCount,
		Links:        es.LinkCount,
		IndexKeys:    db.indexes.Stats(),
		Version:      db.version,
	}
}

// =============================================================================
// Indexes
// =============================================================================

// NewIndex registers a derived index and returns db for chaining.
//
// The index stays empty until Reindex is called.
func (db *DB[V]) NewIndex(name string, fn index.KeyFunc[V]) *DB[V] {
	db.indexes.NewIndex(name, fn)
	db.version++
	return db
}

// Reindex rebuilds every registered index from the current values.
// Returns the number of values indexed.
func (db *DB[V]) Reindex(ctx context.Context) int {
	n := db.indexes.Reindex(ctx, db.All())
	db.version++
	db.logger.Debug("reindexed",
		slog.Int("values", n),
		slog.Any("indexes", db.indexes.Names()),
	)
	return n
}

// HasIndex reports whether an index named name is registered.
func (db *DB[V]) HasIndex(name string) bool {
	return db.indexes.HasIndex(name)
}

// IndexNames returns the registered index names in registration order.
func (db *DB[V]) IndexNames() []string {
	return db.indexes.Names()
}

// FindByIndex returns the sorted IDs stored under key in the named index.
// Returns *UnknownIndexError for an unregistered name.
func (db *DB[V]) FindByIndex(name, key string) ([]string, error) {
	return db.indexes.FindByIndex(name, key)
}

// FindByIndexFunc returns the sorted union of IDs under every key accepted
// by match. Slower than FindByIndex: every key is scanned.
func (db *DB[V]) FindByIndexFunc(name string, match func(key string) bool) ([]string, error) {
	return db.indexes.FindByIndexFunc(name, match)
}

// IndexKeys returns a lazy sequence over the keys of the named index.
func (db *DB[V]) IndexKeys(name string) (iter.Seq[string], error) {
	return db.indexes.IndexKeys(name)
}
