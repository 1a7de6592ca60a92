// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package index

import (
	"context"
	"iter"
	"maps"
	"slices"
	"time"
)

// KeyFunc derives index keys from a value.
//
// A nil or empty result means the value has no entry in the index. One key
// behaves like a scalar index, several keys like a set index. Duplicate keys
// in the result are harmless. KeyFunc must be pure: it is only invoked during
// Reindex.
type KeyFunc[V any] func(V) []string

// Scalar adapts a single-key function into a KeyFunc. An empty key means no
// entry.
func Scalar[V any](fn func(V) string) KeyFunc[V] {
	return func(v V) []string {
		if key := fn(v); key != "" {
			return []string{key}
		}
		return nil
	}
}

// postings maps key -> set of node IDs.
type postings map[string]map[string]struct{}

// Engine holds registered index definitions and their derived data.
type Engine[V any] struct {
	defs  map[string]KeyFunc[V]
	order []string
	data  map[string]postings
}

// NewEngine creates an Engine with no indexes.
func NewEngine[V any]() *Engine[V] {
	return &Engine[V]{
		defs: make(map[string]KeyFunc[V]),
		data: make(map[string]postings),
	}
}

// NewIndex registers an index and returns the engine for chaining.
//
// Description:
//
//	Registration does not populate the index. Until Reindex runs, lookups on
//	the new name succeed but return nothing. Registering an existing name
//	replaces its key function and clears its data.
//
// Example:
//
//	eng.NewIndex("title", titleKeys).NewIndex("tag", tagKeys)
func (e *Engine[V]) NewIndex(name string, fn KeyFunc[V]) *Engine[V] {
	if _, exists := e.defs[name]; !exists {
		e.order = append(e.order, name)
	}
	e.defs[name] = fn
	e.data[name] = make(postings)
	return e
}

// HasIndex reports whether name is registered.
func (e *Engine[V]) HasIndex(name string) bool {
	_, ok := e.defs[name]
	return ok
}

// Names returns registered index names in registration order.
func (e *Engine[V]) Names() []string {
	return slices.Clone(e.order)
}

// Reindex discards all index data and rebuilds every index from values.
//
// Description:
//
//	For every (id, value) pair and every registered index, the key function
//	is invoked once and id is added under each returned key. The sequence is
//	consumed exactly once.
//
// Inputs:
//
//	ctx - Used for tracing and metrics only. Reindex is not cancellable.
//	values - The current contents of the value store.
//
// Outputs:
//
//	int - Number of values indexed.
func (e *Engine[V]) Reindex(ctx context.Context, values iter.Seq2[string, V]) int {
	ctx, span := startOperationSpan(ctx, "Reindex")
	defer span.End()
	start := time.Now()

	fresh := make(map[string]postings, len(e.defs))
	for name := range e.defs {
		fresh[name] = make(postings)
	}

	count := 0
	for id, v := range values {
		count++
		for name, fn := range e.defs {
			p := fresh[name]
			for _, key := range fn(v) {
				ids, ok := p[key]
				if !ok {
					ids = make(map[string]struct{})
					p[key] = ids
				}
				ids[id] = struct{}{}
			}
		}
	}
	e.data = fresh

	setOperationSpanResult(span, count, true)
	recordOperationMetrics(ctx, "reindex", time.Since(start), count, true)
	return count
}

// FindByIndex returns the IDs stored under key, sorted.
//
// Outputs:
//
//	[]string - Matching IDs. Empty (never nil) if the key is absent.
//	error - *UnknownIndexError if name is not registered.
func (e *Engine[V]) FindByIndex(name, key string) ([]string, error) {
	p, err := e.postings(name)
	if err != nil {
		return nil, err
	}
	ids := p[key]
	result := make([]string, 0, len(ids))
	for id := range ids {
		result = append(result, id)
	}
	slices.Sort(result)
	return result, nil
}

// FindByIndexFunc returns the union of IDs under every key for which match
// returns true, sorted and without duplicates.
//
// This scans every key of the index and is slower than FindByIndex.
func (e *Engine[V]) FindByIndexFunc(name string, match func(key string) bool) ([]string, error) {
	p, err := e.postings(name)
	if err != nil {
		return nil, err
	}
	union := make(map[string]struct{})
	for key, ids := range p {
		if !match(key) {
			continue
		}
		for id := range ids {
			union[id] = struct{}{}
		}
	}
	return slices.Sorted(maps.Keys(union)), nil
}

// IndexKeys returns a lazy sequence over the keys currently held by name.
//
// The sequence is finite and sorted. The key set is captured when IndexKeys
// is called; calling IndexKeys again after a Reindex observes the new keys.
func (e *Engine[V]) IndexKeys(name string) (iter.Seq[string], error) {
	p, err := e.postings(name)
	if err != nil {
		return nil, err
	}
	keys := slices.Sorted(maps.Keys(p))
	return slices.Values(keys), nil
}

// Stats returns the number of distinct keys per index.
func (e *Engine[V]) Stats() map[string]int {
	stats := make(map[string]int, len(e.data))
	for name, p := range e.data {
		stats[name] = len(p)
	}
	return stats
}

// Clear drops all index data but keeps the definitions.
func (e *Engine[V]) Clear() {
	for name := range e.defs {
		e.data[name] = make(postings)
	}
}

func (e *Engine[V]) postings(name string) (postings, error) {
	if _, ok := e.defs[name]; !ok {
		return nil, &UnknownIndexError{Name: name}
	}
	return e.data[name], nil
}
