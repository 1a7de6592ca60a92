// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package store

import (
	"fmt"
	"slices"
	"strings"

	"github.com/AleutianAI/nodegraph/services/nodegraph/graph"
)

// Entry is one stored value in a State.
type Entry[V any] struct {
	ID    string `json:"id" msgpack:"id"`
	Value V      `json:"value" msgpack:"value"`
}

// EdgeRecord is one edge in a State.
type EdgeRecord struct {
	From  string `json:"from" msgpack:"from"`
	To    string `json:"to" msgpack:"to"`
	Count int    `json:"count" msgpack:"count"`
}

// State is a detached copy of the values and edges of a DB.
//
// Entries are sorted by ID and edges by (From, To), so two DBs with the same
// contents produce identical States. Index definitions and index data are
// not part of a State.
type State[V any] struct {
	Values []Entry[V]   `json:"values" msgpack:"values"`
	Edges  []EdgeRecord `json:"edges" msgpack:"edges"`
}

// Dump copies the current values and edges into a State.
//
// The State shares no maps with db, so db may be mutated right after Dump
// returns. Values themselves are copied by assignment: if V holds pointers,
// slices or maps, the pointed-to data is shared.
func (db *DB[V]) Dump() State[V] {
	state := State[V]{
		Values: make([]Entry[V], 0, len(db.values)),
	}
	for id, v := range db.values {
		state.Values = append(state.Values, Entry[V]{ID: id, Value: v})
	}
	slices.SortFunc(state.Values, func(a, b Entry[V]) int {
		return strings.Compare(a.ID, b.ID)
	})

	edges := db.edges.Edges()
	state.Edges = make([]EdgeRecord, len(edges))
	for i, e := range edges {
		state.Edges[i] = EdgeRecord{From: e.From, To: e.To, Count: e.Count}
	}
	return state
}

// FromState builds a fresh DB holding exactly the values and edges of state.
//
// Description:
//
//	Used when restoring a snapshot. Every entry and edge is checked; on the
//	first violation the whole restore fails and no DB is returned.
//
// Outputs:
//
//	*DB[V] - The restored DB with no indexes registered.
//	error - Wraps ErrInvalidState when state is inconsistent.
func FromState[V any](state State[V], opts ...Option) (*DB[V], error) {
	db := New[V](opts...)

	for i, entry := range state.Values {
		if entry.ID == "" {
			return nil, fmt.Errorf("%w: value %d has empty id", ErrInvalidState, i)
		}
		if _, dup := db.values[entry.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate id %q", ErrInvalidState, entry.ID)
		}
		db.values[entry.ID] = entry.Value
	}

	seen := make(map[graph.Edge]struct{}, len(state.Edges))
	for i, e := range state.Edges {
		if e.From == "" || e.To == "" {
			return nil, fmt.Errorf("%w: edge %d has empty endpoint", ErrInvalidState, i)
		}
		if e.Count < 1 {
			return nil, fmt.Errorf("%w: edge %q -> %q has count %d", ErrInvalidState, e.From, e.To, e.Count)
		}
		key := graph.Edge{From: e.From, To: e.To}
		if _, dup := seen[key]; dup {
			return nil, fmt.Errorf("%w: duplicate edge %q -> %q", ErrInvalidState, e.From, e.To)
		}
		seen[key] = struct{}{}
		db.edges.LinkN(e.From, e.To, e.Count)
	}

	db.version = 1
	return db, nil
}
