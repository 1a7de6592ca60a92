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
	"iter"
	"slices"

	"github.com/AleutianAI/nodegraph/services/nodegraph/graph"
)

// =============================================================================
// Edges
// =============================================================================

// Link declares one link from `from` to each target, accumulating
// multiplicity. Neither endpoint needs a stored value, but both must be
// non-empty: an empty endpoint returns ErrEmptyID and links nothing.
func (db *DB[V]) Link(from, to string, more ...string) error {
	if from == "" || to == "" || slices.Contains(more, "") {
		recordMutation("link", false)
		return ErrEmptyID
	}
	db.edges.Link(from, to, more...)
	db.version++
	recordMutation("link", true)
	return nil
}

// LinkN adds n to the multiplicity of (from, to). n <= 0 is a no-op.
// An empty endpoint returns ErrEmptyID.
func (db *DB[V]) LinkN(from, to string, n int) error {
	if from == "" || to == "" {
		recordMutation("link", false)
		return ErrEmptyID
	}
	if n <= 0 {
		return nil
	}
	db.edges.LinkN(from, to, n)
	db.version++
	recordMutation("link", true)
	return nil
}

// Unlink removes the (from, to) pair entirely, whatever its multiplicity,
// from both links and backlinks. Returns false if the pair did not exist.
func (db *DB[V]) Unlink(from, to string) bool {
	ok := db.edges.Unlink(from, to)
	if ok {
		db.version++
	}
	recordMutation("unlink", ok)
	return ok
}

// UnlinkAll removes every outgoing link of id and returns how many distinct
// pairs were removed. Backlinks to id are kept.
func (db *DB[V]) UnlinkAll(id string) int {
	removed := 0
	for to := range db.edges.Outgoing(id) {
		if db.edges.Unlink(id, to) {
			removed++
		}
	}
	if removed > 0 {
		db.version++
	}
	return removed
}

// LinkCount returns the multiplicity of (from, to), or 0.
func (db *DB[V]) LinkCount(from, to string) int {
	return db.edges.Count(from, to)
}

// Links returns the direct link targets of id with their multiplicity.
func (db *DB[V]) Links(id string) map[string]int {
	return db.edges.Outgoing(id)
}

// Backlinks returns the direct link sources of id with their multiplicity.
func (db *DB[V]) Backlinks(id string) map[string]int {
	return db.edges.Incoming(id)
}

// Edges returns every edge sorted by (From, To).
func (db *DB[V]) Edges() []graph.Edge {
	return db.edges.Edges()
}

// EdgeCount returns the number of distinct (from, to) pairs.
func (db *DB[V]) EdgeCount() int {
	return db.edges.EdgeCount()
}

// =============================================================================
// Traversal
// =============================================================================

// GetLinks returns every node reachable from id over forward links, mapped
// to its minimum hop count.
//
// Description:
//
//	id itself is excluded, even when a cycle leads back to it. By default
//	the depth is unbounded; WithMaxDepth(1) returns direct links only.
//	WithFilter prunes nodes and their expansion.
//
// Outputs:
//
//	map[string]int - Empty (never nil) when nothing is reachable.
func (db *DB[V]) GetLinks(id string, opts ...TraversalOption) map[string]int {
	return db.reachable(id, graph.Forward, opts)
}

// GetBacklinks is GetLinks over backlinks: every node from which id is
// reachable, mapped to its minimum hop count.
func (db *DB[V]) GetBacklinks(id string, opts ...TraversalOption) map[string]int {
	return db.reachable(id, graph.Backward, opts)
}

func (db *DB[V]) reachable(id string, dir graph.Direction, opts []TraversalOption) map[string]int {
	result := db.edges.Reachable(id, dir, opts...)
	recordTraversal("reachable_"+dir.String(), len(result))
	return result
}

// IterNodes walks forward links breadth-first from start.
//
// Description:
//
//	Yields (id, distance) beginning with (start, 0). Each node is yielded
//	once, at its minimum distance. WithMaxDistance bounds the hop count,
//	WithMaxNodes bounds the number of yielded pairs (counting start), and
//	WithFilter excludes a node together with everything only reachable
//	through it. The sequence is single-pass; call IterNodes again to restart.
func (db *DB[V]) IterNodes(start string, opts ...TraversalOption) iter.Seq2[string, int] {
	return db.edges.Walk(start, graph.Forward, opts...)
}

// IterBacklinkNodes is IterNodes over backlinks: it yields start and then
// every node from which start is reachable, nearest first.
func (db *DB[V]) IterBacklinkNodes(start string, opts ...TraversalOption) iter.Seq2[string, int] {
	return db.edges.Walk(start, graph.Backward, opts...)
}

// IterPaths yields every simple forward path from `from` to `to`, shortest
// first. When from == to the only path is [from]. WithMaxDistance bounds
// the hop count.
func (db *DB[V]) IterPaths(from, to string, opts ...TraversalOption) iter.Seq[[]string] {
	return db.edges.Paths(from, to, opts...)
}

// FindPath returns the first path IterPaths would yield.
func (db *DB[V]) FindPath(from, to string, opts ...TraversalOption) ([]string, bool) {
	path, ok := db.edges.ShortestPath(from, to, opts...)
	recordTraversal("find_path", len(path))
	return path, ok
}
