// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package graph

import (
	"fmt"
	"maps"
	"slices"
	"strings"
)

// EdgeStore holds directed, counted edges between node identifiers.
//
// Invariant:
//
//	forward[a][b] == m  <=>  reverse[b][a] == m, for every pair with m >= 1.
//
// Empty inner maps are removed eagerly so that len(forward) and len(reverse)
// only count identifiers that still have edges in that direction.
type EdgeStore struct {
	// forward maps from -> to -> multiplicity.
	forward map[string]map[string]int

	// reverse maps to -> from -> multiplicity.
	reverse map[string]map[string]int

	// pairs is the number of distinct (from, to) pairs.
	pairs int
}

// NewEdgeStore creates an empty edge store.
func NewEdgeStore() *EdgeStore {
	return &EdgeStore{
		forward: make(map[string]map[string]int),
		reverse: make(map[string]map[string]int),
	}
}

// Link declares one edge from `from` to each target.
//
// Description:
//
//	Each call increments the multiplicity of every (from, target) pair by 1.
//	Repeated calls with the same pair accumulate. Targets do not need a
//	stored value anywhere.
//
// Inputs:
//
//	from - ID of the source node.
//	to - ID of the first target node.
//	more - Additional target IDs. Duplicates each add another 1.
func (s *EdgeStore) Link(from, to string, more ...string) {
	s.add(from, to, 1)
	for _, target := range more {
		s.add(from, target, 1)
	}
}

// LinkN adds n to the multiplicity of the (from, to) pair.
//
// Used when restoring a snapshot where the count is already known.
// Non-positive n is a no-op.
func (s *EdgeStore) LinkN(from, to string, n int) {
	if n <= 0 {
		return
	}
	s.add(from, to, n)
}

func (s *EdgeStore) add(from, to string, n int) {
	out, ok := s.forward[from]
	if !ok {
		out = make(map[string]int)
		s.forward[from] = out
	}
	in, ok := s.reverse[to]
	if !ok {
		in = make(map[string]int)
		s.reverse[to] = in
	}
	if out[to] == 0 {
		s.pairs++
	}
	out[to] += n
	in[from] += n
}

// Unlink removes the (from, to) pair in both directions.
//
// Description:
//
//	This is a hard delete: the pair is removed whatever its multiplicity.
//
// Outputs:
//
//	bool - True if the pair existed.
func (s *EdgeStore) Unlink(from, to string) bool {
	out, ok := s.forward[from]
	if !ok {
		return false
	}
	if _, ok := out[to]; !ok {
		return false
	}
	delete(out, to)
	if len(out) == 0 {
		delete(s.forward, from)
	}
	if in, ok := s.reverse[to]; ok {
		delete(in, from)
		if len(in) == 0 {
			delete(s.reverse, to)
		}
	}
	s.pairs--
	return true
}

// RemoveNode deletes every edge where id is either endpoint.
//
// Outputs:
//
//	int - Number of distinct pairs removed.
func (s *EdgeStore) RemoveNode(id string) int {
	removed := 0

	for to := range s.forward[id] {
		if in, ok := s.reverse[to]; ok {
			delete(in, id)
			if len(in) == 0 && to != id {
				delete(s.reverse, to)
			}
		}
		removed++
	}
	delete(s.forward, id)

	for from := range s.reverse[id] {
		if from == id {
			// Self-loop, already counted above.
			continue
		}
		if out, ok := s.forward[from]; ok {
			delete(out, id)
			if len(out) == 0 {
				delete(s.forward, from)
			}
		}
		removed++
	}
	delete(s.reverse, id)

	s.pairs -= removed
	return removed
}

// Count returns the multiplicity of the (from, to) pair, 0 if absent.
func (s *EdgeStore) Count(from, to string) int {
	return s.forward[from][to]
}

// Outgoing returns the direct targets of id with their multiplicities.
//
// The returned map is a copy and may be modified by the caller.
func (s *EdgeStore) Outgoing(id string) map[string]int {
	return maps.Clone(s.adjacency(id, Forward))
}

// Incoming returns the direct sources of id with their multiplicities.
//
// The returned map is a copy and may be modified by the caller.
func (s *EdgeStore) Incoming(id string) map[string]int {
	return maps.Clone(s.adjacency(id, Backward))
}

// HasEdges reports whether id is an endpoint of at least one edge.
func (s *EdgeStore) HasEdges(id string) bool {
	return len(s.forward[id]) > 0 || len(s.reverse[id]) > 0
}

// EdgeCount returns the number of distinct (from, to) pairs.
func (s *EdgeStore) EdgeCount() int {
	return s.pairs
}

// Edges returns every edge, sorted by (From, To).
func (s *EdgeStore) Edges() []Edge {
	edges := make([]Edge, 0, s.pairs)
	for from, out := range s.forward {
		for to, count := range out {
			edges = append(edges, Edge{From: from, To: to, Count: count})
		}
	}
	slices.SortFunc(edges, func(a, b Edge) int {
		if c := strings.Compare(a.From, b.From); c != 0 {
			return c
		}
		return strings.Compare(a.To, b.To)
	})
	return edges
}

// Stats returns counters about the store.
func (s *EdgeStore) Stats() Stats {
	links := 0
	nodes := make(map[string]struct{}, len(s.forward)+len(s.reverse))
	for from, out := range s.forward {
		nodes[from] = struct{}{}
		for _, count := range out {
			links += count
		}
	}
	for to := range s.reverse {
		nodes[to] = struct{}{}
	}
	return Stats{
		EdgeCount: s.pairs,
		LinkCount: links,
		NodeCount: len(nodes),
	}
}

// Nodes returns every identifier touching at least one edge, sorted.
func (s *EdgeStore) Nodes() []string {
	nodes := make(map[string]struct{}, len(s.forward)+len(s.reverse))
	for id := range s.forward {
		nodes[id] = struct{}{}
	}
	for id := range s.reverse {
		nodes[id] = struct{}{}
	}
	return slices.Sorted(maps.Keys(nodes))
}

// Clone creates an independent deep copy of the store.
func (s *EdgeStore) Clone() *EdgeStore {
	clone := &EdgeStore{
		forward: make(map[string]map[string]int, len(s.forward)),
		reverse: make(map[string]map[string]int, len(s.reverse)),
		pairs:   s.pairs,
	}
	for from, out := range s.forward {
		clone.forward[from] = maps.Clone(out)
	}
	for to, in := range s.reverse {
		clone.reverse[to] = maps.Clone(in)
	}
	return clone
}

// Validate checks the bidirectional invariant.
//
// Description:
//
//	Verifies that every forward pair has a reverse twin with the same
//	multiplicity and vice versa, that no multiplicity is below 1, and that
//	the pair counter matches. Intended for tests and for checking a store
//	restored from an untrusted snapshot.
//
// Outputs:
//
//	error - Non-nil describing the first inconsistency found.
func (s *EdgeStore) Validate() error {
	pairs := 0
	for from, out := range s.forward {
		for to, count := range out {
			if count < 1 {
				return fmt.Errorf("edge %q -> %q: multiplicity %d < 1", from, to, count)
			}
			if back := s.reverse[to][from]; back != count {
				return fmt.Errorf("edge %q -> %q: forward count %d, reverse count %d", from, to, count, back)
			}
			pairs++
		}
	}
	for to, in := range s.reverse {
		for from, count := range in {
			if fwd := s.forward[from][to]; fwd != count {
				return fmt.Errorf("backlink %q <- %q: reverse count %d, forward count %d", to, from, count, fwd)
			}
		}
	}
	if pairs != s.pairs {
		return fmt.Errorf("pair counter %d, actual %d", s.pairs, pairs)
	}
	return nil
}

// adjacency returns the live adjacency map of id in the given direction.
// Callers must not modify the result.
func (s *EdgeStore) adjacency(id string, dir Direction) map[string]int {
	if dir == Backward {
		return s.reverse[id]
	}
	return s.forward[id]
}

// neighbors returns the adjacent IDs of id in lexicographic order.
func (s *EdgeStore) neighbors(id string, dir Direction) []string {
	adj := s.adjacency(id, dir)
	if len(adj) == 0 {
		return nil
	}
	return slices.Sorted(maps.Keys(adj))
}
