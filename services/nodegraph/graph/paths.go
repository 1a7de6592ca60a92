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

import "iter"

// Paths enumerates every simple forward path from `from` to `to`.
//
// Description:
//
//	Uses iterative deepening: for hop count L = 1, 2, ... a depth-limited
//	DFS yields the paths of exactly L hops. Paths therefore come out in
//	non-decreasing length, shortest first. Within one length the order
//	follows lexicographic neighbour order, so output is deterministic.
//
//	No node appears twice within a path. A path never passes through `to`
//	before its last element.
//
// Inputs:
//
//	from - ID of the start node.
//	to - ID of the target node.
//	opts - WithMaxDepth / WithMaxDistance bounds the hop count. WithDone
//	abandons the search, which otherwise cannot be interrupted between
//	yielded paths.
//
// Outputs:
//
//	iter.Seq[[]string] - Lazy sequence of paths, each a fresh slice owned by
//	the caller. Empty if no path exists within the bound. When from == to
//	the sequence holds exactly one path, [from].
//
// Limitations:
//
//	The number of simple paths can grow exponentially with graph size.
//	Callers on large graphs should bound the depth or stop early.
func (s *EdgeStore) Paths(from, to string, opts ...TraversalOption) iter.Seq[[]string] {
	options := applyTraversalOptions(opts)

	return func(yield func([]string) bool) {
		if from == to {
			yield([]string{from})
			return
		}

		w := &pathWalker{
			store:  s,
			target: to,
			path:   []string{from},
			onPath: map[string]struct{}{from: {}},
			done:   options.Done,
			yield:  yield,
		}

		for length := 1; options.MaxDepth == Unbounded || length <= options.MaxDepth; length++ {
			w.length = length
			w.frontier = false
			if !w.visit(from, 0) {
				return
			}
			// No partial path reached this length, so no longer path exists.
			if !w.frontier {
				return
			}
		}
	}
}

// ShortestPath returns the first path produced by Paths.
//
// Outputs:
//
//	[]string - The path, including from and to.
//	bool - False if no path exists within the bound.
func (s *EdgeStore) ShortestPath(from, to string, opts ...TraversalOption) ([]string, bool) {
	for path := range s.Paths(from, to, opts...) {
		return path, true
	}
	return nil, false
}

// pathWalker holds the DFS state for one Paths enumeration.
type pathWalker struct {
	store  *EdgeStore
	target string
	length int

	path   []string
	onPath map[string]struct{}

	// frontier is set when a non-target node sits at exactly `length` hops,
	// meaning longer simple paths may still exist.
	frontier bool

	done  <-chan struct{}
	yield func([]string) bool
}

// visit extends the current path from node at the given depth.
// Returns false when the consumer stopped the iteration or done closed.
func (w *pathWalker) visit(node string, depth int) bool {
	if stopped(w.done) {
		return false
	}
	for _, next := range w.store.neighbors(node, Forward) {
		if _, seen := w.onPath[next]; seen {
			continue
		}

		if next == w.target {
			if depth+1 == w.length {
				found := make([]string, len(w.path)+1)
				copy(found, w.path)
				found[len(w.path)] = next
				if !w.yield(found) {
					return false
				}
			}
			continue
		}

		if depth+1 == w.length {
			w.frontier = true
			continue
		}

		w.onPath[next] = struct{}{}
		w.path = append(w.path, next)
		ok := w.visit(next, depth+1)
		w.path = w.path[:len(w.path)-1]
		delete(w.onPath, next)
		if !ok {
			return false
		}
	}
	return true
}
