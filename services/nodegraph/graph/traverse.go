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

// bfsStep is a queued node with its distance from the start.
type bfsStep struct {
	id       string
	distance int
}

// Walk performs a breadth-first traversal from start.
//
// Description:
//
//	Yields (id, distance) pairs, beginning with (start, 0). Each node is
//	visited at most once, at its minimum distance; ties are broken by
//	enqueue order, and neighbours are enqueued in lexicographic order.
//
// Inputs:
//
//	start - ID of the start node. Need not have any edges.
//	dir - Forward for links, Backward for backlinks.
//	opts - WithMaxDepth, WithMaxNodes, WithFilter, WithDone.
//
// Outputs:
//
//	iter.Seq2[string, int] - Lazy, single-pass sequence. Calling Walk again
//	restarts the traversal. Safe to abandon early.
//
// Behavior:
//
//   - A node rejected by the filter is neither yielded nor expanded.
//   - MaxNodes counts yielded nodes, including the start node.
//   - MaxDepth stops expansion at that distance; nodes at exactly MaxDepth
//     are still yielded.
//
// Example:
//
//	for id, dist := range edges.Walk("a", graph.Forward, graph.WithMaxDepth(2)) {
//	    fmt.Println(id, dist)
//	}
func (s *EdgeStore) Walk(start string, dir Direction, opts ...TraversalOption) iter.Seq2[string, int] {
	options := applyTraversalOptions(opts)

	return func(yield func(string, int) bool) {
		if options.MaxNodes == 0 {
			return
		}
		visited := map[string]struct{}{start: {}}
		queue := []bfsStep{{id: start, distance: 0}}
		emitted := 0

		for head := 0; head < len(queue); head++ {
			if stopped(options.Done) {
				return
			}
			step := queue[head]
			queue[head] = bfsStep{}

			if options.Filter != nil && !options.Filter(step.id, step.distance) {
				continue
			}
			if !yield(step.id, step.distance) {
				return
			}
			emitted++
			if options.MaxNodes != Unbounded && emitted >= options.MaxNodes {
				return
			}
			if options.MaxDepth != Unbounded && step.distance >= options.MaxDepth {
				continue
			}

			for _, next := range s.neighbors(step.id, dir) {
				if _, seen := visited[next]; seen {
					continue
				}
				visited[next] = struct{}{}
				queue = append(queue, bfsStep{id: next, distance: step.distance + 1})
			}
		}
	}
}

// Reachable returns every node reachable from id, mapped to its minimum hop count.
//
// Description:
//
//	Shares the Walk core and its options. The start node is excluded from
//	the result even when a cycle leads back to it. With WithMaxDepth(1)
//	the result holds the direct neighbours only.
//
// Inputs:
//
//	id - ID of the start node.
//	dir - Forward for links, Backward for backlinks.
//	opts - Walk options. Without WithMaxDepth the depth is unbounded.
//
// Outputs:
//
//	map[string]int - Reachable IDs to distance. Empty (never nil) if none.
func (s *EdgeStore) Reachable(id string, dir Direction, opts ...TraversalOption) map[string]int {
	result := make(map[string]int)
	for node, distance := range s.Walk(id, dir, opts...) {
		if distance == 0 {
			continue
		}
		result[node] = distance
	}
	return result
}
