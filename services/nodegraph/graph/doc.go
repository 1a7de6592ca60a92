// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package graph provides the edge store and traversal engine for the note graph.
//
// The graph package stores directed edges between node identifiers. It knows
// nothing about node values: an identifier referenced by an edge does not need
// to exist anywhere else ("phantom" node), and every query tolerates that.
//
// # Edge Model
//
// Each edge is a (from, to) pair carrying a multiplicity: the number of times
// the link was declared. Edges are held twice:
//
//   - forward: from -> to -> count (links)
//   - reverse: to -> from -> count (backlinks)
//
// Both views always hold the same pairs with the same counts. Every mutating
// method updates both sides before returning.
//
// # Traversal
//
// Reachability (Reachable, Walk) is breadth-first and parameterized by
// Direction, so links and backlinks share one implementation. Path enumeration
// (Paths, ShortestPath) tracks the path so far rather than a visited set, and
// emits simple paths in non-decreasing hop count.
//
// Neighbours are always visited in lexicographic order, so traversal output is
// deterministic for a given edge set.
//
// # Thread Safety
//
// EdgeStore is NOT safe for concurrent use. It is designed for a single
// logical thread of control; callers that share a store across goroutines
// must synchronize externally. Sequences returned by Walk and Paths are
// single-pass and must not be consumed while the store is being mutated.
package graph
