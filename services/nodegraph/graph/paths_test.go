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
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pathGraph builds 1->2, 1->3, 1->4, 4->1, 4->5, 5->3.
func pathGraph() *EdgeStore {
	s := NewEdgeStore()
	s.Link("1", "2", "3", "4")
	s.Link("4", "1", "5")
	s.Link("5", "3")
	return s
}

func TestPaths_Example(t *testing.T) {
	s := pathGraph()

	got := slices.Collect(s.Paths("1", "3"))
	assert.Equal(t, [][]string{
		{"1", "3"},
		{"1", "4", "5", "3"},
	}, got)
}

func TestPaths_SameNode(t *testing.T) {
	s := pathGraph()

	assert.Equal(t, [][]string{{"1"}}, slices.Collect(s.Paths("1", "1")))

	path, ok := s.ShortestPath("1", "1")
	require.True(t, ok)
	assert.Equal(t, []string{"1"}, path)

	// Also holds for a node that has no edges at all.
	assert.Equal(t, [][]string{{"zz"}}, slices.Collect(s.Paths("zz", "zz")))
}

func TestPaths_NoPath(t *testing.T) {
	s := pathGraph()

	assert.Empty(t, slices.Collect(s.Paths("3", "1")))
	assert.Empty(t, slices.Collect(s.Paths("1", "missing")))

	_, ok := s.ShortestPath("2", "1")
	assert.False(t, ok)
}

func TestPaths_MaxDistance(t *testing.T) {
	s := pathGraph()

	assert.Equal(t, [][]string{{"1", "3"}}, slices.Collect(s.Paths("1", "3", WithMaxDistance(2))))
	assert.Empty(t, slices.Collect(s.Paths("1", "5", WithMaxDistance(1))))
	assert.Equal(t, [][]string{{"1", "4", "5"}}, slices.Collect(s.Paths("1", "5", WithMaxDistance(2))))
}

func TestPaths_NonDecreasingLength(t *testing.T) {
	// Dense graph with cycles: every node links to every other node.
	s := NewEdgeStore()
	ids := []string{"a", "b", "c", "d", "e"}
	for _, from := range ids {
		for _, to := range ids {
			if from != to {
				s.Link(from, to)
			}
		}
	}

	paths := slices.Collect(s.Paths("a", "e"))

	// Simple paths a..e through any ordered subset of {b,c,d}: 1 + 3 + 6 + 6.
	require.Len(t, paths, 16)
	for i := 1; i < len(paths); i++ {
		assert.LessOrEqual(t, len(paths[i-1]), len(paths[i]))
	}
	for _, p := range paths {
		assert.Equal(t, "a", p[0])
		assert.Equal(t, "e", p[len(p)-1])
		seen := make(map[string]bool)
		for _, id := range p {
			assert.False(t, seen[id], "node %s repeated in %v", id, p)
			seen[id] = true
		}
	}
}

func TestPaths_Deterministic(t *testing.T) {
	s := pathGraph()
	s.Link("1", "6")
	s.Link("6", "3")
	s.Link("2", "3")

	first := slices.Collect(s.Paths("1", "3"))
	second := slices.Collect(s.Paths("1", "3"))

	assert.Equal(t, first, second)
	assert.Equal(t, [][]string{
		{"1", "3"},
		{"1", "2", "3"},
		{"1", "6", "3"},
		{"1", "4", "5", "3"},
	}, first)
}

func TestPaths_EarlyStopAndOwnership(t *testing.T) {
	s := pathGraph()

	var got [][]string
	for p := range s.Paths("1", "3") {
		got = append(got, p)
		break
	}
	require.Len(t, got, 1)

	got[0][0] = "mutated"
	again, ok := s.ShortestPath("1", "3")
	require.True(t, ok)
	assert.Equal(t, []string{"1", "3"}, again)
}

func TestPaths_DoesNotPassThroughTarget(t *testing.T) {
	// a -> t -> b -> t would require visiting t twice.
	s := NewEdgeStore()
	s.Link("a", "t")
	s.Link("t", "b")
	s.Link("b", "t")

	assert.Equal(t, [][]string{{"a", "t"}}, slices.Collect(s.Paths("a", "t")))
}

// completeGraph links every pair of n0..n(size-1) both ways.
func completeGraph(size int) *EdgeStore {
	s := NewEdgeStore()
	for i := range size {
		for j := range size {
			if i != j {
				s.Link(fmt.Sprintf("n%d", i), fmt.Sprintf("n%d", j))
			}
		}
	}
	return s
}

func TestPaths_Done(t *testing.T) {
	t.Run("closed before start", func(t *testing.T) {
		done := make(chan struct{})
		close(done)
		assert.Empty(t, slices.Collect(pathGraph().Paths("1", "3", WithDone(done))))
	})

	t.Run("closed mid search", func(t *testing.T) {
		// Simple paths between two nodes of K12 number in the millions.
		s := completeGraph(12)
		done := make(chan struct{})

		var got [][]string
		for p := range s.Paths("n0", "n11", WithDone(done)) {
			got = append(got, p)
			if len(got) == 3 {
				close(done)
			}
		}
		assert.Len(t, got, 3)
		assert.Equal(t, []string{"n0", "n11"}, got[0])
	})

	t.Run("stops walk", func(t *testing.T) {
		s := completeGraph(5)
		done := make(chan struct{})

		var seen int
		for range s.Walk("n0", Forward, WithDone(done)) {
			seen++
			close(done)
		}
		assert.Equal(t, 1, seen)
	})
}
