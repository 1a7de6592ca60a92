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
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDirection_String(t *testing.T) {
	tests := []struct {
		dir      Direction
		expected string
	}{
		{Forward, "forward"},
		{Backward, "backward"},
		{Direction(99), "unknown"},
	}

	for _, tc := range tests {
		assert.Equal(t, tc.expected, tc.dir.String())
	}
}

func TestEdgeStore_Link(t *testing.T) {
	t.Run("accumulates multiplicity", func(t *testing.T) {
		s := NewEdgeStore()
		s.Link("a", "b")
		s.Link("a", "b")
		s.Link("a", "c", "b")

		assert.Equal(t, 3, s.Count("a", "b"))
		assert.Equal(t, 1, s.Count("a", "c"))
		assert.Equal(t, 2, s.EdgeCount())
		assert.Equal(t, map[string]int{"a": 3}, s.Incoming("b"))
		assert.Equal(t, map[string]int{"b": 3, "c": 1}, s.Outgoing("a"))
		require.NoError(t, s.Validate())
	})

	t.Run("targets may be phantom", func(t *testing.T) {
		s := NewEdgeStore()
		s.Link("a", "ghost")

		assert.True(t, s.HasEdges("ghost"))
		assert.Equal(t, map[string]int{"a": 1}, s.Incoming("ghost"))
	})

	t.Run("LinkN ignores non-positive counts", func(t *testing.T) {
		s := NewEdgeStore()
		s.LinkN("a", "b", 0)
		s.LinkN("a", "b", -2)
		assert.Equal(t, 0, s.EdgeCount())

		s.LinkN("a", "b", 4)
		assert.Equal(t, 4, s.Count("a", "b"))
	})

	t.Run("returned maps are copies", func(t *testing.T) {
		s := NewEdgeStore()
		s.Link("a", "b")

		out := s.Outgoing("a")
		out["b"] = 100
		out["z"] = 1

		assert.Equal(t, 1, s.Count("a", "b"))
		assert.Equal(t, 0, s.Count("a", "z"))
	})
}

func TestEdgeStore_Unlink(t *testing.T) {
	s := NewEdgeStore()
	s.Link("a", "b")
	s.Link("a", "b")
	s.Link("c", "b")

	assert.True(t, s.Unlink("a", "b"), "pair existed")
	assert.Equal(t, 0, s.Count("a", "b"), "unlink removes the whole multiplicity")
	assert.Equal(t, map[string]int{"c": 1}, s.Incoming("b"))
	assert.False(t, s.HasEdges("a"))
	assert.Equal(t, 1, s.EdgeCount())

	assert.False(t, s.Unlink("a", "b"), "second unlink is a no-op")
	assert.False(t, s.Unlink("x", "y"))
	require.NoError(t, s.Validate())
}

func TestEdgeStore_RemoveNode(t *testing.T) {
	s := NewEdgeStore()
	s.Link("a", "b")
	s.Link("c", "a")
	s.Link("a", "a")
	s.Link("b", "c")

	removed := s.RemoveNode("a")

	assert.Equal(t, 3, removed)
	assert.Equal(t, 1, s.EdgeCount())
	assert.False(t, s.HasEdges("a"))
	assert.Empty(t, s.Outgoing("c"))
	assert.Empty(t, s.Incoming("b"))
	assert.Equal(t, []Edge{{From: "b", To: "c", Count: 1}}, s.Edges())
	require.NoError(t, s.Validate())

	assert.Equal(t, 0, s.RemoveNode("a"), "removing twice is a no-op")
}

func TestEdgeStore_Edges_Sorted(t *testing.T) {
	s := NewEdgeStore()
	s.Link("b", "a")
	s.Link("a", "c")
	s.Link("a", "b", "b")

	assert.Equal(t, []Edge{
		{From: "a", To: "b", Count: 2},
		{From: "a", To: "c", Count: 1},
		{From: "b", To: "a", Count: 1},
	}, s.Edges())
}

func TestEdgeStore_Stats(t *testing.T) {
	s := NewEdgeStore()
	s.Link("a", "b", "b", "c")
	s.Link("d", "a")

	stats := s.Stats()
	assert.Equal(t, 3, stats.EdgeCount)
	assert.Equal(t, 4, stats.LinkCount)
	assert.Equal(t, 4, stats.NodeCount)
}

func TestEdgeStore_Clone(t *testing.T) {
	s := NewEdgeStore()
	s.Link("a", "b")

	clone := s.Clone()
	clone.Link("a", "b")
	clone.Link("x", "y")

	assert.Equal(t, 1, s.Count("a", "b"))
	assert.Equal(t, 1, s.EdgeCount())
	assert.Equal(t, 2, clone.Count("a", "b"))
	assert.Equal(t, 2, clone.EdgeCount())
	require.NoError(t, clone.Validate())
}

// TestEdgeStore_BidirectionalInvariant applies a random mix of link, unlink
// and remove operations and checks that links and backlinks always agree.
func TestEdgeStore_BidirectionalInvariant(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	ids := make([]string, 12)
	for i := range ids {
		ids[i] = fmt.Sprintf("n%d", i)
	}
	pick := func() string { return ids[rng.Intn(len(ids))] }

	s := NewEdgeStore()
	for i := 0; i < 2000; i++ {
		switch op := rng.Intn(10); {
		case op < 6:
			s.Link(pick(), pick())
		case op < 8:
			s.Unlink(pick(), pick())
		default:
			s.RemoveNode(pick())
		}

		if i%50 != 0 {
			continue
		}
		require.NoError(t, s.Validate(), "after op %d", i)
		for _, a := range ids {
			for b, m := range s.Outgoing(a) {
				assert.Equal(t, m, s.Incoming(b)[a], "links(%s)[%s] vs backlinks(%s)[%s]", a, b, b, a)
			}
			for b, m := range s.Incoming(a) {
				assert.Equal(t, m, s.Outgoing(b)[a])
			}
		}
	}
	require.NoError(t, s.Validate())
}

func TestEdgeStore_Nodes(t *testing.T) {
	s := NewEdgeStore()
	assert.Empty(t, s.Nodes())

	s.Link("b", "c")
	s.Link("a", "b")
	assert.Equal(t, []string{"a", "b", "c"}, s.Nodes())
}
