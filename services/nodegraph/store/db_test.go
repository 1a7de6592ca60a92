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
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type note struct {
	Title string
	Tags  []string
}

func TestInsert_GeneratesUUID(t *testing.T) {
	db := New[note]()

	id, err := db.Insert(note{Title: "a"})
	require.NoError(t, err)

	_, err = uuid.Parse(id)
	assert.NoError(t, err, "generated id should be a UUID")

	got, ok := db.Get(id)
	require.True(t, ok)
	assert.Equal(t, "a", got.Title)
	assert.Equal(t, 1, db.Len())
}

func TestInsert_CustomGenerator(t *testing.T) {
	n := 0
	db := New[note](WithIDGenerator(func() string {
		n++
		return fmt.Sprintf("gen-%d", n)
	}))

	id1, err := db.Insert(note{})
	require.NoError(t, err)
	id2, err := db.Insert(note{})
	require.NoError(t, err)

	assert.Equal(t, "gen-1", id1)
	assert.Equal(t, "gen-2", id2)
}

func TestInsert_Duplicate(t *testing.T) {
	db := New[note]()
	_, err := db.Insert(note{Title: "first"}, WithID("x"))
	require.NoError(t, err)

	_, err = db.Insert(note{Title: "second"}, WithID("x"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDuplicateID))

	var dup *DuplicateIDError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, "x", dup.ID)

	got, _ := db.Get("x")
	assert.Equal(t, "first", got.Title, "failed insert must not change the value")
}

func TestInsert_EmptyID(t *testing.T) {
	db := New[note]()

	_, err := db.Insert(note{}, WithID(""))
	assert.ErrorIs(t, err, ErrEmptyID)
	assert.Equal(t, 0, db.Len())
}

func TestInsert_OverwritePreservesEdges(t *testing.T) {
	db := New[note]()
	_, err := db.Insert(note{Title: "old"}, WithID("x"))
	require.NoError(t, err)
	db.Link("x", "y")
	db.Link("y", "x")

	id, err := db.Insert(note{Title: "new"}, WithID("x"), WithOverwrite())
	require.NoError(t, err)
	assert.Equal(t, "x", id)

	got, _ := db.Get("x")
	assert.Equal(t, "new", got.Title)
	assert.Equal(t, map[string]int{"y": 1}, db.Links("x"))
	assert.Equal(t, map[string]int{"y": 1}, db.Backlinks("x"))
}

func TestInsert_OverwriteNewID(t *testing.T) {
	db := New[note]()

	_, err := db.Insert(note{Title: "n"}, WithID("x"), WithOverwrite())
	require.NoError(t, err)
	assert.True(t, db.Has("x"))
}

func TestGetMany(t *testing.T) {
	db := New[note]()
	for _, id := range []string{"a", "b", "c"} {
		_, err := db.Insert(note{Title: strings.ToUpper(id)}, WithID(id))
		require.NoError(t, err)
	}

	got := db.GetMany("a", "c", "missing")

	assert.Len(t, got, 2)
	assert.Equal(t, "A", got["a"].Title)
	assert.Equal(t, "C", got["c"].Title)
	_, ok := got["missing"]
	assert.False(t, ok)
}

func TestGet_Missing(t *testing.T) {
	db := New[note]()

	v, ok := db.Get("nope")
	assert.False(t, ok)
	assert.Equal(t, note{}, v)
	assert.False(t, db.Has("nope"))
}

func TestIDs(t *testing.T) {
	db := New[note]()
	for _, id := range []string{"b", "a", "c"} {
		_, err := db.Insert(note{}, WithID(id))
		require.NoError(t, err)
	}
	db.Link("a", "phantom")

	ids := db.IDs()
	slices.Sort(ids)
	assert.Equal(t, []string{"a", "b", "c"}, ids, "phantom targets are not IDs")

	lazy := slices.Sorted(db.AllIDs())
	assert.Equal(t, ids, lazy)
}

func TestRemove_CascadesEdges(t *testing.T) {
	db := New[note]()
	for _, id := range []string{"a", "b", "c"} {
		_, err := db.Insert(note{}, WithID(id))
		require.NoError(t, err)
	}
	db.Link("a", "b")
	db.Link("b", "c")
	db.Link("c", "b")
	db.Link("b", "b")

	v, ok := db.Remove("b")
	require.True(t, ok)
	assert.Equal(t, note{}, v)

	assert.False(t, db.Has("b"))
	assert.Empty(t, db.Links("a"))
	assert.Empty(t, db.Links("c"))
	assert.Empty(t, db.Backlinks("c"))
	assert.Empty(t, db.GetBacklinks("b"))
	assert.Equal(t, 0, db.EdgeCount())
	for _, id := range db.IDs() {
		_, linked := db.Links(id)["b"]
		assert.False(t, linked, "%s still links to removed node", id)
	}
}

func TestRemove_Idempotent(t *testing.T) {
	db := New[note]()
	_, err := db.Insert(note{Title: "x"}, WithID("x"))
	require.NoError(t, err)

	_, ok := db.Remove("x")
	assert.True(t, ok)

	v, ok := db.Remove("x")
	assert.False(t, ok)
	assert.Equal(t, note{}, v)

	_, ok = db.Remove("never-existed")
	assert.False(t, ok)
}

func TestRemove_PhantomDropsEdges(t *testing.T) {
	db := New[note]()
	db.Link("a", "ghost")

	_, ok := db.Remove("ghost")
	assert.False(t, ok, "phantom has no value")
	assert.Empty(t, db.Links("a"))
}

func TestLinks_Multiplicity(t *testing.T) {
	db := New[note]()
	db.Link("a", "b")
	db.Link("a", "b", "c")
	db.LinkN("a", "c", 3)
	db.LinkN("a", "d", 0)

	assert.Equal(t, 2, db.LinkCount("a", "b"))
	assert.Equal(t, 4, db.LinkCount("a", "c"))
	assert.Equal(t, 0, db.LinkCount("a", "d"))
	assert.Equal(t, map[string]int{"a": 2}, db.Backlinks("b"))

	assert.True(t, db.Unlink("a", "c"))
	assert.Equal(t, 0, db.LinkCount("a", "c"))
	assert.False(t, db.Unlink("a", "c"))
}

func TestUnlinkAll(t *testing.T) {
	db := New[note]()
	db.Link("a", "b", "c", "c")
	db.Link("z", "a")

	assert.Equal(t, 2, db.UnlinkAll("a"))
	assert.Empty(t, db.Links("a"))
	assert.Equal(t, map[string]int{"z": 1}, db.Backlinks("a"))
	assert.Equal(t, 0, db.UnlinkAll("a"))
}

func TestLink_EmptyEndpoint(t *testing.T) {
	db := New[note]()
	require.NoError(t, db.Link("a", "b"))
	version := db.Version()

	assert.ErrorIs(t, db.Link("a", ""), ErrEmptyID)
	assert.ErrorIs(t, db.Link("", "a"), ErrEmptyID)
	assert.ErrorIs(t, db.Link("a", "c", ""), ErrEmptyID)
	assert.ErrorIs(t, db.LinkN("a", "", 2), ErrEmptyID)

	assert.Equal(t, map[string]int{"b": 1}, db.Links("a"), "rejected calls link nothing")
	assert.Equal(t, 1, db.EdgeCount())
	assert.Equal(t, version, db.Version())

	_, err := FromState(db.Dump())
	assert.NoError(t, err)
}

func TestGetLinks_DepthBounding(t *testing.T) {
	db := New[note]()
	db.Link("1", "2")
	db.Link("2", "3")
	db.Link("3", "4")

	assert.Equal(t, map[string]int{"2": 1, "3": 2}, db.GetLinks("1", WithMaxDepth(2)))
	assert.Equal(t, map[string]int{"2": 1, "3": 2, "4": 3}, db.GetLinks("1"))
	assert.Equal(t, map[string]int{"3": 1, "2": 2}, db.GetBacklinks("4", WithMaxDepth(2)))
	assert.Empty(t, db.GetLinks("4"))
}

func TestIterNodes(t *testing.T) {
	db := New[note]()
	db.Link("a", "b", "c")
	db.Link("b", "d")

	type pair struct {
		id string
		d  int
	}
	var got []pair
	for id, d := range db.IterNodes("a", WithMaxNodes(3)) {
		got = append(got, pair{id, d})
	}
	assert.Equal(t, []pair{{"a", 0}, {"b", 1}, {"c", 1}}, got)
}

func TestIterBacklinkNodes(t *testing.T) {
	db := New[note]()
	db.Link("a", "b", "c")
	db.Link("b", "d")
	db.Link("c", "d")

	type pair struct {
		id string
		d  int
	}
	var got []pair
	for id, d := range db.IterBacklinkNodes("d") {
		got = append(got, pair{id, d})
	}
	assert.Equal(t, []pair{{"d", 0}, {"b", 1}, {"c", 1}, {"a", 2}}, got)
}

func TestIterPaths(t *testing.T) {
	db := New[note]()
	db.Link("1", "2", "3", "4")
	db.Link("4", "1", "5")
	db.Link("5", "3")

	assert.Equal(t, [][]string{{"1", "3"}, {"1", "4", "5", "3"}}, slices.Collect(db.IterPaths("1", "3")))

	path, ok := db.FindPath("1", "1")
	require.True(t, ok)
	assert.Equal(t, []string{"1"}, path)

	path, ok = db.FindPath("1", "5")
	require.True(t, ok)
	assert.Equal(t, []string{"1", "4", "5"}, path)

	_, ok = db.FindPath("3", "1")
	assert.False(t, ok)
}

func TestIndex_RebuildSemantics(t *testing.T) {
	ctx := context.Background()
	db := New[note]()
	_, err := db.Insert(note{Title: "a", Tags: []string{"x", "y"}}, WithID("1"))
	require.NoError(t, err)
	_, err = db.Insert(note{Title: "b", Tags: []string{"y"}}, WithID("2"))
	require.NoError(t, err)

	db.NewIndex("tag", func(n note) []string { return n.Tags })

	ids, err := db.FindByIndex("tag", "y")
	require.NoError(t, err)
	assert.Empty(t, ids, "registration does not populate")

	assert.Equal(t, 2, db.Reindex(ctx))
	ids, err = db.FindByIndex("tag", "y")
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2"}, ids)

	// Mutation is not reflected until the next reindex.
	_, err = db.Insert(note{Tags: []string{"y"}}, WithID("3"))
	require.NoError(t, err)
	ids, _ = db.FindByIndex("tag", "y")
	assert.Equal(t, []string{"1", "2"}, ids)

	db.Remove("1")
	db.Reindex(ctx)
	ids, _ = db.FindByIndex("tag", "y")
	assert.Equal(t, []string{"2", "3"}, ids)
	ids, _ = db.FindByIndex("tag", "x")
	assert.Empty(t, ids)
}

func TestIndex_Chaining(t *testing.T) {
	db := New[note]().
		NewIndex("title", func(n note) []string { return []string{n.Title} }).
		NewIndex("tag", func(n note) []string { return n.Tags })

	assert.True(t, db.HasIndex("title"))
	assert.True(t, db.HasIndex("tag"))
	assert.Equal(t, []string{"title", "tag"}, db.IndexNames())

	_, err := db.FindByIndex("missing", "k")
	assert.ErrorIs(t, err, ErrUnknownIndex)
	var unknown *UnknownIndexError
	assert.ErrorAs(t, err, &unknown)

	_, err = db.IndexKeys("missing")
	assert.ErrorIs(t, err, ErrUnknownIndex)
}

func TestIndex_KeysAndPredicate(t *testing.T) {
	db := New[note]().NewIndex("tag", func(n note) []string { return n.Tags })
	_, _ = db.Insert(note{Tags: []string{"go", "graph"}}, WithID("1"))
	_, _ = db.Insert(note{Tags: []string{"rust"}}, WithID("2"))
	db.Reindex(context.Background())

	keys, err := db.IndexKeys("tag")
	require.NoError(t, err)
	assert.Equal(t, []string{"go", "graph", "rust"}, slices.Collect(keys))

	ids, err := db.FindByIndexFunc("tag", func(k string) bool { return strings.HasPrefix(k, "g") })
	require.NoError(t, err)
	assert.Equal(t, []string{"1"}, ids)
}

func TestVersion(t *testing.T) {
	db := New[note]()
	v0 := db.Version()

	_, _ = db.Insert(note{}, WithID("a"))
	v1 := db.Version()
	assert.Greater(t, v1, v0)

	_, _ = db.Insert(note{}, WithID("a"))
	assert.Equal(t, v1, db.Version(), "failed insert does not bump")

	db.Get("a")
	db.GetLinks("a")
	assert.Equal(t, v1, db.Version(), "reads do not bump")

	db.Link("a", "b")
	v2 := db.Version()
	assert.Greater(t, v2, v1)

	db.Unlink("x", "y")
	db.Remove("missing")
	assert.Equal(t, v2, db.Version(), "no-op mutations do not bump")

	db.Remove("a")
	assert.Greater(t, db.Version(), v2)
}

func TestStats(t *testing.T) {
	db := New[note]().NewIndex("title", func(n note) []string { return []string{n.Title} })
	_, _ = db.Insert(note{Title: "a"}, WithID("a"))
	_, _ = db.Insert(note{Title: "b"}, WithID("b"))
	db.Link("a", "b", "b")
	db.Link("a", "ghost")
	db.Reindex(context.Background())

	stats := db.Stats()
	assert.Equal(t, 2, stats.Nodes)
	assert.Equal(t, 1, stats.PhantomNodes)
	assert.Equal(t, 2, stats.Edges)
	assert.Equal(t, 3, stats.Links)
	assert.Equal(t, map[string]int{"title": 2}, stats.IndexKeys)
	assert.Equal(t, db.Version(), stats.Version)
}

func TestWithLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	db := New[note](WithLogger(logger))
	_, _ = db.Insert(note{}, WithID("a"))
	db.Remove("a")

	assert.Contains(t, buf.String(), "node removed")
	assert.Contains(t, buf.String(), "id=a")
}
