// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package snapshot

import (
	"context"
	"encoding/binary"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/nodegraph/services/nodegraph/store"
)

type page struct {
	Title string            `msgpack:"title"`
	Tags  []string          `msgpack:"tags"`
	Props map[string]string `msgpack:"props"`
	Level int               `msgpack:"level"`
}

func sampleDB(t *testing.T) *store.DB[page] {
	t.Helper()
	db := store.New[page]()
	values := map[string]page{
		"a": {Title: "Alpha", Tags: []string{"x", "y"}, Props: map[string]string{"k": "v", "b": "c"}, Level: 1},
		"b": {Title: "Beta"},
		"c": {Title: "Gamma", Level: 3},
	}
	for id, v := range values {
		_, err := db.Insert(v, store.WithID(id))
		require.NoError(t, err)
	}
	db.Link("a", "b", "b", "c")
	db.Link("b", "c")
	db.Link("c", "a")
	db.Link("c", "phantom")
	db.Link("phantom", "ghost")
	return db
}

func assertEquivalent(t *testing.T, want, got *store.DB[page]) {
	t.Helper()
	ids := want.IDs()
	sort.Strings(ids)
	gotIDs := got.IDs()
	sort.Strings(gotIDs)
	require.Equal(t, ids, gotIDs)

	assert.Equal(t, want.GetMany(ids...), got.GetMany(ids...))
	for _, id := range append(ids, "phantom", "ghost") {
		assert.Equal(t, want.GetLinks(id), got.GetLinks(id), "links of %s", id)
		assert.Equal(t, want.GetBacklinks(id), got.GetBacklinks(id), "backlinks of %s", id)
		assert.Equal(t, want.Links(id), got.Links(id), "multiplicity of %s", id)
	}
}

func TestWriteLoad_RoundTrip(t *testing.T) {
	for _, compress := range []bool{false, true} {
		name := "plain"
		if compress {
			name = "zstd"
		}
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			path := filepath.Join(t.TempDir(), "graph.snap")
			db := sampleDB(t)

			require.NoError(t, WriteFile(ctx, path, db, WithCompression(compress)))

			loaded, err := LoadFile[page](ctx, path)
			require.NoError(t, err)
			assertEquivalent(t, db, loaded)
			assert.Equal(t, 2, loaded.LinkCount("a", "b"))
			assert.Equal(t, 1, loaded.LinkCount("phantom", "ghost"))
			assert.False(t, loaded.Has("phantom"))
		})
	}
}

func TestWriteLoad_Empty(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "empty.snap")

	require.NoError(t, WriteFile(ctx, path, store.New[page]()))

	loaded, err := LoadFile[page](ctx, path)
	require.NoError(t, err)
	assert.Equal(t, 0, loaded.Len())
	assert.Equal(t, 0, loaded.EdgeCount())
}

func TestLoad_IndexesNotPersisted(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "graph.snap")
	db := sampleDB(t).NewIndex("title", func(p page) []string { return []string{p.Title} })
	db.Reindex(ctx)

	require.NoError(t, WriteFile(ctx, path, db))
	loaded, err := LoadFile[page](ctx, path)
	require.NoError(t, err)
	assert.False(t, loaded.HasIndex("title"))

	loaded.NewIndex("title", func(p page) []string { return []string{p.Title} })
	loaded.Reindex(ctx)
	ids, err := loaded.FindByIndex("title", "Beta")
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, ids)
}

func TestEncode_Deterministic(t *testing.T) {
	db := sampleDB(t)

	first, err := Encode(db.Dump(), false)
	require.NoError(t, err)
	second, err := Encode(db.Dump(), false)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	h, err := ReadHeader(first)
	require.NoError(t, err)
	assert.Equal(t, FormatVersion, h.Version)
	assert.False(t, h.Compressed())
	assert.Equal(t, uint64(len(first)-HeaderSize), h.PayloadLen)
}

func TestEncode_Compressed(t *testing.T) {
	db := store.New[page]()
	for i := 0; i < 200; i++ {
		_, err := db.Insert(page{Title: "repeated title text for compression"})
		require.NoError(t, err)
	}

	plain, err := Encode(db.Dump(), false)
	require.NoError(t, err)
	packed, err := Encode(db.Dump(), true)
	require.NoError(t, err)

	h, err := ReadHeader(packed)
	require.NoError(t, err)
	assert.True(t, h.Compressed())
	assert.Less(t, len(packed), len(plain))

	state, err := Decode[page](packed)
	require.NoError(t, err)
	assert.Len(t, state.Values, 200)
}

func TestLoad_Corrupt(t *testing.T) {
	valid, err := Encode(sampleDB(t).Dump(), false)
	require.NoError(t, err)

	corrupt := func(mutate func([]byte) []byte) []byte {
		data := append([]byte(nil), valid...)
		return mutate(data)
	}

	tests := []struct {
		name string
		data []byte
		want error
	}{
		{"empty file", []byte{}, ErrCorruptSnapshot},
		{"short header", valid[:10], ErrCorruptSnapshot},
		{"truncated payload", valid[:len(valid)-5], ErrCorruptSnapshot},
		{"trailing bytes", append(append([]byte(nil), valid...), 0xff), ErrCorruptSnapshot},
		{"bad magic", corrupt(func(b []byte) []byte { b[0] = 'X'; return b }), ErrCorruptSnapshot},
		{"flipped payload bit", corrupt(func(b []byte) []byte { b[HeaderSize+3] ^= 0x40; return b }), ErrCorruptSnapshot},
		{"future version", corrupt(func(b []byte) []byte {
			binary.BigEndian.PutUint16(b[8:10], 99)
			return b
		}), ErrUnsupportedVersion},
		{"unknown flag", corrupt(func(b []byte) []byte {
			binary.BigEndian.PutUint16(b[10:12], 0x8000)
			return b
		}), ErrUnsupportedVersion},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "bad.snap")
			require.NoError(t, os.WriteFile(path, tc.data, 0o644))

			db, err := LoadFile[page](context.Background(), path)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tc.want), "got %v", err)
			assert.Nil(t, db, "no partial store on failure")
		})
	}
}

func TestLoad_GarbagePayloadWithValidChecksum(t *testing.T) {
	payload := []byte{0xc1, 0xc1, 0xc1}
	h := Header{Version: FormatVersion, PayloadLen: uint64(len(payload))}
	h.Checksum = xxhashSum(payload)
	data := append(h.marshal(), payload...)

	_, err := Decode[page](data)
	assert.ErrorIs(t, err, ErrCorruptSnapshot)
}

func TestLoad_InconsistentState(t *testing.T) {
	state := store.State[page]{
		Values: []store.Entry[page]{{ID: "a"}, {ID: "a"}},
	}
	data, err := Encode(state, false)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "dup.snap")
	require.NoError(t, os.WriteFile(path, data, 0o644))

	db, err := LoadFile[page](context.Background(), path)
	assert.ErrorIs(t, err, ErrCorruptSnapshot)
	assert.ErrorIs(t, err, store.ErrInvalidState)
	assert.Nil(t, db)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := LoadFile[page](context.Background(), filepath.Join(t.TempDir(), "nope.snap"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, fs.ErrNotExist))
	assert.False(t, errors.Is(err, ErrCorruptSnapshot))
}

func TestWriteFile_ReplacesAtomically(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	path := filepath.Join(dir, "graph.snap")

	first := sampleDB(t)
	require.NoError(t, WriteFile(ctx, path, first))

	second := store.New[page]()
	_, err := second.Insert(page{Title: "only"}, store.WithID("only"))
	require.NoError(t, err)
	require.NoError(t, WriteFile(ctx, path, second))

	loaded, err := LoadFile[page](ctx, path)
	require.NoError(t, err)
	assert.Equal(t, []string{"only"}, loaded.IDs())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files are cleaned up")
}

func TestWriteFile_MissingDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "no", "such", "dir", "graph.snap")

	err := WriteFile(context.Background(), path, sampleDB(t))
	assert.Error(t, err)
}

func TestWriteFile_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	path := filepath.Join(t.TempDir(), "graph.snap")

	err := WriteFile(ctx, path, sampleDB(t))
	assert.ErrorIs(t, err, context.Canceled)
	_, statErr := os.Stat(path)
	assert.True(t, errors.Is(statErr, fs.ErrNotExist))
}

func TestWriteFile_FileMode(t *testing.T) {
	path := filepath.Join(t.TempDir(), "graph.snap")

	require.NoError(t, WriteFile(context.Background(), path, sampleDB(t), WithFileMode(0o600)))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}
