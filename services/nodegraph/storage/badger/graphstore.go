// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package badger

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/vmihailenco/msgpack/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/AleutianAI/nodegraph/services/nodegraph/snapshot"
	"github.com/AleutianAI/nodegraph/services/nodegraph/store"
)

var tracer = otel.Tracer("nodegraph.storage.badger")

// ErrNoSnapshot is returned by Load when the directory holds no generation.
var ErrNoSnapshot = errors.New("no snapshot in badger directory")

var generationKey = []byte("m/generation")

func generationPrefix(gen uint64) []byte {
	return []byte(fmt.Sprintf("g/%016x/", gen))
}

func valuePrefix(gen uint64) []byte {
	return append(generationPrefix(gen), "v/"...)
}

func edgePrefix(gen uint64) []byte {
	return append(generationPrefix(gen), "e/"...)
}

// Generation returns the current generation, or 0 if nothing was saved.
func (d *DB) Generation(ctx context.Context) (uint64, error) {
	var gen uint64
	err := d.withReadTxn(ctx, func(txn *badger.Txn) error {
		var err error
		gen, err = readGeneration(txn)
		return err
	})
	return gen, err
}

func readGeneration(txn *badger.Txn) (uint64, error) {
	item, err := txn.Get(generationKey)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read generation: %w", err)
	}
	var gen uint64
	err = item.Value(func(val []byte) error {
		if len(val) != 8 {
			return fmt.Errorf("%w: generation key holds %d bytes", snapshot.ErrCorruptSnapshot, len(val))
		}
		gen = binary.BigEndian.Uint64(val)
		return nil
	})
	return gen, err
}

// Save writes the values and edges of db as a new generation.
//
// Description:
//
//	Writes every value and edge under a fresh generation prefix, then
//	points m/generation at it in one transaction and drops the previous
//	generation. Until the pointer moves, Load keeps returning the previous
//	generation. db is dumped before any I/O and may be mutated once Save
//	returns.
//
// Outputs:
//
//	uint64 - The generation that was written.
//	error - Non-nil on encoding or BadgerDB failure.
func Save[V any](ctx context.Context, d *DB, db *store.DB[V]) (gen uint64, err error) {
	ctx, span := tracer.Start(ctx, "badger.Save")
	defer span.End()
	start := time.Now()
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	}()

	state := db.Dump()

	prev, err := d.Generation(ctx)
	if err != nil {
		return 0, err
	}
	gen = prev + 1

	// A crashed earlier Save may have left keys under this generation.
	if err := d.db.DropPrefix(generationPrefix(gen)); err != nil {
		return 0, fmt.Errorf("clear generation %d: %w", gen, err)
	}

	wb := d.db.NewWriteBatch()
	defer wb.Cancel()

	vp := valuePrefix(gen)
	for _, entry := range state.Values {
		data, err := msgpack.Marshal(&entry.Value)
		if err != nil {
			return 0, fmt.Errorf("encode value %q: %w", entry.ID, err)
		}
		key := append(append([]byte(nil), vp...), entry.ID...)
		if err := wb.Set(key, data); err != nil {
			return 0, fmt.Errorf("write value %q: %w", entry.ID, err)
		}
	}

	ep := edgePrefix(gen)
	for i, edge := range state.Edges {
		data, err := msgpack.Marshal(&edge)
		if err != nil {
			return 0, fmt.Errorf("encode edge %q -> %q: %w", edge.From, edge.To, err)
		}
		key := append(append([]byte(nil), ep...), fmt.Sprintf("%016x", i)...)
		if err := wb.Set(key, data); err != nil {
			return 0, fmt.Errorf("write edge %d: %w", i, err)
		}
	}
	if err := wb.Flush(); err != nil {
		return 0, fmt.Errorf("flush generation %d: %w", gen, err)
	}

	err = d.withTxn(ctx, func(txn *badger.Txn) error {
		buf := make([]byte, 8)
		binary.BigEndian.PutUint64(buf, gen)
		return txn.Set(generationKey, buf)
	})
	if err != nil {
		return 0, fmt.Errorf("switch to generation %d: %w", gen, err)
	}

	if prev > 0 {
		if err := d.db.DropPrefix(generationPrefix(prev)); err != nil {
			// The new generation is live; a stale one only costs space.
			d.logger.Warn("drop previous generation",
				slog.Uint64("generation", prev),
				slog.String("error", err.Error()),
			)
		}
	}

	span.SetAttributes(
		attribute.Int64("badger.generation", int64(gen)),
		attribute.Int("badger.values", len(state.Values)),
		attribute.Int("badger.edges", len(state.Edges)),
	)
	d.logger.Debug("badger snapshot saved",
		slog.Uint64("generation", gen),
		slog.Int("values", len(state.Values)),
		slog.Int("edges", len(state.Edges)),
		slog.Duration("duration", time.Since(start)),
	)
	return gen, nil
}

// Load restores a DB from the current generation.
//
// Outputs:
//
//	*store.DB[V] - The restored store with no indexes. Nil on error.
//	error - ErrNoSnapshot if nothing was saved; wraps
//	snapshot.ErrCorruptSnapshot for undecodable or inconsistent data.
func Load[V any](ctx context.Context, d *DB, opts ...store.Option) (db *store.DB[V], err error) {
	ctx, span := tracer.Start(ctx, "badger.Load")
	defer span.End()
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	}()

	var state store.State[V]
	var gen uint64
	err = d.withReadTxn(ctx, func(txn *badger.Txn) error {
		var err error
		gen, err = readGeneration(txn)
		if err != nil {
			return err
		}
		if gen == 0 {
			return ErrNoSnapshot
		}

		vp := valuePrefix(gen)
		err = scanPrefix(txn, vp, func(key, val []byte) error {
			var v V
			if err := snapshot.UnmarshalValue(val, &v); err != nil {
				return fmt.Errorf("%w: value %q: %v", snapshot.ErrCorruptSnapshot, key, err)
			}
			id := strings.TrimPrefix(string(key), string(vp))
			state.Values = append(state.Values, store.Entry[V]{ID: id, Value: v})
			return nil
		})
		if err != nil {
			return err
		}

		return scanPrefix(txn, edgePrefix(gen), func(key, val []byte) error {
			var e store.EdgeRecord
			if err := msgpack.Unmarshal(val, &e); err != nil {
				return fmt.Errorf("%w: edge %q: %v", snapshot.ErrCorruptSnapshot, key, err)
			}
			state.Edges = append(state.Edges, e)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	db, err = store.FromState(state, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", snapshot.ErrCorruptSnapshot, err)
	}

	span.SetAttributes(
		attribute.Int64("badger.generation", int64(gen)),
		attribute.Int("badger.values", db.Len()),
	)
	d.logger.Debug("badger snapshot loaded",
		slog.Uint64("generation", gen),
		slog.Int("values", db.Len()),
		slog.Int("edges", db.EdgeCount()),
	)
	return db, nil
}

// scanPrefix calls fn for every key under prefix in key order.
func scanPrefix(txn *badger.Txn, prefix []byte, fn func(key, val []byte) error) error {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix
	it := txn.NewIterator(opts)
	defer it.Close()

	for it.Rewind(); it.Valid(); it.Next() {
		item := it.Item()
		key := item.KeyCopy(nil)
		if err := item.Value(func(val []byte) error {
			return fn(key, val)
		}); err != nil {
			return err
		}
	}
	return nil
}
