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
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/AleutianAI/nodegraph/services/nodegraph/store"
)

// WriteFile writes a snapshot of db to path, replacing any existing file.
//
// Description:
//
//	Serializes db, writes the bytes to a temporary file in the same
//	directory, syncs it and renames it over path. On any failure the
//	temporary file is removed and path is left untouched.
//
// Inputs:
//
//	ctx - Checked before serializing and before the rename.
//	path - Destination file. Its directory must exist.
//	db - The store to snapshot. Not modified.
//	opts - WithCompression, WithFileMode, WithLogger.
//
// Outputs:
//
//	error - Non-nil on cancellation, encoding or I/O failure.
func WriteFile[V any](ctx context.Context, path string, db *store.DB[V], opts ...Option) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	o := applyOptions(opts)

	data, err := Encode(db.Dump(), o.compress)
	if err != nil {
		return err
	}
	return writeBytes(ctx, path, data, o)
}

// writeBytes performs the atomic file replacement for an encoded snapshot.
func writeBytes(ctx context.Context, path string, data []byte, o options) (err error) {
	ctx, span := tracer.Start(ctx, "snapshot.WriteFile")
	defer span.End()
	span.SetAttributes(
		attribute.String("snapshot.path", path),
		attribute.Int("snapshot.bytes", len(data)),
		attribute.Bool("snapshot.compressed", o.compress),
	)
	start := time.Now()
	defer func() {
		recordOperation("write", start, len(data), err)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	}()

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file in %s: %w", dir, err)
	}
	tmpName := tmp.Name()
	defer func() {
		if err != nil {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("writing %s: %w", tmpName, err)
	}
	if err = tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("syncing %s: %w", tmpName, err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", tmpName, err)
	}
	if err = os.Chmod(tmpName, o.fileMode); err != nil {
		return fmt.Errorf("setting mode on %s: %w", tmpName, err)
	}
	if err = ctx.Err(); err != nil {
		return err
	}
	if err = os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("renaming snapshot into place: %w", err)
	}

	o.logger.Debug("snapshot written",
		slog.String("path", path),
		slog.Int("bytes", len(data)),
		slog.Bool("compressed", o.compress),
		slog.Duration("duration", time.Since(start)),
	)
	return nil
}

// LoadFile restores a DB from the snapshot at path.
//
// Description:
//
//	Reads the whole file, checks header and checksum, decodes the payload
//	and rebuilds a fresh DB. Indexes are not restored; register them and
//	call Reindex.
//
// Outputs:
//
//	*store.DB[V] - The restored store. Nil on any error.
//	error - Wraps ErrCorruptSnapshot for undecodable or inconsistent data,
//	ErrUnsupportedVersion for a newer format, or the underlying I/O error
//	(test with errors.Is(err, fs.ErrNotExist) for a missing file).
func LoadFile[V any](ctx context.Context, path string, opts ...Option) (db *store.DB[V], err error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	o := applyOptions(opts)

	ctx, span := tracer.Start(ctx, "snapshot.LoadFile")
	defer span.End()
	span.SetAttributes(attribute.String("snapshot.path", path))
	start := time.Now()
	size := 0
	defer func() {
		recordOperation("load", start, size, err)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	}()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading snapshot: %w", err)
	}
	size = len(data)
	if err = ctx.Err(); err != nil {
		return nil, err
	}

	state, err := Decode[V](data)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", path, err)
	}

	db, err = store.FromState(state, o.storeOpts...)
	if err != nil {
		if errors.Is(err, store.ErrInvalidState) {
			err = fmt.Errorf("%w: %w", ErrCorruptSnapshot, err)
		}
		return nil, fmt.Errorf("loading %s: %w", path, err)
	}

	o.logger.Debug("snapshot loaded",
		slog.String("path", path),
		slog.Int("bytes", size),
		slog.Int("values", db.Len()),
		slog.Int("edges", db.EdgeCount()),
	)
	span.SetAttributes(
		attribute.Int("snapshot.values", db.Len()),
		attribute.Int("snapshot.edges", db.EdgeCount()),
	)
	return db, nil
}
