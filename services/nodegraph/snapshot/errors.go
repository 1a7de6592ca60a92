// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package snapshot writes and restores single-file snapshots of a store.DB.
//
// # File Format
//
// A snapshot is a fixed 28-byte header followed by a payload:
//
//	offset size  field
//	0      8     magic "NGSNAP\x00\x01"
//	8      2     format version, uint16 big endian (currently 1)
//	10     2     flags, uint16 big endian (bit 0: payload is zstd-compressed)
//	12     8     payload length in bytes, uint64 big endian
//	20     8     xxhash64 of the payload as stored
//	28     n     payload
//
// The payload is a msgpack document {values: [{id, value}], edges: [{from,
// to, count}]} with values sorted by id and edges by (from, to), so equal
// stores produce identical files. Index definitions are never written;
// call Reindex after loading.
//
// # Atomicity
//
// WriteFile writes to a temporary file in the target directory and renames
// it over the destination, so readers see either the old or the new
// snapshot, never a partial one.
//
// # Async Forms
//
// WriteFileAsync serializes the DB before it returns and performs only the
// file I/O in the background. Mutating the DB afterwards does not affect
// the snapshot: the last write wins, and no write is ever torn.
package snapshot

import "errors"

// Sentinel errors for snapshot operations.
var (
	// ErrCorruptSnapshot is returned when a snapshot cannot be decoded:
	// wrong magic, truncated data, checksum mismatch, undecodable payload,
	// or a payload that violates store invariants.
	ErrCorruptSnapshot = errors.New("corrupt snapshot")

	// ErrUnsupportedVersion is returned when the header names a format
	// version or flag this build does not understand.
	ErrUnsupportedVersion = errors.New("unsupported snapshot version")
)
