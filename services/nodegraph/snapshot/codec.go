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
	"bytes"
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/klauspost/compress/zstd"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/AleutianAI/nodegraph/services/nodegraph/store"
)

// Header layout constants.
const (
	// Magic identifies a snapshot file.
	Magic = "NGSNAP\x00\x01"

	// FormatVersion is the only version this package writes and reads.
	FormatVersion uint16 = 1

	// HeaderSize is the fixed size of the header in bytes.
	HeaderSize = 28

	// FlagZstd marks a zstd-compressed payload.
	FlagZstd uint16 = 1 << 0

	knownFlags = FlagZstd
)

// Header is the decoded fixed-size snapshot header.
type Header struct {
	Version    uint16
	Flags      uint16
	PayloadLen uint64
	Checksum   uint64
}

// Compressed reports whether the payload is zstd-compressed.
func (h Header) Compressed() bool {
	return h.Flags&FlagZstd != 0
}

func (h Header) marshal() []byte {
	buf := make([]byte, HeaderSize)
	copy(buf[0:8], Magic)
	binary.BigEndian.PutUint16(buf[8:10], h.Version)
	binary.BigEndian.PutUint16(buf[10:12], h.Flags)
	binary.BigEndian.PutUint64(buf[12:20], h.PayloadLen)
	binary.BigEndian.PutUint64(buf[20:28], h.Checksum)
	return buf
}

// ReadHeader decodes and checks the header at the start of data.
//
// Outputs:
//
//	Header - The decoded header.
//	error - Wraps ErrCorruptSnapshot for short data or a wrong magic,
//	ErrUnsupportedVersion for an unknown version or flag bit.
func ReadHeader(data []byte) (Header, error) {
	if len(data) < HeaderSize {
		return Header{}, fmt.Errorf("%w: %d bytes is shorter than the %d byte header",
			ErrCorruptSnapshot, len(data), HeaderSize)
	}
	if string(data[0:8]) != Magic {
		return Header{}, fmt.Errorf("%w: bad magic %q", ErrCorruptSnapshot, data[0:8])
	}
	h := Header{
		Version:    binary.BigEndian.Uint16(data[8:10]),
		Flags:      binary.BigEndian.Uint16(data[10:12]),
		PayloadLen: binary.BigEndian.Uint64(data[12:20]),
		Checksum:   binary.BigEndian.Uint64(data[20:28]),
	}
	if h.Version != FormatVersion {
		return Header{}, fmt.Errorf("%w: version %d", ErrUnsupportedVersion, h.Version)
	}
	if h.Flags&^knownFlags != 0 {
		return Header{}, fmt.Errorf("%w: flags %#04x", ErrUnsupportedVersion, h.Flags)
	}
	return h, nil
}

var (
	zstdEncoder = sync.OnceValues(func() (*zstd.Encoder, error) {
		return zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	})
	zstdDecoder = sync.OnceValues(func() (*zstd.Decoder, error) {
		return zstd.NewReader(nil)
	})
)

// Encode serializes state into a complete snapshot: header plus payload.
//
// Inputs:
//
//	state - The values and edges to write. Should come from DB.Dump so the
//	ordering is canonical.
//	compress - Compress the payload with zstd.
func Encode[V any](state store.State[V], compress bool) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetSortMapKeys(true)
	if err := enc.Encode(&state); err != nil {
		return nil, fmt.Errorf("encoding snapshot payload: %w", err)
	}
	payload := buf.Bytes()

	var flags uint16
	if compress {
		zenc, err := zstdEncoder()
		if err != nil {
			return nil, fmt.Errorf("creating zstd encoder: %w", err)
		}
		payload = zenc.EncodeAll(payload, nil)
		flags |= FlagZstd
	}

	h := Header{
		Version:    FormatVersion,
		Flags:      flags,
		PayloadLen: uint64(len(payload)),
		Checksum:   xxhash.Sum64(payload),
	}
	out := make([]byte, 0, HeaderSize+len(payload))
	out = append(out, h.marshal()...)
	out = append(out, payload...)
	return out, nil
}

// Decode parses a complete snapshot produced by Encode.
//
// Every failure other than an unsupported version wraps ErrCorruptSnapshot.
// Decode never returns a partial state. Values come back in the canonical
// form described by UnmarshalValue.
func Decode[V any](data []byte) (store.State[V], error) {
	h, err := ReadHeader(data)
	if err != nil {
		return store.State[V]{}, err
	}

	payload := data[HeaderSize:]
	if uint64(len(payload)) != h.PayloadLen {
		return store.State[V]{}, fmt.Errorf("%w: payload is %d bytes, header says %d",
			ErrCorruptSnapshot, len(payload), h.PayloadLen)
	}
	if sum := xxhash.Sum64(payload); sum != h.Checksum {
		return store.State[V]{}, fmt.Errorf("%w: checksum %016x, header says %016x",
			ErrCorruptSnapshot, sum, h.Checksum)
	}

	if h.Compressed() {
		zdec, err := zstdDecoder()
		if err != nil {
			return store.State[V]{}, fmt.Errorf("creating zstd decoder: %w", err)
		}
		payload, err = zdec.DecodeAll(payload, nil)
		if err != nil {
			return store.State[V]{}, fmt.Errorf("%w: decompressing payload: %v", ErrCorruptSnapshot, err)
		}
	}

	var state store.State[V]
	if err := UnmarshalValue(payload, &state); err != nil {
		return store.State[V]{}, fmt.Errorf("%w: decoding payload: %v", ErrCorruptSnapshot, err)
	}
	return state, nil
}
