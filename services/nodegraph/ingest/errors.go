// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package ingest turns parsed note records into nodes and links.
//
// The parser that produces records lives outside this module. It hands over
// one Record per headline or file-level node: an ID, display fields, the
// file it came from, and the IDs it links to with the position of every
// occurrence. Apply stores each record as a node value and declares one
// link per occurrence.
//
// # Re-ingest
//
// Applying a record replaces its value and its outgoing links. Backlinks
// from other records are left alone. SyncFile additionally removes nodes
// that disappeared from a file.
package ingest

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for ingest operations.
var (
	// ErrInvalidRecord is returned when a record fails validation.
	ErrInvalidRecord = errors.New("invalid record")

	// ErrFileMismatch is returned by SyncFile when a record names a
	// different file than the one being synced.
	ErrFileMismatch = errors.New("record file path does not match")
)

// BatchError aggregates the per-record errors of a batch operation.
//
// Apply keeps going past invalid records and reports all of them at once.
// BatchError implements the multi-error Unwrap so errors.Is finds
// ErrInvalidRecord.
type BatchError struct {
	// Errors holds one error per rejected record.
	Errors []error
}

// Error returns a summary of the batch errors.
func (e *BatchError) Error() string {
	switch len(e.Errors) {
	case 0:
		return "batch error with no errors"
	case 1:
		return e.Errors[0].Error()
	default:
		return fmt.Sprintf("%d errors: %v (and %d more)",
			len(e.Errors), e.Errors[0], len(e.Errors)-1)
	}
}

// Unwrap returns the underlying errors.
func (e *BatchError) Unwrap() []error {
	return e.Errors
}

// ErrorList returns every error, one per line.
func (e *BatchError) ErrorList() string {
	var b strings.Builder
	for i, err := range e.Errors {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(err.Error())
	}
	return b.String()
}
