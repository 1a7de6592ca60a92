// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package index provides named, derived secondary indexes over node values.
//
// An index is a key function that maps a value to zero, one or many string
// keys. The Engine keeps a mapping from (index name, key) to the set of node
// IDs whose value produced that key.
//
// # Rebuild Model
//
// Indexes are NOT kept in sync with mutation. Registering an index only stores
// its key function; lookups return nothing until Reindex is called. Reindex
// discards every index and rebuilds them wholesale from the values it is given.
// There is no partial invalidation.
//
// # Thread Safety
//
// Engine is NOT safe for concurrent use. Callers that share an Engine across
// goroutines must coordinate access themselves.
package index

import (
	"errors"
	"fmt"
)

// ErrUnknownIndex is returned when a lookup names an index that was never
// registered.
var ErrUnknownIndex = errors.New("unknown index")

// UnknownIndexError reports the index name that was not registered.
//
// It unwraps to ErrUnknownIndex so callers can test with errors.Is.
type UnknownIndexError struct {
	Name string
}

// Error implements error.
func (e *UnknownIndexError) Error() string {
	return fmt.Sprintf("%s: %q", ErrUnknownIndex.Error(), e.Name)
}

// Unwrap returns ErrUnknownIndex.
func (e *UnknownIndexError) Unwrap() error {
	return ErrUnknownIndex
}
