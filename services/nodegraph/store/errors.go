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
	"errors"
	"fmt"

	"github.com/AleutianAI/nodegraph/services/nodegraph/index"
)

// Sentinel errors for store operations.
var (
	// ErrDuplicateID is returned by Insert when an explicit ID already has a
	// value and overwrite was not requested.
	ErrDuplicateID = errors.New("duplicate node ID")

	// ErrEmptyID is returned by Insert when WithID is given an empty string,
	// and by Link and LinkN when an endpoint is empty.
	ErrEmptyID = errors.New("empty node ID")

	// ErrInvalidState is returned by FromState when the state violates a
	// store invariant (duplicate IDs, empty IDs, multiplicity below 1).
	ErrInvalidState = errors.New("invalid store state")

	// ErrUnknownIndex is returned when an index lookup names an index that was
	// never registered. It is the same value as index.ErrUnknownIndex.
	ErrUnknownIndex = index.ErrUnknownIndex
)

// UnknownIndexError reports the index name that was not registered.
type UnknownIndexError = index.UnknownIndexError

// DuplicateIDError reports the ID that collided on Insert.
//
// It unwraps to ErrDuplicateID.
type DuplicateIDError struct {
	ID string
}

// Error implements error.
func (e *DuplicateIDError) Error() string {
	return fmt.Sprintf("%s: %q", ErrDuplicateID.Error(), e.ID)
}

// Unwrap returns ErrDuplicateID.
func (e *DuplicateIDError) Unwrap() error {
	return ErrDuplicateID
}
