// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package nodegraph

import "errors"

// Sentinel errors for the nodegraph service.
var (
	// ErrNodeNotFound indicates an ID with neither a value nor any edge.
	ErrNodeNotFound = errors.New("node not found")

	// ErrNoSnapshotPath indicates Save was called without a configured path.
	ErrNoSnapshotPath = errors.New("no snapshot path configured")

	// ErrInvalidDirection indicates a walk direction other than forward or backward.
	ErrInvalidDirection = errors.New("direction must be forward or backward")

	// ErrEmptyPath indicates a file operation without a file path.
	ErrEmptyPath = errors.New("file path must not be empty")
)
