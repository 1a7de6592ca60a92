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
	"log/slog"

	"github.com/google/uuid"

	"github.com/AleutianAI/nodegraph/services/nodegraph/graph"
)

// Option configures a DB.
type Option func(*options)

type options struct {
	logger *slog.Logger
	newID  func() string
}

func defaultOptions() options {
	return options{
		logger: slog.Default(),
		newID:  uuid.NewString,
	}
}

// WithLogger sets the logger used for debug output.
// A nil logger keeps slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithIDGenerator replaces the UUID v4 generator used for inserts without
// an explicit ID. The generator must return unique, non-empty IDs.
func WithIDGenerator(fn func() string) Option {
	return func(o *options) {
		if fn != nil {
			o.newID = fn
		}
	}
}

// InsertOption configures a single Insert.
type InsertOption func(*insertOptions)

type insertOptions struct {
	id        string
	hasID     bool
	overwrite bool
}

// WithID inserts under an explicit ID instead of a generated one.
func WithID(id string) InsertOption {
	return func(o *insertOptions) {
		o.id = id
		o.hasID = true
	}
}

// WithOverwrite replaces an existing value under the same ID.
// Edges of the ID are kept.
func WithOverwrite() InsertOption {
	return func(o *insertOptions) {
		o.overwrite = true
	}
}

// Traversal options, re-exported so callers of DB need not import graph.
type TraversalOption = graph.TraversalOption

var (
	WithMaxDepth    = graph.WithMaxDepth
	WithMaxDistance = graph.WithMaxDistance
	WithMaxNodes    = graph.WithMaxNodes
	WithFilter      = graph.WithFilter
	WithDone        = graph.WithDone
)

// Unbounded disables a depth or node limit.
const Unbounded = graph.Unbounded
