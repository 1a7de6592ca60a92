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
	"log/slog"
	"os"

	"github.com/AleutianAI/nodegraph/services/nodegraph/store"
)

// Option configures WriteFile and LoadFile.
type Option func(*options)

type options struct {
	compress  bool
	fileMode  os.FileMode
	logger    *slog.Logger
	storeOpts []store.Option
}

func applyOptions(opts []Option) options {
	o := options{
		fileMode: 0o644,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithCompression enables zstd compression of the payload on write.
// Loading detects compression from the header and ignores this option.
func WithCompression(on bool) Option {
	return func(o *options) {
		o.compress = on
	}
}

// WithFileMode sets the permission bits of a written snapshot file.
func WithFileMode(mode os.FileMode) Option {
	return func(o *options) {
		o.fileMode = mode
	}
}

// WithLogger sets the logger for debug output.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithStoreOptions passes options to store.FromState when loading.
func WithStoreOptions(opts ...store.Option) Option {
	return func(o *options) {
		o.storeOpts = append(o.storeOpts, opts...)
	}
}
