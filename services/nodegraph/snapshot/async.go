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

	"github.com/AleutianAI/nodegraph/services/nodegraph/store"
)

// WriteFileAsync writes a snapshot of db to path in the background.
//
// Description:
//
//	db is serialized before WriteFileAsync returns. The caller may mutate
//	db immediately afterwards: the snapshot reflects the state at the time
//	of the call. Only the file I/O happens on another goroutine. Two async
//	writes to the same path race at the rename, and the last rename wins.
//
// Outputs:
//
//	*Future[struct{}] - Completes with the write error, or nil.
//
// Example:
//
//	f := snapshot.WriteFileAsync(ctx, path, db)
//	db.Link("a", "b") // not in the snapshot
//	if _, err := f.Wait(ctx); err != nil { ... }
func WriteFileAsync[V any](ctx context.Context, path string, db *store.DB[V], opts ...Option) *Future[struct{}] {
	if err := ctx.Err(); err != nil {
		return completedFuture(struct{}{}, err)
	}
	o := applyOptions(opts)

	data, err := Encode(db.Dump(), o.compress)
	if err != nil {
		return completedFuture(struct{}{}, err)
	}

	f := newFuture[struct{}]()
	go func() {
		f.complete(struct{}{}, writeBytes(ctx, path, data, o))
	}()
	return f
}

// LoadFileAsync restores a DB from path in the background.
// The Future completes with the same results LoadFile would return.
func LoadFileAsync[V any](ctx context.Context, path string, opts ...Option) *Future[*store.DB[V]] {
	f := newFuture[*store.DB[V]]()
	go func() {
		f.complete(LoadFile[V](ctx, path, opts...))
	}()
	return f
}
