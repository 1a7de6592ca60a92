// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package cache

import (
	"context"
	"fmt"

	"golang.org/x/sync/singleflight"
)

type versionedEntry[V any] struct {
	version uint64
	value   V
}

// Versioned is an LRU whose entries are valid for one version only.
//
// Description:
//
//	Every Set records the version the value was computed at. Get with any
//	other version misses and drops the entry. Concurrent GetOrLoad calls
//	for the same key and version share one load.
//
// Thread Safety: All methods are safe for concurrent use.
type Versioned[K comparable, V any] struct {
	lru   *LRU[K, versionedEntry[V]]
	group singleflight.Group
}

// NewVersioned creates a Versioned cache holding at most capacity entries.
func NewVersioned[K comparable, V any](capacity int) *Versioned[K, V] {
	return &Versioned[K, V]{
		lru: NewLRU[K, versionedEntry[V]](capacity),
	}
}

// Get returns the value cached for key at exactly version.
func (c *Versioned[K, V]) Get(key K, version uint64) (V, bool) {
	entry, ok := c.lru.Get(key)
	if ok && entry.version == version {
		return entry.value, true
	}
	if ok {
		c.lru.Delete(key)
		staleDrops.Inc()
	}
	var zero V
	return zero, false
}

// Set caches value for key at version, replacing any older entry.
func (c *Versioned[K, V]) Set(key K, version uint64, value V) {
	c.lru.Set(key, versionedEntry[V]{version: version, value: value})
}

// GetOrLoad returns the cached value for key at version, or calls load
// and caches its result.
//
// Description:
//
//	Concurrent callers asking for the same key and version wait for a
//	single load. A failed load is not cached. load runs on its own
//	goroutine and is not cancelled by ctx; ctx only bounds how long each
//	caller waits.
//
// Outputs:
//
//	V - The cached or loaded value.
//	bool - True if the value came from the cache.
//	error - load's error, or ctx's error.
func (c *Versioned[K, V]) GetOrLoad(ctx context.Context, key K, version uint64, load func() (V, error)) (V, bool, error) {
	if v, ok := c.Get(key, version); ok {
		return v, true, nil
	}

	// %#v quotes strings, so keys whose fields differ only in where the
	// spaces fall still get distinct flights.
	flightKey := fmt.Sprintf("%#v@%d", key, version)
	ch := c.group.DoChan(flightKey, func() (any, error) {
		v, err := load()
		if err != nil {
			return nil, err
		}
		c.Set(key, version, v)
		return v, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			var zero V
			return zero, false, res.Err
		}
		return res.Val.(V), false, nil
	case <-ctx.Done():
		var zero V
		return zero, false, ctx.Err()
	}
}

// Purge removes every entry.
func (c *Versioned[K, V]) Purge() {
	c.lru.Purge()
}

// Len returns the number of entries, including stale ones not yet dropped.
func (c *Versioned[K, V]) Len() int {
	return c.lru.Len()
}

// Stats returns the underlying LRU counters.
func (c *Versioned[K, V]) Stats() Stats {
	return c.lru.Stats()
}
