// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package graph

// Unbounded disables a depth or node-count limit.
const Unbounded = -1

// Direction selects which adjacency map a traversal follows.
type Direction int

const (
	// Forward follows links (from -> to).
	Forward Direction = iota

	// Backward follows backlinks (to -> from).
	Backward
)

// String returns the string representation of the Direction.
func (d Direction) String() string {
	switch d {
	case Forward:
		return "forward"
	case Backward:
		return "backward"
	default:
		return "unknown"
	}
}

// Edge is a directed relation between two node identifiers.
//
// Count is the multiplicity: how many times the link was declared.
// An Edge returned by the store always has Count >= 1.
type Edge struct {
	// From is the ID of the source node.
	From string `json:"from"`

	// To is the ID of the target node. It may have no stored value.
	To string `json:"to"`

	// Count is the number of times the link was declared.
	Count int `json:"count"`
}

// TraversalOptions configures Walk, Reachable and Paths.
type TraversalOptions struct {
	// MaxDepth bounds the hop count from the start node.
	// Unbounded (-1) by default. Zero means the start node only.
	MaxDepth int

	// MaxNodes stops a Walk once this many nodes have been emitted,
	// counting the start node. Unbounded (-1) by default. Zero emits
	// nothing. Ignored by Paths.
	MaxNodes int

	// Filter excludes a node from Walk output when it returns false.
	// An excluded node is also not expanded. Ignored by Paths.
	Filter func(id string, distance int) bool

	// Done ends a Walk or Paths enumeration early once it is closed.
	// Nil never ends it.
	Done <-chan struct{}
}

// DefaultTraversalOptions returns options with every limit disabled.
func DefaultTraversalOptions() TraversalOptions {
	return TraversalOptions{
		MaxDepth: Unbounded,
		MaxNodes: Unbounded,
	}
}

// TraversalOption is a functional option for configuring traversals.
type TraversalOption func(*TraversalOptions)

// WithMaxDepth bounds the hop count. Negative values mean unbounded.
func WithMaxDepth(d int) TraversalOption {
	return func(o *TraversalOptions) {
		if d < 0 {
			o.MaxDepth = Unbounded
			return
		}
		o.MaxDepth = d
	}
}

// WithMaxDistance is an alias of WithMaxDepth.
func WithMaxDistance(d int) TraversalOption {
	return WithMaxDepth(d)
}

// WithMaxNodes bounds the number of nodes a Walk emits, counting the start
// node. Zero emits nothing; negative values mean unbounded.
func WithMaxNodes(n int) TraversalOption {
	return func(o *TraversalOptions) {
		if n < 0 {
			o.MaxNodes = Unbounded
			return
		}
		o.MaxNodes = n
	}
}

// WithFilter sets the node filter for a Walk.
func WithFilter(fn func(id string, distance int) bool) TraversalOption {
	return func(o *TraversalOptions) {
		o.Filter = fn
	}
}

// WithDone stops the traversal once done is closed, typically ctx.Done().
// The sequence then simply ends; callers check their context to tell a
// cancelled traversal from a complete one.
func WithDone(done <-chan struct{}) TraversalOption {
	return func(o *TraversalOptions) {
		o.Done = done
	}
}

// stopped reports whether done has been closed.
func stopped(done <-chan struct{}) bool {
	if done == nil {
		return false
	}
	select {
	case <-done:
		return true
	default:
		return false
	}
}

func applyTraversalOptions(opts []TraversalOption) TraversalOptions {
	options := DefaultTraversalOptions()
	for _, opt := range opts {
		opt(&options)
	}
	return options
}

// Stats contains counters about an EdgeStore.
type Stats struct {
	// EdgeCount is the number of distinct (from, to) pairs.
	EdgeCount int `json:"edge_count"`

	// LinkCount is the sum of all multiplicities.
	LinkCount int `json:"link_count"`

	// NodeCount is the number of identifiers touching at least one edge.
	NodeCount int `json:"node_count"`
}
