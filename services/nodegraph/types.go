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

import (
	"github.com/AleutianAI/nodegraph/services/nodegraph/cache"
	"github.com/AleutianAI/nodegraph/services/nodegraph/ingest"
	"github.com/AleutianAI/nodegraph/services/nodegraph/store"
)

// =============================================================================
// Query Parameters
// =============================================================================

// DepthQuery is bound from ?depth= on the links and backlinks endpoints.
type DepthQuery struct {
	// Depth bounds the hop count. -1 (default) is unbounded, 1 is direct only.
	Depth int `form:"depth,default=-1" binding:"gte=-1"`
}

// WalkQuery is bound from the walk endpoint's query string.
type WalkQuery struct {
	// Direction is "forward" (default) or "backward".
	Direction string `form:"direction,default=forward" binding:"oneof=forward backward"`

	// MaxDepth bounds the hop count. -1 (default) is unbounded.
	MaxDepth int `form:"max_depth,default=-1" binding:"gte=-1"`

	// MaxNodes bounds the number of visited nodes, counting the start.
	MaxNodes int `form:"max_nodes,default=1000" binding:"gte=1,lte=100000"`
}

// PathQuery is bound from the paths endpoint's query string.
type PathQuery struct {
	From string `form:"from" binding:"required"`
	To   string `form:"to" binding:"required"`

	// MaxDepth bounds the hop count of each path. -1 (default) is unbounded.
	MaxDepth int `form:"max_depth,default=-1" binding:"gte=-1"`

	// Limit caps the number of returned paths.
	Limit int `form:"limit,default=100" binding:"gte=1,lte=10000"`
}

// IndexQuery is bound from the index lookup endpoint's query string.
type IndexQuery struct {
	Key string `form:"key" binding:"required"`
}

// FileQuery is bound from ?path= on the files endpoint.
type FileQuery struct {
	Path string `form:"path" binding:"required"`
}

// =============================================================================
// Responses
// =============================================================================

// NodeResponse describes one node.
type NodeResponse struct {
	ID string `json:"id"`

	// Record is nil for a phantom node, one that is only a link target.
	Record *ingest.Record `json:"record,omitempty"`

	// Links maps direct link targets to their multiplicity.
	Links map[string]int `json:"links"`

	// Backlinks maps direct link sources to their multiplicity.
	Backlinks map[string]int `json:"backlinks"`
}

// ReachResponse lists nodes reachable from ID with their minimum distance.
type ReachResponse struct {
	ID        string         `json:"id"`
	Direction string         `json:"direction"`
	Nodes     map[string]int `json:"nodes"`
}

// WalkStep is one node visited by a walk.
type WalkStep struct {
	ID       string `json:"id"`
	Distance int    `json:"distance"`
}

// WalkResponse lists visited nodes in breadth-first order.
type WalkResponse struct {
	Start     string     `json:"start"`
	Direction string     `json:"direction"`
	Steps     []WalkStep `json:"steps"`
}

// PathResponse lists paths shortest first.
type PathResponse struct {
	From  string     `json:"from"`
	To    string     `json:"to"`
	Paths [][]string `json:"paths"`

	// Truncated is true when more paths existed than the limit allowed.
	Truncated bool `json:"truncated"`

	// Cached is true when the result came from the path cache.
	Cached bool `json:"cached"`
}

// IndexResponse lists the IDs stored under one index key.
type IndexResponse struct {
	Index string   `json:"index"`
	Key   string   `json:"key"`
	IDs   []string `json:"ids"`
}

// IndexKeysResponse lists every key of one index.
type IndexKeysResponse struct {
	Index string   `json:"index"`
	Keys  []string `json:"keys"`
}

// ApplyResponse reports a record upload.
type ApplyResponse struct {
	ingest.ApplyResult

	// Errors lists rejected records, if any.
	Errors []string `json:"errors,omitempty"`
}

// RemoveFileResponse reports the nodes removed with a file.
type RemoveFileResponse struct {
	Path    string   `json:"path"`
	Removed []string `json:"removed"`
}

// SnapshotResponse reports a completed save.
type SnapshotResponse struct {
	Path    string `json:"path"`
	Version uint64 `json:"version"`

	// Generation is the badger generation written, 0 without badger.
	Generation uint64 `json:"generation,omitempty"`
}

// StatsResponse wraps store statistics with cache counters.
type StatsResponse struct {
	store.Stats

	// Cache is nil when the path cache is disabled.
	Cache *cache.Stats `json:"cache,omitempty"`
}

// HealthResponse is returned by the health endpoint.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	// Error is the error message.
	Error string `json:"error"`

	// Code is a stable machine-readable error code.
	Code string `json:"code,omitempty"`

	// Details provides additional error context (optional).
	Details string `json:"details,omitempty"`
}
