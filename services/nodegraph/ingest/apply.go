// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ingest

import (
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"

	"github.com/AleutianAI/nodegraph/services/nodegraph/index"
	"github.com/AleutianAI/nodegraph/services/nodegraph/store"
)

// DB is a node graph database over note records.
type DB = store.DB[Record]

// Names of the indexes registered by DefaultIndexes.
const (
	IndexTitle = "title"
	IndexAlias = "alias"
	IndexTag   = "tag"
	IndexFile  = "file"
	IndexLevel = "level"
)

// DefaultIndexes registers the standard record indexes on db.
//
// title and alias keys are lowercased so lookups are case-insensitive;
// callers must lowercase the key they search for. The indexes are empty
// until db.Reindex is called.
func DefaultIndexes(db *DB) *DB {
	return db.
		NewIndex(IndexTitle, index.Scalar(func(r Record) string { return strings.ToLower(r.Title) })).
		NewIndex(IndexAlias, func(r Record) []string {
			keys := make([]string, 0, len(r.Aliases))
			for _, a := range r.Aliases {
				keys = append(keys, strings.ToLower(a))
			}
			return keys
		}).
		NewIndex(IndexTag, func(r Record) []string { return r.Tags }).
		NewIndex(IndexFile, index.Scalar(func(r Record) string { return r.FilePath })).
		NewIndex(IndexLevel, func(r Record) []string { return []string{strconv.Itoa(r.Level)} })
}

// ApplyResult summarizes an Apply call.
type ApplyResult struct {
	// Applied is the number of records stored.
	Applied int `json:"applied"`

	// Rejected is the number of records that failed validation.
	Rejected int `json:"rejected"`

	// Links is the total multiplicity of links declared.
	Links int `json:"links"`
}

// Apply stores records as nodes and declares their links.
//
// Description:
//
//	Each valid record is inserted under its own ID with overwrite, after its
//	previous outgoing links are removed. Then one link per occurrence is
//	declared to every target in Linked, so a target linked from three
//	positions gets multiplicity 3. Link targets need not exist as records.
//	Applying the same record twice leaves the DB unchanged.
//
//	Invalid records are skipped; the rest are applied.
//
// Outputs:
//
//	ApplyResult - Counts of applied and rejected records.
//	error - *BatchError listing every rejected record, or nil.
func Apply(db *DB, records ...Record) (ApplyResult, error) {
	var result ApplyResult
	var errs []error

	for i := range records {
		rec := records[i]
		if err := rec.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("record[%d]: %w", i, err))
			result.Rejected++
			continue
		}

		db.UnlinkAll(rec.ID)
		if _, err := db.Insert(rec, store.WithID(rec.ID), store.WithOverwrite()); err != nil {
			errs = append(errs, fmt.Errorf("record[%d]: %w", i, err))
			result.Rejected++
			continue
		}
		for _, target := range slices.Sorted(maps.Keys(rec.Linked)) {
			n := rec.LinkCount(target)
			if err := db.LinkN(rec.ID, target, n); err != nil {
				errs = append(errs, fmt.Errorf("record[%d]: link %q: %w", i, target, err))
				continue
			}
			result.Links += n
		}
		result.Applied++
	}

	recordsApplied.WithLabelValues("applied").Add(float64(result.Applied))
	recordsApplied.WithLabelValues("rejected").Add(float64(result.Rejected))

	if len(errs) > 0 {
		return result, &BatchError{Errors: errs}
	}
	return result, nil
}

// FileNodes returns the sorted IDs of every node parsed from path.
//
// It scans all values rather than the file index, so the result is
// current even when the indexes are stale.
func FileNodes(db *DB, path string) []string {
	var ids []string
	for id, rec := range db.All() {
		if rec.FilePath == path {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return ids
}

// RemoveFile removes every node parsed from path, with all their edges.
// Returns the removed IDs, sorted. Removing an unknown path is a no-op.
func RemoveFile(db *DB, path string) []string {
	ids := FileNodes(db, path)
	for _, id := range ids {
		db.Remove(id)
	}
	return ids
}

// SyncFile makes the nodes of path match records exactly.
//
// Description:
//
//	Nodes previously parsed from path whose IDs are not in records are
//	removed, then records are applied. Every record must name path as
//	its FilePath.
//
// Outputs:
//
//	[]string - IDs removed because they vanished from the file.
//	ApplyResult - Result of applying records.
//	error - Wraps ErrFileMismatch before any change, or a *BatchError
//	from Apply.
func SyncFile(db *DB, path string, records []Record) ([]string, ApplyResult, error) {
	keep := make(map[string]struct{}, len(records))
	for i, rec := range records {
		if rec.FilePath != path {
			return nil, ApplyResult{}, fmt.Errorf("%w: record[%d] %q has %q, want %q",
				ErrFileMismatch, i, rec.ID, rec.FilePath, path)
		}
		keep[rec.ID] = struct{}{}
	}

	var removed []string
	for _, id := range FileNodes(db, path) {
		if _, ok := keep[id]; ok {
			continue
		}
		db.Remove(id)
		removed = append(removed, id)
	}

	result, err := Apply(db, records...)
	return removed, result, err
}
