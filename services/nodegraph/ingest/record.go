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
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// =============================================================================
// Shared Validator Instance
// =============================================================================

var recordValidate *validator.Validate

func init() {
	recordValidate = validator.New()

	_ = recordValidate.RegisterValidation("trimmed", validateTrimmed)
}

// validateTrimmed rejects strings with leading or trailing whitespace.
// Node IDs are compared byte for byte, so " a" and "a" would be different
// nodes.
func validateTrimmed(fl validator.FieldLevel) bool {
	s := fl.Field().String()
	return strings.TrimSpace(s) == s
}

// Position locates one link occurrence in its source file.
type Position struct {
	// Line is 1-based.
	Line int `json:"line" msgpack:"line" validate:"gte=0"`

	// Column is 1-based; 0 means unknown.
	Column int `json:"column" msgpack:"column" validate:"gte=0"`
}

// Record is one node as produced by the note parser.
type Record struct {
	// ID is the node identifier, unique across all files.
	ID string `json:"id" msgpack:"id" validate:"required,trimmed"`

	// Title is the headline or file title.
	Title string `json:"title" msgpack:"title"`

	// Aliases are alternative titles.
	Aliases []string `json:"aliases,omitempty" msgpack:"aliases" validate:"dive,required"`

	// Tags are the node's tags without surrounding colons.
	Tags []string `json:"tags,omitempty" msgpack:"tags" validate:"dive,required"`

	// Level is the headline depth; 0 for a file-level node.
	Level int `json:"level" msgpack:"level" validate:"gte=0"`

	// FilePath is the file the node was parsed from.
	FilePath string `json:"file_path" msgpack:"file_path" validate:"required"`

	// ModifiedAtMilli is the file modification time in Unix milliseconds.
	ModifiedAtMilli int64 `json:"modified_at_ms" msgpack:"modified_at_ms" validate:"gte=0"`

	// Linked maps each link target ID to every position it is linked from.
	// A target with no recorded positions still counts as one link.
	Linked map[string][]Position `json:"linked,omitempty" msgpack:"linked" validate:"dive,keys,required,trimmed,endkeys,dive"`
}

// Validate checks the record's fields.
//
// Outputs:
//
//	error - Wraps ErrInvalidRecord with the validator's message, or nil.
func (r *Record) Validate() error {
	if err := recordValidate.Struct(r); err != nil {
		return fmt.Errorf("%w %q: %v", ErrInvalidRecord, r.ID, err)
	}
	return nil
}

// ModifiedAt returns ModifiedAtMilli as a time.Time, or the zero time.
func (r *Record) ModifiedAt() time.Time {
	if r.ModifiedAtMilli == 0 {
		return time.Time{}
	}
	return time.UnixMilli(r.ModifiedAtMilli)
}

// LinkCount returns how many links the record declares to target.
func (r *Record) LinkCount(target string) int {
	positions, ok := r.Linked[target]
	if !ok {
		return 0
	}
	return max(1, len(positions))
}
