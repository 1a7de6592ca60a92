// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"cmp"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"slices"
	"strings"
	"text/tabwriter"

	"github.com/mattn/go-isatty"

	"github.com/AleutianAI/nodegraph/services/nodegraph"
	"github.com/AleutianAI/nodegraph/services/nodegraph/ingest"
)

// Output formats accepted by --output.
const (
	outputAuto  = "auto"
	outputPlain = "plain"
	outputJSON  = "json"
)

// printer renders command results as plain text or JSON.
type printer struct {
	w    io.Writer
	json bool
}

// newPrinter resolves format against w. "auto" picks plain text for a
// terminal and JSON for anything else, so piped output is machine readable.
func newPrinter(w io.Writer, format string) (*printer, error) {
	switch format {
	case outputPlain:
		return &printer{w: w}, nil
	case outputJSON:
		return &printer{w: w, json: true}, nil
	case outputAuto, "":
		return &printer{w: w, json: !isTerminal(w)}, nil
	default:
		return nil, fmt.Errorf("unknown output format %q (want auto, plain or json)", format)
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func (p *printer) encode(v any) error {
	enc := json.NewEncoder(p.w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// value prints v as JSON, or line as plain text.
func (p *printer) value(v any, line string) error {
	if p.json {
		return p.encode(v)
	}
	_, err := fmt.Fprintln(p.w, line)
	return err
}

// list prints v as JSON, or items one per line.
func (p *printer) list(v any, items []string) error {
	if p.json {
		return p.encode(v)
	}
	for _, item := range items {
		if _, err := fmt.Fprintln(p.w, item); err != nil {
			return err
		}
	}
	return nil
}

func (p *printer) applyResult(resp nodegraph.ApplyResponse) error {
	if p.json {
		return p.encode(resp)
	}
	fmt.Fprintf(p.w, "applied %d, rejected %d, links %d\n", resp.Applied, resp.Rejected, resp.Links)
	for _, e := range resp.Errors {
		fmt.Fprintf(p.w, "  %s\n", e)
	}
	return nil
}

func (p *printer) node(resp nodegraph.NodeResponse) error {
	if p.json {
		return p.encode(resp)
	}
	tw := tabwriter.NewWriter(p.w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "id\t%s\n", resp.ID)
	if rec := resp.Record; rec != nil {
		fmt.Fprintf(tw, "title\t%s\n", rec.Title)
		fmt.Fprintf(tw, "file\t%s\n", rec.FilePath)
		fmt.Fprintf(tw, "level\t%d\n", rec.Level)
		if len(rec.Aliases) > 0 {
			fmt.Fprintf(tw, "aliases\t%s\n", strings.Join(rec.Aliases, ", "))
		}
		if len(rec.Tags) > 0 {
			fmt.Fprintf(tw, "tags\t%s\n", strings.Join(rec.Tags, ", "))
		}
		if t := rec.ModifiedAt(); !t.IsZero() {
			fmt.Fprintf(tw, "modified\t%s\n", t.UTC().Format("2006-01-02 15:04:05"))
		}
	} else {
		fmt.Fprintf(tw, "record\t(none, link target only)\n")
	}
	for _, id := range slices.Sorted(maps.Keys(resp.Links)) {
		fmt.Fprintf(tw, "links to\t%s\tx%d\n", id, resp.Links[id])
	}
	for _, id := range slices.Sorted(maps.Keys(resp.Backlinks)) {
		fmt.Fprintf(tw, "linked from\t%s\tx%d\n", id, resp.Backlinks[id])
	}
	return tw.Flush()
}

// reach prints nodes nearest first, ties by ID.
func (p *printer) reach(resp nodegraph.ReachResponse) error {
	if p.json {
		return p.encode(resp)
	}
	ids := slices.SortedFunc(maps.Keys(resp.Nodes), func(a, b string) int {
		if c := cmp.Compare(resp.Nodes[a], resp.Nodes[b]); c != 0 {
			return c
		}
		return strings.Compare(a, b)
	})
	tw := tabwriter.NewWriter(p.w, 0, 4, 2, ' ', 0)
	for _, id := range ids {
		fmt.Fprintf(tw, "%d\t%s\n", resp.Nodes[id], id)
	}
	return tw.Flush()
}

func (p *printer) walk(resp nodegraph.WalkResponse) error {
	if p.json {
		return p.encode(resp)
	}
	for _, step := range resp.Steps {
		fmt.Fprintf(p.w, "%s%s\n", strings.Repeat("  ", step.Distance), step.ID)
	}
	return nil
}

func (p *printer) paths(resp nodegraph.PathResponse) error {
	if p.json {
		return p.encode(resp)
	}
	if len(resp.Paths) == 0 {
		fmt.Fprintf(p.w, "no path from %s to %s\n", resp.From, resp.To)
		return nil
	}
	for _, path := range resp.Paths {
		fmt.Fprintln(p.w, strings.Join(path, " -> "))
	}
	if resp.Truncated {
		fmt.Fprintln(p.w, "(more paths exist, raise --limit)")
	}
	return nil
}

func (p *printer) stats(resp nodegraph.StatsResponse) error {
	if p.json {
		return p.encode(resp)
	}
	tw := tabwriter.NewWriter(p.w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "nodes\t%d\n", resp.Nodes)
	fmt.Fprintf(tw, "phantom nodes\t%d\n", resp.PhantomNodes)
	fmt.Fprintf(tw, "edges\t%d\n", resp.Edges)
	fmt.Fprintf(tw, "links\t%d\n", resp.Links)
	fmt.Fprintf(tw, "version\t%d\n", resp.Version)
	for _, name := range slices.Sorted(maps.Keys(resp.IndexKeys)) {
		fmt.Fprintf(tw, "index %s\t%d keys\n", name, resp.IndexKeys[name])
	}
	return tw.Flush()
}

// batchErrors returns the messages of a *ingest.BatchError, or nil for any
// other error.
func batchErrors(err error) []string {
	var batch *ingest.BatchError
	if !errors.As(err, &batch) {
		return nil
	}
	msgs := make([]string, 0, len(batch.Errors))
	for _, e := range batch.Errors {
		msgs = append(msgs, e.Error())
	}
	return msgs
}
