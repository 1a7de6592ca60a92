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
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/nodegraph/services/nodegraph"
	"github.com/AleutianAI/nodegraph/services/nodegraph/graph"
	"github.com/AleutianAI/nodegraph/services/nodegraph/ingest"
)

func newGraphCmd(a *app) *cobra.Command {
	graphCmd := &cobra.Command{
		Use:     "graph",
		Short:   "Traverse the link graph",
		Aliases: []string{"g"},
	}
	graphCmd.AddCommand(
		newReachCmd(a, "links", graph.Forward, "List nodes reachable from id"),
		newReachCmd(a, "backlinks", graph.Backward, "List nodes from which id is reachable"),
		newWalkCmd(a),
		newPathCmd(a),
	)
	return graphCmd
}

func newReachCmd(a *app, use string, dir graph.Direction, short string) *cobra.Command {
	var depth int
	cmd := &cobra.Command{
		Use:   use + " <id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if depth < -1 {
				return fmt.Errorf("--depth must be -1 or greater, got %d", depth)
			}
			return a.out.reach(nodegraph.ReachResponse{
				ID:        args[0],
				Direction: dir.String(),
				Nodes:     a.svc.Reach(args[0], dir, depth),
			})
		},
	}
	cmd.Flags().IntVarP(&depth, "depth", "d", -1, "maximum hop count, -1 for unbounded")
	return cmd
}

func newWalkCmd(a *app) *cobra.Command {
	var (
		direction string
		maxDepth  int
		maxNodes  int
	)
	cmd := &cobra.Command{
		Use:   "walk <id>",
		Short: "Visit nodes breadth-first from id, nearest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := nodegraph.ParseDirection(direction)
			if err != nil {
				return err
			}
			return a.out.walk(nodegraph.WalkResponse{
				Start:     args[0],
				Direction: dir.String(),
				Steps:     a.svc.Walk(args[0], dir, maxDepth, maxNodes),
			})
		},
	}
	cmd.Flags().StringVar(&direction, "direction", graph.Forward.String(), "forward or backward")
	cmd.Flags().IntVar(&maxDepth, "max-depth", -1, "maximum hop count, -1 for unbounded")
	cmd.Flags().IntVar(&maxNodes, "max-nodes", -1, "maximum nodes visited, -1 for unbounded")
	return cmd
}

func newPathCmd(a *app) *cobra.Command {
	q := nodegraph.PathQuery{}
	cmd := &cobra.Command{
		Use:   "path <from> <to>",
		Short: "List simple paths between two nodes, shortest first",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if q.Limit < 1 {
				return fmt.Errorf("--limit must be positive, got %d", q.Limit)
			}
			q.From, q.To = args[0], args[1]
			resp, err := a.svc.Paths(cmd.Context(), q)
			if err != nil {
				return err
			}
			return a.out.paths(resp)
		},
	}
	cmd.Flags().IntVar(&q.MaxDepth, "max-depth", -1, "maximum hop count per path, -1 for unbounded")
	cmd.Flags().IntVar(&q.Limit, "limit", 100, "maximum number of paths")
	return cmd
}

// =============================================================================
// Index Commands
// =============================================================================

func newIndexCmd(a *app) *cobra.Command {
	indexCmd := &cobra.Command{
		Use:   "index",
		Short: "Look up nodes by indexed metadata",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List registered indexes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			names := a.svc.IndexNames()
			slices.Sort(names)
			return a.out.list(names, names)
		},
	}

	findCmd := &cobra.Command{
		Use:   "find <index> <key>",
		Short: "List node IDs stored under key",
		Long:  "title and alias keys are matched case-insensitively; other indexes match exactly.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := normalizeIndexKey(args[0], args[1])
			ids, err := a.svc.FindByIndex(args[0], key)
			if err != nil {
				return err
			}
			if ids == nil {
				ids = []string{}
			}
			return a.out.list(nodegraph.IndexResponse{Index: args[0], Key: key, IDs: ids}, ids)
		},
	}

	keysCmd := &cobra.Command{
		Use:   "keys <index>",
		Short: "List every key of an index",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			keys, err := a.svc.IndexKeys(args[0])
			if err != nil {
				return err
			}
			if keys == nil {
				keys = []string{}
			}
			return a.out.list(nodegraph.IndexKeysResponse{Index: args[0], Keys: keys}, keys)
		},
	}

	indexCmd.AddCommand(listCmd, findCmd, keysCmd)
	return indexCmd
}

// normalizeIndexKey lowercases keys of the case-insensitive indexes.
func normalizeIndexKey(index, key string) string {
	switch index {
	case ingest.IndexTitle, ingest.IndexAlias:
		return strings.ToLower(key)
	}
	return key
}
