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
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/nodegraph/pkg/logging"
	"github.com/AleutianAI/nodegraph/services/nodegraph"
	"github.com/AleutianAI/nodegraph/services/nodegraph/config"
	badgerstore "github.com/AleutianAI/nodegraph/services/nodegraph/storage/badger"
)

// rootFlags are the persistent flags shared by every subcommand.
type rootFlags struct {
	configPath string
	snapshot   string
	logLevel   string
	output     string
}

// app holds everything a subcommand needs. It is built in the root
// command's PersistentPreRunE. The caller of Execute must call close,
// since cobra skips post-run hooks when a command fails.
type app struct {
	flags  rootFlags
	cfg    *config.Config
	logger *logging.Logger
	badger *badgerstore.DB
	svc    *nodegraph.Service
	out    *printer
}

func newRootCmd(a *app) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "nodegraph",
		Short: "Build, query and serve a note link graph",
		Long: `nodegraph keeps a directed, multiplicity-counting graph of links between
notes, with secondary indexes over note metadata. The graph is persisted
to a snapshot file and can be served over HTTP.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.open(cmd)
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&a.flags.configPath, "config", "", "config file (default $"+config.EnvConfigPath+" or built-in defaults)")
	pf.StringVar(&a.flags.snapshot, "snapshot", "", "snapshot file, overrides snapshot.path")
	pf.StringVar(&a.flags.logLevel, "log-level", "", "log level: debug, info, warn, error")
	pf.StringVarP(&a.flags.output, "output", "o", outputAuto, "output format: auto, plain, json")

	rootCmd.AddCommand(
		newIngestCmd(a),
		newRemoveFileCmd(a),
		newNodeCmd(a),
		newGraphCmd(a),
		newIndexCmd(a),
		newStatsCmd(a),
		newSaveCmd(a),
		newServeCmd(a),
	)
	return rootCmd
}

// open loads the configuration, builds the logger and restores the graph.
func (a *app) open(cmd *cobra.Command) error {
	cfg, err := config.Load(a.flags.configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if a.flags.snapshot != "" {
		cfg.Snapshot.Path = a.flags.snapshot
	}
	if a.flags.logLevel != "" {
		cfg.Log.Level = a.flags.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	a.cfg = cfg

	out, err := newPrinter(cmd.OutOrStdout(), a.flags.output)
	if err != nil {
		return err
	}
	a.out = out

	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return err
	}
	a.logger = logging.New(logging.Config{
		Level:  level,
		LogDir: cfg.Log.Dir,
		JSON:   cfg.Log.JSON,
		Output: cmd.ErrOrStderr(),
	})

	svcCfg := nodegraph.ServiceConfig{
		SnapshotPath:  logging.ExpandPath(cfg.Snapshot.Path),
		Compress:      cfg.Snapshot.Compress,
		CacheCapacity: cfg.Cache.Capacity,
		PathTimeout:   cfg.Cache.PathTimeout,
		Logger:        a.logger.Slog(),
	}

	if cfg.Badger.Enabled() {
		a.badger, err = badgerstore.Open(badgerstore.Config{
			Path:           logging.ExpandPath(cfg.Badger.Dir),
			SyncWrites:     cfg.Badger.SyncWrites,
			Logger:         a.logger.Slog(),
			GCInterval:     cfg.Badger.GCInterval,
			GCDiscardRatio: cfg.Badger.GCDiscardRatio,
		})
		if err != nil {
			return fmt.Errorf("open badger: %w", err)
		}
		svcCfg.Badger = a.badger
	}

	a.svc, err = nodegraph.OpenService(cmd.Context(), svcCfg)
	if err != nil {
		return err
	}
	return nil
}

// close releases the badger directory and the log file. Safe to call
// when open failed or never ran.
func (a *app) close() error {
	var errs []error
	if a.badger != nil {
		errs = append(errs, a.badger.Close())
		a.badger = nil
	}
	if a.logger != nil {
		errs = append(errs, a.logger.Close())
		a.logger = nil
	}
	return errors.Join(errs...)
}

// execute runs the command line in args and releases the app afterwards.
func execute(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	a := &app{}
	rootCmd := newRootCmd(a)
	rootCmd.SetArgs(args)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)
	err := rootCmd.ExecuteContext(ctx)
	return errors.Join(err, a.close())
}

// saveIfDirty persists the graph when it changed since it was loaded.
func (a *app) saveIfDirty(ctx context.Context) error {
	if !a.svc.Dirty() {
		return nil
	}
	start := time.Now()
	resp, err := a.svc.Save(ctx)
	if err != nil {
		return fmt.Errorf("save: %w", err)
	}
	a.logger.Debug("graph saved",
		slog.String("path", resp.Path),
		slog.Duration("elapsed", time.Since(start)),
	)
	return nil
}

// =============================================================================
// Mutating Commands
// =============================================================================

func newIngestCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "ingest [dir]",
		Short:   "Apply every JSON record file under dir and save the graph",
		Long:    "Reads every *.json file under dir (default ingest.dir) and applies the records. Invalid records are reported and skipped.",
		Aliases: []string{"i"},
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := a.cfg.Ingest.Dir
			if len(args) == 1 {
				dir = args[0]
			}
			if dir == "" {
				return errors.New("no directory given and ingest.dir is not set")
			}

			result, applyErr := a.svc.IngestDir(cmd.Context(), logging.ExpandPath(dir))
			resp := nodegraph.ApplyResponse{ApplyResult: result}
			if applyErr != nil {
				if resp.Errors = batchErrors(applyErr); resp.Errors == nil {
					return applyErr
				}
			}
			if err := a.saveIfDirty(cmd.Context()); err != nil {
				return err
			}
			return a.out.applyResult(resp)
		},
	}
}

func newRemoveFileCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "remove-file <path>",
		Short: "Remove every node parsed from a file and save the graph",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			removed, err := a.svc.RemoveFile(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if err := a.saveIfDirty(cmd.Context()); err != nil {
				return err
			}
			if removed == nil {
				removed = []string{}
			}
			return a.out.list(nodegraph.RemoveFileResponse{Path: args[0], Removed: removed}, removed)
		},
	}
}

func newSaveCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "save",
		Short: "Write the graph to every configured target",
		Long:  "Rewrites the snapshot file and, when badger.dir is set, a new badger generation. Useful to migrate between the two.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := a.svc.Save(cmd.Context())
			if err != nil {
				return err
			}
			return a.out.value(resp, fmt.Sprintf("saved version %d to %s", resp.Version, resp.Path))
		},
	}
}

// =============================================================================
// Query Commands
// =============================================================================

func newNodeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "node <id>",
		Short: "Show a node's record and direct links",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := a.svc.Node(args[0])
			if err != nil {
				return err
			}
			return a.out.node(resp)
		},
	}
}

func newStatsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show node, edge and index counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.out.stats(a.svc.Stats())
		},
	}
}
