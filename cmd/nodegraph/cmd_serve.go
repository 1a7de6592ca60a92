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
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/AleutianAI/nodegraph/pkg/logging"
	"github.com/AleutianAI/nodegraph/services/nodegraph"
	"github.com/AleutianAI/nodegraph/services/nodegraph/config"
	"github.com/AleutianAI/nodegraph/services/nodegraph/telemetry"
	"github.com/AleutianAI/nodegraph/services/nodegraph/watch"
)

func newServeCmd(a *app) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the graph over HTTP",
		Long: `Serves the /v1/nodegraph API and, with the prometheus metric exporter,
/metrics. Records in ingest.dir are applied on startup, and followed while
running when ingest.watch is set. A changed graph is saved every
snapshot.save_interval and on shutdown.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr != "" {
				a.cfg.Server.Addr = addr
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.serve(ctx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address, overrides server.addr")
	return cmd
}

// serve runs the HTTP server until ctx is done.
func (a *app) serve(ctx context.Context) error {
	logger := a.logger.Slog()

	shutdownTelemetry, err := telemetry.Init(ctx, telemetryConfig(a.cfg.Telemetry))
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := shutdownTelemetry(shutdownCtx); err != nil {
			logger.Warn("telemetry shutdown failed", slog.String("error", err.Error()))
		}
	}()

	stopWatch, err := a.loadRecords(ctx)
	if err != nil {
		return err
	}
	defer stopWatch()

	if a.logger.Level() > logging.LevelDebug {
		gin.SetMode(gin.ReleaseMode)
	}
	router := newRouter(a.svc, telemetry.MetricsHandler())

	srv := &http.Server{
		Addr:              a.cfg.Server.Addr,
		Handler:           router,
		ReadHeaderTimeout: a.cfg.Server.ReadHeaderTimeout,
	}
	ln, err := net.Listen("tcp", srv.Addr)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()
	logger.Info("Starting nodegraph server",
		slog.String("address", ln.Addr().String()),
		slog.String("version", nodegraph.ServiceVersion),
	)

	var autosave <-chan time.Time
	if iv := a.cfg.Snapshot.SaveInterval; iv > 0 {
		ticker := time.NewTicker(iv)
		defer ticker.Stop()
		autosave = ticker.C
	}

loop:
	for {
		select {
		case err := <-errCh:
			if !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("serve: %w", err)
			}
			break loop
		case <-ctx.Done():
			logger.Info("Shutting down nodegraph server")
			break loop
		case <-autosave:
			if err := a.saveIfDirty(ctx); err != nil {
				logger.Error("autosave failed", slog.String("error", err.Error()))
			}
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()
	shutdownErr := srv.Shutdown(shutdownCtx)
	if shutdownErr != nil {
		shutdownErr = fmt.Errorf("shutdown: %w", shutdownErr)
	}
	stopWatch()
	return errors.Join(shutdownErr, a.saveIfDirty(shutdownCtx))
}

// loadRecords applies ingest.dir once, or follows it when ingest.watch is
// set. The returned stop func is idempotent.
func (a *app) loadRecords(ctx context.Context) (stop func(), err error) {
	noop := func() {}
	dir := a.cfg.Ingest.Dir
	if dir == "" {
		return noop, nil
	}
	dir = logging.ExpandPath(dir)

	if !a.cfg.Ingest.Watch {
		if _, err := a.svc.IngestDir(ctx, dir); err != nil && batchErrors(err) == nil {
			return noop, fmt.Errorf("initial ingest: %w", err)
		}
		return noop, nil
	}

	w, err := watch.New(dir, a.svc, watch.Options{
		Debounce: a.cfg.Ingest.Debounce,
		Logger:   a.logger.Slog(),
	})
	if err != nil {
		return noop, err
	}
	if _, err := w.Start(ctx); err != nil {
		w.Stop()
		return noop, err
	}
	return w.Stop, nil
}

// newRouter builds the gin engine with tracing, recovery and all routes.
// A nil metrics handler leaves /metrics unregistered.
func newRouter(svc *nodegraph.Service, metrics http.Handler) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware("nodegraph"))

	v1 := router.Group("/v1")
	nodegraph.RegisterRoutes(v1, nodegraph.NewHandlers(svc))
	nodegraph.RegisterMetrics(router, metrics)
	return router
}

// telemetryConfig maps the config file section onto telemetry.Config.
func telemetryConfig(c config.TelemetryConfig) telemetry.Config {
	tc := telemetry.DefaultConfig()
	tc.ServiceVersion = nodegraph.ServiceVersion
	tc.Environment = c.Environment
	tc.TraceExporter = c.TraceExporter
	tc.MetricExporter = c.MetricExporter
	tc.OTLPEndpoint = c.OTLPEndpoint
	tc.OTLPInsecure = c.OTLPInsecure
	return tc
}
