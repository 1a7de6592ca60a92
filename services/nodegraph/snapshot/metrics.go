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
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("nodegraph.snapshot")

// ==============================================================================
// Prometheus Metrics
// ==============================================================================

var (
	// snapshotOpsTotal counts snapshot operations by operation and result
	snapshotOpsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nodegraph_snapshot_operations_total",
		Help: "Total snapshot operations by operation and result",
	}, []string{"operation", "result"})

	// snapshotBytesTotal counts bytes written and read
	snapshotBytesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nodegraph_snapshot_bytes_total",
		Help: "Total snapshot bytes by operation",
	}, []string{"operation"})

	// snapshotDuration tracks snapshot latency
	snapshotDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "nodegraph_snapshot_duration_seconds",
		Help:    "Snapshot operation duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 14), // 1ms to ~8s
	}, []string{"operation"})
)

func recordOperation(operation string, start time.Time, size int, err error) {
	result := "success"
	switch {
	case err == nil:
	case errors.Is(err, ErrCorruptSnapshot):
		result = "corrupt"
	case errors.Is(err, ErrUnsupportedVersion):
		result = "unsupported"
	default:
		result = "error"
	}
	snapshotOpsTotal.WithLabelValues(operation, result).Inc()
	snapshotBytesTotal.WithLabelValues(operation).Add(float64(size))
	snapshotDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}
