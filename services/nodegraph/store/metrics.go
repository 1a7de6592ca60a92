// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package store

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var meter = otel.Meter("nodegraph.store")

var (
	mutationTotal   metric.Int64Counter
	traversalTotal  metric.Int64Counter
	traversalResult metric.Int64Histogram

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics initializes the metrics. Safe to call multiple times.
func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		mutationTotal, err = meter.Int64Counter(
			"nodegraph_store_mutations_total",
			metric.WithDescription("Total store mutations by operation and outcome"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		traversalTotal, err = meter.Int64Counter(
			"nodegraph_store_traversals_total",
			metric.WithDescription("Total traversal queries by kind"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		traversalResult, err = meter.Int64Histogram(
			"nodegraph_store_traversal_results",
			metric.WithDescription("Number of nodes returned per traversal query"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

// recordMutation counts a store mutation.
func recordMutation(operation string, applied bool) {
	if err := initMetrics(); err != nil {
		return
	}
	mutationTotal.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("operation", operation),
		attribute.Bool("applied", applied),
	))
}

// recordTraversal counts a completed traversal query and its result size.
func recordTraversal(kind string, results int) {
	if err := initMetrics(); err != nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("kind", kind))
	traversalTotal.Add(context.Background(), 1, attrs)
	traversalResult.Record(context.Background(), int64(results), attrs)
}
