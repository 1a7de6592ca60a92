// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package telemetry wires the OpenTelemetry SDK for the nodegraph binaries.
//
// The index, store and snapshot packages only use the OTel API
// (otel.Tracer, otel.Meter). Until Init runs those calls hit the global
// no-op providers, so library users who never call Init pay nothing.
//
// # Trace Backend
//
// "otlp" exports spans over gRPC to an OTLP collector, "stdout" pretty-prints
// them, "none" leaves the no-op provider in place.
//
// # Metrics Backend
//
// "prometheus" (default) exposes OTel instruments on a private registry.
// MetricsHandler serves that registry merged with the default Prometheus
// registry, so the promauto counters of the snapshot, ingest and cache
// packages appear on the same /metrics page.
//
// # Usage
//
//	shutdown, err := telemetry.Init(ctx, telemetry.DefaultConfig())
//	if err != nil {
//	    return fmt.Errorf("init telemetry: %w", err)
//	}
//	defer shutdown(context.Background())
//
// # Thread Safety
//
// All exported functions are safe for concurrent use after Init returns.
package telemetry
