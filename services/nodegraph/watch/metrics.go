// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package watch

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// watchEvents counts record file events by outcome: synced, removed,
// rejected, error, dropped.
var watchEvents = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "nodegraph_watch_events_total",
	Help: "Total record file events handled by the directory watcher",
}, []string{"result"})
