// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command nodegraph builds, queries and serves a note link graph.
//
// Records are JSON files produced by a note parser. Each holds one record
// or an array of records; see ingest.Record for the fields. The graph is
// kept in a snapshot file and optionally mirrored to a badger directory.
//
// Usage:
//
//	nodegraph ingest ./records
//	nodegraph graph links <id> --depth 2
//	nodegraph graph backlinks <id>
//	nodegraph graph path <from> <to> --limit 5
//	nodegraph index find title "some title"
//	nodegraph stats
//	nodegraph serve
//
// Configuration is read from --config, or $NODEGRAPH_CONFIG, then
// overridden by NODEGRAPH_* environment variables and finally by flags.
//
// Example requests against a running server:
//
//	curl http://localhost:8089/v1/nodegraph/health
//	curl http://localhost:8089/v1/nodegraph/nodes/<id>/backlinks?depth=1
//	curl 'http://localhost:8089/v1/nodegraph/paths?from=a&to=b'
//	curl -X POST http://localhost:8089/v1/nodegraph/records -d @records.json
package main

import (
	"context"
	"fmt"
	"os"
)

func main() {
	if err := execute(context.Background(), os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
