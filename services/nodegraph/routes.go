// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package nodegraph

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RegisterRoutes registers all /v1/nodegraph routes with the router group.
//
// Description:
//
//	The router group should already have any required middleware applied.
//	Node IDs containing "/" must be path-escaped by the client.
//
// Inputs:
//
//	rg - Gin router group (typically /v1)
//	handlers - The handlers instance
//
// Endpoints:
//
//	GET    /v1/nodegraph/health - Health check
//	GET    /v1/nodegraph/stats - Store and cache counters
//	GET    /v1/nodegraph/nodes/:id - Record and direct links
//	GET    /v1/nodegraph/nodes/:id/links - Forward reachability
//	GET    /v1/nodegraph/nodes/:id/backlinks - Backward reachability
//	GET    /v1/nodegraph/nodes/:id/walk - Breadth-first walk
//	GET    /v1/nodegraph/paths - Simple paths between two nodes
//	GET    /v1/nodegraph/index/:name - Index lookup by key
//	GET    /v1/nodegraph/index/:name/keys - All keys of an index
//	POST   /v1/nodegraph/records - Apply records
//	DELETE /v1/nodegraph/files - Remove the nodes of a file
//	POST   /v1/nodegraph/snapshot - Persist the graph
//
// Example:
//
//	svc := nodegraph.NewService(nodegraph.DefaultServiceConfig(), nil)
//	v1 := router.Group("/v1")
//	nodegraph.RegisterRoutes(v1, nodegraph.NewHandlers(svc))
func RegisterRoutes(rg *gin.RouterGroup, handlers *Handlers) {
	ng := rg.Group("/nodegraph")
	{
		ng.GET("/health", handlers.HandleHealth)
		ng.GET("/stats", handlers.HandleStats)

		// Graph queries
		ng.GET("/nodes/:id", handlers.HandleNode)
		ng.GET("/nodes/:id/links", handlers.HandleLinks)
		ng.GET("/nodes/:id/backlinks", handlers.HandleBacklinks)
		ng.GET("/nodes/:id/walk", handlers.HandleWalk)
		ng.GET("/paths", handlers.HandlePaths)

		// Indexes
		ng.GET("/index/:name", handlers.HandleIndexLookup)
		ng.GET("/index/:name/keys", handlers.HandleIndexKeys)

		// Mutations
		ng.POST("/records", handlers.HandleApplyRecords)
		ng.DELETE("/files", handlers.HandleRemoveFile)
		ng.POST("/snapshot", handlers.HandleSnapshot)
	}
}

// RegisterMetrics serves h at GET /metrics. A nil h registers nothing.
func RegisterMetrics(router gin.IRoutes, h http.Handler) {
	if h == nil {
		return
	}
	router.GET("/metrics", gin.WrapH(h))
}
