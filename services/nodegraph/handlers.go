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
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/AleutianAI/nodegraph/services/nodegraph/graph"
	"github.com/AleutianAI/nodegraph/services/nodegraph/index"
	"github.com/AleutianAI/nodegraph/services/nodegraph/ingest"
	"github.com/AleutianAI/nodegraph/services/nodegraph/telemetry"
)

// Handlers contains the HTTP handlers for the node graph.
type Handlers struct {
	svc *Service
}

// NewHandlers creates handlers for the given service.
func NewHandlers(svc *Service) *Handlers {
	return &Handlers{svc: svc}
}

// HandleHealth handles GET /v1/nodegraph/health.
func (h *Handlers) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:  "healthy",
		Version: ServiceVersion,
	})
}

// HandleStats handles GET /v1/nodegraph/stats.
func (h *Handlers) HandleStats(c *gin.Context) {
	c.JSON(http.StatusOK, h.svc.Stats())
}

// HandleNode handles GET /v1/nodegraph/nodes/:id.
//
// Response:
//
//	200 OK: NodeResponse
//	404 Not Found: id has neither a record nor any link
func (h *Handlers) HandleNode(c *gin.Context) {
	logger := h.requestLogger(c, "HandleNode")

	resp, err := h.svc.Node(c.Param("id"))
	if err != nil {
		h.writeError(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// HandleLinks handles GET /v1/nodegraph/nodes/:id/links.
//
// Query Parameters:
//
//	depth - Maximum hop count, -1 (default) for unbounded.
//
// Response:
//
//	200 OK: ReachResponse, possibly with no nodes
//	400 Bad Request: invalid depth
func (h *Handlers) HandleLinks(c *gin.Context) {
	h.handleReach(c, graph.Forward)
}

// HandleBacklinks handles GET /v1/nodegraph/nodes/:id/backlinks.
func (h *Handlers) HandleBacklinks(c *gin.Context) {
	h.handleReach(c, graph.Backward)
}

func (h *Handlers) handleReach(c *gin.Context, dir graph.Direction) {
	logger := h.requestLogger(c, "HandleReach")

	var q DepthQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.badRequest(c, logger, err)
		return
	}

	id := c.Param("id")
	c.JSON(http.StatusOK, ReachResponse{
		ID:        id,
		Direction: dir.String(),
		Nodes:     h.svc.Reach(id, dir, q.Depth),
	})
}

// HandleWalk handles GET /v1/nodegraph/nodes/:id/walk.
//
// Query Parameters:
//
//	direction - forward (default) or backward.
//	max_depth - Maximum hop count, -1 (default) for unbounded.
//	max_nodes - Maximum number of visited nodes, default 1000.
//
// Response:
//
//	200 OK: WalkResponse, always starting with the node itself
//	400 Bad Request: invalid parameters
func (h *Handlers) HandleWalk(c *gin.Context) {
	logger := h.requestLogger(c, "HandleWalk")

	var q WalkQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.badRequest(c, logger, err)
		return
	}
	dir, err := ParseDirection(q.Direction)
	if err != nil {
		h.writeError(c, logger, err)
		return
	}

	id := c.Param("id")
	c.JSON(http.StatusOK, WalkResponse{
		Start:     id,
		Direction: dir.String(),
		Steps:     h.svc.Walk(id, dir, q.MaxDepth, q.MaxNodes),
	})
}

// HandlePaths handles GET /v1/nodegraph/paths.
//
// Query Parameters:
//
//	from, to - Required endpoints.
//	max_depth - Maximum hop count per path, -1 (default) for unbounded.
//	limit - Maximum number of paths, default 100.
//
// Response:
//
//	200 OK: PathResponse, shortest paths first
//	400 Bad Request: missing or invalid parameters
//	504 Gateway Timeout: the search outran the path timeout
func (h *Handlers) HandlePaths(c *gin.Context) {
	logger := h.requestLogger(c, "HandlePaths")

	var q PathQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.badRequest(c, logger, err)
		return
	}

	resp, err := h.svc.Paths(c.Request.Context(), q)
	if err != nil {
		h.writeError(c, logger, err)
		return
	}
	logger.Debug("paths found",
		slog.String("from", q.From),
		slog.String("to", q.To),
		slog.Int("count", len(resp.Paths)),
		slog.Bool("cached", resp.Cached),
	)
	c.JSON(http.StatusOK, resp)
}

// HandleIndexLookup handles GET /v1/nodegraph/index/:name?key=.
//
// Response:
//
//	200 OK: IndexResponse
//	400 Bad Request: missing key
//	404 Not Found: unknown index
func (h *Handlers) HandleIndexLookup(c *gin.Context) {
	logger := h.requestLogger(c, "HandleIndexLookup")

	var q IndexQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.badRequest(c, logger, err)
		return
	}

	name := c.Param("name")
	ids, err := h.svc.FindByIndex(name, q.Key)
	if err != nil {
		h.writeError(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, IndexResponse{Index: name, Key: q.Key, IDs: ids})
}

// HandleIndexKeys handles GET /v1/nodegraph/index/:name/keys.
func (h *Handlers) HandleIndexKeys(c *gin.Context) {
	logger := h.requestLogger(c, "HandleIndexKeys")

	name := c.Param("name")
	keys, err := h.svc.IndexKeys(name)
	if err != nil {
		h.writeError(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, IndexKeysResponse{Index: name, Keys: keys})
}

// HandleApplyRecords handles POST /v1/nodegraph/records.
//
// Request Body:
//
//	[]ingest.Record
//
// Response:
//
//	200 OK: ApplyResponse, Errors set when some records were rejected
//	400 Bad Request: body is not a JSON array of records
//	422 Unprocessable Entity: ApplyResponse, every record was rejected
func (h *Handlers) HandleApplyRecords(c *gin.Context) {
	logger := h.requestLogger(c, "HandleApplyRecords")

	var records []ingest.Record
	if err := c.ShouldBindJSON(&records); err != nil {
		h.badRequest(c, logger, err)
		return
	}

	result, err := h.svc.Apply(c.Request.Context(), records...)
	resp := ApplyResponse{ApplyResult: result}

	var batch *ingest.BatchError
	switch {
	case err == nil:
	case errors.As(err, &batch):
		for _, e := range batch.Errors {
			resp.Errors = append(resp.Errors, e.Error())
		}
		logger.Warn("records rejected", slog.Int("rejected", result.Rejected))
		if result.Applied == 0 {
			c.JSON(http.StatusUnprocessableEntity, resp)
			return
		}
	default:
		h.writeError(c, logger, err)
		return
	}

	logger.Info("records applied", slog.Int("applied", result.Applied), slog.Int("links", result.Links))
	c.JSON(http.StatusOK, resp)
}

// HandleRemoveFile handles DELETE /v1/nodegraph/files?path=.
func (h *Handlers) HandleRemoveFile(c *gin.Context) {
	logger := h.requestLogger(c, "HandleRemoveFile")

	var q FileQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.badRequest(c, logger, err)
		return
	}

	removed, err := h.svc.RemoveFile(c.Request.Context(), q.Path)
	if err != nil {
		h.writeError(c, logger, err)
		return
	}
	if removed == nil {
		removed = []string{}
	}
	c.JSON(http.StatusOK, RemoveFileResponse{Path: q.Path, Removed: removed})
}

// HandleSnapshot handles POST /v1/nodegraph/snapshot.
//
// Response:
//
//	200 OK: SnapshotResponse
//	409 Conflict: no snapshot target configured
//	500 Internal Server Error: write failed
func (h *Handlers) HandleSnapshot(c *gin.Context) {
	logger := h.requestLogger(c, "HandleSnapshot")

	resp, err := h.svc.Save(c.Request.Context())
	if err != nil {
		h.writeError(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// =============================================================================
// Helpers
// =============================================================================

// requestLogger returns a logger tagged with the request ID, the handler
// name and, when tracing is on, the trace and span IDs.
func (h *Handlers) requestLogger(c *gin.Context, handler string) *slog.Logger {
	requestID := getOrCreateRequestID(c)
	return telemetry.LoggerWithTrace(c.Request.Context(), h.svc.logger).
		With("request_id", requestID, "handler", handler)
}

// getOrCreateRequestID echoes X-Request-ID or generates one.
func getOrCreateRequestID(c *gin.Context) string {
	requestID := c.GetHeader("X-Request-ID")
	if requestID == "" {
		requestID = uuid.NewString()
	}
	c.Header("X-Request-ID", requestID)
	return requestID
}

func (h *Handlers) badRequest(c *gin.Context, logger *slog.Logger, err error) {
	logger.Warn("Invalid request", "error", err)
	c.JSON(http.StatusBadRequest, ErrorResponse{
		Error:   "Invalid request",
		Code:    "INVALID_REQUEST",
		Details: err.Error(),
	})
}

// writeError maps service errors to status codes.
func (h *Handlers) writeError(c *gin.Context, logger *slog.Logger, err error) {
	status := http.StatusInternalServerError
	code := "INTERNAL"

	switch {
	case errors.Is(err, ErrNodeNotFound):
		status, code = http.StatusNotFound, "NODE_NOT_FOUND"
	case errors.Is(err, index.ErrUnknownIndex):
		status, code = http.StatusNotFound, "UNKNOWN_INDEX"
	case errors.Is(err, ErrInvalidDirection):
		status, code = http.StatusBadRequest, "INVALID_DIRECTION"
	case errors.Is(err, ErrEmptyPath):
		status, code = http.StatusBadRequest, "INVALID_PATH"
	case errors.Is(err, ErrNoSnapshotPath):
		status, code = http.StatusConflict, "NO_SNAPSHOT_PATH"
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		status, code = http.StatusGatewayTimeout, "TIMEOUT"
	}

	if status >= http.StatusInternalServerError {
		logger.Error("Request failed", "error", err)
	} else {
		logger.Debug("Request rejected", "error", err, "code", code)
	}
	c.JSON(status, ErrorResponse{Error: err.Error(), Code: code})
}
