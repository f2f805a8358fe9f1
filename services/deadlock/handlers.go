// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package deadlock

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ServiceVersion is the deadlock service version.
const ServiceVersion = "0.1.0"

// Handlers contains the HTTP handlers for the deadlock service.
type Handlers struct {
	svc *Service
}

// NewHandlers creates handlers for the given service.
func NewHandlers(svc *Service) *Handlers {
	return &Handlers{svc: svc}
}

// getOrCreateRequestID returns the X-Request-ID header, generating one if
// the client did not send it, and echoes it back on the response.
func getOrCreateRequestID(c *gin.Context) string {
	requestID := c.GetHeader("X-Request-ID")
	if requestID == "" {
		requestID = uuid.NewString()
	}
	c.Header("X-Request-ID", requestID)
	return requestID
}

// writeError maps core sentinel errors to HTTP status codes and machine
// codes, and writes the standard error body.
func writeError(c *gin.Context, logger *slog.Logger, err error) {
	statusCode := http.StatusInternalServerError
	errCode := "INTERNAL"

	switch {
	case errors.Is(err, ErrInvalidID):
		statusCode = http.StatusBadRequest
		errCode = "INVALID_ID"
	case errors.Is(err, ErrInvalidCount):
		statusCode = http.StatusBadRequest
		errCode = "INVALID_COUNT"
	case errors.Is(err, ErrDuplicateEntity):
		statusCode = http.StatusConflict
		errCode = "DUPLICATE_ENTITY"
	case errors.Is(err, ErrUnknownEntity):
		statusCode = http.StatusNotFound
		errCode = "UNKNOWN_ENTITY"
	case errors.Is(err, ErrRegistryFull):
		statusCode = http.StatusConflict
		errCode = "REGISTRY_FULL"
	}

	if statusCode >= http.StatusInternalServerError {
		logger.Error("Request failed", "error", err)
	} else {
		logger.Warn("Request rejected", "error", err)
	}
	c.JSON(statusCode, ErrorResponse{Error: err.Error(), Code: errCode})
}

// HandleState handles GET /v1/deadlock/state.
//
// Description:
//
//	Returns a deep snapshot of the full allocation state: every resource
//	with its total/available units and every process with its allocated,
//	requesting, and max-demand maps.
//
// Response:
//
//	200 OK: Snapshot
func (h *Handlers) HandleState(c *gin.Context) {
	c.JSON(http.StatusOK, h.svc.State(c.Request.Context()))
}

// HandleAddResource handles POST /v1/deadlock/resources.
//
// Description:
//
//	Registers a resource with a fixed capacity. The resource starts fully
//	available.
//
// Request Body:
//
//	AddResourceRequest
//
// Response:
//
//	200 OK: AddResourceResponse
//	400 Bad Request: Validation error
//	409 Conflict: Duplicate resource ID or registry full
func (h *Handlers) HandleAddResource(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleAddResource")

	var req AddResourceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "Invalid request body",
			Code:  "INVALID_REQUEST",
		})
		return
	}
	if err := validateRequest(&req); err != nil {
		logger.Warn("Request validation failed", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: err.Error(),
			Code:  "INVALID_REQUEST",
		})
		return
	}

	total := req.TotalOrDefault()
	if err := h.svc.AddResource(c.Request.Context(), req.RID, total); err != nil {
		writeError(c, logger, err)
		return
	}

	logger.Info("Resource registered", "rid", req.RID, "total", total)
	c.JSON(http.StatusOK, AddResourceResponse{RID: req.RID, Total: total})
}

// HandleAddProcess handles POST /v1/deadlock/processes.
//
// Description:
//
//	Registers a process with empty allocation and demand state.
//
// Request Body:
//
//	AddProcessRequest
//
// Response:
//
//	200 OK: AddProcessResponse
//	400 Bad Request: Validation error
//	409 Conflict: Duplicate process ID or registry full
func (h *Handlers) HandleAddProcess(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleAddProcess")

	var req AddProcessRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "Invalid request body",
			Code:  "INVALID_REQUEST",
		})
		return
	}
	if err := validateRequest(&req); err != nil {
		logger.Warn("Request validation failed", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: err.Error(),
			Code:  "INVALID_REQUEST",
		})
		return
	}

	if err := h.svc.AddProcess(c.Request.Context(), req.PID); err != nil {
		writeError(c, logger, err)
		return
	}

	logger.Info("Process registered", "pid", req.PID)
	c.JSON(http.StatusOK, AddProcessResponse{PID: req.PID})
}

// HandleMaxDemand handles POST /v1/deadlock/maxdemand.
//
// Description:
//
//	Declares a process's maximum demand for a resource. Used only by the
//	safety check; over-declaring beyond the resource total is legal.
//
// Request Body:
//
//	MaxDemandRequest
//
// Response:
//
//	200 OK: empty object
//	400 Bad Request: Validation error
//	404 Not Found: Unknown process
func (h *Handlers) HandleMaxDemand(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleMaxDemand")

	var req MaxDemandRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "Invalid request body",
			Code:  "INVALID_REQUEST",
		})
		return
	}
	if err := validateRequest(&req); err != nil {
		logger.Warn("Request validation failed", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: err.Error(),
			Code:  "INVALID_REQUEST",
		})
		return
	}

	count := req.CountOrDefault()
	if err := h.svc.SetMaxDemand(c.Request.Context(), req.PID, req.RID, count); err != nil {
		writeError(c, logger, err)
		return
	}

	logger.Info("Max demand declared", "pid", req.PID, "rid", req.RID, "count", count)
	c.JSON(http.StatusOK, gin.H{})
}

// HandleRequest handles POST /v1/deadlock/request.
//
// Description:
//
//	Attempts to allocate resource units to a process. If the resource has
//	too few available units the demand is recorded as waiting instead,
//	which is what creates wait-for edges.
//
// Request Body:
//
//	AllocRequest
//
// Response:
//
//	200 OK: RequestResponse
//	400 Bad Request: Validation error
//	404 Not Found: Unknown process or resource
func (h *Handlers) HandleRequest(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleRequest")

	var req AllocRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "Invalid request body",
			Code:  "INVALID_REQUEST",
		})
		return
	}
	if err := validateRequest(&req); err != nil {
		logger.Warn("Request validation failed", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: err.Error(),
			Code:  "INVALID_REQUEST",
		})
		return
	}

	count := req.CountOrDefault()
	granted, err := h.svc.Request(c.Request.Context(), req.PID, req.RID, count)
	if err != nil {
		writeError(c, logger, err)
		return
	}

	logger.Info("Allocation request processed",
		"pid", req.PID, "rid", req.RID, "count", count, "granted", granted)
	c.JSON(http.StatusOK, RequestResponse{Granted: granted})
}

// HandleRelease handles POST /v1/deadlock/release.
//
// Description:
//
//	Releases resource units held by a process back to the available pool.
//	Releasing more than held frees only what is held; not an error.
//
// Request Body:
//
//	AllocRequest
//
// Response:
//
//	200 OK: ReleaseResponse
//	400 Bad Request: Validation error
//	404 Not Found: Unknown process or resource
func (h *Handlers) HandleRelease(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleRelease")

	var req AllocRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "Invalid request body",
			Code:  "INVALID_REQUEST",
		})
		return
	}
	if err := validateRequest(&req); err != nil {
		logger.Warn("Request validation failed", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: err.Error(),
			Code:  "INVALID_REQUEST",
		})
		return
	}

	count := req.CountOrDefault()
	freed, err := h.svc.Release(c.Request.Context(), req.PID, req.RID, count)
	if err != nil {
		writeError(c, logger, err)
		return
	}

	logger.Info("Release processed",
		"pid", req.PID, "rid", req.RID, "count", count, "freed", freed)
	c.JSON(http.StatusOK, ReleaseResponse{Freed: freed})
}

// HandleDetect handles GET /v1/deadlock/detect.
//
// Description:
//
//	Builds the wait-for graph from the current state and reports every
//	cycle found. Cycles are reported as found; the same underlying cycle
//	may appear once per traversal root that reaches it.
//
// Response:
//
//	200 OK: DetectResponse
func (h *Handlers) HandleDetect(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleDetect")

	resp := h.svc.DetectDeadlock(c.Request.Context())

	logger.Info("Deadlock detection completed",
		"has_deadlock", resp.HasDeadlock, "cycles", len(resp.Cycles))
	c.JSON(http.StatusOK, resp)
}

// HandleSafety handles POST /v1/deadlock/safety.
//
// Description:
//
//	Runs the Banker's-algorithm safety check for a hypothetical grant.
//	The grant is simulated against declared maximum demands and never
//	committed to real state.
//
// Request Body:
//
//	SafetyRequest
//
// Response:
//
//	200 OK: SafetyResponse
//	400 Bad Request: Validation error
//	404 Not Found: Unknown process or resource
func (h *Handlers) HandleSafety(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleSafety")

	var req SafetyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "Invalid request body",
			Code:  "INVALID_REQUEST",
		})
		return
	}
	if err := validateRequest(&req); err != nil {
		logger.Warn("Request validation failed", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: err.Error(),
			Code:  "INVALID_REQUEST",
		})
		return
	}

	count := req.CountOrDefault()
	resp, err := h.svc.CheckSafety(c.Request.Context(), req.PID, req.RID, count)
	if err != nil {
		writeError(c, logger, err)
		return
	}

	logger.Info("Safety check completed",
		"pid", req.PID, "rid", req.RID, "count", count, "safe", resp.Safe)
	c.JSON(http.StatusOK, resp)
}

// HandleReset handles POST /v1/deadlock/reset.
//
// Description:
//
//	Atomically replaces the whole registry with a fresh, empty one.
//
// Response:
//
//	200 OK: ResetResponse
func (h *Handlers) HandleReset(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleReset")

	h.svc.Reset(c.Request.Context())

	logger.Info("Registry reset")
	c.JSON(http.StatusOK, ResetResponse{OK: true})
}

// HandleHealth handles GET /v1/deadlock/health.
func (h *Handlers) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:  "healthy",
		Version: ServiceVersion,
	})
}

// HandleReady handles GET /v1/deadlock/ready.
func (h *Handlers) HandleReady(c *gin.Context) {
	resources, processes := h.svc.Counts()
	c.JSON(http.StatusOK, ReadyResponse{
		Ready:     true,
		Resources: resources,
		Processes: processes,
	})
}
