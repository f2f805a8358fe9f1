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
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/ramcharansadu46-bit/deadlock-prevent/pkg/validation"
)

// ResourceState is the wire view of one resource inside a snapshot.
type ResourceState struct {
	// Total is the fixed capacity of the resource.
	Total int `json:"total"`

	// Available is the number of currently unreserved units.
	Available int `json:"available"`
}

// ProcessState is the wire view of one process inside a snapshot.
// Absent map entries mean zero.
type ProcessState struct {
	// Allocated maps resource ID to units currently held.
	Allocated map[string]int `json:"allocated"`

	// Requesting maps resource ID to currently unmet demand.
	Requesting map[string]int `json:"requesting"`

	// MaxDemand maps resource ID to the declared upper bound used by the
	// safety oracle.
	MaxDemand map[string]int `json:"max_demand"`
}

// Snapshot is a deep, immutable copy of the full registry state. Its JSON
// encoding is the representation consumed by visualization layers.
type Snapshot struct {
	// Resources maps resource ID to resource state.
	Resources map[string]ResourceState `json:"resources"`

	// Processes maps process ID to process state.
	Processes map[string]ProcessState `json:"processes"`

	// ResourceOrder lists resource IDs in registration order. Analyses use
	// it for stable iteration; it is not part of the wire shape.
	ResourceOrder []string `json:"-"`

	// ProcessOrder lists process IDs in registration order.
	ProcessOrder []string `json:"-"`
}

// deadlockValidate is the validator instance for deadlock request types.
// Initialized in init() with the entity_id custom validator.
var deadlockValidate *validator.Validate

func init() {
	deadlockValidate = validator.New()

	// entity_id enforces the same identifier rules the core applies, so
	// malformed IDs are rejected before they reach the registry.
	_ = deadlockValidate.RegisterValidation("entity_id", func(fl validator.FieldLevel) bool {
		return validation.ValidateID(fl.Field().String()) == nil
	})
}

// AddResourceRequest is the request body for POST /v1/deadlock/resources.
type AddResourceRequest struct {
	// RID is the resource identifier. Required.
	RID string `json:"rid" binding:"required" validate:"required,entity_id"`

	// Total is the resource capacity. Default: 1.
	Total *int `json:"total" validate:"omitempty,min=0"`
}

// TotalOrDefault returns the capacity, defaulting to 1 when omitted.
func (r *AddResourceRequest) TotalOrDefault() int {
	if r.Total == nil {
		return 1
	}
	return *r.Total
}

// AddResourceResponse is the response for POST /v1/deadlock/resources.
type AddResourceResponse struct {
	RID   string `json:"rid"`
	Total int    `json:"total"`
}

// AddProcessRequest is the request body for POST /v1/deadlock/processes.
type AddProcessRequest struct {
	// PID is the process identifier. Required.
	PID string `json:"pid" binding:"required" validate:"required,entity_id"`
}

// AddProcessResponse is the response for POST /v1/deadlock/processes.
type AddProcessResponse struct {
	PID string `json:"pid"`
}

// MaxDemandRequest is the request body for POST /v1/deadlock/maxdemand.
type MaxDemandRequest struct {
	// PID is the process identifier. Required.
	PID string `json:"pid" binding:"required" validate:"required,entity_id"`

	// RID is the resource identifier. Required.
	RID string `json:"rid" binding:"required" validate:"required,entity_id"`

	// Count is the declared maximum demand. Default: 1.
	Count *int `json:"count" validate:"omitempty,min=0"`
}

// AllocRequest is the request body for POST /v1/deadlock/request and
// POST /v1/deadlock/release. Field names mirror the snapshot encoding.
type AllocRequest struct {
	// PID is the process identifier. Required.
	PID string `json:"pid" binding:"required" validate:"required,entity_id"`

	// RID is the resource identifier. Required.
	RID string `json:"rid" binding:"required" validate:"required,entity_id"`

	// Count is the number of units. Default: 1.
	Count *int `json:"count" validate:"omitempty,min=0"`
}

// CountOrDefault returns the unit count, defaulting to 1 when omitted.
func (r *AllocRequest) CountOrDefault() int {
	if r.Count == nil {
		return 1
	}
	return *r.Count
}

// CountOrDefault returns the declared demand, defaulting to 1 when omitted.
func (r *MaxDemandRequest) CountOrDefault() int {
	if r.Count == nil {
		return 1
	}
	return *r.Count
}

// RequestResponse is the response for POST /v1/deadlock/request.
type RequestResponse struct {
	// Granted is true if the allocation succeeded immediately. False means
	// the demand was recorded and the process is now waiting.
	Granted bool `json:"granted"`
}

// ReleaseResponse is the response for POST /v1/deadlock/release.
type ReleaseResponse struct {
	// Freed is the number of units actually released. May be less than the
	// requested count if the process held fewer units.
	Freed int `json:"freed"`
}

// DetectResponse is the response for GET /v1/deadlock/detect.
type DetectResponse struct {
	// HasDeadlock is true iff Cycles is non-empty.
	HasDeadlock bool `json:"has_deadlock"`

	// Cycles lists every wait-for cycle found, as ordered process ID
	// sequences (first element = the node where the cycle closes). The same
	// underlying cycle may appear more than once when multiple traversal
	// roots reach it; cycles are reported as found, not canonicalized.
	Cycles [][]string `json:"cycles"`
}

// SafetyRequest is the request body for POST /v1/deadlock/safety.
type SafetyRequest struct {
	// PID is the process hypothetically receiving the grant. Required.
	PID string `json:"pid" binding:"required" validate:"required,entity_id"`

	// RID is the resource hypothetically granted. Required.
	RID string `json:"rid" binding:"required" validate:"required,entity_id"`

	// Count is the hypothetical additional units. Default: 1.
	Count *int `json:"count" validate:"omitempty,min=0"`
}

// CountOrDefault returns the hypothetical grant size, defaulting to 1.
func (r *SafetyRequest) CountOrDefault() int {
	if r.Count == nil {
		return 1
	}
	return *r.Count
}

// SafetyResponse is the response for POST /v1/deadlock/safety.
type SafetyResponse struct {
	// Safe is true if a completion ordering exists after the hypothetical
	// grant. The grant itself is never committed.
	Safe bool `json:"safe"`

	// SafeSequence is one completion ordering proving safety. Empty when
	// the state would be unsafe.
	SafeSequence []string `json:"safe_sequence"`
}

// ResetResponse is the response for POST /v1/deadlock/reset.
type ResetResponse struct {
	OK bool `json:"ok"`
}

// HealthResponse is the response for GET /v1/deadlock/health.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

// ReadyResponse is the response for GET /v1/deadlock/ready.
type ReadyResponse struct {
	Ready     bool `json:"ready"`
	Resources int  `json:"resources"`
	Processes int  `json:"processes"`
}

// ErrorResponse is the standard error body for all endpoints.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// validateRequest runs struct-level validation (including entity_id rules)
// on a bound request. Returns a caller-friendly error on failure.
func validateRequest(req any) error {
	if err := deadlockValidate.Struct(req); err != nil {
		return fmt.Errorf("request validation failed: %w", err)
	}
	return nil
}
