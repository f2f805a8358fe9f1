// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package deadlock provides the deadlock prevention and detection service.
//
// The service models resource-allocation state among competing processes and
// exposes endpoints for:
//   - Registering resources and processes and declaring maximum demands
//   - Requesting and releasing resource units
//   - Deadlock detection via wait-for-graph cycle search
//   - Banker's-algorithm safety checks for hypothetical grants
package deadlock

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"github.com/ramcharansadu46-bit/deadlock-prevent/pkg/validation"
	"github.com/ramcharansadu46-bit/deadlock-prevent/services/deadlock/telemetry"
)

// tracerName identifies this package's spans.
const tracerName = "deadlock"

// ServiceConfig configures the deadlock service.
type ServiceConfig struct {
	// MaxResources is the maximum number of registered resources.
	// Default: 1024. Zero means unlimited.
	MaxResources int

	// MaxProcesses is the maximum number of registered processes.
	// Default: 1024. Zero means unlimited.
	MaxProcesses int

	// MaxUnits is the maximum count accepted for a single capacity,
	// request, release, or max-demand declaration. Keeps a single client
	// from driving the Banker's working sets into overflow territory.
	// Default: 1 << 30. Zero means unlimited.
	MaxUnits int
}

// DefaultServiceConfig returns sensible defaults.
func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		MaxResources: 1024,
		MaxProcesses: 1024,
		MaxUnits:     1 << 30,
	}
}

// Service is the deadlock toolkit service.
//
// It wraps the registry in validation, telemetry, and snapshot broadcast,
// and is the single entry point for transports. All methods are synchronous
// and complete or fail immediately; nothing blocks waiting on another actor.
//
// Thread Safety:
//
//	Service is safe for concurrent use. Multiple goroutines can call any
//	combination of methods simultaneously.
type Service struct {
	config   ServiceConfig
	registry *Registry
	metrics  *Metrics

	// detectGroup collapses concurrent identical detection runs into one
	// traversal; detection is read-only, so sharing the result is safe.
	detectGroup singleflight.Group

	// watch hub state lives in watch.go.
	hub watchHub
}

// NewService creates a new deadlock service.
func NewService(config ServiceConfig) *Service {
	registry := NewRegistry()
	registry.SetLimits(config.MaxResources, config.MaxProcesses)
	return &Service{
		config:   config,
		registry: registry,
	}
}

// WithMetrics sets the metrics instance for operational counters.
func (s *Service) WithMetrics(m *Metrics) *Service {
	s.metrics = m
	return s
}

// validateID sanitizes a user-supplied identifier.
func validateID(kind, id string) (string, error) {
	clean, err := validation.SanitizeID(id)
	if err != nil {
		return "", fmt.Errorf("%w: %s %q: %v", ErrInvalidID, kind, id, err)
	}
	return clean, nil
}

// validateCount rejects negative counts and counts above the configured cap.
func (s *Service) validateCount(count int) error {
	if count < 0 {
		return fmt.Errorf("%w: got %d", ErrInvalidCount, count)
	}
	if s.config.MaxUnits > 0 && count > s.config.MaxUnits {
		return fmt.Errorf("%w: %d exceeds limit %d", ErrInvalidCount, count, s.config.MaxUnits)
	}
	return nil
}

// AddResource registers a resource with the given capacity.
//
// Errors:
//
//	ErrInvalidID - rid fails identifier validation
//	ErrInvalidCount - total is negative or above the configured cap
//	ErrDuplicateEntity - rid is already registered
//	ErrRegistryFull - the resource limit was reached
func (s *Service) AddResource(ctx context.Context, rid string, total int) error {
	rid, err := validateID("resource", rid)
	if err != nil {
		return err
	}
	if err := s.validateCount(total); err != nil {
		return err
	}
	if err := s.registry.AddResource(rid, total); err != nil {
		return err
	}
	s.countEntity(ctx, "resource")
	s.broadcast()
	return nil
}

// AddProcess registers a process.
//
// Errors:
//
//	ErrInvalidID - pid fails identifier validation
//	ErrDuplicateEntity - pid is already registered
//	ErrRegistryFull - the process limit was reached
func (s *Service) AddProcess(ctx context.Context, pid string) error {
	pid, err := validateID("process", pid)
	if err != nil {
		return err
	}
	if err := s.registry.AddProcess(pid); err != nil {
		return err
	}
	s.countEntity(ctx, "process")
	s.broadcast()
	return nil
}

// SetMaxDemand declares the maximum demand of pid for rid, used only by
// the safety oracle.
//
// Errors:
//
//	ErrInvalidID - pid or rid fails identifier validation
//	ErrInvalidCount - count is negative or above the configured cap
//	ErrUnknownEntity - pid is not registered
func (s *Service) SetMaxDemand(ctx context.Context, pid, rid string, count int) error {
	pid, err := validateID("process", pid)
	if err != nil {
		return err
	}
	rid, err = validateID("resource", rid)
	if err != nil {
		return err
	}
	if err := s.validateCount(count); err != nil {
		return err
	}
	if err := s.registry.SetMaxDemand(pid, rid, count); err != nil {
		return err
	}
	s.broadcast()
	return nil
}

// Request attempts to allocate count units of rid to pid. A false result
// with nil error means the request was recorded as waiting.
func (s *Service) Request(ctx context.Context, pid, rid string, count int) (bool, error) {
	pid, err := validateID("process", pid)
	if err != nil {
		return false, err
	}
	rid, err = validateID("resource", rid)
	if err != nil {
		return false, err
	}
	if err := s.validateCount(count); err != nil {
		return false, err
	}

	granted, err := s.registry.Request(pid, rid, count)
	if err != nil {
		return false, err
	}
	if s.metrics != nil {
		outcome := "blocked"
		if granted {
			outcome = "granted"
		}
		s.metrics.RequestsTotal.Add(ctx, 1, metric.WithAttributes(
			attribute.String("outcome", outcome)))
	}
	s.broadcast()
	return granted, nil
}

// Release returns up to count units of rid held by pid. The result is the
// number of units actually freed.
func (s *Service) Release(ctx context.Context, pid, rid string, count int) (int, error) {
	pid, err := validateID("process", pid)
	if err != nil {
		return 0, err
	}
	rid, err = validateID("resource", rid)
	if err != nil {
		return 0, err
	}
	if err := s.validateCount(count); err != nil {
		return 0, err
	}

	freed, err := s.registry.Release(pid, rid, count)
	if err != nil {
		return 0, err
	}
	if s.metrics != nil {
		s.metrics.ReleasesTotal.Add(ctx, 1)
		s.metrics.UnitsFreed.Add(ctx, int64(freed))
	}
	s.broadcast()
	return freed, nil
}

// State returns a deep copy of the current allocation state.
func (s *Service) State(ctx context.Context) Snapshot {
	return s.registry.Snapshot()
}

// Counts returns the number of registered resources and processes.
func (s *Service) Counts() (resources, processes int) {
	return s.registry.Counts()
}

// DetectDeadlock derives the wait-for graph from the current state and
// reports every cycle. Concurrent callers share a single traversal.
func (s *Service) DetectDeadlock(ctx context.Context) DetectResponse {
	result, _, _ := s.detectGroup.Do("detect", func() (any, error) {
		ctx, span := telemetry.StartSpan(ctx, tracerName, "Service.DetectDeadlock")
		defer span.End()

		start := time.Now()
		resp := DetectDeadlock(s.registry.Snapshot())
		elapsed := time.Since(start).Seconds()

		span.SetAttributes(
			attribute.Bool("deadlock.detected", resp.HasDeadlock),
			attribute.Int("deadlock.cycles", len(resp.Cycles)),
		)
		if s.metrics != nil {
			outcome := "clear"
			if resp.HasDeadlock {
				outcome = "deadlocked"
			}
			s.metrics.DetectRunsTotal.Add(ctx, 1, metric.WithAttributes(
				attribute.String("outcome", outcome)))
			s.metrics.DetectDuration.Record(ctx, elapsed)
			s.metrics.CyclesFound.Add(ctx, int64(len(resp.Cycles)))
		}
		return resp, nil
	})
	return result.(DetectResponse)
}

// CheckSafety runs Banker's algorithm for a hypothetical grant of count
// units of rid to pid. Read-only: the grant is never committed.
//
// Errors:
//
//	ErrInvalidID - pid or rid fails identifier validation
//	ErrInvalidCount - count is negative or above the configured cap
//	ErrUnknownEntity - pid or rid is not registered
func (s *Service) CheckSafety(ctx context.Context, pid, rid string, count int) (SafetyResponse, error) {
	var zero SafetyResponse

	pid, err := validateID("process", pid)
	if err != nil {
		return zero, err
	}
	rid, err = validateID("resource", rid)
	if err != nil {
		return zero, err
	}
	if err := s.validateCount(count); err != nil {
		return zero, err
	}

	ctx, span := telemetry.StartSpan(ctx, tracerName, "Service.CheckSafety",
		trace.WithAttributes(
			attribute.String("deadlock.pid", pid),
			attribute.String("deadlock.rid", rid),
			attribute.Int("deadlock.count", count),
		))
	defer span.End()

	snap := s.registry.Snapshot()
	if _, known := snap.Processes[pid]; !known {
		err := fmt.Errorf("%w: process %q", ErrUnknownEntity, pid)
		telemetry.RecordError(span, err)
		return zero, err
	}
	if _, known := snap.Resources[rid]; !known {
		err := fmt.Errorf("%w: resource %q", ErrUnknownEntity, rid)
		telemetry.RecordError(span, err)
		return zero, err
	}

	start := time.Now()
	resp := CheckSafety(snap, pid, rid, count)
	elapsed := time.Since(start).Seconds()

	span.SetAttributes(attribute.Bool("deadlock.safe", resp.Safe))
	if s.metrics != nil {
		verdict := "unsafe"
		if resp.Safe {
			verdict = "safe"
		}
		s.metrics.SafetyChecksTotal.Add(ctx, 1, metric.WithAttributes(
			attribute.String("verdict", verdict)))
		s.metrics.SafetyCheckDuration.Record(ctx, elapsed)
	}
	return resp, nil
}

// Reset atomically replaces the registry with a fresh, empty one.
func (s *Service) Reset(ctx context.Context) {
	s.registry.Reset()
	if s.metrics != nil {
		s.metrics.ResetsTotal.Add(ctx, 1)
	}
	s.broadcast()
}

func (s *Service) countEntity(ctx context.Context, kind string) {
	if s.metrics == nil {
		return
	}
	s.metrics.EntitiesRegistered.Add(ctx, 1, metric.WithAttributes(
		attribute.String("kind", kind)))
}
