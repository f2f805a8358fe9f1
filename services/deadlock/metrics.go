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

	"go.opentelemetry.io/otel/metric"
)

// Metrics contains pre-defined metrics for the deadlock service.
// All metrics use the "deadlock_" prefix.
//
// Thread Safety: Safe for concurrent use after creation.
type Metrics struct {
	// RequestsTotal counts allocation requests, by outcome (granted/blocked).
	RequestsTotal metric.Int64Counter

	// ReleasesTotal counts release operations.
	ReleasesTotal metric.Int64Counter

	// UnitsFreed counts resource units returned by releases.
	UnitsFreed metric.Int64Counter

	// DetectRunsTotal counts deadlock detection runs, by outcome.
	DetectRunsTotal metric.Int64Counter

	// DetectDuration records detection duration in seconds.
	DetectDuration metric.Float64Histogram

	// CyclesFound counts wait-for cycles reported by detection runs.
	CyclesFound metric.Int64Counter

	// SafetyChecksTotal counts Banker's safety checks, by verdict.
	SafetyChecksTotal metric.Int64Counter

	// SafetyCheckDuration records safety check duration in seconds.
	SafetyCheckDuration metric.Float64Histogram

	// EntitiesRegistered counts registered entities, by kind.
	EntitiesRegistered metric.Int64Counter

	// ResetsTotal counts registry resets.
	ResetsTotal metric.Int64Counter
}

// NewMetrics creates a Metrics instance with all instruments registered on
// the given meter. Returns an error if any registration fails.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}
	var err error

	m.RequestsTotal, err = meter.Int64Counter(
		"deadlock_requests_total",
		metric.WithDescription("Total allocation requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create requests_total: %w", err)
	}

	m.ReleasesTotal, err = meter.Int64Counter(
		"deadlock_releases_total",
		metric.WithDescription("Total release operations"),
		metric.WithUnit("{release}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create releases_total: %w", err)
	}

	m.UnitsFreed, err = meter.Int64Counter(
		"deadlock_units_freed_total",
		metric.WithDescription("Total resource units returned by releases"),
		metric.WithUnit("{unit}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create units_freed_total: %w", err)
	}

	m.DetectRunsTotal, err = meter.Int64Counter(
		"deadlock_detect_runs_total",
		metric.WithDescription("Total deadlock detection runs"),
		metric.WithUnit("{run}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create detect_runs_total: %w", err)
	}

	m.DetectDuration, err = meter.Float64Histogram(
		"deadlock_detect_duration_seconds",
		metric.WithDescription("Deadlock detection duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1),
	)
	if err != nil {
		return nil, fmt.Errorf("create detect_duration: %w", err)
	}

	m.CyclesFound, err = meter.Int64Counter(
		"deadlock_cycles_found_total",
		metric.WithDescription("Total wait-for cycles reported"),
		metric.WithUnit("{cycle}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create cycles_found_total: %w", err)
	}

	m.SafetyChecksTotal, err = meter.Int64Counter(
		"deadlock_safety_checks_total",
		metric.WithDescription("Total Banker's safety checks"),
		metric.WithUnit("{check}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create safety_checks_total: %w", err)
	}

	m.SafetyCheckDuration, err = meter.Float64Histogram(
		"deadlock_safety_check_duration_seconds",
		metric.WithDescription("Banker's safety check duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1),
	)
	if err != nil {
		return nil, fmt.Errorf("create safety_check_duration: %w", err)
	}

	m.EntitiesRegistered, err = meter.Int64Counter(
		"deadlock_entities_registered_total",
		metric.WithDescription("Total entities registered"),
		metric.WithUnit("{entity}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create entities_registered_total: %w", err)
	}

	m.ResetsTotal, err = meter.Int64Counter(
		"deadlock_resets_total",
		metric.WithDescription("Total registry resets"),
		metric.WithUnit("{reset}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create resets_total: %w", err)
	}

	return m, nil
}
