// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package telemetry provides OpenTelemetry setup and helpers for the
// deadlock service.
//
// Call Init once at startup to configure the global TracerProvider and
// MeterProvider; after that, spans are created with StartSpan and metrics
// through otel.Meter(). The Prometheus exporter registers with the default
// prometheus registry, and MetricsHandler exposes the scrape endpoint.
package telemetry
