// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command deadlockd starts the deadlock prevention API server.
//
// The server tracks resource allocation for a set of registered processes
// and resources, detects circular waits in the wait-for graph, and answers
// Banker's-algorithm safety queries for hypothetical grants.
//
// Usage:
//
//	go run ./cmd/deadlockd
//	go run ./cmd/deadlockd -port 9090
//
// Example requests:
//
//	# Health check
//	curl http://localhost:8080/v1/deadlock/health
//
//	# Register a resource pool with 2 units
//	curl -X POST http://localhost:8080/v1/deadlock/resources \
//	  -H "Content-Type: application/json" \
//	  -d '{"rid": "r1", "total": 2}'
//
//	# Register a process
//	curl -X POST http://localhost:8080/v1/deadlock/processes \
//	  -H "Content-Type: application/json" \
//	  -d '{"pid": "p1"}'
//
//	# Request one unit of r1 for p1
//	curl -X POST http://localhost:8080/v1/deadlock/request \
//	  -H "Content-Type: application/json" \
//	  -d '{"pid": "p1", "rid": "r1", "count": 1}'
//
//	# Run deadlock detection
//	curl http://localhost:8080/v1/deadlock/detect | jq
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"

	"github.com/ramcharansadu46-bit/deadlock-prevent/pkg/logging"
	"github.com/ramcharansadu46-bit/deadlock-prevent/services/deadlock"
	"github.com/ramcharansadu46-bit/deadlock-prevent/services/deadlock/telemetry"
)

func main() {
	port := flag.Int("port", 8080, "Port to listen on")
	debug := flag.Bool("debug", false, "Enable debug mode")
	logLevel := flag.String("log-level", "info", "Log level: debug, info, warn, error")
	logJSON := flag.Bool("log-json", false, "Emit JSON logs on stderr")
	logDir := flag.String("log-dir", "", "Also write JSON logs to this directory")
	maxResources := flag.Int("max-resources", 0, "Maximum registered resources (0 = default)")
	maxProcesses := flag.Int("max-processes", 0, "Maximum registered processes (0 = default)")
	flag.Parse()

	closeLogs, err := logging.Setup(logging.Config{
		Level:   *logLevel,
		JSON:    *logJSON,
		LogDir:  *logDir,
		Service: "deadlockd",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to configure logging: %v\n", err)
		os.Exit(1)
	}
	defer closeLogs()

	// Set Gin mode
	if *debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx := context.Background()

	// Initialize telemetry (prometheus metrics by default, traces opt-in
	// via OTEL_TRACES_EXPORTER)
	shutdownTelemetry, err := telemetry.Init(ctx, telemetry.DefaultConfig())
	if err != nil {
		slog.Error("Failed to initialize telemetry", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Create service with default config
	cfg := deadlock.DefaultServiceConfig()
	if *maxResources > 0 {
		cfg.MaxResources = *maxResources
	}
	if *maxProcesses > 0 {
		cfg.MaxProcesses = *maxProcesses
	}
	svc := deadlock.NewService(cfg)

	meter := otel.Meter("deadlock")
	metrics, err := deadlock.NewMetrics(meter)
	if err != nil {
		slog.Error("Failed to create metrics", slog.String("error", err.Error()))
		os.Exit(1)
	}
	svc = svc.WithMetrics(metrics)

	// Create handlers
	handlers := deadlock.NewHandlers(svc)

	// Setup router
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware("deadlockd"))
	if *debug {
		router.Use(gin.Logger())
	}

	// Register routes under /v1/deadlock
	v1 := router.Group("/v1")
	deadlock.RegisterRoutes(v1, handlers)
	if mh := telemetry.MetricsHandler(); mh != nil {
		router.GET("/metrics", gin.WrapH(mh))
	}

	printBanner(*port)

	// Handle graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", *port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-quit
		slog.Info("Shutting down deadlock server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Warn("Server shutdown error", slog.String("error", err.Error()))
		}
		if err := shutdownTelemetry(shutdownCtx); err != nil {
			slog.Warn("Telemetry shutdown error", slog.String("error", err.Error()))
		}
	}()

	// Start server
	slog.Info("Starting deadlock server", slog.String("address", server.Addr))
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("Failed to start server", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func printBanner(port int) {
	banner := `
╔═══════════════════════════════════════════════════════════════════╗
║                     DEADLOCK PREVENTION SERVER                    ║
╠═══════════════════════════════════════════════════════════════════╣
║                                                                   ║
║  Allocation tracking, wait-for graph cycle detection, and         ║
║  Banker's-algorithm safety checks over a REST API.                ║
║                                                                   ║
║  Quick Start:                                                     ║
║  ┌─────────────────────────────────────────────────────────────┐  ║
║  │ # Health check                                              │  ║
║  │ curl http://localhost:%d/v1/deadlock/health               │  ║
║  │                                                             │  ║
║  │ # Register a resource pool                                  │  ║
║  │ curl -X POST http://localhost:%d/v1/deadlock/resources \  │  ║
║  │   -H "Content-Type: application/json" \                     │  ║
║  │   -d '{"rid": "r1", "total": 2}'                            │  ║
║  │                                                             │  ║
║  │ # Run deadlock detection                                    │  ║
║  │ curl http://localhost:%d/v1/deadlock/detect | jq          │  ║
║  └─────────────────────────────────────────────────────────────┘  ║
║                                                                   ║
╚═══════════════════════════════════════════════════════════════════╝
`
	fmt.Printf(banner, port, port, port)
}
