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
	"github.com/gin-gonic/gin"
)

// RegisterRoutes registers all deadlock routes with the router.
//
// Description:
//
//	Registers all /v1/deadlock/* endpoints with the given Gin router
//	group. The group should already have any required middleware applied.
//
// Endpoints:
//
//	GET  /v1/deadlock/state - Full allocation state snapshot
//	POST /v1/deadlock/resources - Register a resource
//	POST /v1/deadlock/processes - Register a process
//	POST /v1/deadlock/maxdemand - Declare a process's maximum demand
//	POST /v1/deadlock/request - Request resource units
//	POST /v1/deadlock/release - Release resource units
//	GET  /v1/deadlock/detect - Wait-for-graph deadlock detection
//	POST /v1/deadlock/safety - Banker's safety check for a hypothetical grant
//	POST /v1/deadlock/reset - Reset the registry
//	GET  /v1/deadlock/watch - Websocket state feed for visualizers
//
// Health Endpoints:
//
//	GET  /v1/deadlock/health - Health check
//	GET  /v1/deadlock/ready - Readiness check
//
// Example:
//
//	service := deadlock.NewService(deadlock.DefaultServiceConfig())
//	handlers := deadlock.NewHandlers(service)
//
//	v1 := router.Group("/v1")
//	deadlock.RegisterRoutes(v1, handlers)
func RegisterRoutes(rg *gin.RouterGroup, handlers *Handlers) {
	dl := rg.Group("/deadlock")
	{
		// State
		dl.GET("/state", handlers.HandleState)
		dl.GET("/watch", handlers.HandleWatch)

		// Entity registration
		dl.POST("/resources", handlers.HandleAddResource)
		dl.POST("/processes", handlers.HandleAddProcess)
		dl.POST("/maxdemand", handlers.HandleMaxDemand)

		// Allocation
		dl.POST("/request", handlers.HandleRequest)
		dl.POST("/release", handlers.HandleRelease)

		// Analysis
		dl.GET("/detect", handlers.HandleDetect)
		dl.POST("/safety", handlers.HandleSafety)

		// Lifecycle
		dl.POST("/reset", handlers.HandleReset)

		// Health checks
		dl.GET("/health", handlers.HandleHealth)
		dl.GET("/ready", handlers.HandleReady)
	}
}
