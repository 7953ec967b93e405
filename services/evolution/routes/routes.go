// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package routes

import (
	"github.com/AleutianAI/AleutianEvolve/services/evolution/engine"
	"github.com/AleutianAI/AleutianEvolve/services/evolution/handlers"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SetupRoutes registers the evolution API on the router.
func SetupRoutes(router *gin.Engine, eng *engine.Engine) {
	router.GET("/health", handlers.HealthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/v1")
	{
		experiments := v1.Group("/experiments")
		{
			experiments.POST("", handlers.StartExperiment(eng))
			experiments.GET("/:experimentId", handlers.GetExperiment(eng))
			experiments.POST("/:experimentId/route", handlers.RouteCaller(eng))
			experiments.POST("/:experimentId/metrics", handlers.TrackMetric(eng))
			experiments.POST("/:experimentId/complete", handlers.CompleteExperiment(eng))
		}
	}
}
