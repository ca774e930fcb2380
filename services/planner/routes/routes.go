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
	"time"

	"github.com/AleutianAI/AleutianPlanner/services/planner/composer"
	"github.com/AleutianAI/AleutianPlanner/services/planner/handlers"
	"github.com/AleutianAI/AleutianPlanner/services/planner/observability"
	"github.com/AleutianAI/AleutianPlanner/services/planner/phasecontext"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Deps are the collaborators the planner routes are bound to.
type Deps struct {
	Generator *composer.Generator
	Extractor *phasecontext.Extractor
	Store     *handlers.ExecutionStore
	Metrics   *observability.PlannerMetrics

	// Gatherer backs /metrics. Nil uses the default registry.
	Gatherer prometheus.Gatherer

	// Debounce is the plan stream's regeneration quiet period.
	Debounce time.Duration
}

func SetupRoutes(router *gin.Engine, deps Deps) {
	router.GET("/health", handlers.HealthCheck)
	metricsHandler := promhttp.Handler()
	if deps.Gatherer != nil {
		metricsHandler = promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})
	}
	router.GET("/metrics", gin.WrapH(metricsHandler))

	// API version 1 group
	v1 := router.Group("/v1")
	{
		v1.POST("/plans", handlers.HandleCreatePlan(deps.Generator))
		v1.GET("/plans/ws", handlers.HandlePlanStream(deps.Generator.Generate, deps.Debounce, deps.Metrics))
		v1.POST("/context", handlers.HandlePhaseContext(deps.Extractor))
		v1.POST("/conversation/compress", handlers.HandleCompress(deps.Metrics))

		executions := v1.Group("/executions")
		{
			executions.POST("", handlers.HandleCreateExecution(deps.Store))
			executions.GET("/:id", handlers.HandleGetExecution(deps.Store))
			executions.DELETE("/:id", handlers.HandleDeleteExecution(deps.Store))

			phases := executions.Group("/:id/phases/:number")
			{
				phases.GET("/context", handlers.HandleGetPhaseContext(deps.Store))
				phases.POST("/start", handlers.HandleStartPhase(deps.Store))
				phases.POST("/complete", handlers.HandleCompletePhase(deps.Store))
				phases.POST("/fail", handlers.HandleFailPhase(deps.Store))
			}
		}
	}
}
