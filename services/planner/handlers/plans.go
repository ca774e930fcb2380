// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package handlers

import (
	"net/http"

	"github.com/AleutianAI/AleutianPlanner/services/planner/composer"
	"github.com/AleutianAI/AleutianPlanner/services/planner/datatypes"
	"github.com/gin-gonic/gin"
)

// HandleCreatePlan generates a phase plan from an AppConcept body.
//
// # Description
//
// POST /v1/plans. The body is the concept itself. A malformed concept is a
// 400; any other generation error is a planner defect and a 500.
func HandleCreatePlan(gen *composer.Generator) gin.HandlerFunc {
	return func(c *gin.Context) {
		var concept datatypes.AppConcept
		if err := c.ShouldBindJSON(&concept); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}

		plan, err := gen.Generate(c.Request.Context(), &concept)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, plan)
	}
}
