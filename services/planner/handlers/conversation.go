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
	"fmt"
	"net/http"

	"github.com/AleutianAI/AleutianPlanner/services/planner/conversation"
	"github.com/AleutianAI/AleutianPlanner/services/planner/datatypes"
	"github.com/AleutianAI/AleutianPlanner/services/planner/observability"
	"github.com/AleutianAI/AleutianPlanner/services/planner/phasecontext"
	"github.com/gin-gonic/gin"
)

// PhaseContextRequest is the body of POST /v1/context.
type PhaseContextRequest struct {
	Messages  []datatypes.ChatMessage `json:"messages" validate:"dive"`
	PhaseType string                  `json:"phaseType" validate:"required"`
}

// CompressRequest is the body of POST /v1/conversation/compress.
type CompressRequest struct {
	Messages []datatypes.ChatMessage `json:"messages" validate:"dive"`
	conversation.CompressOptions
}

// CompressResponse carries the compressed conversation and its rendering.
type CompressResponse struct {
	conversation.CompressedConversation
	NeedsCompression bool   `json:"needsCompression"`
	Context          string `json:"context"`
}

// HandlePhaseContext extracts the bounded context for one phase type.
func HandlePhaseContext(extractor *phasecontext.Extractor) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req PhaseContextRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
		if err := datatypes.Validator().Struct(req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		domain, ok := datatypes.ParseDomain(req.PhaseType)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("unknown phase type %q", req.PhaseType)})
			return
		}

		pc := extractor.Extract(c.Request.Context(), req.Messages, domain)
		c.JSON(http.StatusOK, pc)
	}
}

// HandleCompress compresses a conversation to a token budget.
//
// # Description
//
// Zero MaxTokens or PreserveLastN take the compressor defaults. The response
// includes the prompt-ready rendering so clients need not re-implement it.
func HandleCompress(metrics *observability.PlannerMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CompressRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
		if err := datatypes.Validator().Struct(req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		maxTokens := req.MaxTokens
		if maxTokens <= 0 {
			maxTokens = conversation.DefaultCompressMaxTokens
		}
		out := conversation.CompressConversation(req.Messages, req.CompressOptions)
		metrics.RecordCompression(out.Outcome())

		c.JSON(http.StatusOK, CompressResponse{
			CompressedConversation: out,
			NeedsCompression:       conversation.NeedsCompression(req.Messages, maxTokens),
			Context:                conversation.BuildCompressedContext(out),
		})
	}
}
