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
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/AleutianAI/AleutianPlanner/services/planner/datatypes"
	"github.com/AleutianAI/AleutianPlanner/services/planner/observability"
	"github.com/AleutianAI/AleutianPlanner/services/planner/regen"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Plan stream actions sent to the client.
const (
	ActionSessionCreated = "session_created"
	ActionQueued         = "queued"
	ActionPlan           = "plan"
	ActionError          = "error"
)

const wsWriteTimeout = 10 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	ReadBufferSize:  64 * 1024,
	WriteBufferSize: 64 * 1024,
}

// PlanStreamRequest is one concept edit sent by the client.
type PlanStreamRequest struct {
	Concept *datatypes.AppConcept `json:"concept"`
}

// PlanStreamEvent is one message sent to the client.
type PlanStreamEvent struct {
	Action    string                      `json:"action"`
	SessionID string                      `json:"sessionId,omitempty"`
	Seq       uint64                      `json:"seq,omitempty"`
	Plan      *datatypes.DynamicPhasePlan `json:"plan,omitempty"`
	Error     string                      `json:"error,omitempty"`
}

// wsConn serializes writes; gorilla connections allow one concurrent writer.
type wsConn struct {
	mu sync.Mutex
	ws *websocket.Conn
}

func (c *wsConn) send(v PlanStreamEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.ws.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	err := c.ws.WriteJSON(v)
	if err != nil {
		slog.Warn("Failed to write WebSocket JSON", "error", err)
	}
	return err
}

// HandlePlanStream regenerates a plan live while a client edits its concept.
//
// # Description
//
// GET /v1/plans/ws. Each connection owns one regen.Regenerator. Every
// {"concept": ...} message triggers a debounced regeneration and is
// acknowledged with a "queued" event carrying its sequence number. Applied
// results are pushed as "plan" events and failures as "error" events. Stale
// results are never sent, so the client only sees plans for its latest
// edit.
//
// # Inputs
//
//   - generate: The plan generator, usually composer.Generator.Generate.
//   - debounce: Quiet period. Zero uses regen.DefaultDebounce.
//   - metrics: Optional.
func HandlePlanStream(generate regen.GenerateFunc, debounce time.Duration, metrics *observability.PlannerMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			slog.Error("failed to upgrade the websocket", "error", err)
			return
		}
		defer ws.Close()

		conn := &wsConn{ws: ws}
		sessionID := uuid.New().String()
		logger := slog.Default().With("sessionID", sessionID)
		logger.Info("Plan stream client connected")

		r := regen.New(generate, regen.Options{
			Debounce: debounce,
			Logger:   logger,
			Metrics:  metrics,
			OnResult: func(res regen.Result) {
				switch res.Outcome {
				case observability.RegenApplied:
					_ = conn.send(PlanStreamEvent{Action: ActionPlan, Seq: res.Seq, Plan: res.Plan})
				case observability.RegenError:
					_ = conn.send(PlanStreamEvent{Action: ActionError, Seq: res.Seq, Error: res.Err.Error()})
				}
			},
		})
		defer r.Close()

		if err := conn.send(PlanStreamEvent{Action: ActionSessionCreated, SessionID: sessionID}); err != nil {
			return
		}

		for {
			var req PlanStreamRequest
			if err := ws.ReadJSON(&req); err != nil {
				logger.Info("Plan stream client disconnected", "error", err.Error())
				return
			}
			if err := req.Concept.ValidateForPlanning(); err != nil {
				if conn.send(PlanStreamEvent{Action: ActionError, Error: err.Error()}) != nil {
					return
				}
				continue
			}
			seq := r.Trigger(req.Concept)
			if conn.send(PlanStreamEvent{Action: ActionQueued, Seq: seq}) != nil {
				return
			}
		}
	}
}
