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
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/AleutianAI/AleutianPlanner/services/planner/datatypes"
	"github.com/AleutianAI/AleutianPlanner/services/planner/execution"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ErrExecutionNotFound is returned for an unknown execution id.
var ErrExecutionNotFound = errors.New("execution not found")

// Session bounds applied when StoreLimits leaves a field zero.
const (
	DefaultMaxExecutions = 256
	DefaultExecutionTTL  = 30 * time.Minute
)

// StoreLimits bounds an ExecutionStore. Zero fields take defaults.
type StoreLimits struct {
	// MaxSessions caps live sessions. Creating one more evicts a finished
	// session first, else the least recently used one.
	MaxSessions int

	// IdleTTL drops sessions not read or written for this long.
	IdleTTL time.Duration

	// Now is the clock. Nil uses time.Now.
	Now func() time.Time
}

func (l StoreLimits) withDefaults() StoreLimits {
	if l.MaxSessions <= 0 {
		l.MaxSessions = DefaultMaxExecutions
	}
	if l.IdleTTL <= 0 {
		l.IdleTTL = DefaultExecutionTTL
	}
	if l.Now == nil {
		l.Now = time.Now
	}
	return l
}

type session struct {
	m        *execution.Manager
	lastUsed time.Time
}

// ExecutionStore keeps execution sessions in memory, keyed by a random id.
//
// # Description
//
// Plans are never persisted; a restart drops every session. Each session
// holds a copy of its conversation, so the store is bounded: idle sessions
// expire after IdleTTL and at most MaxSessions are kept. Clients release a
// session early with Delete.
//
// # Thread Safety
//
// Safe for concurrent use. Each Manager guards its own state.
type ExecutionStore struct {
	mu       sync.Mutex
	sessions map[string]*session
	opts     execution.Options
	limits   StoreLimits
}

// NewExecutionStore creates an empty store. opts is passed to every Manager.
func NewExecutionStore(opts execution.Options, limits StoreLimits) *ExecutionStore {
	return &ExecutionStore{
		sessions: make(map[string]*session),
		opts:     opts,
		limits:   limits.withDefaults(),
	}
}

// Create starts a session for plan and its conversation snapshot.
func (s *ExecutionStore) Create(plan *datatypes.DynamicPhasePlan, messages []datatypes.ChatMessage) (string, *execution.Manager, error) {
	m, err := execution.NewManager(plan, messages, s.opts)
	if err != nil {
		return "", nil, err
	}
	id := uuid.New().String()

	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.limits.Now()
	s.expireLocked(now)
	for len(s.sessions) >= s.limits.MaxSessions {
		s.evictLocked()
	}
	s.sessions[id] = &session{m: m, lastUsed: now}
	return id, m, nil
}

// Get returns the session with the given id and marks it used.
func (s *ExecutionStore) Get(id string) (*execution.Manager, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.limits.Now()
	sess, ok := s.sessions[id]
	if ok && now.Sub(sess.lastUsed) > s.limits.IdleTTL {
		delete(s.sessions, id)
		ok = false
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrExecutionNotFound, id)
	}
	sess.lastUsed = now
	return sess.m, nil
}

// Delete drops the session with the given id.
func (s *ExecutionStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[id]; !ok {
		return fmt.Errorf("%w: %s", ErrExecutionNotFound, id)
	}
	delete(s.sessions, id)
	return nil
}

// Len returns the number of live sessions.
func (s *ExecutionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expireLocked(s.limits.Now())
	return len(s.sessions)
}

func (s *ExecutionStore) expireLocked(now time.Time) {
	for id, sess := range s.sessions {
		if now.Sub(sess.lastUsed) > s.limits.IdleTTL {
			delete(s.sessions, id)
			slog.Info("Execution session expired", "id", id)
		}
	}
}

// evictLocked removes the oldest finished session, or the least recently
// used one when none is finished.
func (s *ExecutionStore) evictLocked() {
	var victim string
	var victimDone bool
	var victimUsed time.Time
	for id, sess := range s.sessions {
		done := sess.m.Done()
		better := victim == "" ||
			(done && !victimDone) ||
			(done == victimDone && sess.lastUsed.Before(victimUsed))
		if better {
			victim, victimDone, victimUsed = id, done, sess.lastUsed
		}
	}
	if victim == "" {
		return
	}
	delete(s.sessions, victim)
	slog.Info("Execution session evicted", "id", victim, "done", victimDone)
}

// CreateExecutionRequest is the body of POST /v1/executions.
type CreateExecutionRequest struct {
	Plan     *datatypes.DynamicPhasePlan `json:"plan" validate:"required"`
	Messages []datatypes.ChatMessage     `json:"messages" validate:"dive"`
}

// FailPhaseRequest is the body of POST .../phases/:number/fail.
type FailPhaseRequest struct {
	Reason string `json:"reason" validate:"required"`
}

// ExecutionView is the JSON form of an execution session.
type ExecutionView struct {
	ID     string                      `json:"id"`
	Plan   *datatypes.DynamicPhasePlan `json:"plan"`
	Phases []execution.PhaseStatus     `json:"phases"`
	Done   bool                        `json:"done"`

	// Next is the lowest phase that can start now, if any.
	Next *int `json:"next,omitempty"`
}

// PhaseContextView pairs an execution context with its rendered prompt.
type PhaseContextView struct {
	Context *execution.ExecutionContext `json:"context"`
	Prompt  string                      `json:"prompt"`
}

func viewOf(id string, m *execution.Manager) ExecutionView {
	v := ExecutionView{
		ID:     id,
		Plan:   m.Plan(),
		Phases: m.Statuses(),
		Done:   m.Done(),
	}
	if n, ok := m.Next(); ok {
		v.Next = &n
	}
	return v
}

// HandleCreateExecution starts an execution session for a plan.
func HandleCreateExecution(store *ExecutionStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CreateExecutionRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
		if err := datatypes.Validator().Struct(req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		id, m, err := store.Create(req.Plan, req.Messages)
		if err != nil {
			// A client-supplied plan that breaks an invariant is bad input.
			if errors.Is(err, datatypes.ErrInvalidPlan) {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			respondError(c, err)
			return
		}
		slog.Info("Execution session created", "id", id, "phases", req.Plan.TotalPhases)
		c.JSON(http.StatusCreated, viewOf(id, m))
	}
}

// HandleGetExecution returns the state of one session.
func HandleGetExecution(store *ExecutionStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		m, err := store.Get(id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, viewOf(id, m))
	}
}

// HandleDeleteExecution releases a session.
func HandleDeleteExecution(store *ExecutionStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := store.Delete(c.Param("id")); err != nil {
			respondError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

// HandleGetPhaseContext returns the execution context of one phase.
func HandleGetPhaseContext(store *ExecutionStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		m, n, ok := sessionPhase(c, store)
		if !ok {
			return
		}
		ec, err := m.GetExecutionContext(c.Request.Context(), n)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, PhaseContextView{Context: ec, Prompt: ec.Prompt()})
	}
}

// HandleStartPhase moves a phase to in-progress. A failed phase is retried.
func HandleStartPhase(store *ExecutionStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		m, n, ok := sessionPhase(c, store)
		if !ok {
			return
		}
		if err := m.Start(n); err != nil {
			respondError(c, err)
			return
		}
		respondStatus(c, m, n)
	}
}

// HandleCompletePhase records a phase's output and marks it complete.
func HandleCompletePhase(store *ExecutionStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		m, n, ok := sessionPhase(c, store)
		if !ok {
			return
		}
		var out execution.PhaseOutput
		if err := c.ShouldBindJSON(&out); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
		if err := m.Complete(n, out); err != nil {
			respondError(c, err)
			return
		}
		respondStatus(c, m, n)
	}
}

// HandleFailPhase marks a phase failed with a reason.
func HandleFailPhase(store *ExecutionStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		m, n, ok := sessionPhase(c, store)
		if !ok {
			return
		}
		var req FailPhaseRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
		if err := datatypes.Validator().Struct(req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if err := m.Fail(n, req.Reason); err != nil {
			respondError(c, err)
			return
		}
		respondStatus(c, m, n)
	}
}

// sessionPhase resolves :id and :number. On failure it has already written
// the response.
func sessionPhase(c *gin.Context, store *ExecutionStore) (*execution.Manager, int, bool) {
	m, err := store.Get(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return nil, 0, false
	}
	n, err := strconv.Atoi(c.Param("number"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "phase number must be an integer"})
		return nil, 0, false
	}
	return m, n, true
}

func respondStatus(c *gin.Context, m *execution.Manager, n int) {
	s, err := m.Status(n)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, s)
}
