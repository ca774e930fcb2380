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
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/AleutianAI/AleutianPlanner/services/planner/composer"
	"github.com/AleutianAI/AleutianPlanner/services/planner/conversation"
	"github.com/AleutianAI/AleutianPlanner/services/planner/datatypes"
	"github.com/AleutianAI/AleutianPlanner/services/planner/execution"
	"github.com/AleutianAI/AleutianPlanner/services/planner/observability"
	"github.com/AleutianAI/AleutianPlanner/services/planner/phasecontext"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testServer struct {
	router  *gin.Engine
	gen     *composer.Generator
	store   *ExecutionStore
	metrics *observability.PlannerMetrics
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	metrics := observability.NewPlannerMetrics(prometheus.NewRegistry())
	gen, err := composer.NewGenerator(composer.Config{}, nil, metrics)
	require.NoError(t, err)
	extractor := phasecontext.New(phasecontext.Options{Metrics: metrics})
	store := NewExecutionStore(execution.Options{Extractor: extractor, Metrics: metrics}, StoreLimits{})

	router := gin.New()
	router.GET("/health", HealthCheck)
	router.POST("/v1/plans", HandleCreatePlan(gen))
	router.POST("/v1/context", HandlePhaseContext(extractor))
	router.POST("/v1/conversation/compress", HandleCompress(metrics))
	router.POST("/v1/executions", HandleCreateExecution(store))
	router.GET("/v1/executions/:id", HandleGetExecution(store))
	router.DELETE("/v1/executions/:id", HandleDeleteExecution(store))
	router.GET("/v1/executions/:id/phases/:number/context", HandleGetPhaseContext(store))
	router.POST("/v1/executions/:id/phases/:number/start", HandleStartPhase(store))
	router.POST("/v1/executions/:id/phases/:number/complete", HandleCompletePhase(store))
	router.POST("/v1/executions/:id/phases/:number/fail", HandleFailPhase(store))

	return &testServer{router: router, gen: gen, store: store, metrics: metrics}
}

func (s *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		require.NoError(t, json.NewEncoder(&buf).Encode(b))
	}
	req, err := http.NewRequest(method, path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func journalConcept() datatypes.AppConcept {
	return datatypes.AppConcept{
		Name: "Gratitude Journal",
		Features: []datatypes.Feature{
			{ID: "f1", Name: "Journal entries", Description: "Write a short entry every day", Priority: datatypes.PriorityHigh},
			{ID: "f2", Name: "Mood check-in", Description: "Pick a mood for the day", Priority: datatypes.PriorityMedium},
		},
	}
}

func journalChat() []datatypes.ChatMessage {
	return []datatypes.ChatMessage{
		{Role: datatypes.RoleUser, Content: "I want a gratitude journal app with a daily mood check-in."},
		{Role: datatypes.RoleAssistant, Content: "Great. Should entries be stored in a database table with a date column?"},
		{Role: datatypes.RoleUser, Content: "Yes, store each entry in the database with the date and the mood."},
		{Role: datatypes.RoleAssistant, Content: "Decided: we will use a SQLite database with an entries table."},
	}
}

func TestHealthCheck_ReturnsOK(t *testing.T) {
	s := newTestServer(t)
	w := s.do(t, http.MethodGet, "/health", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "application/json")
	assert.Equal(t, "ok", decode[map[string]string](t, w)["status"])
}

func TestCreatePlan_ReturnsValidPlan(t *testing.T) {
	s := newTestServer(t)
	w := s.do(t, http.MethodPost, "/v1/plans", journalConcept())
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	plan := decode[datatypes.DynamicPhasePlan](t, w)
	assert.Equal(t, "Gratitude Journal", plan.ConceptName)
	assert.GreaterOrEqual(t, plan.TotalPhases, 2)
	assert.Equal(t, datatypes.DomainSetup, plan.Phases[0].Domain)
	assert.NoError(t, plan.Validate())
	assert.Equal(t, 1.0, testutil.ToFloat64(s.metrics.PlansTotal.WithLabelValues("success")))
}

func TestCreatePlan_BadInput(t *testing.T) {
	s := newTestServer(t)

	noName := journalConcept()
	noName.Name = ""
	noFeatures := journalConcept()
	noFeatures.Features = nil

	tests := []struct {
		name string
		body any
	}{
		{"invalid json", "{not json"},
		{"missing name", noName},
		{"no features", noFeatures},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.do(t, http.MethodPost, "/v1/plans", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.NotEmpty(t, decode[map[string]string](t, w)["error"])
		})
	}
}

func TestPhaseContext_ReturnsBoundedContext(t *testing.T) {
	s := newTestServer(t)
	w := s.do(t, http.MethodPost, "/v1/context", PhaseContextRequest{
		Messages:  journalChat(),
		PhaseType: "database",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	pc := decode[datatypes.PhaseContext](t, w)
	assert.Equal(t, datatypes.DomainDatabase, pc.PhaseType)
	assert.NotEmpty(t, pc.RelevantSegments)
	assert.LessOrEqual(t, len([]rune(pc.ContextSummary)), phasecontext.MaxSummaryChars)
	assert.False(t, pc.SemanticUsed)
}

func TestPhaseContext_BadInput(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodPost, "/v1/context", PhaseContextRequest{Messages: journalChat(), PhaseType: "spaceship"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPost, "/v1/context", PhaseContextRequest{Messages: journalChat()})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPost, "/v1/context", PhaseContextRequest{
		Messages:  []datatypes.ChatMessage{{Role: "robot", Content: "hi"}},
		PhaseType: "database",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCompress_StaysUnderBudget(t *testing.T) {
	s := newTestServer(t)
	msgs := make([]datatypes.ChatMessage, 0, 60)
	for i := 0; i < 60; i++ {
		msgs = append(msgs, datatypes.ChatMessage{
			Role:    datatypes.RoleUser,
			Content: fmt.Sprintf("Message %d: %s", i, strings.Repeat("the recipe list needs filters ", 10)),
		})
	}

	req := CompressRequest{Messages: msgs}
	req.MaxTokens = 800
	w := s.do(t, http.MethodPost, "/v1/conversation/compress", req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	resp := decode[CompressResponse](t, w)
	assert.True(t, resp.NeedsCompression)
	assert.Less(t, resp.CompressedTokens, 800)
	assert.Equal(t, 60, resp.OriginalCount)
	assert.Positive(t, resp.SummarizedCount)
	assert.NotEmpty(t, resp.Context)
	assert.Equal(t, 1.0, testutil.ToFloat64(s.metrics.CompressionsTotal.WithLabelValues(conversation.OutcomeCompressed)))
}

func TestCompress_ShortConversationIsSkipped(t *testing.T) {
	s := newTestServer(t)
	w := s.do(t, http.MethodPost, "/v1/conversation/compress", CompressRequest{Messages: journalChat()})
	require.Equal(t, http.StatusOK, w.Code)

	resp := decode[CompressResponse](t, w)
	assert.False(t, resp.NeedsCompression)
	assert.Zero(t, resp.SummarizedCount)
	assert.Len(t, resp.RecentMessages, 4)
}
