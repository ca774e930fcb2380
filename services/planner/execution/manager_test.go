// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package execution

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/AleutianAI/AleutianPlanner/services/planner/datatypes"
	"github.com/AleutianAI/AleutianPlanner/services/planner/observability"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// threePhasePlan is setup -> database -> feature.
func threePhasePlan() *datatypes.DynamicPhasePlan {
	return &datatypes.DynamicPhasePlan{
		ConceptName: "Recipe Box",
		TotalPhases: 3,
		Complexity:  datatypes.ComplexityFor(3),
		Phases: []datatypes.Phase{
			{Number: 1, Name: "Project Setup", Domain: datatypes.DomainSetup, Dependencies: []int{}},
			{
				Number: 2, Name: "Database", Domain: datatypes.DomainDatabase, Dependencies: []int{1},
				Features: []datatypes.Feature{{ID: "f1", Name: "Recipe database", Priority: datatypes.PriorityHigh, Domain: datatypes.DomainDatabase}},
			},
			{
				Number: 3, Name: "Features", Domain: datatypes.DomainFeature, Dependencies: []int{2},
				Description:  "Core recipe features.",
				TestCriteria: []string{"A recipe can be rated"},
				Features: []datatypes.Feature{{ID: "f2", Name: "Rate recipes", Description: "Give a recipe one to five stars",
					Priority: datatypes.PriorityMedium, Domain: datatypes.DomainFeature}},
			},
		},
	}
}

func chat() []datatypes.ChatMessage {
	return []datatypes.ChatMessage{
		{Role: datatypes.RoleUser, Content: "Users should be able to rate recipes with one to five stars."},
		{Role: datatypes.RoleAssistant, Content: "Got it, users can rate every recipe feature from the detail page."},
	}
}

func newManager(t *testing.T, opts Options) *Manager {
	t.Helper()
	m, err := NewManager(threePhasePlan(), chat(), opts)
	require.NoError(t, err)
	return m
}

func TestCanTransition(t *testing.T) {
	assert.True(t, CanTransition(StatePending, StateInProgress))
	assert.True(t, CanTransition(StateInProgress, StateComplete))
	assert.True(t, CanTransition(StateInProgress, StateFailed))
	assert.True(t, CanTransition(StateFailed, StateInProgress))

	assert.False(t, CanTransition(StatePending, StateComplete))
	assert.False(t, CanTransition(StateComplete, StateInProgress))
	assert.False(t, CanTransition(StateFailed, StateComplete))
	assert.True(t, StateComplete.IsTerminal())
	assert.False(t, StateFailed.IsTerminal())
}

func TestNewManager_RejectsInvalidPlan(t *testing.T) {
	plan := threePhasePlan()
	plan.Phases[1].Dependencies = []int{3}

	_, err := NewManager(plan, nil, Options{})
	assert.ErrorIs(t, err, datatypes.ErrInvalidPlan)

	_, err = NewManager(nil, nil, Options{})
	assert.ErrorIs(t, err, datatypes.ErrInvalidPlan)
}

func TestManager_HappyPath(t *testing.T) {
	m := newManager(t, Options{})

	for n := 1; n <= 3; n++ {
		next, ok := m.Next()
		require.True(t, ok)
		assert.Equal(t, n, next)

		require.NoError(t, m.Start(n))
		_, ok = m.Next()
		assert.False(t, ok, "phase %d blocks its dependents", n)
		require.NoError(t, m.Complete(n, PhaseOutput{Notes: "done"}))
	}

	assert.True(t, m.Done())
	_, ok := m.Next()
	assert.False(t, ok)
	for _, s := range m.Statuses() {
		assert.Equal(t, StateComplete, s.State)
		assert.Equal(t, 1, s.Attempts)
	}
}

func TestManager_DependenciesMustBeComplete(t *testing.T) {
	m := newManager(t, Options{})

	assert.ErrorIs(t, m.Start(2), ErrDependenciesIncomplete)

	require.NoError(t, m.Start(1))
	assert.ErrorIs(t, m.Start(2), ErrDependenciesIncomplete, "in-progress is not complete")

	require.NoError(t, m.Complete(1, PhaseOutput{}))
	assert.NoError(t, m.Start(2))
}

func TestManager_InvalidTransitions(t *testing.T) {
	m := newManager(t, Options{})

	assert.ErrorIs(t, m.Complete(1, PhaseOutput{}), ErrInvalidTransition)
	assert.ErrorIs(t, m.Fail(1, "x"), ErrInvalidTransition)
	assert.ErrorIs(t, m.Retry(1), ErrInvalidTransition)

	require.NoError(t, m.Start(1))
	assert.ErrorIs(t, m.Start(1), ErrInvalidTransition)
	require.NoError(t, m.Complete(1, PhaseOutput{}))
	assert.ErrorIs(t, m.Fail(1, "x"), ErrInvalidTransition)
	assert.ErrorIs(t, m.Start(1), ErrInvalidTransition)
}

func TestManager_PhaseNotFound(t *testing.T) {
	m := newManager(t, Options{})

	assert.ErrorIs(t, m.Start(0), ErrPhaseNotFound)
	assert.ErrorIs(t, m.Complete(4, PhaseOutput{}), ErrPhaseNotFound)
	_, err := m.Status(99)
	assert.ErrorIs(t, err, ErrPhaseNotFound)
	_, err = m.GetExecutionContext(context.Background(), 0)
	assert.ErrorIs(t, err, ErrPhaseNotFound)
}

func TestManager_FailAndRetry(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	m := newManager(t, Options{Now: func() time.Time { return now }})

	require.NoError(t, m.Start(1))
	require.NoError(t, m.Fail(1, "model timeout"))

	s, err := m.Status(1)
	require.NoError(t, err)
	assert.Equal(t, StateFailed, s.State)
	assert.Equal(t, "model timeout", s.LastError)
	assert.Equal(t, now, s.FinishedAt)

	require.NoError(t, m.Retry(1))
	require.NoError(t, m.Complete(1, PhaseOutput{}))

	s, err = m.Status(1)
	require.NoError(t, err)
	assert.Equal(t, StateComplete, s.State)
	assert.Equal(t, 2, s.Attempts)
	assert.Empty(t, s.LastError)
}

func TestManager_CompleteValidatesOutput(t *testing.T) {
	m := newManager(t, Options{})
	require.NoError(t, m.Start(1))

	assert.ErrorIs(t, m.Complete(1, PhaseOutput{Libraries: []string{""}}), ErrInvalidOutput)

	s, err := m.Status(1)
	require.NoError(t, err)
	assert.Equal(t, StateInProgress, s.State)
}

func TestManager_StatusIsACopy(t *testing.T) {
	m := newManager(t, Options{})
	require.NoError(t, m.Start(1))
	require.NoError(t, m.Complete(1, PhaseOutput{Libraries: []string{"React"}}))

	s, err := m.Status(1)
	require.NoError(t, err)
	s.Output.Libraries[0] = "Vue"

	again, err := m.Status(1)
	require.NoError(t, err)
	assert.Equal(t, []string{"React"}, again.Output.Libraries)
}

func TestGetExecutionContext_RollsUpPriorOutputs(t *testing.T) {
	m := newManager(t, Options{})

	require.NoError(t, m.Start(1))
	require.NoError(t, m.Complete(1, PhaseOutput{
		Libraries: []string{"React", "Prisma"},
		Files:     []string{"package.json", "src/main.tsx"},
		Notes:     "Vite scaffold",
	}))
	require.NoError(t, m.Start(2))
	require.NoError(t, m.Complete(2, PhaseOutput{
		Libraries: []string{"prisma", "Zod"},
		Files:     []string{"prisma/schema.prisma", "package.json"},
	}))

	ec, err := m.GetExecutionContext(context.Background(), 3)
	require.NoError(t, err)

	assert.Equal(t, "Recipe Box", ec.ConceptName)
	assert.Equal(t, 3, ec.Phase.Number)
	require.Len(t, ec.PriorPhases, 2)
	assert.Equal(t, []string{"React", "Prisma", "Zod"}, ec.Libraries)
	assert.Equal(t, []string{"package.json", "src/main.tsx", "prisma/schema.prisma"}, ec.Files)
	require.NotNil(t, ec.PhaseContext)
	assert.Equal(t, datatypes.DomainFeature, ec.PhaseContext.PhaseType)

	prompt := ec.Prompt()
	assert.Contains(t, prompt, "# Recipe Box: Phase 3 of 3: Features")
	assert.Contains(t, prompt, "- Rate recipes (medium): Give a recipe one to five stars")
	assert.Contains(t, prompt, "- A recipe can be rated")
	assert.Contains(t, prompt, "- Phase 1, Project Setup: Vite scaffold")
	assert.Contains(t, prompt, "Libraries in use: React, Prisma, Zod")
	assert.Contains(t, prompt, "- prisma/schema.prisma")
	assert.Contains(t, prompt, "## Conversation Context")
}

func TestGetExecutionContext_FirstPhaseHasNoPriorWork(t *testing.T) {
	m := newManager(t, Options{})

	ec, err := m.GetExecutionContext(context.Background(), 1)
	require.NoError(t, err)
	assert.Empty(t, ec.PriorPhases)
	assert.NotNil(t, ec.Libraries)
	assert.NotContains(t, ec.Prompt(), "## Completed Phases")
}

func TestGetExecutionContext_RetryGetsIdenticalContext(t *testing.T) {
	m := newManager(t, Options{})
	require.NoError(t, m.Start(1))
	require.NoError(t, m.Complete(1, PhaseOutput{Libraries: []string{"React"}}))
	require.NoError(t, m.Start(2))

	first, err := m.GetExecutionContext(context.Background(), 2)
	require.NoError(t, err)
	require.NoError(t, m.Fail(2, "syntax error"))
	require.NoError(t, m.Retry(2))
	second, err := m.GetExecutionContext(context.Background(), 2)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, first.Prompt(), second.Prompt())
}

func TestManager_RecordsTransitions(t *testing.T) {
	metrics := observability.NewPlannerMetrics(prometheus.NewRegistry())
	m := newManager(t, Options{Metrics: metrics})

	require.NoError(t, m.Start(1))
	require.NoError(t, m.Fail(1, "x"))
	require.NoError(t, m.Retry(1))
	require.NoError(t, m.Complete(1, PhaseOutput{}))

	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.PhaseTransitionsTotal.WithLabelValues("in-progress")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.PhaseTransitionsTotal.WithLabelValues("failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.PhaseTransitionsTotal.WithLabelValues("complete")))
}

func TestManager_ConcurrentUse(t *testing.T) {
	m := newManager(t, Options{})
	require.NoError(t, m.Start(1))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = m.Statuses()
			_, _ = m.GetExecutionContext(context.Background(), 3)
			_, _ = m.Next()
		}()
	}
	require.NoError(t, m.Complete(1, PhaseOutput{Libraries: []string{"React"}}))
	wg.Wait()

	s, err := m.Status(1)
	require.NoError(t, err)
	assert.Equal(t, StateComplete, s.State)
}
