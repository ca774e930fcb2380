// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package regen

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/AleutianAI/AleutianPlanner/services/planner/datatypes"
	"github.com/AleutianAI/AleutianPlanner/services/planner/observability"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testDebounce = 20 * time.Millisecond

func concept(name string) *datatypes.AppConcept {
	return &datatypes.AppConcept{
		Name:     name,
		Features: []datatypes.Feature{{ID: "f1", Name: "Gratitude journal"}},
	}
}

// fakePlan names the plan after the concept so tests can tell snapshots apart.
func fakePlan(c *datatypes.AppConcept) *datatypes.DynamicPhasePlan {
	return &datatypes.DynamicPhasePlan{
		ConceptName: c.Name,
		TotalPhases: 1,
		Phases:      []datatypes.Phase{{Number: 1, Name: "Project Setup", Domain: datatypes.DomainSetup}},
		Complexity:  datatypes.ComplexitySimple,
	}
}

func collect(results chan Result) func(Result) {
	return func(r Result) { results <- r }
}

func waitResult(t *testing.T, results chan Result) Result {
	t.Helper()
	select {
	case r := <-results:
		return r
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for regeneration")
		return Result{}
	}
}

func TestRegenerator_DebouncesBursts(t *testing.T) {
	var calls atomic.Int32
	var seen atomic.Value
	results := make(chan Result, 8)
	r := New(func(_ context.Context, c *datatypes.AppConcept) (*datatypes.DynamicPhasePlan, error) {
		calls.Add(1)
		seen.Store(c.Name)
		return fakePlan(c), nil
	}, Options{Debounce: testDebounce, OnResult: collect(results)})
	defer r.Close()

	for _, name := range []string{"a", "b", "c", "d", "e"} {
		r.Trigger(concept(name))
	}

	res := waitResult(t, results)
	assert.Equal(t, observability.RegenApplied, res.Outcome)
	assert.Equal(t, uint64(5), res.Seq)
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, "e", seen.Load())

	plan, seq := r.Plan()
	require.NotNil(t, plan)
	assert.Equal(t, "e", plan.ConceptName)
	assert.Equal(t, uint64(5), seq)
	assert.NoError(t, r.Err())
}

func TestRegenerator_QueuesWhileInFlightAndDiscardsStale(t *testing.T) {
	started := make(chan struct{}, 4)
	release := make(chan struct{})
	var calls atomic.Int32
	var firstCtx context.Context
	var mu sync.Mutex

	results := make(chan Result, 8)
	r := New(func(ctx context.Context, c *datatypes.AppConcept) (*datatypes.DynamicPhasePlan, error) {
		if calls.Add(1) == 1 {
			mu.Lock()
			firstCtx = ctx
			mu.Unlock()
			started <- struct{}{}
			<-release
		}
		return fakePlan(c), nil
	}, Options{Debounce: testDebounce, OnResult: collect(results)})
	defer r.Close()

	r.Trigger(concept("old"))
	<-started

	r.Trigger(concept("new"))
	time.Sleep(5 * testDebounce)
	assert.Equal(t, int32(1), calls.Load(), "queued trigger waits for the in-flight run")

	mu.Lock()
	assert.NoError(t, firstCtx.Err(), "in-flight run is not cancelled")
	mu.Unlock()
	close(release)

	stale := waitResult(t, results)
	assert.Equal(t, observability.RegenStale, stale.Outcome)
	assert.Equal(t, uint64(1), stale.Seq)

	applied := waitResult(t, results)
	assert.Equal(t, observability.RegenApplied, applied.Outcome)
	assert.Equal(t, uint64(2), applied.Seq)

	plan, _ := r.Plan()
	require.NotNil(t, plan)
	assert.Equal(t, "new", plan.ConceptName)
}

func TestRegenerator_ErrorKeepsPreviousPlan(t *testing.T) {
	boom := errors.New("boom")
	metrics := observability.NewPlannerMetrics(prometheus.NewRegistry())
	results := make(chan Result, 8)
	r := New(func(_ context.Context, c *datatypes.AppConcept) (*datatypes.DynamicPhasePlan, error) {
		if c.Name == "bad" {
			return nil, boom
		}
		return fakePlan(c), nil
	}, Options{Debounce: testDebounce, Metrics: metrics, OnResult: collect(results)})
	defer r.Close()

	r.Trigger(concept("good"))
	require.Equal(t, observability.RegenApplied, waitResult(t, results).Outcome)

	r.Trigger(concept("bad"))
	res := waitResult(t, results)
	assert.Equal(t, observability.RegenError, res.Outcome)
	assert.ErrorIs(t, r.Err(), boom)

	plan, seq := r.Plan()
	require.NotNil(t, plan)
	assert.Equal(t, "good", plan.ConceptName)
	assert.Equal(t, uint64(1), seq)

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.RegenerationsTotal.WithLabelValues("applied")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.RegenerationsTotal.WithLabelValues("error")))
}

func TestRegenerator_SnapshotIsIsolated(t *testing.T) {
	results := make(chan Result, 8)
	r := New(func(_ context.Context, c *datatypes.AppConcept) (*datatypes.DynamicPhasePlan, error) {
		return fakePlan(c), nil
	}, Options{Debounce: testDebounce, OnResult: collect(results)})
	defer r.Close()

	c := concept("original")
	r.Trigger(c)
	c.Name = "mutated"

	res := waitResult(t, results)
	assert.Equal(t, "original", res.Plan.ConceptName)
}

func TestRegenerator_CloseStopsTriggers(t *testing.T) {
	r := New(func(_ context.Context, c *datatypes.AppConcept) (*datatypes.DynamicPhasePlan, error) {
		return fakePlan(c), nil
	}, Options{Debounce: testDebounce})

	r.Close()
	r.Close()
	assert.Zero(t, r.Trigger(concept("late")))
	plan, _ := r.Plan()
	assert.Nil(t, plan)
}

type recordingTrigger struct {
	concepts chan *datatypes.AppConcept
	seq      atomic.Uint64
}

func (r *recordingTrigger) Trigger(c *datatypes.AppConcept) uint64 {
	r.concepts <- c
	return r.seq.Add(1)
}

func TestConceptWatcher_ReloadsOnChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "concept.yaml")
	require.NoError(t, os.WriteFile(path, []byte("name: First\nfeatures:\n  - id: f1\n    name: Journal\n"), 0o644))

	target := &recordingTrigger{concepts: make(chan *datatypes.AppConcept, 16)}
	w, err := NewConceptWatcher(path, target, nil)
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background()))
	defer w.Stop()

	first := <-target.concepts
	assert.Equal(t, "First", first.Name)

	require.NoError(t, os.WriteFile(path, []byte("name: [unclosed\n"), 0o644))
	require.NoError(t, os.WriteFile(path, []byte("name: Second\nfeatures:\n  - id: f1\n    name: Journal\n"), 0o644))

	deadline := time.After(3 * time.Second)
	for {
		select {
		case c := <-target.concepts:
			if c.Name == "Second" {
				return
			}
			assert.Equal(t, "First", c.Name, "invalid content never reaches the trigger")
		case <-deadline:
			t.Fatal("no reload after file change")
		}
	}
}

func TestConceptWatcher_InitialLoadError(t *testing.T) {
	w, err := NewConceptWatcher(filepath.Join(t.TempDir(), "missing.yaml"), &recordingTrigger{}, nil)
	require.NoError(t, err)
	assert.Error(t, w.Start(context.Background()))
	w.Stop()
}
