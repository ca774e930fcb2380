// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package observability provides Prometheus metrics for the planner.
//
// # Description
//
// Metrics cover plan generation (count, phase count, duration), phase context
// extraction (including semantic fallbacks), conversation compression, plan
// regeneration and phase state transitions.
//
// # Integration
//
// The serve command registers metrics on the default registry and exposes
// them on /metrics. Tests build isolated instances with NewPlannerMetrics and
// a private registry.
//
// # Thread Safety
//
// All metric operations are thread-safe via Prometheus's internal locking.
// Every Record method is a no-op on a nil receiver so components can run
// without metrics.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// =============================================================================
// Metric Definitions
// =============================================================================

// Namespace for all metrics
const metricsNamespace = "aleutian"

// Subsystem for planner metrics
const plannerSubsystem = "planner"

// PlannerMetrics holds all Prometheus metrics for the planner.
//
// # Fields
//
//   - PlansTotal: Plan generations by status
//   - PlanPhases: Histogram of phases per generated plan
//   - PlanDurationSeconds: Histogram of generation latency
//   - ContextExtractionsTotal: Phase context extractions by domain
//   - SemanticFallbacksTotal: Semantic step failures by reason
//   - CompressionsTotal: Conversation compressions by outcome
//   - RegenerationsTotal: Debounced regenerations by outcome
//   - PhaseTransitionsTotal: Execution state transitions by target state
//   - RedactionsTotal: Sensitive matches masked before text leaves the process
type PlannerMetrics struct {
	// PlansTotal counts plan generations.
	// Labels: status (success, error)
	PlansTotal *prometheus.CounterVec

	// PlanPhases observes the phase count of generated plans.
	PlanPhases prometheus.Histogram

	// PlanDurationSeconds measures end-to-end plan generation.
	PlanDurationSeconds prometheus.Histogram

	// ContextExtractionsTotal counts phase context extractions.
	// Labels: domain, semantic (true, false)
	ContextExtractionsTotal *prometheus.CounterVec

	// SemanticFallbacksTotal counts semantic-step degradations.
	// Labels: reason (absent, error)
	SemanticFallbacksTotal *prometheus.CounterVec

	// CompressionsTotal counts compression calls.
	// Labels: outcome (skipped, compressed, truncated)
	CompressionsTotal *prometheus.CounterVec

	// RegenerationsTotal counts debounced regeneration runs.
	// Labels: outcome (applied, stale, error)
	RegenerationsTotal *prometheus.CounterVec

	// PhaseTransitionsTotal counts execution state changes.
	// Labels: state (in-progress, complete, failed)
	PhaseTransitionsTotal *prometheus.CounterVec

	// RedactionsTotal counts masked matches.
	// Labels: classification (secret, pii)
	RedactionsTotal *prometheus.CounterVec
}

// NewPlannerMetrics creates and registers all planner metrics on reg.
//
// # Inputs
//
//   - reg: Registerer to use. Nil means prometheus.DefaultRegisterer.
//
// # Limitations
//
//   - Panics if called twice with the same registerer (duplicate registration).
func NewPlannerMetrics(reg prometheus.Registerer) *PlannerMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &PlannerMetrics{
		PlansTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: plannerSubsystem,
				Name:      "plans_total",
				Help:      "Total number of plan generations by status",
			},
			[]string{"status"},
		),

		PlanPhases: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: plannerSubsystem,
				Name:      "plan_phases",
				Help:      "Number of phases per generated plan",
				Buckets:   []float64{2, 4, 6, 8, 10, 15, 20, 30},
			},
		),

		PlanDurationSeconds: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: plannerSubsystem,
				Name:      "plan_duration_seconds",
				Help:      "Plan generation duration in seconds",
				Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
			},
		),

		ContextExtractionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: plannerSubsystem,
				Name:      "context_extractions_total",
				Help:      "Total phase context extractions by domain",
			},
			[]string{"domain", "semantic"},
		),

		SemanticFallbacksTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: plannerSubsystem,
				Name:      "semantic_fallbacks_total",
				Help:      "Semantic similarity steps that degraded to keyword filtering",
			},
			[]string{"reason"},
		),

		CompressionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: plannerSubsystem,
				Name:      "compressions_total",
				Help:      "Conversation compressions by outcome",
			},
			[]string{"outcome"},
		),

		RegenerationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: plannerSubsystem,
				Name:      "regenerations_total",
				Help:      "Debounced plan regenerations by outcome",
			},
			[]string{"outcome"},
		),

		PhaseTransitionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: plannerSubsystem,
				Name:      "phase_transitions_total",
				Help:      "Phase execution state transitions by target state",
			},
			[]string{"state"},
		),

		RedactionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: plannerSubsystem,
				Name:      "redactions_total",
				Help:      "Sensitive matches masked before embedding by classification",
			},
			[]string{"classification"},
		),
	}
}

// =============================================================================
// Label Values
// =============================================================================

// FallbackReason labels why the semantic step did not contribute.
type FallbackReason string

const (
	// FallbackAbsent means no similarity capability was configured.
	FallbackAbsent FallbackReason = "absent"

	// FallbackError means the capability failed during the call.
	FallbackError FallbackReason = "error"
)

// RegenOutcome labels the result of one regeneration run.
type RegenOutcome string

const (
	RegenApplied RegenOutcome = "applied"
	RegenStale   RegenOutcome = "stale"
	RegenError   RegenOutcome = "error"
)

// =============================================================================
// Helper Methods
// =============================================================================

// RecordPlan records one plan generation.
//
// # Inputs
//
//   - phases: Phase count of the plan; ignored on failure.
//   - seconds: Generation duration.
//   - success: Whether a plan was produced.
func (m *PlannerMetrics) RecordPlan(phases int, seconds float64, success bool) {
	if m == nil {
		return
	}
	status := "success"
	if !success {
		status = "error"
	}
	m.PlansTotal.WithLabelValues(status).Inc()
	m.PlanDurationSeconds.Observe(seconds)
	if success {
		m.PlanPhases.Observe(float64(phases))
	}
}

// RecordContextExtraction records one phase context extraction.
func (m *PlannerMetrics) RecordContextExtraction(domain string, semanticUsed bool) {
	if m == nil {
		return
	}
	semantic := "false"
	if semanticUsed {
		semantic = "true"
	}
	m.ContextExtractionsTotal.WithLabelValues(domain, semantic).Inc()
}

// RecordSemanticFallback records a degraded semantic step.
func (m *PlannerMetrics) RecordSemanticFallback(reason FallbackReason) {
	if m == nil {
		return
	}
	m.SemanticFallbacksTotal.WithLabelValues(string(reason)).Inc()
}

// RecordCompression records one compression call.
func (m *PlannerMetrics) RecordCompression(outcome string) {
	if m == nil {
		return
	}
	m.CompressionsTotal.WithLabelValues(outcome).Inc()
}

// RecordRegeneration records one regeneration run.
func (m *PlannerMetrics) RecordRegeneration(outcome RegenOutcome) {
	if m == nil {
		return
	}
	m.RegenerationsTotal.WithLabelValues(string(outcome)).Inc()
}

// RecordPhaseTransition records a phase entering state.
func (m *PlannerMetrics) RecordPhaseTransition(state string) {
	if m == nil {
		return
	}
	m.PhaseTransitionsTotal.WithLabelValues(state).Inc()
}

// RecordRedaction records n masked matches of one classification.
func (m *PlannerMetrics) RecordRedaction(classification string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.RedactionsTotal.WithLabelValues(classification).Add(float64(n))
}
