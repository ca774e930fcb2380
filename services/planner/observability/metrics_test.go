// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package observability

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func newTestMetrics(t *testing.T) *PlannerMetrics {
	t.Helper()
	return NewPlannerMetrics(prometheus.NewRegistry())
}

func TestRecordPlan(t *testing.T) {
	m := newTestMetrics(t)

	m.RecordPlan(6, 0.002, true)
	m.RecordPlan(0, 0.001, false)
	m.RecordPlan(3, 0.001, true)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.PlansTotal.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PlansTotal.WithLabelValues("error")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.PlanPhases))
}

func TestRecordContextExtraction(t *testing.T) {
	m := newTestMetrics(t)

	m.RecordContextExtraction("database", false)
	m.RecordContextExtraction("database", true)
	m.RecordContextExtraction("database", false)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.ContextExtractionsTotal.WithLabelValues("database", "false")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ContextExtractionsTotal.WithLabelValues("database", "true")))
}

func TestRecordSemanticFallbackAndRegeneration(t *testing.T) {
	m := newTestMetrics(t)

	m.RecordSemanticFallback(FallbackAbsent)
	m.RecordSemanticFallback(FallbackError)
	m.RecordSemanticFallback(FallbackError)
	m.RecordRegeneration(RegenStale)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.SemanticFallbacksTotal.WithLabelValues("absent")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.SemanticFallbacksTotal.WithLabelValues("error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RegenerationsTotal.WithLabelValues("stale")))
}

func TestRecordRedaction(t *testing.T) {
	m := newTestMetrics(t)

	m.RecordRedaction("secret", 2)
	m.RecordRedaction("pii", 1)
	m.RecordRedaction("pii", 0)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.RedactionsTotal.WithLabelValues("secret")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RedactionsTotal.WithLabelValues("pii")))
}

func TestNilMetricsAreNoOps(t *testing.T) {
	var m *PlannerMetrics

	assert.NotPanics(t, func() {
		m.RecordPlan(1, 0.1, true)
		m.RecordContextExtraction("auth", true)
		m.RecordSemanticFallback(FallbackAbsent)
		m.RecordCompression("compressed")
		m.RecordRegeneration(RegenApplied)
		m.RecordPhaseTransition("complete")
		m.RecordRedaction("secret", 2)
	})
}
