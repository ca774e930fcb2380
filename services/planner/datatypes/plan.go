// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package datatypes

import (
	"fmt"
	"slices"
	"sort"
)

// =============================================================================
// Complexity
// =============================================================================

// Complexity is a coarse label derived purely from the number of phases.
type Complexity string

const (
	ComplexitySimple      Complexity = "simple"
	ComplexityModerate    Complexity = "moderate"
	ComplexityComplex     Complexity = "complex"
	ComplexityVeryComplex Complexity = "very-complex"
)

// ComplexityFor maps a phase count to its label.
//
// <5 simple, 5-10 moderate, 11-20 complex, >20 very-complex.
func ComplexityFor(totalPhases int) Complexity {
	switch {
	case totalPhases < 5:
		return ComplexitySimple
	case totalPhases <= 10:
		return ComplexityModerate
	case totalPhases <= 20:
		return ComplexityComplex
	default:
		return ComplexityVeryComplex
	}
}

// =============================================================================
// Phase
// =============================================================================

// Phase is one unit of the build plan grouping features with shared context.
//
// TokenEstimate never exceeds the composer's per-phase budget. A phase that
// could not be brought under budget (one oversized feature, or a forced merge
// to respect the phase cap) reports the budget there, sets OverBudget and
// carries its unclamped estimate in RequiredTokens.
type Phase struct {
	Number           int           `json:"number"`
	Name             string        `json:"name"`
	Description      string        `json:"description"`
	Domain           FeatureDomain `json:"domain"`
	Features         []Feature     `json:"features"`
	EstimatedTime    string        `json:"estimatedTime"`
	EstimatedMinutes int           `json:"estimatedMinutes"`
	Dependencies     []int         `json:"dependencies"`
	TokenEstimate    int           `json:"tokenEstimate"`
	OverBudget       bool          `json:"overBudget,omitempty"`
	RequiredTokens   int           `json:"requiredTokens,omitempty"`
	TestCriteria     []string      `json:"testCriteria"`
}

// FeatureIDs returns the ids of the phase's features in phase order.
func (p Phase) FeatureIDs() []string {
	ids := make([]string, len(p.Features))
	for i, f := range p.Features {
		ids[i] = f.ID
	}
	return ids
}

// HasDependency reports whether the phase depends on phase n.
func (p Phase) HasDependency(n int) bool {
	for _, d := range p.Dependencies {
		if d == n {
			return true
		}
	}
	return false
}

// =============================================================================
// DynamicPhasePlan
// =============================================================================

// DynamicPhasePlan is the ordered build plan for one AppConcept snapshot.
//
// # Description
//
// A plan is generated on demand and fully replaced, never patched, when the
// concept changes. Its JSON form is the contract consumed by the UI checklist
// and by the sequential code-generation caller.
type DynamicPhasePlan struct {
	ConceptName           string     `json:"conceptName"`
	TotalPhases           int        `json:"totalPhases"`
	Phases                []Phase    `json:"phases"`
	Complexity            Complexity `json:"complexity"`
	EstimatedTotalTime    string     `json:"estimatedTotalTime"`
	EstimatedTotalMinutes int        `json:"estimatedTotalMinutes"`
}

// Phase returns the phase with the given number.
func (p *DynamicPhasePlan) Phase(number int) (Phase, bool) {
	if p == nil || number < 1 || number > len(p.Phases) {
		return Phase{}, false
	}
	ph := p.Phases[number-1]
	if ph.Number != number {
		return Phase{}, false
	}
	return ph, true
}

// Validate checks every structural invariant of the plan.
//
// # Description
//
// Verifies that:
//   - TotalPhases equals len(Phases) and numbers are exactly 1..TotalPhases
//   - every dependency references a strictly smaller, existing phase
//   - always-separate domains never share a phase with another domain
//   - the complexity label matches TotalPhases
//
// Feature partitioning against the input is checked by ValidatePartition since
// it needs the original feature list.
//
// # Outputs
//
//   - error: Wraps ErrInvalidPlan describing the first violation.
func (p *DynamicPhasePlan) Validate() error {
	if p == nil {
		return fmt.Errorf("%w: plan is nil", ErrInvalidPlan)
	}
	if p.TotalPhases != len(p.Phases) {
		return fmt.Errorf("%w: totalPhases=%d but %d phases", ErrInvalidPlan, p.TotalPhases, len(p.Phases))
	}
	for i, ph := range p.Phases {
		if ph.Number != i+1 {
			return fmt.Errorf("%w: phase at index %d has number %d", ErrInvalidPlan, i, ph.Number)
		}
		for _, d := range ph.Dependencies {
			if d < 1 || d >= ph.Number {
				return fmt.Errorf("%w: phase %d depends on %d", ErrInvalidPlan, ph.Number, d)
			}
		}
		for _, f := range ph.Features {
			if f.Domain != ph.Domain && (f.Domain.IsAlwaysSeparate() || ph.Domain.IsAlwaysSeparate()) {
				return fmt.Errorf("%w: phase %d (%s) mixes feature %q of domain %s",
					ErrInvalidPlan, ph.Number, ph.Domain, f.ID, f.Domain)
			}
		}
	}
	if want := ComplexityFor(p.TotalPhases); p.Complexity != want {
		return fmt.Errorf("%w: complexity %q, want %q", ErrInvalidPlan, p.Complexity, want)
	}
	return nil
}

// ValidatePartition checks that every input feature appears in exactly one
// phase and that no phase holds a feature absent from the input.
func (p *DynamicPhasePlan) ValidatePartition(input []Feature) error {
	want := make(map[string]int, len(input))
	for _, f := range input {
		want[f.ID]++
	}
	got := make(map[string]int, len(input))
	for _, ph := range p.Phases {
		for _, f := range ph.Features {
			got[f.ID]++
		}
	}
	ids := make([]string, 0, len(want)+len(got))
	for id := range want {
		ids = append(ids, id)
	}
	for id := range got {
		if _, ok := want[id]; !ok {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	for _, id := range ids {
		if want[id] != got[id] {
			return fmt.Errorf("%w: feature %q appears %d times, want %d", ErrInvalidPlan, id, got[id], want[id])
		}
	}
	return nil
}

// Clone returns a deep copy of the plan.
func (p *DynamicPhasePlan) Clone() *DynamicPhasePlan {
	if p == nil {
		return nil
	}
	out := *p
	out.Phases = slices.Clone(p.Phases)
	for i := range out.Phases {
		ph := &out.Phases[i]
		ph.Features = slices.Clone(ph.Features)
		ph.Dependencies = slices.Clone(ph.Dependencies)
		ph.TestCriteria = slices.Clone(ph.TestCriteria)
	}
	return &out
}

// FormatMinutes renders a duration estimate for humans.
//
//	FormatMinutes(45)  // "45 min"
//	FormatMinutes(90)  // "1 hr 30 min"
//	FormatMinutes(120) // "2 hr"
func FormatMinutes(m int) string {
	if m < 60 {
		return fmt.Sprintf("%d min", m)
	}
	h, rem := m/60, m%60
	if rem == 0 {
		return fmt.Sprintf("%d hr", h)
	}
	return fmt.Sprintf("%d hr %d min", h, rem)
}
