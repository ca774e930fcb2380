// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package dag computes the phase dependency graph of a build plan.
//
// # Description
//
// Dependencies are produced by evaluating an explicit rule table (DefaultRules)
// once into an adjacency list. Every rule only links a phase to strictly
// earlier phases, so the graph is acyclic by construction. TopologicalSort
// re-checks that property; a failure there is a resolver defect and surfaces
// as ErrCycleDetected.
//
// # Thread Safety
//
// Resolver is immutable after construction and safe for concurrent use.
package dag

import (
	"context"
	"fmt"
	"sort"

	"github.com/AleutianAI/AleutianPlanner/services/planner/datatypes"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("aleutian.planner.dag")

// dataDomains use persistent data even when their text does not say so.
var dataDomains = map[datatypes.FeatureDomain]bool{
	datatypes.DomainCoreEntity: true,
	datatypes.DomainStorage:    true,
	datatypes.DomainSearch:     true,
	datatypes.DomainAnalytics:  true,
	datatypes.DomainAdmin:      true,
}

// KeywordMatcher reports whether text mentions a domain's concern.
//
// *classifier.Classifier implements it.
type KeywordMatcher interface {
	Matches(d datatypes.FeatureDomain, text string) bool
}

// Resolver evaluates the edge rule table over a phase list.
type Resolver struct {
	rules   []EdgeRule
	matcher KeywordMatcher
}

// NewResolver creates a resolver with DefaultRules.
//
// # Inputs
//
//   - matcher: Optional. Used to detect database needs from feature text.
//     When nil only the technical flags and domain defaults are used.
func NewResolver(matcher KeywordMatcher) *Resolver {
	return &Resolver{rules: DefaultRules, matcher: matcher}
}

// WithRules returns a copy of the resolver using a different rule table.
func (r *Resolver) WithRules(rules []EdgeRule) *Resolver {
	cp := *r
	cp.rules = append([]EdgeRule(nil), rules...)
	return &cp
}

// Describe builds the PhaseInfo for each phase.
func (r *Resolver) Describe(phases []datatypes.Phase, tech datatypes.TechnicalRequirements) []PhaseInfo {
	infos := make([]PhaseInfo, len(phases))
	for i, ph := range phases {
		info := PhaseInfo{Number: ph.Number, Domain: ph.Domain}
		if ph.Domain != datatypes.DomainSetup {
			info.NeedsDatabase = tech.NeedsDatabase || dataDomains[ph.Domain]
			info.NeedsAuth = tech.NeedsAuth
			for _, f := range ph.Features {
				if r.matcher != nil && r.matcher.Matches(datatypes.DomainDatabase, f.Text()) {
					info.NeedsDatabase = true
				}
			}
		}
		infos[i] = info
	}
	return infos
}

// Adjacency evaluates the rule table into phase number -> sorted dependencies.
//
// # Outputs
//
//   - map[int][]int: Dependencies per phase. Every phase has an entry.
//   - error: PhaseError wrapping ErrBackwardEdge if a rule produced a forward
//     edge, which would be a rule-table defect.
func (r *Resolver) Adjacency(infos []PhaseInfo) (map[int][]int, error) {
	adj := make(map[int][]int, len(infos))
	for i, to := range infos {
		set := make(map[int]bool)
		for _, rule := range r.rules {
			if rule.To == nil || !rule.To(to) {
				continue
			}
			if rule.ImmediateOnly {
				if i > 0 && (rule.From == nil || rule.From(infos[i-1])) {
					set[infos[i-1].Number] = true
				}
				continue
			}
			for _, from := range infos[:i] {
				if rule.From == nil || rule.From(from) {
					set[from.Number] = true
				}
			}
		}
		deps := make([]int, 0, len(set))
		for n := range set {
			if n >= to.Number {
				return nil, &PhaseError{Phase: to.Number, Err: fmt.Errorf("%w: depends on %d", ErrBackwardEdge, n)}
			}
			deps = append(deps, n)
		}
		sort.Ints(deps)
		adj[to.Number] = deps
	}
	return adj, nil
}

// Resolve fills in Dependencies for every phase.
//
// # Description
//
// Builds the adjacency list from the rule table and verifies it with a
// topological sort before writing it into copies of the phases.
//
// # Inputs
//
//   - ctx: Context for tracing.
//   - phases: Phases numbered 1..n in order.
//   - tech: The concept's technical flags.
//
// # Outputs
//
//   - []datatypes.Phase: New phase values with Dependencies set.
//   - error: Non-nil only on a rule-table or numbering defect.
func (r *Resolver) Resolve(ctx context.Context, phases []datatypes.Phase, tech datatypes.TechnicalRequirements) ([]datatypes.Phase, error) {
	_, span := tracer.Start(ctx, "dag.Resolver.Resolve",
		trace.WithAttributes(attribute.Int("dag.phases", len(phases))))
	defer span.End()

	for i, ph := range phases {
		if ph.Number != i+1 {
			return nil, &PhaseError{Phase: ph.Number, Err: fmt.Errorf("%w: expected number %d", ErrUnknownPhase, i+1)}
		}
	}

	adj, err := r.Adjacency(r.Describe(phases, tech))
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if _, err := TopologicalSort(adj); err != nil {
		span.RecordError(err)
		return nil, err
	}

	edges := 0
	out := make([]datatypes.Phase, len(phases))
	for i, ph := range phases {
		ph.Dependencies = append([]int{}, adj[ph.Number]...)
		edges += len(ph.Dependencies)
		out[i] = ph
	}
	span.SetAttributes(attribute.Int("dag.edges", edges))
	return out, nil
}

// AdjacencyOf extracts the adjacency list already stored on a plan's phases.
func AdjacencyOf(phases []datatypes.Phase) map[int][]int {
	adj := make(map[int][]int, len(phases))
	for _, ph := range phases {
		adj[ph.Number] = append([]int(nil), ph.Dependencies...)
	}
	return adj
}
