// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package composer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/AleutianAI/AleutianPlanner/services/planner/classifier"
	"github.com/AleutianAI/AleutianPlanner/services/planner/dag"
	"github.com/AleutianAI/AleutianPlanner/services/planner/datatypes"
	"github.com/AleutianAI/AleutianPlanner/services/planner/observability"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("aleutian.planner.composer")

// Generator turns an AppConcept into a validated DynamicPhasePlan.
//
// # Description
//
// Runs classify, compose and resolve over a private snapshot of the concept
// and checks every plan invariant before returning. Generation is
// all-or-nothing: on any error no plan is returned.
//
// # Thread Safety
//
// Safe for concurrent use. Generator holds no mutable state.
type Generator struct {
	classifier *classifier.Classifier
	resolver   *dag.Resolver
	config     Config
	logger     *slog.Logger
	metrics    *observability.PlannerMetrics
}

// NewGenerator creates a plan generator.
//
// # Inputs
//
//   - cfg: Composition limits. Zero fields take defaults.
//   - logger: Optional. Nil uses slog.Default().
//   - metrics: Optional. Nil disables metrics.
//
// # Outputs
//
//   - *Generator: Ready to use.
//   - error: Non-nil if cfg is invalid.
func NewGenerator(cfg Config, logger *slog.Logger, metrics *observability.PlannerMetrics) (*Generator, error) {
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	c := classifier.New()
	return &Generator{
		classifier: c,
		resolver:   dag.NewResolver(c),
		config:     cfg,
		logger:     logger.With("component", "plan_generator"),
		metrics:    metrics,
	}, nil
}

// Config returns the composition limits in effect.
func (g *Generator) Config() Config {
	return g.config
}

// Generate builds the phase plan for a concept.
//
// # Inputs
//
//   - ctx: Context for tracing and cancellation.
//   - concept: The concept. It is cloned and never modified.
//
// # Outputs
//
//   - *datatypes.DynamicPhasePlan: The complete plan.
//   - error: ErrMalformedConcept for bad input; dag.ErrCycleDetected or
//     datatypes.ErrInvalidPlan for planner defects; ctx.Err() if cancelled.
func (g *Generator) Generate(ctx context.Context, concept *datatypes.AppConcept) (*datatypes.DynamicPhasePlan, error) {
	ctx, span := tracer.Start(ctx, "composer.Generator.Generate")
	defer span.End()
	start := time.Now()

	plan, err := g.generate(ctx, concept)
	elapsed := time.Since(start)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		g.metrics.RecordPlan(0, elapsed.Seconds(), false)
		g.logger.Warn("plan generation failed", "error", err)
		return nil, err
	}

	span.SetAttributes(
		attribute.Int("plan.phases", plan.TotalPhases),
		attribute.String("plan.complexity", string(plan.Complexity)),
	)
	g.metrics.RecordPlan(plan.TotalPhases, elapsed.Seconds(), true)
	g.logger.Info("plan generated",
		"concept", plan.ConceptName,
		"phases", plan.TotalPhases,
		"complexity", plan.Complexity,
		"estimated_minutes", plan.EstimatedTotalMinutes,
		"duration_ms", elapsed.Milliseconds(),
	)
	return plan, nil
}

func (g *Generator) generate(ctx context.Context, concept *datatypes.AppConcept) (*datatypes.DynamicPhasePlan, error) {
	if err := concept.ValidateForPlanning(); err != nil {
		return nil, err
	}
	snapshot := concept.Clone()
	trace.SpanFromContext(ctx).SetAttributes(attribute.Int("concept.features", len(snapshot.Features)))

	classified := g.classifier.ClassifyAll(ctx, snapshot.Features)

	phases, err := Compose(classified, snapshot.Technical, g.config)
	if err != nil {
		return nil, fmt.Errorf("composing phases: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	phases, err = g.resolver.Resolve(ctx, phases, snapshot.Technical)
	if err != nil {
		return nil, fmt.Errorf("resolving dependencies: %w", err)
	}
	phases = AddConceptCriteria(phases, snapshot.Roles, snapshot.Workflows)

	plan := Assemble(snapshot.Name, phases)
	if err := plan.Validate(); err != nil {
		return nil, err
	}
	if err := plan.ValidatePartition(classified); err != nil {
		return nil, err
	}
	return plan, nil
}

// Assemble wraps resolved phases into a plan and derives the totals.
func Assemble(conceptName string, phases []datatypes.Phase) *datatypes.DynamicPhasePlan {
	minutes := 0
	for _, ph := range phases {
		minutes += ph.EstimatedMinutes
	}
	return &datatypes.DynamicPhasePlan{
		ConceptName:           conceptName,
		TotalPhases:           len(phases),
		Phases:                phases,
		Complexity:            datatypes.ComplexityFor(len(phases)),
		EstimatedTotalTime:    datatypes.FormatMinutes(minutes),
		EstimatedTotalMinutes: minutes,
	}
}
