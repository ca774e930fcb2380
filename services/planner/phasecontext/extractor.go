// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package phasecontext selects the slice of a conversation that matters to
// one build phase.
//
// # Description
//
// Extract segments the conversation, keeps segments whose topic is relevant
// to the phase domain, optionally adds semantically similar segments, filters
// the structured extraction by domain keywords and renders a bounded
// PhaseContext. Extraction never fails: every problem degrades to a sparser
// context.
package phasecontext

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"

	"github.com/AleutianAI/AleutianPlanner/services/planner/conversation"
	"github.com/AleutianAI/AleutianPlanner/services/planner/datatypes"
	"github.com/AleutianAI/AleutianPlanner/services/planner/observability"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("aleutian.planner.phasecontext")

// Bounds of a PhaseContext.
const (
	MaxSemanticSegments = 3
	MinSimilarity       = 0.4
	MaxRequirements     = 15
	MaxDecisions        = 10
	MaxTechnicalNotes   = 10
	MaxValidationRules  = 10
	MaxUIPatterns       = 10
	MaxSummaryChars     = 3000

	maxItemChars = 240
)

// Options configures an Extractor. The zero value is usable.
type Options struct {
	// Similarity is the semantic step. Nil means Absent.
	Similarity Similarity

	// Logger receives fallback warnings. Nil uses slog.Default().
	Logger *slog.Logger

	// Metrics is optional.
	Metrics *observability.PlannerMetrics
}

// Extractor builds PhaseContexts.
//
// Thread Safety: Safe for concurrent use. Extract holds no state between
// calls.
type Extractor struct {
	similarity Similarity
	logger     *slog.Logger
	metrics    *observability.PlannerMetrics
}

// New creates an Extractor.
func New(opts Options) *Extractor {
	if opts.Similarity == nil {
		opts.Similarity = Absent{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Extractor{similarity: opts.Similarity, logger: opts.Logger, metrics: opts.Metrics}
}

// Extract builds the context of one phase.
//
// # Description
//
// Steps, in order:
//  1. Segment the conversation.
//  2. Keep segments whose topic is relevant to phaseType.
//  3. Add up to MaxSemanticSegments other segments whose similarity to the
//     domain query exceeds MinSimilarity. Failures fall back to step 2.
//  4. Deduplicate by ID and sort by importance, then position.
//  5. Keep structured records matching the domain keywords.
//  6. Scan the selected segments for the five bounded lists.
//  7. Render the summary and token estimate.
//
// # Inputs
//
//   - ctx: Bounds the semantic step only.
//   - messages: The conversation snapshot. Not modified.
//   - phaseType: The phase domain. Unknown domains yield an empty context.
//
// # Outputs
//
//   - *datatypes.PhaseContext: Never nil. Slices are never nil.
//
// # Limitations
//
//   - Deterministic only when the semantic step is absent or returns the
//     same scores.
func (e *Extractor) Extract(ctx context.Context, messages []datatypes.ChatMessage, phaseType datatypes.FeatureDomain) *datatypes.PhaseContext {
	ctx, span := tracer.Start(ctx, "phasecontext.Extractor.Extract",
		trace.WithAttributes(
			attribute.String("phase.type", string(phaseType)),
			attribute.Int("conversation.messages", len(messages)),
		))
	defer span.End()

	extraction := conversation.ExtractStructured(messages)
	names := make([]string, len(extraction.Features))
	for i, f := range extraction.Features {
		names[i] = f.Name
	}
	segments := conversation.Segment(messages, conversation.SegmentOptions{FeatureNames: names})

	selected := topicSegments(segments, phaseType)
	extra, semanticUsed := e.semanticSegments(ctx, messages, segments, selected, phaseType)
	selected = mergeSegments(selected, extra)

	pc := &datatypes.PhaseContext{
		PhaseType:        phaseType,
		RelevantSegments: selected,
		FeatureSpecs:     filterFeatures(extraction.Features, phaseType),
		WorkflowSpecs:    filterWorkflows(extraction.Workflows, phaseType),
		TechnicalSpecs:   filterSpecs(extraction.TechnicalSpecs, phaseType),
		SemanticUsed:     semanticUsed,
	}
	fillLists(pc, messages)
	pc.ContextSummary = conversation.TruncateRunes(renderSummary(pc), MaxSummaryChars)

	tokens := 0
	for _, s := range pc.RelevantSegments {
		tokens += s.TokenEstimate
	}
	pc.TokenEstimate = tokens + conversation.EstimateTokens(pc.ContextSummary)

	span.SetAttributes(
		attribute.Int("phasecontext.segments", len(pc.RelevantSegments)),
		attribute.Int("phasecontext.tokens", pc.TokenEstimate),
		attribute.Bool("phasecontext.semantic", semanticUsed),
	)
	e.metrics.RecordContextExtraction(string(phaseType), semanticUsed)
	return pc
}

// =============================================================================
// Segment Selection
// =============================================================================

func topicSegments(segments []datatypes.ConversationSegment, d datatypes.FeatureDomain) []datatypes.ConversationSegment {
	allowed := make(map[datatypes.Topic]bool)
	for _, t := range relevantTopics[d] {
		allowed[t] = true
	}
	out := make([]datatypes.ConversationSegment, 0)
	for _, s := range segments {
		if allowed[s.Topic] {
			out = append(out, s)
		}
	}
	return out
}

// semanticSegments returns extra segments similar to the domain query and
// whether the semantic step ran successfully.
func (e *Extractor) semanticSegments(
	ctx context.Context,
	messages []datatypes.ChatMessage,
	segments, selected []datatypes.ConversationSegment,
	d datatypes.FeatureDomain,
) ([]datatypes.ConversationSegment, bool) {
	query := domainQueries[d]
	if query == "" {
		return nil, false
	}

	taken := make(map[string]bool, len(selected))
	for _, s := range selected {
		taken[s.ID] = true
	}
	var candidates []datatypes.ConversationSegment
	var texts []string
	for _, s := range segments {
		if taken[s.ID] {
			continue
		}
		candidates = append(candidates, s)
		texts = append(texts, segmentText(messages, s))
	}
	if len(candidates) == 0 {
		return nil, false
	}

	scores, err := e.similarity.Scores(ctx, query, texts)
	if err == nil && len(scores) != len(candidates) {
		err = fmt.Errorf("%w: got %d scores for %d candidates",
			datatypes.ErrEmbeddingUnavailable, len(scores), len(candidates))
	}
	if err != nil {
		if _, absent := e.similarity.(Absent); absent {
			e.metrics.RecordSemanticFallback(observability.FallbackAbsent)
			return nil, false
		}
		if !errors.Is(err, datatypes.ErrEmbeddingUnavailable) {
			err = fmt.Errorf("%w: %v", datatypes.ErrEmbeddingUnavailable, err)
		}
		e.logger.Warn("semantic context step failed, using topic filter only",
			"phase_type", d, "error", err)
		e.metrics.RecordSemanticFallback(observability.FallbackError)
		return nil, false
	}

	order := make([]int, 0, len(candidates))
	for i := range candidates {
		if scores[i] > MinSimilarity {
			order = append(order, i)
		}
	}
	sort.SliceStable(order, func(a, b int) bool {
		return scores[order[a]] > scores[order[b]]
	})
	if len(order) > MaxSemanticSegments {
		order = order[:MaxSemanticSegments]
	}
	out := make([]datatypes.ConversationSegment, len(order))
	for i, idx := range order {
		out[i] = candidates[idx]
	}
	return out, true
}

// mergeSegments unions by ID and sorts by importance, then position.
func mergeSegments(a, b []datatypes.ConversationSegment) []datatypes.ConversationSegment {
	seen := make(map[string]bool, len(a)+len(b))
	out := make([]datatypes.ConversationSegment, 0, len(a)+len(b))
	for _, s := range append(append([]datatypes.ConversationSegment(nil), a...), b...) {
		if seen[s.ID] {
			continue
		}
		seen[s.ID] = true
		out = append(out, s)
	}
	sort.SliceStable(out, func(i, j int) bool {
		ri, rj := out[i].Importance.Rank(), out[j].Importance.Rank()
		if ri != rj {
			return ri < rj
		}
		return out[i].StartIndex < out[j].StartIndex
	})
	return out
}

func segmentText(messages []datatypes.ChatMessage, s datatypes.ConversationSegment) string {
	var b strings.Builder
	for _, m := range messages[s.StartIndex : s.EndIndex+1] {
		if m.Role == datatypes.RoleSystem {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(m.Content)
	}
	return b.String()
}

// =============================================================================
// Structured Filtering
// =============================================================================

func filterFeatures(features []datatypes.ExtractedFeature, d datatypes.FeatureDomain) []datatypes.ExtractedFeature {
	out := make([]datatypes.ExtractedFeature, 0)
	for _, f := range features {
		text := f.Name + " " + f.Description + " " + strings.Join(f.UserStories, " ")
		if MatchesDomain(d, text) {
			out = append(out, f)
		}
	}
	return out
}

func filterWorkflows(workflows []datatypes.ExtractedWorkflow, d datatypes.FeatureDomain) []datatypes.ExtractedWorkflow {
	out := make([]datatypes.ExtractedWorkflow, 0)
	for _, w := range workflows {
		if MatchesDomain(d, w.Name+" "+strings.Join(w.Steps, " ")) {
			out = append(out, w)
		}
	}
	return out
}

func filterSpecs(specs []datatypes.ExtractedTechnicalSpec, d datatypes.FeatureDomain) []datatypes.ExtractedTechnicalSpec {
	category, hasCategory := specCategories[d]
	out := make([]datatypes.ExtractedTechnicalSpec, 0)
	for _, s := range specs {
		if (hasCategory && s.Category == category) || MatchesDomain(d, s.Requirement) {
			out = append(out, s)
		}
	}
	return out
}

// =============================================================================
// Bounded Lists
// =============================================================================

type boundedList struct {
	pattern *regexp.Regexp
	limit   int
	items   *[]string
}

// fillLists scans the selected segments sentence by sentence. Each list is
// an independent scan, so one sentence may land in several lists.
func fillLists(pc *datatypes.PhaseContext, messages []datatypes.ChatMessage) {
	pc.ExtractedRequirements = make([]string, 0)
	pc.UserDecisions = make([]string, 0)
	pc.TechnicalNotes = make([]string, 0)
	pc.ValidationRules = make([]string, 0)
	pc.UIPatterns = make([]string, 0)

	lists := []boundedList{
		{requirementPattern, MaxRequirements, &pc.ExtractedRequirements},
		{conversation.DecisionPattern, MaxDecisions, &pc.UserDecisions},
		{technicalPattern, MaxTechnicalNotes, &pc.TechnicalNotes},
		{validationPattern, MaxValidationRules, &pc.ValidationRules},
		{uiPattern, MaxUIPatterns, &pc.UIPatterns},
	}

	for _, s := range pc.RelevantSegments {
		for _, m := range messages[s.StartIndex : s.EndIndex+1] {
			if m.Role == datatypes.RoleSystem {
				continue
			}
			for _, sentence := range conversation.Sentences(m.Content) {
				sentence = conversation.TruncateRunes(sentence, maxItemChars)
				for _, l := range lists {
					if len(*l.items) < l.limit && l.pattern.MatchString(sentence) {
						*l.items = appendUnique(*l.items, sentence)
					}
				}
			}
		}
	}

	// Structured records are the long-term memory; they fill what the
	// segments left open.
	for _, f := range pc.FeatureSpecs {
		for _, story := range f.UserStories {
			addBounded(&pc.ExtractedRequirements, story, MaxRequirements)
		}
		for _, c := range f.AcceptanceCriteria {
			addBounded(&pc.ValidationRules, c, MaxValidationRules)
		}
	}
	for _, spec := range pc.TechnicalSpecs {
		addBounded(&pc.TechnicalNotes, spec.Requirement, MaxTechnicalNotes)
	}
}

func addBounded(list *[]string, v string, limit int) {
	if len(*list) < limit {
		*list = appendUnique(*list, conversation.TruncateRunes(v, maxItemChars))
	}
}

func appendUnique(list []string, v string) []string {
	for _, e := range list {
		if strings.EqualFold(e, v) {
			return list
		}
	}
	return append(list, v)
}

// =============================================================================
// Summary
// =============================================================================

func renderSummary(pc *datatypes.PhaseContext) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Context for %s phase: %d relevant segment(s), %d feature spec(s), %d workflow(s).\n",
		pc.PhaseType, len(pc.RelevantSegments), len(pc.FeatureSpecs), len(pc.WorkflowSpecs))

	for _, s := range pc.RelevantSegments {
		if len(s.KeyPoints) == 0 {
			continue
		}
		fmt.Fprintf(&b, "[%s, %s] %s\n", s.Topic, s.Importance, strings.Join(s.KeyPoints, " "))
	}

	section := func(title string, items []string) {
		if len(items) == 0 {
			return
		}
		fmt.Fprintf(&b, "%s:\n", title)
		for _, it := range items {
			fmt.Fprintf(&b, "- %s\n", it)
		}
	}
	section("Decisions", pc.UserDecisions)
	section("Requirements", pc.ExtractedRequirements)
	section("Technical notes", pc.TechnicalNotes)
	section("Validation rules", pc.ValidationRules)
	section("UI patterns", pc.UIPatterns)

	if len(pc.FeatureSpecs) > 0 {
		b.WriteString("Features:\n")
		for _, f := range pc.FeatureSpecs {
			fmt.Fprintf(&b, "- %s (%s)\n", f.Name, f.Priority)
		}
	}
	if len(pc.WorkflowSpecs) > 0 {
		b.WriteString("Workflows:\n")
		for _, w := range pc.WorkflowSpecs {
			fmt.Fprintf(&b, "- %s: %s\n", w.Name, strings.Join(w.Steps, " -> "))
		}
	}
	return strings.TrimRight(b.String(), "\n")
}
