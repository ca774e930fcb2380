// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package conversation

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/AleutianAI/AleutianPlanner/services/planner/datatypes"
)

// =============================================================================
// Extraction Patterns
// =============================================================================

var (
	// userStoryPattern matches "As a <role>, I want <goal>[, so that <benefit>]".
	userStoryPattern = regexp.MustCompile(`(?i)\bas an? ([\w -]{2,40}?),? i (?:want|need|would like) (?:to )?([^.!?\n]{3,160}?)(?:,? so that ([^.!?\n]{3,160}))?(?:[.!?\n]|$)`)

	// capabilityPattern matches "users should be able to <action>".
	capabilityPattern = regexp.MustCompile(`(?i)\b(?:users?|people|customers?|members?|admins?|i|we|they) (?:should be able to|can|could|need to be able to|want to be able to|must be able to|will be able to) ([^.!?\n]{3,160})`)

	// namedFeaturePattern matches "add a <name> feature".
	namedFeaturePattern = regexp.MustCompile(`(?i)\b(?:add|include|support|have|build|want|need) (?:an? |the |some )?([a-z][\w -]{2,40}?) (?:feature|functionality|page|screen|section)\b`)

	// criterionPattern marks a sentence that reads as an acceptance criterion.
	criterionPattern = regexp.MustCompile(`(?i)\b(?:must|should|needs? to|has to|only|at least|at most|within|cannot|can't|never|always)\b`)

	// highPriorityPattern and lowPriorityPattern set feature priority.
	highPriorityPattern = regexp.MustCompile(`(?i)\b(?:must[- ]have|critical|essential|top priority|most important|core feature|required)\b`)
	lowPriorityPattern  = regexp.MustCompile(`(?i)\b(?:nice[- ]to[- ]have|later|optional|eventually|someday|phase 2|v2|not urgent)\b`)

	// workflowNamePattern matches "the <name> workflow|process|flow".
	workflowNamePattern = regexp.MustCompile(`(?i)\b(?:the )?([a-z][\w-]+(?: [a-z][\w-]+)?) (?:workflow|process|flow)\b`)

	// workflowCuePattern marks a message describing a workflow.
	workflowCuePattern = regexp.MustCompile(`(?i)\b(?:workflow|process|flow|steps?|journey)\b`)

	// numberedStepPattern matches "1. do this" or "2) do that" lines.
	numberedStepPattern = regexp.MustCompile(`(?m)^\s*\d+[.)]\s+(.{3,200})$`)

	// sequenceSplitPattern splits prose into ordered steps.
	sequenceSplitPattern = regexp.MustCompile(`(?i)(?:,\s*|\s+|^)(?:first(?:ly)?|then|after that|next|afterwards|finally|and then)\b[,:]?\s*`)

	// requirementCuePattern marks a sentence stating a technical requirement.
	requirementCuePattern = regexp.MustCompile(`(?i)\b(?:need|needs|should|must|use|using|want|require[sd]?|support|store|via|with)\b`)
)

// specCategoryPatterns classifies technical sentences in priority order.
var specCategoryPatterns = []struct {
	category datatypes.SpecCategory
	pattern  *regexp.Regexp
}{
	{datatypes.SpecAuth, regexp.MustCompile(`(?i)\b(?:log ?in|sign ?(?:up|in)|passwords?|auth\w*|oauth|jwt|sso|2fa|sessions?|magic link)\b`)},
	{datatypes.SpecDatabase, regexp.MustCompile(`(?i)\b(?:database|postgres\w*|mysql|mongo\w*|sql|sqlite|schema|tables?|supabase|firebase|prisma|records?|relations?)\b`)},
	{datatypes.SpecAPI, regexp.MustCompile(`(?i)\b(?:apis?|rest|graphql|webhooks?|endpoints?|integrat\w*|stripe|paypal|twilio|sendgrid|third[- ]party)\b`)},
	{datatypes.SpecRealtime, regexp.MustCompile(`(?i)\b(?:real[- ]?time|websockets?|live|push|socket\.io|instant\w*|presence)\b`)},
	{datatypes.SpecStorage, regexp.MustCompile(`(?i)\b(?:uploads?|s3|storage|files?|images?|photos?|videos?|blobs?|cdn|cloudinary|attachments?)\b`)},
	{datatypes.SpecOther, regexp.MustCompile(`(?i)\b(?:framework|hosting|deploy\w*|performance|cach\w*|react|next\.?js|node|typescript|tailwind|docker|vercel|aws)\b`)},
}

// errSkipRecord marks a candidate record that could not be built.
var errSkipRecord = errors.New("record skipped")

// =============================================================================
// Structured Extraction
// =============================================================================

// ExtractStructured mines the whole conversation for structured records.
//
// # Description
//
// Scans every user and assistant message, independent of segmentation:
//
//   - Features from user stories, capability statements and named features,
//     merged by name, with acceptance criteria from neighbouring sentences.
//   - Workflows from numbered lists or first/then/finally prose, with roles.
//   - Technical specs from requirement sentences, categorized by keywords.
//
// A candidate record that cannot be built is skipped; extraction itself never
// fails.
//
// # Outputs
//
//   - datatypes.ExtractionResult: New slices, never nil.
func ExtractStructured(messages []datatypes.ChatMessage) datatypes.ExtractionResult {
	result := datatypes.ExtractionResult{
		Features:       []datatypes.ExtractedFeature{},
		Workflows:      []datatypes.ExtractedWorkflow{},
		TechnicalSpecs: []datatypes.ExtractedTechnicalSpec{},
	}
	featureIndex := make(map[string]int)
	workflowIndex := make(map[string]int)
	specSeen := make(map[string]bool)

	for i, m := range messages {
		if m.Role == datatypes.RoleSystem {
			continue
		}
		content := strings.ToValidUTF8(m.Content, "")

		for _, f := range featureCandidates(content, i) {
			key := normalizeName(f.Name)
			if idx, ok := featureIndex[key]; ok {
				mergeFeature(&result.Features[idx], f)
				continue
			}
			featureIndex[key] = len(result.Features)
			result.Features = append(result.Features, f)
		}

		if w, err := workflowCandidate(content, i, len(result.Workflows)+1); err == nil {
			key := normalizeName(w.Name)
			if idx, ok := workflowIndex[key]; ok {
				mergeWorkflow(&result.Workflows[idx], w)
			} else {
				workflowIndex[key] = len(result.Workflows)
				result.Workflows = append(result.Workflows, w)
			}
		}

		for _, s := range specCandidates(content, i) {
			key := strings.ToLower(s.Requirement)
			if specSeen[key] {
				continue
			}
			specSeen[key] = true
			result.TechnicalSpecs = append(result.TechnicalSpecs, s)
		}
	}
	return result
}

// featureCandidates builds feature records from one message.
func featureCandidates(content string, index int) []datatypes.ExtractedFeature {
	priority := datatypes.PriorityMedium
	switch {
	case highPriorityPattern.MatchString(content):
		priority = datatypes.PriorityHigh
	case lowPriorityPattern.MatchString(content):
		priority = datatypes.PriorityLow
	}

	var out []datatypes.ExtractedFeature
	add := func(name, description, story string) {
		f, err := newFeature(name, description, priority, index)
		if err != nil {
			return
		}
		if story != "" {
			f.UserStories = []string{story}
		}
		out = append(out, f)
	}

	for _, m := range userStoryPattern.FindAllStringSubmatch(content, -1) {
		story := strings.TrimSpace(m[0])
		story = strings.TrimRight(story, ".!?\n")
		add(m[2], m[2], story)
	}
	for _, m := range capabilityPattern.FindAllStringSubmatch(content, -1) {
		add(m[1], m[1], "")
	}
	for _, m := range namedFeaturePattern.FindAllStringSubmatch(content, -1) {
		add(m[1], "", "")
	}

	if len(out) == 0 {
		return nil
	}
	var criteria []string
	for _, s := range Sentences(content) {
		if len(s) >= 12 && criterionPattern.MatchString(s) && !capabilityPattern.MatchString(s) && !userStoryPattern.MatchString(s) {
			criteria = appendUnique(criteria, TruncateRunes(s, 200))
		}
	}
	for i := range out {
		out[i].AcceptanceCriteria = append([]string(nil), criteria...)
	}
	return out
}

// newFeature validates and normalizes one feature candidate.
func newFeature(action, description string, priority datatypes.Priority, index int) (datatypes.ExtractedFeature, error) {
	name := featureName(action)
	if len(name) < 3 {
		return datatypes.ExtractedFeature{}, fmt.Errorf("%w: feature name %q too short", errSkipRecord, name)
	}
	return datatypes.ExtractedFeature{
		Name:           name,
		Description:    strings.TrimSpace(description),
		Priority:       priority,
		MessageIndexes: []int{index},
	}, nil
}

// featureName turns an action phrase into a short title ("create and share
// recipes with friends" -> "Create And Share Recipes").
func featureName(action string) string {
	action = strings.Trim(action, " ,;:-")
	if len(action) > 11 && strings.EqualFold(action[:11], "be able to ") {
		action = action[11:]
	}
	words := strings.Fields(action)
	if len(words) > 4 {
		words = words[:4]
	}
	for i, w := range words {
		r := []rune(strings.ToLower(w))
		r[0] = unicode.ToUpper(r[0])
		words[i] = string(r)
	}
	return strings.Join(words, " ")
}

func mergeFeature(dst *datatypes.ExtractedFeature, src datatypes.ExtractedFeature) {
	if dst.Description == "" {
		dst.Description = src.Description
	}
	for _, s := range src.UserStories {
		dst.UserStories = appendUnique(dst.UserStories, s)
	}
	for _, c := range src.AcceptanceCriteria {
		dst.AcceptanceCriteria = appendUnique(dst.AcceptanceCriteria, c)
	}
	if src.Priority.Rank() < dst.Priority.Rank() {
		dst.Priority = src.Priority
	}
	last := dst.MessageIndexes[len(dst.MessageIndexes)-1]
	for _, idx := range src.MessageIndexes {
		if idx != last {
			dst.MessageIndexes = append(dst.MessageIndexes, idx)
			last = idx
		}
	}
}

// mergeWorkflow folds a later mention of the same workflow into dst. Steps
// keep first-mention order; new steps are appended.
func mergeWorkflow(dst *datatypes.ExtractedWorkflow, src datatypes.ExtractedWorkflow) {
	for _, s := range src.Steps {
		dst.Steps = appendUnique(dst.Steps, s)
	}
	for _, r := range src.Roles {
		dst.Roles = appendUnique(dst.Roles, r)
	}
	last := dst.MessageIndexes[len(dst.MessageIndexes)-1]
	for _, idx := range src.MessageIndexes {
		if idx != last {
			dst.MessageIndexes = append(dst.MessageIndexes, idx)
			last = idx
		}
	}
}

// workflowCandidate builds a workflow record from one message.
func workflowCandidate(content string, index, ordinal int) (datatypes.ExtractedWorkflow, error) {
	if !workflowCuePattern.MatchString(content) {
		return datatypes.ExtractedWorkflow{}, errSkipRecord
	}

	var steps []string
	for _, m := range numberedStepPattern.FindAllStringSubmatch(content, -1) {
		steps = append(steps, strings.TrimSpace(m[1]))
	}
	if len(steps) < 2 {
		steps = steps[:0]
		for _, part := range sequenceSplitPattern.Split(content, -1) {
			part = strings.Trim(strings.TrimSpace(part), ".,;")
			if len(part) >= 3 {
				steps = append(steps, part)
			}
		}
		if !sequenceSplitPattern.MatchString(content) {
			steps = nil
		}
	}
	if len(steps) < 2 {
		return datatypes.ExtractedWorkflow{}, fmt.Errorf("%w: workflow needs at least two steps", errSkipRecord)
	}

	name := fmt.Sprintf("Workflow %d", ordinal)
	if m := workflowNamePattern.FindStringSubmatch(content); m != nil {
		name = featureName(m[1])
	}
	return datatypes.ExtractedWorkflow{
		Name:           name,
		Steps:          steps,
		Roles:          roles(content),
		MessageIndexes: []int{index},
	}, nil
}

// specCandidates builds technical spec records from requirement sentences.
func specCandidates(content string, index int) []datatypes.ExtractedTechnicalSpec {
	var out []datatypes.ExtractedTechnicalSpec
	for _, s := range Sentences(content) {
		if len(s) < 8 {
			continue
		}
		techs := Technologies(s)
		if len(techs) == 0 && !requirementCuePattern.MatchString(s) {
			continue
		}
		category, ok := CategorizeSpec(s)
		if !ok {
			continue
		}
		out = append(out, datatypes.ExtractedTechnicalSpec{
			Category:     category,
			Requirement:  TruncateRunes(s, 240),
			Technologies: techs,
			MessageIndex: index,
		})
	}
	return out
}

// CategorizeSpec returns the technical category of a sentence.
func CategorizeSpec(s string) (datatypes.SpecCategory, bool) {
	for _, c := range specCategoryPatterns {
		if c.pattern.MatchString(s) {
			return c.category, true
		}
	}
	return "", false
}

func normalizeName(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
