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

import "time"

// =============================================================================
// Chat Messages
// =============================================================================

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// ChatMessage is one entry of the ordered wizard conversation.
type ChatMessage struct {
	Role      string    `json:"role" yaml:"role" validate:"required,oneof=user assistant system"`
	Content   string    `json:"content" yaml:"content"`
	Timestamp time.Time `json:"timestamp,omitempty" yaml:"timestamp,omitempty"`
}

// =============================================================================
// Segments
// =============================================================================

// Topic is the label of a conversation segment.
type Topic string

const (
	TopicAppOverview    Topic = "app-overview"
	TopicFeatures       Topic = "features"
	TopicUIDesign       Topic = "ui-design"
	TopicDataModel      Topic = "data-model"
	TopicAuthentication Topic = "authentication"
	TopicWorkflows      Topic = "workflows"
	TopicIntegrations   Topic = "integrations"
	TopicTechnical      Topic = "technical"
	TopicDeployment     Topic = "deployment"
	TopicGeneral        Topic = "general"
)

// AllTopics lists the 10 topic labels. The order breaks classification ties.
var AllTopics = []Topic{
	TopicAuthentication, TopicDataModel, TopicIntegrations, TopicWorkflows,
	TopicUIDesign, TopicFeatures, TopicTechnical, TopicDeployment,
	TopicAppOverview, TopicGeneral,
}

// Importance ranks segments for context selection.
type Importance string

const (
	ImportanceHigh   Importance = "high"
	ImportanceMedium Importance = "medium"
	ImportanceLow    Importance = "low"
)

// Rank orders importance for sorting. Lower ranks sort first.
func (i Importance) Rank() int {
	switch i {
	case ImportanceHigh:
		return 0
	case ImportanceMedium:
		return 1
	default:
		return 2
	}
}

// SegmentData is the structured data noticed inside one segment.
type SegmentData struct {
	FeatureMentions []string `json:"featureMentions,omitempty"`
	Technologies    []string `json:"technologies,omitempty"`
	Roles           []string `json:"roles,omitempty"`
}

// ConversationSegment is a contiguous, topic-tagged slice of the conversation.
//
// StartIndex and EndIndex are inclusive message indexes.
type ConversationSegment struct {
	ID            string      `json:"id"`
	Topic         Topic       `json:"topic"`
	StartIndex    int         `json:"startIndex"`
	EndIndex      int         `json:"endIndex"`
	KeyPoints     []string    `json:"keyPoints"`
	ExtractedData SegmentData `json:"extractedData"`
	Importance    Importance  `json:"importance"`
	TokenEstimate int         `json:"tokenEstimate"`
}

// MessageCount returns the number of messages covered by the segment.
func (s ConversationSegment) MessageCount() int {
	return s.EndIndex - s.StartIndex + 1
}

// =============================================================================
// Structured Extraction
// =============================================================================

// ExtractedFeature is a feature record mined from the conversation.
type ExtractedFeature struct {
	Name               string   `json:"name"`
	Description        string   `json:"description"`
	UserStories        []string `json:"userStories,omitempty"`
	AcceptanceCriteria []string `json:"acceptanceCriteria,omitempty"`
	Priority           Priority `json:"priority"`
	MessageIndexes     []int    `json:"messageIndexes"`
}

// ExtractedWorkflow is a multi-step journey mined from the conversation.
type ExtractedWorkflow struct {
	Name           string   `json:"name"`
	Steps          []string `json:"steps"`
	Roles          []string `json:"roles,omitempty"`
	MessageIndexes []int    `json:"messageIndexes"`
}

// SpecCategory groups technical specs.
type SpecCategory string

const (
	SpecAuth     SpecCategory = "auth"
	SpecDatabase SpecCategory = "database"
	SpecAPI      SpecCategory = "api"
	SpecRealtime SpecCategory = "realtime"
	SpecStorage  SpecCategory = "storage"
	SpecOther    SpecCategory = "other"
)

// ExtractedTechnicalSpec is one technical requirement or decision.
type ExtractedTechnicalSpec struct {
	Category     SpecCategory `json:"category"`
	Requirement  string       `json:"requirement"`
	Technologies []string     `json:"technologies,omitempty"`
	MessageIndex int          `json:"messageIndex"`
}

// ExtractionResult is the long-term structured memory of one conversation.
type ExtractionResult struct {
	Features       []ExtractedFeature       `json:"features"`
	Workflows      []ExtractedWorkflow      `json:"workflows"`
	TechnicalSpecs []ExtractedTechnicalSpec `json:"technicalSpecs"`
}

// =============================================================================
// Phase Context
// =============================================================================

// PhaseContext is the bounded context bundle handed to one phase's
// code-generation call. It is computed fresh and never stored.
type PhaseContext struct {
	PhaseType             FeatureDomain            `json:"phaseType"`
	RelevantSegments      []ConversationSegment    `json:"relevantSegments"`
	ExtractedRequirements []string                 `json:"extractedRequirements"`
	UserDecisions         []string                 `json:"userDecisions"`
	TechnicalNotes        []string                 `json:"technicalNotes"`
	FeatureSpecs          []ExtractedFeature       `json:"featureSpecs"`
	WorkflowSpecs         []ExtractedWorkflow      `json:"workflowSpecs"`
	TechnicalSpecs        []ExtractedTechnicalSpec `json:"technicalSpecs"`
	ValidationRules       []string                 `json:"validationRules"`
	UIPatterns            []string                 `json:"uiPatterns"`
	ContextSummary        string                   `json:"contextSummary"`
	TokenEstimate         int                      `json:"tokenEstimate"`
	SemanticUsed          bool                     `json:"semanticUsed"`
}
