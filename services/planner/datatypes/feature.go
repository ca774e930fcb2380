// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package datatypes defines the shared data model of the planner.
//
// # Description
//
// The planner turns an AppConcept plus the raw chat log into a DynamicPhasePlan
// and, at execution time, into per-phase PhaseContext bundles. Every package in
// services/planner exchanges the types declared here so that the JSON contract
// consumed by the UI checklist and the code-generation caller lives in one place.
//
// # Thread Safety
//
// All types are plain values. Functions in this package never mutate their
// inputs; callers may share snapshots across goroutines as long as they do not
// mutate them either.
package datatypes

// =============================================================================
// Priority
// =============================================================================

// Priority is the user-assigned importance of a feature.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// Rank orders priorities for sorting. Lower ranks sort first.
//
// Unknown or empty priorities rank as medium.
func (p Priority) Rank() int {
	switch p {
	case PriorityHigh:
		return 0
	case PriorityLow:
		return 2
	default:
		return 1
	}
}

// =============================================================================
// Feature Domains
// =============================================================================

// FeatureDomain is the categorical tag for a feature's cross-cutting concern.
type FeatureDomain string

const (
	DomainSetup        FeatureDomain = "setup"
	DomainDatabase     FeatureDomain = "database"
	DomainAuth         FeatureDomain = "auth"
	DomainCoreEntity   FeatureDomain = "core-entity"
	DomainFeature      FeatureDomain = "feature"
	DomainUIComponent  FeatureDomain = "ui-component"
	DomainIntegration  FeatureDomain = "integration"
	DomainRealTime     FeatureDomain = "real-time"
	DomainStorage      FeatureDomain = "storage"
	DomainNotification FeatureDomain = "notification"
	DomainOffline      FeatureDomain = "offline"
	DomainSearch       FeatureDomain = "search"
	DomainAnalytics    FeatureDomain = "analytics"
	DomainAdmin        FeatureDomain = "admin"
	DomainUIRole       FeatureDomain = "ui-role"
	DomainTesting      FeatureDomain = "testing"
	DomainPolish       FeatureDomain = "polish"
)

// AllDomains lists every FeatureDomain in declaration order.
var AllDomains = []FeatureDomain{
	DomainSetup, DomainDatabase, DomainAuth, DomainCoreEntity, DomainFeature,
	DomainUIComponent, DomainIntegration, DomainRealTime, DomainStorage,
	DomainNotification, DomainOffline, DomainSearch, DomainAnalytics,
	DomainAdmin, DomainUIRole, DomainTesting, DomainPolish,
}

// AlwaysSeparateDomains are never merged with another domain's features.
//
// The order is also the classifier's priority order: a feature mentioning both
// "login" and "database" is classified as auth.
var AlwaysSeparateDomains = []FeatureDomain{
	DomainAuth, DomainDatabase, DomainRealTime, DomainOffline, DomainIntegration,
}

// DomainBuildOrder is the order in which domains are laid out in a plan.
//
// Storage before consumers, cross-cutting concerns after the features that
// use them, polish last.
var DomainBuildOrder = []FeatureDomain{
	DomainSetup, DomainDatabase, DomainAuth, DomainCoreEntity, DomainFeature,
	DomainUIComponent, DomainStorage, DomainSearch, DomainNotification,
	DomainRealTime, DomainIntegration, DomainOffline, DomainAnalytics,
	DomainAdmin, DomainUIRole, DomainTesting, DomainPolish,
}

var (
	alwaysSeparateSet = func() map[FeatureDomain]bool {
		m := make(map[FeatureDomain]bool, len(AlwaysSeparateDomains))
		for _, d := range AlwaysSeparateDomains {
			m[d] = true
		}
		return m
	}()

	buildRank = func() map[FeatureDomain]int {
		m := make(map[FeatureDomain]int, len(DomainBuildOrder))
		for i, d := range DomainBuildOrder {
			m[d] = i
		}
		return m
	}()
)

// IsAlwaysSeparate reports whether d must occupy a dedicated phase.
func (d FeatureDomain) IsAlwaysSeparate() bool {
	return alwaysSeparateSet[d]
}

// IsValid reports whether d is one of the 17 known domains.
func (d FeatureDomain) IsValid() bool {
	_, ok := buildRank[d]
	return ok
}

// BuildRank returns the position of d in DomainBuildOrder.
// Unknown domains sort after every known domain.
func (d FeatureDomain) BuildRank() int {
	if r, ok := buildRank[d]; ok {
		return r
	}
	return len(DomainBuildOrder)
}

// ParseDomain converts a string into a FeatureDomain.
//
// # Outputs
//
//   - FeatureDomain: The parsed domain.
//   - bool: False if s is not a known domain.
func ParseDomain(s string) (FeatureDomain, bool) {
	d := FeatureDomain(s)
	return d, d.IsValid()
}

// =============================================================================
// Feature
// =============================================================================

// Feature is one user-facing capability of the app being planned.
//
// Domain is assigned by the classifier. Any value supplied on input is ignored
// by the plan generator.
type Feature struct {
	ID          string        `json:"id" yaml:"id" validate:"required"`
	Name        string        `json:"name" yaml:"name" validate:"required"`
	Description string        `json:"description" yaml:"description"`
	Priority    Priority      `json:"priority" yaml:"priority" validate:"omitempty,oneof=high medium low"`
	Domain      FeatureDomain `json:"domain,omitempty" yaml:"-"`
}

// Text returns the name and description joined for keyword matching.
func (f Feature) Text() string {
	if f.Description == "" {
		return f.Name
	}
	return f.Name + " " + f.Description
}
