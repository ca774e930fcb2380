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
	"fmt"
	"strings"

	"github.com/AleutianAI/AleutianPlanner/services/planner/datatypes"
)

// domainText holds the human-facing strings of one domain.
type domainText struct {
	title     string
	summary   string
	criterion string
}

var domainTexts = map[datatypes.FeatureDomain]domainText{
	datatypes.DomainSetup: {
		title:     "Project Setup",
		summary:   "Scaffold the project, configure tooling, routing and the shared layout.",
		criterion: "Project builds and starts without errors",
	},
	datatypes.DomainDatabase: {
		title:     "Database & Data Model",
		summary:   "Define the schema, migrations and data access layer.",
		criterion: "Schema migrations apply cleanly and records round-trip through the data layer",
	},
	datatypes.DomainAuth: {
		title:     "Authentication",
		summary:   "Implement sign-up, sign-in, sessions and route protection.",
		criterion: "Users can sign up, sign in and sign out; protected routes reject anonymous access",
	},
	datatypes.DomainCoreEntity: {
		title:     "Core Entities",
		summary:   "Build create, read, update and delete flows for the primary records.",
		criterion: "Core records can be created, listed, edited and deleted",
	},
	datatypes.DomainFeature: {
		title:     "Core Features",
		summary:   "Implement the main user-facing features.",
		criterion: "Each feature is reachable from the main navigation",
	},
	datatypes.DomainUIComponent: {
		title:     "UI Components",
		summary:   "Build the shared UI components and layouts.",
		criterion: "Components render correctly on desktop and mobile widths",
	},
	datatypes.DomainIntegration: {
		title:     "Third-party Integrations",
		summary:   "Connect external APIs and services.",
		criterion: "External calls succeed against sandbox credentials and failures are surfaced to the user",
	},
	datatypes.DomainRealTime: {
		title:     "Real-time Updates",
		summary:   "Add live updates and push channels.",
		criterion: "Changes made in one session appear in another without a reload",
	},
	datatypes.DomainStorage: {
		title:     "File Storage",
		summary:   "Handle uploads, downloads and media storage.",
		criterion: "Files upload, persist and download intact",
	},
	datatypes.DomainNotification: {
		title:     "Notifications",
		summary:   "Deliver in-app, email or push notifications.",
		criterion: "Notifications are delivered for each triggering event",
	},
	datatypes.DomainOffline: {
		title:     "Offline Support",
		summary:   "Cache data locally and synchronize when connectivity returns.",
		criterion: "The app stays usable offline and syncs changes when back online",
	},
	datatypes.DomainSearch: {
		title:     "Search & Filtering",
		summary:   "Add search, filtering and sorting.",
		criterion: "Search returns matching results and filters narrow them",
	},
	datatypes.DomainAnalytics: {
		title:     "Analytics & Reporting",
		summary:   "Build dashboards, charts and reports.",
		criterion: "Reports show figures consistent with the underlying data",
	},
	datatypes.DomainAdmin: {
		title:     "Administration",
		summary:   "Build the admin panel and management tools.",
		criterion: "Only administrators can reach the admin tools",
	},
	datatypes.DomainUIRole: {
		title:     "Role-based Views",
		summary:   "Tailor screens and permissions per user role.",
		criterion: "Each role sees only the screens and actions it is allowed",
	},
	datatypes.DomainTesting: {
		title:     "Testing",
		summary:   "Add automated tests and quality checks.",
		criterion: "The automated test suite passes",
	},
	datatypes.DomainPolish: {
		title:     "Polish & Launch Prep",
		summary:   "Refine styling, accessibility, performance and onboarding.",
		criterion: "Pages meet accessibility checks and load quickly",
	},
}

func domainTitle(d datatypes.FeatureDomain) string {
	if t, ok := domainTexts[d]; ok {
		return t.title
	}
	return string(d)
}

func partName(title string, part int) string {
	return fmt.Sprintf("%s (Part %d)", title, part)
}

// describe renders the phase description from the domain summary and the
// feature names.
func describe(d datatypes.FeatureDomain, features []datatypes.Feature) string {
	summary := domainTexts[d].summary
	if len(features) == 0 {
		return summary
	}
	names := make([]string, len(features))
	for i, f := range features {
		names[i] = f.Name
	}
	return summary + " Features: " + strings.Join(names, ", ") + "."
}

// testCriteria lists the domain criterion followed by one check per feature.
func testCriteria(d datatypes.FeatureDomain, features []datatypes.Feature) []string {
	out := make([]string, 0, len(features)+1)
	if c := domainTexts[d].criterion; c != "" {
		out = append(out, c)
	}
	for _, f := range features {
		out = append(out, fmt.Sprintf("%s works as described", f.Name))
	}
	return out
}
