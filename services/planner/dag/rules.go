// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package dag

import (
	"github.com/AleutianAI/AleutianPlanner/services/planner/datatypes"
)

// PhaseInfo is the per-phase view the edge rules evaluate.
type PhaseInfo struct {
	Number        int
	Domain        datatypes.FeatureDomain
	NeedsDatabase bool
	NeedsAuth     bool
}

// EdgeRule adds an edge from every earlier phase matching From to a later
// phase accepted by To.
//
// Rules only ever look backwards (from < to), which is what makes every graph
// produced from this table acyclic.
type EdgeRule struct {
	// Name identifies the rule in logs and tests.
	Name string

	// From selects the dependency phase. Nil matches every phase.
	From func(p PhaseInfo) bool

	// To selects the dependent phase.
	To func(p PhaseInfo) bool

	// ImmediateOnly restricts From to the phase directly before To.
	ImmediateOnly bool
}

func domainIs(ds ...datatypes.FeatureDomain) func(p PhaseInfo) bool {
	return func(p PhaseInfo) bool {
		for _, d := range ds {
			if p.Domain == d {
				return true
			}
		}
		return false
	}
}

func not(f func(p PhaseInfo) bool) func(p PhaseInfo) bool {
	return func(p PhaseInfo) bool { return !f(p) }
}

// DefaultRules is the domain-pair-to-edge table.
//
//	setup        -> integration phases (integration depends on setup only)
//	previous     -> every other non-setup phase
//	database     -> every later phase declaring a database need
//	auth         -> every later admin / ui-role phase, or any phase needing auth
//
// Integration phases are excluded from every rule but the first.
var DefaultRules = []EdgeRule{
	{
		Name: "integration-after-setup",
		From: domainIs(datatypes.DomainSetup),
		To:   domainIs(datatypes.DomainIntegration),
	},
	{
		Name:          "sequential",
		To:            not(domainIs(datatypes.DomainSetup, datatypes.DomainIntegration)),
		ImmediateOnly: true,
	},
	{
		Name: "database-before-data-consumers",
		From: domainIs(datatypes.DomainDatabase),
		To: func(p PhaseInfo) bool {
			return p.Domain != datatypes.DomainIntegration && p.NeedsDatabase
		},
	},
	{
		Name: "auth-before-protected",
		From: domainIs(datatypes.DomainAuth),
		To: func(p PhaseInfo) bool {
			if p.Domain == datatypes.DomainIntegration {
				return false
			}
			return p.Domain == datatypes.DomainAdmin || p.Domain == datatypes.DomainUIRole || p.NeedsAuth
		},
	},
}
