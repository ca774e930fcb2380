// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package composer groups classified features into an ordered, budgeted list
// of build phases and assembles full plans.
//
// # Description
//
// Composition is a greedy bin-packing pass:
//
//  1. Phase 1 is always project setup.
//  2. Every always-separate domain present among the features, or implied by a
//     technical flag, gets exactly one dedicated phase.
//  3. Remaining features are sorted by build order then priority and packed
//     until the token budget, the feature cap or a domain change closes the
//     running phase.
//  4. Phase counts outside [MinPhases, MaxPhases] are corrected by splitting
//     or merging same-domain phases. Dedicated phases are never touched.
//
// Token estimates use the chars/4 proxy from the conversation package.
//
// # Thread Safety
//
// Compose is a pure function. Generator is safe for concurrent use.
package composer

import (
	"sort"

	"github.com/AleutianAI/AleutianPlanner/services/planner/conversation"
	"github.com/AleutianAI/AleutianPlanner/services/planner/datatypes"
)

// Token estimate constants.
const (
	// featureBaseTokens is the generated-code floor of any feature.
	featureBaseTokens = 600

	// featureTextMultiplier scales description tokens to generated tokens.
	featureTextMultiplier = 6

	// phaseOverheadTokens covers prompt framing and shared context.
	phaseOverheadTokens = 400

	// setupTokens is the fixed estimate of the scaffolding phase.
	setupTokens = 1200
)

// Time estimate constants, in minutes.
const (
	setupMinutes          = 30
	phaseOverheadMinutes  = 15
	flagOnlyPhaseMinutes  = 60
	highPriorityMinutes   = 60
	mediumPriorityMinutes = 45
	lowPriorityMinutes    = 30
)

// draft is a phase under construction.
type draft struct {
	domain    datatypes.FeatureDomain
	features  []datatypes.Feature
	tokens    int
	dedicated bool
}

func newDraft(d datatypes.FeatureDomain, dedicated bool) *draft {
	return &draft{domain: d, tokens: phaseOverheadTokens, dedicated: dedicated}
}

func (d *draft) add(f datatypes.Feature) {
	d.features = append(d.features, f)
	d.tokens += FeatureTokens(f)
}

// FeatureTokens estimates the generation tokens of a single feature.
func FeatureTokens(f datatypes.Feature) int {
	return featureBaseTokens + featureTextMultiplier*conversation.EstimateTokens(f.Text())
}

// Compose produces the ordered phase list for classified features.
//
// # Description
//
// Features must already carry their Domain. Dependencies are left empty for
// the resolver. An empty feature list yields the setup phase only, even when
// technical flags are set.
//
// # Inputs
//
//   - features: Classified features. Not modified.
//   - tech: Technical flags that imply dedicated phases.
//   - cfg: Composition limits. Zero fields take defaults.
//
// # Outputs
//
//   - []datatypes.Phase: Phases numbered 1..n.
//   - error: Non-nil only for an invalid cfg.
//
// # Limitations
//
//   - MaxPhases is best effort. Dedicated phases and phases of distinct
//     domains are never merged, so a very small MaxPhases can be exceeded.
func Compose(features []datatypes.Feature, tech datatypes.TechnicalRequirements, cfg Config) ([]datatypes.Phase, error) {
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if len(features) == 0 {
		return []datatypes.Phase{setupPhase(cfg)}, nil
	}

	drafts := dedicatedDrafts(features, tech)
	drafts = append(drafts, groupDrafts(features, cfg)...)
	sort.SliceStable(drafts, func(i, j int) bool {
		return drafts[i].domain.BuildRank() < drafts[j].domain.BuildRank()
	})

	drafts = splitToMin(drafts, cfg.MinPhases-1)
	drafts = mergeToMax(drafts, cfg.MaxPhases-1, cfg.MaxTokensPerPhase)

	return render(drafts, cfg), nil
}

// dedicatedDrafts creates one phase per always-separate domain in use.
func dedicatedDrafts(features []datatypes.Feature, tech datatypes.TechnicalRequirements) []*draft {
	implied := make(map[datatypes.FeatureDomain]bool)
	for _, d := range tech.ImpliedDomains() {
		implied[d] = true
	}

	var out []*draft
	for _, d := range datatypes.AlwaysSeparateDomains {
		dr := newDraft(d, true)
		for _, f := range features {
			if f.Domain == d {
				dr.add(f)
			}
		}
		if len(dr.features) == 0 && !implied[d] {
			continue
		}
		if len(dr.features) == 0 {
			dr.tokens += featureBaseTokens
		}
		out = append(out, dr)
	}
	return out
}

// groupDrafts packs the non-dedicated features greedily.
func groupDrafts(features []datatypes.Feature, cfg Config) []*draft {
	remaining := make([]datatypes.Feature, 0, len(features))
	for _, f := range features {
		if !f.Domain.IsAlwaysSeparate() {
			remaining = append(remaining, f)
		}
	}
	sort.SliceStable(remaining, func(i, j int) bool {
		ri, rj := remaining[i].Domain.BuildRank(), remaining[j].Domain.BuildRank()
		if ri != rj {
			return ri < rj
		}
		return remaining[i].Priority.Rank() < remaining[j].Priority.Rank()
	})

	var out []*draft
	var cur *draft
	for _, f := range remaining {
		if cur != nil {
			full := len(cur.features) >= cfg.MaxFeaturesPerPhase
			overBudget := cur.tokens+FeatureTokens(f) > cfg.MaxTokensPerPhase
			if cur.domain != f.Domain || full || overBudget {
				out = append(out, cur)
				cur = nil
			}
		}
		if cur == nil {
			cur = newDraft(f.Domain, false)
		}
		cur.add(f)
	}
	if cur != nil {
		out = append(out, cur)
	}
	return out
}

// splitToMin halves the largest splittable phase until there are at least
// want non-setup phases or nothing can be split.
func splitToMin(drafts []*draft, want int) []*draft {
	for len(drafts) < want {
		idx := -1
		for i, d := range drafts {
			if d.dedicated || len(d.features) < 2 {
				continue
			}
			if idx < 0 || d.tokens > drafts[idx].tokens {
				idx = i
			}
		}
		if idx < 0 {
			return drafts
		}

		src := drafts[idx]
		half := len(src.features) / 2
		left, right := newDraft(src.domain, false), newDraft(src.domain, false)
		for _, f := range src.features[:half] {
			left.add(f)
		}
		for _, f := range src.features[half:] {
			right.add(f)
		}

		next := make([]*draft, 0, len(drafts)+1)
		next = append(next, drafts[:idx]...)
		next = append(next, left, right)
		next = append(next, drafts[idx+1:]...)
		drafts = next
	}
	return drafts
}

// mergeToMax merges adjacent same-domain phases until there are at most
// limit non-setup phases. Merges that stay within budget are preferred.
func mergeToMax(drafts []*draft, limit, budget int) []*draft {
	for len(drafts) > limit {
		idx := cheapestMerge(drafts, budget)
		if idx < 0 {
			idx = cheapestMerge(drafts, 0)
		}
		if idx < 0 {
			return drafts
		}

		a, b := drafts[idx], drafts[idx+1]
		merged := newDraft(a.domain, false)
		for _, f := range a.features {
			merged.add(f)
		}
		for _, f := range b.features {
			merged.add(f)
		}

		next := make([]*draft, 0, len(drafts)-1)
		next = append(next, drafts[:idx]...)
		next = append(next, merged)
		next = append(next, drafts[idx+2:]...)
		drafts = next
	}
	return drafts
}

// cheapestMerge returns the index of the mergeable adjacent pair with the
// smallest combined estimate, or -1. A budget of 0 disables the budget check.
func cheapestMerge(drafts []*draft, budget int) int {
	best, bestTokens := -1, 0
	for i := 0; i+1 < len(drafts); i++ {
		a, b := drafts[i], drafts[i+1]
		if a.domain != b.domain || a.dedicated || b.dedicated || a.domain.IsAlwaysSeparate() {
			continue
		}
		combined := a.tokens + b.tokens - phaseOverheadTokens
		if budget > 0 && combined > budget {
			continue
		}
		if best < 0 || combined < bestTokens {
			best, bestTokens = i, combined
		}
	}
	return best
}

// render numbers the drafts after the setup phase and fills descriptive fields.
func render(drafts []*draft, cfg Config) []datatypes.Phase {
	phases := make([]datatypes.Phase, 0, len(drafts)+1)
	phases = append(phases, setupPhase(cfg))

	totals := make(map[datatypes.FeatureDomain]int)
	for _, d := range drafts {
		totals[d.domain]++
	}
	parts := make(map[datatypes.FeatureDomain]int)

	for i, d := range drafts {
		parts[d.domain]++
		name := domainTitle(d.domain)
		if totals[d.domain] > 1 {
			name = partName(name, parts[d.domain])
		}

		minutes := phaseOverheadMinutes
		if len(d.features) == 0 {
			minutes += flagOnlyPhaseMinutes
		}
		for _, f := range d.features {
			minutes += featureMinutes(f)
		}

		phases = append(phases, datatypes.Phase{
			Number:           i + 2,
			Name:             name,
			Description:      describe(d.domain, d.features),
			Domain:           d.domain,
			Features:         append([]datatypes.Feature{}, d.features...),
			EstimatedTime:    datatypes.FormatMinutes(minutes),
			EstimatedMinutes: minutes,
			Dependencies:     []int{},
			TokenEstimate:    clamp(d.tokens, cfg.MaxTokensPerPhase),
			OverBudget:       d.tokens > cfg.MaxTokensPerPhase,
			RequiredTokens:   overflow(d.tokens, cfg.MaxTokensPerPhase),
			TestCriteria:     testCriteria(d.domain, d.features),
		})
	}
	return phases
}

func setupPhase(cfg Config) datatypes.Phase {
	return datatypes.Phase{
		Number:           1,
		Name:             domainTitle(datatypes.DomainSetup),
		Description:      describe(datatypes.DomainSetup, nil),
		Domain:           datatypes.DomainSetup,
		Features:         []datatypes.Feature{},
		EstimatedTime:    datatypes.FormatMinutes(setupMinutes),
		EstimatedMinutes: setupMinutes,
		Dependencies:     []int{},
		TokenEstimate:    clamp(setupTokens, cfg.MaxTokensPerPhase),
		OverBudget:       setupTokens > cfg.MaxTokensPerPhase,
		RequiredTokens:   overflow(setupTokens, cfg.MaxTokensPerPhase),
		TestCriteria:     testCriteria(datatypes.DomainSetup, nil),
	}
}

func featureMinutes(f datatypes.Feature) int {
	switch f.Priority {
	case datatypes.PriorityHigh:
		return highPriorityMinutes
	case datatypes.PriorityLow:
		return lowPriorityMinutes
	default:
		return mediumPriorityMinutes
	}
}

func clamp(v, limit int) int {
	if v > limit {
		return limit
	}
	return v
}

// overflow returns v when it exceeds limit, else 0.
func overflow(v, limit int) int {
	if v > limit {
		return v
	}
	return 0
}
