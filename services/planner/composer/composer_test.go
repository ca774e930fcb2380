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
	"testing"

	"github.com/AleutianAI/AleutianPlanner/services/planner/datatypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func generic(n int) []datatypes.Feature {
	out := make([]datatypes.Feature, n)
	for i := range out {
		out[i] = datatypes.Feature{
			ID:          fmt.Sprintf("f%02d", i+1),
			Name:        fmt.Sprintf("Gratitude journal %d", i+1),
			Description: "Write a daily gratitude entry",
			Priority:    datatypes.PriorityMedium,
			Domain:      datatypes.DomainFeature,
		}
	}
	return out
}

func withDomain(id string, d datatypes.FeatureDomain) datatypes.Feature {
	return datatypes.Feature{ID: id, Name: "Feature " + id, Domain: d, Priority: datatypes.PriorityMedium}
}

func countFeatures(phases []datatypes.Phase) int {
	n := 0
	for _, ph := range phases {
		n += len(ph.Features)
	}
	return n
}

func TestCompose_EmptyFeaturesYieldsSetupOnly(t *testing.T) {
	phases, err := Compose(nil, datatypes.TechnicalRequirements{NeedsAuth: true}, DefaultConfig())
	require.NoError(t, err)

	require.Len(t, phases, 1)
	assert.Equal(t, datatypes.DomainSetup, phases[0].Domain)
	assert.Equal(t, 1, phases[0].Number)
	assert.Empty(t, phases[0].Features)
}

func TestCompose_TwoGenericFeatures(t *testing.T) {
	phases, err := Compose(generic(2), datatypes.TechnicalRequirements{}, DefaultConfig())
	require.NoError(t, err)

	require.Len(t, phases, 2)
	assert.Equal(t, datatypes.DomainSetup, phases[0].Domain)
	assert.Equal(t, datatypes.DomainFeature, phases[1].Domain)
	assert.Len(t, phases[1].Features, 2)
	assert.Equal(t, "Core Features", phases[1].Name)
}

func TestCompose_TechnicalFlagsCreateDedicatedPhases(t *testing.T) {
	tech := datatypes.TechnicalRequirements{NeedsAuth: true, NeedsDatabase: true}
	phases, err := Compose(generic(10), tech, DefaultConfig())
	require.NoError(t, err)

	domains := make([]datatypes.FeatureDomain, len(phases))
	for i, ph := range phases {
		domains[i] = ph.Domain
	}
	assert.Equal(t, []datatypes.FeatureDomain{
		datatypes.DomainSetup,
		datatypes.DomainDatabase,
		datatypes.DomainAuth,
		datatypes.DomainFeature,
		datatypes.DomainFeature,
		datatypes.DomainFeature,
	}, domains)
	assert.Empty(t, phases[1].Features)
	assert.Empty(t, phases[2].Features)
	assert.Equal(t, "Core Features (Part 3)", phases[5].Name)
}

func TestCompose_OneDedicatedPhasePerDomain(t *testing.T) {
	features := []datatypes.Feature{
		withDomain("a1", datatypes.DomainAuth),
		withDomain("g1", datatypes.DomainFeature),
		withDomain("a2", datatypes.DomainAuth),
		withDomain("a3", datatypes.DomainAuth),
		withDomain("a4", datatypes.DomainAuth),
		withDomain("a5", datatypes.DomainAuth),
		withDomain("i1", datatypes.DomainIntegration),
	}
	phases, err := Compose(features, datatypes.TechnicalRequirements{}, DefaultConfig())
	require.NoError(t, err)

	authPhases := 0
	for _, ph := range phases {
		if ph.Domain == datatypes.DomainAuth {
			authPhases++
			assert.Len(t, ph.Features, 5, "dedicated phases ignore the feature cap")
		}
		for _, f := range ph.Features {
			if f.Domain.IsAlwaysSeparate() || ph.Domain.IsAlwaysSeparate() {
				assert.Equal(t, ph.Domain, f.Domain)
			}
		}
	}
	assert.Equal(t, 1, authPhases)
}

func TestCompose_TwentyFiveFeatures(t *testing.T) {
	phases, err := Compose(generic(25), datatypes.TechnicalRequirements{}, DefaultConfig())
	require.NoError(t, err)

	assert.Len(t, phases, 8, "ceil(25/4) feature phases plus setup")
	assert.Equal(t, 25, countFeatures(phases))
	for i, ph := range phases {
		assert.Equal(t, i+1, ph.Number)
		assert.LessOrEqual(t, len(ph.Features), 4)
	}
}

func TestCompose_DomainChangeStartsNewPhase(t *testing.T) {
	features := []datatypes.Feature{
		withDomain("s1", datatypes.DomainSearch),
		withDomain("c1", datatypes.DomainCoreEntity),
		withDomain("c2", datatypes.DomainCoreEntity),
	}
	phases, err := Compose(features, datatypes.TechnicalRequirements{}, DefaultConfig())
	require.NoError(t, err)

	require.Len(t, phases, 3)
	assert.Equal(t, datatypes.DomainCoreEntity, phases[1].Domain, "build order puts core entities first")
	assert.Equal(t, []string{"c1", "c2"}, phases[1].FeatureIDs())
	assert.Equal(t, datatypes.DomainSearch, phases[2].Domain)
}

func TestCompose_PriorityOrderWithinDomain(t *testing.T) {
	features := generic(3)
	features[0].Priority = datatypes.PriorityLow
	features[2].Priority = datatypes.PriorityHigh

	phases, err := Compose(features, datatypes.TechnicalRequirements{}, DefaultConfig())
	require.NoError(t, err)

	assert.Equal(t, []string{"f03", "f02", "f01"}, phases[1].FeatureIDs())
}

func TestCompose_TokenBudget(t *testing.T) {
	features := generic(8)
	long := strings.Repeat("detailed requirement text ", 60)
	for i := range features {
		features[i].Description = long
	}
	cfg := DefaultConfig()

	phases, err := Compose(features, datatypes.TechnicalRequirements{}, cfg)
	require.NoError(t, err)

	assert.Equal(t, 8, countFeatures(phases))
	for _, ph := range phases {
		assert.LessOrEqual(t, ph.TokenEstimate, cfg.MaxTokensPerPhase)
		assert.False(t, ph.OverBudget)
	}
	assert.Greater(t, len(phases), 3, "budget must split before the feature cap")
}

func TestCompose_OversizedFeatureIsClampedAndFlagged(t *testing.T) {
	features := generic(1)
	features[0].Description = strings.Repeat("x", 8000)

	phases, err := Compose(features, datatypes.TechnicalRequirements{}, DefaultConfig())
	require.NoError(t, err)

	require.Len(t, phases, 2)
	assert.Equal(t, DefaultMaxTokensPerPhase, phases[1].TokenEstimate)
	assert.True(t, phases[1].OverBudget)
	assert.Equal(t, phaseOverheadTokens+FeatureTokens(features[0]), phases[1].RequiredTokens)
	assert.Zero(t, phases[0].RequiredTokens)
}

func TestCompose_ForcedMergeReportsRequiredTokens(t *testing.T) {
	features := generic(2)
	for i := range features {
		features[i].Description = strings.Repeat("y", 3600)
	}
	cfg := DefaultConfig()
	cfg.MaxPhases = 2

	phases, err := Compose(features, datatypes.TechnicalRequirements{}, cfg)
	require.NoError(t, err)

	require.Len(t, phases, 2)
	merged := phases[1]
	assert.Len(t, merged.Features, 2)
	assert.True(t, merged.OverBudget)
	assert.Equal(t, cfg.MaxTokensPerPhase, merged.TokenEstimate)
	want := phaseOverheadTokens + FeatureTokens(features[0]) + FeatureTokens(features[1])
	assert.Equal(t, want, merged.RequiredTokens)
	assert.Greater(t, merged.RequiredTokens, cfg.MaxTokensPerPhase)
}

func TestCompose_SplitsToMinPhases(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MinPhases = 3

	phases, err := Compose(generic(3), datatypes.TechnicalRequirements{}, cfg)
	require.NoError(t, err)

	require.Len(t, phases, 3)
	assert.Len(t, phases[1].Features, 1)
	assert.Len(t, phases[2].Features, 2)
}

func TestCompose_MergesToMaxPhases(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxFeaturesPerPhase = 1
	cfg.MaxPhases = 4

	phases, err := Compose(generic(6), datatypes.TechnicalRequirements{}, cfg)
	require.NoError(t, err)

	assert.Len(t, phases, 4)
	assert.Equal(t, 6, countFeatures(phases))
	for _, ph := range phases {
		assert.LessOrEqual(t, ph.TokenEstimate, cfg.MaxTokensPerPhase)
	}
}

func TestCompose_NeverMergesDedicatedPhases(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MinPhases = 1
	cfg.MaxPhases = 2
	tech := datatypes.TechnicalRequirements{NeedsAuth: true, NeedsDatabase: true, NeedsAPI: true}

	phases, err := Compose(generic(1), tech, cfg)
	require.NoError(t, err)

	assert.Len(t, phases, 5, "setup, three dedicated and one feature phase cannot be merged")
}

func TestCompose_DoesNotModifyInput(t *testing.T) {
	features := generic(5)
	before := append([]datatypes.Feature(nil), features...)

	_, err := Compose(features, datatypes.TechnicalRequirements{}, DefaultConfig())
	require.NoError(t, err)
	assert.Equal(t, before, features)
}

func TestCompose_InvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxPhases = 1
	cfg.MinPhases = 5

	_, err := Compose(generic(2), datatypes.TechnicalRequirements{}, cfg)
	assert.Error(t, err)
}

func TestCompose_EstimatedTime(t *testing.T) {
	features := generic(2)
	features[0].Priority = datatypes.PriorityHigh

	phases, err := Compose(features, datatypes.TechnicalRequirements{}, DefaultConfig())
	require.NoError(t, err)

	assert.Equal(t, 30, phases[0].EstimatedMinutes)
	assert.Equal(t, 15+60+45, phases[1].EstimatedMinutes)
	assert.Equal(t, "2 hr", phases[1].EstimatedTime)
	assert.Len(t, phases[1].TestCriteria, 3)
}
