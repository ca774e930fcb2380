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

	"github.com/AleutianAI/AleutianPlanner/services/planner/datatypes"
)

// Default composition limits.
const (
	DefaultMaxTokensPerPhase   = 8000
	DefaultMaxFeaturesPerPhase = 4
	DefaultMinPhases           = 2
	DefaultMaxPhases           = 30
)

// Config bounds phase composition.
//
// # Fields
//
//   - MaxTokensPerPhase: Estimated token budget for one phase's generation call.
//   - MaxFeaturesPerPhase: Maximum features grouped into one non-dedicated phase.
//   - MinPhases: Plans with fewer phases have their largest phase split.
//   - MaxPhases: Plans with more phases have adjacent same-domain phases merged.
type Config struct {
	MaxTokensPerPhase   int `json:"maxTokensPerPhase" yaml:"max_tokens_per_phase" validate:"gte=1000"`
	MaxFeaturesPerPhase int `json:"maxFeaturesPerPhase" yaml:"max_features_per_phase" validate:"gte=1"`
	MinPhases           int `json:"minPhases" yaml:"min_phases" validate:"gte=1"`
	MaxPhases           int `json:"maxPhases" yaml:"max_phases" validate:"gtefield=MinPhases"`
}

// DefaultConfig returns the default composition limits.
func DefaultConfig() Config {
	return Config{
		MaxTokensPerPhase:   DefaultMaxTokensPerPhase,
		MaxFeaturesPerPhase: DefaultMaxFeaturesPerPhase,
		MinPhases:           DefaultMinPhases,
		MaxPhases:           DefaultMaxPhases,
	}
}

// WithDefaults fills zero fields from DefaultConfig.
func (c Config) WithDefaults() Config {
	d := DefaultConfig()
	if c.MaxTokensPerPhase == 0 {
		c.MaxTokensPerPhase = d.MaxTokensPerPhase
	}
	if c.MaxFeaturesPerPhase == 0 {
		c.MaxFeaturesPerPhase = d.MaxFeaturesPerPhase
	}
	if c.MinPhases == 0 {
		c.MinPhases = d.MinPhases
	}
	if c.MaxPhases == 0 {
		c.MaxPhases = d.MaxPhases
	}
	return c
}

// Validate checks the limits.
func (c Config) Validate() error {
	if err := datatypes.Validator().Struct(c); err != nil {
		return fmt.Errorf("invalid composer config: %w", err)
	}
	return nil
}
