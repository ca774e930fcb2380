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

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// =============================================================================
// Shared Validator Instance
// =============================================================================

// plannerValidate is the validator instance for planner datatypes.
var plannerValidate = validator.New()

// Validator returns the shared validator so that request and config types in
// other packages validate with the same rules.
func Validator() *validator.Validate {
	return plannerValidate
}

// =============================================================================
// AppConcept
// =============================================================================

// TechnicalRequirements are the yes/no flags gathered by the concept wizard.
type TechnicalRequirements struct {
	NeedsAuth       bool `json:"needsAuth" yaml:"needsAuth"`
	NeedsDatabase   bool `json:"needsDatabase" yaml:"needsDatabase"`
	NeedsRealtime   bool `json:"needsRealtime" yaml:"needsRealtime"`
	NeedsFileUpload bool `json:"needsFileUpload" yaml:"needsFileUpload"`
	NeedsAPI        bool `json:"needsAPI" yaml:"needsAPI"`
	NeedsOffline    bool `json:"needsOffline" yaml:"needsOffline"`
}

// ImpliedDomains returns the always-separate domains the flags demand even when
// no feature mentions them, in AlwaysSeparateDomains order.
func (t TechnicalRequirements) ImpliedDomains() []FeatureDomain {
	var out []FeatureDomain
	if t.NeedsAuth {
		out = append(out, DomainAuth)
	}
	if t.NeedsDatabase {
		out = append(out, DomainDatabase)
	}
	if t.NeedsRealtime {
		out = append(out, DomainRealTime)
	}
	if t.NeedsOffline {
		out = append(out, DomainOffline)
	}
	if t.NeedsAPI {
		out = append(out, DomainIntegration)
	}
	return out
}

// Role is a user role of the planned app.
type Role struct {
	Name         string   `json:"name" yaml:"name" validate:"required"`
	Capabilities []string `json:"capabilities,omitempty" yaml:"capabilities,omitempty"`
}

// Workflow is a named multi-step user journey captured by the wizard.
type Workflow struct {
	Name  string   `json:"name" yaml:"name" validate:"required"`
	Steps []string `json:"steps,omitempty" yaml:"steps,omitempty"`
	Roles []string `json:"roles,omitempty" yaml:"roles,omitempty"`
}

// AppConcept is the finalized, user-provided app description seeding planning.
//
// # Description
//
// AppConcept is produced by the external conversational wizard. The planner
// treats it as an immutable snapshot: every operation copies what it needs and
// never writes back.
//
// # Validation
//
// Uses go-playground/validator:
//   - Name: required
//   - Features: each element validated (id and name required)
//
// The "at least one feature" rule only applies when a plan is explicitly
// requested, see ValidateForPlanning.
type AppConcept struct {
	Name        string                `json:"name" yaml:"name" validate:"required"`
	Description string                `json:"description" yaml:"description"`
	Features    []Feature             `json:"features" yaml:"features" validate:"dive"`
	Technical   TechnicalRequirements `json:"technical" yaml:"technical"`
	Roles       []Role                `json:"roles,omitempty" yaml:"roles,omitempty" validate:"dive"`
	Workflows   []Workflow            `json:"workflows,omitempty" yaml:"workflows,omitempty" validate:"dive"`
}

// Validate checks structural validity of the concept.
func (c *AppConcept) Validate() error {
	if c == nil {
		return fmt.Errorf("%w: concept is nil", ErrMalformedConcept)
	}
	if err := plannerValidate.Struct(c); err != nil {
		return fmt.Errorf("%w: %s", ErrMalformedConcept, describeValidation(err))
	}
	seen := make(map[string]bool, len(c.Features))
	for _, f := range c.Features {
		if seen[f.ID] {
			return fmt.Errorf("%w: duplicate feature id %q", ErrMalformedConcept, f.ID)
		}
		seen[f.ID] = true
	}
	return nil
}

// ValidateForPlanning is Validate plus the requirement that the concept lists
// at least one feature.
func (c *AppConcept) ValidateForPlanning() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if len(c.Features) == 0 {
		return fmt.Errorf("%w: feature list is empty", ErrMalformedConcept)
	}
	return nil
}

// Clone returns a deep copy so callers can hold a snapshot safely.
func (c *AppConcept) Clone() *AppConcept {
	if c == nil {
		return nil
	}
	out := *c
	out.Features = append([]Feature(nil), c.Features...)
	out.Roles = make([]Role, len(c.Roles))
	for i, r := range c.Roles {
		r.Capabilities = append([]string(nil), r.Capabilities...)
		out.Roles[i] = r
	}
	out.Workflows = make([]Workflow, len(c.Workflows))
	for i, w := range c.Workflows {
		w.Steps = append([]string(nil), w.Steps...)
		w.Roles = append([]string(nil), w.Roles...)
		out.Workflows[i] = w
	}
	return &out
}

// describeValidation flattens validator errors into a short message.
func describeValidation(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
	}
	return strings.Join(parts, "; ")
}
