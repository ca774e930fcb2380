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

import "errors"

// Sentinel errors shared across planner packages.
var (
	// ErrMalformedConcept is returned when a concept lacks a name or, when a
	// plan is requested, has no features. Fatal for plan generation.
	ErrMalformedConcept = errors.New("malformed app concept")

	// ErrEmbeddingUnavailable signals that the semantic-similarity capability
	// is absent or failed. Never fatal; callers degrade to keyword filtering.
	ErrEmbeddingUnavailable = errors.New("embedding capability unavailable")

	// ErrInvalidPlan is returned when a generated plan violates a structural
	// invariant. Indicates a planner defect.
	ErrInvalidPlan = errors.New("plan violates invariant")
)
