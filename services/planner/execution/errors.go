// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package execution

import "errors"

// Sentinel errors for execution management.
var (
	// ErrInvalidTransition indicates a phase state change outside the
	// pending -> in-progress -> complete|failed graph.
	ErrInvalidTransition = errors.New("invalid phase state transition")

	// ErrDependenciesIncomplete indicates a phase was started before all of
	// its dependencies completed.
	ErrDependenciesIncomplete = errors.New("phase dependencies incomplete")

	// ErrPhaseNotFound indicates a phase number outside the plan.
	ErrPhaseNotFound = errors.New("phase not found")

	// ErrInvalidOutput indicates a malformed phase output report.
	ErrInvalidOutput = errors.New("invalid phase output")
)
