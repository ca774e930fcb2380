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
	"errors"
	"fmt"
)

// Sentinel errors for the dag package.
var (
	// ErrCycleDetected is returned when the phase graph contains a cycle.
	// Unreachable for graphs built by Resolve; seeing it means a resolver defect.
	ErrCycleDetected = errors.New("cycle detected in phase graph")

	// ErrUnknownPhase is returned when an edge references a phase that does not exist.
	ErrUnknownPhase = errors.New("phase not found")

	// ErrBackwardEdge is returned when a dependency does not point to a strictly
	// smaller phase number.
	ErrBackwardEdge = errors.New("dependency must reference an earlier phase")
)

// PhaseError wraps an error with the phase that caused it.
type PhaseError struct {
	Phase int
	Err   error
}

// Error returns the error message.
func (e *PhaseError) Error() string {
	return fmt.Sprintf("phase %d: %v", e.Phase, e.Err)
}

// Unwrap returns the underlying error.
func (e *PhaseError) Unwrap() error {
	return e.Err
}

// CycleError provides details about a detected cycle.
type CycleError struct {
	Path []int
}

// Error returns the cycle description.
func (e *CycleError) Error() string {
	return fmt.Sprintf("cycle detected: %v", e.Path)
}

// Unwrap lets errors.Is match ErrCycleDetected.
func (e *CycleError) Unwrap() error {
	return ErrCycleDetected
}

// NewCycleError creates a CycleError.
func NewCycleError(path []int) *CycleError {
	return &CycleError{Path: path}
}
