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

// PhaseState is the execution state of one phase.
type PhaseState string

const (
	StatePending    PhaseState = "pending"
	StateInProgress PhaseState = "in-progress"
	StateComplete   PhaseState = "complete"
	StateFailed     PhaseState = "failed"
)

// transitions is the phase state graph:
//
//	pending     -> in-progress : phase started
//	in-progress -> complete    : generation succeeded
//	in-progress -> failed      : generation failed
//	failed      -> in-progress : retry
//
// complete is terminal.
var transitions = map[PhaseState]map[PhaseState]bool{
	StatePending:    {StateInProgress: true},
	StateInProgress: {StateComplete: true, StateFailed: true},
	StateFailed:     {StateInProgress: true},
	StateComplete:   {},
}

// CanTransition reports whether a phase may move from one state to another.
func CanTransition(from, to PhaseState) bool {
	return transitions[from][to]
}

// IsTerminal reports whether no transition leaves s.
func (s PhaseState) IsTerminal() bool {
	return len(transitions[s]) == 0
}
