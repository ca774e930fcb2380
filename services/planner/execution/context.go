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

import (
	"fmt"
	"strings"

	"github.com/AleutianAI/AleutianPlanner/services/planner/datatypes"
)

// PriorPhase is the reported output of one completed earlier phase.
type PriorPhase struct {
	Number    int      `json:"number"`
	Name      string   `json:"name"`
	Libraries []string `json:"libraries,omitempty"`
	Files     []string `json:"files,omitempty"`
	Notes     string   `json:"notes,omitempty"`
}

// ExecutionContext is the input of one phase's code-generation call.
type ExecutionContext struct {
	ConceptName  string                  `json:"conceptName"`
	TotalPhases  int                     `json:"totalPhases"`
	Phase        datatypes.Phase         `json:"phase"`
	PhaseContext *datatypes.PhaseContext `json:"phaseContext"`
	PriorPhases  []PriorPhase            `json:"priorPhases"`

	// Libraries and Files are the deduplicated rollup of PriorPhases in
	// phase order.
	Libraries []string `json:"libraries"`
	Files     []string `json:"files"`
}

func (c *ExecutionContext) rollup() {
	c.Libraries = make([]string, 0)
	c.Files = make([]string, 0)
	if c.PriorPhases == nil {
		c.PriorPhases = make([]PriorPhase, 0)
	}
	seenLib := make(map[string]bool)
	seenFile := make(map[string]bool)
	for _, p := range c.PriorPhases {
		for _, l := range p.Libraries {
			if key := strings.ToLower(l); !seenLib[key] {
				seenLib[key] = true
				c.Libraries = append(c.Libraries, l)
			}
		}
		for _, f := range p.Files {
			if !seenFile[f] {
				seenFile[f] = true
				c.Files = append(c.Files, f)
			}
		}
	}
}

// Prompt renders the context as one prompt-ready string.
//
// # Description
//
// Sections, in order: phase header and description, features, test
// criteria, work completed by earlier phases, and the phase's conversation
// context. Empty sections are omitted. Output is deterministic for a given
// ExecutionContext.
func (c *ExecutionContext) Prompt() string {
	var b strings.Builder
	ph := c.Phase

	fmt.Fprintf(&b, "# %s: Phase %d of %d: %s\n", c.ConceptName, ph.Number, c.TotalPhases, ph.Name)
	if ph.Description != "" {
		fmt.Fprintf(&b, "\n%s\n", ph.Description)
	}

	if len(ph.Features) > 0 {
		b.WriteString("\n## Features\n")
		for _, f := range ph.Features {
			if f.Description != "" {
				fmt.Fprintf(&b, "- %s (%s): %s\n", f.Name, f.Priority, f.Description)
			} else {
				fmt.Fprintf(&b, "- %s (%s)\n", f.Name, f.Priority)
			}
		}
	}

	if len(ph.TestCriteria) > 0 {
		b.WriteString("\n## Test Criteria\n")
		for _, tc := range ph.TestCriteria {
			fmt.Fprintf(&b, "- %s\n", tc)
		}
	}

	if len(c.PriorPhases) > 0 {
		b.WriteString("\n## Completed Phases\n")
		for _, p := range c.PriorPhases {
			if p.Notes != "" {
				fmt.Fprintf(&b, "- Phase %d, %s: %s\n", p.Number, p.Name, p.Notes)
			} else {
				fmt.Fprintf(&b, "- Phase %d, %s\n", p.Number, p.Name)
			}
		}
		if len(c.Libraries) > 0 {
			fmt.Fprintf(&b, "\nLibraries in use: %s\n", strings.Join(c.Libraries, ", "))
		}
		if len(c.Files) > 0 {
			b.WriteString("\nExisting files:\n")
			for _, f := range c.Files {
				fmt.Fprintf(&b, "- %s\n", f)
			}
		}
	}

	if c.PhaseContext != nil && c.PhaseContext.ContextSummary != "" {
		fmt.Fprintf(&b, "\n## Conversation Context\n%s\n", c.PhaseContext.ContextSummary)
	}

	return strings.TrimRight(b.String(), "\n")
}
