// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ux

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/AleutianAI/AleutianPlanner/services/planner/datatypes"
)

// PhaseMark is the checklist state shown next to a phase.
type PhaseMark string

const (
	MarkPending PhaseMark = "pending"
	MarkActive  PhaseMark = "in-progress"
	MarkDone    PhaseMark = "complete"
	MarkFailed  PhaseMark = "failed"
)

func (m PhaseMark) icon() Icon {
	switch m {
	case MarkActive:
		return IconActive
	case MarkDone:
		return IconSuccess
	case MarkFailed:
		return IconError
	default:
		return IconPending
	}
}

// Plan prints a plan as a phase checklist.
//
// # Description
//
// Each phase shows its number, name, domain, estimate and dependencies,
// followed by its features. marks may be nil; missing phases are pending.
// When any phase is marked done a progress bar closes the list.
//
// Machine mode prints one tab-separated PHASE line per phase and one FEATURE
// line per feature:
//
//	PHASE	2	Database	database	45m	1	pending
//	FEATURE	2	f3	Recipe storage	high
func (p *Printer) Plan(plan *datatypes.DynamicPhasePlan, marks map[int]PhaseMark) {
	if plan == nil {
		return
	}
	if p.mode == ModeMachine {
		p.planMachine(plan, marks)
		return
	}

	p.Title(fmt.Sprintf("%s: %d phases", plan.ConceptName, plan.TotalPhases))
	fmt.Fprintln(p.w, Styles.Muted.Render(fmt.Sprintf("%s complexity, about %s", plan.Complexity, plan.EstimatedTotalTime)))
	fmt.Fprintln(p.w)

	done := 0
	for _, ph := range plan.Phases {
		mark := markOf(marks, ph.Number)
		if mark == MarkDone {
			done++
		}
		meta := []string{string(ph.Domain), ph.EstimatedTime}
		if len(ph.Dependencies) > 0 {
			meta = append(meta, "after "+joinInts(ph.Dependencies))
		}
		line := fmt.Sprintf("%s %2d. %s  %s", mark.icon().Render(), ph.Number,
			Styles.Bold.Render(ph.Name), Styles.Muted.Render(strings.Join(meta, " · ")))
		if ph.OverBudget {
			line += " " + IconWarning.Render() + " " + Styles.Warning.Render("over token budget")
		}
		fmt.Fprintln(p.w, line)

		for _, f := range ph.Features {
			fmt.Fprintf(p.w, "      %s %s %s\n", IconBullet.Render(), f.Name,
				Styles.Muted.Render("("+string(f.Priority)+")"))
		}
	}

	if done > 0 {
		fmt.Fprintln(p.w)
		fmt.Fprintln(p.w, p.ProgressBar(done, plan.TotalPhases, 30))
	}
}

func (p *Printer) planMachine(plan *datatypes.DynamicPhasePlan, marks map[int]PhaseMark) {
	for _, ph := range plan.Phases {
		fmt.Fprintf(p.w, "PHASE\t%d\t%s\t%s\t%s\t%s\t%s\n",
			ph.Number, ph.Name, ph.Domain, ph.EstimatedTime, joinInts(ph.Dependencies), markOf(marks, ph.Number))
		for _, f := range ph.Features {
			fmt.Fprintf(p.w, "FEATURE\t%d\t%s\t%s\t%s\n", ph.Number, f.ID, f.Name, f.Priority)
		}
	}
}

// PhaseContext prints the lists of a phase context and its summary.
func (p *Printer) PhaseContext(pc *datatypes.PhaseContext) {
	if pc == nil {
		return
	}
	if p.mode == ModeMachine {
		fmt.Fprintf(p.w, "CONTEXT\t%s\tsegments=%d\ttokens=%d\tsemantic=%t\n",
			pc.PhaseType, len(pc.RelevantSegments), pc.TokenEstimate, pc.SemanticUsed)
		fmt.Fprintln(p.w, pc.ContextSummary)
		return
	}

	p.Title(fmt.Sprintf("Context for %s phase", pc.PhaseType))
	semantic := "keyword only"
	if pc.SemanticUsed {
		semantic = "keyword + semantic"
	}
	fmt.Fprintln(p.w, Styles.Muted.Render(fmt.Sprintf("%d segments, ~%d tokens, %s",
		len(pc.RelevantSegments), pc.TokenEstimate, semantic)))

	sections := []struct {
		title string
		items []string
	}{
		{"Requirements", pc.ExtractedRequirements},
		{"Decisions", pc.UserDecisions},
		{"Technical notes", pc.TechnicalNotes},
		{"Validation", pc.ValidationRules},
		{"UI patterns", pc.UIPatterns},
	}
	for _, s := range sections {
		if len(s.items) == 0 {
			continue
		}
		fmt.Fprintln(p.w)
		fmt.Fprintln(p.w, Styles.Subtitle.Render(s.title))
		for _, item := range s.items {
			fmt.Fprintf(p.w, "  %s %s\n", IconBullet.Render(), item)
		}
	}

	if pc.ContextSummary != "" {
		fmt.Fprintln(p.w)
		p.Box("Summary", pc.ContextSummary)
	}
}

func markOf(marks map[int]PhaseMark, n int) PhaseMark {
	if m, ok := marks[n]; ok {
		return m
	}
	return MarkPending
}

func joinInts(ns []int) string {
	parts := make([]string, len(ns))
	for i, n := range ns {
		parts[i] = strconv.Itoa(n)
	}
	return strings.Join(parts, ",")
}
