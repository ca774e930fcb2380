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

	"github.com/AleutianAI/AleutianPlanner/services/planner/datatypes"
)

// AddConceptCriteria turns the concept's roles and workflows into test
// criteria on the resolved phases.
//
// # Description
//
// A workflow is verified by the highest-numbered phase holding a feature the
// workflow names, since it can only run end to end once every named feature
// exists. A workflow naming no feature lands on the last phase.
//
// Roles matter only when there are at least two of them: each role gets an
// access criterion on every auth, admin and ui-role phase, or on the last
// phase when the plan has none of those.
//
// # Inputs
//
//   - phases: Numbered phases. Modified in place and returned.
//   - roles, workflows: From the concept. Not modified.
func AddConceptCriteria(phases []datatypes.Phase, roles []datatypes.Role, workflows []datatypes.Workflow) []datatypes.Phase {
	if len(phases) == 0 {
		return phases
	}
	last := len(phases) - 1

	for _, w := range workflows {
		idx := workflowPhase(phases, w)
		if idx < 0 {
			idx = last
		}
		phases[idx].TestCriteria = appendCriterion(phases[idx].TestCriteria, workflowCriterion(w))
	}

	if len(roles) < 2 {
		return phases
	}
	var targets []int
	for i, ph := range phases {
		switch ph.Domain {
		case datatypes.DomainAuth, datatypes.DomainAdmin, datatypes.DomainUIRole:
			targets = append(targets, i)
		}
	}
	if len(targets) == 0 {
		targets = []int{last}
	}
	for _, i := range targets {
		for _, r := range roles {
			phases[i].TestCriteria = appendCriterion(phases[i].TestCriteria, roleCriterion(r))
		}
	}
	return phases
}

func workflowPhase(phases []datatypes.Phase, w datatypes.Workflow) int {
	text := strings.ToLower(w.Name + " " + strings.Join(w.Steps, " "))
	found := -1
	for i, ph := range phases {
		for _, f := range ph.Features {
			if f.Name != "" && strings.Contains(text, strings.ToLower(f.Name)) {
				found = i
				break
			}
		}
	}
	return found
}

func workflowCriterion(w datatypes.Workflow) string {
	c := fmt.Sprintf("Workflow %q runs end to end", w.Name)
	if len(w.Roles) > 0 {
		c += " as " + strings.Join(w.Roles, ", ")
	}
	if len(w.Steps) > 0 {
		c += ": " + strings.Join(w.Steps, " -> ")
	}
	return c
}

func roleCriterion(r datatypes.Role) string {
	if len(r.Capabilities) == 0 {
		return fmt.Sprintf("A %s only reaches what the %s role allows", r.Name, r.Name)
	}
	return fmt.Sprintf("A %s can %s, and nothing beyond it", r.Name, strings.Join(r.Capabilities, ", "))
}

func appendCriterion(list []string, c string) []string {
	for _, e := range list {
		if e == c {
			return list
		}
	}
	return append(list, c)
}
