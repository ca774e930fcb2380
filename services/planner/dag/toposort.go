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
	"fmt"
	"sort"
)

// TopologicalSort orders phases so every phase follows its dependencies.
//
// # Description
//
// Kahn's algorithm over adj (phase -> dependencies). Ties are broken by the
// smallest phase number so the order is deterministic. For graphs produced by
// Resolve the result is always 1..n.
//
// # Outputs
//
//   - []int: Phase numbers in dependency order.
//   - error: PhaseError wrapping ErrUnknownPhase for a dangling edge, or a
//     CycleError (errors.Is ErrCycleDetected) if no order exists.
func TopologicalSort(adj map[int][]int) ([]int, error) {
	indegree := make(map[int]int, len(adj))
	dependents := make(map[int][]int, len(adj))
	for n, deps := range adj {
		if _, ok := indegree[n]; !ok {
			indegree[n] = 0
		}
		for _, d := range deps {
			if _, ok := adj[d]; !ok {
				return nil, &PhaseError{Phase: n, Err: fmt.Errorf("%w: dependency %d", ErrUnknownPhase, d)}
			}
			indegree[n]++
			dependents[d] = append(dependents[d], n)
		}
	}

	ready := make([]int, 0, len(adj))
	for n, deg := range indegree {
		if deg == 0 {
			ready = append(ready, n)
		}
	}
	sort.Ints(ready)

	order := make([]int, 0, len(adj))
	for len(ready) > 0 {
		n := ready[0]
		ready = ready[1:]
		order = append(order, n)
		for _, m := range dependents[n] {
			indegree[m]--
			if indegree[m] == 0 {
				ready = append(ready, m)
			}
		}
		sort.Ints(ready)
	}

	if len(order) != len(adj) {
		return nil, NewCycleError(findCycle(adj))
	}
	return order, nil
}

// findCycle uses DFS to recover one cycle path for error reporting.
func findCycle(adj map[int][]int) []int {
	nodes := make([]int, 0, len(adj))
	for n := range adj {
		nodes = append(nodes, n)
	}
	sort.Ints(nodes)

	visited := make(map[int]bool)
	recStack := make(map[int]bool)
	path := make([]int, 0)
	var cycle []int

	var dfs func(n int) bool
	dfs = func(n int) bool {
		visited[n] = true
		recStack[n] = true
		path = append(path, n)

		for _, dep := range adj[n] {
			if !visited[dep] {
				if dfs(dep) {
					return true
				}
			} else if recStack[dep] {
				start := 0
				for i, p := range path {
					if p == dep {
						start = i
						break
					}
				}
				cycle = append(append([]int{}, path[start:]...), dep)
				return true
			}
		}

		path = path[:len(path)-1]
		recStack[n] = false
		return false
	}

	for _, n := range nodes {
		if !visited[n] && dfs(n) {
			return cycle
		}
	}
	return nil
}
