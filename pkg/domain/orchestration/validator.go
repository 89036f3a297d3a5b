package orchestration

import "fmt"

// color marks for the depth-first cycle scan.
type visitColor int

const (
	colorUnvisited visitColor = iota
	colorInProgress
	colorDone
)

// ValidateGraph checks a set of task specs for dangling dependency keys and
// cycles. It is pure: no I/O, no mutation of the input, O(V+E). The scheduler
// must never see a graph this function rejected.
//
// Returns (false, message) naming the missing key or a task in the first
// detected cycle; (true, "") for a valid DAG.
func ValidateGraph(specs []TaskSpec) (bool, string) {
	adjacency := make(map[string][]string, len(specs))
	for _, spec := range specs {
		adjacency[spec.Key] = spec.BlockedByKeys
	}

	// Reject references to keys outside the set before walking.
	for _, spec := range specs {
		for _, dep := range spec.BlockedByKeys {
			if _, ok := adjacency[dep]; !ok {
				return false, fmt.Sprintf("task '%s' depends on unknown task '%s'", spec.Key, dep)
			}
		}
	}

	colors := make(map[string]visitColor, len(specs))

	var visit func(key string) string
	visit = func(key string) string {
		colors[key] = colorInProgress
		for _, dep := range adjacency[key] {
			switch colors[dep] {
			case colorInProgress:
				// Back-edge: dep is on the current DFS path.
				return dep
			case colorUnvisited:
				if cycleAt := visit(dep); cycleAt != "" {
					return cycleAt
				}
			}
		}
		colors[key] = colorDone
		return ""
	}

	for _, spec := range specs {
		if colors[spec.Key] != colorUnvisited {
			continue
		}
		if cycleAt := visit(spec.Key); cycleAt != "" {
			return false, fmt.Sprintf("dependency cycle detected involving task '%s'", cycleAt)
		}
	}

	return true, ""
}
