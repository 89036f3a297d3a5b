package orchestration

import (
	"strings"
	"unicode/utf8"
)

// ResearchDepth controls how thoroughly the planner researches before
// decomposing a goal.
type ResearchDepth string

const (
	ResearchNone     ResearchDepth = "none"
	ResearchQuick    ResearchDepth = "quick"
	ResearchStandard ResearchDepth = "standard"
	ResearchDeep     ResearchDepth = "deep"
)

// IsValid returns true if the depth is a known research depth.
func (d ResearchDepth) IsValid() bool {
	switch d {
	case ResearchNone, ResearchQuick, ResearchStandard, ResearchDeep:
		return true
	default:
		return false
	}
}

// TaskSpec is a planner-emitted task description. Key is a planner-local
// symbolic identifier, not a persisted task id; BlockedByKeys reference other
// specs' keys and must be resolved to persisted ids during materialization.
type TaskSpec struct {
	Key                 string   `json:"key"`
	Title               string   `json:"title"`
	Description         string   `json:"description"`
	TaskType            TaskType `json:"task_type"`
	Priority            string   `json:"priority"`
	Tags                []string `json:"tags,omitempty"`
	EstimatedMinutes    int      `json:"estimated_minutes,omitempty"`
	RequiredSpecialties []string `json:"required_specialties,omitempty"`
	BlockedByKeys       []string `json:"blocked_by_keys,omitempty"`
}

// AgentSpec is a planner-recommended agent profile.
type AgentSpec struct {
	Name        string   `json:"name"`
	Role        string   `json:"role"`
	Description string   `json:"description,omitempty"`
	Specialties []string `json:"specialties,omitempty"`
	Backend     string   `json:"backend,omitempty"`
}

// PlannerResult is the flat planning artifact consumed by the session.
type PlannerResult struct {
	ProjectID string `json:"project_id,omitempty"`

	// PlanDocument is the free-text plan (PRD-style markdown).
	PlanDocument string `json:"plan_document"`

	Tasks              []TaskSpec  `json:"tasks"`
	HumanTasks         []TaskSpec  `json:"human_tasks"`
	TeamRecommendation []AgentSpec `json:"team_recommendation"`

	// DependencyGraph is informational; the authoritative edges are the
	// BlockedByKeys on each spec.
	DependencyGraph map[string][]string `json:"dependency_graph,omitempty"`

	EstimatedTotalMinutes int    `json:"estimated_total_minutes"`
	ResearchNotes         string `json:"research_notes,omitempty"`
}

// AllTasks returns agent and human task specs in planner order.
func (r *PlannerResult) AllTasks() []TaskSpec {
	all := make([]TaskSpec, 0, len(r.Tasks)+len(r.HumanTasks))
	all = append(all, r.Tasks...)
	all = append(all, r.HumanTasks...)
	return all
}

const maxPlanTitleLen = 100

// ExtractPlanTitle derives a project title from a plan document: the first
// markdown heading, with common document prefixes stripped and the result
// truncated to a bounded length. Returns "" when no heading is found.
func ExtractPlanTitle(doc string) string {
	if doc == "" {
		return ""
	}
	for _, line := range strings.Split(strings.TrimSpace(doc), "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "#") {
			continue
		}
		title := strings.TrimSpace(strings.TrimLeft(line, "#"))
		for _, prefix := range []string{"PRD:", "PRD -", "Problem Statement"} {
			if len(title) >= len(prefix) && strings.EqualFold(title[:len(prefix)], prefix) {
				title = strings.TrimSpace(title[len(prefix):])
			}
		}
		return TruncateTitle(title, maxPlanTitleLen)
	}
	return ""
}

// TruncateTitle bounds a title to max bytes, cutting on a rune boundary so
// the result is always valid UTF-8.
func TruncateTitle(s string, max int) string {
	if len(s) <= max {
		return s
	}
	for max > 0 && !utf8.RuneStart(s[max]) {
		max--
	}
	return s[:max]
}
