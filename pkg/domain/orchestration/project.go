// Package orchestration holds the core data model for agentflow projects:
// projects, tasks, agents, planner output, and the dependency graph validator.
package orchestration

import (
	"fmt"
	"time"
)

// ProjectStatus represents where a project is in its lifecycle.
type ProjectStatus string

const (
	ProjectDraft            ProjectStatus = "draft"
	ProjectPlanning         ProjectStatus = "planning"
	ProjectAwaitingApproval ProjectStatus = "awaiting_approval"
	ProjectExecuting        ProjectStatus = "executing"
	ProjectPaused           ProjectStatus = "paused"
	ProjectCompleted        ProjectStatus = "completed"
	ProjectFailed           ProjectStatus = "failed"
)

// projectTransitions defines the allowed lifecycle transitions and their events.
// Map: currentStatus -> event -> targetStatus
var projectTransitions = map[ProjectStatus]map[string]ProjectStatus{
	ProjectDraft: {
		"plan": ProjectPlanning,
	},
	ProjectPlanning: {
		"plan_ready": ProjectAwaitingApproval,
		"fail":       ProjectFailed,
	},
	ProjectAwaitingApproval: {
		"approve": ProjectExecuting,
		"fail":    ProjectFailed,
	},
	ProjectExecuting: {
		"pause":    ProjectPaused,
		"complete": ProjectCompleted,
		"fail":     ProjectFailed,
	},
	ProjectPaused: {
		"resume": ProjectExecuting,
		"fail":   ProjectFailed,
	},
}

// AllProjectStatuses returns all valid project statuses.
func AllProjectStatuses() []ProjectStatus {
	return []ProjectStatus{
		ProjectDraft,
		ProjectPlanning,
		ProjectAwaitingApproval,
		ProjectExecuting,
		ProjectPaused,
		ProjectCompleted,
		ProjectFailed,
	}
}

// IsValid returns true if the status is a valid project status.
func (s ProjectStatus) IsValid() bool {
	switch s {
	case ProjectDraft, ProjectPlanning, ProjectAwaitingApproval,
		ProjectExecuting, ProjectPaused, ProjectCompleted, ProjectFailed:
		return true
	default:
		return false
	}
}

// String returns the string representation of the status.
func (s ProjectStatus) String() string {
	return string(s)
}

// IsTerminal returns true if no further transitions are possible.
func (s ProjectStatus) IsTerminal() bool {
	return s == ProjectCompleted || s == ProjectFailed
}

// CanTransitionWith returns true if the given event can trigger a transition
// from this status.
func (s ProjectStatus) CanTransitionWith(event string) bool {
	transitions, ok := projectTransitions[s]
	if !ok {
		return false
	}
	_, ok = transitions[event]
	return ok
}

// TransitionWith returns the target status for a given event, or an error if
// the event is not allowed from this status.
func (s ProjectStatus) TransitionWith(event string) (ProjectStatus, error) {
	transitions, ok := projectTransitions[s]
	if !ok {
		return s, fmt.Errorf("no transitions defined for status: %s", s)
	}
	target, ok := transitions[event]
	if !ok {
		return s, fmt.Errorf("event '%s' not allowed from status '%s'", event, s)
	}
	return target, nil
}

// Project represents one user-initiated goal worked by a team of agents
// and humans. Projects are mutated only by the ProjectSession.
type Project struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	CreatorID   string `json:"creator_id"`

	Status ProjectStatus `json:"status"`

	// TaskIDs and TeamAgentIDs preserve insertion order.
	TaskIDs      []string `json:"task_ids"`
	TeamAgentIDs []string `json:"team_agent_ids"`

	// PlanDocumentID links the generated planning document, if any.
	PlanDocumentID string `json:"plan_document_id,omitempty"`

	// Metadata carries free-form annotations. A FAILED project records a
	// human-readable reason under the "error" key.
	Metadata map[string]string `json:"metadata,omitempty"`

	CreatedAt time.Time  `json:"created_at"`
	StartedAt *time.Time `json:"started_at,omitempty"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// NewProject creates a project in DRAFT.
func NewProject(title, description, creatorID string) *Project {
	now := time.Now()
	return &Project{
		Title:       title,
		Description: description,
		CreatorID:   creatorID,
		Status:      ProjectDraft,
		Metadata:    make(map[string]string),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// SetError records a failure reason in the project metadata.
func (p *Project) SetError(msg string) {
	if p.Metadata == nil {
		p.Metadata = make(map[string]string)
	}
	p.Metadata["error"] = msg
}

// ErrorMessage returns the recorded failure reason, if any.
func (p *Project) ErrorMessage() string {
	if p.Metadata == nil {
		return ""
	}
	return p.Metadata["error"]
}
