// Package events defines runtime events and the best-effort dispatcher used
// for UI-facing notifications. The liveness-critical task-completion cascade
// does NOT go through this package; it is wired as a direct executor callback.
package events

import "time"

// Event types published by the runtime.
const (
	TypePlanningCompleted = "planning_completed"
	TypeTaskDispatched    = "task_dispatched"
	TypeProjectCompleted  = "project_completed"
)

// Event is the base interface for runtime events.
type Event interface {
	EventType() string
	OccurredAt() time.Time
}

// PlanningCompleted is broadcast when planning ends, whether it produced an
// approvable plan or failed. Error is empty on success.
type PlanningCompleted struct {
	ProjectID string    `json:"project_id"`
	Status    string    `json:"status"`
	Title     string    `json:"title"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

func (e PlanningCompleted) EventType() string     { return TypePlanningCompleted }
func (e PlanningCompleted) OccurredAt() time.Time { return e.Timestamp }

// TaskDispatched is broadcast when the scheduler hands a task off for
// execution.
type TaskDispatched struct {
	ProjectID string    `json:"project_id"`
	TaskID    string    `json:"task_id"`
	TaskType  string    `json:"task_type"`
	Timestamp time.Time `json:"timestamp"`
}

func (e TaskDispatched) EventType() string     { return TypeTaskDispatched }
func (e TaskDispatched) OccurredAt() time.Time { return e.Timestamp }

// ProjectCompleted is broadcast when a project's task graph drains.
type ProjectCompleted struct {
	ProjectID string    `json:"project_id"`
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

func (e ProjectCompleted) EventType() string     { return TypeProjectCompleted }
func (e ProjectCompleted) OccurredAt() time.Time { return e.Timestamp }
