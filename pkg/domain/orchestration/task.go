package orchestration

import "time"

// TaskType distinguishes automated from human-in-the-loop work.
type TaskType string

const (
	TaskTypeAgent TaskType = "agent"
	TaskTypeHuman TaskType = "human"
)

// TaskStatus represents where a task is in its execution lifecycle.
type TaskStatus string

const (
	TaskUnassigned TaskStatus = "unassigned"
	TaskAssigned   TaskStatus = "assigned"
	TaskInProgress TaskStatus = "in_progress"
	TaskCompleted  TaskStatus = "completed"
	TaskFailed     TaskStatus = "failed"
)

// AllTaskStatuses returns all valid task statuses.
func AllTaskStatuses() []TaskStatus {
	return []TaskStatus{
		TaskUnassigned,
		TaskAssigned,
		TaskInProgress,
		TaskCompleted,
		TaskFailed,
	}
}

// IsValid returns true if the status is a valid task status.
func (s TaskStatus) IsValid() bool {
	switch s {
	case TaskUnassigned, TaskAssigned, TaskInProgress, TaskCompleted, TaskFailed:
		return true
	default:
		return false
	}
}

// String returns the string representation of the status.
func (s TaskStatus) String() string {
	return string(s)
}

// IsTerminal returns true if the task has finished, successfully or not.
func (s TaskStatus) IsTerminal() bool {
	return s == TaskCompleted || s == TaskFailed
}

// IsDispatchable returns true if the task has not yet been handed to an
// executor. Only dispatchable tasks can appear in a ready set.
func (s TaskStatus) IsDispatchable() bool {
	return s == TaskUnassigned || s == TaskAssigned
}

// TaskPriority is an informational priority level supplied by the planner.
type TaskPriority string

const (
	PriorityLow    TaskPriority = "low"
	PriorityMedium TaskPriority = "medium"
	PriorityHigh   TaskPriority = "high"
)

// IsValid returns true if the priority is a valid task priority.
func (p TaskPriority) IsValid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	default:
		return false
	}
}

// String returns the string representation of the priority.
func (p TaskPriority) String() string {
	return string(p)
}

// ParseTaskPriority maps a planner-supplied priority string to a TaskPriority.
// Unknown values fall back to medium rather than erroring; planners are not
// trusted to emit exact enum labels.
func ParseTaskPriority(s string) TaskPriority {
	p := TaskPriority(s)
	if p.IsValid() {
		return p
	}
	return PriorityMedium
}

// Task is a unit of work belonging to exactly one project, executed either by
// an agent or a human. Dependency edges are stored in both directions so the
// scheduler can walk either side in O(1).
type Task struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Tags        []string `json:"tags,omitempty"`

	ProjectID string       `json:"project_id"`
	TaskType  TaskType     `json:"task_type"`
	Priority  TaskPriority `json:"priority"`
	Status    TaskStatus   `json:"status"`

	// BlockedBy lists task ids that must complete before this task may be
	// dispatched. Blocks is the inverse edge: every id in A's BlockedBy must
	// have A's id present in that task's Blocks.
	BlockedBy []string `json:"blocked_by,omitempty"`
	Blocks    []string `json:"blocks,omitempty"`

	AssigneeIDs []string `json:"assignee_ids,omitempty"`

	EstimatedMinutes int `json:"estimated_minutes,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewTask creates an unassigned task.
func NewTask(title, description string, priority TaskPriority, tags []string) *Task {
	now := time.Now()
	return &Task{
		Title:       title,
		Description: description,
		Priority:    priority,
		Tags:        tags,
		Status:      TaskUnassigned,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// AddBlocks appends a downstream task id to the inverse edge list if it is
// not already present.
func (t *Task) AddBlocks(taskID string) bool {
	for _, id := range t.Blocks {
		if id == taskID {
			return false
		}
	}
	t.Blocks = append(t.Blocks, taskID)
	return true
}
