// Package domain defines the persistence boundary for the agentflow runtime.
package domain

import (
	"context"

	"github.com/felixgeelhaar/agentflow/pkg/domain/orchestration"
)

// Store is the single source of truth for projects, tasks, agents, and
// documents. Every operation is atomic at the single-entity level: a save
// either fully succeeds or leaves the entity unchanged. All cross-task
// coordination in the runtime is expressed as read-then-conditional-write
// against the Store so it survives process restarts.
type Store interface {
	CreateProject(ctx context.Context, project *orchestration.Project) error
	GetProject(ctx context.Context, id string) (*orchestration.Project, error)
	UpdateProject(ctx context.Context, project *orchestration.Project) error
	ListProjects(ctx context.Context) ([]*orchestration.Project, error)

	CreateTask(ctx context.Context, task *orchestration.Task) error
	SaveTask(ctx context.Context, task *orchestration.Task) error
	GetTask(ctx context.Context, id string) (*orchestration.Task, error)
	GetProjectTasks(ctx context.Context, projectID string) ([]*orchestration.Task, error)

	// ClaimTask atomically moves a task from one status to another. It
	// returns false without error when the task is no longer in the expected
	// status; whichever caller wins the transition proceeds to dispatch.
	// This is the at-most-once serialization point for the scheduler.
	ClaimTask(ctx context.Context, id string, from, to orchestration.TaskStatus) (bool, error)

	// AssignTask sets the assignees and marks the task assigned.
	AssignTask(ctx context.Context, taskID string, agentIDs []string) error

	CreateAgent(ctx context.Context, agent *orchestration.Agent) error
	GetAgent(ctx context.Context, id string) (*orchestration.Agent, error)
	GetAgentByName(ctx context.Context, name string) (*orchestration.Agent, error)
	ListAgents(ctx context.Context) ([]*orchestration.Agent, error)

	CreateDocument(ctx context.Context, doc *orchestration.Document) error
	GetDocument(ctx context.Context, id string) (*orchestration.Document, error)
}
