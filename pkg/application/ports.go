// Package application contains the project orchestration core: the
// ProjectSession lifecycle orchestrator and the DependencyScheduler.
package application

import (
	"context"

	"github.com/felixgeelhaar/agentflow/pkg/domain/events"
	"github.com/felixgeelhaar/agentflow/pkg/domain/orchestration"
)

// Planner decomposes a natural-language goal into a structured plan. It may
// fail; it must not partially mutate caller state.
type Planner interface {
	Plan(ctx context.Context, userInput, projectID string, depth orchestration.ResearchDepth) (*orchestration.PlannerResult, error)
}

// Executor runs agent tasks in the background. The completion callback is
// invoked exactly once per task's terminal transition and is the scheduler's
// cascade trigger; it is wired once at session construction, deliberately
// bypassing the best-effort event dispatcher.
type Executor interface {
	ExecuteTaskBackground(ctx context.Context, task *orchestration.Task) error
	IsTaskRunning(taskID string) bool
	StopTask(ctx context.Context, taskID string) (bool, error)
	SetCompletionCallback(fn func(ctx context.Context, taskID string) error)
}

// HumanRouter pushes human-facing notifications to messaging channels.
type HumanRouter interface {
	NotifyPlanReady(ctx context.Context, project *orchestration.Project, taskCount, estimatedMinutes int) error
	NotifyHumanTask(ctx context.Context, task *orchestration.Task) error
	NotifyProjectCompleted(ctx context.Context, project *orchestration.Project) error
}

// Publisher is the best-effort broadcast channel for UI-facing events.
// Publish failures are logged and swallowed by callers; nothing
// liveness-critical may depend on delivery.
type Publisher interface {
	Publish(ctx context.Context, event events.Event) error
}
