package messaging

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/felixgeelhaar/agentflow/pkg/domain/orchestration"
)

// Router fans human-facing notifications out to all configured adapters. A
// router without adapters logs instead of delivering, so local runs work
// without any messaging configuration.
type Router struct {
	adapters []Adapter
	logger   *slog.Logger
}

// NewRouter creates a router over the given adapters.
func NewRouter(adapters []Adapter, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{adapters: adapters, logger: logger}
}

// NotifyPlanReady tells humans a plan awaits approval.
func (r *Router) NotifyPlanReady(ctx context.Context, project *orchestration.Project, taskCount, estimatedMinutes int) error {
	return r.send(ctx, Notification{
		Kind:      KindPlanReady,
		ProjectID: project.ID,
		Title:     fmt.Sprintf("Plan ready for approval: %s", project.Title),
		Body:      fmt.Sprintf("%d tasks, estimated %d minutes. Approve to start execution.", taskCount, estimatedMinutes),
	})
}

// NotifyHumanTask routes a human task to its channel. The task stays
// in progress until its completion is reported out of band.
func (r *Router) NotifyHumanTask(ctx context.Context, task *orchestration.Task) error {
	return r.send(ctx, Notification{
		Kind:      KindHumanTask,
		ProjectID: task.ProjectID,
		TaskID:    task.ID,
		Title:     fmt.Sprintf("Action needed: %s", task.Title),
		Body:      task.Description,
	})
}

// NotifyProjectCompleted announces a drained project.
func (r *Router) NotifyProjectCompleted(ctx context.Context, project *orchestration.Project) error {
	body := "All tasks finished."
	if msg := project.ErrorMessage(); msg != "" {
		body = msg
	}
	return r.send(ctx, Notification{
		Kind:      KindProjectCompleted,
		ProjectID: project.ID,
		Title:     fmt.Sprintf("Project %s: %s", project.Status, project.Title),
		Body:      body,
	})
}

func (r *Router) send(ctx context.Context, n Notification) error {
	if len(r.adapters) == 0 {
		r.logger.Info("notification", "kind", n.Kind, "project_id", n.ProjectID, "title", n.Title)
		return nil
	}

	var firstErr error
	for _, adapter := range r.adapters {
		if err := adapter.Send(ctx, n); err != nil {
			r.logger.Warn("notification delivery failed",
				"adapter", adapter.Name(), "kind", n.Kind, "error", err)
			if firstErr == nil {
				firstErr = fmt.Errorf("adapter %s: %w", adapter.Name(), err)
			}
		}
	}
	return firstErr
}
