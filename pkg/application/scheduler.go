package application

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/felixgeelhaar/agentflow/pkg/domain"
	"github.com/felixgeelhaar/agentflow/pkg/domain/events"
	"github.com/felixgeelhaar/agentflow/pkg/domain/orchestration"
)

// DependencyScheduler decides which tasks are safe to dispatch and reacts to
// task completions by cascading dispatch to newly unblocked dependents.
//
// All coordination is read-then-conditional-write against the Store: the
// status transition away from a dispatchable state is the single
// serialization point, so two concurrent schedulers can never double-dispatch
// the same task.
type DependencyScheduler struct {
	store     domain.Store
	executor  Executor
	humans    HumanRouter
	publisher Publisher
	logger    *slog.Logger

	// completionMu serializes the drain check so two cascade branches
	// finishing together cannot both roll the project and double-notify.
	completionMu sync.Mutex
}

// NewDependencyScheduler creates a scheduler. The publisher is optional.
func NewDependencyScheduler(store domain.Store, executor Executor, humans HumanRouter, publisher Publisher, logger *slog.Logger) *DependencyScheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &DependencyScheduler{
		store:     store,
		executor:  executor,
		humans:    humans,
		publisher: publisher,
		logger:    logger,
	}
}

// ValidateGraph checks task specs for cycles and dangling dependency keys.
// Exposed on the scheduler because the session calls it before any task
// exists in the Store.
func (s *DependencyScheduler) ValidateGraph(specs []orchestration.TaskSpec) (bool, string) {
	return orchestration.ValidateGraph(specs)
}

// GetReadyTasks returns the project's tasks that have not been dispatched and
// whose blockers are all completed, in persisted insertion order.
func (s *DependencyScheduler) GetReadyTasks(ctx context.Context, projectID string) ([]*orchestration.Task, error) {
	tasks, err := s.store.GetProjectTasks(ctx, projectID)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]*orchestration.Task, len(tasks))
	for _, t := range tasks {
		byID[t.ID] = t
	}

	ready := make([]*orchestration.Task, 0)
	for _, t := range tasks {
		if !t.Status.IsDispatchable() {
			continue
		}
		if s.blockersSatisfied(t, byID) {
			ready = append(ready, t)
		}
	}
	return ready, nil
}

func (s *DependencyScheduler) blockersSatisfied(task *orchestration.Task, byID map[string]*orchestration.Task) bool {
	for _, blockerID := range task.BlockedBy {
		blocker, ok := byID[blockerID]
		if !ok || blocker.Status != orchestration.TaskCompleted {
			return false
		}
	}
	return true
}

// DispatchTask hands a single task to the executor (agent tasks) or the human
// router (human tasks). The task is claimed through the Store before handoff;
// if another caller already won the claim, dispatch is skipped silently.
//
// A handoff failure leaves the task in its dispatched state: the scheduler
// never un-claims or marks it completed, so it is picked up by the recovery
// routine on the next restart. Retry policy belongs to the executor.
func (s *DependencyScheduler) DispatchTask(ctx context.Context, task *orchestration.Task) error {
	claimed, err := s.store.ClaimTask(ctx, task.ID, task.Status, orchestration.TaskInProgress)
	if err != nil {
		return fmt.Errorf("claim task %s: %w", task.ID, err)
	}
	if !claimed {
		s.logger.Debug("task already claimed, skipping dispatch", "task_id", task.ID)
		return nil
	}

	s.broadcast(ctx, events.TaskDispatched{
		ProjectID: task.ProjectID,
		TaskID:    task.ID,
		TaskType:  string(task.TaskType),
		Timestamp: time.Now(),
	})

	if task.TaskType == orchestration.TaskTypeHuman {
		if err := s.humans.NotifyHumanTask(ctx, task); err != nil {
			return fmt.Errorf("notify human task %s: %w", task.ID, err)
		}
		return nil
	}

	if err := s.executor.ExecuteTaskBackground(ctx, task); err != nil {
		return fmt.Errorf("execute task %s: %w", task.ID, err)
	}
	return nil
}

// DispatchReady computes the ready set and dispatches every task in it
// concurrently. It waits for all launches to be issued, not for completions.
// Dispatch failures are isolated per task and logged. Returns the number of
// tasks for which dispatch was attempted.
func (s *DependencyScheduler) DispatchReady(ctx context.Context, projectID string) (int, error) {
	ready, err := s.GetReadyTasks(ctx, projectID)
	if err != nil {
		return 0, err
	}
	s.dispatchAll(ctx, ready)
	return len(ready), nil
}

func (s *DependencyScheduler) dispatchAll(ctx context.Context, tasks []*orchestration.Task) {
	var wg sync.WaitGroup
	for _, task := range tasks {
		wg.Add(1)
		go func(t *orchestration.Task) {
			defer wg.Done()
			if err := s.DispatchTask(ctx, t); err != nil {
				s.logger.Error("task dispatch failed", "task_id", t.ID, "error", err)
			}
		}(task)
	}
	wg.Wait()
}

// OnTaskCompleted is the cascade entry point, invoked directly by the
// executor when a task reaches a terminal state. A task that failed has
// already been persisted as failed by the executor; anything else is marked
// completed here. Only the completed task's direct dependents are
// re-evaluated, with blocker statuses re-read fresh from the Store.
func (s *DependencyScheduler) OnTaskCompleted(ctx context.Context, taskID string) error {
	task, err := s.store.GetTask(ctx, taskID)
	if err != nil {
		return fmt.Errorf("completion for unknown task: %w", err)
	}

	if !task.Status.IsTerminal() {
		task.Status = orchestration.TaskCompleted
		task.UpdatedAt = time.Now()
		if err := s.store.SaveTask(ctx, task); err != nil {
			return fmt.Errorf("persist completion of task %s: %w", taskID, err)
		}
	}

	s.logger.Info("task finished", "task_id", taskID, "status", task.Status)

	project, err := s.store.GetProject(ctx, task.ProjectID)
	if err != nil {
		return err
	}

	// A paused project does not advance its own cascades; the ready set is
	// recomputed on resume.
	if project.Status == orchestration.ProjectExecuting && task.Status == orchestration.TaskCompleted {
		newlyReady, err := s.readyDependents(ctx, task)
		if err != nil {
			return err
		}
		s.dispatchAll(ctx, newlyReady)
	}

	return s.CheckCompletion(ctx, task.ProjectID)
}

// readyDependents re-evaluates only the tasks waiting on the completed task.
func (s *DependencyScheduler) readyDependents(ctx context.Context, completed *orchestration.Task) ([]*orchestration.Task, error) {
	newlyReady := make([]*orchestration.Task, 0, len(completed.Blocks))
	for _, dependentID := range completed.Blocks {
		dependent, err := s.store.GetTask(ctx, dependentID)
		if err != nil {
			return nil, fmt.Errorf("dependent of %s: %w", completed.ID, err)
		}
		if !dependent.Status.IsDispatchable() {
			continue
		}
		satisfied := true
		for _, blockerID := range dependent.BlockedBy {
			blocker, err := s.store.GetTask(ctx, blockerID)
			if err != nil {
				return nil, fmt.Errorf("blocker of %s: %w", dependent.ID, err)
			}
			if blocker.Status != orchestration.TaskCompleted {
				satisfied = false
				break
			}
		}
		if satisfied {
			newlyReady = append(newlyReady, dependent)
		}
	}
	return newlyReady, nil
}

// CheckCompletion rolls an EXECUTING project to COMPLETED once every task is
// terminal, or to FAILED when the drained graph contains a failed task. A
// pending task downstream of a failed blocker can never be dispatched, so it
// counts as settled; otherwise a mid-graph failure would leave the project
// EXECUTING forever. Also invoked by the session after resume, since a
// project can drain while paused.
func (s *DependencyScheduler) CheckCompletion(ctx context.Context, projectID string) error {
	s.completionMu.Lock()
	defer s.completionMu.Unlock()

	project, err := s.store.GetProject(ctx, projectID)
	if err != nil {
		return err
	}
	if project.Status != orchestration.ProjectExecuting {
		return nil
	}

	tasks, err := s.store.GetProjectTasks(ctx, projectID)
	if err != nil {
		return err
	}
	if len(tasks) == 0 {
		return nil
	}

	byID := make(map[string]*orchestration.Task, len(tasks))
	for _, t := range tasks {
		byID[t.ID] = t
	}

	memo := make(map[string]bool, len(tasks))
	anyFailed := false
	for _, t := range tasks {
		if t.Status == orchestration.TaskFailed {
			anyFailed = true
			continue
		}
		if t.Status.IsTerminal() {
			continue
		}
		if canStillComplete(t, byID, memo) {
			return nil
		}
		// Unreachable: a failed blocker upstream means this task will never
		// run, and the project cannot finish all its work.
		anyFailed = true
	}

	event := "complete"
	if anyFailed {
		event = "fail"
		project.SetError("one or more tasks failed")
	}
	next, err := project.Status.TransitionWith(event)
	if err != nil {
		return err
	}
	project.Status = next
	project.UpdatedAt = time.Now()
	if err := s.store.UpdateProject(ctx, project); err != nil {
		return err
	}

	s.logger.Info("project drained", "project_id", projectID, "status", project.Status)

	if err := s.humans.NotifyProjectCompleted(ctx, project); err != nil {
		s.logger.Warn("project completion notification failed", "project_id", projectID, "error", err)
	}

	s.broadcast(ctx, events.ProjectCompleted{
		ProjectID: projectID,
		Status:    string(project.Status),
		Timestamp: time.Now(),
	})
	return nil
}

// canStillComplete reports whether a task could ever reach completed: it must
// not have failed, and every blocker, transitively, must still be able to
// complete.
func canStillComplete(task *orchestration.Task, byID map[string]*orchestration.Task, memo map[string]bool) bool {
	if v, ok := memo[task.ID]; ok {
		return v
	}
	if task.Status.IsTerminal() {
		memo[task.ID] = task.Status == orchestration.TaskCompleted
		return memo[task.ID]
	}
	memo[task.ID] = false // cycle guard
	result := true
	for _, blockerID := range task.BlockedBy {
		blocker, ok := byID[blockerID]
		if !ok || !canStillComplete(blocker, byID, memo) {
			result = false
			break
		}
	}
	memo[task.ID] = result
	return result
}

// broadcast publishes a UI-facing event, swallowing failures.
func (s *DependencyScheduler) broadcast(ctx context.Context, event events.Event) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Warn("event broadcast failed", "event", event.EventType(), "error", err)
	}
}
