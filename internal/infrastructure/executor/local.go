// Package executor runs agent tasks in-process against an AI provider.
package executor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/felixgeelhaar/agentflow/pkg/ai"
	"github.com/felixgeelhaar/agentflow/pkg/domain"
	"github.com/felixgeelhaar/agentflow/pkg/domain/orchestration"
)

// LocalExecutor executes agent tasks as background goroutines, one per task.
// A task's terminal outcome is persisted before the completion callback
// fires, so the callback can read the authoritative status from the Store.
// Cancelled tasks fire no callback; their status is rolled back by whoever
// cancelled them.
type LocalExecutor struct {
	store    domain.Store
	provider ai.Provider
	logger   *slog.Logger

	callback func(ctx context.Context, taskID string) error

	mu      sync.Mutex
	running map[string]context.CancelFunc
}

// NewLocalExecutor creates an executor backed by the given provider.
func NewLocalExecutor(store domain.Store, provider ai.Provider, logger *slog.Logger) *LocalExecutor {
	if logger == nil {
		logger = slog.Default()
	}
	return &LocalExecutor{
		store:    store,
		provider: provider,
		logger:   logger,
		running:  make(map[string]context.CancelFunc),
	}
}

// SetCompletionCallback registers the function invoked after a task reaches a
// terminal state. Must be called before the first dispatch.
func (e *LocalExecutor) SetCompletionCallback(fn func(ctx context.Context, taskID string) error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.callback = fn
}

// ExecuteTaskBackground launches the task and returns once the goroutine is
// registered. Execution detaches from the caller's context; it is bounded by
// StopTask, not by the dispatch request.
func (e *LocalExecutor) ExecuteTaskBackground(ctx context.Context, task *orchestration.Task) error {
	e.mu.Lock()
	if e.callback == nil {
		e.mu.Unlock()
		return fmt.Errorf("executor has no completion callback")
	}
	if _, exists := e.running[task.ID]; exists {
		e.mu.Unlock()
		return fmt.Errorf("task %s is already running", task.ID)
	}
	runCtx, cancel := context.WithCancel(context.Background())
	e.running[task.ID] = cancel
	e.mu.Unlock()

	e.logger.Info("task execution started", "task_id", task.ID, "title", task.Title)
	go e.run(runCtx, task)
	return nil
}

func (e *LocalExecutor) run(ctx context.Context, task *orchestration.Task) {
	resp, runErr := e.provider.Complete(ctx, ai.CompletionRequest{
		Prompt: fmt.Sprintf("Task: %s\n\n%s\n\nComplete this task and report the result.", task.Title, task.Description),
		System: "You are an autonomous agent completing a single well-scoped task. Report what you did and the outcome.",
	})

	e.mu.Lock()
	_, stillRunning := e.running[task.ID]
	delete(e.running, task.ID)
	callback := e.callback
	e.mu.Unlock()

	// Cancelled via StopTask: the canceller owns the task's status.
	if !stillRunning || ctx.Err() != nil {
		e.logger.Info("task execution cancelled", "task_id", task.ID)
		return
	}

	// The run context is gone; persistence and callback get their own.
	doneCtx := context.Background()

	if runErr != nil {
		e.logger.Error("task execution failed", "task_id", task.ID, "error", runErr)
		if err := e.markFailed(doneCtx, task.ID); err != nil {
			e.logger.Error("persist task failure", "task_id", task.ID, "error", err)
			return
		}
	} else {
		e.recordOutput(doneCtx, task, resp.Text)
	}

	if err := callback(doneCtx, task.ID); err != nil {
		e.logger.Error("completion callback failed", "task_id", task.ID, "error", err)
	}
}

func (e *LocalExecutor) markFailed(ctx context.Context, taskID string) error {
	task, err := e.store.GetTask(ctx, taskID)
	if err != nil {
		return err
	}
	task.Status = orchestration.TaskFailed
	task.UpdatedAt = time.Now()
	return e.store.SaveTask(ctx, task)
}

// recordOutput persists the agent's report as a document. Output loss is not
// fatal; the completion still counts.
func (e *LocalExecutor) recordOutput(ctx context.Context, task *orchestration.Task, output string) {
	if output == "" {
		return
	}
	doc := orchestration.NewDocument(task.Title, output, []string{"task-output", task.ID})
	if err := e.store.CreateDocument(ctx, doc); err != nil {
		e.logger.Warn("persist task output failed", "task_id", task.ID, "error", err)
	}
}

// IsTaskRunning reports whether the executor currently holds a live run for
// the task.
func (e *LocalExecutor) IsTaskRunning(taskID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.running[taskID]
	return ok
}

// StopTask cancels a running task. Returns false when the task is not
// running here.
func (e *LocalExecutor) StopTask(ctx context.Context, taskID string) (bool, error) {
	e.mu.Lock()
	cancel, ok := e.running[taskID]
	if ok {
		delete(e.running, taskID)
	}
	e.mu.Unlock()

	if !ok {
		return false, nil
	}
	cancel()
	e.logger.Info("task execution stopped", "task_id", taskID)
	return true, nil
}
