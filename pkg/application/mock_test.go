package application_test

import (
	"context"
	"sync"
	"time"

	"github.com/felixgeelhaar/agentflow/pkg/domain"
	"github.com/felixgeelhaar/agentflow/pkg/domain/events"
	"github.com/felixgeelhaar/agentflow/pkg/domain/orchestration"
)

type MockPlanner struct {
	Result *orchestration.PlannerResult
	Err    error
	Calls  int
}

func (m *MockPlanner) Plan(ctx context.Context, userInput, projectID string, depth orchestration.ResearchDepth) (*orchestration.PlannerResult, error) {
	m.Calls++
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Result, nil
}

// MockExecutor mimics the local executor's contract: a failed task is
// persisted as failed before the completion callback fires, and cancelled
// tasks fire no callback.
type MockExecutor struct {
	Store domain.Store

	// AutoComplete finishes each task synchronously inside
	// ExecuteTaskBackground, driving cascades to completion in one call.
	AutoComplete bool
	// FailTasks marks the listed task ids failed instead of completed.
	FailTasks map[string]bool
	ExecErr   error

	mu       sync.Mutex
	callback func(ctx context.Context, taskID string) error
	Executed []string
	Stopped  []string
	running  map[string]bool
}

func (m *MockExecutor) SetCompletionCallback(fn func(ctx context.Context, taskID string) error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callback = fn
}

func (m *MockExecutor) ExecuteTaskBackground(ctx context.Context, task *orchestration.Task) error {
	m.mu.Lock()
	if m.running == nil {
		m.running = make(map[string]bool)
	}
	m.Executed = append(m.Executed, task.ID)
	if m.ExecErr != nil {
		m.mu.Unlock()
		return m.ExecErr
	}
	m.running[task.ID] = true
	auto := m.AutoComplete
	m.mu.Unlock()

	if auto {
		return m.Complete(ctx, task.ID)
	}
	return nil
}

// Complete finishes a running task the way the real executor would.
func (m *MockExecutor) Complete(ctx context.Context, taskID string) error {
	m.mu.Lock()
	delete(m.running, taskID)
	callback := m.callback
	fail := m.FailTasks[taskID]
	m.mu.Unlock()

	if fail {
		task, err := m.Store.GetTask(ctx, taskID)
		if err != nil {
			return err
		}
		task.Status = orchestration.TaskFailed
		task.UpdatedAt = time.Now()
		if err := m.Store.SaveTask(ctx, task); err != nil {
			return err
		}
	}
	return callback(ctx, taskID)
}

func (m *MockExecutor) IsTaskRunning(taskID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running[taskID]
}

func (m *MockExecutor) StopTask(ctx context.Context, taskID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.running[taskID] {
		return false, nil
	}
	delete(m.running, taskID)
	m.Stopped = append(m.Stopped, taskID)
	return true, nil
}

func (m *MockExecutor) ExecutedTasks() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.Executed...)
}

type MockHumanRouter struct {
	mu                sync.Mutex
	PlanReadyCalls    []PlanReadyCall
	HumanTasks        []string
	CompletedProjects []string
	NotifyErr         error
}

type PlanReadyCall struct {
	ProjectID        string
	TaskCount        int
	EstimatedMinutes int
}

func (m *MockHumanRouter) NotifyPlanReady(ctx context.Context, project *orchestration.Project, taskCount, estimatedMinutes int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.PlanReadyCalls = append(m.PlanReadyCalls, PlanReadyCall{project.ID, taskCount, estimatedMinutes})
	return m.NotifyErr
}

func (m *MockHumanRouter) NotifyHumanTask(ctx context.Context, task *orchestration.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.HumanTasks = append(m.HumanTasks, task.ID)
	return m.NotifyErr
}

func (m *MockHumanRouter) NotifyProjectCompleted(ctx context.Context, project *orchestration.Project) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CompletedProjects = append(m.CompletedProjects, project.ID)
	return m.NotifyErr
}

func (m *MockHumanRouter) NotifiedHumanTasks() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.HumanTasks...)
}

type MockPublisher struct {
	mu     sync.Mutex
	Events []events.Event
	Err    error
}

func (m *MockPublisher) Publish(ctx context.Context, event events.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Events = append(m.Events, event)
	return m.Err
}

func (m *MockPublisher) EventsOfType(eventType string) []events.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []events.Event
	for _, e := range m.Events {
		if e.EventType() == eventType {
			out = append(out, e)
		}
	}
	return out
}
