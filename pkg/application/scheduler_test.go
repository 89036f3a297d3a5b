package application_test

import (
	"context"
	"sync"
	"testing"

	"github.com/felixgeelhaar/agentflow/pkg/application"
	"github.com/felixgeelhaar/agentflow/pkg/domain/events"
	"github.com/felixgeelhaar/agentflow/pkg/domain/orchestration"
	"github.com/felixgeelhaar/agentflow/pkg/storage"
)

// seedDiamond persists an executing project with tasks a -> {b, c} -> d and
// returns the task ids by name.
func seedDiamond(t *testing.T, store *storage.MemoryStore) (string, map[string]*orchestration.Task) {
	t.Helper()
	ctx := context.Background()

	project := orchestration.NewProject("diamond", "", "human")
	project.Status = orchestration.ProjectExecuting
	if err := store.CreateProject(ctx, project); err != nil {
		t.Fatal(err)
	}

	tasks := make(map[string]*orchestration.Task)
	for _, name := range []string{"a", "b", "c", "d"} {
		task := orchestration.NewTask(name, "", orchestration.PriorityMedium, nil)
		task.ProjectID = project.ID
		task.TaskType = orchestration.TaskTypeAgent
		task.Status = orchestration.TaskAssigned
		if err := store.CreateTask(ctx, task); err != nil {
			t.Fatal(err)
		}
		tasks[name] = task
		project.TaskIDs = append(project.TaskIDs, task.ID)
	}

	link := func(blocker, blocked string) {
		tasks[blocked].BlockedBy = append(tasks[blocked].BlockedBy, tasks[blocker].ID)
		tasks[blocker].AddBlocks(tasks[blocked].ID)
	}
	link("a", "b")
	link("a", "c")
	link("b", "d")
	link("c", "d")

	for _, task := range tasks {
		if err := store.SaveTask(ctx, task); err != nil {
			t.Fatal(err)
		}
	}
	if err := store.UpdateProject(ctx, project); err != nil {
		t.Fatal(err)
	}
	return project.ID, tasks
}

func TestGetReadyTasks_OnlyUnblocked(t *testing.T) {
	store := storage.NewMemoryStore()
	projectID, tasks := seedDiamond(t, store)

	scheduler := application.NewDependencyScheduler(store, &MockExecutor{Store: store}, &MockHumanRouter{}, nil, nil)

	ready, err := scheduler.GetReadyTasks(context.Background(), projectID)
	if err != nil {
		t.Fatal(err)
	}
	if len(ready) != 1 || ready[0].ID != tasks["a"].ID {
		t.Fatalf("only the root should be ready, got %d tasks", len(ready))
	}
}

func TestGetReadyTasks_AfterBlockerCompletes(t *testing.T) {
	store := storage.NewMemoryStore()
	ctx := context.Background()
	projectID, tasks := seedDiamond(t, store)

	a, _ := store.GetTask(ctx, tasks["a"].ID)
	a.Status = orchestration.TaskCompleted
	if err := store.SaveTask(ctx, a); err != nil {
		t.Fatal(err)
	}

	scheduler := application.NewDependencyScheduler(store, &MockExecutor{Store: store}, &MockHumanRouter{}, nil, nil)
	ready, err := scheduler.GetReadyTasks(ctx, projectID)
	if err != nil {
		t.Fatal(err)
	}
	if len(ready) != 2 {
		t.Fatalf("b and c should be ready, got %d", len(ready))
	}
}

func TestDispatchTask_AtMostOnce(t *testing.T) {
	store := storage.NewMemoryStore()
	ctx := context.Background()
	_, tasks := seedDiamond(t, store)

	exec := &MockExecutor{Store: store}
	exec.SetCompletionCallback(func(ctx context.Context, taskID string) error { return nil })
	scheduler := application.NewDependencyScheduler(store, exec, &MockHumanRouter{}, nil, nil)

	const dispatchers = 16
	var wg sync.WaitGroup
	for i := 0; i < dispatchers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			task, err := store.GetTask(ctx, tasks["a"].ID)
			if err != nil {
				t.Error(err)
				return
			}
			if err := scheduler.DispatchTask(ctx, task); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()

	if got := len(exec.ExecutedTasks()); got != 1 {
		t.Errorf("task must be handed to the executor exactly once, got %d", got)
	}
}

func TestDispatchTask_HumanTaskRoutesToHumans(t *testing.T) {
	store := storage.NewMemoryStore()
	ctx := context.Background()

	task := orchestration.NewTask("review", "check the draft", orchestration.PriorityMedium, nil)
	task.ProjectID = "p1"
	task.TaskType = orchestration.TaskTypeHuman
	if err := store.CreateTask(ctx, task); err != nil {
		t.Fatal(err)
	}

	exec := &MockExecutor{Store: store}
	humans := &MockHumanRouter{}
	scheduler := application.NewDependencyScheduler(store, exec, humans, nil, nil)

	if err := scheduler.DispatchTask(ctx, task); err != nil {
		t.Fatal(err)
	}

	if len(exec.ExecutedTasks()) != 0 {
		t.Error("human tasks must not reach the executor")
	}
	if got := humans.NotifiedHumanTasks(); len(got) != 1 || got[0] != task.ID {
		t.Errorf("expected human notification for %s, got %v", task.ID, got)
	}
	loaded, _ := store.GetTask(ctx, task.ID)
	if loaded.Status != orchestration.TaskInProgress {
		t.Errorf("dispatched human task should be in_progress, got %s", loaded.Status)
	}
}

func TestOnTaskCompleted_CascadesDiamondToCompletion(t *testing.T) {
	store := storage.NewMemoryStore()
	ctx := context.Background()
	projectID, tasks := seedDiamond(t, store)

	exec := &MockExecutor{Store: store, AutoComplete: true}
	humans := &MockHumanRouter{}
	publisher := &MockPublisher{}
	scheduler := application.NewDependencyScheduler(store, exec, humans, publisher, nil)
	exec.SetCompletionCallback(scheduler.OnTaskCompleted)

	// Dispatching the root drives the whole graph synchronously.
	root, _ := store.GetTask(ctx, tasks["a"].ID)
	if err := scheduler.DispatchTask(ctx, root); err != nil {
		t.Fatal(err)
	}

	for name, task := range tasks {
		loaded, _ := store.GetTask(ctx, task.ID)
		if loaded.Status != orchestration.TaskCompleted {
			t.Errorf("task %s should be completed, got %s", name, loaded.Status)
		}
	}

	project, _ := store.GetProject(ctx, projectID)
	if project.Status != orchestration.ProjectCompleted {
		t.Errorf("project should be completed, got %s", project.Status)
	}
	if len(humans.CompletedProjects) != 1 {
		t.Error("humans should be told the project finished")
	}
	if got := publisher.EventsOfType(events.TypeProjectCompleted); len(got) != 1 {
		t.Errorf("expected one project_completed event, got %d", len(got))
	}
}

func TestOnTaskCompleted_FailedTaskFailsDrainedProject(t *testing.T) {
	store := storage.NewMemoryStore()
	ctx := context.Background()
	projectID, tasks := seedDiamond(t, store)

	exec := &MockExecutor{
		Store:        store,
		AutoComplete: true,
		FailTasks:    map[string]bool{tasks["d"].ID: true},
	}
	humans := &MockHumanRouter{}
	scheduler := application.NewDependencyScheduler(store, exec, humans, nil, nil)
	exec.SetCompletionCallback(scheduler.OnTaskCompleted)

	root, _ := store.GetTask(ctx, tasks["a"].ID)
	if err := scheduler.DispatchTask(ctx, root); err != nil {
		t.Fatal(err)
	}

	d, _ := store.GetTask(ctx, tasks["d"].ID)
	if d.Status != orchestration.TaskFailed {
		t.Fatalf("d should stay failed, got %s", d.Status)
	}
	project, _ := store.GetProject(ctx, projectID)
	if project.Status != orchestration.ProjectFailed {
		t.Errorf("drained project with a failed task should be failed, got %s", project.Status)
	}
	if project.ErrorMessage() == "" {
		t.Error("failed project should record a reason")
	}
}

func TestOnTaskCompleted_UpstreamFailureStillDrainsProject(t *testing.T) {
	store := storage.NewMemoryStore()
	ctx := context.Background()
	projectID, tasks := seedDiamond(t, store)

	exec := &MockExecutor{
		Store:        store,
		AutoComplete: true,
		FailTasks:    map[string]bool{tasks["b"].ID: true},
	}
	humans := &MockHumanRouter{}
	scheduler := application.NewDependencyScheduler(store, exec, humans, nil, nil)
	exec.SetCompletionCallback(scheduler.OnTaskCompleted)

	root, _ := store.GetTask(ctx, tasks["a"].ID)
	if err := scheduler.DispatchTask(ctx, root); err != nil {
		t.Fatal(err)
	}

	// b failed, so d can never run; the graph must still drain.
	d, _ := store.GetTask(ctx, tasks["d"].ID)
	if d.Status != orchestration.TaskAssigned {
		t.Fatalf("d must never be dispatched, got %s", d.Status)
	}
	c, _ := store.GetTask(ctx, tasks["c"].ID)
	if c.Status != orchestration.TaskCompleted {
		t.Fatalf("the independent branch should finish, got %s", c.Status)
	}
	project, _ := store.GetProject(ctx, projectID)
	if project.Status != orchestration.ProjectFailed {
		t.Errorf("project with an unreachable task should fail, got %s", project.Status)
	}
	if project.ErrorMessage() == "" {
		t.Error("failed project should record a reason")
	}
	if len(humans.CompletedProjects) != 1 {
		t.Error("the outcome should be announced once")
	}
}

func TestOnTaskCompleted_PausedProjectDoesNotCascade(t *testing.T) {
	store := storage.NewMemoryStore()
	ctx := context.Background()
	projectID, tasks := seedDiamond(t, store)

	project, _ := store.GetProject(ctx, projectID)
	project.Status = orchestration.ProjectPaused
	if err := store.UpdateProject(ctx, project); err != nil {
		t.Fatal(err)
	}

	// a finished while the pause landed.
	if _, err := store.ClaimTask(ctx, tasks["a"].ID, orchestration.TaskAssigned, orchestration.TaskInProgress); err != nil {
		t.Fatal(err)
	}

	exec := &MockExecutor{Store: store}
	scheduler := application.NewDependencyScheduler(store, exec, &MockHumanRouter{}, nil, nil)
	exec.SetCompletionCallback(scheduler.OnTaskCompleted)

	if err := scheduler.OnTaskCompleted(ctx, tasks["a"].ID); err != nil {
		t.Fatal(err)
	}

	a, _ := store.GetTask(ctx, tasks["a"].ID)
	if a.Status != orchestration.TaskCompleted {
		t.Errorf("completion must still be recorded, got %s", a.Status)
	}
	if len(exec.ExecutedTasks()) != 0 {
		t.Error("paused project must not dispatch dependents")
	}
	reloaded, _ := store.GetProject(ctx, projectID)
	if reloaded.Status != orchestration.ProjectPaused {
		t.Errorf("project should stay paused, got %s", reloaded.Status)
	}
}

func TestDispatchReady_DispatchesWholeReadySet(t *testing.T) {
	store := storage.NewMemoryStore()
	ctx := context.Background()
	projectID, tasks := seedDiamond(t, store)

	// Complete a so b and c are both ready.
	a, _ := store.GetTask(ctx, tasks["a"].ID)
	a.Status = orchestration.TaskCompleted
	if err := store.SaveTask(ctx, a); err != nil {
		t.Fatal(err)
	}

	exec := &MockExecutor{Store: store}
	exec.SetCompletionCallback(func(ctx context.Context, taskID string) error { return nil })
	scheduler := application.NewDependencyScheduler(store, exec, &MockHumanRouter{}, nil, nil)

	n, err := scheduler.DispatchReady(ctx, projectID)
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("expected 2 dispatches, got %d", n)
	}
	if got := len(exec.ExecutedTasks()); got != 2 {
		t.Errorf("expected 2 executor handoffs, got %d", got)
	}
}

func TestValidateGraph_Passthrough(t *testing.T) {
	scheduler := application.NewDependencyScheduler(storage.NewMemoryStore(), &MockExecutor{}, &MockHumanRouter{}, nil, nil)
	ok, _ := scheduler.ValidateGraph([]orchestration.TaskSpec{
		{Key: "a", Title: "a"},
		{Key: "b", Title: "b", BlockedByKeys: []string{"a"}},
	})
	if !ok {
		t.Error("valid graph rejected")
	}
	ok, _ = scheduler.ValidateGraph([]orchestration.TaskSpec{
		{Key: "a", Title: "a", BlockedByKeys: []string{"b"}},
		{Key: "b", Title: "b", BlockedByKeys: []string{"a"}},
	})
	if ok {
		t.Error("cycle accepted")
	}
}
