package application

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/felixgeelhaar/agentflow/pkg/domain"
	"github.com/felixgeelhaar/agentflow/pkg/domain/events"
	"github.com/felixgeelhaar/agentflow/pkg/domain/orchestration"
)

const maxProvisionalTitleLen = 80

// ProjectSession drives a project through its lifecycle: draft, planning,
// approval, execution, and completion. It is the only component that mutates
// project status; task-level state changes belong to the scheduler.
type ProjectSession struct {
	store     domain.Store
	planner   Planner
	scheduler *DependencyScheduler
	executor  Executor
	humans    HumanRouter
	publisher Publisher
	logger    *slog.Logger
}

// NewProjectSession wires the session and registers the scheduler's cascade
// as the executor completion callback. The callback path is direct on
// purpose: the best-effort event dispatcher must never sit between a task
// finishing and its dependents being dispatched.
func NewProjectSession(store domain.Store, planner Planner, scheduler *DependencyScheduler, executor Executor, humans HumanRouter, publisher Publisher, logger *slog.Logger) *ProjectSession {
	if logger == nil {
		logger = slog.Default()
	}
	s := &ProjectSession{
		store:     store,
		planner:   planner,
		scheduler: scheduler,
		executor:  executor,
		humans:    humans,
		publisher: publisher,
		logger:    logger,
	}
	executor.SetCompletionCallback(scheduler.OnTaskCompleted)
	return s
}

// Start creates a project from a raw user goal and immediately runs planning.
// The provisional title is the bounded raw input; planning replaces it with a
// title extracted from the plan document when one can be derived.
func (s *ProjectSession) Start(ctx context.Context, userInput string, depth orchestration.ResearchDepth) (*orchestration.Project, error) {
	if userInput == "" {
		return nil, fmt.Errorf("project goal must not be empty")
	}

	project := orchestration.NewProject(
		orchestration.TruncateTitle(userInput, maxProvisionalTitleLen),
		userInput,
		"human",
	)
	if err := s.store.CreateProject(ctx, project); err != nil {
		return nil, fmt.Errorf("create project: %w", err)
	}
	s.logger.Info("project created", "project_id", project.ID)

	return s.PlanProject(ctx, project.ID, userInput, depth)
}

// PlanProject runs the planner against a DRAFT project and materializes its
// output: the plan document, the task graph, and the agent team. The project
// ends in AWAITING_APPROVAL on success and FAILED otherwise.
//
// Failure modes differ on purpose: planner and store errors are re-raised to
// the caller after the project is marked FAILED, while an invalid or empty
// plan is a recorded outcome, not an error.
func (s *ProjectSession) PlanProject(ctx context.Context, projectID, userInput string, depth orchestration.ResearchDepth) (*orchestration.Project, error) {
	project, err := s.store.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}

	if err := s.transition(project, "plan"); err != nil {
		return nil, err
	}
	if err := s.store.UpdateProject(ctx, project); err != nil {
		return nil, fmt.Errorf("persist planning status: %w", err)
	}

	result, err := s.planner.Plan(ctx, userInput, project.ID, depth)
	if err != nil {
		s.failProject(ctx, project, fmt.Sprintf("planning failed: %v", err))
		return nil, fmt.Errorf("plan project %s: %w", project.ID, err)
	}

	if title := orchestration.ExtractPlanTitle(result.PlanDocument); title != "" {
		project.Title = title
	}

	if result.PlanDocument != "" {
		doc := orchestration.NewDocument(project.Title, result.PlanDocument, []string{"prd", "auto-generated"})
		if err := s.store.CreateDocument(ctx, doc); err != nil {
			return nil, s.planFailure(ctx, project, fmt.Errorf("persist plan document: %w", err))
		}
		project.PlanDocumentID = doc.ID
	}

	specs := result.AllTasks()
	if len(specs) == 0 {
		s.failProject(ctx, project, "planner produced no tasks")
		return project, nil
	}
	if ok, reason := s.scheduler.ValidateGraph(specs); !ok {
		s.failProject(ctx, project, fmt.Sprintf("invalid task graph: %s", reason))
		return project, nil
	}

	team, err := s.assembleTeam(ctx, project, result.TeamRecommendation)
	if err != nil {
		return nil, s.planFailure(ctx, project, err)
	}

	tasks, err := s.materializeTasks(ctx, project, specs)
	if err != nil {
		return nil, s.planFailure(ctx, project, err)
	}

	if err := s.assignTasks(ctx, specs, tasks, team); err != nil {
		return nil, s.planFailure(ctx, project, err)
	}

	if err := s.transition(project, "plan_ready"); err != nil {
		return nil, s.planFailure(ctx, project, err)
	}
	if err := s.store.UpdateProject(ctx, project); err != nil {
		return nil, s.planFailure(ctx, project, fmt.Errorf("persist plan: %w", err))
	}

	s.logger.Info("plan ready",
		"project_id", project.ID,
		"tasks", len(tasks),
		"agents", len(team),
		"estimated_minutes", result.EstimatedTotalMinutes)

	if err := s.humans.NotifyPlanReady(ctx, project, len(tasks), result.EstimatedTotalMinutes); err != nil {
		s.logger.Warn("plan-ready notification failed", "project_id", project.ID, "error", err)
	}
	s.broadcastPlanning(ctx, project, "")

	return project, nil
}

// Approve moves an AWAITING_APPROVAL project into execution and dispatches
// every task whose blockers are already satisfied.
func (s *ProjectSession) Approve(ctx context.Context, projectID string) (*orchestration.Project, error) {
	project, err := s.store.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if err := s.transition(project, "approve"); err != nil {
		return nil, err
	}
	now := time.Now()
	project.StartedAt = &now
	if err := s.store.UpdateProject(ctx, project); err != nil {
		return nil, fmt.Errorf("persist approval: %w", err)
	}
	s.logger.Info("project approved", "project_id", project.ID)

	if _, err := s.scheduler.DispatchReady(ctx, project.ID); err != nil {
		return nil, fmt.Errorf("dispatch initial tasks: %w", err)
	}
	return project, nil
}

// Pause halts an EXECUTING project. The status flips first so completion
// callbacks stop cascading, then running agent tasks are stopped and rolled
// back to assigned so resume re-dispatches them.
func (s *ProjectSession) Pause(ctx context.Context, projectID string) (*orchestration.Project, error) {
	project, err := s.store.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if err := s.transition(project, "pause"); err != nil {
		return nil, err
	}
	if err := s.store.UpdateProject(ctx, project); err != nil {
		return nil, fmt.Errorf("persist pause: %w", err)
	}

	tasks, err := s.store.GetProjectTasks(ctx, projectID)
	if err != nil {
		return nil, err
	}
	for _, task := range tasks {
		if task.Status != orchestration.TaskInProgress {
			continue
		}
		stopped, err := s.executor.StopTask(ctx, task.ID)
		if err != nil {
			s.logger.Warn("stop task failed", "task_id", task.ID, "error", err)
			continue
		}
		if stopped {
			if _, err := s.store.ClaimTask(ctx, task.ID, orchestration.TaskInProgress, orchestration.TaskAssigned); err != nil {
				s.logger.Warn("rollback of stopped task failed", "task_id", task.ID, "error", err)
			}
		}
	}

	s.logger.Info("project paused", "project_id", project.ID)
	return project, nil
}

// Resume moves a PAUSED project back into execution and re-dispatches the
// ready set. A project whose graph drained while paused completes here.
func (s *ProjectSession) Resume(ctx context.Context, projectID string) (*orchestration.Project, error) {
	project, err := s.store.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if err := s.transition(project, "resume"); err != nil {
		return nil, err
	}
	if err := s.store.UpdateProject(ctx, project); err != nil {
		return nil, fmt.Errorf("persist resume: %w", err)
	}
	s.logger.Info("project resumed", "project_id", project.ID)

	if _, err := s.scheduler.DispatchReady(ctx, project.ID); err != nil {
		return nil, err
	}
	if err := s.scheduler.CheckCompletion(ctx, project.ID); err != nil {
		return nil, err
	}
	return s.store.GetProject(ctx, projectID)
}

// Recover reconciles persisted state with reality after a process restart.
// Projects caught mid-planning are failed, since planner state is not
// recoverable. Executing projects have orphaned in-progress tasks rolled
// back to assigned and the ready set re-dispatched. Running it twice is a
// no-op the second time. Returns the number of projects acted on.
func (s *ProjectSession) Recover(ctx context.Context) (int, error) {
	projects, err := s.store.ListProjects(ctx)
	if err != nil {
		return 0, err
	}

	recovered := 0
	for _, project := range projects {
		switch project.Status {
		case orchestration.ProjectPlanning:
			s.failProject(ctx, project, "planning interrupted by restart")
			recovered++

		case orchestration.ProjectExecuting:
			acted, err := s.recoverExecuting(ctx, project)
			if err != nil {
				s.logger.Error("recovery failed", "project_id", project.ID, "error", err)
				continue
			}
			if acted {
				recovered++
			}
		}
	}
	return recovered, nil
}

func (s *ProjectSession) recoverExecuting(ctx context.Context, project *orchestration.Project) (bool, error) {
	tasks, err := s.store.GetProjectTasks(ctx, project.ID)
	if err != nil {
		return false, err
	}

	reset := 0
	for _, task := range tasks {
		if task.Status != orchestration.TaskInProgress {
			continue
		}
		if task.TaskType == orchestration.TaskTypeAgent && s.executor.IsTaskRunning(task.ID) {
			continue
		}
		if task.TaskType == orchestration.TaskTypeHuman {
			// Human tasks survive restarts; their completion arrives out
			// of band.
			continue
		}
		claimed, err := s.store.ClaimTask(ctx, task.ID, orchestration.TaskInProgress, orchestration.TaskAssigned)
		if err != nil {
			return false, err
		}
		if claimed {
			reset++
		}
	}

	if reset == 0 {
		return false, nil
	}
	s.logger.Info("orphaned tasks reset", "project_id", project.ID, "count", reset)
	if _, err := s.scheduler.DispatchReady(ctx, project.ID); err != nil {
		return true, err
	}
	return true, nil
}

// assembleTeam resolves the planner's recommended agents against the shared
// agent registry, reusing profiles by name before creating new ones.
func (s *ProjectSession) assembleTeam(ctx context.Context, project *orchestration.Project, specs []orchestration.AgentSpec) ([]*orchestration.Agent, error) {
	team := make([]*orchestration.Agent, 0, len(specs))
	for _, spec := range specs {
		agent, err := s.store.GetAgentByName(ctx, spec.Name)
		if err != nil {
			return nil, fmt.Errorf("look up agent %q: %w", spec.Name, err)
		}
		if agent == nil {
			agent = orchestration.NewAgent(spec.Name, spec.Role, spec.Description, spec.Specialties, spec.Backend)
			if err := s.store.CreateAgent(ctx, agent); err != nil {
				return nil, fmt.Errorf("create agent %q: %w", spec.Name, err)
			}
		}
		team = append(team, agent)
		project.TeamAgentIDs = append(project.TeamAgentIDs, agent.ID)
	}
	return team, nil
}

// materializeTasks turns planner specs into persisted tasks in two passes:
// first create every task and record its id under the planner key, then
// resolve BlockedByKeys into id edges and maintain the inverse Blocks lists.
// Keys that resolve to nothing are skipped; the validator has already
// rejected graphs with dangling references, so a miss here means the planner
// emitted a duplicate key and the surviving task wins.
func (s *ProjectSession) materializeTasks(ctx context.Context, project *orchestration.Project, specs []orchestration.TaskSpec) (map[string]*orchestration.Task, error) {
	idByKey := make(map[string]string, len(specs))
	tasks := make(map[string]*orchestration.Task, len(specs))

	for _, spec := range specs {
		task := orchestration.NewTask(spec.Title, spec.Description, orchestration.ParseTaskPriority(spec.Priority), spec.Tags)
		task.ProjectID = project.ID
		task.TaskType = spec.TaskType
		if task.TaskType == "" {
			task.TaskType = orchestration.TaskTypeAgent
		}
		task.EstimatedMinutes = spec.EstimatedMinutes
		if err := s.store.CreateTask(ctx, task); err != nil {
			return nil, fmt.Errorf("create task %q: %w", spec.Key, err)
		}
		idByKey[spec.Key] = task.ID
		tasks[spec.Key] = task
		project.TaskIDs = append(project.TaskIDs, task.ID)
	}

	for _, spec := range specs {
		task := tasks[spec.Key]
		for _, blockerKey := range spec.BlockedByKeys {
			blockerID, ok := idByKey[blockerKey]
			if !ok || blockerID == task.ID {
				continue
			}
			task.BlockedBy = append(task.BlockedBy, blockerID)
			blocker := tasks[blockerKey]
			blocker.AddBlocks(task.ID)
		}
	}

	for _, spec := range specs {
		if err := s.store.SaveTask(ctx, tasks[spec.Key]); err != nil {
			return nil, fmt.Errorf("persist task edges for %q: %w", spec.Key, err)
		}
	}
	return tasks, nil
}

// assignTasks picks an agent for each agent task by specialty overlap with
// each task spec's required specialties. The first team member is the default, so
// a task with no overlapping agent still gets an assignee. Human tasks are
// never auto-assigned.
func (s *ProjectSession) assignTasks(ctx context.Context, specs []orchestration.TaskSpec, tasks map[string]*orchestration.Task, team []*orchestration.Agent) error {
	if len(team) == 0 {
		return nil
	}
	for _, spec := range specs {
		task := tasks[spec.Key]
		if task.TaskType != orchestration.TaskTypeAgent {
			continue
		}
		best := pickAgent(team, spec.RequiredSpecialties)
		if err := s.store.AssignTask(ctx, task.ID, []string{best.ID}); err != nil {
			return fmt.Errorf("assign task %q: %w", spec.Key, err)
		}
		task.Status = orchestration.TaskAssigned
		task.AssigneeIDs = []string{best.ID}
	}
	return nil
}

// pickAgent returns the team member with the largest specialty overlap,
// breaking ties toward earlier team order.
func pickAgent(team []*orchestration.Agent, required []string) *orchestration.Agent {
	best := team[0]
	bestOverlap := -1
	for _, agent := range team {
		overlap := 0
		for _, need := range required {
			for _, have := range agent.Specialties {
				if need == have {
					overlap++
					break
				}
			}
		}
		if overlap > bestOverlap {
			best = agent
			bestOverlap = overlap
		}
	}
	return best
}

// transition applies a lifecycle event through the state machine, mapping a
// rejected event to a StateError naming the attempted action.
func (s *ProjectSession) transition(project *orchestration.Project, event string) error {
	sm, err := orchestration.NewProjectStateMachine(project.Status.String(), project.ID)
	if err != nil {
		return err
	}
	if err := sm.Transition(event); err != nil {
		return &orchestration.StateError{ProjectID: project.ID, Action: event, Status: project.Status}
	}
	project.Status = sm.CurrentStatus()
	project.UpdatedAt = time.Now()
	return nil
}

// planFailure marks the project FAILED before re-raising an error that hit
// planning partway through materialization. Without it a store fault would
// strand the project in PLANNING until the next restart's recovery.
func (s *ProjectSession) planFailure(ctx context.Context, project *orchestration.Project, err error) error {
	s.failProject(ctx, project, fmt.Sprintf("planning failed: %v", err))
	return err
}

// failProject records a failure reason and moves the project to FAILED,
// broadcasting the outcome. Persistence errors are logged, not returned:
// failProject runs on paths that already carry an error.
func (s *ProjectSession) failProject(ctx context.Context, project *orchestration.Project, reason string) {
	project.SetError(reason)
	if next, err := project.Status.TransitionWith("fail"); err == nil {
		project.Status = next
	} else {
		project.Status = orchestration.ProjectFailed
	}
	project.UpdatedAt = time.Now()
	if err := s.store.UpdateProject(ctx, project); err != nil {
		s.logger.Error("persist project failure", "project_id", project.ID, "error", err)
	}
	s.logger.Warn("project failed", "project_id", project.ID, "reason", reason)
	s.broadcastPlanning(ctx, project, reason)
}

func (s *ProjectSession) broadcastPlanning(ctx context.Context, project *orchestration.Project, errMsg string) {
	if s.publisher == nil {
		return
	}
	event := events.PlanningCompleted{
		ProjectID: project.ID,
		Status:    string(project.Status),
		Title:     project.Title,
		Error:     errMsg,
		Timestamp: time.Now(),
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Warn("planning broadcast failed", "project_id", project.ID, "error", err)
	}
}
