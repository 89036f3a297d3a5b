package orchestration

import (
	"fmt"

	"github.com/felixgeelhaar/statekit"
)

// State constants for statekit integration.
// These must remain as untyped string constants for statekit.StateID
// compatibility. Values are kept in sync with the ProjectStatus constants
// in project.go.
const (
	StateDraft            = "draft"
	StatePlanning         = "planning"
	StateAwaitingApproval = "awaiting_approval"
	StateExecuting        = "executing"
	StatePaused           = "paused"
	StateCompleted        = "completed"
	StateFailed           = "failed"
)

// init validates at startup that FSM state constants match ProjectStatus values.
func init() {
	stateMap := map[string]ProjectStatus{
		StateDraft:            ProjectDraft,
		StatePlanning:         ProjectPlanning,
		StateAwaitingApproval: ProjectAwaitingApproval,
		StateExecuting:        ProjectExecuting,
		StatePaused:           ProjectPaused,
		StateCompleted:        ProjectCompleted,
		StateFailed:           ProjectFailed,
	}

	for fsmState, status := range stateMap {
		if fsmState != string(status) {
			panic(fmt.Sprintf("FSM state %q does not match ProjectStatus %q - constants are out of sync", fsmState, status))
		}
	}
}

// ProjectContext carries state data for the lifecycle machine.
type ProjectContext struct {
	ProjectID string
}

// ProjectStateMachine enforces the project lifecycle transitions.
type ProjectStateMachine struct {
	interpreter *statekit.Interpreter[ProjectContext]
}

// NewProjectStateMachine builds a lifecycle machine starting at initialState.
func NewProjectStateMachine(initialState string, projectID string) (*ProjectStateMachine, error) {
	builder := statekit.NewMachine[ProjectContext]("project-lifecycle").
		WithInitial(statekit.StateID(initialState)).
		WithContext(ProjectContext{ProjectID: projectID})

	builder.State(StateDraft).
		On("plan").Target(StatePlanning).
		Done()

	builder.State(StatePlanning).
		On("plan_ready").Target(StateAwaitingApproval).
		On("fail").Target(StateFailed).
		Done()

	builder.State(StateAwaitingApproval).
		On("approve").Target(StateExecuting).
		On("fail").Target(StateFailed).
		Done()

	builder.State(StateExecuting).
		On("pause").Target(StatePaused).
		On("complete").Target(StateCompleted).
		On("fail").Target(StateFailed).
		Done()

	builder.State(StatePaused).
		On("resume").Target(StateExecuting).
		On("fail").Target(StateFailed).
		Done()

	// Terminal states
	builder.State(StateCompleted).Done()
	builder.State(StateFailed).Done()

	machine, err := builder.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build project state machine: %w", err)
	}

	interpreter := statekit.NewInterpreter(machine)
	interpreter.Start()

	return &ProjectStateMachine{interpreter: interpreter}, nil
}

// Transition attempts to apply an event. The error names the current state so
// callers can surface guard violations verbatim.
func (sm *ProjectStateMachine) Transition(event string) error {
	before := sm.Current()
	sm.interpreter.Send(statekit.Event{Type: statekit.EventType(event)})
	after := sm.Current()

	if before != after {
		return nil
	}
	// statekit leaves the state unchanged when no transition matches.
	return fmt.Errorf("the action '%s' is not allowed while the project is in the '%s' state", event, before)
}

// Current returns the raw state id.
func (sm *ProjectStateMachine) Current() string {
	return string(sm.interpreter.State().Value)
}

// CurrentStatus returns the current state as a ProjectStatus value object.
func (sm *ProjectStateMachine) CurrentStatus() ProjectStatus {
	return ProjectStatus(sm.Current())
}

// CanTransition checks if the given event is valid for the current state.
func (sm *ProjectStateMachine) CanTransition(event string) bool {
	return sm.CurrentStatus().CanTransitionWith(event)
}

// IsTerminal returns true once the project reaches a final state.
func (sm *ProjectStateMachine) IsTerminal() bool {
	return sm.CurrentStatus().IsTerminal()
}
