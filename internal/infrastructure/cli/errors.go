package cli

import (
	"errors"
	"fmt"

	"github.com/felixgeelhaar/agentflow/pkg/domain/orchestration"
)

// CLIError wraps domain errors with user-facing messages and actionable hints.
type CLIError struct {
	Message  string
	Hint     string
	Err      error
	ExitCode int
}

func (e *CLIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *CLIError) Unwrap() error {
	return e.Err
}

// NewCLIError creates a CLIError with a default exit code of 1.
func NewCLIError(msg, hint string, err error) *CLIError {
	return &CLIError{
		Message:  msg,
		Hint:     hint,
		Err:      err,
		ExitCode: 1,
	}
}

func asCLIError(err error, target **CLIError) bool {
	return errors.As(err, target)
}

// MapError converts known domain errors into CLIErrors with actionable hints.
// Unmapped errors are returned as-is.
func MapError(err error) error {
	if err == nil {
		return nil
	}

	var stateErr *orchestration.StateError
	if errors.As(err, &stateErr) {
		return NewCLIError(
			stateErr.Error(),
			fmt.Sprintf("Project is '%s' — run 'agentflow status %s' to see allowed actions", stateErr.Status, stateErr.ProjectID),
			err,
		)
	}

	switch {
	case errors.Is(err, orchestration.ErrProjectNotFound):
		return NewCLIError("project not found", "Run 'agentflow list' to see known projects", err)
	case errors.Is(err, orchestration.ErrTaskNotFound):
		return NewCLIError("task not found", "Run 'agentflow status <project-id>' to list its tasks", err)
	case errors.Is(err, orchestration.ErrAgentNotFound):
		return NewCLIError("agent not found", "Run 'agentflow agents' to list known agents", err)
	}

	return err
}
