package orchestration

import (
	"errors"
	"fmt"
)

// Sentinel errors for lookups.
var (
	ErrProjectNotFound  = errors.New("project not found")
	ErrTaskNotFound     = errors.New("task not found")
	ErrAgentNotFound    = errors.New("agent not found")
	ErrDocumentNotFound = errors.New("document not found")
)

// StateError reports a lifecycle action attempted from the wrong status.
// It is distinct from a not-found error: the project exists, the caller's
// requested transition does not.
type StateError struct {
	ProjectID string
	Action    string
	Status    ProjectStatus
}

func (e *StateError) Error() string {
	return fmt.Sprintf("cannot %s project %s in status '%s'", e.Action, e.ProjectID, e.Status)
}
