package scheduler

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrDependencyFailed marks a task that never ran because a dependency failed.
	ErrDependencyFailed = errors.New("dependency failed")

	// ErrWorkflowAborted marks tasks left unrun after a critical failure.
	ErrWorkflowAborted = errors.New("workflow aborted")

	// ErrNoRunner is returned when no runner is registered for a task kind.
	ErrNoRunner = errors.New("no runner registered")
)

// StalledGraphError reports that pending tasks remain but none can become
// ready: the graph has a cycle or references a task that does not exist.
type StalledGraphError struct {
	Remaining []string // IDs of tasks that could not run
	Cause     error    // Diagnosis from DAG validation, if any
}

func (e *StalledGraphError) Error() string {
	msg := fmt.Sprintf("stalled graph: %d task(s) can never become ready [%s]",
		len(e.Remaining), strings.Join(e.Remaining, ", "))
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *StalledGraphError) Unwrap() error {
	return e.Cause
}

// TaskFailure is recorded when a runner returns an error, panics or times out.
type TaskFailure struct {
	TaskID   string
	Kind     Kind
	Priority Priority
	TimedOut bool
	Err      error
}

func (e *TaskFailure) Error() string {
	return fmt.Sprintf("task %s (%s) failed: %v", e.TaskID, e.Kind, e.Err)
}

func (e *TaskFailure) Unwrap() error {
	return e.Err
}
