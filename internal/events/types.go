package events

import (
	"time"
)

// Event is the base interface for all events.
type Event interface {
	EventType() string
	TaskID() string
}

// Topic constants
const (
	TopicTask     = "task"
	TopicWorkflow = "workflow"
)

// Event type constants
const (
	EventTypeTaskStarted       = "task.started"
	EventTypeTaskCompleted     = "task.completed"
	EventTypeTaskFailed        = "task.failed"
	EventTypeTaskSkipped       = "task.skipped"
	EventTypeWorkflowStarted   = "workflow.started"
	EventTypeWorkflowCompleted = "workflow.completed"
)

// TaskStartedEvent is published when a task begins execution.
type TaskStartedEvent struct {
	ID        string
	Kind      string
	Priority  string
	Timestamp time.Time
}

func (e TaskStartedEvent) EventType() string { return EventTypeTaskStarted }
func (e TaskStartedEvent) TaskID() string    { return e.ID }

// TaskCompletedEvent is published when a task completes successfully.
type TaskCompletedEvent struct {
	ID        string
	Kind      string
	Duration  time.Duration
	Timestamp time.Time
}

func (e TaskCompletedEvent) EventType() string { return EventTypeTaskCompleted }
func (e TaskCompletedEvent) TaskID() string    { return e.ID }

// TaskFailedEvent is published when a runner fails or times out.
type TaskFailedEvent struct {
	ID        string
	Kind      string
	Critical  bool
	TimedOut  bool
	Err       error
	Duration  time.Duration
	Timestamp time.Time
}

func (e TaskFailedEvent) EventType() string { return EventTypeTaskFailed }
func (e TaskFailedEvent) TaskID() string    { return e.ID }

// TaskSkippedEvent is published for tasks that never run because a
// dependency failed.
type TaskSkippedEvent struct {
	ID        string
	Kind      string
	Cause     string // ID of the failed dependency
	Timestamp time.Time
}

func (e TaskSkippedEvent) EventType() string { return EventTypeTaskSkipped }
func (e TaskSkippedEvent) TaskID() string    { return e.ID }

// WorkflowStartedEvent is published once the task graph is accepted.
type WorkflowStartedEvent struct {
	Total     int
	Timestamp time.Time
}

func (e WorkflowStartedEvent) EventType() string { return EventTypeWorkflowStarted }
func (e WorkflowStartedEvent) TaskID() string    { return "" }

// WorkflowCompletedEvent is published once per Execute call.
type WorkflowCompletedEvent struct {
	Success   bool
	Total     int
	Completed int
	Failed    int
	Elapsed   time.Duration
	Timestamp time.Time
}

func (e WorkflowCompletedEvent) EventType() string { return EventTypeWorkflowCompleted }
func (e WorkflowCompletedEvent) TaskID() string    { return "" }
