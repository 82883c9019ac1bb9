package scheduler

import (
	"fmt"
	"time"
)

// Kind identifies which capability worker runs a task. The set is closed:
// every Kind has exactly one payload type and one output type.
type Kind int

const (
	KindDocumentProcessing Kind = iota // Extract structured data from an attachment
	KindDataAnalysis                   // Analyze the user's financial data
	KindFinancialOperation             // Propose/execute record changes
	KindValidation                     // Gate operations before they are reported
	KindCommunication                  // Compose the reply; terminal node of every plan
)

var kindNames = [...]string{
	KindDocumentProcessing: "document_processing",
	KindDataAnalysis:       "data_analysis",
	KindFinancialOperation: "financial_operation",
	KindValidation:         "validation",
	KindCommunication:      "communication",
}

// Kinds returns every task kind in declaration order.
func Kinds() []Kind {
	return []Kind{
		KindDocumentProcessing,
		KindDataAnalysis,
		KindFinancialOperation,
		KindValidation,
		KindCommunication,
	}
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("kind(%d)", int(k))
	}
	return kindNames[k]
}

// Valid reports whether k is one of the declared kinds.
func (k Kind) Valid() bool {
	return k >= 0 && int(k) < len(kindNames)
}

// ParseKind converts a kind name back into a Kind.
func ParseKind(s string) (Kind, error) {
	for i, name := range kindNames {
		if name == s {
			return Kind(i), nil
		}
	}
	return 0, fmt.Errorf("unknown task kind %q", s)
}

// Priority orders ready tasks; critical tasks abort the workflow on failure.
type Priority int

const (
	PriorityLow Priority = iota
	PriorityMedium
	PriorityHigh
	PriorityCritical
)

func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "low"
	case PriorityMedium:
		return "medium"
	case PriorityHigh:
		return "high"
	case PriorityCritical:
		return "critical"
	default:
		return fmt.Sprintf("priority(%d)", int(p))
	}
}

// TaskStatus represents the current state of a task.
// Transitions only move forward: pending -> running -> completed|failed,
// or pending -> failed when a dependency failed or the workflow stopped.
type TaskStatus int

const (
	TaskPending   TaskStatus = iota // Waiting for dependencies
	TaskRunning                     // Currently executing
	TaskCompleted                   // Finished successfully
	TaskFailed                      // Finished with error, or never ran
)

func (s TaskStatus) String() string {
	switch s {
	case TaskPending:
		return "pending"
	case TaskRunning:
		return "running"
	case TaskCompleted:
		return "completed"
	case TaskFailed:
		return "failed"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Terminal reports whether no further transition is possible.
func (s TaskStatus) Terminal() bool {
	return s == TaskCompleted || s == TaskFailed
}

// canTransition encodes the forward-only state machine.
func (s TaskStatus) canTransition(to TaskStatus) bool {
	switch s {
	case TaskPending:
		return to == TaskRunning || to == TaskFailed
	case TaskRunning:
		return to == TaskCompleted || to == TaskFailed
	default:
		return false
	}
}

// Task represents a unit of work in the DAG.
type Task struct {
	ID        string   // Unique within a workflow, assigned by the planner
	Kind      Kind     // Selects the runner
	Priority  Priority // Tie-break in the ready set; critical aborts on failure
	Payload   Payload  // Kind-specific input; Payload.Kind() must equal Kind
	DependsOn []string // Task IDs that must complete before this one starts

	Status     TaskStatus
	Result     Output // Set when Status == TaskCompleted
	Error      error  // Set when Status == TaskFailed
	StartedAt  time.Time
	FinishedAt time.Time
}

// Critical reports whether a failure of this task aborts the workflow.
func (t *Task) Critical() bool {
	return t.Priority == PriorityCritical
}

// Duration is the time the task spent running. Zero if it never started.
func (t *Task) Duration() time.Duration {
	if t.StartedAt.IsZero() || t.FinishedAt.IsZero() {
		return 0
	}
	return t.FinishedAt.Sub(t.StartedAt)
}

func cloneTask(task *Task) *Task {
	if task == nil {
		return nil
	}

	cp := *task
	if task.DependsOn != nil {
		cp.DependsOn = append([]string(nil), task.DependsOn...)
	}
	return &cp
}
