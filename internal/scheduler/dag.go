package scheduler

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gammazero/toposort"
)

// DAG holds the task graph of a single workflow. It is owned by one
// Execute call and never shared between workflows.
type DAG struct {
	mu         sync.RWMutex
	tasks      map[string]*Task    // All tasks indexed by ID
	order      []string            // Insertion order, used for tie-breaks
	dependents map[string][]string // Maps taskID -> list of tasks that depend on it
}

// NewDAG creates an empty DAG.
func NewDAG() *DAG {
	return &DAG{
		tasks:      make(map[string]*Task),
		dependents: make(map[string][]string),
	}
}

// AddTask adds a copy of task to the DAG in pending state.
// Returns error if the ID already exists or the payload does not match the kind.
func (d *DAG) AddTask(task *Task) error {
	if task == nil {
		return fmt.Errorf("nil task")
	}
	if task.ID == "" {
		return fmt.Errorf("task has empty ID")
	}
	if !task.Kind.Valid() {
		return fmt.Errorf("task %q has invalid kind %d", task.ID, int(task.Kind))
	}
	if task.Payload != nil && task.Payload.Kind() != task.Kind {
		return fmt.Errorf("task %q: payload kind %s does not match task kind %s", task.ID, task.Payload.Kind(), task.Kind)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if _, exists := d.tasks[task.ID]; exists {
		return fmt.Errorf("task with ID %q already exists", task.ID)
	}

	cp := cloneTask(task)
	cp.Status = TaskPending
	cp.Result = nil
	cp.Error = nil
	cp.StartedAt = time.Time{}
	cp.FinishedAt = time.Time{}

	d.tasks[cp.ID] = cp
	d.order = append(d.order, cp.ID)

	for _, depID := range cp.DependsOn {
		d.dependents[depID] = append(d.dependents[depID], cp.ID)
	}

	return nil
}

// Validate runs topological sort using gammazero/toposort.
// Returns ordered task IDs or error if a cycle or missing dependency is found.
func (d *DAG) Validate() ([]string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	for _, taskID := range d.order {
		for _, depID := range d.tasks[taskID].DependsOn {
			if _, exists := d.tasks[depID]; !exists {
				return nil, fmt.Errorf("task %q depends on non-existent task %q", taskID, depID)
			}
		}
	}

	var edges []toposort.Edge
	for _, taskID := range d.order {
		task := d.tasks[taskID]
		if len(task.DependsOn) == 0 {
			edges = append(edges, toposort.Edge{nil, taskID})
			continue
		}
		for _, depID := range task.DependsOn {
			// Edge (depID, taskID): depID must come before taskID
			edges = append(edges, toposort.Edge{depID, taskID})
		}
	}

	sorted, err := toposort.Toposort(edges)
	if err != nil {
		return nil, fmt.Errorf("DAG contains cycle: %w", err)
	}

	order := make([]string, 0, len(sorted))
	for _, id := range sorted {
		if id != nil {
			order = append(order, id.(string))
		}
	}

	// Tasks that only appear inside a cycle are dropped by the sort.
	if len(order) != len(d.tasks) {
		found := make(map[string]bool, len(order))
		for _, id := range order {
			found[id] = true
		}
		var missing []string
		for _, taskID := range d.order {
			if !found[taskID] {
				missing = append(missing, taskID)
			}
		}
		return nil, fmt.Errorf("DAG contains cycle through: %s", strings.Join(missing, ", "))
	}

	return order, nil
}

// Ready returns pending tasks whose dependencies have all completed, ordered
// by priority (highest first) and then by insertion order.
func (d *DAG) Ready() []*Task {
	d.mu.RLock()
	defer d.mu.RUnlock()

	ready := []*Task{}
	for _, taskID := range d.order {
		task := d.tasks[taskID]
		if task.Status != TaskPending {
			continue
		}
		if d.dependenciesCompleted(task) {
			ready = append(ready, cloneTask(task))
		}
	}

	sort.SliceStable(ready, func(i, j int) bool {
		return ready[i].Priority > ready[j].Priority
	})
	return ready
}

func (d *DAG) dependenciesCompleted(task *Task) bool {
	for _, depID := range task.DependsOn {
		dep, exists := d.tasks[depID]
		if !exists || dep.Status != TaskCompleted {
			return false
		}
	}
	return true
}

// MarkRunning moves a pending task to running.
func (d *DAG) MarkRunning(taskID string, at time.Time) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	task, err := d.transition(taskID, TaskRunning)
	if err != nil {
		return err
	}
	task.StartedAt = at
	return nil
}

// MarkCompleted moves a running task to completed and stores its output.
func (d *DAG) MarkCompleted(taskID string, out Output, at time.Time) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	task, err := d.transition(taskID, TaskCompleted)
	if err != nil {
		return err
	}
	task.Result = out
	task.FinishedAt = at
	return nil
}

// MarkFailed moves a pending or running task to failed and stores the error.
func (d *DAG) MarkFailed(taskID string, taskErr error, at time.Time) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	task, err := d.transition(taskID, TaskFailed)
	if err != nil {
		return err
	}
	task.Error = taskErr
	task.FinishedAt = at
	return nil
}

func (d *DAG) transition(taskID string, to TaskStatus) (*Task, error) {
	task, exists := d.tasks[taskID]
	if !exists {
		return nil, fmt.Errorf("task %q not found", taskID)
	}
	if !task.Status.canTransition(to) {
		return nil, fmt.Errorf("task %q: illegal transition %s -> %s", taskID, task.Status, to)
	}
	task.Status = to
	return task, nil
}

// FailDependents marks every pending task that transitively depends on
// taskID as failed with ErrDependencyFailed. Returns the affected IDs in
// insertion order.
func (d *DAG) FailDependents(taskID string, at time.Time) []string {
	d.mu.Lock()
	defer d.mu.Unlock()

	affected := make(map[string]bool)
	queue := []string{taskID}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for _, depID := range d.dependents[current] {
			if affected[depID] {
				continue
			}
			dep, ok := d.tasks[depID]
			if !ok || dep.Status != TaskPending {
				continue
			}
			affected[depID] = true
			queue = append(queue, depID)
		}
	}

	var skipped []string
	for _, id := range d.order {
		if !affected[id] {
			continue
		}
		task := d.tasks[id]
		task.Status = TaskFailed
		task.Error = fmt.Errorf("%w: %s", ErrDependencyFailed, taskID)
		task.FinishedAt = at
		skipped = append(skipped, id)
	}
	return skipped
}

// FailPending marks every pending task as failed with cause.
func (d *DAG) FailPending(cause error, at time.Time) []string {
	d.mu.Lock()
	defer d.mu.Unlock()

	var failed []string
	for _, id := range d.order {
		task := d.tasks[id]
		if task.Status != TaskPending {
			continue
		}
		task.Status = TaskFailed
		task.Error = cause
		task.FinishedAt = at
		failed = append(failed, id)
	}
	return failed
}

// Pending returns the IDs of pending tasks in insertion order.
func (d *DAG) Pending() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var ids []string
	for _, id := range d.order {
		if d.tasks[id].Status == TaskPending {
			ids = append(ids, id)
		}
	}
	return ids
}

// Remaining returns the number of tasks without a terminal status.
func (d *DAG) Remaining() int {
	d.mu.RLock()
	defer d.mu.RUnlock()

	n := 0
	for _, task := range d.tasks {
		if !task.Status.Terminal() {
			n++
		}
	}
	return n
}

// Results returns the outputs of all completed tasks.
func (d *DAG) Results() Results {
	d.mu.RLock()
	defer d.mu.RUnlock()

	results := make(Results)
	for id, task := range d.tasks {
		if task.Status == TaskCompleted {
			results[id] = task.Result
		}
	}
	return results
}

// Get returns a copy of the task with the given ID.
func (d *DAG) Get(taskID string) (*Task, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	task, exists := d.tasks[taskID]
	if !exists {
		return nil, false
	}
	return cloneTask(task), true
}

// Tasks returns copies of all tasks in insertion order.
func (d *DAG) Tasks() []*Task {
	d.mu.RLock()
	defer d.mu.RUnlock()

	tasks := make([]*Task, 0, len(d.order))
	for _, id := range d.order {
		tasks = append(tasks, cloneTask(d.tasks[id]))
	}
	return tasks
}

// Sinks returns the IDs of tasks no other task depends on.
func (d *DAG) Sinks() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var sinks []string
	for _, id := range d.order {
		if len(d.dependents[id]) == 0 {
			sinks = append(sinks, id)
		}
	}
	return sinks
}
