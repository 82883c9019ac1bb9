package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/aristath/finassist/internal/events"
	"github.com/aristath/finassist/internal/telemetry"
)

const (
	DefaultMaxConcurrency = 5
	DefaultTaskTimeout    = 30 * time.Second
)

// ExecutorConfig configures an Executor.
type ExecutorConfig struct {
	MaxConcurrency int            // Max tasks running at once within a workflow (default 5)
	TaskTimeout    time.Duration  // Per-task deadline (default 30s)
	Telemetry      telemetry.Sink // Optional usage metrics sink
	Bus            *events.EventBus
	Logger         *slog.Logger
	Now            func() time.Time // For tests; defaults to time.Now
}

// WorkflowResult is the outcome of one Execute call. Immutable after return.
type WorkflowResult struct {
	Success bool
	Results Results  // Outputs of completed tasks by ID
	Errors  []string // Failure messages in the order they were observed
	Elapsed time.Duration
	Tasks   []*Task // Final state of every task, in insertion order
	Err     error   // Cause that stopped the workflow, if any
}

// ElapsedMs returns the wall-clock duration in milliseconds.
func (r *WorkflowResult) ElapsedMs() int64 {
	return r.Elapsed.Milliseconds()
}

// Executor runs task graphs with dependency ordering and bounded
// concurrency. One Executor may serve many workflows concurrently; each
// Execute call owns its own DAG.
type Executor struct {
	config   ExecutorConfig
	mu       sync.RWMutex
	runners  map[Kind]Runner
	inFlight atomic.Int64
}

// NewExecutor creates a new Executor.
func NewExecutor(cfg ExecutorConfig) *Executor {
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = DefaultMaxConcurrency
	}
	if cfg.TaskTimeout <= 0 {
		cfg.TaskTimeout = DefaultTaskTimeout
	}
	if cfg.Telemetry == nil {
		cfg.Telemetry = telemetry.Nop{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &Executor{
		config:  cfg,
		runners: make(map[Kind]Runner),
	}
}

// RegisterRunner maps a task kind to its capability worker.
func (e *Executor) RegisterRunner(kind Kind, r Runner) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.runners[kind] = r
}

// InFlight returns the number of tasks running across all workflows.
func (e *Executor) InFlight() int64 {
	return e.inFlight.Load()
}

func (e *Executor) runner(kind Kind) (Runner, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	r, ok := e.runners[kind]
	return r, ok
}

// Execute runs tasks until every task has a terminal status or a critical
// task fails. It never panics and always returns a result.
func (e *Executor) Execute(ctx context.Context, tasks []*Task) *WorkflowResult {
	start := e.config.Now()
	dag := NewDAG()
	result := &WorkflowResult{}

	for _, task := range tasks {
		if err := dag.AddTask(task); err != nil {
			result.Errors = append(result.Errors, err.Error())
			result.Err = err
			return e.finish(dag, result, start)
		}
	}
	e.config.Bus.Publish(events.TopicWorkflow, events.WorkflowStartedEvent{
		Total:     len(tasks),
		Timestamp: start,
	})

	for dag.Remaining() > 0 {
		if err := ctx.Err(); err != nil {
			cause := fmt.Errorf("workflow cancelled: %w", err)
			dag.FailPending(cause, e.config.Now())
			result.Errors = append(result.Errors, cause.Error())
			result.Err = cause
			break
		}

		ready := dag.Ready()
		if len(ready) == 0 {
			stall := e.stalled(dag)
			e.config.Logger.Error("scheduler invariant violated", "error", stall)
			dag.FailPending(stall, e.config.Now())
			result.Errors = append(result.Errors, stall.Error())
			result.Err = stall
			break
		}

		batch := ready
		if len(batch) > e.config.MaxConcurrency {
			batch = batch[:e.config.MaxConcurrency]
		}

		critical := e.runBatch(ctx, dag, batch)

		for _, t := range batch {
			task, _ := dag.Get(t.ID)
			if task.Status != TaskFailed {
				continue
			}
			result.Errors = append(result.Errors, task.Error.Error())
			if task.Critical() {
				continue
			}
			for _, id := range dag.FailDependents(task.ID, e.config.Now()) {
				skipped, _ := dag.Get(id)
				result.Errors = append(result.Errors, fmt.Sprintf("task %s (%s) skipped: %v", id, skipped.Kind, skipped.Error))
				e.config.Bus.Publish(events.TopicTask, events.TaskSkippedEvent{
					ID:        id,
					Kind:      skipped.Kind.String(),
					Cause:     task.ID,
					Timestamp: e.config.Now(),
				})
				// A critical task that can no longer run fails the workflow
				// just like one whose runner failed.
				if skipped.Critical() && critical == nil {
					critical = &TaskFailure{
						TaskID:   skipped.ID,
						Kind:     skipped.Kind,
						Priority: skipped.Priority,
						Err:      skipped.Error,
					}
				}
			}
		}

		if critical != nil {
			if aborted := dag.FailPending(ErrWorkflowAborted, e.config.Now()); len(aborted) > 0 {
				result.Errors = append(result.Errors, fmt.Sprintf("%v: %d task(s) not run", ErrWorkflowAborted, len(aborted)))
			}
			result.Err = critical
			break
		}
	}

	return e.finish(dag, result, start)
}

func (e *Executor) finish(dag *DAG, result *WorkflowResult, start time.Time) *WorkflowResult {
	result.Tasks = dag.Tasks()
	result.Results = dag.Results()
	result.Elapsed = e.config.Now().Sub(start)

	completed, failed := 0, 0
	for _, t := range result.Tasks {
		switch t.Status {
		case TaskCompleted:
			completed++
		case TaskFailed:
			failed++
		}
	}
	// Non-critical failures are reported in Errors but do not fail the workflow.
	result.Success = result.Err == nil

	e.config.Bus.Publish(events.TopicWorkflow, events.WorkflowCompletedEvent{
		Success:   result.Success,
		Total:     len(result.Tasks),
		Completed: completed,
		Failed:    failed,
		Elapsed:   result.Elapsed,
		Timestamp: e.config.Now(),
	})
	return result
}

// stalled builds the error for a graph with pending tasks and an empty ready set.
func (e *Executor) stalled(dag *DAG) *StalledGraphError {
	_, cause := dag.Validate()
	return &StalledGraphError{
		Remaining: dag.Pending(),
		Cause:     cause,
	}
}

// runBatch runs one ready batch concurrently. It returns the failure of a
// critical task, if one occurred; that failure also cancels the siblings.
func (e *Executor) runBatch(ctx context.Context, dag *DAG, batch []*Task) *TaskFailure {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.config.MaxConcurrency)

	for _, task := range batch {
		t := task
		g.Go(func() error {
			return e.runTask(gctx, dag, t)
		})
	}

	var failure *TaskFailure
	if err := g.Wait(); errors.As(err, &failure) {
		return failure
	}
	return nil
}

// runTask executes a single task and records its outcome in the DAG.
// Only critical failures are returned, so that errgroup cancels siblings.
func (e *Executor) runTask(ctx context.Context, dag *DAG, task *Task) error {
	logger := e.config.Logger.With("task_id", task.ID, "kind", task.Kind.String(), "priority", task.Priority.String())
	prior := dag.Results()

	started := e.config.Now()
	if err := dag.MarkRunning(task.ID, started); err != nil {
		logger.Error("failed to mark task running", "error", err)
		return nil
	}
	e.trackInFlight(1)
	defer e.trackInFlight(-1)

	e.config.Bus.Publish(events.TopicTask, events.TaskStartedEvent{
		ID:        task.ID,
		Kind:      task.Kind.String(),
		Priority:  task.Priority.String(),
		Timestamp: started,
	})

	out, err := e.invoke(ctx, task, prior)
	finished := e.config.Now()
	duration := finished.Sub(started)

	if err != nil {
		failure := &TaskFailure{
			TaskID:   task.ID,
			Kind:     task.Kind,
			Priority: task.Priority,
			TimedOut: errors.Is(err, context.DeadlineExceeded),
			Err:      err,
		}
		_ = dag.MarkFailed(task.ID, failure, finished)
		telemetry.SafeRecord(e.config.Telemetry, task.Kind.String(), false, duration)
		e.config.Bus.Publish(events.TopicTask, events.TaskFailedEvent{
			ID:        task.ID,
			Kind:      task.Kind.String(),
			Critical:  task.Critical(),
			TimedOut:  failure.TimedOut,
			Err:       failure,
			Duration:  duration,
			Timestamp: finished,
		})

		if task.Critical() {
			logger.Error("critical task failed", "error", err, "duration", duration)
			return failure
		}
		logger.Warn("task failed", "error", err, "duration", duration)
		return nil
	}

	_ = dag.MarkCompleted(task.ID, out, finished)
	telemetry.SafeRecord(e.config.Telemetry, task.Kind.String(), true, duration)
	e.config.Bus.Publish(events.TopicTask, events.TaskCompletedEvent{
		ID:        task.ID,
		Kind:      task.Kind.String(),
		Duration:  duration,
		Timestamp: finished,
	})
	logger.Debug("task completed", "duration", duration)
	return nil
}

type outcome struct {
	out Output
	err error
}

// invoke calls the runner under the task timeout. The runner goroutine is
// abandoned if it ignores cancellation; its late result is discarded.
func (e *Executor) invoke(ctx context.Context, task *Task, prior Results) (Output, error) {
	runner, ok := e.runner(task.Kind)
	if !ok {
		return nil, fmt.Errorf("%w for kind %s", ErrNoRunner, task.Kind)
	}

	tctx, cancel := context.WithTimeout(ctx, e.config.TaskTimeout)
	defer cancel()

	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: fmt.Errorf("runner panicked: %v", r)}
			}
		}()
		out, err := runner.Run(tctx, task.Payload, prior)
		done <- outcome{out: out, err: err}
	}()

	select {
	case o := <-done:
		if o.err != nil {
			return nil, o.err
		}
		if o.out != nil && o.out.Kind() != task.Kind {
			return nil, fmt.Errorf("runner returned %s output for %s task", o.out.Kind(), task.Kind)
		}
		return o.out, nil
	case <-tctx.Done():
		if errors.Is(tctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("timed out after %s: %w", e.config.TaskTimeout, tctx.Err())
		}
		return nil, fmt.Errorf("cancelled: %w", tctx.Err())
	}
}

func (e *Executor) trackInFlight(delta int64) {
	n := e.inFlight.Add(delta)
	if lo, ok := e.config.Telemetry.(telemetry.LoadObserver); ok {
		lo.ObserveInFlight(n)
	}
}
