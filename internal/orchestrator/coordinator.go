// Package orchestrator turns a user request into a planned workflow, runs
// it and shapes the reply, falling back to a single completion when the
// workflow fails.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/aristath/finassist/internal/persistence"
	"github.com/aristath/finassist/internal/planner"
	"github.com/aristath/finassist/internal/scheduler"
	"github.com/aristath/finassist/internal/workers"
)

// Request is one user message with its optional attachment.
type Request struct {
	Message          string
	UserID           string
	FinancialContext scheduler.FinancialContext
	Attachment       *scheduler.Attachment
	DocumentAnalysis *scheduler.DocumentAnalysis
}

// Response is what the chat UI renders.
type Response struct {
	Success         bool                  `json:"success"`
	Message         string                `json:"message"`
	Sources         []scheduler.SourceRef `json:"sources"`
	ConfidenceScore float64               `json:"confidenceScore"`
	WorkflowID      string                `json:"workflowId"`
	Fallback        bool                  `json:"fallback,omitempty"`
}

// History stores finished workflow runs.
type History interface {
	SaveWorkflowRun(ctx context.Context, run persistence.WorkflowRun) error
}

// WorkflowRecorder receives one sample per processed request.
type WorkflowRecorder interface {
	RecordWorkflow(success bool, elapsed time.Duration)
	Fallback()
}

// Config wires a Coordinator. Only Executor is required.
type Config struct {
	Planner   *planner.Planner
	Executor  *scheduler.Executor
	Completer workers.Completer // Used by the single-pass fallback
	Retriever workers.Retriever // Context for the fallback
	Memory    *MemoryWriter     // Stores successful interactions
	History   History
	Metrics   WorkflowRecorder

	DegradedMessages []string
	HistoryTimeout   time.Duration // Default 5s
	Logger           *slog.Logger
	NewID            func() string
	Now              func() time.Time
}

// Coordinator is the entry point used by the chat UI.
type Coordinator struct {
	cfg    Config
	logger *slog.Logger
}

// NewCoordinator validates cfg and fills in defaults.
func NewCoordinator(cfg Config) (*Coordinator, error) {
	if cfg.Executor == nil {
		return nil, errors.New("orchestrator: executor is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Planner == nil {
		cfg.Planner = planner.New(planner.Config{Logger: cfg.Logger})
	}
	if len(cfg.DegradedMessages) == 0 {
		cfg.DegradedMessages = DefaultDegradedMessages
	}
	if cfg.HistoryTimeout <= 0 {
		cfg.HistoryTimeout = 5 * time.Second
	}
	if cfg.NewID == nil {
		cfg.NewID = uuid.NewString
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Coordinator{cfg: cfg, logger: cfg.Logger}, nil
}

// ProcessRequest plans and runs the workflow for req. It always returns a
// Response: failures degrade to the single-pass fallback and then to a
// canned apology.
func (c *Coordinator) ProcessRequest(ctx context.Context, req Request) (resp Response) {
	start := c.cfg.Now()
	run := persistence.WorkflowRun{
		ID:        c.cfg.NewID(),
		UserID:    req.UserID,
		Message:   req.Message,
		CreatedAt: start,
	}
	logger := c.logger.With("workflow_id", run.ID, "user_id", req.UserID)

	defer func() {
		if r := recover(); r != nil {
			logger.Error("request processing panicked", "panic", r)
			run.Success = false
			run.Errors = append(run.Errors, fmt.Sprintf("panic: %v", r))
			resp = c.degraded(req, run.ID)
		}
		run.ElapsedMs = c.cfg.Now().Sub(start).Milliseconds()
		c.finish(ctx, logger, run)
	}()

	tasks := c.cfg.Planner.Plan(planner.Request{
		Message:          req.Message,
		UserID:           req.UserID,
		Attachment:       req.Attachment,
		DocumentAnalysis: req.DocumentAnalysis,
		FinancialContext: req.FinancialContext,
	})

	result := c.cfg.Executor.Execute(ctx, tasks)
	run.Errors = append(run.Errors, result.Errors...)
	run.Tasks = taskRuns(result.Tasks)

	if result.Success {
		if reply, ok := result.Results.Communication(); ok {
			run.Success = true
			c.remember(req, reply.Message, run.ID)
			logger.Info("workflow completed", "tasks", len(result.Tasks), "elapsed_ms", result.ElapsedMs())
			return Response{
				Success:         true,
				Message:         reply.Message,
				Sources:         reply.Sources,
				ConfidenceScore: reply.Confidence,
				WorkflowID:      run.ID,
			}
		}
		run.Errors = append(run.Errors, "workflow produced no reply")
	}

	logger.Warn("workflow failed", "error", result.Err, "errors", len(run.Errors))

	if ctx.Err() != nil {
		return c.degraded(req, run.ID)
	}

	run.Fallback = true
	fb, err := c.singlePass(ctx, req, run.Errors)
	if err != nil {
		logger.Error("single-pass fallback failed", "error", err)
		run.Errors = append(run.Errors, fmt.Sprintf("fallback failed: %v", err))
		return c.degraded(req, run.ID)
	}
	fb.WorkflowID = run.ID
	c.remember(req, fb.Message, run.ID)
	return fb
}

// degraded is the last-resort reply.
func (c *Coordinator) degraded(req Request, workflowID string) Response {
	return Response{
		Success:    false,
		Message:    SelectVariant(Seed(req.UserID, req.Message), c.cfg.DegradedMessages),
		WorkflowID: workflowID,
	}
}

func (c *Coordinator) remember(req Request, reply, workflowID string) {
	if c.cfg.Memory == nil || req.UserID == "" {
		return
	}
	c.cfg.Memory.Submit(req.UserID, fmt.Sprintf("User: %s\nAssistant: %s", req.Message, reply), map[string]string{
		"type":        "interaction",
		"workflow_id": workflowID,
	})
}

// finish records metrics and persists the run. History is written even if
// the request context was cancelled.
func (c *Coordinator) finish(ctx context.Context, logger *slog.Logger, run persistence.WorkflowRun) {
	if c.cfg.Metrics != nil {
		c.cfg.Metrics.RecordWorkflow(run.Success, time.Duration(run.ElapsedMs)*time.Millisecond)
		if run.Fallback {
			c.cfg.Metrics.Fallback()
		}
	}

	if c.cfg.History == nil {
		return
	}
	hctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.cfg.HistoryTimeout)
	defer cancel()
	if err := c.cfg.History.SaveWorkflowRun(hctx, run); err != nil {
		logger.Warn("failed to save workflow run", "error", err)
	}
}

// Close waits for queued memory writes.
func (c *Coordinator) Close() {
	if c.cfg.Memory != nil {
		c.cfg.Memory.Close()
	}
}

func taskRuns(tasks []*scheduler.Task) []persistence.TaskRun {
	runs := make([]persistence.TaskRun, 0, len(tasks))
	for _, t := range tasks {
		tr := persistence.TaskRun{
			TaskID:     t.ID,
			Kind:       t.Kind.String(),
			Priority:   t.Priority.String(),
			Status:     t.Status.String(),
			StartedAt:  t.StartedAt,
			FinishedAt: t.FinishedAt,
		}
		if t.Error != nil {
			tr.Error = t.Error.Error()
		}
		runs = append(runs, tr)
	}
	return runs
}
