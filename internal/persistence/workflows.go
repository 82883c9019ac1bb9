package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// TaskRun is the final state of one task of a recorded workflow.
type TaskRun struct {
	TaskID     string
	Kind       string
	Priority   string
	Status     string
	Error      string
	StartedAt  time.Time
	FinishedAt time.Time
}

// WorkflowRun is the durable record of one processed request.
type WorkflowRun struct {
	ID        string
	UserID    string
	Message   string
	Success   bool
	Fallback  bool // Answered by the single-pass fallback
	Errors    []string
	ElapsedMs int64
	CreatedAt time.Time
	Tasks     []TaskRun
}

// SaveWorkflowRun stores a run and its tasks in one transaction.
func (s *SQLiteStore) SaveWorkflowRun(ctx context.Context, run WorkflowRun) error {
	errs := run.Errors
	if errs == nil {
		errs = []string{}
	}
	errJSON, err := json.Marshal(errs)
	if err != nil {
		return fmt.Errorf("failed to encode errors: %w", err)
	}
	created := run.CreatedAt
	if created.IsZero() {
		created = s.now()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO workflow_runs (id, user_id, message, success, fallback, errors, elapsed_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, run.ID, run.UserID, run.Message, run.Success, run.Fallback, string(errJSON), run.ElapsedMs, toMillis(created))
	if err != nil {
		return fmt.Errorf("failed to insert workflow run: %w", err)
	}

	for i, t := range run.Tasks {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO task_runs (workflow_id, task_id, seq, kind, priority, status, error, started_at, finished_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, run.ID, t.TaskID, i, t.Kind, t.Priority, t.Status, t.Error, toMillis(t.StartedAt), toMillis(t.FinishedAt))
		if err != nil {
			return fmt.Errorf("failed to insert task run %s: %w", t.TaskID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// ListWorkflowRuns returns the most recent runs, newest first, with their
// tasks. A non-positive limit returns every run.
func (s *SQLiteStore) ListWorkflowRuns(ctx context.Context, limit int) ([]WorkflowRun, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, message, success, fallback, errors, elapsed_ms, created_at
		FROM workflow_runs
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query workflow runs: %w", err)
	}

	runs := []WorkflowRun{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("error iterating workflow runs: %w", err)
	}
	rows.Close()

	// Tasks are loaded after the first result set is closed: the store
	// holds a single connection.
	for i := range runs {
		tasks, err := s.taskRuns(ctx, runs[i].ID)
		if err != nil {
			return nil, err
		}
		runs[i].Tasks = tasks
	}
	return runs, nil
}

// GetWorkflowRun returns one run with its tasks.
func (s *SQLiteStore) GetWorkflowRun(ctx context.Context, id string) (WorkflowRun, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, message, success, fallback, errors, elapsed_ms, created_at
		FROM workflow_runs
		WHERE id = ?
	`, id)
	run, err := scanRun(row)
	if err == sql.ErrNoRows {
		return WorkflowRun{}, fmt.Errorf("workflow run not found: %s", id)
	}
	if err != nil {
		return WorkflowRun{}, err
	}
	run.Tasks, err = s.taskRuns(ctx, id)
	return run, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (WorkflowRun, error) {
	var run WorkflowRun
	var errJSON string
	var created int64
	err := row.Scan(&run.ID, &run.UserID, &run.Message, &run.Success, &run.Fallback, &errJSON, &run.ElapsedMs, &created)
	if err == sql.ErrNoRows {
		return run, err
	}
	if err != nil {
		return run, fmt.Errorf("failed to scan workflow run: %w", err)
	}
	if err := json.Unmarshal([]byte(errJSON), &run.Errors); err != nil {
		return run, fmt.Errorf("failed to decode errors of run %s: %w", run.ID, err)
	}
	run.CreatedAt = fromMillis(created)
	return run, nil
}

func (s *SQLiteStore) taskRuns(ctx context.Context, workflowID string) ([]TaskRun, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT task_id, kind, priority, status, error, started_at, finished_at
		FROM task_runs
		WHERE workflow_id = ?
		ORDER BY seq ASC
	`, workflowID)
	if err != nil {
		return nil, fmt.Errorf("failed to query task runs: %w", err)
	}
	defer rows.Close()

	tasks := []TaskRun{}
	for rows.Next() {
		var t TaskRun
		var started, finished int64
		if err := rows.Scan(&t.TaskID, &t.Kind, &t.Priority, &t.Status, &t.Error, &started, &finished); err != nil {
			return nil, fmt.Errorf("failed to scan task run: %w", err)
		}
		t.StartedAt = fromMillis(started)
		t.FinishedAt = fromMillis(finished)
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating task runs: %w", err)
	}
	return tasks, nil
}
