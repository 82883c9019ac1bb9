package scheduler

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func newTask(id string, prio Priority, deps ...string) *Task {
	return &Task{
		ID:        id,
		Kind:      KindDataAnalysis,
		Priority:  prio,
		Payload:   AnalysisPayload{Message: id},
		DependsOn: deps,
	}
}

// TestDAGValidate tests DAG validation with various graph structures.
func TestDAGValidate(t *testing.T) {
	tests := []struct {
		name        string
		tasks       []*Task
		wantErr     bool
		errContains string
	}{
		{
			name:  "valid linear chain",
			tasks: []*Task{newTask("A", PriorityLow), newTask("B", PriorityLow, "A"), newTask("C", PriorityLow, "B")},
		},
		{
			name:  "valid fan-in",
			tasks: []*Task{newTask("A", PriorityLow), newTask("B", PriorityLow), newTask("C", PriorityLow, "A", "B")},
		},
		{
			name:  "single task no deps",
			tasks: []*Task{newTask("A", PriorityLow)},
		},
		{
			name:        "direct cycle",
			tasks:       []*Task{newTask("A", PriorityLow, "B"), newTask("B", PriorityLow, "A")},
			wantErr:     true,
			errContains: "cycle",
		},
		{
			name:        "transitive cycle",
			tasks:       []*Task{newTask("A", PriorityLow, "B"), newTask("B", PriorityLow, "C"), newTask("C", PriorityLow, "A")},
			wantErr:     true,
			errContains: "cycle",
		},
		{
			name:        "self-loop",
			tasks:       []*Task{newTask("A", PriorityLow, "A")},
			wantErr:     true,
			errContains: "cycle",
		},
		{
			name:        "missing dependency",
			tasks:       []*Task{newTask("A", PriorityLow, "ghost")},
			wantErr:     true,
			errContains: "non-existent",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dag := NewDAG()
			for _, tk := range tt.tasks {
				if err := dag.AddTask(tk); err != nil {
					t.Fatalf("AddTask(%s): %v", tk.ID, err)
				}
			}

			order, err := dag.Validate()
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got order %v", order)
				}
				if !strings.Contains(err.Error(), tt.errContains) {
					t.Errorf("error %q does not contain %q", err, tt.errContains)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(order) != len(tt.tasks) {
				t.Errorf("expected %d tasks in order, got %v", len(tt.tasks), order)
			}
		})
	}
}

func TestDAGAddTaskRejects(t *testing.T) {
	tests := []struct {
		name string
		task *Task
	}{
		{"nil task", nil},
		{"empty id", &Task{Kind: KindValidation}},
		{"invalid kind", &Task{ID: "x", Kind: Kind(42)}},
		{"payload mismatch", &Task{ID: "x", Kind: KindValidation, Payload: AnalysisPayload{}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := NewDAG().AddTask(tt.task); err == nil {
				t.Error("expected error")
			}
		})
	}

	dag := NewDAG()
	if err := dag.AddTask(newTask("A", PriorityLow)); err != nil {
		t.Fatal(err)
	}
	if err := dag.AddTask(newTask("A", PriorityHigh)); err == nil {
		t.Error("expected duplicate ID to be rejected")
	}
}

func TestDAGAddTaskCopiesAndResets(t *testing.T) {
	orig := newTask("A", PriorityLow)
	orig.Status = TaskCompleted
	orig.Error = errors.New("stale")

	dag := NewDAG()
	if err := dag.AddTask(orig); err != nil {
		t.Fatal(err)
	}
	orig.DependsOn = append(orig.DependsOn, "mutated")

	got, _ := dag.Get("A")
	if got.Status != TaskPending || got.Error != nil {
		t.Errorf("expected reset pending task, got %s / %v", got.Status, got.Error)
	}
	if len(got.DependsOn) != 0 {
		t.Errorf("caller mutation leaked into DAG: %v", got.DependsOn)
	}
}

func TestDAGReadyOrdering(t *testing.T) {
	dag := NewDAG()
	for _, tk := range []*Task{
		newTask("low", PriorityLow),
		newTask("high-1", PriorityHigh),
		newTask("medium", PriorityMedium),
		newTask("high-2", PriorityHigh),
		newTask("blocked", PriorityCritical, "low"),
	} {
		if err := dag.AddTask(tk); err != nil {
			t.Fatal(err)
		}
	}

	var ids []string
	for _, tk := range dag.Ready() {
		ids = append(ids, tk.ID)
	}
	want := []string{"high-1", "high-2", "medium", "low"}
	if diff := cmp.Diff(want, ids); diff != "" {
		t.Errorf("ready order mismatch (-want +got):\n%s", diff)
	}
}

func TestDAGMarkTransitions(t *testing.T) {
	now := time.Unix(1700000000, 0)
	dag := NewDAG()
	_ = dag.AddTask(newTask("A", PriorityLow))
	_ = dag.AddTask(newTask("B", PriorityLow, "A"))

	if err := dag.MarkCompleted("A", AnalysisOutput{}, now); err == nil {
		t.Error("pending -> completed should be rejected")
	}
	if err := dag.MarkRunning("A", now); err != nil {
		t.Fatalf("MarkRunning: %v", err)
	}
	if err := dag.MarkRunning("A", now); err == nil {
		t.Error("running -> running should be rejected")
	}
	if err := dag.MarkCompleted("A", AnalysisOutput{Summary: "ok"}, now.Add(time.Second)); err != nil {
		t.Fatalf("MarkCompleted: %v", err)
	}
	if err := dag.MarkFailed("A", errors.New("late"), now); err == nil {
		t.Error("completed -> failed should be rejected")
	}
	if err := dag.MarkRunning("missing", now); err == nil {
		t.Error("unknown task should be rejected")
	}

	a, _ := dag.Get("A")
	if a.Duration() != time.Second {
		t.Errorf("expected 1s duration, got %v", a.Duration())
	}
	if got, ok := dag.Results().Analysis(); !ok || got.Summary != "ok" {
		t.Errorf("expected analysis result, got %+v", got)
	}

	ready := dag.Ready()
	if len(ready) != 1 || ready[0].ID != "B" {
		t.Errorf("expected B to be ready, got %v", ready)
	}
	if err := dag.MarkFailed("B", errors.New("boom"), now); err != nil {
		t.Errorf("pending -> failed should be allowed: %v", err)
	}
	if dag.Remaining() != 0 {
		t.Errorf("expected no remaining tasks, got %d", dag.Remaining())
	}
}

func TestDAGFailDependents(t *testing.T) {
	// A -> B -> D, A -> C, E independent
	dag := NewDAG()
	for _, tk := range []*Task{
		newTask("A", PriorityLow),
		newTask("B", PriorityLow, "A"),
		newTask("C", PriorityLow, "A"),
		newTask("D", PriorityLow, "B"),
		newTask("E", PriorityLow),
	} {
		_ = dag.AddTask(tk)
	}
	now := time.Now()
	_ = dag.MarkRunning("A", now)
	_ = dag.MarkFailed("A", errors.New("boom"), now)

	skipped := dag.FailDependents("A", now)
	if diff := cmp.Diff([]string{"B", "C", "D"}, skipped); diff != "" {
		t.Errorf("skipped mismatch (-want +got):\n%s", diff)
	}
	for _, id := range skipped {
		tk, _ := dag.Get(id)
		if tk.Status != TaskFailed || !errors.Is(tk.Error, ErrDependencyFailed) {
			t.Errorf("%s: expected dependency failure, got %s / %v", id, tk.Status, tk.Error)
		}
		if !tk.StartedAt.IsZero() {
			t.Errorf("%s: skipped task should never start", id)
		}
	}
	if got := dag.Pending(); len(got) != 1 || got[0] != "E" {
		t.Errorf("expected only E pending, got %v", got)
	}
}

func TestDAGFailPendingAndSinks(t *testing.T) {
	dag := NewDAG()
	_ = dag.AddTask(newTask("A", PriorityLow))
	_ = dag.AddTask(newTask("B", PriorityLow))
	_ = dag.AddTask(newTask("C", PriorityLow, "A", "B"))

	if diff := cmp.Diff([]string{"C"}, dag.Sinks()); diff != "" {
		t.Errorf("sinks mismatch (-want +got):\n%s", diff)
	}

	_ = dag.MarkRunning("A", time.Now())
	failed := dag.FailPending(ErrWorkflowAborted, time.Now())
	if diff := cmp.Diff([]string{"B", "C"}, failed); diff != "" {
		t.Errorf("failed mismatch (-want +got):\n%s", diff)
	}
	a, _ := dag.Get("A")
	if a.Status != TaskRunning {
		t.Errorf("running task must be left alone, got %s", a.Status)
	}
}

func TestKindNames(t *testing.T) {
	for _, k := range Kinds() {
		parsed, err := ParseKind(k.String())
		if err != nil || parsed != k {
			t.Errorf("ParseKind(%q) = %v, %v", k.String(), parsed, err)
		}
	}
	if _, err := ParseKind("teleport"); err == nil {
		t.Error("expected unknown kind error")
	}
	if Kind(99).Valid() {
		t.Error("Kind(99) should be invalid")
	}
}
