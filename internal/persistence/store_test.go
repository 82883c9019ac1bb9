package persistence

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/aristath/finassist/internal/retrieval"
)

// testStore creates an in-memory store for testing and registers cleanup.
func testStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewMemoryStore(context.Background(), nil)
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

func TestMemoryStoresAreIsolated(t *testing.T) {
	ctx := context.Background()
	a := testStore(t)
	b := testStore(t)

	if err := a.StoreMemory(ctx, "u1", "paid the electricity bill", nil); err != nil {
		t.Fatal(err)
	}
	n, err := b.CountMemories(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Errorf("separate memory stores share data: %d rows", n)
	}
}

func TestSearchMemories(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	for _, m := range []string{
		"Q: quanto gastei no supermercado? A: 320 reais em março",
		"Q: qual o limite do cartão? A: 5000 reais",
		"Q: como economizar na conta de luz? A: desligue aparelhos",
	} {
		if err := store.StoreMemory(ctx, "u1", m, map[string]string{"kind": "interaction"}); err != nil {
			t.Fatalf("StoreMemory: %v", err)
		}
	}
	if err := store.StoreMemory(ctx, "u2", "Q: quanto gastei no supermercado? A: 90 reais", nil); err != nil {
		t.Fatal(err)
	}

	hits, err := store.SearchMemories(ctx, "quanto gastei no supermercado", "u1", 2, 0.1)
	if err != nil {
		t.Fatalf("SearchMemories: %v", err)
	}
	if len(hits) == 0 {
		t.Fatal("expected at least one hit")
	}
	if len(hits) > 2 {
		t.Errorf("maxResults ignored: %d hits", len(hits))
	}
	if !strings.Contains(hits[0].Content, "320 reais") {
		t.Errorf("best hit = %q", hits[0].Content)
	}
	for _, h := range hits {
		if h.Source != retrieval.SourceMemory {
			t.Errorf("source = %q", h.Source)
		}
		if strings.Contains(h.Content, "90 reais") {
			t.Error("another user's memory leaked into results")
		}
		if h.Metadata["kind"] != "interaction" {
			t.Errorf("metadata not round-tripped: %v", h.Metadata)
		}
	}
	for i := 1; i < len(hits); i++ {
		if hits[i].RawSimilarity > hits[i-1].RawSimilarity {
			t.Error("hits not sorted by similarity")
		}
	}

	hits, err = store.SearchMemories(ctx, "quanto gastei no supermercado", "u1", 5, 0.999)
	if err != nil {
		t.Fatal(err)
	}
	for _, h := range hits {
		if h.RawSimilarity < 0.999 {
			t.Errorf("threshold ignored: %v", h.RawSimilarity)
		}
	}
}

func TestStoreMemoryRequiresUser(t *testing.T) {
	if err := testStore(t).StoreMemory(context.Background(), "", "x", nil); err == nil {
		t.Error("expected error for empty user")
	}
}

func TestKnowledge(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	id, err := store.AddKnowledge(ctx, KnowledgeEntry{
		Title:    "Credit card interest",
		Category: "credit cards",
		Content:  "Credit card interest accrues on the unpaid statement balance.",
	})
	if err != nil {
		t.Fatalf("AddKnowledge: %v", err)
	}
	if _, err := store.AddKnowledge(ctx, KnowledgeEntry{
		Title:    "Emergency fund",
		Category: "savings",
		Content:  "Keep three to six months of expenses in an emergency fund.",
		Metadata: map[string]string{"lang": "en"},
	}); err != nil {
		t.Fatal(err)
	}

	hits, err := store.SearchKnowledge(ctx, "how does credit card interest work", 5)
	if err != nil {
		t.Fatalf("SearchKnowledge: %v", err)
	}
	if len(hits) == 0 || hits[0].Title != "Credit card interest" {
		t.Fatalf("unexpected hits %+v", hits)
	}
	if hits[0].Category() != "credit cards" || hits[0].Source != retrieval.SourceKnowledge {
		t.Errorf("hit = %+v", hits[0])
	}

	// Same ID replaces the entry.
	if _, err := store.AddKnowledge(ctx, KnowledgeEntry{ID: id, Title: "Card interest", Content: "updated"}); err != nil {
		t.Fatal(err)
	}
	n, _ := store.CountKnowledge(ctx)
	if n != 2 {
		t.Errorf("expected 2 entries after replace, got %d", n)
	}

	if _, err := store.AddKnowledge(ctx, KnowledgeEntry{Title: "empty"}); err == nil {
		t.Error("expected error for empty content")
	}
}

func TestWorkflowRuns(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()
	base := time.UnixMilli(1760000000000)

	first := WorkflowRun{
		ID:        "wf-1",
		UserID:    "u1",
		Message:   "Gastei 50 reais",
		Success:   true,
		ElapsedMs: 120,
		CreatedAt: base,
		Tasks: []TaskRun{
			{TaskID: "t1", Kind: "financial_operation", Priority: "high", Status: "completed", StartedAt: base, FinishedAt: base.Add(50 * time.Millisecond)},
			{TaskID: "t2", Kind: "communication", Priority: "medium", Status: "completed", StartedAt: base.Add(60 * time.Millisecond), FinishedAt: base.Add(120 * time.Millisecond)},
		},
	}
	second := WorkflowRun{
		ID:        "wf-2",
		UserID:    "u1",
		Message:   "importe",
		Success:   false,
		Fallback:  true,
		Errors:    []string{"task t3 (validation) failed: rejected"},
		ElapsedMs: 40,
		CreatedAt: base.Add(time.Minute),
		Tasks:     []TaskRun{{TaskID: "t3", Kind: "validation", Priority: "critical", Status: "failed", Error: "rejected"}},
	}
	for _, run := range []WorkflowRun{first, second} {
		if err := store.SaveWorkflowRun(ctx, run); err != nil {
			t.Fatalf("SaveWorkflowRun(%s): %v", run.ID, err)
		}
	}

	runs, err := store.ListWorkflowRuns(ctx, 10)
	if err != nil {
		t.Fatalf("ListWorkflowRuns: %v", err)
	}
	if len(runs) != 2 || runs[0].ID != "wf-2" {
		t.Fatalf("expected newest first, got %+v", runs)
	}
	if !runs[0].Fallback || runs[0].Success || len(runs[0].Errors) != 1 {
		t.Errorf("run fields not round-tripped: %+v", runs[0])
	}
	if len(runs[1].Tasks) != 2 || runs[1].Tasks[1].TaskID != "t2" {
		t.Errorf("tasks = %+v", runs[1].Tasks)
	}
	if !runs[1].Tasks[0].FinishedAt.Equal(base.Add(50 * time.Millisecond)) {
		t.Errorf("finished at = %v", runs[1].Tasks[0].FinishedAt)
	}
	if !runs[0].Tasks[0].StartedAt.IsZero() {
		t.Error("unset timestamp should read back as zero")
	}

	limited, _ := store.ListWorkflowRuns(ctx, 1)
	if len(limited) != 1 {
		t.Errorf("limit ignored: %d runs", len(limited))
	}

	got, err := store.GetWorkflowRun(ctx, "wf-1")
	if err != nil || got.Message != "Gastei 50 reais" || len(got.Errors) != 0 {
		t.Errorf("GetWorkflowRun = %+v, %v", got, err)
	}
	if _, err := store.GetWorkflowRun(ctx, "missing"); err == nil {
		t.Error("expected not found error")
	}

	if err := store.SaveWorkflowRun(ctx, first); err == nil {
		t.Error("duplicate run ID should be rejected")
	}
}

func TestSQLiteStoreOnDisk(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "finassist.db")

	store, err := NewSQLiteStore(ctx, path, nil)
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	if err := store.StoreMemory(ctx, "u1", "hello", nil); err != nil {
		t.Fatal(err)
	}
	store.Close()

	reopened, err := NewSQLiteStore(ctx, path, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer reopened.Close()
	n, err := reopened.CountMemories(ctx, "u1")
	if err != nil || n != 1 {
		t.Errorf("expected persisted memory, got %d, %v", n, err)
	}
}

type failingEmbedder struct{}

func (failingEmbedder) Embed(context.Context, string) ([]float32, error) {
	return nil, errors.New("embedding service down")
}
func (failingEmbedder) Dimensions() int { return 0 }

func TestEmbedderFailure(t *testing.T) {
	store, err := NewMemoryStore(context.Background(), failingEmbedder{})
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	if err := store.StoreMemory(context.Background(), "u1", "x", nil); err == nil {
		t.Error("expected embed error")
	}
	if _, err := store.SearchKnowledge(context.Background(), "x", 3); err == nil {
		t.Error("expected embed error")
	}
}
