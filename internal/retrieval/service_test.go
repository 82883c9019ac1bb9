package retrieval

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aristath/finassist/internal/resilience"
)

type fakeKnowledge struct {
	hits  []RankedSnippet
	err   error
	calls atomic.Int32
}

func (f *fakeKnowledge) SearchKnowledge(ctx context.Context, query string, maxResults int) ([]RankedSnippet, error) {
	f.calls.Add(1)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.err != nil {
		return nil, f.err
	}
	if len(f.hits) > maxResults {
		return f.hits[:maxResults], nil
	}
	return f.hits, nil
}

type fakeMemory struct {
	mu        sync.Mutex
	hits      []RankedSnippet
	err       error
	threshold float64
	stored    []string
}

func (f *fakeMemory) SearchMemories(ctx context.Context, query, userID string, maxResults int, threshold float64) ([]RankedSnippet, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.threshold = threshold
	return f.hits, f.err
}

func (f *fakeMemory) StoreMemory(ctx context.Context, userID, content string, metadata map[string]string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stored = append(f.stored, userID+":"+content)
	return f.err
}

type failureRecorder struct {
	mu      sync.Mutex
	sources []string
}

func (r *failureRecorder) RetrievalFailed(source string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sources = append(r.sources, source)
}

func noRetry() *resilience.Policy {
	return resilience.NewPolicy(resilience.RetryConfig{
		InitialInterval: time.Millisecond,
		MaxInterval:     time.Millisecond,
		MaxElapsedTime:  5 * time.Millisecond,
		Multiplier:      1,
	}, resilience.BreakerConfig{}, nil)
}

func TestService_RetrieveCombinesBothSources(t *testing.T) {
	kb := &fakeKnowledge{hits: []RankedSnippet{
		{Content: "Use the 50/30/20 rule", Title: "Budgeting", RawSimilarity: 0.9, Metadata: map[string]string{"category": "budgeting"}},
	}}
	mem := &fakeMemory{hits: []RankedSnippet{{Content: "spent 50 on groceries", RawSimilarity: 0.8}}}
	svc := NewService(ServiceConfig{Knowledge: kb, Memory: mem, Resilience: noRetry()})

	hc := svc.Retrieve(context.Background(), "u1", "how should I budget?")
	if len(hc.Sources) != 2 {
		t.Fatalf("expected 2 sources, got %+v", hc.Sources)
	}
	if hc.Sources[0].Source != SourceKnowledge || hc.Sources[1].Source != SourceMemory {
		t.Errorf("unexpected order %+v", hc.Sources)
	}
	if mem.threshold != 0.6 {
		t.Errorf("memory search threshold = %v, want 0.6", mem.threshold)
	}

	// Second call is served from cache.
	svc.Retrieve(context.Background(), "u1", "How should I budget")
	if kb.calls.Load() != 1 {
		t.Errorf("knowledge searched %d times, want 1", kb.calls.Load())
	}
}

func TestService_FailingSourceIsEmpty(t *testing.T) {
	kb := &fakeKnowledge{err: errors.New("index unavailable")}
	mem := &fakeMemory{hits: []RankedSnippet{{Content: "paid rent", RawSimilarity: 0.9}}}
	failures := &failureRecorder{}
	svc := NewService(ServiceConfig{Knowledge: kb, Memory: mem, Resilience: noRetry(), Failures: failures})

	hc := svc.Retrieve(context.Background(), "u1", "rent")
	if len(hc.Sources) != 1 || hc.Sources[0].Source != SourceMemory {
		t.Fatalf("expected only the memory hit, got %+v", hc.Sources)
	}
	if len(failures.sources) != 1 || failures.sources[0] != "knowledge" {
		t.Errorf("failures = %v", failures.sources)
	}
}

func TestService_BothSourcesFail(t *testing.T) {
	svc := NewService(ServiceConfig{
		Knowledge:  &fakeKnowledge{err: errors.New("down")},
		Memory:     &fakeMemory{err: errors.New("down")},
		Resilience: noRetry(),
	})
	hc := svc.Retrieve(context.Background(), "u1", "anything")
	if !hc.Empty() || hc.Summary != NoContextSummary {
		t.Errorf("expected empty context, got %+v", hc)
	}
}

func TestService_CancelledRetrievalNotCached(t *testing.T) {
	kb := &fakeKnowledge{hits: []RankedSnippet{{Content: "Keep an emergency fund", RawSimilarity: 0.9}}}
	svc := NewService(ServiceConfig{Knowledge: kb})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if hc := svc.Retrieve(ctx, "u1", "budget tips"); !hc.Empty() {
		t.Errorf("cancelled retrieval should be empty, got %+v", hc.Sources)
	}

	hc := svc.Retrieve(context.Background(), "u1", "budget tips")
	if kb.calls.Load() != 2 {
		t.Errorf("knowledge searched %d times, want 2", kb.calls.Load())
	}
	if len(hc.Sources) != 1 {
		t.Fatalf("healthy retrieval should find the entry, got %+v", hc.Sources)
	}

	svc.Retrieve(context.Background(), "u1", "budget tips")
	if kb.calls.Load() != 2 {
		t.Errorf("healthy result should be cached, searched %d times", kb.calls.Load())
	}
}

func TestService_FailedSourceNotCached(t *testing.T) {
	kb := &fakeKnowledge{err: errors.New("index unavailable")}
	mem := &fakeMemory{hits: []RankedSnippet{{Content: "paid rent", RawSimilarity: 0.9}}}
	svc := NewService(ServiceConfig{Knowledge: kb, Memory: mem})

	svc.Retrieve(context.Background(), "u1", "rent")
	kb.err = nil
	kb.hits = []RankedSnippet{{Content: "Rent should stay under 30% of income", RawSimilarity: 0.9}}
	calls := kb.calls.Load()

	hc := svc.Retrieve(context.Background(), "u1", "rent")
	if kb.calls.Load() == calls {
		t.Fatal("recovered knowledge source was not searched again")
	}
	if len(hc.Sources) != 2 {
		t.Errorf("expected both sources after recovery, got %+v", hc.Sources)
	}
}

// blockingKnowledge holds every search until release is closed.
type blockingKnowledge struct {
	started chan struct{}
	release chan struct{}
	calls   atomic.Int32
}

func (b *blockingKnowledge) SearchKnowledge(ctx context.Context, query string, maxResults int) ([]RankedSnippet, error) {
	if b.calls.Add(1) == 1 {
		close(b.started)
	}
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-b.release:
		return []RankedSnippet{{Content: "Pay yourself first", RawSimilarity: 0.9}}, nil
	}
}

func TestService_WaiterSearchesAgainWhenSharedCallCancelled(t *testing.T) {
	kb := &blockingKnowledge{started: make(chan struct{}), release: make(chan struct{})}
	svc := NewService(ServiceConfig{Knowledge: kb})

	ctx, cancel := context.WithCancel(context.Background())
	firstDone := make(chan HybridContext)
	go func() { firstDone <- svc.Retrieve(ctx, "u1", "saving tips") }()
	<-kb.started

	secondDone := make(chan HybridContext)
	go func() { secondDone <- svc.Retrieve(context.Background(), "u1", "saving tips") }()
	time.Sleep(20 * time.Millisecond) // let the second caller join the shared search

	cancel()
	if hc := <-firstDone; !hc.Empty() {
		t.Errorf("cancelled caller should get an empty context, got %+v", hc.Sources)
	}
	close(kb.release)

	hc := <-secondDone
	if len(hc.Sources) != 1 {
		t.Errorf("live caller should get search results, got %+v", hc.Sources)
	}
}

func TestService_NoSearchers(t *testing.T) {
	svc := NewService(ServiceConfig{})
	if hc := svc.Retrieve(context.Background(), "", "q"); !hc.Empty() {
		t.Errorf("expected empty context, got %+v", hc)
	}
}

func TestService_Remember(t *testing.T) {
	mem := &fakeMemory{}
	svc := NewService(ServiceConfig{Store: mem})

	if err := svc.Remember(context.Background(), "u1", "Q: saldo\nA: 100", nil); err != nil {
		t.Fatal(err)
	}
	_ = svc.Remember(context.Background(), "", "ignored", nil)
	_ = svc.Remember(context.Background(), "u1", "", nil)

	if len(mem.stored) != 1 || mem.stored[0] != "u1:Q: saldo\nA: 100" {
		t.Errorf("stored = %v", mem.stored)
	}
}
