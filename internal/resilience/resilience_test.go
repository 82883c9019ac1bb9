package resilience

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sony/gobreaker"
)

func fastRetry() RetryConfig {
	return RetryConfig{
		InitialInterval:     time.Millisecond,
		MaxInterval:         5 * time.Millisecond,
		MaxElapsedTime:      500 * time.Millisecond,
		Multiplier:          2.0,
		RandomizationFactor: 0,
	}
}

// scripted returns the queued errors in order, then succeeds.
func scripted(calls *atomic.Int32, errs ...error) func(context.Context) (string, error) {
	return func(ctx context.Context) (string, error) {
		n := int(calls.Add(1))
		if n <= len(errs) {
			return "", errs[n-1]
		}
		return "ok", nil
	}
}

func TestCall_TransientThenSuccess(t *testing.T) {
	var calls atomic.Int32
	p := NewPolicy(fastRetry(), BreakerConfig{}, nil)

	got, err := Call(context.Background(), p, "backend:test", scripted(&calls, errors.New("503"), errors.New("503")))
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if got != "ok" {
		t.Errorf("got %q", got)
	}
	if calls.Load() != 3 {
		t.Errorf("expected 3 calls, got %d", calls.Load())
	}
}

func TestCall_PermanentErrorStopsRetry(t *testing.T) {
	var calls atomic.Int32
	p := NewPolicy(fastRetry(), BreakerConfig{}, nil)
	bad := errors.New("invalid api key")

	_, err := Call(context.Background(), p, "backend:test", scripted(&calls, Permanent(bad)))
	if !errors.Is(err, bad) {
		t.Fatalf("expected %v, got %v", bad, err)
	}
	if calls.Load() != 1 {
		t.Errorf("expected 1 call, got %d", calls.Load())
	}
}

func TestCall_CircuitOpens(t *testing.T) {
	var calls atomic.Int32
	p := NewPolicy(fastRetry(), BreakerConfig{ConsecutiveFailures: 3, OpenTimeout: time.Minute}, nil)
	down := errors.New("connection refused")

	fn := func(ctx context.Context) (int, error) {
		calls.Add(1)
		return 0, down
	}

	_, err := Call(context.Background(), p, "search:knowledge", fn)
	if !errors.Is(err, gobreaker.ErrOpenState) {
		t.Fatalf("expected open circuit, got %v", err)
	}
	if calls.Load() != 3 {
		t.Errorf("expected 3 calls before tripping, got %d", calls.Load())
	}
	if p.Breakers.State("search:knowledge") != gobreaker.StateOpen {
		t.Error("expected breaker to be open")
	}

	// Further calls fail fast without reaching fn.
	_, err = Call(context.Background(), p, "search:knowledge", fn)
	if !errors.Is(err, gobreaker.ErrOpenState) {
		t.Errorf("expected open circuit, got %v", err)
	}
	if calls.Load() != 3 {
		t.Errorf("open breaker should not call fn, got %d calls", calls.Load())
	}
}

func TestCall_ContextCancelledStopsRetry(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var calls atomic.Int32
	p := NewPolicy(fastRetry(), BreakerConfig{}, nil)

	_, err := Call(ctx, p, "backend:test", func(ctx context.Context) (string, error) {
		calls.Add(1)
		cancel()
		return "", ctx.Err()
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if calls.Load() != 1 {
		t.Errorf("expected 1 call, got %d", calls.Load())
	}
}

func TestBreaker_DeadlineNotCounted(t *testing.T) {
	retry := fastRetry()
	retry.MaxElapsedTime = 50 * time.Millisecond
	p := NewPolicy(retry, BreakerConfig{ConsecutiveFailures: 2}, nil)

	var calls atomic.Int32
	_, err := Call(context.Background(), p, "backend:test", func(ctx context.Context) (string, error) {
		calls.Add(1)
		return "", context.DeadlineExceeded
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls.Load() < 2 {
		t.Fatalf("expected retries, got %d calls", calls.Load())
	}
	if p.Breakers.State("backend:test") != gobreaker.StateClosed {
		t.Error("deadline errors must not trip the breaker")
	}
}

func TestBreakerRegistry_PerDependency(t *testing.T) {
	r := NewBreakerRegistry(BreakerConfig{}, nil)
	a1 := r.Get("search:memory")
	a2 := r.Get("search:memory")
	b := r.Get("search:knowledge")

	if a1 != a2 {
		t.Error("expected the same breaker for the same name")
	}
	if a1 == b {
		t.Error("expected distinct breakers for distinct names")
	}
	if r.State("never-used") != gobreaker.StateClosed {
		t.Error("unknown breaker should report closed")
	}
}

func TestCall_NilPolicy(t *testing.T) {
	var calls atomic.Int32
	_, err := Call(context.Background(), nil, "x", scripted(&calls, errors.New("once")))
	if err == nil || calls.Load() != 1 {
		t.Errorf("nil policy should call once without retry: err=%v calls=%d", err, calls.Load())
	}
}
