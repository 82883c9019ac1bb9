package retrieval

import (
	"context"
	"errors"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/aristath/finassist/internal/resilience"
)

// KnowledgeSearcher finds knowledge base entries similar to a query.
type KnowledgeSearcher interface {
	SearchKnowledge(ctx context.Context, query string, maxResults int) ([]RankedSnippet, error)
}

// MemorySearcher finds a user's stored interactions similar to a query.
type MemorySearcher interface {
	SearchMemories(ctx context.Context, query, userID string, maxResults int, threshold float64) ([]RankedSnippet, error)
}

// MemoryStore persists an interaction for later retrieval.
type MemoryStore interface {
	StoreMemory(ctx context.Context, userID, content string, metadata map[string]string) error
}

// FailureObserver is notified when a search adapter fails.
type FailureObserver interface {
	RetrievalFailed(source string)
}

// ServiceConfig configures a Service. Knowledge and Memory may be nil, in
// which case that source is always empty.
type ServiceConfig struct {
	Knowledge  KnowledgeSearcher
	Memory     MemorySearcher
	Store      MemoryStore
	Combiner   *Combiner
	Cache      *ContextCache
	Resilience *resilience.Policy
	MaxResults int // Per-source search limit (default 5)
	Failures   FailureObserver
	Logger     *slog.Logger
}

// Service runs both searches, combines them and caches the result.
type Service struct {
	cfg ServiceConfig
}

// NewService creates a Service, filling in a default combiner and cache.
func NewService(cfg ServiceConfig) *Service {
	if cfg.Combiner == nil {
		cfg.Combiner = NewCombiner(DefaultCombinerConfig())
	}
	if cfg.Cache == nil {
		cfg.Cache = NewContextCache(CacheConfig{})
	}
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = 5
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Service{cfg: cfg}
}

// degradedError carries a context built while a source failed or the
// request was cancelled. It travels through the cache as an error so the
// result reaches the caller without being stored.
type degradedError struct {
	hc        HybridContext
	cancelled bool
}

func (e *degradedError) Error() string {
	if e.cancelled {
		return "retrieval interrupted by cancellation"
	}
	return "retrieval degraded by a failed source"
}

// Retrieve returns the hybrid context for a user's query. Search failures
// degrade the failing source to an empty list, so Retrieve never fails.
// Degraded results are returned but not cached.
func (s *Service) Retrieve(ctx context.Context, userID, query string) HybridContext {
	hc, err := s.cfg.Cache.GetOrCompute(ctx, userID, query, func(ctx context.Context) (HybridContext, error) {
		hc, failed := s.compute(ctx, userID, query)
		if cancelled := ctx.Err() != nil; failed || cancelled {
			return HybridContext{}, &degradedError{hc: hc, cancelled: cancelled}
		}
		return hc, nil
	})

	var degraded *degradedError
	switch {
	case err == nil:
		return hc
	case errors.As(err, &degraded):
		// A shared computation cancelled under another caller's context says
		// nothing about this caller, so a live caller searches again.
		if degraded.cancelled && ctx.Err() == nil {
			hc, _ = s.compute(ctx, userID, query)
			return hc
		}
		return degraded.hc.clone()
	default:
		s.cfg.Logger.Error("context retrieval failed", "user_id", userID, "error", err)
		return s.cfg.Combiner.Combine(nil, nil)
	}
}

// compute runs both searches and combines them. failed reports whether any
// source returned an error.
func (s *Service) compute(ctx context.Context, userID, query string) (hc HybridContext, failed bool) {
	var knowledge, memory []RankedSnippet
	var knowledgeFailed, memoryFailed bool
	threshold := s.cfg.Combiner.Config().MinSimilarity

	g, gctx := errgroup.WithContext(ctx)
	if s.cfg.Knowledge != nil {
		g.Go(func() error {
			hits, err := resilience.Call(gctx, s.cfg.Resilience, "search:knowledge", func(ctx context.Context) ([]RankedSnippet, error) {
				return s.cfg.Knowledge.SearchKnowledge(ctx, query, s.cfg.MaxResults)
			})
			if err != nil {
				knowledgeFailed = true
				s.failed(&RetrievalFailure{Source: SourceKnowledge, Err: err}, userID)
				return nil
			}
			knowledge = hits
			return nil
		})
	}
	if s.cfg.Memory != nil && userID != "" {
		g.Go(func() error {
			hits, err := resilience.Call(gctx, s.cfg.Resilience, "search:memory", func(ctx context.Context) ([]RankedSnippet, error) {
				return s.cfg.Memory.SearchMemories(ctx, query, userID, s.cfg.MaxResults, threshold)
			})
			if err != nil {
				memoryFailed = true
				s.failed(&RetrievalFailure{Source: SourceMemory, Err: err}, userID)
				return nil
			}
			memory = hits
			return nil
		})
	}
	_ = g.Wait()

	return s.cfg.Combiner.Combine(knowledge, memory), knowledgeFailed || memoryFailed
}

func (s *Service) failed(f *RetrievalFailure, userID string) {
	s.cfg.Logger.Warn("search adapter failed, continuing without source",
		"source", string(f.Source), "user_id", userID, "error", f.Err)
	if s.cfg.Failures != nil {
		s.cfg.Failures.RetrievalFailed(string(f.Source))
	}
}

// Remember stores an interaction in the user's memory. Best effort: errors
// are logged and returned for callers that care.
func (s *Service) Remember(ctx context.Context, userID, content string, metadata map[string]string) error {
	if s.cfg.Store == nil || userID == "" || content == "" {
		return nil
	}
	err := s.cfg.Store.StoreMemory(ctx, userID, content, metadata)
	if err != nil {
		s.cfg.Logger.Warn("failed to store memory", "user_id", userID, "error", err)
	}
	return err
}
