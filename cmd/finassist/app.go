package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/aristath/finassist/internal/backend"
	"github.com/aristath/finassist/internal/config"
	"github.com/aristath/finassist/internal/embedding"
	"github.com/aristath/finassist/internal/events"
	"github.com/aristath/finassist/internal/orchestrator"
	"github.com/aristath/finassist/internal/persistence"
	"github.com/aristath/finassist/internal/planner"
	"github.com/aristath/finassist/internal/resilience"
	"github.com/aristath/finassist/internal/retrieval"
	"github.com/aristath/finassist/internal/scheduler"
	"github.com/aristath/finassist/internal/telemetry"
	"github.com/aristath/finassist/internal/workers"
)

// app holds the process-wide services. Commands build only what they use.
type app struct {
	cfg    *config.Config
	logger *slog.Logger
	store  *persistence.SQLiteStore

	registry *prometheus.Registry
	metrics  *telemetry.Metrics
	window   *telemetry.Window
	policy   *resilience.Policy
	pm       *backend.ProcessManager
	bus      *events.EventBus

	completer backend.Backend
	retrieval *retrieval.Service
	coord     *orchestrator.Coordinator
}

func newLogger(cfg config.LoggingConfig, w io.Writer) (*slog.Logger, error) {
	level, err := cfg.SlogLevel()
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return slog.New(slog.NewTextHandler(w, opts)), nil
}

// newApp opens the store and the ambient services.
func newApp(ctx context.Context, cfg *config.Config, stderr io.Writer) (*app, error) {
	logger, err := newLogger(cfg.Logging, stderr)
	if err != nil {
		return nil, err
	}

	store, err := openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	registry := prometheus.NewRegistry()
	r := cfg.Resilience
	return &app{
		cfg:      cfg,
		logger:   logger,
		store:    store,
		registry: registry,
		metrics:  telemetry.NewMetrics(registry),
		window:   telemetry.NewWindow(cfg.Telemetry.WindowSize),
		policy: resilience.NewPolicy(resilience.RetryConfig{
			InitialInterval:     r.Retry.InitialInterval.Duration,
			MaxInterval:         r.Retry.MaxInterval.Duration,
			MaxElapsedTime:      r.Retry.MaxElapsedTime.Duration,
			Multiplier:          r.Retry.Multiplier,
			RandomizationFactor: r.Retry.Jitter,
		}, resilience.BreakerConfig{
			ConsecutiveFailures: r.Breaker.ConsecutiveFailures,
			OpenTimeout:         r.Breaker.OpenTimeout.Duration,
		}, logger),
		pm:  backend.NewProcessManager(),
		bus: events.NewEventBus(),
	}, nil
}

// openLogFile opens finassist.log next to the database, or discards logs
// when the database is in memory.
func openLogFile(cfg *config.Config) (*os.File, error) {
	path, err := cfg.StoragePath()
	if err != nil {
		return nil, err
	}
	if path == ":memory:" {
		return os.OpenFile(os.DevNull, os.O_WRONLY, 0)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	logPath := filepath.Join(filepath.Dir(path), "finassist.log")
	f, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("opening log file: %w", err)
	}
	return f, nil
}

func openStore(ctx context.Context, cfg *config.Config) (*persistence.SQLiteStore, error) {
	embedder := embedding.NewHashEmbedder(cfg.Storage.EmbeddingDimensions)

	path, err := cfg.StoragePath()
	if err != nil {
		return nil, err
	}
	if path == ":memory:" {
		return persistence.NewMemoryStore(ctx, embedder)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	return persistence.NewSQLiteStore(ctx, path, embedder)
}

// withRetrieval builds the hybrid retrieval service over the store.
func (a *app) withRetrieval() *retrieval.Service {
	if a.retrieval != nil {
		return a.retrieval
	}
	rc := a.cfg.Retrieval
	a.retrieval = retrieval.NewService(retrieval.ServiceConfig{
		Knowledge: a.store,
		Memory:    a.store,
		Store:     a.store,
		Combiner: retrieval.NewCombiner(retrieval.CombinerConfig{
			KnowledgeWeight:   rc.KnowledgeWeight,
			MemoryWeight:      rc.MemoryWeight,
			MinSimilarity:     rc.MinSimilarity,
			MaxSources:        rc.MaxSources,
			DiversityTarget:   rc.DiversityTarget,
			DiversityBonus:    rc.DiversityBonus,
			SummaryCategories: rc.SummaryCategories,
		}),
		Cache: retrieval.NewContextCache(retrieval.CacheConfig{
			TTL:        a.cfg.Cache.TTL.Duration,
			MaxEntries: a.cfg.Cache.MaxEntries,
			KeyPrefix:  a.cfg.Cache.KeyPrefix,
			Observer:   a.metrics,
		}),
		Resilience: a.policy,
		MaxResults: rc.MaxResults,
		Failures:   a.metrics,
		Logger:     a.logger,
	})
	return a.retrieval
}

// withCoordinator builds the completion backend and the full pipeline.
// completer overrides the configured backend when non-nil.
func (a *app) withCoordinator(ctx context.Context, completer backend.Backend) (*orchestrator.Coordinator, error) {
	if a.coord != nil {
		return a.coord, nil
	}

	if completer == nil {
		bc := a.cfg.Backend
		b, err := backend.New(ctx, backend.Config{
			Type:         bc.Type,
			Model:        bc.Model,
			MaxTokens:    bc.MaxTokens,
			SystemPrompt: bc.SystemPrompt,
			BaseURL:      bc.BaseURL,
			AWSRegion:    bc.AWSRegion,
			AWSProfile:   bc.AWSProfile,
			Command:      bc.Command,
		}, a.pm)
		if err != nil {
			return nil, fmt.Errorf("creating backend: %w", err)
		}
		completer = b
	}
	a.completer = backend.WithResilience(completer, a.policy)

	exec := scheduler.NewExecutor(scheduler.ExecutorConfig{
		MaxConcurrency: a.cfg.Scheduler.MaxConcurrency,
		TaskTimeout:    a.cfg.Scheduler.TaskTimeout.Duration,
		Telemetry:      telemetry.Multi{a.metrics, a.window},
		Bus:            a.bus,
		Logger:         a.logger,
	})
	svc := a.withRetrieval()
	workers.Register(exec, workers.Config{
		Completer: a.completer,
		Retriever: svc,
		Logger:    a.logger,
	})

	coord, err := orchestrator.NewCoordinator(orchestrator.Config{
		Planner: planner.New(planner.Config{
			ActionKeywords:   a.cfg.Planner.ActionKeywords,
			AnalysisKeywords: a.cfg.Planner.AnalysisKeywords,
			Logger:           a.logger,
		}),
		Executor:  exec,
		Completer: a.completer,
		Retriever: svc,
		Memory:    orchestrator.NewMemoryWriter(svc, 64, 0, a.logger),
		History:   a.store,
		Metrics:   a.metrics,
		Logger:    a.logger,
	})
	if err != nil {
		return nil, err
	}
	a.coord = coord
	return coord, nil
}

// Close flushes pending memory writes and releases resources.
func (a *app) Close() {
	if a.coord != nil {
		a.coord.Close()
	}
	if a.completer != nil {
		if err := a.completer.Close(); err != nil {
			a.logger.Warn("failed to close backend", "error", err)
		}
	}
	if err := a.pm.KillAll(); err != nil {
		a.logger.Warn("failed to kill backend processes", "error", err)
	}
	a.bus.Close()
	if err := a.store.Close(); err != nil {
		a.logger.Warn("failed to close store", "error", err)
	}
}
