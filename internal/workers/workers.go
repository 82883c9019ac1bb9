// Package workers provides the default capability workers run by the
// scheduler: document extraction, data analysis, operation proposals,
// validation and the final reply.
package workers

import (
	"context"
	"log/slog"

	"github.com/aristath/finassist/internal/backend"
	"github.com/aristath/finassist/internal/retrieval"
	"github.com/aristath/finassist/internal/scheduler"
)

// Completer is the part of a completion backend the workers use.
type Completer interface {
	Send(ctx context.Context, msg backend.Message) (backend.Response, error)
}

// Retriever assembles the hybrid context for a query.
type Retriever interface {
	Retrieve(ctx context.Context, userID, query string) retrieval.HybridContext
}

// Config wires the default workers.
type Config struct {
	Extractor Extractor // Defaults to FileExtractor
	Completer Completer
	Retriever Retriever // Optional; the reply is written without context when nil
	Logger    *slog.Logger
}

// Register installs a worker for every task kind on exec.
func Register(exec *scheduler.Executor, cfg Config) {
	if cfg.Extractor == nil {
		cfg.Extractor = FileExtractor{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	exec.RegisterRunner(scheduler.KindDocumentProcessing, &DocumentWorker{Extractor: cfg.Extractor})
	exec.RegisterRunner(scheduler.KindDataAnalysis, &AnalysisWorker{Completer: cfg.Completer})
	exec.RegisterRunner(scheduler.KindFinancialOperation, &OperationWorker{Completer: cfg.Completer})
	exec.RegisterRunner(scheduler.KindValidation, ValidationWorker{})
	exec.RegisterRunner(scheduler.KindCommunication, &CommunicationWorker{
		Completer: cfg.Completer,
		Retriever: cfg.Retriever,
		Logger:    cfg.Logger,
	})
}
