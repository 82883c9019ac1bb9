package workers

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aristath/finassist/internal/backend"
	"github.com/aristath/finassist/internal/retrieval"
	"github.com/aristath/finassist/internal/scheduler"
)

// CommunicationWorker writes the reply shown to the user.
type CommunicationWorker struct {
	Completer Completer
	Retriever Retriever
	Logger    *slog.Logger
}

// Run implements scheduler.Runner.
func (w *CommunicationWorker) Run(ctx context.Context, payload scheduler.Payload, prior scheduler.Results) (scheduler.Output, error) {
	p, ok := payload.(scheduler.CommunicationPayload)
	if !ok {
		return nil, fmt.Errorf("unexpected payload %T", payload)
	}
	if w.Completer == nil {
		return nil, ErrNoCompleter
	}

	var hc retrieval.HybridContext
	if w.Retriever != nil {
		hc = w.Retriever.Retrieve(ctx, p.UserID, p.Message)
	}
	if w.Logger != nil {
		w.Logger.Debug("retrieved context", "user_id", p.UserID, "sources", len(hc.Sources), "confidence", hc.ConfidenceScore)
	}

	resp, err := w.Completer.Send(ctx, backend.Message{
		System:  communicationSystemPrompt,
		Content: communicationPrompt(p, hc, prior),
	})
	if err != nil {
		return nil, fmt.Errorf("communication completion: %w", err)
	}
	text := strings.TrimSpace(resp.Content)
	if text == "" {
		return nil, fmt.Errorf("communication completion returned no content")
	}

	return scheduler.CommunicationOutput{
		Message:    text,
		Sources:    SourceRefs(hc),
		Confidence: hc.ConfidenceScore,
	}, nil
}

// SourceRefs maps retained snippets to the references shown with a reply.
func SourceRefs(hc retrieval.HybridContext) []scheduler.SourceRef {
	if hc.Empty() {
		return nil
	}
	refs := make([]scheduler.SourceRef, len(hc.Sources))
	for i, s := range hc.Sources {
		refs[i] = scheduler.SourceRef{
			Type:       string(s.Source),
			Title:      s.Label(),
			Confidence: s.WeightedScore,
		}
	}
	return refs
}
