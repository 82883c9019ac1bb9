package workers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/aristath/finassist/internal/backend"
	"github.com/aristath/finassist/internal/scheduler"
)

// ErrNoCompleter is returned by workers that need a backend but have none.
var ErrNoCompleter = errors.New("no completion backend configured")

// AnalysisWorker runs data_analysis tasks.
type AnalysisWorker struct {
	Completer Completer
}

// Run implements scheduler.Runner. A reply that is not the requested JSON
// is kept verbatim as the summary.
func (w *AnalysisWorker) Run(ctx context.Context, payload scheduler.Payload, _ scheduler.Results) (scheduler.Output, error) {
	p, ok := payload.(scheduler.AnalysisPayload)
	if !ok {
		return nil, fmt.Errorf("unexpected payload %T", payload)
	}
	if w.Completer == nil {
		return nil, ErrNoCompleter
	}

	resp, err := w.Completer.Send(ctx, backend.Message{
		System:  analysisSystemPrompt,
		Content: analysisPrompt(p),
	})
	if err != nil {
		return nil, fmt.Errorf("analysis completion: %w", err)
	}

	var out struct {
		Summary  string   `json:"summary"`
		Insights []string `json:"insights"`
	}
	if raw := extractJSON(resp.Content); raw != "" && json.Unmarshal([]byte(raw), &out) == nil && out.Summary != "" {
		return scheduler.AnalysisOutput{Summary: out.Summary, Insights: out.Insights}, nil
	}

	text := strings.TrimSpace(resp.Content)
	if text == "" {
		return nil, fmt.Errorf("analysis completion returned no content")
	}
	return scheduler.AnalysisOutput{Summary: text}, nil
}
