package workers

import (
	"context"
	"fmt"

	"github.com/aristath/finassist/internal/scheduler"
)

// DocumentWorker runs document_processing tasks.
type DocumentWorker struct {
	Extractor Extractor
}

// Run implements scheduler.Runner. A precomputed analysis is returned as is.
func (w *DocumentWorker) Run(ctx context.Context, payload scheduler.Payload, _ scheduler.Results) (scheduler.Output, error) {
	p, ok := payload.(scheduler.DocumentPayload)
	if !ok {
		return nil, fmt.Errorf("unexpected payload %T", payload)
	}
	if p.Precomputed != nil {
		return scheduler.DocumentOutput{Analysis: *p.Precomputed}, nil
	}
	if p.Attachment == nil {
		return nil, fmt.Errorf("document task has neither attachment nor analysis")
	}

	analysis, err := w.Extractor.Extract(ctx, p.Attachment)
	if err != nil {
		return nil, fmt.Errorf("extract %s: %w", p.Attachment.Name, err)
	}
	return scheduler.DocumentOutput{Analysis: analysis}, nil
}
