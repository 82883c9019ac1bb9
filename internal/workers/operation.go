package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aristath/finassist/internal/backend"
	"github.com/aristath/finassist/internal/scheduler"
)

// OperationWorker runs financial_operation tasks. It only proposes record
// changes; applying them is left to the caller.
type OperationWorker struct {
	Completer Completer
}

// Run implements scheduler.Runner.
func (w *OperationWorker) Run(ctx context.Context, payload scheduler.Payload, prior scheduler.Results) (scheduler.Output, error) {
	p, ok := payload.(scheduler.OperationPayload)
	if !ok {
		return nil, fmt.Errorf("unexpected payload %T", payload)
	}
	if w.Completer == nil {
		return nil, ErrNoCompleter
	}

	var doc *scheduler.DocumentAnalysis
	if p.DocumentTaskID != "" {
		out, ok := prior[p.DocumentTaskID].(scheduler.DocumentOutput)
		if !ok {
			return nil, fmt.Errorf("document task %s has no output", p.DocumentTaskID)
		}
		doc = &out.Analysis
	}

	resp, err := w.Completer.Send(ctx, backend.Message{
		System:  operationSystemPrompt,
		Content: operationPrompt(p, doc),
	})
	if err != nil {
		return nil, fmt.Errorf("operation completion: %w", err)
	}

	ops, err := parseOperations(resp.Content)
	if err != nil {
		return nil, err
	}
	return scheduler.OperationOutput{Operations: ops}, nil
}

func parseOperations(content string) ([]scheduler.ProposedOperation, error) {
	raw := extractJSON(content)
	if raw == "" {
		return nil, fmt.Errorf("no JSON object found in operation response")
	}

	var out struct {
		Operations []scheduler.ProposedOperation `json:"operations"`
	}
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, fmt.Errorf("unmarshal operations: %w", err)
	}

	for i := range out.Operations {
		op := &out.Operations[i]
		op.Type = strings.ToLower(strings.TrimSpace(op.Type))
		if op.Valid && op.Type == "" {
			op.Valid = false
			op.Reason = "missing operation type"
		}
	}
	return out.Operations, nil
}
