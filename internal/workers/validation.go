package workers

import (
	"context"
	"errors"
	"fmt"

	"github.com/aristath/finassist/internal/scheduler"
)

// ErrNothingToConfirm is returned when no proposed operation is valid.
var ErrNothingToConfirm = errors.New("no valid operation to confirm")

// ValidationWorker runs validation tasks. It fails, aborting the workflow,
// when an operation output is missing or proposes nothing valid.
type ValidationWorker struct{}

// Run implements scheduler.Runner.
func (ValidationWorker) Run(_ context.Context, payload scheduler.Payload, prior scheduler.Results) (scheduler.Output, error) {
	p, ok := payload.(scheduler.ValidationPayload)
	if !ok {
		return nil, fmt.Errorf("unexpected payload %T", payload)
	}

	var issues []string
	valid := 0
	for _, id := range p.OperationTaskIDs {
		out, ok := prior.Operation(id)
		if !ok {
			return nil, fmt.Errorf("operation task %s has no output", id)
		}
		for _, op := range out.Operations {
			switch {
			case !op.Valid:
				issues = append(issues, fmt.Sprintf("%s: %s", describeOp(op), op.Reason))
			case op.Amount < 0:
				issues = append(issues, fmt.Sprintf("%s: negative amount", describeOp(op)))
			default:
				valid++
			}
		}
	}

	if valid == 0 {
		return nil, ErrNothingToConfirm
	}
	return scheduler.ValidationOutput{Approved: len(issues) == 0, Issues: issues}, nil
}

func describeOp(op scheduler.ProposedOperation) string {
	if op.Description != "" {
		return op.Description
	}
	return op.Type
}
