package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aristath/finassist/internal/backend"
	"github.com/aristath/finassist/internal/retrieval"
	"github.com/aristath/finassist/internal/workers"
)

const fallbackSystemPrompt = `You are a friendly personal finance assistant. Reply to the user in the language of their message.
Some automated steps failed while handling this request. Do not claim that any record was created or changed.
Answer what you can from the context and say briefly what could not be done.`

// errNoFallback is returned when no completion backend is configured.
var errNoFallback = errors.New("no completion backend for fallback")

// singlePass answers req with one completion, without planning.
func (c *Coordinator) singlePass(ctx context.Context, req Request, failures []string) (Response, error) {
	if c.cfg.Completer == nil {
		return Response{}, errNoFallback
	}

	var hc retrieval.HybridContext
	if c.cfg.Retriever != nil {
		hc = c.cfg.Retriever.Retrieve(ctx, req.UserID, req.Message)
	}

	resp, err := c.cfg.Completer.Send(ctx, backend.Message{
		System:  fallbackSystemPrompt,
		Content: fallbackPrompt(req, hc, failures),
	})
	if err != nil {
		return Response{}, err
	}
	text := strings.TrimSpace(resp.Content)
	if text == "" {
		return Response{}, errors.New("empty fallback reply")
	}

	return Response{
		Success:         true,
		Message:         text,
		Sources:         workers.SourceRefs(hc),
		ConfidenceScore: hc.ConfidenceScore,
		Fallback:        true,
	}, nil
}

func fallbackPrompt(req Request, hc retrieval.HybridContext, failures []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "User message: %s\n", req.Message)
	if req.Attachment != nil {
		fmt.Fprintf(&b, "The user attached %q.\n", req.Attachment.Name)
	}
	if !hc.Empty() {
		fmt.Fprintf(&b, "\nRelevant context (%s):\n", hc.Summary)
		for i, s := range hc.Sources {
			fmt.Fprintf(&b, "%d. %s: %s\n", i+1, s.Label(), s.Content)
		}
	}
	if len(failures) > 0 {
		b.WriteString("\nSteps that failed:\n")
		for _, f := range failures {
			fmt.Fprintf(&b, "- %s\n", f)
		}
	}
	return b.String()
}
