package backend

import (
	"context"
	"errors"

	"github.com/aristath/finassist/internal/resilience"
)

// Resilient wraps a Backend so that every Send goes through a retry policy
// and the breaker named "backend:<name>".
type Resilient struct {
	Backend
	policy *resilience.Policy
}

// WithResilience wraps b. A nil policy returns b unchanged.
func WithResilience(b Backend, policy *resilience.Policy) Backend {
	if policy == nil {
		return b
	}
	return &Resilient{Backend: b, policy: policy}
}

// BreakerName returns the breaker name used for b.
func BreakerName(b Backend) string {
	return "backend:" + b.Name()
}

// Send implements Backend.
func (r *Resilient) Send(ctx context.Context, msg Message) (Response, error) {
	return resilience.Call(ctx, r.policy, BreakerName(r.Backend), func(ctx context.Context) (Response, error) {
		resp, err := r.Backend.Send(ctx, msg)
		if err != nil {
			var perm *PermanentError
			if errors.As(err, &perm) {
				return Response{}, resilience.Permanent(err)
			}
			return Response{}, err
		}
		return resp, nil
	})
}
