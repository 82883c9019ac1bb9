// Package backend provides the language-model completion services used by
// the capability workers and the single-pass fallback.
package backend

import (
	"context"
	"fmt"
)

// Backend defines the interface that all backend adapters must implement.
type Backend interface {
	// Send sends a message to the backend and returns the response.
	Send(ctx context.Context, msg Message) (Response, error)

	// Name identifies the backend in logs and circuit breaker names.
	Name() string

	// Close releases the backend's resources.
	Close() error
}

// New creates a new backend based on the provided configuration.
// The ProcessManager is only used by subprocess backends and may be nil.
func New(ctx context.Context, cfg Config, pm *ProcessManager) (Backend, error) {
	switch cfg.Type {
	case "anthropic", "":
		return NewAnthropicBackend(ctx, cfg)
	case "bedrock":
		return NewAnthropicBackend(ctx, cfg)
	case "claude-cli":
		return NewClaudeAdapter(cfg, pm)
	default:
		return nil, fmt.Errorf("unknown backend type: %s", cfg.Type)
	}
}
