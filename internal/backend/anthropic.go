package backend

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/bedrock"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/aws/aws-sdk-go-v2/config"
)

// DefaultModel is used when Config.Model is empty.
const DefaultModel = anthropic.ModelClaudeSonnet4_20250514

// AnthropicBackend calls the Anthropic Messages API directly or through
// AWS Bedrock.
type AnthropicBackend struct {
	client       anthropic.Client
	name         string
	model        anthropic.Model
	maxTokens    int
	systemPrompt string
}

// NewAnthropicBackend creates an Anthropic API backend. Type "bedrock"
// loads AWS credentials from the default chain.
func NewAnthropicBackend(ctx context.Context, cfg Config) (*AnthropicBackend, error) {
	var opts []option.RequestOption
	name := "anthropic"

	model := anthropic.Model(cfg.Model)
	if model == "" {
		model = DefaultModel
	}

	if cfg.Type == "bedrock" {
		name = "bedrock"
		var loadOpts []func(*config.LoadOptions) error
		if cfg.AWSRegion != "" {
			loadOpts = append(loadOpts, config.WithRegion(cfg.AWSRegion))
		}
		if cfg.AWSProfile != "" {
			loadOpts = append(loadOpts, config.WithSharedConfigProfile(cfg.AWSProfile))
		}
		opts = append(opts, bedrock.WithLoadDefaultConfig(ctx, loadOpts...))
		model = bedrockModel(model)
	} else {
		apiKey := cfg.APIKey
		if apiKey == "" {
			apiKey = os.Getenv("ANTHROPIC_API_KEY")
		}
		if apiKey == "" {
			return nil, fmt.Errorf("ANTHROPIC_API_KEY environment variable is not set")
		}
		opts = append(opts, option.WithAPIKey(apiKey))
	}

	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	// Retries are handled by the resilience policy.
	opts = append(opts, option.WithMaxRetries(0))

	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	return &AnthropicBackend{
		client:       anthropic.NewClient(opts...),
		name:         name,
		model:        model,
		maxTokens:    maxTokens,
		systemPrompt: cfg.SystemPrompt,
	}, nil
}

// bedrockModel converts a model name to its cross-region inference profile.
// Unknown names are returned unchanged.
func bedrockModel(model anthropic.Model) anthropic.Model {
	if strings.Contains(string(model), ".anthropic.") {
		return model
	}
	profiles := map[anthropic.Model]string{
		anthropic.ModelClaudeSonnet4_20250514:   "us.anthropic.claude-sonnet-4-20250514-v1:0",
		anthropic.ModelClaudeSonnet4_5_20250929: "us.anthropic.claude-sonnet-4-5-20250929-v1:0",
		anthropic.ModelClaudeHaiku4_5_20251001:  "us.anthropic.claude-haiku-4-5-20251001-v1:0",
		anthropic.ModelClaude3_5Haiku20241022:   "us.anthropic.claude-3-5-haiku-20241022-v1:0",
	}
	if p, ok := profiles[model]; ok {
		return anthropic.Model(p)
	}
	return model
}

// Send implements Backend.
func (b *AnthropicBackend) Send(ctx context.Context, msg Message) (Response, error) {
	maxTokens := msg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = b.maxTokens
	}
	system := msg.System
	if system == "" {
		system = b.systemPrompt
	}

	params := anthropic.MessageNewParams{
		Model:     b.model,
		MaxTokens: int64(maxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content)),
		},
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}

	resp, err := b.client.Messages.New(ctx, params)
	if err != nil {
		return Response{}, classify(err)
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if variant, ok := block.AsAny().(anthropic.TextBlock); ok {
			text.WriteString(variant.Text)
		}
	}

	return Response{
		Content:      text.String(),
		Model:        string(resp.Model),
		InputTokens:  resp.Usage.InputTokens,
		OutputTokens: resp.Usage.OutputTokens,
	}, nil
}

// PermanentError marks a backend error that retrying cannot fix.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }

// classify wraps client errors other than rate limiting as permanent.
func classify(err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		code := apiErr.StatusCode
		if code >= 400 && code < 500 && code != http.StatusTooManyRequests && code != http.StatusRequestTimeout {
			return &PermanentError{Err: fmt.Errorf("anthropic request rejected: %w", err)}
		}
	}
	return fmt.Errorf("anthropic request failed: %w", err)
}

// Name implements Backend.
func (b *AnthropicBackend) Name() string { return b.name }

// Model returns the model requests are sent to.
func (b *AnthropicBackend) Model() string { return string(b.model) }

// Close is a no-op; the HTTP client holds no per-backend resources.
func (b *AnthropicBackend) Close() error { return nil }
