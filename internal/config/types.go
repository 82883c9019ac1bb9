package config

import (
	"encoding/json"
	"fmt"
	"time"
)

// Duration is a time.Duration encoded as a Go duration string ("5m").
type Duration struct {
	time.Duration
}

// MarshalJSON implements json.Marshaler.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalJSON accepts a duration string or a number of nanoseconds.
func (d *Duration) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch value := v.(type) {
	case nil:
		return nil
	case float64:
		d.Duration = time.Duration(value)
		return nil
	case string:
		parsed, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", value, err)
		}
		d.Duration = parsed
		return nil
	default:
		return fmt.Errorf("invalid duration %s", string(b))
	}
}

// BackendConfig selects the completion backend. API keys are read from
// the environment, never from config files.
type BackendConfig struct {
	Type         string `json:"type"`                    // "anthropic", "bedrock" or "claude-cli"
	Model        string `json:"model,omitempty"`         // Empty uses the backend default
	MaxTokens    int    `json:"max_tokens"`              // Per completion
	SystemPrompt string `json:"system_prompt,omitempty"` // Prepended when a worker sets none
	BaseURL      string `json:"base_url,omitempty"`
	AWSRegion    string `json:"aws_region,omitempty"`
	AWSProfile   string `json:"aws_profile,omitempty"`
	Command      string `json:"command,omitempty"` // CLI binary for "claude-cli"
}

// PlannerConfig overrides the intent keyword stems. Empty lists keep the
// built-in English and Portuguese stems.
type PlannerConfig struct {
	ActionKeywords   []string `json:"action_keywords,omitempty"`
	AnalysisKeywords []string `json:"analysis_keywords,omitempty"`
}

// SchedulerConfig bounds workflow execution.
type SchedulerConfig struct {
	MaxConcurrency int      `json:"max_concurrency"`
	TaskTimeout    Duration `json:"task_timeout"`
}

// RetrievalConfig tunes the hybrid retrieval combiner.
type RetrievalConfig struct {
	KnowledgeWeight   float64 `json:"knowledge_weight"`
	MemoryWeight      float64 `json:"memory_weight"`
	MinSimilarity     float64 `json:"min_similarity"`
	MaxSources        int     `json:"max_sources"`
	DiversityTarget   int     `json:"diversity_target"`
	DiversityBonus    float64 `json:"diversity_bonus"`
	SummaryCategories int     `json:"summary_categories"`
	MaxResults        int     `json:"max_results"` // Per search source
}

// CacheConfig tunes the context cache.
type CacheConfig struct {
	TTL        Duration `json:"ttl"`
	MaxEntries int      `json:"max_entries"`
	KeyPrefix  int      `json:"key_prefix"` // Normalized query runes kept in the key
}

// RetryConfig tunes retries around backends and search adapters.
type RetryConfig struct {
	InitialInterval Duration `json:"initial_interval"`
	MaxInterval     Duration `json:"max_interval"`
	MaxElapsedTime  Duration `json:"max_elapsed_time"`
	Multiplier      float64  `json:"multiplier"`
	Jitter          float64  `json:"jitter"`
}

// BreakerConfig tunes the per-dependency circuit breakers.
type BreakerConfig struct {
	ConsecutiveFailures uint32   `json:"consecutive_failures"`
	OpenTimeout         Duration `json:"open_timeout"`
}

// ResilienceConfig groups retry and breaker settings.
type ResilienceConfig struct {
	Retry   RetryConfig   `json:"retry"`
	Breaker BreakerConfig `json:"breaker"`
}

// StorageConfig locates the SQLite database.
type StorageConfig struct {
	Path                string `json:"path,omitempty"` // Empty means ~/.finassist/finassist.db; ":memory:" keeps nothing
	EmbeddingDimensions int    `json:"embedding_dimensions"`
}

// TelemetryConfig sizes the in-process metrics window.
type TelemetryConfig struct {
	WindowSize int `json:"window_size"`
}

// LoggingConfig configures the slog handler.
type LoggingConfig struct {
	Level  string `json:"level"`  // debug, info, warn, error
	Format string `json:"format"` // text or json
}

// Config is the top-level configuration.
type Config struct {
	Backend    BackendConfig    `json:"backend"`
	Planner    PlannerConfig    `json:"planner"`
	Scheduler  SchedulerConfig  `json:"scheduler"`
	Retrieval  RetrievalConfig  `json:"retrieval"`
	Cache      CacheConfig      `json:"cache"`
	Resilience ResilienceConfig `json:"resilience"`
	Storage    StorageConfig    `json:"storage"`
	Telemetry  TelemetryConfig  `json:"telemetry"`
	Logging    LoggingConfig    `json:"logging"`
}
