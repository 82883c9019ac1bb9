package config

import "time"

// DefaultConfig returns the built-in configuration.
func DefaultConfig() *Config {
	return &Config{
		Backend: BackendConfig{
			Type:      "anthropic",
			MaxTokens: 1024,
		},
		Scheduler: SchedulerConfig{
			MaxConcurrency: 5,
			TaskTimeout:    Duration{30 * time.Second},
		},
		Retrieval: RetrievalConfig{
			KnowledgeWeight:   0.7,
			MemoryWeight:      0.3,
			MinSimilarity:     0.6,
			MaxSources:        8,
			DiversityTarget:   5,
			DiversityBonus:    0.1,
			SummaryCategories: 3,
			MaxResults:        5,
		},
		Cache: CacheConfig{
			TTL:        Duration{5 * time.Minute},
			MaxEntries: 50,
			KeyPrefix:  100,
		},
		Resilience: ResilienceConfig{
			Retry: RetryConfig{
				InitialInterval: Duration{100 * time.Millisecond},
				MaxInterval:     Duration{2 * time.Second},
				MaxElapsedTime:  Duration{10 * time.Second},
				Multiplier:      2.0,
				Jitter:          0.5,
			},
			Breaker: BreakerConfig{
				ConsecutiveFailures: 5,
				OpenTimeout:         Duration{30 * time.Second},
			},
		},
		Storage: StorageConfig{
			EmbeddingDimensions: 256,
		},
		Telemetry: TelemetryConfig{
			WindowSize: 256,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}
