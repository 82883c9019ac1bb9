package config

import (
	"errors"
	"fmt"
)

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}

	switch c.Backend.Type {
	case "anthropic", "bedrock", "claude-cli":
	default:
		errs = append(errs, fmt.Errorf("backend.type: unknown backend %q", c.Backend.Type))
	}
	check(c.Backend.MaxTokens > 0, "backend.max_tokens must be positive")

	check(c.Scheduler.MaxConcurrency > 0, "scheduler.max_concurrency must be positive")
	check(c.Scheduler.TaskTimeout.Duration > 0, "scheduler.task_timeout must be positive")

	r := c.Retrieval
	check(inUnit(r.KnowledgeWeight), "retrieval.knowledge_weight must be within [0, 1]")
	check(inUnit(r.MemoryWeight), "retrieval.memory_weight must be within [0, 1]")
	check(inUnit(r.MinSimilarity), "retrieval.min_similarity must be within [0, 1]")
	check(inUnit(r.DiversityBonus), "retrieval.diversity_bonus must be within [0, 1]")
	check(r.MaxSources > 0, "retrieval.max_sources must be positive")
	check(r.DiversityTarget > 0, "retrieval.diversity_target must be positive")
	check(r.SummaryCategories >= 0, "retrieval.summary_categories must not be negative")
	check(r.MaxResults > 0, "retrieval.max_results must be positive")

	check(c.Cache.TTL.Duration > 0, "cache.ttl must be positive")
	check(c.Cache.MaxEntries > 0, "cache.max_entries must be positive")
	check(c.Cache.KeyPrefix > 0, "cache.key_prefix must be positive")

	retry := c.Resilience.Retry
	check(retry.InitialInterval.Duration > 0, "resilience.retry.initial_interval must be positive")
	check(retry.MaxInterval.Duration >= retry.InitialInterval.Duration, "resilience.retry.max_interval must not be below initial_interval")
	check(retry.MaxElapsedTime.Duration >= 0, "resilience.retry.max_elapsed_time must not be negative")
	check(retry.Multiplier >= 1, "resilience.retry.multiplier must be at least 1")
	check(inUnit(retry.Jitter), "resilience.retry.jitter must be within [0, 1]")
	check(c.Resilience.Breaker.ConsecutiveFailures > 0, "resilience.breaker.consecutive_failures must be positive")
	check(c.Resilience.Breaker.OpenTimeout.Duration > 0, "resilience.breaker.open_timeout must be positive")

	check(c.Storage.EmbeddingDimensions > 0, "storage.embedding_dimensions must be positive")
	check(c.Telemetry.WindowSize > 0, "telemetry.window_size must be positive")

	if _, err := c.Logging.SlogLevel(); err != nil {
		errs = append(errs, fmt.Errorf("logging.level: %w", err))
	}
	check(c.Logging.Format == "text" || c.Logging.Format == "json", "logging.format must be text or json")

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

func inUnit(v float64) bool {
	return v >= 0 && v <= 1
}
