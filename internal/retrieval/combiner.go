package retrieval

import (
	"fmt"
	"sort"
	"strings"
)

// NoContextSummary is the summary of an empty HybridContext.
const NoContextSummary = "No relevant context found."

// CombinerConfig holds the ranking tunables.
type CombinerConfig struct {
	KnowledgeWeight   float64 // Weight applied to knowledge similarities (default 0.7)
	MemoryWeight      float64 // Weight applied to memory similarities (default 0.3)
	MinSimilarity     float64 // Snippets below this raw similarity are dropped (default 0.6)
	MaxSources        int     // Maximum snippets retained (default 8)
	DiversityTarget   int     // Retained count that earns the full bonus (default 5)
	DiversityBonus    float64 // Maximum confidence bonus (default 0.1)
	SummaryCategories int     // Knowledge categories listed in the summary (default 3)
}

// DefaultCombinerConfig returns the standard ranking tunables.
func DefaultCombinerConfig() CombinerConfig {
	return CombinerConfig{
		KnowledgeWeight:   0.7,
		MemoryWeight:      0.3,
		MinSimilarity:     0.6,
		MaxSources:        8,
		DiversityTarget:   5,
		DiversityBonus:    0.1,
		SummaryCategories: 3,
	}
}

// Combiner merges knowledge and memory hits into one ranked context.
// It holds no state besides its configuration and is safe for concurrent use.
type Combiner struct {
	cfg CombinerConfig
}

// NewCombiner creates a Combiner. Non-positive counts fall back to defaults.
func NewCombiner(cfg CombinerConfig) *Combiner {
	def := DefaultCombinerConfig()
	if cfg.MaxSources <= 0 {
		cfg.MaxSources = def.MaxSources
	}
	if cfg.DiversityTarget <= 0 {
		cfg.DiversityTarget = def.DiversityTarget
	}
	if cfg.SummaryCategories < 0 {
		cfg.SummaryCategories = def.SummaryCategories
	}
	return &Combiner{cfg: cfg}
}

// Config returns the combiner's tunables.
func (c *Combiner) Config() CombinerConfig {
	return c.cfg
}

// Combine filters, weights and ranks both lists. Ties keep input order with
// knowledge hits ahead of memory hits, so identical inputs always produce
// identical output. Inputs are not modified.
func (c *Combiner) Combine(knowledge, memory []RankedSnippet) HybridContext {
	ranked := make([]RankedSnippet, 0, len(knowledge)+len(memory))
	ranked = c.weigh(ranked, knowledge, SourceKnowledge, c.cfg.KnowledgeWeight)
	ranked = c.weigh(ranked, memory, SourceMemory, c.cfg.MemoryWeight)

	if len(ranked) == 0 {
		return HybridContext{Sources: []RankedSnippet{}, Summary: NoContextSummary}
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].WeightedScore > ranked[j].WeightedScore
	})
	if len(ranked) > c.cfg.MaxSources {
		ranked = ranked[:c.cfg.MaxSources]
	}

	return HybridContext{
		Sources:         ranked,
		ConfidenceScore: c.confidence(ranked),
		Summary:         c.summarize(ranked),
	}
}

func (c *Combiner) weigh(dst, hits []RankedSnippet, source Source, weight float64) []RankedSnippet {
	for _, hit := range hits {
		if hit.RawSimilarity < c.cfg.MinSimilarity {
			continue
		}
		s := hit
		s.Source = source
		s.WeightedScore = hit.RawSimilarity * weight
		if hit.Metadata != nil {
			s.Metadata = make(map[string]string, len(hit.Metadata))
			for k, v := range hit.Metadata {
				s.Metadata[k] = v
			}
		}
		dst = append(dst, s)
	}
	return dst
}

// confidence is the mean weighted score plus a bonus that grows with the
// number of retained snippets, clamped to [0, 1].
func (c *Combiner) confidence(ranked []RankedSnippet) float64 {
	var sum float64
	for _, s := range ranked {
		sum += s.WeightedScore
	}
	avg := sum / float64(len(ranked))

	coverage := float64(len(ranked)) / float64(c.cfg.DiversityTarget)
	if coverage > 1 {
		coverage = 1
	}
	return clamp(avg+coverage*c.cfg.DiversityBonus, 0, 1)
}

func (c *Combiner) summarize(ranked []RankedSnippet) string {
	var knowledge, memory int
	var categories []string
	seen := make(map[string]bool)
	for _, s := range ranked {
		switch s.Source {
		case SourceKnowledge:
			knowledge++
			cat := s.Category()
			if cat != "" && !seen[cat] && len(categories) < c.cfg.SummaryCategories {
				seen[cat] = true
				categories = append(categories, cat)
			}
		case SourceMemory:
			memory++
		}
	}

	var parts []string
	if knowledge > 0 {
		parts = append(parts, plural(knowledge, "knowledge base entry", "knowledge base entries"))
	}
	if memory > 0 {
		parts = append(parts, plural(memory, "related memory", "related memories"))
	}
	summary := "Found " + strings.Join(parts, " and ") + "."
	if len(categories) > 0 {
		summary += " Topics: " + strings.Join(categories, ", ") + "."
	}
	return summary
}

func plural(n int, one, many string) string {
	if n == 1 {
		return "1 " + one
	}
	return fmt.Sprintf("%d %s", n, many)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
