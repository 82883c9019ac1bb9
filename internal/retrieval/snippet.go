// Package retrieval assembles a ranked, weighted context from the knowledge
// base and the user's memory store.
package retrieval

import (
	"fmt"
	"maps"
	"slices"
)

// Source identifies where a snippet came from.
type Source string

const (
	SourceKnowledge Source = "knowledge"
	SourceMemory    Source = "memory"
)

// RankedSnippet is one search hit. WeightedScore is set by the Combiner.
type RankedSnippet struct {
	Source        Source            `json:"source"`
	Content       string            `json:"content"`
	Title         string            `json:"title,omitempty"`
	RawSimilarity float64           `json:"raw_similarity"`
	WeightedScore float64           `json:"weighted_score"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

// Category returns the "category" metadata value, if any.
func (s RankedSnippet) Category() string {
	return s.Metadata["category"]
}

// Label is a display title for the snippet.
func (s RankedSnippet) Label() string {
	if s.Title != "" {
		return s.Title
	}
	if s.Source == SourceMemory {
		return "Previous conversation"
	}
	return "Knowledge base"
}

// HybridContext is the combined retrieval result for one query. Values are
// never mutated after Combine returns them.
type HybridContext struct {
	Sources         []RankedSnippet `json:"sources"`
	ConfidenceScore float64         `json:"confidence_score"`
	Summary         string          `json:"summary"`
}

// clone returns a copy that shares no slices or maps with h.
func (h HybridContext) clone() HybridContext {
	h.Sources = slices.Clone(h.Sources)
	for i := range h.Sources {
		h.Sources[i].Metadata = maps.Clone(h.Sources[i].Metadata)
	}
	return h
}

// Empty reports whether no snippet was retained.
func (h HybridContext) Empty() bool {
	return len(h.Sources) == 0
}

// RetrievalFailure reports a search adapter error. The failing source is
// treated as empty.
type RetrievalFailure struct {
	Source Source
	Err    error
}

func (e *RetrievalFailure) Error() string {
	return fmt.Sprintf("%s search failed: %v", e.Source, e.Err)
}

func (e *RetrievalFailure) Unwrap() error {
	return e.Err
}
