package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/aristath/finassist/internal/embedding"
	"github.com/aristath/finassist/internal/retrieval"
)

// scoredRow is a candidate row during a similarity scan.
type scoredRow struct {
	snippet retrieval.RankedSnippet
	score   float64
}

// scan scores each row's embedding against query and keeps the top
// maxResults hits with score >= threshold. rows must yield
// (content, title, metadata, embedding).
func scan(rows *sql.Rows, query []float32, maxResults int, threshold float64) ([]retrieval.RankedSnippet, error) {
	defer rows.Close()

	var hits []scoredRow
	for rows.Next() {
		var content, title, meta string
		var blob []byte
		if err := rows.Scan(&content, &title, &meta, &blob); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		score := embedding.Cosine(query, embedding.Decode(blob))
		if score < 0 {
			score = 0
		}
		if score < threshold {
			continue
		}

		metadata, err := decodeMetadata(meta)
		if err != nil {
			return nil, err
		}
		hits = append(hits, scoredRow{
			snippet: retrieval.RankedSnippet{
				Content:       content,
				Title:         title,
				RawSimilarity: score,
				Metadata:      metadata,
			},
			score: score,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].score > hits[j].score })
	if maxResults > 0 && len(hits) > maxResults {
		hits = hits[:maxResults]
	}

	out := make([]retrieval.RankedSnippet, len(hits))
	for i, h := range hits {
		out[i] = h.snippet
	}
	return out, nil
}

func (s *SQLiteStore) embed(ctx context.Context, text string) ([]float32, error) {
	vec, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("failed to embed text: %w", err)
	}
	return vec, nil
}

func encodeMetadata(m map[string]string) (string, error) {
	if len(m) == 0 {
		return "{}", nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("failed to encode metadata: %w", err)
	}
	return string(b), nil
}

func decodeMetadata(s string) (map[string]string, error) {
	if s == "" || s == "{}" {
		return nil, nil
	}
	var m map[string]string
	if err := json.Unmarshal([]byte(s), &m); err != nil {
		return nil, fmt.Errorf("failed to decode metadata: %w", err)
	}
	return m, nil
}
