package persistence

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/aristath/finassist/internal/embedding"
	"github.com/aristath/finassist/internal/retrieval"
)

// KnowledgeEntry is one article of the trained knowledge base.
type KnowledgeEntry struct {
	ID       string
	Title    string
	Category string
	Content  string
	Metadata map[string]string
}

// AddKnowledge stores an entry and returns its ID. An empty ID is generated;
// an existing ID is replaced.
func (s *SQLiteStore) AddKnowledge(ctx context.Context, entry KnowledgeEntry) (string, error) {
	if strings.TrimSpace(entry.Content) == "" {
		return "", fmt.Errorf("knowledge entry has no content")
	}
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}

	vec, err := s.embed(ctx, entry.Title+"\n"+entry.Content)
	if err != nil {
		return "", err
	}
	meta, err := encodeMetadata(entry.Metadata)
	if err != nil {
		return "", err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO knowledge (id, title, category, content, metadata, embedding, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			category = excluded.category,
			content = excluded.content,
			metadata = excluded.metadata,
			embedding = excluded.embedding
	`, entry.ID, entry.Title, entry.Category, entry.Content, meta, embedding.Encode(vec), toMillis(s.now()))
	if err != nil {
		return "", fmt.Errorf("failed to save knowledge entry: %w", err)
	}
	return entry.ID, nil
}

// SearchKnowledge returns the entries most similar to query. The entry's
// category is exposed as the "category" metadata key.
func (s *SQLiteStore) SearchKnowledge(ctx context.Context, query string, maxResults int) ([]retrieval.RankedSnippet, error) {
	vec, err := s.embed(ctx, query)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT content, title, json_set(metadata, '$.category', category), embedding
		FROM knowledge
		ORDER BY created_at ASC, id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query knowledge: %w", err)
	}

	hits, err := scan(rows, vec, maxResults, 0)
	if err != nil {
		return nil, err
	}
	for i := range hits {
		hits[i].Source = retrieval.SourceKnowledge
	}
	return hits, nil
}

// CountKnowledge returns the number of knowledge entries.
func (s *SQLiteStore) CountKnowledge(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM knowledge`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count knowledge: %w", err)
	}
	return n, nil
}
