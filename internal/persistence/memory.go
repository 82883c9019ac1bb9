package persistence

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/aristath/finassist/internal/embedding"
	"github.com/aristath/finassist/internal/retrieval"
)

// StoreMemory saves an interaction to the user's memory store.
func (s *SQLiteStore) StoreMemory(ctx context.Context, userID, content string, metadata map[string]string) error {
	if userID == "" {
		return fmt.Errorf("memory requires a user ID")
	}
	vec, err := s.embed(ctx, content)
	if err != nil {
		return err
	}
	meta, err := encodeMetadata(metadata)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO memories (id, user_id, content, metadata, embedding, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, uuid.NewString(), userID, content, meta, embedding.Encode(vec), toMillis(s.now()))
	if err != nil {
		return fmt.Errorf("failed to save memory: %w", err)
	}
	return nil
}

// SearchMemories returns the user's memories most similar to query.
// Other users' memories are never returned.
func (s *SQLiteStore) SearchMemories(ctx context.Context, query, userID string, maxResults int, threshold float64) ([]retrieval.RankedSnippet, error) {
	vec, err := s.embed(ctx, query)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT content, '', metadata, embedding
		FROM memories
		WHERE user_id = ?
		ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query memories: %w", err)
	}

	hits, err := scan(rows, vec, maxResults, threshold)
	if err != nil {
		return nil, err
	}
	for i := range hits {
		hits[i].Source = retrieval.SourceMemory
	}
	return hits, nil
}

// CountMemories returns the number of memories stored for a user.
func (s *SQLiteStore) CountMemories(ctx context.Context, userID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM memories WHERE user_id = ?`, userID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count memories: %w", err)
	}
	return n, nil
}
