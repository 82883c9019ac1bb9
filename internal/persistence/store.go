package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/aristath/finassist/internal/embedding"
)

// SQLiteStore keeps the user memory store, the knowledge base and the
// workflow run history in one SQLite database. It implements the retrieval
// searchers and the coordinator's history store.
type SQLiteStore struct {
	db       *sql.DB
	embedder embedding.Embedder
	now      func() time.Time
}

// NewSQLiteStore creates a new SQLite-backed store at the given path.
// Creates parent directories if needed. Enables WAL mode, foreign keys, and busy timeout.
// A nil embedder uses the offline hash embedder.
func NewSQLiteStore(ctx context.Context, dbPath string, embedder embedding.Embedder) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create parent directories: %w", err)
	}

	// modernc.org/sqlite ignores _foreign_keys in the connection string; see PRAGMA below.
	connStr := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL", dbPath)
	return open(ctx, connStr, embedder)
}

// NewMemoryStore creates an in-memory SQLite store for testing. Each call
// gets its own database; connections of one store share it via the cache.
func NewMemoryStore(ctx context.Context, embedder embedding.Embedder) (*SQLiteStore, error) {
	connStr := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	return open(ctx, connStr, embedder)
}

func open(ctx context.Context, connStr string, embedder embedding.Embedder) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// A single connection keeps the PRAGMA and the in-memory database alive.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	if embedder == nil {
		embedder = embedding.NewHashEmbedder(embedding.DefaultDimensions)
	}
	store := &SQLiteStore{db: db, embedder: embedder, now: time.Now}

	if err := store.initSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func toMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}
