package orchestrator

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Rememberer persists an interaction to the user's memory store.
type Rememberer interface {
	Remember(ctx context.Context, userID, content string, metadata map[string]string) error
}

type memoryRecord struct {
	userID   string
	content  string
	metadata map[string]string
}

// MemoryWriter stores interactions in the background so replies are not
// delayed by the memory store. Writes are best effort: a full queue drops
// the record and a failed write is only logged.
type MemoryWriter struct {
	store   Rememberer
	timeout time.Duration
	logger  *slog.Logger

	mu      sync.RWMutex
	closed  bool
	records chan memoryRecord
	done    chan struct{}

	written atomic.Int64
	dropped atomic.Int64
}

// NewMemoryWriter starts a writer with the given queue size. Each write
// gets its own timeout, independent of the request that produced it.
func NewMemoryWriter(store Rememberer, bufferSize int, timeout time.Duration, logger *slog.Logger) *MemoryWriter {
	if bufferSize <= 0 {
		bufferSize = 64
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	w := &MemoryWriter{
		store:   store,
		timeout: timeout,
		logger:  logger,
		records: make(chan memoryRecord, bufferSize),
		done:    make(chan struct{}),
	}
	go w.run()
	return w
}

func (w *MemoryWriter) run() {
	defer close(w.done)

	for rec := range w.records {
		ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
		err := w.store.Remember(ctx, rec.userID, rec.content, rec.metadata)
		cancel()

		if err != nil {
			w.logger.Warn("failed to store memory", "user_id", rec.userID, "error", err)
			continue
		}
		w.written.Add(1)
	}
}

// Submit queues an interaction. It never blocks and reports whether the
// record was accepted.
func (w *MemoryWriter) Submit(userID, content string, metadata map[string]string) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()

	if w.closed {
		w.dropped.Add(1)
		return false
	}

	select {
	case w.records <- memoryRecord{userID: userID, content: content, metadata: metadata}:
		return true
	default:
		w.dropped.Add(1)
		w.logger.Warn("memory queue full, dropping interaction", "user_id", userID)
		return false
	}
}

// Close stops accepting records and blocks until the queued ones are written.
func (w *MemoryWriter) Close() {
	w.mu.Lock()
	if !w.closed {
		w.closed = true
		close(w.records)
	}
	w.mu.Unlock()

	<-w.done
}

// Written returns the number of records stored successfully.
func (w *MemoryWriter) Written() int64 { return w.written.Load() }

// Dropped returns the number of records rejected by Submit.
func (w *MemoryWriter) Dropped() int64 { return w.dropped.Load() }
