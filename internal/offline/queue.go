// Package offline buffers outbound messages while connectivity is
// false and replays them exactly once on reconnect.
package offline

import (
	"slices"
	"sync"

	"github.com/parley-chat/parley/internal/chat"
	"github.com/parley-chat/parley/internal/clock"
	"github.com/parley-chat/parley/internal/store"
	"go.uber.org/zap"
)

// Entry is one queued outbound message.
type Entry struct {
	Message    chat.Message `json:"message"`
	EnqueuedAt int64        `json:"enqueued_at"`
}

// Queue is the persisted offline buffer. Messages land here instead of
// starting delivery triggers while disconnected; Flush drains the whole
// buffer atomically on the offline->online edge.
type Queue struct {
	mu      sync.Mutex
	kv      *store.KV
	clk     clock.Clock
	logger  *zap.Logger
	entries []Entry
}

// New creates a queue, restoring any entries persisted by a previous run.
func New(kv *store.KV, clk clock.Clock, logger *zap.Logger) *Queue {
	return &Queue{
		kv:      kv,
		clk:     clk,
		logger:  logger,
		entries: store.Load(kv, store.KeyQueue, []Entry(nil)),
	}
}

// Enqueue appends a message and persists the queue before returning.
func (q *Queue) Enqueue(m chat.Message) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.entries = append(q.entries, Entry{Message: m, EnqueuedAt: q.clk.Now().UnixMilli()})
	q.kv.Save(store.KeyQueue, q.entries)
}

// Flush drains the queue and returns its messages in enqueue order. The
// persisted queue is cleared before the entries are yielded: a crash
// mid-flush can lose queued entries but can never double-send them.
// Flushing an empty queue returns an empty slice.
func (q *Queue) Flush() []chat.Message {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.entries) == 0 {
		return nil
	}

	drained := q.entries
	q.entries = nil
	if ok := q.kv.Save(store.KeyQueue, []Entry{}); !ok {
		q.logger.Warn("offline queue clear not durable; a crash now would replay flushed entries",
			zap.Int("count", len(drained)))
	}

	msgs := make([]chat.Message, 0, len(drained))
	for _, e := range drained {
		msgs = append(msgs, e.Message)
	}
	q.logger.Info("offline queue flushed", zap.Int("count", len(msgs)))
	return msgs
}

// Len reports how many messages are waiting.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

// Snapshot returns a copy of the queued entries, oldest first.
func (q *Queue) Snapshot() []Entry {
	q.mu.Lock()
	defer q.mu.Unlock()
	return slices.Clone(q.entries)
}
