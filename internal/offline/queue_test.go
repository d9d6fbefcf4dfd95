package offline

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/parley-chat/parley/internal/chat"
	"github.com/parley-chat/parley/internal/clock"
	"github.com/parley-chat/parley/internal/store"
	"go.uber.org/zap"
)

func testKV(t *testing.T) *store.KV {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := store.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Migrate(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return store.NewKV(db, zap.NewNop())
}

func msg(id, text string) chat.Message {
	return chat.Message{ID: id, ChatID: "c1", Direction: chat.Outgoing, Text: text, Status: chat.StatusSent}
}

func TestFlushYieldsEnqueueOrder(t *testing.T) {
	kv := testKV(t)
	clk := clock.NewFake(time.UnixMilli(1_000_000))
	q := New(kv, clk, zap.NewNop())

	q.Enqueue(msg("m1", "one"))
	clk.Advance(time.Second)
	q.Enqueue(msg("m2", "two"))
	clk.Advance(time.Second)
	q.Enqueue(msg("m3", "three"))

	if q.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", q.Len())
	}

	got := q.Flush()
	if len(got) != 3 {
		t.Fatalf("Flush() yielded %d, want 3", len(got))
	}
	for i, want := range []string{"m1", "m2", "m3"} {
		if got[i].ID != want {
			t.Errorf("flush[%d] = %s, want %s", i, got[i].ID, want)
		}
	}

	// Persisted queue is empty afterward.
	if persisted := store.Load(kv, store.KeyQueue, []Entry(nil)); len(persisted) != 0 {
		t.Errorf("persisted queue has %d entries after flush, want 0", len(persisted))
	}

	// A second flush with no new enqueues yields nothing.
	if again := q.Flush(); len(again) != 0 {
		t.Errorf("second Flush() yielded %d, want 0", len(again))
	}
}

func TestQueueSurvivesRestart(t *testing.T) {
	kv := testKV(t)
	clk := clock.NewFake(time.UnixMilli(1_000_000))

	q1 := New(kv, clk, zap.NewNop())
	q1.Enqueue(msg("m1", "held"))
	q1.Enqueue(msg("m2", "back"))

	// A new queue over the same store sees the buffered entries.
	q2 := New(kv, clk, zap.NewNop())
	if q2.Len() != 2 {
		t.Fatalf("restored Len() = %d, want 2", q2.Len())
	}
	got := q2.Flush()
	if len(got) != 2 || got[0].ID != "m1" || got[1].ID != "m2" {
		t.Errorf("restored flush = %v", got)
	}
}

func TestSnapshotDoesNotDrain(t *testing.T) {
	q := New(testKV(t), clock.NewFake(time.UnixMilli(0)), zap.NewNop())
	q.Enqueue(msg("m1", "one"))

	snap := q.Snapshot()
	if len(snap) != 1 || snap[0].Message.ID != "m1" {
		t.Errorf("Snapshot() = %v", snap)
	}
	if q.Len() != 1 {
		t.Errorf("Len() after snapshot = %d, want 1", q.Len())
	}
}

func TestEnqueueRecordsTime(t *testing.T) {
	clk := clock.NewFake(time.UnixMilli(5_000))
	q := New(testKV(t), clk, zap.NewNop())
	q.Enqueue(msg("m1", "one"))

	snap := q.Snapshot()
	if snap[0].EnqueuedAt != 5_000 {
		t.Errorf("EnqueuedAt = %d, want 5000", snap[0].EnqueuedAt)
	}
}
