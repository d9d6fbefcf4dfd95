package chat

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/parley-chat/parley/internal/bus"
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

func testStore(t *testing.T) (*Store, *clock.Fake) {
	t.Helper()
	clk := clock.NewFake(time.UnixMilli(1_000_000))
	s := New(testKV(t), bus.New(), clk, zap.NewNop(), 1000)
	return s, clk
}

func TestAppendAndGetRoundTrip(t *testing.T) {
	s, _ := testStore(t)
	c := s.CreateChat("Alice")

	m, err := s.AppendMessage(c.ID, Outgoing, "hello there")
	if err != nil {
		t.Fatalf("AppendMessage() error = %v", err)
	}
	if m.Status != StatusSent {
		t.Errorf("outgoing birth status = %s, want sent", m.Status)
	}

	msgs, err := s.Messages(c.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 1 || msgs[0].Text != "hello there" {
		t.Errorf("Messages() = %+v, want the appended message", msgs)
	}
}

func TestAppendValidation(t *testing.T) {
	s, _ := testStore(t)
	c := s.CreateChat("Alice")

	if _, err := s.AppendMessage(c.ID, Outgoing, "   "); !errors.Is(err, ErrEmptyText) {
		t.Errorf("empty text error = %v, want ErrEmptyText", err)
	}

	long := make([]rune, 1001)
	for i := range long {
		long[i] = 'x'
	}
	if _, err := s.AppendMessage(c.ID, Outgoing, string(long)); !errors.Is(err, ErrTextTooLong) {
		t.Errorf("long text error = %v, want ErrTextTooLong", err)
	}

	if _, err := s.AppendMessage("nope", Outgoing, "hi"); !errors.Is(err, ErrChatNotFound) {
		t.Errorf("unknown chat error = %v, want ErrChatNotFound", err)
	}

	// Nothing was partially applied.
	msgs, _ := s.Messages(c.ID)
	if len(msgs) != 0 {
		t.Errorf("rejected appends left %d messages behind", len(msgs))
	}
}

func TestIncomingBirthStatus(t *testing.T) {
	s, _ := testStore(t)
	active := s.CreateChat("Alice")
	idle := s.CreateChat("Bob")

	if _, _, err := s.SelectChat(active.ID); err != nil {
		t.Fatal(err)
	}

	m1, err := s.AppendMessage(active.ID, Incoming, "seen immediately")
	if err != nil {
		t.Fatal(err)
	}
	if m1.Status != StatusRead {
		t.Errorf("incoming-while-active status = %s, want read", m1.Status)
	}

	m2, err := s.AppendMessage(idle.ID, Incoming, "waiting")
	if err != nil {
		t.Fatal(err)
	}
	if m2.Status != StatusDelivered {
		t.Errorf("incoming-while-inactive status = %s, want delivered", m2.Status)
	}
}

func TestUnreadCounting(t *testing.T) {
	s, _ := testStore(t)
	a := s.CreateChat("Alice")
	b := s.CreateChat("Bob")

	if _, _, err := s.SelectChat(a.ID); err != nil {
		t.Fatal(err)
	}

	// Incoming on the inactive chat increments, one per message.
	for i := 0; i < 3; i++ {
		if _, err := s.AppendMessage(b.ID, Incoming, "ping"); err != nil {
			t.Fatal(err)
		}
	}
	got, _ := s.GetChat(b.ID)
	if got.UnreadCount != 3 {
		t.Errorf("unread = %d, want 3", got.UnreadCount)
	}

	// Incoming on the active chat never counts.
	if _, err := s.AppendMessage(a.ID, Incoming, "pong"); err != nil {
		t.Fatal(err)
	}
	got, _ = s.GetChat(a.ID)
	if got.UnreadCount != 0 {
		t.Errorf("active chat unread = %d, want 0", got.UnreadCount)
	}

	// Selecting resets and promotes delivered to read.
	sel, msgs, err := s.SelectChat(b.ID)
	if err != nil {
		t.Fatal(err)
	}
	if sel.UnreadCount != 0 {
		t.Errorf("unread after select = %d, want 0", sel.UnreadCount)
	}
	for _, m := range msgs {
		if m.Status != StatusRead {
			t.Errorf("message %s status = %s, want read after select", m.ID, m.Status)
		}
	}
}

func TestSelectUnknownChat(t *testing.T) {
	s, _ := testStore(t)
	if _, _, err := s.SelectChat("missing"); !errors.Is(err, ErrChatNotFound) {
		t.Errorf("error = %v, want ErrChatNotFound", err)
	}
}

func TestListChatsOrdering(t *testing.T) {
	s, clk := testStore(t)

	old := s.CreateChat("Old")
	clk.Advance(time.Minute)
	recent := s.CreateChat("Recent")
	clk.Advance(time.Minute)
	pinned := s.CreateChat("Pinned")

	// Give "Recent" the newest activity, but pin the stale one.
	clk.Advance(time.Minute)
	if _, err := s.AppendMessage(recent.ID, Outgoing, "newest"); err != nil {
		t.Fatal(err)
	}
	if err := s.SetPinned(pinned.ID, true); err != nil {
		t.Fatal(err)
	}

	list := s.ListChats("")
	if len(list) != 3 {
		t.Fatalf("got %d chats, want 3", len(list))
	}
	if list[0].ID != pinned.ID {
		t.Errorf("first = %s, want pinned chat regardless of recency", list[0].PeerName)
	}
	if list[1].ID != recent.ID || list[2].ID != old.ID {
		t.Errorf("order = [%s %s %s], want [Pinned Recent Old]",
			list[0].PeerName, list[1].PeerName, list[2].PeerName)
	}

	// Idempotent under repeated calls with no mutation.
	again := s.ListChats("")
	for i := range list {
		if again[i].ID != list[i].ID {
			t.Errorf("ordering not stable at %d: %s vs %s", i, again[i].PeerName, list[i].PeerName)
		}
	}
}

func TestListChatsFilter(t *testing.T) {
	s, _ := testStore(t)
	alice := s.CreateChat("Alice")
	s.CreateChat("Bob")
	if _, err := s.AppendMessage(alice.ID, Outgoing, "about golang"); err != nil {
		t.Fatal(err)
	}

	if got := s.ListChats("ALI"); len(got) != 1 || got[0].ID != alice.ID {
		t.Errorf("filter by name = %v, want only Alice", got)
	}
	if got := s.ListChats("golang"); len(got) != 1 || got[0].ID != alice.ID {
		t.Errorf("filter by preview = %v, want only Alice", got)
	}
	if got := s.ListChats("zzz"); len(got) != 0 {
		t.Errorf("filter miss = %v, want empty", got)
	}
	// Filtering does not disturb the unfiltered view.
	if got := s.ListChats(""); len(got) != 2 {
		t.Errorf("unfiltered after filter = %d chats, want 2", len(got))
	}
}

func TestAdvanceStatusMonotonic(t *testing.T) {
	s, _ := testStore(t)
	c := s.CreateChat("Alice")
	m, err := s.AppendMessage(c.ID, Outgoing, "hi")
	if err != nil {
		t.Fatal(err)
	}

	if err := s.AdvanceStatus(c.ID, m.ID, StatusDelivered); err != nil {
		t.Fatalf("sent -> delivered: %v", err)
	}
	if err := s.AdvanceStatus(c.ID, m.ID, StatusRead); err != nil {
		t.Fatalf("delivered -> read: %v", err)
	}

	// Regression is rejected and state is untouched.
	if err := s.AdvanceStatus(c.ID, m.ID, StatusDelivered); !errors.Is(err, ErrInvalidStatusChange) {
		t.Errorf("read -> delivered error = %v, want ErrInvalidStatusChange", err)
	}
	msgs, _ := s.Messages(c.ID)
	if msgs[0].Status != StatusRead {
		t.Errorf("status after rejected regress = %s, want read", msgs[0].Status)
	}

	// Re-applying the current status is a harmless no-op.
	if err := s.AdvanceStatus(c.ID, m.ID, StatusRead); err != nil {
		t.Errorf("read -> read = %v, want nil", err)
	}
}

func TestAdvanceStatusCannotSkip(t *testing.T) {
	s, _ := testStore(t)
	c := s.CreateChat("Alice")
	m, _ := s.AppendMessage(c.ID, Outgoing, "hi")

	if err := s.AdvanceStatus(c.ID, m.ID, StatusRead); !errors.Is(err, ErrInvalidStatusChange) {
		t.Errorf("sent -> read error = %v, want ErrInvalidStatusChange", err)
	}
}

func TestDeleteChat(t *testing.T) {
	s, _ := testStore(t)
	c := s.CreateChat("Alice")
	if _, err := s.AppendMessage(c.ID, Outgoing, "hi"); err != nil {
		t.Fatal(err)
	}
	if _, _, err := s.SelectChat(c.ID); err != nil {
		t.Fatal(err)
	}

	if err := s.DeleteChat(c.ID); err != nil {
		t.Fatal(err)
	}
	if s.ActiveChatID() != "" {
		t.Error("deleting the active chat should clear the selection")
	}
	if _, err := s.Messages(c.ID); !errors.Is(err, ErrChatNotFound) {
		t.Errorf("Messages() after delete = %v, want ErrChatNotFound", err)
	}
	if err := s.DeleteChat(c.ID); !errors.Is(err, ErrChatNotFound) {
		t.Errorf("second delete = %v, want ErrChatNotFound", err)
	}
}

// TestReloadRoundTrip verifies that a second Store constructed over the
// same database sees every committed mutation.
func TestReloadRoundTrip(t *testing.T) {
	kv := testKV(t)
	clk := clock.NewFake(time.UnixMilli(1_000_000))

	s1 := New(kv, bus.New(), clk, zap.NewNop(), 1000)
	s1.EnsureUser("Sam")
	c := s1.CreateChat("Alice")
	if _, err := s1.AppendMessage(c.ID, Outgoing, "persisted"); err != nil {
		t.Fatal(err)
	}
	if err := s1.SetPinned(c.ID, true); err != nil {
		t.Fatal(err)
	}

	s2 := New(kv, bus.New(), clk, zap.NewNop(), 1000)
	if s2.FirstRun() {
		t.Error("FirstRun() = true after user was persisted")
	}
	if s2.User().DisplayName != "Sam" {
		t.Errorf("user = %q, want Sam", s2.User().DisplayName)
	}
	list := s2.ListChats("")
	if len(list) != 1 || !list[0].Pinned || list[0].LastMessagePreview != "persisted" {
		t.Errorf("reloaded chat = %+v", list)
	}
	msgs, err := s2.Messages(c.ID)
	if err != nil || len(msgs) != 1 || msgs[0].Text != "persisted" {
		t.Errorf("reloaded messages = %+v, err %v", msgs, err)
	}
}

func TestEnsureUserIdempotent(t *testing.T) {
	s, _ := testStore(t)
	u1 := s.EnsureUser("Sam")
	u2 := s.EnsureUser("Other")
	if u1.ID != u2.ID || u2.DisplayName != "Sam" {
		t.Errorf("EnsureUser created a second user: %+v vs %+v", u1, u2)
	}
}

func TestAppendPublishesEvents(t *testing.T) {
	kv := testKV(t)
	b := bus.New()
	clk := clock.NewFake(time.UnixMilli(1_000_000))
	s := New(kv, b, clk, zap.NewNop(), 1000)

	ch, unsub := b.Subscribe("message.", 10)
	defer unsub()

	c := s.CreateChat("Alice")
	if _, err := s.AppendMessage(c.ID, Outgoing, "hi"); err != nil {
		t.Fatal(err)
	}

	select {
	case evt := <-ch:
		if evt.Kind != bus.KindMessageAppended {
			t.Errorf("kind = %q, want %q", evt.Kind, bus.KindMessageAppended)
		}
		ref, ok := evt.Payload.(bus.MessageRef)
		if !ok || ref.ChatID != c.ID {
			t.Errorf("payload = %#v", evt.Payload)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for message.appended")
	}
}
