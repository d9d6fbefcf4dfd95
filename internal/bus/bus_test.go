package bus

import (
	"testing"
	"time"
)

func TestPublishSubscribe(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("message.", 10)
	defer unsub()

	b.Publish(Event{Kind: KindMessageAppended, Timestamp: time.Now(), Payload: MessageRef{ChatID: "c1", MessageID: "m1"}})

	select {
	case evt := <-ch:
		if evt.Kind != KindMessageAppended {
			t.Errorf("got kind %q, want %q", evt.Kind, KindMessageAppended)
		}
		ref, ok := evt.Payload.(MessageRef)
		if !ok || ref.ChatID != "c1" {
			t.Errorf("payload = %#v, want MessageRef for c1", evt.Payload)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}
}

func TestNamespaceFiltering(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("net.", 10)
	defer unsub()

	b.Publish(Event{Kind: KindMessageAppended})
	b.Publish(Event{Kind: KindNetChanged})

	select {
	case evt := <-ch:
		if evt.Kind != KindNetChanged {
			t.Errorf("got kind %q, want %q", evt.Kind, KindNetChanged)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}

	// Ensure the message event was not delivered.
	select {
	case evt := <-ch:
		t.Errorf("unexpected event: %v", evt)
	case <-time.After(50 * time.Millisecond):
		// Expected: no more events.
	}
}

func TestUnsubscribe(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("chat.", 10)
	unsub()

	b.Publish(Event{Kind: KindChatListChanged})

	select {
	case evt := <-ch:
		t.Errorf("received event after unsubscribe: %v", evt)
	case <-time.After(50 * time.Millisecond):
		// Expected.
	}
}

func TestDropOnFullBuffer(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("test.", 1)
	defer unsub()

	// Fill buffer.
	b.Publish(Event{Kind: "test.one"})
	// This should be dropped (non-blocking).
	b.Publish(Event{Kind: "test.two"})

	evt := <-ch
	if evt.Kind != "test.one" {
		t.Errorf("got %q, want test.one", evt.Kind)
	}
}

func TestSubscribeDefaultBuffer(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("", 0)
	defer unsub()

	for i := 0; i < DefaultBuffer; i++ {
		b.Publish(Event{Kind: KindChatListChanged})
	}
	if len(ch) != DefaultBuffer {
		t.Errorf("buffered = %d, want DefaultBuffer (%d)", len(ch), DefaultBuffer)
	}
}

func TestUnsubscribeIdempotent(t *testing.T) {
	b := New()
	_, unsub := b.Subscribe("chat.", 1)
	unsub()
	unsub() // second call must be a no-op

	ch, unsub2 := b.Subscribe("chat.", 1)
	defer unsub2()
	b.Publish(Event{Kind: KindChatListChanged})
	if len(ch) != 1 {
		t.Errorf("later subscriber got %d events, want 1", len(ch))
	}
}
