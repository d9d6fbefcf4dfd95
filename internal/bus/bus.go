// Package bus carries engine events between components in-process.
// Delivery is best-effort: a slow subscriber misses events rather than
// stalling a publisher mid-mutation.
package bus

import (
	"strings"
	"sync"
)

// DefaultBuffer is the subscription buffer used when a caller passes a
// non-positive size.
const DefaultBuffer = 64

// Bus fans events out to prefix-matched subscribers.
type Bus struct {
	mu   sync.RWMutex
	next int
	subs map[int]*subscriber
}

type subscriber struct {
	prefix string
	ch     chan Event
}

// New creates an empty bus.
func New() *Bus {
	return &Bus{subs: make(map[int]*subscriber)}
}

// Publish delivers evt to every subscriber whose prefix matches the
// event kind. Publish never blocks; a full subscriber drops the event.
func (b *Bus) Publish(evt Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, s := range b.subs {
		if !strings.HasPrefix(string(evt.Kind), s.prefix) {
			continue
		}
		select {
		case s.ch <- evt:
		default:
		}
	}
}

// Subscribe registers interest in every kind beginning with prefix;
// "" matches everything. Returns the receive channel and an idempotent
// unsubscribe function. bufSize <= 0 falls back to DefaultBuffer.
func (b *Bus) Subscribe(prefix string, bufSize int) (<-chan Event, func()) {
	if bufSize <= 0 {
		bufSize = DefaultBuffer
	}
	ch := make(chan Event, bufSize)

	b.mu.Lock()
	id := b.next
	b.next++
	b.subs[id] = &subscriber{prefix: prefix, ch: ch}
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
		})
	}
}
