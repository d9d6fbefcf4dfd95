// Package lifecycle drives an outgoing message through its simulated
// delivery states. There is no real acknowledgment channel; two locally
// scheduled triggers stand in for one.
package lifecycle

import (
	"errors"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/parley-chat/parley/internal/chat"
	"github.com/parley-chat/parley/internal/clock"
	"go.uber.org/zap"
)

// Delays configures the trigger schedule. Both delays are measured from
// send time; jitter adds up to the given amount on top.
type Delays struct {
	Deliver       time.Duration
	DeliverJitter time.Duration
	Read          time.Duration
	ReadJitter    time.Duration
}

type key struct {
	chatID    string
	messageID string
}

type handles struct {
	deliver clock.Timer
	read    clock.Timer
}

// Tracker schedules and owns the cancellable delivery triggers, keyed by
// (chatID, messageID) so deleting a chat or message leaves no orphaned
// callback.
type Tracker struct {
	mu      sync.Mutex
	chats   *chat.Store
	clk     clock.Clock
	logger  *zap.Logger
	delays  Delays
	handles map[key]*handles
}

// NewTracker creates a tracker over the given chat store.
func NewTracker(chats *chat.Store, clk clock.Clock, logger *zap.Logger, delays Delays) *Tracker {
	return &Tracker{
		chats:   chats,
		clk:     clk,
		logger:  logger,
		delays:  delays,
		handles: make(map[key]*handles),
	}
}

// Track schedules the Sent->Delivered and Delivered->Read triggers for
// an outgoing message. The two are independent, not chained; if the read
// trigger fires first, the delivered step is synthesized so no observer
// ever sees a skipped state.
func (t *Tracker) Track(chatID, messageID string) {
	k := key{chatID: chatID, messageID: messageID}

	t.mu.Lock()
	if _, exists := t.handles[k]; exists {
		t.mu.Unlock()
		return
	}
	h := &handles{}
	h.deliver = t.clk.AfterFunc(jittered(t.delays.Deliver, t.delays.DeliverJitter), func() {
		t.onDeliver(k)
	})
	h.read = t.clk.AfterFunc(jittered(t.delays.Read, t.delays.ReadJitter), func() {
		t.onRead(k)
	})
	t.handles[k] = h
	t.mu.Unlock()
}

// Cancel stops any pending triggers for one message.
func (t *Tracker) Cancel(chatID, messageID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cancelLocked(key{chatID: chatID, messageID: messageID})
}

// CancelChat stops every pending trigger belonging to a chat.
func (t *Tracker) CancelChat(chatID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for k := range t.handles {
		if k.chatID == chatID {
			t.cancelLocked(k)
		}
	}
}

// CancelAll stops everything; called at session teardown.
func (t *Tracker) CancelAll() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for k := range t.handles {
		t.cancelLocked(k)
	}
}

// Pending reports how many messages still have triggers scheduled.
func (t *Tracker) Pending() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.handles)
}

func (t *Tracker) cancelLocked(k key) {
	h, ok := t.handles[k]
	if !ok {
		return
	}
	if h.deliver != nil {
		h.deliver.Stop()
	}
	if h.read != nil {
		h.read.Stop()
	}
	delete(t.handles, k)
}

func (t *Tracker) onDeliver(k key) {
	t.mu.Lock()
	if h, ok := t.handles[k]; ok {
		h.deliver = nil
	}
	t.mu.Unlock()

	if err := t.chats.AdvanceStatus(k.chatID, k.messageID, chat.StatusDelivered); err != nil {
		t.dropIfGone(k, err)
	}
}

func (t *Tracker) onRead(k key) {
	t.mu.Lock()
	h, ok := t.handles[k]
	if ok {
		// The read trigger preempts a still-pending deliver trigger.
		if h.deliver != nil {
			h.deliver.Stop()
		}
		delete(t.handles, k)
	}
	t.mu.Unlock()

	// Synthesize the delivered step when the deliver trigger has not
	// been observed yet; AdvanceStatus treats a repeat as a no-op.
	if err := t.chats.AdvanceStatus(k.chatID, k.messageID, chat.StatusDelivered); err != nil {
		t.dropIfGone(k, err)
		return
	}
	if err := t.chats.AdvanceStatus(k.chatID, k.messageID, chat.StatusRead); err != nil {
		t.logger.Warn("read trigger could not advance status",
			zap.String("chat_id", k.chatID), zap.String("message_id", k.messageID), zap.Error(err))
	}
}

// dropIfGone removes remaining triggers for a message whose chat or
// message vanished between scheduling and firing.
func (t *Tracker) dropIfGone(k key, err error) {
	if errors.Is(err, chat.ErrChatNotFound) || errors.Is(err, chat.ErrMessageNotFound) {
		t.mu.Lock()
		t.cancelLocked(k)
		t.mu.Unlock()
		return
	}
	t.logger.Warn("delivery trigger could not advance status",
		zap.String("chat_id", k.chatID), zap.String("message_id", k.messageID), zap.Error(err))
}

func jittered(base, jitter time.Duration) time.Duration {
	if jitter <= 0 {
		return base
	}
	return base + rand.N(jitter+1)
}
