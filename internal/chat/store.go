package chat

import (
	"errors"
	"fmt"
	"net/url"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/parley-chat/parley/internal/bus"
	"github.com/parley-chat/parley/internal/clock"
	"github.com/parley-chat/parley/internal/store"
	"go.uber.org/zap"
)

// Validation and lookup errors. All are rejected synchronously and never
// leave partial state behind.
var (
	ErrChatNotFound        = errors.New("chat not found")
	ErrMessageNotFound     = errors.New("message not found")
	ErrEmptyText           = errors.New("message text is empty")
	ErrTextTooLong         = errors.New("message text exceeds length bound")
	ErrInvalidStatusChange = errors.New("invalid status change")
)

const previewLen = 100

// Store owns the ordered set of chats and their message logs. Every
// mutation persists through the key/value adapter before it is
// considered committed, then announces itself on the bus.
type Store struct {
	mu     sync.RWMutex
	kv     *store.KV
	bus    *bus.Bus
	clk    clock.Clock
	logger *zap.Logger
	maxLen int

	user      User
	userKnown bool
	settings  Settings
	chats     []*Chat
	messages  map[string][]Message
	active    string
}

// New creates a store and loads every persisted collection. Corrupt or
// missing collections come back as their empty fallbacks.
func New(kv *store.KV, b *bus.Bus, clk clock.Clock, logger *zap.Logger, maxMessageLen int) *Store {
	s := &Store{
		kv:       kv,
		bus:      b,
		clk:      clk,
		logger:   logger,
		maxLen:   maxMessageLen,
		messages: make(map[string][]Message),
	}

	s.user = store.Load(kv, store.KeyUser, User{})
	s.userKnown = s.user.ID != ""
	s.settings = store.Load(kv, store.KeySettings, DefaultSettings())

	chats := store.Load(kv, store.KeyChats, []Chat(nil))
	for i := range chats {
		c := chats[i]
		s.chats = append(s.chats, &c)
		s.messages[c.ID] = store.Load(kv, store.MessagesKey(c.ID), []Message(nil))
	}

	return s
}

// FirstRun reports whether no user existed before this launch.
func (s *Store) FirstRun() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return !s.userKnown
}

// EnsureUser returns the singleton user, creating it on first launch.
func (s *Store) EnsureUser(displayName string) User {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.userKnown {
		return s.user
	}
	if displayName == "" {
		displayName = "User"
	}
	now := s.clk.Now().UnixMilli()
	s.user = User{
		ID:          uuid.New().String(),
		DisplayName: displayName,
		AvatarRef:   avatarRef(displayName),
		Presence:    PresenceOnline,
		LastSeenAt:  now,
		JoinedAt:    now,
	}
	s.userKnown = true
	s.kv.Save(store.KeyUser, s.user)
	return s.user
}

// User returns the current user snapshot.
func (s *Store) User() User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user
}

// SetPresence updates the user's simulated presence and last-seen time.
func (s *Store) SetPresence(p Presence) {
	s.mu.Lock()
	s.user.Presence = p
	s.user.LastSeenAt = s.clk.Now().UnixMilli()
	s.kv.Save(store.KeyUser, s.user)
	s.mu.Unlock()

	s.publish(bus.KindPresenceChanged, p)
}

// Settings returns the persisted preferences.
func (s *Store) Settings() Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings
}

// SetSettings replaces and persists the preferences.
func (s *Store) SetSettings(st Settings) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings = st
	s.kv.Save(store.KeySettings, st)
}

// CreateChat adds a conversation with a fresh id. Duplicate peer names
// are allowed.
func (s *Store) CreateChat(peerName string) Chat {
	s.mu.Lock()
	c := &Chat{
		ID:             uuid.New().String(),
		PeerName:       peerName,
		AvatarRef:      avatarRef(peerName),
		LastActivityAt: s.clk.Now().UnixMilli(),
	}
	s.chats = append(s.chats, c)
	s.messages[c.ID] = nil
	s.persistChats()
	snapshot := *c
	s.mu.Unlock()

	s.publish(bus.KindChatListChanged, nil)
	return snapshot
}

// ListChats returns a sorted snapshot: pinned first, then most recent
// activity, then highest unread. An optional filter matches
// case-insensitively against peer name and preview. Neither sorting nor
// filtering touches the persisted order.
func (s *Store) ListChats(filter string) []Chat {
	s.mu.RLock()
	defer s.mu.RUnlock()

	needle := strings.ToLower(strings.TrimSpace(filter))
	out := make([]Chat, 0, len(s.chats))
	for _, c := range s.chats {
		if needle != "" &&
			!strings.Contains(strings.ToLower(c.PeerName), needle) &&
			!strings.Contains(strings.ToLower(c.LastMessagePreview), needle) {
			continue
		}
		out = append(out, *c)
	}

	slices.SortStableFunc(out, func(a, b Chat) int {
		if a.Pinned != b.Pinned {
			if a.Pinned {
				return -1
			}
			return 1
		}
		if a.LastActivityAt != b.LastActivityAt {
			if a.LastActivityAt > b.LastActivityAt {
				return -1
			}
			return 1
		}
		if a.UnreadCount != b.UnreadCount {
			return b.UnreadCount - a.UnreadCount
		}
		return 0
	})
	return out
}

// GetChat returns a snapshot of one chat.
func (s *Store) GetChat(chatID string) (Chat, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c := s.find(chatID)
	if c == nil {
		return Chat{}, fmt.Errorf("%w: %s", ErrChatNotFound, chatID)
	}
	return *c, nil
}

// SelectChat makes chatID the active selection, clears its unread count,
// promotes its delivered incoming messages to read, and returns the chat
// with its message log.
func (s *Store) SelectChat(chatID string) (Chat, []Message, error) {
	s.mu.Lock()
	c := s.find(chatID)
	if c == nil {
		s.mu.Unlock()
		return Chat{}, nil, fmt.Errorf("%w: %s", ErrChatNotFound, chatID)
	}

	s.active = chatID
	c.UnreadCount = 0

	var promoted []bus.StatusChange
	log := s.messages[chatID]
	for i := range log {
		if log[i].Direction == Incoming && log[i].Status == StatusDelivered {
			log[i].Status = StatusRead
			promoted = append(promoted, bus.StatusChange{
				ChatID:    chatID,
				MessageID: log[i].ID,
				From:      string(StatusDelivered),
				To:        string(StatusRead),
			})
		}
	}

	s.persistChats()
	if len(promoted) > 0 {
		s.persistMessages(chatID)
	}

	snapshot := *c
	msgs := slices.Clone(log)
	s.mu.Unlock()

	for _, p := range promoted {
		s.publish(bus.KindStatusChanged, p)
	}
	s.publish(bus.KindChatListChanged, nil)
	return snapshot, msgs, nil
}

// ActiveChatID returns the current selection, or "" when none is active.
func (s *Store) ActiveChatID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active
}

// ClearActive drops the selection so incoming messages count as unread.
func (s *Store) ClearActive() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = ""
}

// AppendMessage validates and appends a message to a chat's log,
// updating the chat's preview and activity. Birth status follows the
// delivery rules: outgoing is born sent; incoming is born read when the
// chat is active, delivered (and unread) otherwise.
func (s *Store) AppendMessage(chatID string, direction Direction, text string) (Message, error) {
	if strings.TrimSpace(text) == "" {
		return Message{}, ErrEmptyText
	}
	if len([]rune(text)) > s.maxLen {
		return Message{}, fmt.Errorf("%w: %d > %d", ErrTextTooLong, len([]rune(text)), s.maxLen)
	}

	s.mu.Lock()
	c := s.find(chatID)
	if c == nil {
		s.mu.Unlock()
		return Message{}, fmt.Errorf("%w: %s", ErrChatNotFound, chatID)
	}

	now := s.clk.Now().UnixMilli()
	m := Message{
		ID:        uuid.New().String(),
		ChatID:    chatID,
		Direction: direction,
		Text:      text,
		CreatedAt: now,
		Status:    StatusSent,
	}
	if direction == Incoming {
		if s.active == chatID {
			m.Status = StatusRead
		} else {
			m.Status = StatusDelivered
			c.UnreadCount++
		}
	}

	s.messages[chatID] = append(s.messages[chatID], m)
	c.LastMessagePreview = truncate(text, previewLen)
	c.LastActivityAt = now

	s.persistMessages(chatID)
	s.persistChats()
	s.mu.Unlock()

	s.publish(bus.KindMessageAppended, bus.MessageRef{ChatID: chatID, MessageID: m.ID})
	s.publish(bus.KindChatListChanged, nil)
	return m, nil
}

// Messages returns a snapshot of a chat's log.
func (s *Store) Messages(chatID string) ([]Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.find(chatID) == nil {
		return nil, fmt.Errorf("%w: %s", ErrChatNotFound, chatID)
	}
	return slices.Clone(s.messages[chatID]), nil
}

// AdvanceStatus moves a message one legal step forward. Re-applying the
// current status is a no-op; anything else out of order is rejected, so
// a status can never regress or skip.
func (s *Store) AdvanceStatus(chatID, messageID string, to Status) error {
	s.mu.Lock()
	if s.find(chatID) == nil {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrChatNotFound, chatID)
	}
	log := s.messages[chatID]
	idx := -1
	for i := range log {
		if log[i].ID == messageID {
			idx = i
			break
		}
	}
	if idx < 0 {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrMessageNotFound, messageID)
	}

	from := log[idx].Status
	if from == to {
		s.mu.Unlock()
		return nil
	}
	if !CanAdvance(from, to) {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s -> %s", ErrInvalidStatusChange, from, to)
	}
	log[idx].Status = to
	s.persistMessages(chatID)
	s.mu.Unlock()

	s.publish(bus.KindStatusChanged, bus.StatusChange{
		ChatID:    chatID,
		MessageID: messageID,
		From:      string(from),
		To:        string(to),
	})
	return nil
}

// SetPinned toggles a chat's pinned flag.
func (s *Store) SetPinned(chatID string, pinned bool) error {
	return s.setFlag(chatID, func(c *Chat) { c.Pinned = pinned })
}

// SetMuted toggles a chat's muted flag.
func (s *Store) SetMuted(chatID string, muted bool) error {
	return s.setFlag(chatID, func(c *Chat) { c.Muted = muted })
}

// DeleteChat removes a chat and its message log. The caller is
// responsible for cancelling any pending delivery triggers for it.
func (s *Store) DeleteChat(chatID string) error {
	s.mu.Lock()
	idx := -1
	for i, c := range s.chats {
		if c.ID == chatID {
			idx = i
			break
		}
	}
	if idx < 0 {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrChatNotFound, chatID)
	}
	s.chats = slices.Delete(s.chats, idx, idx+1)
	delete(s.messages, chatID)
	if s.active == chatID {
		s.active = ""
	}
	s.persistChats()
	s.kv.Delete(store.MessagesKey(chatID))
	s.mu.Unlock()

	s.publish(bus.KindChatListChanged, nil)
	return nil
}

func (s *Store) setFlag(chatID string, mutate func(*Chat)) error {
	s.mu.Lock()
	c := s.find(chatID)
	if c == nil {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrChatNotFound, chatID)
	}
	mutate(c)
	s.persistChats()
	s.mu.Unlock()

	s.publish(bus.KindChatListChanged, nil)
	return nil
}

// find locates a chat by id. Caller must hold the lock.
func (s *Store) find(chatID string) *Chat {
	for _, c := range s.chats {
		if c.ID == chatID {
			return c
		}
	}
	return nil
}

// persistChats writes the chat list in its persisted (creation) order.
// Caller must hold the lock.
func (s *Store) persistChats() {
	out := make([]Chat, 0, len(s.chats))
	for _, c := range s.chats {
		out = append(out, *c)
	}
	s.kv.Save(store.KeyChats, out)
}

// persistMessages writes one chat's log. Caller must hold the lock.
func (s *Store) persistMessages(chatID string) {
	s.kv.Save(store.MessagesKey(chatID), s.messages[chatID])
}

func (s *Store) publish(kind bus.Kind, payload any) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(bus.Event{Kind: kind, Timestamp: s.clk.Now(), Payload: payload})
}

func truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen])
}

func avatarRef(name string) string {
	return "avatar://" + url.QueryEscape(name)
}
