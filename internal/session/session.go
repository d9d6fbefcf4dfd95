// Package session binds the chat engine to its external ports and owns
// the process-wide lifecycle: one construction at startup, one teardown
// at exit, nothing in between.
package session

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"

	"github.com/parley-chat/parley/internal/bus"
	"github.com/parley-chat/parley/internal/chat"
	"github.com/parley-chat/parley/internal/clock"
	"github.com/parley-chat/parley/internal/config"
	"github.com/parley-chat/parley/internal/lifecycle"
	"github.com/parley-chat/parley/internal/offline"
	"github.com/parley-chat/parley/internal/ports"
	"github.com/parley-chat/parley/internal/respond"
	"go.uber.org/zap"
)

const seedChatName = "Parley Team"

// Params collects the session's dependencies.
type Params struct {
	Config    *config.Config
	Logger    *zap.Logger
	Bus       *bus.Bus
	Clock     clock.Clock
	Chats     *chat.Store
	Queue     *offline.Queue
	Tracker   *lifecycle.Tracker
	Assistant *respond.Engine
	Link      ports.ConnectivityPort
	Speech    ports.SpeechPort
}

// Session is the top-level orchestrator. All state flows through it:
// user actions in, committed mutations out to the render port.
type Session struct {
	cfg       *config.Config
	logger    *zap.Logger
	bus       *bus.Bus
	clk       clock.Clock
	chats     *chat.Store
	queue     *offline.Queue
	tracker   *lifecycle.Tracker
	assistant *respond.Engine
	link      ports.ConnectivityPort
	speech    ports.SpeechPort
	hasSpeech bool

	mu             sync.Mutex
	render         ports.RenderPort
	online         bool
	contactEngines map[string]*respond.Engine
	replyTimers    map[string]clock.Timer
	presenceTimer  clock.Timer
	stopWatch      func()
	unsub          func()

	done      chan struct{}
	closeOnce sync.Once
}

// New creates a session. Capability presence (speech) is decided here,
// once, not at call sites.
func New(p Params) *Session {
	return &Session{
		cfg:            p.Config,
		logger:         p.Logger,
		bus:            p.Bus,
		clk:            p.Clock,
		chats:          p.Chats,
		queue:          p.Queue,
		tracker:        p.Tracker,
		assistant:      p.Assistant,
		link:           p.Link,
		speech:         p.Speech,
		hasSpeech:      p.Speech != nil && p.Speech.Available(),
		contactEngines: make(map[string]*respond.Engine),
		replyTimers:    make(map[string]clock.Timer),
		done:           make(chan struct{}),
	}
}

// AttachRender registers the render port. Events before attachment are
// dropped; the renderer pulls fresh snapshots when it attaches.
func (s *Session) AttachRender(r ports.RenderPort) {
	s.mu.Lock()
	s.render = r
	s.mu.Unlock()
}

// Start loads persisted state into a usable session: ensures the user
// exists, seeds first-run data, starts the presence ticker and the
// connectivity watcher, and begins fanning events out to the renderer.
func (s *Session) Start(displayName string) {
	firstRun := s.chats.FirstRun()
	user := s.chats.EnsureUser(displayName)
	s.assistant.SetUserName(user.DisplayName)

	if firstRun {
		s.seed(user.DisplayName)
	} else {
		s.notice(fmt.Sprintf("Welcome back, %s!", user.DisplayName))
	}

	s.mu.Lock()
	s.online = s.link.Online()
	s.stopWatch = s.link.Watch(s.onLinkChange)
	online := s.online
	s.mu.Unlock()

	if snap := s.queue.Snapshot(); len(snap) > 0 {
		s.logger.Info("restored offline queue",
			zap.Int("count", len(snap)),
			zap.Int64("oldest_enqueued_at", snap[0].EnqueuedAt))
		// A relaunch straight into a live link sees no connectivity
		// edge, so the restored queue has to drain here.
		if online {
			if n := s.flushQueue(); n > 0 {
				s.notice(fmt.Sprintf("Sending %d queued message(s).", n))
			}
		}
	}

	s.schedulePresenceTick()
	s.startRenderPump()

	s.logger.Info("session started",
		zap.String("user", user.DisplayName),
		zap.Bool("first_run", firstRun),
		zap.Bool("online", s.Online()),
		zap.Bool("speech", s.hasSpeech),
		zap.Int("queued", s.queue.Len()))
}

// Close cancels every pending trigger and stops the fanout. Safe to call
// more than once; only called on process exit.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		close(s.done)

		s.mu.Lock()
		if s.presenceTimer != nil {
			s.presenceTimer.Stop()
		}
		for id, t := range s.replyTimers {
			t.Stop()
			delete(s.replyTimers, id)
		}
		stopWatch := s.stopWatch
		unsub := s.unsub
		s.mu.Unlock()

		if stopWatch != nil {
			stopWatch()
		}
		if unsub != nil {
			unsub()
		}
		if n := s.tracker.Pending(); n > 0 {
			s.logger.Info("cancelling pending delivery triggers", zap.Int("count", n))
		}
		s.tracker.CancelAll()
		s.logger.Info("session closed")
	})
}

// User returns the local account snapshot.
func (s *Session) User() chat.User { return s.chats.User() }

// Online reports the simulated link state.
func (s *Session) Online() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.online
}

// Settings returns the persisted preferences.
func (s *Session) Settings() chat.Settings { return s.chats.Settings() }

// SetSettings replaces the persisted preferences.
func (s *Session) SetSettings(st chat.Settings) { s.chats.SetSettings(st) }

// QueuedCount reports how many outbound messages await reconnect.
func (s *Session) QueuedCount() int { return s.queue.Len() }

// ListChats returns the sorted, optionally filtered chat list.
func (s *Session) ListChats(filter string) []chat.Chat {
	return s.chats.ListChats(filter)
}

// SelectChat activates a chat and returns it with its message log.
func (s *Session) SelectChat(chatID string) (chat.Chat, []chat.Message, error) {
	return s.chats.SelectChat(chatID)
}

// ClearActive drops the chat selection so later incoming messages
// count as unread again.
func (s *Session) ClearActive() { s.chats.ClearActive() }

// Messages returns a chat's full log without touching read state.
func (s *Session) Messages(chatID string) ([]chat.Message, error) {
	return s.chats.Messages(chatID)
}

// CreateChat starts a conversation with a new simulated peer.
func (s *Session) CreateChat(peerName string) chat.Chat {
	return s.chats.CreateChat(peerName)
}

// DeleteChat removes a chat after cancelling everything scheduled for it.
func (s *Session) DeleteChat(chatID string) error {
	s.tracker.CancelChat(chatID)
	s.mu.Lock()
	if t, ok := s.replyTimers[chatID]; ok {
		t.Stop()
		delete(s.replyTimers, chatID)
	}
	delete(s.contactEngines, chatID)
	s.mu.Unlock()
	return s.chats.DeleteChat(chatID)
}

// TogglePinned flips a chat's pinned flag.
func (s *Session) TogglePinned(chatID string) error {
	c, err := s.chats.GetChat(chatID)
	if err != nil {
		return err
	}
	return s.chats.SetPinned(chatID, !c.Pinned)
}

// ToggleMuted flips a chat's muted flag.
func (s *Session) ToggleMuted(chatID string) error {
	c, err := s.chats.GetChat(chatID)
	if err != nil {
		return err
	}
	return s.chats.SetMuted(chatID, !c.Muted)
}

// SendText appends an outgoing message optimistically. Online, it starts
// the delivery simulation and schedules a contact reply; offline, it
// parks the message on the queue instead.
func (s *Session) SendText(chatID, text string) error {
	m, err := s.chats.AppendMessage(chatID, chat.Outgoing, text)
	if err != nil {
		return err
	}

	if !s.Online() {
		s.queue.Enqueue(m)
		s.notice("Offline — message queued.")
		return nil
	}

	s.tracker.Track(m.ChatID, m.ID)
	s.scheduleReply(chatID, text)
	return nil
}

// AskAssistant routes text through the rule-based assistant and speaks
// the reply when voice is available and enabled.
func (s *Session) AskAssistant(text string) string {
	activeChat := ""
	if id := s.chats.ActiveChatID(); id != "" {
		if c, err := s.chats.GetChat(id); err == nil {
			activeChat = c.PeerName
		}
	}
	out := s.assistant.Respond(text, activeChat)
	if s.hasSpeech && s.chats.Settings().VoiceEnabled {
		s.speech.Speak(out)
	}
	return out
}

// Listen captures one voice transcript and routes it into the send path:
// to the active chat when one is selected, otherwise to the assistant.
// Without speech support the feature is simply unavailable, never fatal.
func (s *Session) Listen(ctx context.Context) error {
	if !s.hasSpeech {
		s.notice("Voice input is not available.")
		return ports.ErrSpeechUnavailable
	}
	transcript, err := s.speech.StartListening(ctx)
	if err != nil {
		s.logger.Warn("voice capture failed", zap.Error(err))
		s.notice("Voice capture failed.")
		return err
	}
	if id := s.chats.ActiveChatID(); id != "" {
		return s.SendText(id, transcript)
	}
	s.AskAssistant(transcript)
	return nil
}

// AssistantTail returns the most recent assistant memory entries.
func (s *Session) AssistantTail(n int) []respond.Entry {
	return s.assistant.Tail(n)
}

func (s *Session) seed(displayName string) {
	c := s.chats.CreateChat(seedChatName)
	welcome := fmt.Sprintf("Welcome to Parley, %s! Everything here lives on your device — try sending a message.", displayName)
	if _, err := s.chats.AppendMessage(c.ID, chat.Incoming, welcome); err != nil {
		s.logger.Warn("seed message failed", zap.Error(err))
	}
}

// scheduleReply arms the simulated-contact reply for a chat. A newer
// outgoing message supersedes a still-pending reply.
func (s *Session) scheduleReply(chatID, inText string) {
	if !s.chats.Settings().AutoReplyEnabled {
		return
	}

	lo, hi := s.cfg.ReplyDelayWindow()
	delay := lo
	if hi > lo {
		delay += rand.N(hi - lo)
	}

	s.bus.Publish(bus.Event{Kind: bus.KindChatTyping, Timestamp: s.clk.Now(), Payload: chatID})

	s.mu.Lock()
	if t, ok := s.replyTimers[chatID]; ok {
		t.Stop()
	}
	s.replyTimers[chatID] = s.clk.AfterFunc(delay, func() {
		s.deliverReply(chatID, inText)
	})
	s.mu.Unlock()
}

func (s *Session) deliverReply(chatID, inText string) {
	s.mu.Lock()
	delete(s.replyTimers, chatID)
	s.mu.Unlock()

	c, err := s.chats.GetChat(chatID)
	if err != nil {
		return
	}

	out := s.contactEngine(c).Respond(inText, c.PeerName)
	if _, err := s.chats.AppendMessage(chatID, chat.Incoming, out); err != nil {
		s.logger.Warn("contact reply dropped", zap.String("chat_id", chatID), zap.Error(err))
		return
	}
	if s.hasSpeech && !c.Muted && s.chats.Settings().VoiceEnabled {
		s.speech.Speak(out)
	}
}

// contactEngine returns the per-chat responder, creating it with that
// contact's canned pool and ephemeral memory on first use.
func (s *Session) contactEngine(c chat.Chat) *respond.Engine {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.contactEngines[c.ID]; ok {
		return e
	}
	e := respond.New(nil, nil, s.clk, s.logger, respond.Options{
		UserName: s.chats.User().DisplayName,
		Pool:     respond.ContactPool(c.PeerName),
	})
	s.contactEngines[c.ID] = e
	return e
}

// onLinkChange handles a connectivity edge. Exactly one flush happens
// per offline->online transition; flushed messages get their delivery
// triggers only now.
func (s *Session) onLinkChange(online bool) {
	s.mu.Lock()
	s.online = online
	s.mu.Unlock()

	s.bus.Publish(bus.Event{Kind: bus.KindNetChanged, Timestamp: s.clk.Now(), Payload: online})

	if !online {
		s.notice("Connection lost — outgoing messages will be queued.")
		return
	}

	if n := s.flushQueue(); n > 0 {
		s.notice(fmt.Sprintf("Back online — sending %d queued message(s).", n))
	} else {
		s.notice("Back online.")
	}
}

// flushQueue drains the offline queue and starts the delivery
// simulation plus a contact reply for each flushed message. Returns how
// many messages went out.
func (s *Session) flushQueue() int {
	flushed := s.queue.Flush()
	for _, m := range flushed {
		s.tracker.Track(m.ChatID, m.ID)
		s.scheduleReply(m.ChatID, m.Text)
	}
	return len(flushed)
}

// schedulePresenceTick keeps the user's simulated presence fresh: online
// while the link is up, last-seen otherwise.
func (s *Session) schedulePresenceTick() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.presenceTimer = s.clk.AfterFunc(s.cfg.PresenceTick(), s.presenceTick)
}

func (s *Session) presenceTick() {
	select {
	case <-s.done:
		return
	default:
	}

	if s.Online() {
		s.chats.SetPresence(chat.PresenceOnline)
	} else {
		s.chats.SetPresence(chat.PresenceLastSeen)
	}
	s.schedulePresenceTick()
}

func (s *Session) notice(text string) {
	s.bus.Publish(bus.Event{Kind: bus.KindNotice, Timestamp: s.clk.Now(), Payload: text})
}

// startRenderPump subscribes to every engine event and fans the matching
// minimal slice out to the attached renderer.
func (s *Session) startRenderPump() {
	ch, unsub := s.bus.Subscribe("", 256)
	s.mu.Lock()
	s.unsub = unsub
	s.mu.Unlock()

	go func() {
		for {
			select {
			case evt := <-ch:
				s.dispatch(evt)
			case <-s.done:
				return
			}
		}
	}()
}

func (s *Session) dispatch(evt bus.Event) {
	s.mu.Lock()
	r := s.render
	s.mu.Unlock()
	if r == nil {
		return
	}

	switch evt.Kind {
	case bus.KindChatListChanged:
		r.ChatListChanged(s.chats.ListChats(""))
	case bus.KindMessageAppended:
		if ref, ok := evt.Payload.(bus.MessageRef); ok {
			s.renderMessages(r, ref.ChatID)
		}
	case bus.KindStatusChanged:
		if change, ok := evt.Payload.(bus.StatusChange); ok {
			s.renderMessages(r, change.ChatID)
		}
	case bus.KindChatTyping:
		if chatID, ok := evt.Payload.(string); ok {
			r.TypingStarted(chatID)
		}
	case bus.KindAssistantReplied:
		r.AssistantReplied(s.assistant.Tail(20))
	case bus.KindNetChanged:
		if online, ok := evt.Payload.(bool); ok {
			r.ConnectivityChanged(online)
		}
	case bus.KindPresenceChanged:
		r.PresenceChanged(s.chats.User())
	case bus.KindNotice:
		if text, ok := evt.Payload.(string); ok {
			r.Notice(text)
		}
	}
}

func (s *Session) renderMessages(r ports.RenderPort, chatID string) {
	msgs, err := s.chats.Messages(chatID)
	if err != nil {
		return
	}
	r.MessagesChanged(chatID, msgs)
}
