package bus

import "time"

// Kind names an event. Kinds are dotted, namespace-first, so a
// subscriber can take a whole family with one prefix ("message."
// receives every message event).
type Kind string

// Event kinds published by the engine.
const (
	KindChatListChanged  Kind = "chat.list_changed"
	KindChatTyping       Kind = "chat.typing"
	KindMessageAppended  Kind = "message.appended"
	KindStatusChanged    Kind = "message.status_changed"
	KindAssistantReplied Kind = "assistant.replied"
	KindNetChanged       Kind = "net.changed"
	KindPresenceChanged  Kind = "presence.changed"
	KindNotice           Kind = "session.notice"
)

// Event is one committed fact announced to subscribers.
type Event struct {
	Kind      Kind
	Timestamp time.Time
	Payload   any
}

// MessageRef identifies a message within a chat; payload for message events.
type MessageRef struct {
	ChatID    string
	MessageID string
}

// StatusChange is the payload for message.status_changed events.
type StatusChange struct {
	ChatID    string
	MessageID string
	From      string
	To        string
}
