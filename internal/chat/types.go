package chat

import "slices"

// Presence is a simulated online/offline/last-seen signal, unrelated to
// real connectivity.
type Presence string

const (
	PresenceOnline   Presence = "online"
	PresenceOffline  Presence = "offline"
	PresenceLastSeen Presence = "last_seen"
)

// User is the single local account, created on first launch.
type User struct {
	ID          string   `json:"id"`
	DisplayName string   `json:"display_name"`
	AvatarRef   string   `json:"avatar_ref"`
	Presence    Presence `json:"presence"`
	LastSeenAt  int64    `json:"last_seen_at"`
	JoinedAt    int64    `json:"joined_at"`
}

// Direction tells whether a message left this device or arrived at it.
type Direction string

const (
	Outgoing Direction = "outgoing"
	Incoming Direction = "incoming"
)

// Status is a message's delivery state. It only ever advances.
type Status string

const (
	StatusSent      Status = "sent"
	StatusDelivered Status = "delivered"
	StatusRead      Status = "read"
)

// validTransitions defines the allowed status advancements. A status may
// never regress and never skip a step; skipping is handled upstream by
// synthesizing the intermediate step first.
var validTransitions = map[Status][]Status{
	StatusSent:      {StatusDelivered},
	StatusDelivered: {StatusRead},
	StatusRead:      {},
}

// CanAdvance reports whether from -> to is a legal single-step advance.
func CanAdvance(from, to Status) bool {
	return slices.Contains(validTransitions[from], to)
}

// Message is one entry in a chat's log. Immutable except for Status.
type Message struct {
	ID        string    `json:"id"`
	ChatID    string    `json:"chat_id"`
	Direction Direction `json:"direction"`
	Text      string    `json:"text"`
	CreatedAt int64     `json:"created_at"`
	Status    Status    `json:"status"`
}

// Chat is one conversation with a simulated peer. Preview and activity
// are derived from the message log and updated only on append.
type Chat struct {
	ID                 string `json:"id"`
	PeerName           string `json:"peer_name"`
	AvatarRef          string `json:"avatar_ref"`
	LastMessagePreview string `json:"last_message_preview"`
	LastActivityAt     int64  `json:"last_activity_at"`
	UnreadCount        int    `json:"unread_count"`
	Pinned             bool   `json:"pinned"`
	Muted              bool   `json:"muted"`
}

// Settings is the small persisted preferences blob.
type Settings struct {
	VoiceEnabled     bool `json:"voice_enabled"`
	AutoReplyEnabled bool `json:"auto_reply_enabled"`
}

// DefaultSettings returns the first-run preferences.
func DefaultSettings() Settings {
	return Settings{VoiceEnabled: true, AutoReplyEnabled: true}
}
