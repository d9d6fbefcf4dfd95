// Package ports defines the boundaries between the engine and its
// external collaborators: rendering, speech, connectivity. The core
// never references a display layer; it talks to these interfaces only.
package ports

import (
	"context"
	"errors"

	"github.com/parley-chat/parley/internal/chat"
	"github.com/parley-chat/parley/internal/respond"
)

// RenderPort is invoked after every committed mutation with the minimal
// changed slice. Implementations must not block; they are called from
// the engine's event fanout.
type RenderPort interface {
	ChatListChanged(chats []chat.Chat)
	MessagesChanged(chatID string, msgs []chat.Message)
	AssistantReplied(tail []respond.Entry)
	TypingStarted(chatID string)
	PresenceChanged(user chat.User)
	ConnectivityChanged(online bool)
	// Notice carries best-effort failure and status text; never fatal.
	Notice(text string)
}

// ErrSpeechUnavailable is returned by speech implementations that lack
// the capability. Callers degrade the feature, never fail.
var ErrSpeechUnavailable = errors.New("speech capability unavailable")

// SpeechPort is the opaque transcript-in / utterance-out service.
type SpeechPort interface {
	// Available reports the capability once; checked at session
	// construction, not per call.
	Available() bool
	// StartListening blocks until one transcript is captured or ctx ends.
	StartListening(ctx context.Context) (string, error)
	// Speak is fire-and-forget.
	Speak(text string)
}

// NullSpeech is the explicit absence of speech support.
type NullSpeech struct{}

func (NullSpeech) Available() bool { return false }

func (NullSpeech) StartListening(context.Context) (string, error) {
	return "", ErrSpeechUnavailable
}

func (NullSpeech) Speak(string) {}

// ConnectivityPort reports the simulated link state and its edges.
type ConnectivityPort interface {
	Online() bool
	// Watch registers an edge callback and returns a stop function.
	Watch(fn func(online bool)) (stop func())
}
