// Package respond implements the deterministic rule-based responder that
// backs both the floating assistant and simulated contact replies.
package respond

import (
	"strings"
	"sync"

	"github.com/parley-chat/parley/internal/bus"
	"github.com/parley-chat/parley/internal/clock"
	"github.com/parley-chat/parley/internal/store"
	"go.uber.org/zap"
)

// DefaultPool is the assistant's fallback reply pool, used when no
// earlier rule matches.
var DefaultPool = []string{
	"Interesting! Tell me more.",
	"Good point. What happened next?",
	"I see. How do you feel about that?",
	"Noted. Anything else on your mind?",
	"Fair enough. Want to dig into that?",
}

// ContactPool returns the canned reply pool for a simulated contact.
// Deterministic per peer name so a contact keeps a consistent voice.
func ContactPool(peerName string) []string {
	pools := [][]string{
		{
			"Nice, sounds good!",
			"Haha, totally.",
			"Let me get back to you on that.",
			"On my way!",
			"Can we talk later today?",
		},
		{
			"Agreed.",
			"That works for me.",
			"Busy right now, catch you soon.",
			"Thanks for the update!",
			"Will do.",
		},
	}
	var h uint32
	for _, r := range peerName {
		h = h*31 + uint32(r)
	}
	return pools[h%uint32(len(pools))]
}

// Options parameterizes one engine instance.
type Options struct {
	UserName string
	// Pool overrides DefaultPool; used for per-contact canned replies.
	Pool []string
	// MemorySize bounds the memory ring. Zero means DefaultMemorySize.
	MemorySize int
	// MemoryKey is where memory persists. Empty keeps memory in RAM only.
	MemoryKey string
}

// DefaultMemorySize is the memory ring bound when none is configured.
const DefaultMemorySize = 50

// Engine evaluates the ordered rule table over a bounded conversational
// memory. Given the same memory state and input it always produces the
// same output.
type Engine struct {
	mu     sync.Mutex
	kv     *store.KV
	bus    *bus.Bus
	clk    clock.Clock
	logger *zap.Logger
	opts   Options
	memory []Entry
}

// New creates an engine, restoring persisted memory when a key is set.
func New(kv *store.KV, b *bus.Bus, clk clock.Clock, logger *zap.Logger, opts Options) *Engine {
	if opts.MemorySize <= 0 {
		opts.MemorySize = DefaultMemorySize
	}
	e := &Engine{kv: kv, bus: b, clk: clk, logger: logger, opts: opts}
	if opts.MemoryKey != "" && kv != nil {
		e.memory = store.Load(kv, opts.MemoryKey, []Entry(nil))
	}
	return e
}

// SetUserName updates the name rules greet and self-reference against.
func (e *Engine) SetUserName(name string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.opts.UserName = name
}

// Respond evaluates the rule table against input and records both sides
// of the exchange in memory. activeChat names the conversation the user
// is looking at, or "" when none.
func (e *Engine) Respond(input, activeChat string) string {
	input = strings.TrimSpace(input)

	e.mu.Lock()
	ctx := Context{
		UserName:   e.opts.UserName,
		ActiveChat: activeChat,
		Now:        e.clk.Now(),
		Memory:     e.memory,
	}

	var out string
	for _, r := range rules {
		if r.match(input, ctx) {
			out = r.respond(e, input, ctx)
			break
		}
	}

	now := e.clk.Now().UnixMilli()
	e.memory = append(e.memory,
		Entry{Role: RoleUser, Text: input, At: now},
		Entry{Role: RoleAssistant, Text: out, At: now},
	)
	e.memory = trimMemory(e.memory, e.opts.MemorySize)
	if e.opts.MemoryKey != "" && e.kv != nil {
		e.kv.Save(e.opts.MemoryKey, e.memory)
	}
	e.mu.Unlock()

	if e.bus != nil {
		e.bus.Publish(bus.Event{Kind: bus.KindAssistantReplied, Timestamp: e.clk.Now(), Payload: out})
	}
	return out
}

// Tail returns up to n most recent memory entries, oldest first.
func (e *Engine) Tail(n int) []Entry {
	e.mu.Lock()
	defer e.mu.Unlock()
	if n <= 0 || n > len(e.memory) {
		n = len(e.memory)
	}
	out := make([]Entry, n)
	copy(out, e.memory[len(e.memory)-n:])
	return out
}

// pool returns the configured reply pool. Caller holds the lock or the
// engine is otherwise quiescent; the slice is never mutated.
func (e *Engine) pool() []string {
	if len(e.opts.Pool) > 0 {
		return e.opts.Pool
	}
	return DefaultPool
}
