package respond

import (
	"fmt"
	"slices"
	"strings"
	"time"
	"unicode"
)

// NothingRemembered is the fixed reply when a recall query hits empty memory.
const NothingRemembered = "I don't have anything remembered yet."

const recallEchoLen = 60

// Context carries what a rule may look at besides the input text.
type Context struct {
	UserName   string
	ActiveChat string
	Now        time.Time
	Memory     []Entry
}

// rule is one (predicate, responder) pair. Rules are evaluated in table
// order and the first match wins; the tie-break between overlapping
// keywords is therefore the table order itself.
type rule struct {
	name    string
	match   func(input string, ctx Context) bool
	respond func(e *Engine, input string, ctx Context) string
}

var rules = []rule{
	{
		name: "greeting",
		match: func(in string, _ Context) bool {
			return containsAnyWord(in, "hello", "hi", "hey", "greetings")
		},
		respond: func(_ *Engine, _ string, ctx Context) string {
			return fmt.Sprintf("Hello, %s! What can I do for you?", ctx.UserName)
		},
	},
	{
		name: "time-date",
		match: func(in string, _ Context) bool {
			return containsAnyWord(in, "time", "date", "today")
		},
		respond: func(_ *Engine, in string, ctx Context) string {
			if containsAnyWord(in, "time") {
				return "It's " + ctx.Now.Format("15:04") + "."
			}
			return "Today is " + ctx.Now.Format("Monday, January 2") + "."
		},
	},
	{
		name: "help",
		match: func(in string, _ Context) bool {
			return containsAnyWord(in, "help", "chat", "chats")
		},
		respond: func(_ *Engine, _ string, ctx Context) string {
			if ctx.ActiveChat != "" {
				return fmt.Sprintf("You're chatting with %s. Ask me about the time, the date, or what you said last.", ctx.ActiveChat)
			}
			return "Pick a chat from the list, or ask me about the time, the date, or what you said last."
		},
	},
	{
		name: "self-reference",
		match: func(in string, ctx Context) bool {
			return ctx.UserName != "" && containsFold(in, ctx.UserName)
		},
		respond: func(_ *Engine, _ string, ctx Context) string {
			return fmt.Sprintf("That's you, %s.", ctx.UserName)
		},
	},
	{
		name: "recall",
		match: func(in string, _ Context) bool {
			return containsAnyWord(in, "remember", "last")
		},
		respond: func(_ *Engine, _ string, ctx Context) string {
			if len(ctx.Memory) == 0 {
				return NothingRemembered
			}
			latest := ctx.Memory[len(ctx.Memory)-1]
			return fmt.Sprintf("Last thing I have: %q", truncate(latest.Text, recallEchoLen))
		},
	},
	{
		name:  "default",
		match: func(string, Context) bool { return true },
		respond: func(e *Engine, _ string, ctx Context) string {
			return pickFromPool(e.pool(), ctx.Memory)
		},
	},
}

// pickFromPool returns the first pool entry not among the last 3
// assistant replies. When every entry was recently used it falls back to
// the first, accepting repetition rather than failing.
func pickFromPool(pool []string, mem []Entry) string {
	if len(pool) == 0 {
		return ""
	}
	recent := lastAssistant(mem, 3)
	for _, candidate := range pool {
		if !slices.Contains(recent, candidate) {
			return candidate
		}
	}
	return pool[0]
}

// containsAnyWord reports whether any keyword appears in input as a
// whole word, case-insensitively. Substring matching would make "this"
// trigger the greeting rule via "hi".
func containsAnyWord(input string, keywords ...string) bool {
	words := strings.FieldsFunc(strings.ToLower(input), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	for _, kw := range keywords {
		if slices.Contains(words, kw) {
			return true
		}
	}
	return false
}

func containsFold(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}

func truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen]) + "…"
}
