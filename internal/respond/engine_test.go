package respond

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/parley-chat/parley/internal/clock"
	"github.com/parley-chat/parley/internal/store"
	"go.uber.org/zap"
)

func testKV(t *testing.T) *store.KV {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := store.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Migrate(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return store.NewKV(db, zap.NewNop())
}

func testEngine(t *testing.T, opts Options) *Engine {
	t.Helper()
	if opts.UserName == "" {
		opts.UserName = "Sam"
	}
	return New(testKV(t), nil, clock.NewFake(time.Date(2024, 3, 14, 15, 4, 0, 0, time.UTC)), zap.NewNop(), opts)
}

func TestGreetingNamesTheUser(t *testing.T) {
	e := testEngine(t, Options{UserName: "Sam"})
	out := e.Respond("hello", "")
	if !strings.Contains(out, "Sam") {
		t.Errorf("greeting = %q, want it to contain the user's name", out)
	}
}

func TestGreetingRequiresWholeWord(t *testing.T) {
	e := testEngine(t, Options{})
	// "this" contains "hi" as a substring; it must not trigger the greeting.
	out := e.Respond("this is nothing in particular", "")
	if strings.Contains(out, "Hello") {
		t.Errorf("substring keyword triggered greeting: %q", out)
	}
}

func TestTimeAndDate(t *testing.T) {
	e := testEngine(t, Options{})
	if out := e.Respond("what time is it", ""); !strings.Contains(out, "15:04") {
		t.Errorf("time reply = %q, want it to contain 15:04", out)
	}
	if out := e.Respond("what is the date", ""); !strings.Contains(out, "March 14") {
		t.Errorf("date reply = %q, want it to contain March 14", out)
	}
}

func TestHelpMentionsActiveChat(t *testing.T) {
	e := testEngine(t, Options{})
	if out := e.Respond("help", "Alice"); !strings.Contains(out, "Alice") {
		t.Errorf("help with active chat = %q, want it to mention Alice", out)
	}
	if out := e.Respond("help", ""); strings.Contains(out, "Alice") {
		t.Errorf("help without active chat = %q", out)
	}
}

func TestSelfReference(t *testing.T) {
	e := testEngine(t, Options{UserName: "Sam"})
	out := e.Respond("who is sam anyway", "")
	if !strings.Contains(out, "That's you") {
		t.Errorf("self-reference reply = %q", out)
	}
}

func TestRecallEmptyMemorySentinel(t *testing.T) {
	e := testEngine(t, Options{})
	out := e.Respond("remember", "")
	if out != NothingRemembered {
		t.Errorf("recall on empty memory = %q, want %q", out, NothingRemembered)
	}
}

func TestRecallEchoesLatestEntry(t *testing.T) {
	e := testEngine(t, Options{})
	first := e.Respond("something unmatched by any keyword rule", "")
	out := e.Respond("what did I say last", "")
	if !strings.Contains(out, first) {
		t.Errorf("recall = %q, want it to echo the latest entry %q", out, first)
	}
}

func TestRecallTruncatesLongEntries(t *testing.T) {
	long := strings.Repeat("a", 200)
	e := testEngine(t, Options{})
	e.memory = []Entry{{Role: RoleUser, Text: long, At: 0}}
	out := e.Respond("remember", "")
	if strings.Contains(out, long) {
		t.Errorf("recall did not truncate a %d-rune entry", len(long))
	}
}

// TestRuleOrderFirstMatchWins pins the tie-break contract: an input
// matching several rules gets the earliest rule's reply.
func TestRuleOrderFirstMatchWins(t *testing.T) {
	e := testEngine(t, Options{UserName: "Sam"})
	// Matches greeting ("hello"), time ("time"), and recall ("last").
	out := e.Respond("hello, last time?", "")
	if !strings.Contains(out, "Hello, Sam") {
		t.Errorf("reply = %q, want the greeting rule to win", out)
	}
}

// TestDefaultPoolAvoidsRecentRepeats feeds the same default-triggering
// input repeatedly; no reply may repeat the immediately prior one while
// at least two untried pool entries remain.
func TestDefaultPoolAvoidsRecentRepeats(t *testing.T) {
	e := testEngine(t, Options{})
	var prev string
	for i := 0; i < 4; i++ {
		out := e.Respond("qwerty asdf zxcv", "")
		if i > 0 && out == prev && i < len(DefaultPool)-1 {
			t.Fatalf("call %d repeated the prior reply %q", i+1, out)
		}
		prev = out
	}
}

func TestDefaultPoolExhaustionFallsBack(t *testing.T) {
	pool := []string{"one", "two"}
	e := testEngine(t, Options{Pool: pool})

	first := e.Respond("qwerty", "")
	second := e.Respond("qwerty", "")
	third := e.Respond("qwerty", "")

	if first != "one" || second != "two" {
		t.Errorf("first two replies = %q, %q, want one, two", first, second)
	}
	// Both entries are now recent; repetition beats failure.
	if third != "one" {
		t.Errorf("exhausted pool reply = %q, want fallback to first entry", third)
	}
}

func TestMemoryBound(t *testing.T) {
	e := testEngine(t, Options{MemorySize: 6})
	for i := 0; i < 10; i++ {
		e.Respond("qwerty asdf", "")
	}
	if got := len(e.Tail(0)); got != 6 {
		t.Errorf("memory length = %d, want bound 6", got)
	}
}

func TestMemoryPersistsAcrossEngines(t *testing.T) {
	kv := testKV(t)
	clk := clock.NewFake(time.UnixMilli(1_000))

	e1 := New(kv, nil, clk, zap.NewNop(), Options{UserName: "Sam", MemoryKey: store.KeyMemory})
	reply := e1.Respond("qwerty asdf", "")

	e2 := New(kv, nil, clk, zap.NewNop(), Options{UserName: "Sam", MemoryKey: store.KeyMemory})
	tail := e2.Tail(0)
	if len(tail) != 2 {
		t.Fatalf("restored memory length = %d, want 2", len(tail))
	}
	if tail[1].Role != RoleAssistant || tail[1].Text != reply {
		t.Errorf("restored tail = %+v", tail[1])
	}
}

func TestEphemeralMemoryNotPersisted(t *testing.T) {
	kv := testKV(t)
	clk := clock.NewFake(time.UnixMilli(1_000))

	e1 := New(kv, nil, clk, zap.NewNop(), Options{UserName: "Sam"})
	e1.Respond("qwerty", "")

	if got := store.Load(kv, store.KeyMemory, []Entry(nil)); len(got) != 0 {
		t.Errorf("ephemeral engine persisted %d entries", len(got))
	}
}

func TestContactPoolDeterministic(t *testing.T) {
	a := ContactPool("Alice")
	b := ContactPool("Alice")
	if len(a) == 0 {
		t.Fatal("empty contact pool")
	}
	for i := range a {
		if a[i] != b[i] {
			t.Errorf("ContactPool not deterministic at %d", i)
		}
	}
}
