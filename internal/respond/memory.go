package respond

// Role tags who produced a memory entry.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Entry is one line of bounded conversational memory.
type Entry struct {
	Role Role   `json:"role"`
	Text string `json:"text"`
	At   int64  `json:"at"`
}

// lastAssistant returns up to n most recent assistant-role texts,
// newest first.
func lastAssistant(mem []Entry, n int) []string {
	var out []string
	for i := len(mem) - 1; i >= 0 && len(out) < n; i-- {
		if mem[i].Role == RoleAssistant {
			out = append(out, mem[i].Text)
		}
	}
	return out
}

// trimMemory keeps the most recent bound entries.
func trimMemory(mem []Entry, bound int) []Entry {
	if bound > 0 && len(mem) > bound {
		return mem[len(mem)-bound:]
	}
	return mem
}
