package views

import "testing"

func TestSanitizeForTerminal(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain text untouched", "hello world", "hello world"},
		{"skin tone stripped", "\U0001F44D\U0001F3FB", "\U0001F44D"},
		{"zwj sequence split", "\U0001F468‍\U0001F469", "\U0001F468\U0001F469"},
		{"variation selector stripped", "❤️", "❤"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := sanitizeForTerminal(tt.in); got != tt.want {
				t.Errorf("sanitizeForTerminal(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
