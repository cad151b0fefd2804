package prompt

import (
	"strings"
	"testing"
)

func TestSanitizeRemovesControlTokens(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"inst tokens", "[INST] hello [/INST]", " hello "},
		{"sys tokens", "<<SYS>>boo<</SYS>>", "boo"},
		{"code fence", "```python\nprint(1)\n```", "python\nprint(1)\n"},
		{"hash run", "### Heading", " Heading"},
		{"dash run", "a --- b ------ c", "a  b  c"},
		{"short runs kept", "a -- b ## c", "a -- b ## c"},
		{"clean text untouched", "こんにちは world", "こんにちは world"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Sanitize(tt.in); got != tt.want {
				t.Errorf("Sanitize(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestSanitizeReassembledToken(t *testing.T) {
	// Removing the inner token exposes a new one; a single pass would
	// leave "[INST]" behind.
	in := "[IN[INST]ST] text"
	got := Sanitize(in)
	if strings.Contains(got, "[INST]") {
		t.Errorf("Sanitize(%q) = %q, still contains control token", in, got)
	}
}

func TestSanitizeIsFixpoint(t *testing.T) {
	inputs := []string{
		"[INST] mixed ### --- ``` text [/INST]",
		"plain text\nwith\nnewlines",
		"----[/IN[/INST]ST]----",
	}
	for _, in := range inputs {
		once := Sanitize(in)
		twice := Sanitize(once)
		if once != twice {
			t.Errorf("Sanitize not a fixpoint for %q: %q != %q", in, once, twice)
		}
	}
}

func TestSanitizePreservesNewlines(t *testing.T) {
	in := "line one\n[INST]\nline two\n\nline three"
	got := Sanitize(in)
	if strings.Count(got, "\n") != strings.Count(in, "\n") {
		t.Errorf("Sanitize changed newline count: %q -> %q", in, got)
	}
}
