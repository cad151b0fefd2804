// Package prompt builds model prompts for translation and language
// detection, and sanitises user text before it is embedded in them.
package prompt

import (
	"regexp"
	"strings"
)

// controlTokens are instruction-format markers stripped from user text so
// that source material cannot break out of the prompt structure.
var controlTokens = []string{
	"[INST]",
	"[/INST]",
	"<<SYS>>",
	"<</SYS>>",
	"```",
}

var (
	hashRuns = regexp.MustCompile(`#{3,}`)
	dashRuns = regexp.MustCompile(`-{3,}`)
)

// Sanitize removes prompt control tokens and markdown structure markers
// from text. Newlines are preserved. The result is a fixpoint: sanitising
// it again returns it unchanged, even when removals expose new tokens.
func Sanitize(text string) string {
	for {
		next := sanitizeOnce(text)
		if next == text {
			return next
		}
		text = next
	}
}

func sanitizeOnce(text string) string {
	for _, tok := range controlTokens {
		text = strings.ReplaceAll(text, tok, "")
	}
	text = hashRuns.ReplaceAllString(text, "")
	text = dashRuns.ReplaceAllString(text, "")
	return text
}
