package translate

import (
	"regexp"
	"strings"
)

// Model output frequently echoes prompt structure, labels, and decoration.
// The cleaners below strip all of that before the text is returned to the
// client.
var (
	wrapperTokens = regexp.MustCompile(`(?i)\[/?INST\]|<</?SYS>>`)
	leadingRule   = regexp.MustCompile(`^\s*[-‐‑–—_=]{3,}\s*(?:>+)?\s*`)
	leadingQuote  = regexp.MustCompile(`^\s*(?:>+|\|+)\s*`)
	blankRuns     = regexp.MustCompile(`\n\s*\n\s*\n+`)
	symbolOnly    = regexp.MustCompile("^[\\s‐‑–—_=~`'\".,:;!?()\\[\\]{}<>|/\\\\*+^%$#@!。，！？、：；「」『』-]+$")
)

// stopMarkers are labels models prepend or append around the translation.
// Text after a leading marker is kept; text after a mid-output marker is
// cut off.
var stopMarkers = []string{
	"中文翻譯：", "英文翻譯：",
	"原文：", "原文:",
	"翻譯：", "翻譯:",
	"Translation:", "Original:",
}

// cleanOutput normalises raw model output into presentable translated text.
func cleanOutput(raw string) string {
	s := strings.TrimSpace(raw)
	s = wrapperTokens.ReplaceAllString(s, "")
	s = leadingRule.ReplaceAllString(s, "")
	s = leadingQuote.ReplaceAllString(s, "")
	s = stripWrappingQuotes(s)
	s = filterLines(s)
	s = applyStopMarkers(s)
	s = blankRuns.ReplaceAllString(s, "\n\n")
	s = dedupeTrailingPunct(s)
	return strings.TrimSpace(s)
}

// dedupeTrailingPunct collapses a trailing run of one repeated sentence
// terminator ("好。。。" becomes "好。").
func dedupeTrailingPunct(s string) string {
	terminators := "。！？.!?"
	runes := []rune(s)
	for len(runes) >= 2 {
		last := runes[len(runes)-1]
		if !strings.ContainsRune(terminators, last) || runes[len(runes)-2] != last {
			break
		}
		runes = runes[:len(runes)-1]
	}
	return string(runes)
}

// stripWrappingQuotes removes one layer of quotes that wrap the entire
// output.
func stripWrappingQuotes(s string) string {
	s = strings.TrimSpace(s)
	pairs := [][2]string{
		{`"`, `"`}, {"'", "'"},
		{"「", "」"}, {"『", "』"},
		{"“", "”"}, {"‘", "’"},
	}
	for _, p := range pairs {
		if strings.HasPrefix(s, p[0]) && strings.HasSuffix(s, p[1]) && len(s) > len(p[0])+len(p[1]) {
			return strings.TrimSpace(s[len(p[0]) : len(s)-len(p[1])])
		}
	}
	return s
}

// applyStopMarkers handles label markers. A marker at the very start (or
// preceded only by whitespace within the first two bytes) is dropped and
// the remainder kept; a marker further in truncates the output.
func applyStopMarkers(s string) string {
	for _, m := range stopMarkers {
		idx := strings.Index(s, m)
		if idx < 0 {
			continue
		}
		if idx == 0 || (idx <= 2 && strings.TrimSpace(s[:idx]) == "") {
			s = s[idx+len(m):]
			continue
		}
		s = s[:idx]
	}
	return s
}

// filterLines drops decoration-only and echoed-source lines. A 翻譯-labelled
// line contributes its content only when nothing has been kept yet.
func filterLines(s string) string {
	var kept []string
	for _, line := range strings.Split(s, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			kept = append(kept, line)
			continue
		}
		if symbolOnly.MatchString(trimmed) {
			continue
		}
		if strings.HasPrefix(trimmed, "原文：") || strings.HasPrefix(trimmed, "原文:") {
			continue
		}
		if rest, ok := cutLabel(trimmed, "翻譯：", "翻譯:"); ok {
			if !hasContent(kept) && rest != "" {
				kept = append(kept, rest)
			}
			continue
		}
		kept = append(kept, line)
	}
	return strings.Join(kept, "\n")
}

func cutLabel(s string, labels ...string) (string, bool) {
	for _, l := range labels {
		if strings.HasPrefix(s, l) {
			return strings.TrimSpace(strings.TrimPrefix(s, l)), true
		}
	}
	return s, false
}

func hasContent(lines []string) bool {
	for _, l := range lines {
		if strings.TrimSpace(l) != "" {
			return true
		}
	}
	return false
}

// plausibilitySampleLimit bounds how much of the output the script check
// reads.
const plausibilitySampleLimit = 200

// scriptCounts tallies latin letters and CJK ideographs over a bounded
// sample.
func scriptCounts(s string) (latin, cjk int) {
	runes := []rune(s)
	if len(runes) > plausibilitySampleLimit {
		runes = runes[:plausibilitySampleLimit]
	}
	for _, r := range runes {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
			latin++
		case r >= 0x4e00 && r <= 0x9fff:
			cjk++
		}
	}
	return latin, cjk
}

// plausible reports whether cleaned output looks like text in the target
// language. Only English and Chinese targets have a script expectation;
// everything else is accepted.
func plausible(s, targetLang string) bool {
	latin, cjk := scriptCounts(s)
	switch targetLang {
	case "en":
		return latin >= 3 && latin >= cjk
	case "zh-TW", "zh-CN":
		return cjk >= 3 && cjk >= latin
	}
	return true
}

// bestLine picks the line most likely to be the actual translation: the
// first line matching the target script, else the first substantive line.
func bestLine(s, targetLang string) string {
	var candidates []string
	for _, line := range strings.Split(s, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || symbolOnly.MatchString(trimmed) {
			continue
		}
		candidates = append(candidates, trimmed)
	}
	if len(candidates) == 0 {
		return strings.TrimSpace(s)
	}
	for _, c := range candidates {
		latin, cjk := scriptCounts(c)
		switch targetLang {
		case "en":
			if latin >= 3 {
				return c
			}
		case "zh-TW", "zh-CN":
			if cjk >= 3 {
				return c
			}
		default:
			return c
		}
	}
	return candidates[0]
}

// firstNonEmptyLine enforces the single-line rule: when the source had no
// newline, the translation is collapsed to its first substantive line.
func firstNonEmptyLine(s string) string {
	for _, line := range strings.Split(s, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			return trimmed
		}
	}
	return strings.TrimSpace(s)
}
