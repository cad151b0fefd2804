package translate

import (
	"strconv"
	"strings"

	"github.com/lexigate/lexigate/internal/language"
)

// defaultDetectConfidence is assumed when the model answers with a code but
// an unparseable confidence.
const defaultDetectConfidence = 0.8

// detectGenLimit keeps detection calls cheap; the answer is a short token.
const detectGenLimit = 16

// parseDetection extracts a "code:confidence" answer from raw model output.
// The code must be an enabled language; otherwise ok is false and the
// caller falls back to script-based detection.
func parseDetection(raw string, reg *language.Registry) (language.Detection, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return language.Detection{}, false
	}
	// Models occasionally wrap the answer in quotes or add a full stop.
	s = strings.Trim(s, "\"'「」。 \t\r\n")
	// Only the first line matters.
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = strings.TrimSpace(s[:i])
	}

	code := s
	conf := defaultDetectConfidence
	if i := strings.IndexAny(s, ":："); i >= 0 {
		code = strings.TrimSpace(s[:i])
		rest := strings.TrimSpace(strings.TrimLeft(s[i:], ":："))
		if v, err := strconv.ParseFloat(rest, 64); err == nil {
			conf = v
		}
	}
	if !reg.IsEnabled(code) {
		return language.Detection{}, false
	}
	if conf < 0 {
		conf = 0
	}
	if conf > 1 {
		conf = 1
	}
	return language.Detection{Code: code, Confidence: conf}, true
}
