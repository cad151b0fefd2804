// Package language holds the registry of translatable languages and the
// script-based detection fallback.
package language

import (
	"sort"
	"strings"

	"github.com/lexigate/lexigate/internal/errcode"
)

// Auto is the pseudo source code meaning "detect the language for me". It is
// never a valid target.
const Auto = "auto"

// Language describes one entry of the registry.
type Language struct {
	Code      string
	Name      string
	NameEN    string
	Enabled   bool
	SortOrder int
}

// promptNames maps language codes to the English names used inside model
// prompts. Codes without an entry fall back to the raw code.
var promptNames = map[string]string{
	"zh-TW": "Traditional Chinese (zh-TW)",
	"zh-CN": "Simplified Chinese (zh-CN)",
	"en":    "English (en)",
	"ja":    "Japanese (ja)",
	"ko":    "Korean (ko)",
	"fr":    "French (fr)",
	"de":    "German (de)",
	"es":    "Spanish (es)",
}

// Registry is the immutable set of enabled languages. Build one with [New]
// at startup; all methods are safe for concurrent use.
type Registry struct {
	enabled []Language
	byCode  map[string]Language
}

// New builds a Registry from the configured languages. Disabled entries are
// dropped; the rest are ordered by sort order, then code.
func New(langs []Language) *Registry {
	r := &Registry{byCode: make(map[string]Language)}
	for _, l := range langs {
		if !l.Enabled {
			continue
		}
		r.enabled = append(r.enabled, l)
		r.byCode[l.Code] = l
	}
	sort.SliceStable(r.enabled, func(i, j int) bool {
		if r.enabled[i].SortOrder != r.enabled[j].SortOrder {
			return r.enabled[i].SortOrder < r.enabled[j].SortOrder
		}
		return r.enabled[i].Code < r.enabled[j].Code
	})
	return r
}

// List returns the enabled languages in display order. The returned slice
// must not be modified.
func (r *Registry) List() []Language { return r.enabled }

// IsEnabled reports whether code is an enabled language.
func (r *Registry) IsEnabled(code string) bool {
	_, ok := r.byCode[code]
	return ok
}

// PromptName returns the English name used for code inside prompts.
func (r *Registry) PromptName(code string) string {
	if n, ok := promptNames[code]; ok {
		return n
	}
	if l, ok := r.byCode[code]; ok && l.NameEN != "" {
		return l.NameEN + " (" + code + ")"
	}
	return code
}

// ValidatePair checks a source/target language pair. Source may be [Auto];
// target must be a concrete enabled language distinct from source.
func (r *Registry) ValidatePair(source, target string) error {
	if target == Auto || !r.IsEnabled(target) {
		return errcode.New(errcode.ValidationInvalidLanguage)
	}
	if source != Auto && !r.IsEnabled(source) {
		return errcode.New(errcode.ValidationInvalidLanguage)
	}
	if source == target {
		return errcode.New(errcode.ValidationSameLanguage)
	}
	return nil
}

// Detection is a language guess with a confidence in [0, 1].
type Detection struct {
	Code       string
	Confidence float64
}

// detectSampleLimit bounds how much text the script counters look at.
const detectSampleLimit = 500

// DetectByScript guesses the language of text from Unicode script ratios.
// It is the fallback when model-based detection is unavailable and always
// returns a usable guess.
func DetectByScript(text string) Detection {
	runes := []rune(strings.TrimSpace(text))
	if len(runes) > detectSampleLimit {
		runes = runes[:detectSampleLimit]
	}
	var total, cjk, kana, hangul, latin int
	for _, r := range runes {
		switch {
		case r >= 0x4e00 && r <= 0x9fff:
			cjk++
		case r >= 0x3040 && r <= 0x309f, r >= 0x30a0 && r <= 0x30ff:
			kana++
		case r >= 0xac00 && r <= 0xd7af:
			hangul++
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
			latin++
		}
		total++
	}
	if total == 0 {
		return Detection{Code: "zh-TW", Confidence: 0.5}
	}
	switch {
	case float64(kana)/float64(total) > 0.1:
		return Detection{Code: "ja", Confidence: 0.7}
	case float64(hangul)/float64(total) > 0.1:
		return Detection{Code: "ko", Confidence: 0.7}
	case float64(cjk)/float64(total) > 0.3:
		return Detection{Code: "zh-TW", Confidence: 0.6}
	case float64(latin)/float64(total) > 0.5:
		return Detection{Code: "en", Confidence: 0.6}
	}
	return Detection{Code: "zh-TW", Confidence: 0.5}
}
