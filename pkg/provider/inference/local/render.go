package local

import (
	"encoding/json"
	"strings"

	"github.com/lexigate/lexigate/pkg/provider/inference"
)

// renderPrompt flattens a prompt to the raw string the runtime completes.
// Plain prompts pass through; chat prompts are rendered with the chat
// template dialect the model family expects.
func renderPrompt(modelID string, p inference.Prompt) string {
	switch pr := p.(type) {
	case inference.Plain:
		return string(pr)
	case inference.Chat:
		if isTranslateGemma(modelID) {
			return renderTranslateGemma(pr)
		}
		return renderInstruct(pr)
	}
	return ""
}

func isTranslateGemma(modelID string) bool {
	return strings.Contains(strings.ToLower(modelID), "translategemma")
}

// structuredContent is the content payload the translategemma family expects
// in place of a plain user string.
type structuredContent struct {
	Type           string `json:"type"`
	SourceLangCode string `json:"source_lang_code"`
	TargetLangCode string `json:"target_lang_code"`
	Text           string `json:"text"`
}

// renderTranslateGemma rewrites the user turn to the structured translation
// payload and renders gemma turn markers. The family has no system role;
// the instruction lives in the payload itself.
func renderTranslateGemma(c inference.Chat) string {
	payload, err := json.Marshal([]structuredContent{{
		Type:           "text",
		SourceLangCode: gemmaLangCode(c.SourceLang),
		TargetLangCode: gemmaLangCode(c.TargetLang),
		Text:           c.Text,
	}})
	if err != nil {
		// Marshalling a flat struct of strings cannot fail; fall back to the
		// raw text if it somehow does.
		payload = []byte(c.Text)
	}
	var sb strings.Builder
	sb.WriteString("<start_of_turn>user\n")
	sb.Write(payload)
	sb.WriteString("<end_of_turn>\n<start_of_turn>model\n")
	return sb.String()
}

// gemmaLangCode maps registry codes onto the vocabulary the translategemma
// family accepts. Simplified Chinese variants collapse to zh-Hans;
// traditional Chinese stays zh-TW.
func gemmaLangCode(code string) string {
	switch code {
	case "zh-CN", "zh-Hans", "zh-SG":
		return "zh-Hans"
	case "zh-Hant", "zh-HK":
		return "zh-TW"
	}
	return code
}

// renderInstruct renders the generic [INST] instruction template used as the
// fallback for chat-format models.
func renderInstruct(c inference.Chat) string {
	var system, user strings.Builder
	for _, m := range c.Messages {
		switch m.Role {
		case "system":
			if system.Len() > 0 {
				system.WriteString("\n")
			}
			system.WriteString(m.Content)
		default:
			if user.Len() > 0 {
				user.WriteString("\n")
			}
			user.WriteString(m.Content)
		}
	}

	var sb strings.Builder
	sb.WriteString("<s>[INST] ")
	if system.Len() > 0 {
		sb.WriteString("<<SYS>>\n")
		sb.WriteString(system.String())
		sb.WriteString("\n<</SYS>>\n\n")
	}
	sb.WriteString(user.String())
	sb.WriteString(" [/INST]")
	return sb.String()
}
