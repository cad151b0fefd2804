package prompt

import (
	"strings"

	"github.com/lexigate/lexigate/internal/config"
	"github.com/lexigate/lexigate/internal/language"
	"github.com/lexigate/lexigate/pkg/provider/inference"
)

// instructionHeader is the translation instruction block. The model is
// addressed in Traditional Chinese, matching the deployment audience; the
// language names are interpolated in English so multilingual models resolve
// them reliably.
const instructionHeader = "你是專業翻譯員。你的任務是『翻譯』，不是改寫或續寫。\n" +
	"請將下列文字從 %SOURCE% 翻譯成 %TARGET%。\n" +
	"要求：\n" +
	"- 只輸出譯文，不要輸出任何其他文字。\n" +
	"- 不要解釋、不要求澄清、不提出問題。\n" +
	"- 不要產生章節、目錄或延伸內容。"

// outputOnlyConstraints are appended when prompts.force_output_only is set
// or the request asks for the force-output-only variant.
const outputOnlyConstraints = "- 只輸出一行譯文。\n" +
	"- 不要輸出原文。\n" +
	"- 不要列點、不要章節標題、不要補充說明、不要延伸內容。"

// detectSampleLimit bounds how much text is embedded in a detection prompt.
const detectSampleLimit = 200

// Request carries what the builder needs for one prompt.
type Request struct {
	// SourceLang and TargetLang are concrete language codes; auto must be
	// resolved before building.
	SourceLang string
	TargetLang string

	// Text is the raw user text. The builder sanitises it.
	Text string

	// ForceOutputOnly adds the single-line output constraints regardless of
	// the configured default. The plausibility retry sets it.
	ForceOutputOnly bool
}

// Builder renders prompts in the configured format.
type Builder struct {
	registry        *language.Registry
	format          config.PromptFormat
	forceOutputOnly bool
}

// NewBuilder creates a Builder using registry for language prompt names.
func NewBuilder(registry *language.Registry, cfg config.PromptsConfig) *Builder {
	return &Builder{
		registry:        registry,
		format:          cfg.FormatType,
		forceOutputOnly: cfg.ForceOutputOnly,
	}
}

// Build renders the translation prompt for req. Template mode returns a
// [inference.Plain] instruction block; chat mode returns a [inference.Chat]
// with a system instruction and the sanitized text as the user turn.
func (b *Builder) Build(req Request) inference.Prompt {
	sanitized := Sanitize(req.Text)
	header := b.header(req.SourceLang, req.TargetLang, req.ForceOutputOnly)

	if b.format == config.FormatChat {
		return inference.Chat{
			Messages: []inference.Message{
				{Role: "system", Content: header},
				{Role: "user", Content: sanitized},
			},
			SourceLang: req.SourceLang,
			TargetLang: req.TargetLang,
			Text:       sanitized,
		}
	}

	var sb strings.Builder
	sb.WriteString("[INST] ")
	sb.WriteString(header)
	sb.WriteString("\n")
	sb.WriteString("原文：\n")
	sb.WriteString(sanitized)
	sb.WriteString("\n[/INST]")
	return inference.Plain(sb.String())
}

func (b *Builder) header(source, target string, forceOutputOnly bool) string {
	h := strings.ReplaceAll(instructionHeader, "%SOURCE%", b.registry.PromptName(source))
	h = strings.ReplaceAll(h, "%TARGET%", b.registry.PromptName(target))
	if b.forceOutputOnly || forceOutputOnly {
		h += "\n" + outputOnlyConstraints
	}
	return h
}

// BuildDetect renders the language detection prompt over a bounded sample
// of text. The model is asked to answer with a single "code:confidence"
// pair; parsing is the caller's concern.
func (b *Builder) BuildDetect(text string) inference.Prompt {
	sample := []rune(Sanitize(text))
	if len(sample) > detectSampleLimit {
		sample = sample[:detectSampleLimit]
	}

	var codes []string
	for _, l := range b.registry.List() {
		codes = append(codes, l.Code)
	}

	var sb strings.Builder
	sb.WriteString("[INST] 你是語言偵測器。請判斷下列文字主要使用的語言。\n")
	sb.WriteString("只輸出「語言代碼:信心分數」，例如 en:0.95，不要輸出其他文字。\n")
	sb.WriteString("可用的語言代碼：")
	sb.WriteString(strings.Join(codes, ", "))
	sb.WriteString("\n文字：\n")
	sb.WriteString(string(sample))
	sb.WriteString("\n[/INST]")
	return inference.Plain(sb.String())
}
