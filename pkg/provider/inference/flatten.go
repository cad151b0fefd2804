package inference

import "strings"

// Flatten renders a prompt as plain text for backends that take a bare
// completion prompt instead of structured chat. Chat prompts are joined as
// an inlined system preamble followed by the user turns.
func Flatten(p Prompt) string {
	switch pr := p.(type) {
	case Plain:
		return string(pr)
	case Chat:
		var sb strings.Builder
		for _, m := range pr.Messages {
			if sb.Len() > 0 {
				sb.WriteString("\n\n")
			}
			sb.WriteString(m.Content)
		}
		return sb.String()
	}
	return ""
}
