package infrastructure

import (
	"regexp"
	"strings"
)

var (
	displayMathRe = regexp.MustCompile(`(?s)\$\$\s*(.*?)\s*\$\$`)
	inlineMathRe  = regexp.MustCompile(`\$([^$]+?)\$`)
	mathBlockRe   = regexp.MustCompile(`(?s)\\\[.*?\\\]|\\\(.*?\\\)`)
)

const markdownV2Special = "\\_*[]()~`>#+-=|{}.!"

// ConvertLatex rewrites $$..$$ and $..$ math into Telegram's \[ .. \] and
// \( .. \) delimiters.
func ConvertLatex(text string) string {
	if text == "" {
		return text
	}
	text = displayMathRe.ReplaceAllStringFunc(text, func(m string) string {
		inner := displayMathRe.FindStringSubmatch(m)[1]
		return `\[ ` + strings.TrimSpace(inner) + ` \]`
	})
	return inlineMathRe.ReplaceAllStringFunc(text, func(m string) string {
		inner := inlineMathRe.FindStringSubmatch(m)[1]
		return `\( ` + strings.TrimSpace(inner) + ` \)`
	})
}

// EscapeMarkdownV2 escapes MarkdownV2 special characters everywhere except
// inside math blocks.
func EscapeMarkdownV2(text string) string {
	var sb strings.Builder
	last := 0
	for _, loc := range mathBlockRe.FindAllStringIndex(text, -1) {
		escapeInto(&sb, text[last:loc[0]])
		sb.WriteString(text[loc[0]:loc[1]])
		last = loc[1]
	}
	escapeInto(&sb, text[last:])
	return sb.String()
}

func escapeInto(sb *strings.Builder, s string) {
	for _, r := range s {
		if strings.ContainsRune(markdownV2Special, r) {
			sb.WriteByte('\\')
		}
		sb.WriteRune(r)
	}
}

// FormatMarkdownV2 prepares model output for a MarkdownV2 send.
func FormatMarkdownV2(text string) string {
	return EscapeMarkdownV2(ConvertLatex(text))
}
