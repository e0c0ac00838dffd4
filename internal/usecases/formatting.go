package usecases

import "strings"

// MaxMessageLength leaves headroom under Telegram's 4096 character limit.
const MaxMessageLength = 4000

// SplitMessage breaks text into parts of at most limit runes, preferring line
// boundaries. Lines longer than limit are cut.
func SplitMessage(text string, limit int) []string {
	if limit <= 0 {
		limit = MaxMessageLength
	}
	if runeLen(text) <= limit {
		return []string{text}
	}

	var parts []string
	var current strings.Builder
	currentLen := 0
	started := false

	flush := func() {
		if started {
			parts = append(parts, current.String())
			current.Reset()
			currentLen = 0
			started = false
		}
	}

	for _, line := range strings.Split(text, "\n") {
		for runeLen(line) > limit {
			flush()
			r := []rune(line)
			parts = append(parts, string(r[:limit]))
			line = string(r[limit:])
		}

		n := runeLen(line)
		if started && currentLen+1+n > limit {
			flush()
		}
		if started {
			current.WriteByte('\n')
			currentLen++
		}
		current.WriteString(line)
		currentLen += n
		started = true
	}
	flush()
	return parts
}

func runeLen(s string) int {
	return len([]rune(s))
}
