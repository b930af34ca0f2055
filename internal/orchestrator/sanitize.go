package orchestrator

import (
	"strings"
	"unicode"
)

const maxErrorText = 300

// Sanitize renders err as a single printable line suitable for a
// structured log field.
func Sanitize(err error) string {
	if err == nil {
		return ""
	}

	var b strings.Builder
	for _, r := range err.Error() {
		switch {
		case r == '\n' || r == '\r' || r == '\t':
			b.WriteByte(' ')
		case unicode.IsControl(r) || r == unicode.ReplacementChar:
			continue
		default:
			b.WriteRune(r)
		}
	}

	out := strings.TrimSpace(b.String())
	if runes := []rune(out); len(runes) > maxErrorText {
		out = string(runes[:maxErrorText]) + "..."
	}
	return out
}
