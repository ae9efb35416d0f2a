package llm

import "unicode/utf8"

// maxContentChars is the truncation bound spec §4.4 imposes before any
// payload is sent to a provider.
const maxContentChars = 4000

// truncate cuts s to at most maxContentChars bytes at the largest valid
// UTF-8 rune boundary ≤ maxContentChars, so multi-byte runes are never
// split mid-sequence.
func truncate(s string) string {
	if len(s) <= maxContentChars {
		return s
	}
	cut := maxContentChars
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
