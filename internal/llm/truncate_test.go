package llm

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestTruncateShortStringUnchanged(t *testing.T) {
	s := "hello world"
	assert.Equal(t, s, truncate(s))
}

func TestTruncateAtBoundary(t *testing.T) {
	s := strings.Repeat("a", 5000)
	out := truncate(s)
	assert.Len(t, out, maxContentChars)
}

func TestTruncateDoesNotSplitMultiByteRune(t *testing.T) {
	// A multi-byte rune straddles the 4000-byte cut point.
	s := strings.Repeat("a", maxContentChars-1) + "€€€€"
	out := truncate(s)
	assert.True(t, utf8.ValidString(out))
	assert.LessOrEqual(t, len(out), maxContentChars)
}

func TestTruncateEmpty(t *testing.T) {
	assert.Equal(t, "", truncate(""))
}
