package translation

import (
	"strings"
	"unicode"
)

// Key addresses one memoized translation. Text is stored normalized so
// trivial whitespace, casing, or punctuation differences still hit.
type Key struct {
	Text   string
	Source string
	Target string
}

// NewKey builds a cache key with deterministic normalization: case-fold,
// strip punctuation, collapse runs of whitespace, trim. Language codes
// are lowercased. The same inputs always produce the same key.
func NewKey(text, sourceLang, targetLang string) Key {
	return Key{
		Text:   Normalize(text),
		Source: strings.ToLower(strings.TrimSpace(sourceLang)),
		Target: strings.ToLower(strings.TrimSpace(targetLang)),
	}
}

func (k Key) String() string {
	var sb strings.Builder
	sb.Grow(len(k.Source) + len(k.Target) + len(k.Text) + 2)
	sb.WriteString(k.Source)
	sb.WriteByte(0x1f)
	sb.WriteString(k.Target)
	sb.WriteByte(0x1f)
	sb.WriteString(k.Text)
	return sb.String()
}

// Normalize applies the key's text normalization. Exported so callers can
// pre-compute what the cache will see.
func Normalize(text string) string {
	var sb strings.Builder
	sb.Grow(len(text))
	space := false
	for _, r := range text {
		switch {
		case unicode.IsSpace(r):
			space = true
		case unicode.IsPunct(r):
			// dropped
		default:
			if space && sb.Len() > 0 {
				sb.WriteByte(' ')
			}
			space = false
			sb.WriteRune(unicode.ToLower(r))
		}
	}
	return sb.String()
}
