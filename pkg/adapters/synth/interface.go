package synth

import "context"

// Result of a synthesis call. TextOnly means no audio could be produced
// for the requested language and the caller should display text instead.
type Result struct {
	Audio      []byte
	SampleRate int
	TextOnly   bool
}

// Synthesizer defines the contract for any TTS vendor implementation.
// Each adapter declares the languages it can render; callers are expected
// to ask before sending text for an unsupported language.
type Synthesizer interface {
	// Name returns adapter name for logging/metrics.
	Name() string
	// Languages returns the set of language codes this adapter can speak.
	Languages() []string
	// Synthesize renders text in lang. An unsupported lang yields a
	// TextOnly result, not an error.
	Synthesize(ctx context.Context, text, lang string) (Result, error)
}

// Supports reports whether s declares lang in its capability set.
func Supports(s Synthesizer, lang string) bool {
	if s == nil {
		return false
	}
	for _, l := range s.Languages() {
		if l == lang {
			return true
		}
	}
	return false
}
