package translate

import "context"

// Translator defines the contract for any machine-translation vendor.
// It is invoked only on cache misses; callers own memoization.
type Translator interface {
	// Name returns adapter name for logging/metrics.
	Name() string
	// Translate renders text from sourceLang into targetLang.
	Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error)
}

// Detector identifies the language of a piece of text. Adapters that
// cannot detect return ("", 0, nil) and the caller falls back to a
// configured default.
type Detector interface {
	DetectLanguage(ctx context.Context, text string) (lang string, confidence float64, err error)
}

// Config contains vendor-agnostic translation configuration.
type Config struct {
	SourceLang string
	TargetLang string
}
