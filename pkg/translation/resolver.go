package translation

import (
	"context"
	"log/slog"
	"strings"

	"github.com/linguabridge/linguabridge/pkg/adapters/translate"
	"github.com/linguabridge/linguabridge/pkg/errorsx"
	"github.com/linguabridge/linguabridge/pkg/logging"
)

// ResolverConfig tunes language resolution.
type ResolverConfig struct {
	// DefaultLang is used when detection fails or scores below MinConfidence.
	DefaultLang string
	// MinConfidence gates auto-detection; 0 disables the gate.
	MinConfidence float64
}

// Resolver ties the memo cache to the translation port and owns language
// resolution: the auto sentinel, detection downgrade, and the
// same-language short circuit.
type Resolver struct {
	cache    *Cache
	port     translate.Translator
	detector translate.Detector
	cfg      ResolverConfig
	logger   *slog.Logger
}

func NewResolver(cache *Cache, port translate.Translator, cfg ResolverConfig) *Resolver {
	if cfg.DefaultLang == "" {
		cfg.DefaultLang = "en"
	}
	return &Resolver{
		cache:  cache,
		port:   port,
		cfg:    cfg,
		logger: logging.NewComponentLogger(slog.Default(), "resolver"),
	}
}

// SetDetector installs a standalone language detector for the auto sentinel.
// Without one, auto downgrades straight to the configured default.
func (r *Resolver) SetDetector(d translate.Detector) { r.detector = d }

// Translate resolves the source language, then returns the cached or freshly
// computed translation. The resolved source language is returned so callers
// can record what was actually translated.
func (r *Resolver) Translate(ctx context.Context, text, sourceLang, targetLang string) (translated, resolvedLang string, err error) {
	resolvedLang = r.resolveLang(ctx, text, sourceLang)
	targetLang = strings.ToLower(strings.TrimSpace(targetLang))

	// Peer already speaks this language; nothing to translate.
	if resolvedLang == targetLang {
		return text, resolvedLang, nil
	}

	key := NewKey(text, resolvedLang, targetLang)
	out, err := r.cache.Resolve(ctx, key, func(ctx context.Context) (string, error) {
		got, err := r.port.Translate(ctx, text, resolvedLang, targetLang)
		if err != nil {
			return "", errorsx.Wrap(err, errorsx.ReasonTranslationFailed)
		}
		return got, nil
	})
	if err != nil {
		return "", resolvedLang, err
	}
	return out, resolvedLang, nil
}

// Stats exposes the underlying cache counters.
func (r *Resolver) Stats() Stats { return r.cache.Stats() }

func (r *Resolver) resolveLang(ctx context.Context, text, sourceLang string) string {
	lang := strings.ToLower(strings.TrimSpace(sourceLang))
	if lang != "" && lang != "auto" {
		return lang
	}
	if r.detector == nil {
		return r.cfg.DefaultLang
	}
	detected, confidence, err := r.detector.DetectLanguage(ctx, text)
	if err != nil || detected == "" || confidence < r.cfg.MinConfidence {
		r.logger.Debug("language detection downgraded",
			slog.String("default", r.cfg.DefaultLang),
			slog.Float64("confidence", confidence))
		return r.cfg.DefaultLang
	}
	return strings.ToLower(detected)
}
