package mock

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/linguabridge/linguabridge/pkg/adapters/translate"
)

type TranslatorConfig struct {
	// Translations maps source text to its translation. Unmapped text is
	// echoed back tagged with the target language.
	Translations map[string]string
	Latency      time.Duration
	Err          error
}

type Translator struct {
	cfg   TranslatorConfig
	calls atomic.Int64
}

func NewTranslator(cfg TranslatorConfig) *Translator {
	return &Translator{cfg: cfg}
}

func (t *Translator) Name() string { return "mock_translate" }

func (t *Translator) Translate(ctx context.Context, text, _, target string) (string, error) {
	t.calls.Add(1)
	if t.cfg.Latency > 0 {
		select {
		case <-time.After(t.cfg.Latency):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if t.cfg.Err != nil {
		return "", t.cfg.Err
	}
	if out, ok := t.cfg.Translations[text]; ok {
		return out, nil
	}
	return "[" + target + "] " + text, nil
}

func (t *Translator) Calls() int64 { return t.calls.Load() }

type DetectorConfig struct {
	Lang       string
	Confidence float64
	Err        error
}

// Detector reports a fixed detection result.
type Detector struct {
	cfg DetectorConfig
}

func NewDetector(cfg DetectorConfig) *Detector {
	if cfg.Lang == "" && cfg.Err == nil {
		cfg.Lang = "en"
	}
	return &Detector{cfg: cfg}
}

func (d *Detector) DetectLanguage(context.Context, string) (string, float64, error) {
	if d.cfg.Err != nil {
		return "", 0, d.cfg.Err
	}
	return d.cfg.Lang, d.cfg.Confidence, nil
}

var (
	_ translate.Translator = (*Translator)(nil)
	_ translate.Detector   = (*Detector)(nil)
)
