package mock

import (
	"context"
	"sync/atomic"

	"github.com/linguabridge/linguabridge/pkg/adapters/transcribe"
)

type TranscriberConfig struct {
	Transcript   string
	DetectedLang string
	Confidence   float64
	Err          error
}

// Transcriber returns a scripted transcript for every chunk.
type Transcriber struct {
	cfg   TranscriberConfig
	calls atomic.Int64
}

func NewTranscriber(cfg TranscriberConfig) *Transcriber {
	if cfg.Transcript == "" && cfg.Err == nil {
		cfg.Transcript = "mock transcript"
	}
	return &Transcriber{cfg: cfg}
}

func (t *Transcriber) Name() string { return "mock_stt" }

func (t *Transcriber) Transcribe(_ context.Context, _ []byte, _ int, lang string) (transcribe.Result, error) {
	t.calls.Add(1)
	if t.cfg.Err != nil {
		return transcribe.Result{}, t.cfg.Err
	}
	res := transcribe.Result{Text: t.cfg.Transcript, Confidence: t.cfg.Confidence}
	if lang == transcribe.LangAuto {
		res.DetectedLang = t.cfg.DetectedLang
	}
	return res, nil
}

func (t *Transcriber) Calls() int64 { return t.calls.Load() }

var _ transcribe.Transcriber = (*Transcriber)(nil)
