package mock

import (
	"context"
	"sync/atomic"

	"github.com/linguabridge/linguabridge/pkg/adapters/synth"
	"github.com/linguabridge/linguabridge/pkg/errorsx"
)

type SynthesizerConfig struct {
	Langs      []string
	SampleRate int
	Err        error
}

// Synthesizer produces deterministic fake audio for its configured
// languages and degrades to text-only for everything else.
type Synthesizer struct {
	cfg   SynthesizerConfig
	calls atomic.Int64
}

func NewSynthesizer(cfg SynthesizerConfig) *Synthesizer {
	if len(cfg.Langs) == 0 {
		cfg.Langs = []string{"en"}
	}
	if cfg.SampleRate == 0 {
		cfg.SampleRate = 16000
	}
	return &Synthesizer{cfg: cfg}
}

func (s *Synthesizer) Name() string { return "mock_tts" }

func (s *Synthesizer) Languages() []string { return append([]string(nil), s.cfg.Langs...) }

func (s *Synthesizer) Synthesize(_ context.Context, text, lang string) (synth.Result, error) {
	s.calls.Add(1)
	if s.cfg.Err != nil {
		return synth.Result{}, errorsx.Wrap(s.cfg.Err, errorsx.ReasonSynthesisUnavailable)
	}
	if !synth.Supports(s, lang) {
		return synth.Result{TextOnly: true}, nil
	}
	return synth.Result{
		Audio:      []byte(lang + ":" + text),
		SampleRate: s.cfg.SampleRate,
	}, nil
}

func (s *Synthesizer) Calls() int64 { return s.calls.Load() }

var _ synth.Synthesizer = (*Synthesizer)(nil)
