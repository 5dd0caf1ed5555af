package mock

import (
	"context"
	"errors"
	"testing"

	"github.com/linguabridge/linguabridge/pkg/errorsx"
)

func TestSynthesizerProducesAudioForConfiguredLangs(t *testing.T) {
	s := NewSynthesizer(SynthesizerConfig{Langs: []string{"en", "hi"}})
	res, err := s.Synthesize(context.Background(), "hello", "hi")
	if err != nil {
		t.Fatalf("synthesize: %v", err)
	}
	if res.TextOnly || len(res.Audio) == 0 {
		t.Fatalf("expected audio for configured language: %+v", res)
	}

	res, err = s.Synthesize(context.Background(), "hello", "fr")
	if err != nil || !res.TextOnly {
		t.Fatalf("unconfigured language must degrade to text-only: %+v %v", res, err)
	}
}

func TestSynthesizerFailureCarriesUnavailableReason(t *testing.T) {
	s := NewSynthesizer(SynthesizerConfig{Err: errors.New("engine crashed")})
	if _, err := s.Synthesize(context.Background(), "hello", "en"); !errorsx.HasReason(err, errorsx.ReasonSynthesisUnavailable) {
		t.Fatalf("expected synthesis unavailable reason, got %v", err)
	}
}
