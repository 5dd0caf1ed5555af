package synth

import (
	"context"
	"errors"
	"testing"
)

type fixedSynth struct {
	name  string
	langs []string
	err   error
}

func (f *fixedSynth) Name() string        { return f.name }
func (f *fixedSynth) Languages() []string { return f.langs }

func (f *fixedSynth) Synthesize(_ context.Context, text, lang string) (Result, error) {
	if f.err != nil {
		return Result{}, f.err
	}
	return Result{Audio: []byte(f.name + ":" + text), SampleRate: 16000}, nil
}

func TestFallbackPrefersFirstCapableAdapter(t *testing.T) {
	fb := NewFallback(
		&fixedSynth{name: "primary", langs: []string{"en"}},
		&fixedSynth{name: "secondary", langs: []string{"en", "hi"}},
	)

	res, err := fb.Synthesize(context.Background(), "hello", "en")
	if err != nil {
		t.Fatalf("synthesize: %v", err)
	}
	if string(res.Audio) != "primary:hello" {
		t.Fatalf("expected primary adapter, got %q", res.Audio)
	}

	res, err = fb.Synthesize(context.Background(), "namaste", "hi")
	if err != nil {
		t.Fatalf("synthesize hi: %v", err)
	}
	if string(res.Audio) != "secondary:namaste" {
		t.Fatalf("expected secondary adapter, got %q", res.Audio)
	}
}

func TestFallbackDegradesToTextOnly(t *testing.T) {
	fb := NewFallback(&fixedSynth{name: "only-en", langs: []string{"en"}})

	res, err := fb.Synthesize(context.Background(), "hola", "es")
	if err != nil {
		t.Fatalf("expected graceful degrade, got %v", err)
	}
	if !res.TextOnly || res.Audio != nil {
		t.Fatalf("expected text-only result, got %+v", res)
	}
}

func TestFallbackSkipsFailingAdapter(t *testing.T) {
	fb := NewFallback(
		&fixedSynth{name: "broken", langs: []string{"en"}, err: errors.New("vendor down")},
		&fixedSynth{name: "backup", langs: []string{"en"}},
	)

	res, err := fb.Synthesize(context.Background(), "hello", "en")
	if err != nil {
		t.Fatalf("synthesize: %v", err)
	}
	if string(res.Audio) != "backup:hello" {
		t.Fatalf("expected backup adapter, got %q", res.Audio)
	}
}

func TestFallbackLanguagesUnion(t *testing.T) {
	fb := NewFallback(
		&fixedSynth{name: "a", langs: []string{"en", "hi"}},
		&fixedSynth{name: "b", langs: []string{"hi", "es"}},
	)
	langs := fb.Languages()
	want := map[string]bool{"en": true, "hi": true, "es": true}
	if len(langs) != len(want) {
		t.Fatalf("expected %d languages, got %v", len(want), langs)
	}
	for _, l := range langs {
		if !want[l] {
			t.Fatalf("unexpected language %q", l)
		}
	}
}
