package bridge

import (
	"fmt"
	"strings"
	"time"

	"github.com/linguabridge/linguabridge/pkg/adapters/synth"
	"github.com/linguabridge/linguabridge/pkg/adapters/transcribe"
	"github.com/linguabridge/linguabridge/pkg/adapters/translate"
	"github.com/linguabridge/linguabridge/pkg/configutil"
	"github.com/linguabridge/linguabridge/pkg/providers/deepgram"
	"github.com/linguabridge/linguabridge/pkg/providers/libretranslate"
	"github.com/linguabridge/linguabridge/pkg/providers/mock"
)

type STTFactory func(settings map[string]any) (transcribe.Transcriber, error)
type TranslateFactory func(settings map[string]any) (translate.Translator, error)
type TTSFactory func(settings map[string]any) (synth.Synthesizer, error)

type ProviderRegistry struct {
	stt       map[string]STTFactory
	translate map[string]TranslateFactory
	tts       map[string]TTSFactory
}

func NewProviderRegistry() *ProviderRegistry {
	return &ProviderRegistry{
		stt:       make(map[string]STTFactory),
		translate: make(map[string]TranslateFactory),
		tts:       make(map[string]TTSFactory),
	}
}

func (r *ProviderRegistry) RegisterSTT(name string, factory STTFactory) {
	r.stt[providerKey(name)] = factory
}

func (r *ProviderRegistry) RegisterTranslate(name string, factory TranslateFactory) {
	r.translate[providerKey(name)] = factory
}

func (r *ProviderRegistry) RegisterTTS(name string, factory TTSFactory) {
	r.tts[providerKey(name)] = factory
}

func (r *ProviderRegistry) BuildSTT(vendor VendorConfig) (transcribe.Transcriber, error) {
	fn := r.stt[providerKey(vendor.Provider)]
	if fn == nil {
		return nil, fmt.Errorf("stt provider not registered: %s", vendor.Provider)
	}
	return fn(vendor.Settings)
}

func (r *ProviderRegistry) BuildTranslate(vendor VendorConfig) (translate.Translator, error) {
	fn := r.translate[providerKey(vendor.Provider)]
	if fn == nil {
		return nil, fmt.Errorf("translate provider not registered: %s", vendor.Provider)
	}
	return fn(vendor.Settings)
}

func (r *ProviderRegistry) BuildTTS(vendor VendorConfig) (synth.Synthesizer, error) {
	fn := r.tts[providerKey(vendor.Provider)]
	if fn == nil {
		return nil, fmt.Errorf("tts provider not registered: %s", vendor.Provider)
	}
	return fn(vendor.Settings)
}

func providerKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// DefaultRegistry registers the built-in vendors.
func DefaultRegistry() *ProviderRegistry {
	r := NewProviderRegistry()

	r.RegisterSTT("mock", func(settings map[string]any) (transcribe.Transcriber, error) {
		var s struct {
			Transcript   string `mapstructure:"transcript"`
			DetectedLang string `mapstructure:"detected_lang"`
		}
		if err := configutil.DecodeSettings(settings, &s); err != nil {
			return nil, err
		}
		return mock.NewTranscriber(mock.TranscriberConfig{
			Transcript:   s.Transcript,
			DetectedLang: s.DetectedLang,
		}), nil
	})
	r.RegisterSTT("deepgram", func(settings map[string]any) (transcribe.Transcriber, error) {
		if err := configutil.ValidateSettings(settings, configutil.Schema{
			Required: []string{"api_key"},
			Optional: []string{"model", "sample_rate"},
		}); err != nil {
			return nil, fmt.Errorf("deepgram settings: %w", err)
		}
		var s struct {
			APIKey     string `mapstructure:"api_key"`
			Model      string `mapstructure:"model"`
			SampleRate int    `mapstructure:"sample_rate"`
		}
		if err := configutil.DecodeSettings(settings, &s); err != nil {
			return nil, err
		}
		if err := configutil.RequireString(s.APIKey, "vendors.stt.settings.api_key"); err != nil {
			return nil, err
		}
		return deepgram.New(deepgram.Config{
			APIKey:     s.APIKey,
			Model:      s.Model,
			SampleRate: s.SampleRate,
		}), nil
	})

	r.RegisterTranslate("mock", func(settings map[string]any) (translate.Translator, error) {
		var s struct {
			LatencyMS int `mapstructure:"latency_ms"`
		}
		if err := configutil.DecodeSettings(settings, &s); err != nil {
			return nil, err
		}
		return mock.NewTranslator(mock.TranslatorConfig{
			Latency: time.Duration(s.LatencyMS) * time.Millisecond,
		}), nil
	})
	r.RegisterTranslate("libretranslate", func(settings map[string]any) (translate.Translator, error) {
		if err := configutil.ValidateSettings(settings, configutil.Schema{
			Optional: []string{"base_url", "api_key", "timeout_ms"},
		}); err != nil {
			return nil, fmt.Errorf("libretranslate settings: %w", err)
		}
		var s struct {
			BaseURL   string `mapstructure:"base_url"`
			APIKey    string `mapstructure:"api_key"`
			TimeoutMS int    `mapstructure:"timeout_ms"`
		}
		if err := configutil.DecodeSettings(settings, &s); err != nil {
			return nil, err
		}
		return libretranslate.New(libretranslate.Config{
			BaseURL: s.BaseURL,
			APIKey:  s.APIKey,
			Timeout: time.Duration(s.TimeoutMS) * time.Millisecond,
		}), nil
	})

	r.RegisterTTS("mock", func(settings map[string]any) (synth.Synthesizer, error) {
		var s struct {
			Langs      []string `mapstructure:"langs"`
			SampleRate int      `mapstructure:"sample_rate"`
		}
		if err := configutil.DecodeSettings(settings, &s); err != nil {
			return nil, err
		}
		return mock.NewSynthesizer(mock.SynthesizerConfig{
			Langs:      s.Langs,
			SampleRate: s.SampleRate,
		}), nil
	})

	return r
}
