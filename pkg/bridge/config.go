package bridge

import (
	"fmt"
	"os"

	"github.com/spf13/viper"
)

type Config struct {
	Environment string `mapstructure:"environment"`
	LogLevel    string `mapstructure:"log_level"`
	LogFormat   string `mapstructure:"log_format"`

	Languages LanguageConfig  `mapstructure:"languages"`
	Boundary  BoundaryConfig  `mapstructure:"boundary"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Relay     RelayConfig     `mapstructure:"relay"`
	Pipeline  PipelineConfig  `mapstructure:"pipeline"`
	Session   SessionConfig   `mapstructure:"session"`
	Vendors   VendorsConfig   `mapstructure:"vendors"`
	Transport TransportConfig `mapstructure:"transport"`
}

type LanguageConfig struct {
	Default string `mapstructure:"default"`
	// Allowed restricts joinable languages; empty allows any.
	Allowed []string `mapstructure:"allowed"`
	// MinDetectConfidence gates auto-detection downgrade; 0 disables.
	MinDetectConfidence float64 `mapstructure:"min_detect_confidence"`
}

type BoundaryConfig struct {
	SampleRate   int     `mapstructure:"sample_rate"`
	SilenceRMS   float64 `mapstructure:"silence_rms"`
	MinSilenceMS int     `mapstructure:"min_silence_ms"`
	MaxChunkMS   int     `mapstructure:"max_chunk_ms"`
	Buffer       int     `mapstructure:"buffer"`
}

type CacheConfig struct {
	// Capacity of the translation memo per process; 0 is unbounded.
	Capacity int `mapstructure:"capacity"`
}

type RelayConfig struct {
	ReplayWindow int `mapstructure:"replay_window"`
}

type PipelineConfig struct {
	MaxInFlight int `mapstructure:"max_inflight"`
}

type SessionConfig struct {
	LivenessTimeoutMS int `mapstructure:"liveness_timeout_ms"`
	SweepIntervalMS   int `mapstructure:"sweep_interval_ms"`
}

type VendorConfig struct {
	Provider string         `mapstructure:"provider"`
	Settings map[string]any `mapstructure:"settings"`
}

type VendorsConfig struct {
	STT       VendorConfig `mapstructure:"stt"`
	Translate VendorConfig `mapstructure:"translate"`
	TTS       VendorConfig `mapstructure:"tts"`
}

type TransportConfig struct {
	Provider string         `mapstructure:"provider"`
	Settings map[string]any `mapstructure:"settings"`
}

func LoadConfig(path string) (Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal: %w", err)
	}
	expandEnvStrings(&cfg)
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.Vendors.STT.Provider == "" {
		return fmt.Errorf("vendors.stt.provider is required")
	}
	if c.Vendors.Translate.Provider == "" {
		return fmt.Errorf("vendors.translate.provider is required")
	}
	if c.Vendors.TTS.Provider == "" {
		return fmt.Errorf("vendors.tts.provider is required")
	}
	return nil
}

func expandEnvStrings(cfg *Config) {
	cfg.Vendors.STT.Settings = expandSettings(cfg.Vendors.STT.Settings)
	cfg.Vendors.Translate.Settings = expandSettings(cfg.Vendors.Translate.Settings)
	cfg.Vendors.TTS.Settings = expandSettings(cfg.Vendors.TTS.Settings)
	cfg.Transport.Settings = expandSettings(cfg.Transport.Settings)
}

func expandSettings(settings map[string]any) map[string]any {
	if settings == nil {
		return nil
	}
	for k, v := range settings {
		settings[k] = expandAny(v)
	}
	return settings
}

func expandAny(v any) any {
	switch val := v.(type) {
	case string:
		return os.ExpandEnv(val)
	case []any:
		for i := range val {
			val[i] = expandAny(val[i])
		}
		return val
	case map[string]any:
		for k, v := range val {
			val[k] = expandAny(v)
		}
		return val
	default:
		return v
	}
}

// DefaultConfig is the embedded-use entry point; no file involved.
func DefaultConfig() Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	_ = v.Unmarshal(&cfg)
	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")
	v.SetDefault("languages.default", "en")
	v.SetDefault("languages.min_detect_confidence", 0.0)
	v.SetDefault("boundary.sample_rate", 16000)
	v.SetDefault("boundary.silence_rms", 0.01)
	v.SetDefault("boundary.min_silence_ms", 400)
	v.SetDefault("boundary.max_chunk_ms", 3000)
	v.SetDefault("boundary.buffer", 8)
	v.SetDefault("cache.capacity", 0)
	v.SetDefault("relay.replay_window", 16)
	v.SetDefault("pipeline.max_inflight", 3)
	v.SetDefault("session.liveness_timeout_ms", 60000)
	v.SetDefault("session.sweep_interval_ms", 5000)
	v.SetDefault("vendors.stt.provider", "mock")
	v.SetDefault("vendors.translate.provider", "mock")
	v.SetDefault("vendors.tts.provider", "mock")
	v.SetDefault("transport.provider", "mock")
}
