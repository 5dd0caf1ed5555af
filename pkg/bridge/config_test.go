package bridge

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	path := writeConfig(t, "environment: test\n")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Languages.Default != "en" {
		t.Fatalf("expected default language en, got %q", cfg.Languages.Default)
	}
	if cfg.Boundary.MaxChunkMS != 3000 {
		t.Fatalf("expected 3000ms max chunk, got %d", cfg.Boundary.MaxChunkMS)
	}
	if cfg.Relay.ReplayWindow != 16 {
		t.Fatalf("expected replay window 16, got %d", cfg.Relay.ReplayWindow)
	}
	if cfg.Vendors.STT.Provider != "mock" {
		t.Fatalf("expected mock stt, got %q", cfg.Vendors.STT.Provider)
	}
}

func TestLoadConfigExpandsEnv(t *testing.T) {
	t.Setenv("TEST_DG_KEY", "dg-secret")
	path := writeConfig(t, `
vendors:
  stt:
    provider: deepgram
    settings:
      api_key: ${TEST_DG_KEY}
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got := cfg.Vendors.STT.Settings["api_key"]; got != "dg-secret" {
		t.Fatalf("expected env-expanded api key, got %v", got)
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	path := writeConfig(t, `
languages:
  default: hi
  allowed: [en, hi]
cache:
  capacity: 128
pipeline:
  max_inflight: 5
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Languages.Default != "hi" || len(cfg.Languages.Allowed) != 2 {
		t.Fatalf("unexpected languages %+v", cfg.Languages)
	}
	if cfg.Cache.Capacity != 128 || cfg.Pipeline.MaxInFlight != 5 {
		t.Fatalf("unexpected overrides %+v %+v", cfg.Cache, cfg.Pipeline)
	}
}
