package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

const minimalYAML = `
environment: test
asset: ETH-USD
storage:
  path: /tmp/marketpulse-test.db
scoring:
  base_url: http://localhost:9000
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalYAML))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Signal.HalfLife != 15*time.Minute {
		t.Fatalf("expected 15m half-life default, got %v", cfg.Signal.HalfLife)
	}
	if cfg.Signal.ThresholdUp != 0.33 || cfg.Signal.ThresholdDown != -0.33 {
		t.Fatalf("unexpected thresholds %v %v", cfg.Signal.ThresholdUp, cfg.Signal.ThresholdDown)
	}
	w := cfg.Signal.Weights
	if w.Mentions != 0.35 || w.Sentiment != 0.30 || w.Momentum != 0.25 || w.RSI != 0.05 || w.Breakout != 0.05 {
		t.Fatalf("unexpected weight defaults %+v", w)
	}
	if cfg.Signal.Hysteresis == nil || !*cfg.Signal.Hysteresis {
		t.Fatalf("hysteresis should default on")
	}
	if cfg.Ingest.Rules.MinTextLen != 20 {
		t.Fatalf("expected rule defaults, got %d", cfg.Ingest.Rules.MinTextLen)
	}
}

func TestLoadMissingRequired(t *testing.T) {
	if _, err := Load(writeConfig(t, "environment: test\n")); err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestLoadRejectsInvertedThresholds(t *testing.T) {
	body := minimalYAML + `
signal:
  threshold_up: -0.5
  threshold_down: 0.5
`
	if _, err := Load(writeConfig(t, body)); err == nil {
		t.Fatalf("expected threshold ordering error")
	}
}

func TestLoadClassifierRequiresURL(t *testing.T) {
	body := minimalYAML + `
classifier:
  enabled: true
`
	if _, err := Load(writeConfig(t, body)); err == nil {
		t.Fatalf("expected classifier url error")
	}
}

func TestLoadWithEnvOverrides(t *testing.T) {
	t.Setenv("ASSET", "BTC-USD")
	t.Setenv("DB_PATH", "/tmp/other.db")
	t.Setenv("FEED_URLS", "http://a/rss,http://b/rss")

	cfg, err := LoadWithEnv(writeConfig(t, minimalYAML))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Asset != "BTC-USD" || cfg.Storage.Path != "/tmp/other.db" {
		t.Fatalf("env overrides not applied: %+v", cfg)
	}
	if len(cfg.Ingest.Feed.URLs) != 2 {
		t.Fatalf("expected 2 feed urls, got %v", cfg.Ingest.Feed.URLs)
	}
}
