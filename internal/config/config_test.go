package config

import (
	"os"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	// Clear any env vars that might interfere
	envVars := []string{
		"SEGUE_PORT", "SEGUE_CATALOG", "SEGUE_THRESHOLD",
		"SEGUE_MIX_BARS", "SEGUE_FADE_NOW_BARS", "SEGUE_PAUSE_BARS",
		"SEGUE_HOLD_BARS", "SEGUE_VOCAL_DELAY_BARS", "SEGUE_PHRASE_BARS",
		"SEGUE_MAX_STRETCH", "SEGUE_BPM_WINDOW", "SEGUE_MONITOR",
	}
	for _, k := range envVars {
		os.Unsetenv(k)
	}

	cfg := Load()

	if cfg.Port != 8080 {
		t.Errorf("Port = %d, want 8080", cfg.Port)
	}
	if cfg.CatalogPath != "catalog.json" {
		t.Errorf("CatalogPath = %q, want 'catalog.json'", cfg.CatalogPath)
	}
	if cfg.Threshold != 0.7 {
		t.Errorf("Threshold = %f, want 0.7", cfg.Threshold)
	}
	if cfg.MixBars != 8 {
		t.Errorf("MixBars = %d, want 8", cfg.MixBars)
	}
	if cfg.FadeNowBars != 2 {
		t.Errorf("FadeNowBars = %d, want 2", cfg.FadeNowBars)
	}
	if cfg.PauseBars != 1 {
		t.Errorf("PauseBars = %d, want 1", cfg.PauseBars)
	}
	if cfg.HoldBars != 8 {
		t.Errorf("HoldBars = %d, want 8", cfg.HoldBars)
	}
	if cfg.VocalDelayBars != 16 {
		t.Errorf("VocalDelayBars = %d, want 16", cfg.VocalDelayBars)
	}
	if cfg.PhraseBars != 16 {
		t.Errorf("PhraseBars = %d, want 16", cfg.PhraseBars)
	}
	if cfg.MaxStretch != 0.06 {
		t.Errorf("MaxStretch = %f, want 0.06", cfg.MaxStretch)
	}
	if cfg.BPMWindow != 0.08 {
		t.Errorf("BPMWindow = %f, want 0.08", cfg.BPMWindow)
	}
	if cfg.Monitor {
		t.Error("Monitor = true, want false by default")
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("SEGUE_PORT", "3000")
	t.Setenv("SEGUE_CATALOG", "/srv/crate/catalog.json")
	t.Setenv("SEGUE_THRESHOLD", "0.85")
	t.Setenv("SEGUE_MIX_BARS", "16")
	t.Setenv("SEGUE_FADE_NOW_BARS", "4")
	t.Setenv("SEGUE_PAUSE_BARS", "2")
	t.Setenv("SEGUE_HOLD_BARS", "4")
	t.Setenv("SEGUE_VOCAL_DELAY_BARS", "32")
	t.Setenv("SEGUE_PHRASE_BARS", "8")
	t.Setenv("SEGUE_MAX_STRETCH", "0.04")
	t.Setenv("SEGUE_BPM_WINDOW", "0.12")
	t.Setenv("SEGUE_MONITOR", "true")

	cfg := Load()

	if cfg.Port != 3000 {
		t.Errorf("Port = %d, want 3000", cfg.Port)
	}
	if cfg.CatalogPath != "/srv/crate/catalog.json" {
		t.Errorf("CatalogPath = %q, want env override", cfg.CatalogPath)
	}
	if cfg.Threshold != 0.85 {
		t.Errorf("Threshold = %f, want 0.85", cfg.Threshold)
	}
	if cfg.MixBars != 16 {
		t.Errorf("MixBars = %d, want 16", cfg.MixBars)
	}
	if cfg.FadeNowBars != 4 {
		t.Errorf("FadeNowBars = %d, want 4", cfg.FadeNowBars)
	}
	if cfg.PauseBars != 2 {
		t.Errorf("PauseBars = %d, want 2", cfg.PauseBars)
	}
	if cfg.HoldBars != 4 {
		t.Errorf("HoldBars = %d, want 4", cfg.HoldBars)
	}
	if cfg.VocalDelayBars != 32 {
		t.Errorf("VocalDelayBars = %d, want 32", cfg.VocalDelayBars)
	}
	if cfg.PhraseBars != 8 {
		t.Errorf("PhraseBars = %d, want 8", cfg.PhraseBars)
	}
	if cfg.MaxStretch != 0.04 {
		t.Errorf("MaxStretch = %f, want 0.04", cfg.MaxStretch)
	}
	if cfg.BPMWindow != 0.12 {
		t.Errorf("BPMWindow = %f, want 0.12", cfg.BPMWindow)
	}
	if !cfg.Monitor {
		t.Error("Monitor = false, want true from env")
	}
}

func TestEnvIntInvalidFallsBack(t *testing.T) {
	t.Setenv("SEGUE_PORT", "not-a-number")
	cfg := Load()
	if cfg.Port != 8080 {
		t.Errorf("Invalid int env should fallback to default: got %d, want 8080", cfg.Port)
	}
}

func TestEnvFloatInvalidFallsBack(t *testing.T) {
	t.Setenv("SEGUE_THRESHOLD", "very confident")
	cfg := Load()
	if cfg.Threshold != 0.7 {
		t.Errorf("Invalid float env should fallback to default: got %f, want 0.7", cfg.Threshold)
	}
}

func TestEnvBoolInvalidFallsBack(t *testing.T) {
	t.Setenv("SEGUE_MONITOR", "yes please")
	cfg := Load()
	if cfg.Monitor {
		t.Error("Invalid bool env should fallback to default false")
	}
}

func TestEnvStrEmpty(t *testing.T) {
	// Empty string should use fallback
	os.Unsetenv("SEGUE_CATALOG")
	cfg := Load()
	if cfg.CatalogPath != "catalog.json" {
		t.Errorf("Unset env should use fallback: got %q", cfg.CatalogPath)
	}
}
