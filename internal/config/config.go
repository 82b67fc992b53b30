package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds all runtime configuration, loaded from environment variables.
type Config struct {
	// Server
	Port int

	// Crate
	CatalogPath string

	// Intent resolution
	Threshold float64 // minimum fuzzy match confidence

	// Mix behavior
	MixBars        int     // default transition length
	FadeNowBars    int     // fade_now fade length
	PauseBars      int     // pause/resume ramp length
	HoldBars       int     // how long unresolved intents are held
	VocalDelayBars int     // vocal entrance offset past the next phrase
	PhraseBars     int     // phrase length for tracks without a grid sidecar
	MaxStretch     float64 // tempo-sync rate bound
	BPMWindow      float64 // planner tempo window as a fraction of master BPM

	// Local output
	Monitor bool // play the mix on the local audio device
}

// Load reads configuration from the environment with sane defaults.
// An optional .env file in the working directory is applied first.
func Load() Config {
	godotenv.Load()

	return Config{
		Port:        envInt("SEGUE_PORT", 8080),
		CatalogPath: envStr("SEGUE_CATALOG", "catalog.json"),
		Threshold:   envFloat("SEGUE_THRESHOLD", 0.7),

		MixBars:        envInt("SEGUE_MIX_BARS", 8),
		FadeNowBars:    envInt("SEGUE_FADE_NOW_BARS", 2),
		PauseBars:      envInt("SEGUE_PAUSE_BARS", 1),
		HoldBars:       envInt("SEGUE_HOLD_BARS", 8),
		VocalDelayBars: envInt("SEGUE_VOCAL_DELAY_BARS", 16),
		PhraseBars:     envInt("SEGUE_PHRASE_BARS", 16),
		MaxStretch:     envFloat("SEGUE_MAX_STRETCH", 0.06),
		BPMWindow:      envFloat("SEGUE_BPM_WINDOW", 0.08),

		Monitor: envBool("SEGUE_MONITOR", false),
	}
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}
