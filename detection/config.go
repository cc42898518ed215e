package detection

import (
	"os"
	"strconv"
	"time"
)

// Config carries the tunables the pipeline reads from the environment.
// Network timeouts bound each sub-lookup; ExtractDeadline bounds the whole
// per-URL extraction.
type Config struct {
	BundlePath      string
	ExtractDeadline time.Duration
	DNSTimeout      time.Duration
	TLSTimeout      time.Duration
	WhoisTimeout    time.Duration
	FetchTimeout    time.Duration
	BatchLimit      int
	SkipChromedp    bool
	ChromePath      string

	// ThresholdOverride replaces the artifact threshold when set in the
	// environment; zero means use the artifact's own value.
	ThresholdOverride float64
}

// DefaultConfig returns the standard tunables.
func DefaultConfig() *Config {
	return &Config{
		BundlePath:      "models/bundle.json",
		ExtractDeadline: 10 * time.Second,
		DNSTimeout:      3 * time.Second,
		TLSTimeout:      5 * time.Second,
		WhoisTimeout:    8 * time.Second,
		FetchTimeout:    6 * time.Second,
		BatchLimit:      4,
	}
}

// ConfigFromEnv layers environment overrides on the defaults. Call after
// godotenv.Load().
func ConfigFromEnv() *Config {
	cfg := DefaultConfig()

	if v := os.Getenv("MODEL_BUNDLE"); v != "" {
		cfg.BundlePath = v
	}
	if v := os.Getenv("EXTRACT_DEADLINE_SECONDS"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			cfg.ExtractDeadline = time.Duration(secs) * time.Second
		}
	}
	if v := os.Getenv("BATCH_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.BatchLimit = n
		}
	}
	if v := os.Getenv("CLASSIFY_THRESHOLD"); v != "" {
		if t, err := strconv.ParseFloat(v, 64); err == nil && t > 0 && t < 1 {
			cfg.ThresholdOverride = t
		}
	}
	cfg.SkipChromedp = os.Getenv("SKIP_CHROMEDP") == "true"
	cfg.ChromePath = os.Getenv("CHROME_PATH")

	return cfg
}
