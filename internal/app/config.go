package app

import (
	"os"
	"strconv"
	"time"
)

// Config is the process bootstrap read from the environment. Everything a
// user can change at runtime (voice, speed, server address, storage
// directory) only starts here; later edits go through the settings API.
type Config struct {
	HTTPAddr string
	LogLevel string

	SentryDSN   string
	Environment string

	// Backend defaults
	ServerHost string
	ServerPort int
	Voice      string
	Speed      float64

	// Storage
	StorageDir    string // preferred fixed path, first resolution candidate
	SweepMaxAge   time.Duration
	SweepInterval time.Duration

	// Connectivity
	ProbeInterval time.Duration

	// ALSA devices
	CaptureDevice  string
	PlaybackDevice string
}

func LoadConfigFromEnv() Config {
	return Config{
		HTTPAddr: getenv("VOICEBOX_HTTP_ADDR", ":8900"),
		LogLevel: getenv("VOICEBOX_LOG_LEVEL", "info"),

		SentryDSN:   os.Getenv("SENTRY_DSN"),
		Environment: getenv("ENVIRONMENT", "development"),

		ServerHost: getenv("VOICEBOX_SERVER_HOST", "127.0.0.1"),
		ServerPort: getenvInt("VOICEBOX_SERVER_PORT", 5000),
		Voice:      getenv("VOICEBOX_VOICE", "default"),
		Speed:      getenvFloat("VOICEBOX_SPEED", 1.0),

		StorageDir:    getenv("VOICEBOX_STORAGE_DIR", "/var/lib/voicebox/audio"),
		SweepMaxAge:   getenvDuration("VOICEBOX_SWEEP_MAX_AGE", time.Hour),
		SweepInterval: getenvDuration("VOICEBOX_SWEEP_INTERVAL", 10*time.Minute),

		ProbeInterval: getenvDuration("VOICEBOX_PROBE_INTERVAL", 30*time.Second),

		CaptureDevice:  getenv("VOICEBOX_CAPTURE_DEVICE", "default"),
		PlaybackDevice: getenv("VOICEBOX_PLAYBACK_DEVICE", "default"),
	}
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getenvInt(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getenvFloat(k string, def float64) float64 {
	if v := os.Getenv(k); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getenvDuration(k string, def time.Duration) time.Duration {
	if v := os.Getenv(k); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
