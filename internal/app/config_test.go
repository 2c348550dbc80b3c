package app

import (
	"testing"
	"time"
)

func TestLoadConfigFromEnv_Defaults(t *testing.T) {
	cfg := LoadConfigFromEnv()

	if cfg.HTTPAddr != ":8900" {
		t.Errorf("HTTPAddr = %q, want :8900", cfg.HTTPAddr)
	}
	if cfg.ServerHost != "127.0.0.1" || cfg.ServerPort != 5000 {
		t.Errorf("server default = %s:%d, want 127.0.0.1:5000", cfg.ServerHost, cfg.ServerPort)
	}
	if cfg.Voice != "default" || cfg.Speed != 1.0 {
		t.Errorf("voice/speed default = %s/%v, want default/1.0", cfg.Voice, cfg.Speed)
	}
	if cfg.SweepMaxAge != time.Hour {
		t.Errorf("SweepMaxAge = %v, want 1h", cfg.SweepMaxAge)
	}
	if cfg.ProbeInterval != 30*time.Second {
		t.Errorf("ProbeInterval = %v, want 30s", cfg.ProbeInterval)
	}
}

func TestLoadConfigFromEnv_Overrides(t *testing.T) {
	t.Setenv("VOICEBOX_SERVER_HOST", "192.168.0.12")
	t.Setenv("VOICEBOX_SERVER_PORT", "8000")
	t.Setenv("VOICEBOX_SPEED", "1.5")
	t.Setenv("VOICEBOX_SWEEP_MAX_AGE", "30m")

	cfg := LoadConfigFromEnv()

	if cfg.ServerHost != "192.168.0.12" || cfg.ServerPort != 8000 {
		t.Errorf("server = %s:%d, want 192.168.0.12:8000", cfg.ServerHost, cfg.ServerPort)
	}
	if cfg.Speed != 1.5 {
		t.Errorf("Speed = %v, want 1.5", cfg.Speed)
	}
	if cfg.SweepMaxAge != 30*time.Minute {
		t.Errorf("SweepMaxAge = %v, want 30m", cfg.SweepMaxAge)
	}
}

func TestLoadConfigFromEnv_BadNumbersFallBack(t *testing.T) {
	t.Setenv("VOICEBOX_SERVER_PORT", "not-a-port")
	t.Setenv("VOICEBOX_SPEED", "fast")
	t.Setenv("VOICEBOX_PROBE_INTERVAL", "soon")

	cfg := LoadConfigFromEnv()

	if cfg.ServerPort != 5000 {
		t.Errorf("ServerPort = %d, want default 5000 on parse failure", cfg.ServerPort)
	}
	if cfg.Speed != 1.0 {
		t.Errorf("Speed = %v, want default 1.0 on parse failure", cfg.Speed)
	}
	if cfg.ProbeInterval != 30*time.Second {
		t.Errorf("ProbeInterval = %v, want default on parse failure", cfg.ProbeInterval)
	}
}
