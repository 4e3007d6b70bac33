package config

import (
	"testing"
	"time"
)

func TestLoadSessionDefaults(t *testing.T) {
	cfg, err := LoadSession()
	if err != nil {
		t.Fatalf("LoadSession() error = %v", err)
	}
	if cfg.ReconnectInterval != 5*time.Second {
		t.Fatalf("ReconnectInterval = %s, want 5s", cfg.ReconnectInterval)
	}
	if cfg.TokenRequestInterval != 3*time.Second {
		t.Fatalf("TokenRequestInterval = %s, want 3s", cfg.TokenRequestInterval)
	}
	if cfg.AckRequestTimeout != 15*time.Second || cfg.AckRequestTimerBuffer != time.Second {
		t.Fatalf("unexpected ack timing: %+v", cfg)
	}
}

func TestLoadSessionOverrides(t *testing.T) {
	t.Setenv("RECONNECT_INTERVAL", "250ms")
	t.Setenv("ACK_REQUEST_TIMEOUT", "8s")
	t.Setenv("ACK_REQUEST_TIMER_BUFFER", "0s")

	cfg, err := LoadSession()
	if err != nil {
		t.Fatalf("LoadSession() error = %v", err)
	}
	if cfg.ReconnectInterval != 250*time.Millisecond {
		t.Fatalf("ReconnectInterval = %s", cfg.ReconnectInterval)
	}
	if cfg.AckRequestTimeout != 8*time.Second || cfg.AckRequestTimerBuffer != 0 {
		t.Fatalf("unexpected ack timing: %+v", cfg)
	}
}

func TestLoadSessionRejectsNegativeDurations(t *testing.T) {
	t.Setenv("TOKEN_REQUEST_INTERVAL", "-1s")

	if _, err := LoadSession(); err == nil {
		t.Fatal("LoadSession() expected error, got nil")
	}
}
