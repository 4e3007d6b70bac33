package config

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestLoadClientDefaults(t *testing.T) {
	cfg, err := LoadClient()
	if err != nil {
		t.Fatalf("LoadClient() error = %v", err)
	}
	if cfg.HostURL != "ws://localhost:8080/ws" {
		t.Fatalf("HostURL = %q", cfg.HostURL)
	}
	if cfg.TickInterval != 50*time.Millisecond {
		t.Fatalf("TickInterval = %s, want 50ms", cfg.TickInterval)
	}
	if _, err := uuid.Parse(cfg.ClientID); err != nil {
		t.Fatalf("expected generated uuid client id, got %q", cfg.ClientID)
	}
}

func TestLoadClientOverrides(t *testing.T) {
	t.Setenv("CLIENT_ID", "client-a")
	t.Setenv("CONTROL_ADDR", "off")
	t.Setenv("GAME_BINARY", "/usr/local/bin/providence-game")
	t.Setenv("GAME_ARGS", "--headless,--verbose")

	cfg, err := LoadClient()
	if err != nil {
		t.Fatalf("LoadClient() error = %v", err)
	}
	if cfg.ClientID != "client-a" {
		t.Fatalf("ClientID = %q", cfg.ClientID)
	}
	if cfg.ControlEnabled() {
		t.Fatalf("ControlAddr = %q, want control api disabled", cfg.ControlAddr)
	}
	if len(cfg.GameArgs) != 2 || cfg.GameArgs[0] != "--headless" || cfg.GameArgs[1] != "--verbose" {
		t.Fatalf("GameArgs = %v", cfg.GameArgs)
	}
}

func TestLoadHostClientDefaults(t *testing.T) {
	cfg, err := LoadHostClient()
	if err != nil {
		t.Fatalf("LoadHostClient() error = %v", err)
	}
	if cfg.MaxReconnectAttempts != 3 || cfg.DialTimeout != 5*time.Second {
		t.Fatalf("unexpected host client config: %+v", cfg)
	}
}
