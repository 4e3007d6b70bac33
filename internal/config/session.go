package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// SessionConfig holds the timing knobs of the client session core.
type SessionConfig struct {
	ReconnectInterval     time.Duration `env:"RECONNECT_INTERVAL" envDefault:"5s"`
	TokenRequestInterval  time.Duration `env:"TOKEN_REQUEST_INTERVAL" envDefault:"3s"`
	AckRequestTimeout     time.Duration `env:"ACK_REQUEST_TIMEOUT" envDefault:"15s"`
	AckRequestTimerBuffer time.Duration `env:"ACK_REQUEST_TIMER_BUFFER" envDefault:"1s"`
}

func LoadSession() (SessionConfig, error) {
	var cfg SessionConfig
	if err := env.Parse(&cfg); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

func (c SessionConfig) Validate() error {
	checks := []struct {
		name string
		v    time.Duration
	}{
		{"RECONNECT_INTERVAL", c.ReconnectInterval},
		{"TOKEN_REQUEST_INTERVAL", c.TokenRequestInterval},
		{"ACK_REQUEST_TIMEOUT", c.AckRequestTimeout},
		{"ACK_REQUEST_TIMER_BUFFER", c.AckRequestTimerBuffer},
	}
	for _, chk := range checks {
		if chk.v < 0 {
			return fmt.Errorf("%s must not be negative, got %s", chk.name, chk.v)
		}
	}
	return nil
}
