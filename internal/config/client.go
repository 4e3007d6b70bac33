package config

import (
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/google/uuid"
)

type ClientConfig struct {
	HostURL      string        `env:"HOST_URL" envDefault:"ws://localhost:8080/ws"`
	ClientID     string        `env:"CLIENT_ID"`
	AuthToken    string        `env:"AUTH_TOKEN"`
	TickInterval time.Duration `env:"TICK_INTERVAL" envDefault:"50ms"`

	// "off" disables the local control API.
	ControlAddr string `env:"CONTROL_ADDR" envDefault:"127.0.0.1:7070"`
	// Empty disables the game report archive.
	ArchivePostgresDSN string        `env:"ARCHIVE_POSTGRES_DSN"`
	ArchiveRetention   time.Duration `env:"ARCHIVE_RETENTION" envDefault:"168h"`

	GameBinary string   `env:"GAME_BINARY"`
	GameArgs   []string `env:"GAME_ARGS" envSeparator:","`
}

func LoadClient() (ClientConfig, error) {
	var cfg ClientConfig
	if err := env.Parse(&cfg); err != nil {
		return cfg, err
	}
	if cfg.ClientID == "" {
		cfg.ClientID = uuid.NewString()
	}
	return cfg, nil
}

func (c ClientConfig) ControlEnabled() bool {
	return c.ControlAddr != "" && c.ControlAddr != "off"
}
