package config

import (
	"time"

	"github.com/caarlos0/env/v11"
)

type HostClientConfig struct {
	DialTimeout          time.Duration `env:"HOST_DIAL_TIMEOUT" envDefault:"5s"`
	MaxReconnectAttempts int           `env:"HOST_MAX_RECONNECT_ATTEMPTS" envDefault:"3"`
	ReconnectBackoff     time.Duration `env:"HOST_RECONNECT_BACKOFF" envDefault:"1s"`
	PingPeriod           time.Duration `env:"HOST_PING_PERIOD" envDefault:"20s"`
}

func LoadHostClient() (HostClientConfig, error) {
	var cfg HostClientConfig
	err := env.Parse(&cfg)
	return cfg, err
}
