package config

import "github.com/caarlos0/env/v11"

type DevHostConfig struct {
	Addr string `env:"DEV_HOST_ADDR" envDefault:":8080"`
	// Requests of these types are rejected instead of acked.
	RejectTypes []string `env:"DEV_HOST_REJECT" envSeparator:","`
}

func LoadDevHost() (DevHostConfig, error) {
	var cfg DevHostConfig
	err := env.Parse(&cfg)
	return cfg, err
}
