package config

import "github.com/caarlos0/env/v11"

// TestConfig points database-backed tests at a scratch postgres.
type TestConfig struct {
	PostgresDSN  string `env:"TEST_POSTGRES_DSN,required,notEmpty"`
	SchemaPrefix string `env:"TEST_POSTGRES_SCHEMA_PREFIX" envDefault:"archive_test"`
}

func LoadTest() (TestConfig, error) {
	var cfg TestConfig
	err := env.Parse(&cfg)
	return cfg, err
}
