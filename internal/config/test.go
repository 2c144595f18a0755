package config

import "github.com/caarlos0/env/v11"

// TestConfig gates the Postgres-backed tests. KeepSchema leaves the
// per-test schema in place for inspection.
type TestConfig struct {
	TestPostgresDSN string `env:"TEST_POSTGRES_DSN,required,notEmpty"`
	KeepSchema      bool   `env:"TEST_POSTGRES_KEEP_SCHEMA" envDefault:"false"`
}

func LoadTest() (TestConfig, error) {
	var cfg TestConfig
	err := env.Parse(&cfg)
	return cfg, err
}
