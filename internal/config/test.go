package config

import "github.com/caarlos0/env/v11"

// TestConfig gates the postgres-backed tests; they skip when the DSN is unset.
type TestConfig struct {
	PostgresDSN  string `env:"TEST_POSTGRES_DSN,required,notEmpty"`
	SchemaPrefix string `env:"TEST_SCHEMA_PREFIX" envDefault:"zcoin_test"`
	// KeepSchema leaves each test's schema in place for inspection.
	KeepSchema bool `env:"TEST_KEEP_SCHEMA" envDefault:"false"`
}

func LoadTest() (TestConfig, error) {
	var cfg TestConfig
	if err := env.Parse(&cfg); err != nil {
		return TestConfig{}, err
	}
	return cfg, nil
}
