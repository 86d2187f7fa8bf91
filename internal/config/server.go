package config

import (
	"time"

	"github.com/caarlos0/env/v11"
)

type ServerConfig struct {
	// Empty DSN runs the core on the in-memory stores.
	PostgresDSN string `env:"POSTGRES_DSN"`
	HTTPAddr    string `env:"HTTP_ADDR" envDefault:":8080"`

	AdminAPIKey string `env:"ADMIN_API_KEY"`

	EconomyConfigPath string `env:"ECONOMY_CONFIG_PATH"`
	EconomyReloadMS   int    `env:"ECONOMY_RELOAD_MS" envDefault:"1000"`

	JanitorIntervalMS int   `env:"JANITOR_INTERVAL_MS" envDefault:"5000"`
	RNGSeed           int64 `env:"RNG_SEED" envDefault:"0"`
	EarnBatchWorkers  int   `env:"EARN_BATCH_WORKERS" envDefault:"8"`
	HouseFloat        int64 `env:"HOUSE_FLOAT" envDefault:"0"`
}

func (c ServerConfig) EconomyReload() time.Duration {
	if c.EconomyReloadMS <= 0 {
		return time.Second
	}
	return time.Duration(c.EconomyReloadMS) * time.Millisecond
}

func (c ServerConfig) JanitorInterval() time.Duration {
	if c.JanitorIntervalMS <= 0 {
		return 5 * time.Second
	}
	return time.Duration(c.JanitorIntervalMS) * time.Millisecond
}

func LoadServer() (ServerConfig, error) {
	var cfg ServerConfig
	err := env.Parse(&cfg)
	return cfg, err
}
