package config

import "github.com/caarlos0/env/v11"

type MigrateConfig struct {
	PostgresDSN string `env:"POSTGRES_DSN,required,notEmpty"`
	// Direction is "up" or "down"; Steps 0 means all the way.
	Direction string `env:"MIGRATE_DIRECTION" envDefault:"up"`
	Steps     int    `env:"MIGRATE_STEPS" envDefault:"0"`
}

func LoadMigrate() (MigrateConfig, error) {
	var cfg MigrateConfig
	err := env.Parse(&cfg)
	return cfg, err
}
