package config

import "github.com/caarlos0/env/v11"

type SimConfig struct {
	Game       string `env:"SIM_GAME" envDefault:"slots"`
	Rounds     int    `env:"SIM_ROUNDS" envDefault:"100000"`
	Seed       int64  `env:"SIM_SEED" envDefault:"1"`
	Wager      int64  `env:"SIM_WAGER" envDefault:"100"`
	Crew       int    `env:"SIM_CREW" envDefault:"3"`
	ConfigPath string `env:"ECONOMY_CONFIG_PATH"`
}

func LoadSim() (SimConfig, error) {
	var cfg SimConfig
	err := env.Parse(&cfg)
	return cfg, err
}
