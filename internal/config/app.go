package config

import (
	"errors"
	"fmt"
)

// AppConfig is everything cmd/economy-server reads from the environment.
type AppConfig struct {
	Server ServerConfig
	Log    LogConfig
}

func LoadApp() (AppConfig, error) {
	logCfg, err := LoadLog()
	if err != nil {
		return AppConfig{}, fmt.Errorf("log config: %w", err)
	}
	serverCfg, err := LoadServer()
	if err != nil {
		return AppConfig{}, fmt.Errorf("server config: %w", err)
	}
	cfg := AppConfig{Server: serverCfg, Log: logCfg}
	if err := cfg.Validate(); err != nil {
		return AppConfig{}, err
	}
	return cfg, nil
}

// Validate rejects server settings that would only fail later at runtime.
func (c AppConfig) Validate() error {
	var errs []error
	if c.Server.HTTPAddr == "" {
		errs = append(errs, errors.New("HTTP_ADDR must not be empty"))
	}
	if c.Server.EarnBatchWorkers < 0 {
		errs = append(errs, errors.New("EARN_BATCH_WORKERS must be >= 0"))
	}
	if c.Server.HouseFloat < 0 {
		errs = append(errs, errors.New("HOUSE_FLOAT must be >= 0"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("server config: %w", errors.Join(errs...))
	}
	return nil
}
