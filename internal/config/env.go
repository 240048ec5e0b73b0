package config

import (
	env "github.com/caarlos0/env/v11"
)

// envOverrides are the settings an operator can set without touching the
// config file: secrets and deployment-specific addresses.
type envOverrides struct {
	ServerAddr    string `env:"SALONBOT_ADDR"`
	StoragePath   string `env:"SALONBOT_STORAGE_PATH"`
	TelegramToken string `env:"SALONBOT_TELEGRAM_TOKEN"`
	GatewayURL    string `env:"SALONBOT_GATEWAY_URL"`
	GatewayToken  string `env:"SALONBOT_GATEWAY_TOKEN"`
	OwnerNumber   string `env:"SALONBOT_OWNER_NUMBER"`
}

// applyEnv layers environment variables over the file config.
// Env wins: a token in the environment beats one in the file.
func applyEnv(cfg *Config) error {
	var ov envOverrides
	if err := env.Parse(&ov); err != nil {
		return err
	}
	if ov.ServerAddr != "" {
		cfg.Server.Addr = ov.ServerAddr
	}
	if ov.StoragePath != "" {
		cfg.Storage.Path = ov.StoragePath
	}
	if ov.TelegramToken != "" {
		cfg.Transport.Telegram.Token = ov.TelegramToken
	}
	if ov.GatewayURL != "" {
		cfg.Transport.Gateway.URL = ov.GatewayURL
	}
	if ov.GatewayToken != "" {
		cfg.Transport.Gateway.Token = ov.GatewayToken
	}
	if ov.OwnerNumber != "" {
		cfg.Notify.OwnerNumber = ov.OwnerNumber
	}
	return nil
}
