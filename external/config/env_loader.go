package config

import (
	"fmt"

	internalconfig "github.com/araucarialabs/presenca/internal/config"
	"github.com/caarlos0/env/v11"
)

type envConfig struct {
	Env                string `env:"ENV" envDefault:"production"`
	DatabaseURL        string `env:"DATABASE_URL,required"`
	DiscordToken       string `env:"DISCORD_TOKEN,required"`
	DiscordGuildID     string `env:"DISCORD_GUILD_ID"`
	LogChannelID       string `env:"LOG_CHANNEL_ID"`
	Timezone           string `env:"TIMEZONE" envDefault:"America/Sao_Paulo"`
	DMCooldownMin      int    `env:"DM_COOLDOWN_MIN" envDefault:"120"`
	CheckoutMinMinutes int    `env:"CHECKOUT_MIN_MINUTES" envDefault:"60"`
	OpsListenAddr      string `env:"OPS_LISTEN_ADDR"`
	ReportWebhookURL   string `env:"REPORT_WEBHOOK_URL"`
}

func Load() (*internalconfig.Config, error) {
	var raw envConfig
	if err := env.Parse(&raw); err != nil {
		return nil, fmt.Errorf("environment variables are invalid or missing: %w", err)
	}

	cfg := &internalconfig.Config{
		Env:                raw.Env,
		DatabaseURL:        raw.DatabaseURL,
		DiscordToken:       raw.DiscordToken,
		DiscordGuildID:     raw.DiscordGuildID,
		LogChannelID:       raw.LogChannelID,
		Timezone:           raw.Timezone,
		DMCooldownMin:      raw.DMCooldownMin,
		CheckoutMinMinutes: raw.CheckoutMinMinutes,
		OpsListenAddr:      raw.OpsListenAddr,
		ReportWebhookURL:   raw.ReportWebhookURL,
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
