package config

import (
	"fmt"
	"time"
)

type Config struct {
	Env                string
	DatabaseURL        string
	DiscordToken       string
	DiscordGuildID     string
	LogChannelID       string
	Timezone           string
	DMCooldownMin      int
	CheckoutMinMinutes int
	OpsListenAddr      string
	ReportWebhookURL   string
}

func (c *Config) Validate() error {
	for _, req := range c.requiredFieldChecks() {
		if req.value == "" {
			return fmt.Errorf("%s is required", req.name)
		}
	}
	if c.DMCooldownMin <= 0 {
		return fmt.Errorf("DM_COOLDOWN_MIN must be positive, got %d", c.DMCooldownMin)
	}
	if c.CheckoutMinMinutes <= 0 {
		return fmt.Errorf("CHECKOUT_MIN_MINUTES must be positive, got %d", c.CheckoutMinMinutes)
	}
	if c.Timezone == "" {
		return fmt.Errorf("TIMEZONE is required")
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("TIMEZONE is invalid: %w", err)
	}
	return nil
}

type requiredEnvField struct {
	name  string
	value string
}

func (c *Config) requiredFieldChecks() []requiredEnvField {
	return []requiredEnvField{
		{name: "DATABASE_URL", value: c.DatabaseURL},
		{name: "DISCORD_TOKEN", value: c.DiscordToken},
	}
}

// Location resolves the configured timezone. Validate guarantees it loads.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}
