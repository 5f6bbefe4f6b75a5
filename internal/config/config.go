// Package config loads the service configuration from a TOML file.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// Config carries the service configuration. The webhook shared secret is
// injected here rather than read from ambient process state so the
// handler stays testable.
type Config struct {
	// WebhookChannelToken is the shared secret every provider push
	// notification must echo back.
	WebhookChannelToken string `toml:"webhook_channel_token"`
	// WebhookCallbackURL is the public HTTPS address push channels are
	// registered against.
	WebhookCallbackURL string `toml:"webhook_callback_url"`

	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`

	RenewalIntervalMin int `toml:"renewal_interval_min"`
	RenewalWindowHours int `toml:"renewal_window_hours"`
	RenewalBatchSize   int `toml:"renewal_batch_size"`
	EventWindowDays    int `toml:"event_window_days"`
}

// Load reads the configuration from path. Environment variables
// CALSYNC_WEBHOOK_TOKEN and CALSYNC_CALLBACK_URL override the file.
func Load(path string) (*Config, error) {
	var cfg Config

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if v := os.Getenv("CALSYNC_WEBHOOK_TOKEN"); v != "" {
		cfg.WebhookChannelToken = v
	}
	if v := os.Getenv("CALSYNC_CALLBACK_URL"); v != "" {
		cfg.WebhookCallbackURL = v
	}

	cfg.applyDefaults()

	if cfg.WebhookChannelToken == "" {
		return nil, fmt.Errorf("webhook_channel_token is required")
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.RenewalIntervalMin <= 0 {
		c.RenewalIntervalMin = 60
	}
	if c.RenewalWindowHours <= 0 {
		c.RenewalWindowHours = 24
	}
	if c.RenewalBatchSize <= 0 {
		c.RenewalBatchSize = 50
	}
	if c.EventWindowDays <= 0 {
		c.EventWindowDays = 30
	}
}

// RenewalInterval returns the renewal pass interval as a duration.
func (c *Config) RenewalInterval() time.Duration {
	return time.Duration(c.RenewalIntervalMin) * time.Minute
}

// RenewalWindow returns the expiring-soon window as a duration.
func (c *Config) RenewalWindow() time.Duration {
	return time.Duration(c.RenewalWindowHours) * time.Hour
}

// EventWindow returns the full-fetch event window as a duration.
func (c *Config) EventWindow() time.Duration {
	return time.Duration(c.EventWindowDays) * 24 * time.Hour
}
