package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "calsync.toml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("writing config file: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfigFile(t, `webhook_channel_token = "secret"`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.WebhookChannelToken != "secret" {
		t.Errorf("token not loaded: %q", cfg.WebhookChannelToken)
	}
	if cfg.RenewalInterval() != time.Hour {
		t.Errorf("unexpected default renewal interval: %s", cfg.RenewalInterval())
	}
	if cfg.RenewalWindow() != 24*time.Hour {
		t.Errorf("unexpected default renewal window: %s", cfg.RenewalWindow())
	}
	if cfg.EventWindow() != 30*24*time.Hour {
		t.Errorf("unexpected default event window: %s", cfg.EventWindow())
	}
	if cfg.RenewalBatchSize != 50 {
		t.Errorf("unexpected default batch size: %d", cfg.RenewalBatchSize)
	}
}

func TestLoadReadsFileValues(t *testing.T) {
	path := writeConfigFile(t, `
webhook_channel_token = "secret"
webhook_callback_url = "https://example.com/api/webhook/google-calendar"
renewal_interval_min = 30
renewal_window_hours = 48
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.WebhookCallbackURL != "https://example.com/api/webhook/google-calendar" {
		t.Errorf("callback url not loaded: %q", cfg.WebhookCallbackURL)
	}
	if cfg.RenewalInterval() != 30*time.Minute {
		t.Errorf("renewal interval not loaded: %s", cfg.RenewalInterval())
	}
	if cfg.RenewalWindow() != 48*time.Hour {
		t.Errorf("renewal window not loaded: %s", cfg.RenewalWindow())
	}
}

func TestLoadRequiresChannelToken(t *testing.T) {
	path := writeConfigFile(t, `webhook_callback_url = "https://example.com"`)

	if _, err := Load(path); err == nil {
		t.Fatal("expected error for missing webhook_channel_token")
	}
}

func TestEnvironmentOverridesFile(t *testing.T) {
	path := writeConfigFile(t, `webhook_channel_token = "from-file"`)
	t.Setenv("CALSYNC_WEBHOOK_TOKEN", "from-env")
	t.Setenv("CALSYNC_CALLBACK_URL", "https://env.example.com")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.WebhookChannelToken != "from-env" {
		t.Errorf("environment must override the file, got %q", cfg.WebhookChannelToken)
	}
	if cfg.WebhookCallbackURL != "https://env.example.com" {
		t.Errorf("callback url override not applied, got %q", cfg.WebhookCallbackURL)
	}
}
