package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()
	if cfg.Port != "8080" {
		t.Errorf("Port = %s, want 8080", cfg.Port)
	}
	if cfg.MaxCostPerUser != 0.10 {
		t.Errorf("MaxCostPerUser = %f, want 0.10", cfg.MaxCostPerUser)
	}
	if cfg.MaxAPICallsPerMinute != 10 {
		t.Errorf("MaxAPICallsPerMinute = %d, want 10", cfg.MaxAPICallsPerMinute)
	}
	if cfg.CostPer1MInputTokens != 2.0 || cfg.CostPer1MOutputTokens != 8.0 {
		t.Errorf("token rates = %f/%f, want 2/8", cfg.CostPer1MInputTokens, cfg.CostPer1MOutputTokens)
	}
	if cfg.GalleryBatchInterval != 500*time.Millisecond {
		t.Errorf("GalleryBatchInterval = %v, want 500ms", cfg.GalleryBatchInterval)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("APP_PORT", "9090")
	t.Setenv("MAX_COST_PER_USER", "0.25")
	t.Setenv("GALLERY_BATCH_INTERVAL_MS", "100")
	cfg := Load()
	if cfg.Port != "9090" {
		t.Errorf("Port = %s, want 9090", cfg.Port)
	}
	if cfg.MaxCostPerUser != 0.25 {
		t.Errorf("MaxCostPerUser = %f, want 0.25", cfg.MaxCostPerUser)
	}
	if cfg.GalleryBatchInterval != 100*time.Millisecond {
		t.Errorf("GalleryBatchInterval = %v, want 100ms", cfg.GalleryBatchInterval)
	}
}

func TestValidate(t *testing.T) {
	base := Load()
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"dev defaults ok", func(c *Config) {}, false},
		{"empty port", func(c *Config) { c.Port = "" }, true},
		{"empty dsn", func(c *Config) { c.DatabaseDSN = "" }, true},
		{"default secret in prod", func(c *Config) { c.Env = "prod"; c.AzureOpenAIKey = "k" }, true},
		{"missing azure key in prod", func(c *Config) { c.Env = "prod"; c.JWTSecret = "real-secret" }, true},
		{"prod fully configured", func(c *Config) {
			c.Env = "prod"
			c.JWTSecret = "real-secret"
			c.AzureOpenAIKey = "k"
		}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base
			tt.mutate(&cfg)
			err := Validate(cfg)
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
