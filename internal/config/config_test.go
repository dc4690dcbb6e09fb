package config

import (
	"os"
	"path/filepath"
	"testing"

	"squeezebot/internal/domain"
)

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate, got %v", err)
	}
	if cfg.Basket.SectorThreshold != 43 {
		t.Errorf("expected sector threshold 43, got %v", cfg.Basket.SectorThreshold)
	}
	if cfg.Compression.RequiredCount != 2 {
		t.Errorf("expected compression quorum 2, got %d", cfg.Compression.RequiredCount)
	}
	if cfg.Exits.FailsafeMinutes != 20 {
		t.Errorf("expected failsafe 20 minutes, got %d", cfg.Exits.FailsafeMinutes)
	}
	if cfg.Session.CutoffTime != "15:15" {
		t.Errorf("expected cutoff 15:15, got %s", cfg.Session.CutoffTime)
	}
}

func TestLoad_OverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	doc := `
basket:
  mode: megacap
  megacap_threshold: 70
compression:
  required_count: 3
exits:
  trailing_stop_method: ATR_TRAIL
  stop_loss_method: Fixed Percentage
  fixed_stop_pct: 2.0
`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Basket.Mode != domain.BasketModeMegaCap {
		t.Errorf("expected megacap mode, got %s", cfg.Basket.Mode)
	}
	if cfg.Basket.MegaCapThreshold != 70 {
		t.Errorf("expected megacap threshold 70, got %v", cfg.Basket.MegaCapThreshold)
	}
	if cfg.Compression.RequiredCount != 3 {
		t.Errorf("expected quorum 3, got %d", cfg.Compression.RequiredCount)
	}
	if cfg.Exits.TrailingMethod != domain.TrailingATR {
		t.Errorf("expected ATR_TRAIL, got %s", cfg.Exits.TrailingMethod)
	}
	if cfg.Exits.StopLossMethod != domain.StopFixedPercentage {
		t.Errorf("expected fixed-percentage stop seeding, got %s", cfg.Exits.StopLossMethod)
	}
	if cfg.Exits.FixedStopPct != 2.0 {
		t.Errorf("expected fixed stop 2%%, got %v", cfg.Exits.FixedStopPct)
	}
	// Untouched sections keep defaults.
	if cfg.Momentum.StochKPeriod != 5 {
		t.Errorf("expected default stoch K period 5, got %d", cfg.Momentum.StochKPeriod)
	}
}

func TestLoad_EmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Trading.ContractsPerTrade != 1 {
		t.Errorf("expected 1 contract per trade, got %d", cfg.Trading.ContractsPerTrade)
	}
}

func TestValidate_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad basket mode", func(c *Config) { c.Basket.Mode = "index" }},
		{"zero sector threshold", func(c *Config) { c.Basket.SectorThreshold = 0 }},
		{"quorum too high", func(c *Config) { c.Compression.RequiredCount = 4 }},
		{"quorum too low", func(c *Config) { c.Compression.RequiredCount = 0 }},
		{"zero ema period", func(c *Config) { c.Momentum.EMAPeriod = 0 }},
		{"wick tolerance out of range", func(c *Config) { c.Entry.WickTolerancePct = 1.5 }},
		{"unknown trailing method", func(c *Config) { c.Exits.TrailingMethod = "MAGIC" }},
		{"unknown stop-loss method", func(c *Config) { c.Exits.StopLossMethod = "Trendline" }},
		{"zero fixed stop pct", func(c *Config) { c.Exits.FixedStopPct = 0 }},
		{"zero contracts", func(c *Config) { c.Trading.ContractsPerTrade = 0 }},
		{"negative no-trade window", func(c *Config) { c.Session.NoTradeWindowMinutes = -1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error, got nil")
			}
		})
	}
}
