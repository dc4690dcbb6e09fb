// Package config exposes strongly typed application configuration
// loaded from YAML, with defaults matching the tuned strategy constants.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"squeezebot/internal/domain"
)

// Basket configures the alignment vote.
type Basket struct {
	Mode             domain.BasketMode  `yaml:"mode"`
	SectorETFs       []string           `yaml:"sector_etfs"`
	SectorWeights    map[string]float64 `yaml:"sector_weights"`
	SectorThreshold  float64            `yaml:"sector_weight_threshold"`
	MegaCapStocks    []string           `yaml:"megacap_stocks"`
	MegaCapThreshold float64            `yaml:"megacap_threshold"`
	SectorDelta      float64            `yaml:"sector_classify_delta"`
	MegaCapDelta     float64            `yaml:"megacap_classify_delta"`
}

// Compression configures the 3-signal volatility quorum.
type Compression struct {
	Window            int     `yaml:"window"`
	RequiredCount     int     `yaml:"required_count"`
	BBWidthThreshold  float64 `yaml:"bb_width_threshold"`
	DonchianThreshold float64 `yaml:"donchian_contraction_threshold"`
	VolumeThreshold   float64 `yaml:"volume_squeeze_threshold"`
}

// Momentum configures the stochastic and trend confirmation stage.
type Momentum struct {
	StochKPeriod     int     `yaml:"stochastic_k_period"`
	StochDPeriod     int     `yaml:"stochastic_d_period"`
	StochSmooth      int     `yaml:"stochastic_smooth"`
	BullishThreshold float64 `yaml:"bullish_threshold"`
	BearishThreshold float64 `yaml:"bearish_threshold"`
	EMAPeriod        int     `yaml:"ema_value"`
}

// Entry configures the Heiken-Ashi trigger and optional filters.
type Entry struct {
	WickTolerancePct     float64 `yaml:"ha_wick_tolerance"`
	VolumeSpikeFilter    bool    `yaml:"volume_spike_filter"`
	VolumeSpikeMult      float64 `yaml:"volume_spike_multiple"`
	ADXFilter            bool    `yaml:"adx_filter"`
	ADXMinimum           float64 `yaml:"adx_minimum"`
	ContinuationPatterns bool    `yaml:"continuation_patterns"`
	PivotZonePct         float64 `yaml:"pivot_zone_pct"`
}

// Exits configures the priority-ordered exit evaluator and trailing stop.
type Exits struct {
	TrailingMethod    domain.TrailingMethod `yaml:"trailing_stop_method"`
	StopLossMethod    domain.StopLossMethod `yaml:"stop_loss_method"`
	FixedStopPct      float64               `yaml:"fixed_stop_pct"`
	TrailPct          float64               `yaml:"trail_pct"`
	ATRMultiple       float64               `yaml:"atr_multiple"`
	FixedPoints       float64               `yaml:"fixed_points"`
	MinProfitBeforeHA float64               `yaml:"min_profit_before_ha_exit"`
	LossGuardPct      float64               `yaml:"loss_guard_pct"`
	StochExtremeUpper float64               `yaml:"stoch_extreme_upper"`
	StochExtremeLower float64               `yaml:"stoch_extreme_lower"`
	FailsafeMinutes   int                   `yaml:"failsafe_minutes"`
	AutoCloseMinutes  int                   `yaml:"auto_close_minutes"`
}

// Session configures trading-window rules.
type Session struct {
	NoTradeWindowMinutes int    `yaml:"no_trade_window_minutes"`
	CutoffTime           string `yaml:"cutoff_time"` // "HH:MM" local
	OpenTime             string `yaml:"open_time"`
	CloseTime            string `yaml:"close_time"`
	Timezone             string `yaml:"timezone"`
}

// Trading groups per-run trading parameters.
type Trading struct {
	Tickers           []string `yaml:"tickers"`
	Timeframe         string   `yaml:"timeframe"`
	ContractsPerTrade int      `yaml:"contracts_per_trade"`
	InitialEquity     float64  `yaml:"initial_equity"`
	StalenessSeconds  int      `yaml:"data_staleness_seconds"`
}

// Storage holds connection strings for the persistent stores.
type Storage struct {
	PostgresDSN     string `yaml:"postgres_dsn"`
	ClickhouseDSN   string `yaml:"clickhouse_dsn"`
	UseMemory       bool   `yaml:"use_memory"`
	StaleSweepHrs   int    `yaml:"stale_position_hours"`
	SyncIntervalSec int    `yaml:"broker_sync_interval_seconds"`
}

// Config is the root configuration document.
type Config struct {
	LogLevel    string      `yaml:"log_level"`
	MetricsAddr string      `yaml:"metrics_addr"`
	Basket      Basket      `yaml:"basket"`
	Compression Compression `yaml:"compression"`
	Momentum    Momentum    `yaml:"momentum"`
	Entry       Entry       `yaml:"entry"`
	Exits       Exits       `yaml:"exits"`
	Session     Session     `yaml:"session"`
	Trading     Trading     `yaml:"trading"`
	Storage     Storage     `yaml:"storage"`
}

// Default returns the configuration with every strategy default applied.
// The numeric defaults are tuned constants and are preserved as-is.
func Default() Config {
	return Config{
		LogLevel:    "info",
		MetricsAddr: ":9100",
		Basket: Basket{
			Mode:            domain.BasketModeSector,
			SectorETFs:      []string{"XLK", "XLF", "XLV", "XLY"},
			SectorWeights:   map[string]float64{"XLK": 32, "XLF": 14, "XLV": 11, "XLY": 11},
			SectorThreshold: 43,
			MegaCapStocks: []string{
				"AAPL", "MSFT", "GOOGL", "AMZN", "NVDA", "META", "TSLA",
			},
			MegaCapThreshold: 60,
			SectorDelta:      0.002,
			MegaCapDelta:     0.001,
		},
		Compression: Compression{
			Window:            20,
			RequiredCount:     2,
			BBWidthThreshold:  0.05,
			DonchianThreshold: 0.6,
			VolumeThreshold:   0.3,
		},
		Momentum: Momentum{
			StochKPeriod:     5,
			StochDPeriod:     3,
			StochSmooth:      2,
			BullishThreshold: 20,
			BearishThreshold: 80,
			EMAPeriod:        15,
		},
		Entry: Entry{
			WickTolerancePct:     0.1,
			VolumeSpikeFilter:    false,
			VolumeSpikeMult:      1.5,
			ADXFilter:            false,
			ADXMinimum:           20,
			ContinuationPatterns: false,
			PivotZonePct:         0.005,
		},
		Exits: Exits{
			TrailingMethod:    domain.TrailingHeikenAshi,
			StopLossMethod:    domain.StopATRMultiple,
			FixedStopPct:      1.0,
			TrailPct:          0.01,
			ATRMultiple:       1.5,
			FixedPoints:       1.0,
			MinProfitBeforeHA: 0.005,
			LossGuardPct:      -0.001,
			StochExtremeUpper: 85,
			StochExtremeLower: 15,
			FailsafeMinutes:   20,
			AutoCloseMinutes:  15,
		},
		Session: Session{
			NoTradeWindowMinutes: 3,
			CutoffTime:           "15:15",
			OpenTime:             "09:30",
			CloseTime:            "16:00",
			Timezone:             "America/New_York",
		},
		Trading: Trading{
			Tickers:           []string{"SPY", "QQQ", "AAPL", "MSFT", "TSLA"},
			Timeframe:         "5m",
			ContractsPerTrade: 1,
			InitialEquity:     10000,
			StalenessSeconds:  60,
		},
		Storage: Storage{
			UseMemory:       true,
			StaleSweepHrs:   24,
			SyncIntervalSec: 300,
		},
	}
}

// Load reads a YAML config file over the defaults. An empty path
// returns the defaults unchanged.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate rejects out-of-range values before any component sees them.
func (c *Config) Validate() error {
	if c.Basket.Mode != domain.BasketModeSector && c.Basket.Mode != domain.BasketModeMegaCap {
		return fmt.Errorf("basket.mode must be %q or %q, got %q",
			domain.BasketModeSector, domain.BasketModeMegaCap, c.Basket.Mode)
	}
	if c.Basket.SectorThreshold <= 0 || c.Basket.SectorThreshold > 100 {
		return fmt.Errorf("basket.sector_weight_threshold must be in (0,100], got %v", c.Basket.SectorThreshold)
	}
	if c.Basket.MegaCapThreshold <= 0 || c.Basket.MegaCapThreshold > 100 {
		return fmt.Errorf("basket.megacap_threshold must be in (0,100], got %v", c.Basket.MegaCapThreshold)
	}
	if c.Compression.RequiredCount < 1 || c.Compression.RequiredCount > 3 {
		return fmt.Errorf("compression.required_count must be 1..3, got %d", c.Compression.RequiredCount)
	}
	if c.Compression.Window < 2 {
		return fmt.Errorf("compression.window must be >= 2, got %d", c.Compression.Window)
	}
	if c.Momentum.StochKPeriod < 1 || c.Momentum.StochDPeriod < 1 || c.Momentum.StochSmooth < 1 {
		return fmt.Errorf("momentum stochastic periods must be >= 1")
	}
	if c.Momentum.EMAPeriod < 1 {
		return fmt.Errorf("momentum.ema_value must be >= 1, got %d", c.Momentum.EMAPeriod)
	}
	if c.Entry.WickTolerancePct <= 0 || c.Entry.WickTolerancePct >= 1 {
		return fmt.Errorf("entry.ha_wick_tolerance must be in (0,1), got %v", c.Entry.WickTolerancePct)
	}
	valid := false
	for _, m := range domain.AllTrailingMethods {
		if c.Exits.TrailingMethod == m {
			valid = true
			break
		}
	}
	if !valid {
		return fmt.Errorf("exits.trailing_stop_method %q is not a known method", c.Exits.TrailingMethod)
	}
	valid = false
	for _, m := range domain.AllStopLossMethods {
		if c.Exits.StopLossMethod == m {
			valid = true
			break
		}
	}
	if !valid {
		return fmt.Errorf("exits.stop_loss_method %q is not a known method", c.Exits.StopLossMethod)
	}
	if c.Exits.FixedStopPct <= 0 || c.Exits.FixedStopPct >= 100 {
		return fmt.Errorf("exits.fixed_stop_pct must be in (0,100), got %v", c.Exits.FixedStopPct)
	}
	if c.Trading.ContractsPerTrade < 1 {
		return fmt.Errorf("trading.contracts_per_trade must be >= 1, got %d", c.Trading.ContractsPerTrade)
	}
	if c.Session.NoTradeWindowMinutes < 0 {
		return fmt.Errorf("session.no_trade_window_minutes must be >= 0, got %d", c.Session.NoTradeWindowMinutes)
	}
	return nil
}
