// Package trailing implements the interchangeable trailing-stop
// algorithms. Each method proposes a candidate stop from the current
// price and candle history; the lifecycle engine accepts a candidate
// only when it tightens the stop in the trade's favor.
package trailing

import (
	"fmt"

	"squeezebot/internal/domain"
)

// Input is what every method receives on each update.
type Input struct {
	Direction    domain.Direction
	EntryPrice   float64
	CurrentPrice float64
	CurrentStop  float64
	History      []domain.Candle
}

// Method proposes candidate stop prices for one trailing algorithm.
type Method interface {
	// Name returns the method identifier.
	Name() domain.TrailingMethod

	// Candidate returns the proposed stop. ok is false when the method
	// cannot produce a stop from the available history.
	Candidate(in Input) (stop float64, ok bool)
}

// Config carries the per-method tuning parameters.
type Config struct {
	TrailPct    float64 // percent trail, e.g. 0.01
	ATRPeriod   int     // default 14
	ATRMultiple float64 // default 1.5
	EMAPeriod   int     // default 9
	HALookback  int     // HA candles considered, 1..3
	FixedPoints float64 // fixed-point offset

	// Initial-stop seeding parameters.
	FixedStopPct  float64 // percent of entry price, e.g. 1.0 for 1%
	SwingLookback int     // candles scanned for structure stops, default 10
}

// DefaultConfig returns the tuned method defaults.
func DefaultConfig() Config {
	return Config{
		TrailPct:    0.01,
		ATRPeriod:   14,
		ATRMultiple: 1.5,
		EMAPeriod:   9,
		HALookback:  3,
		FixedPoints: 1.0,

		FixedStopPct:  1.0,
		SwingLookback: 10,
	}
}

// New constructs the named method.
func New(method domain.TrailingMethod, cfg Config) (Method, error) {
	switch method {
	case domain.TrailingHeikenAshi:
		return &HeikenAshiTrail{Lookback: cfg.HALookback}, nil
	case domain.TrailingEMA:
		return &EMATrail{Period: cfg.EMAPeriod}, nil
	case domain.TrailingPercent:
		return &PercentTrail{TrailPct: cfg.TrailPct}, nil
	case domain.TrailingATR:
		return &ATRTrail{Period: cfg.ATRPeriod, Multiple: cfg.ATRMultiple}, nil
	case domain.TrailingFixed:
		return &FixedTrail{Points: cfg.FixedPoints}, nil
	default:
		return nil, fmt.Errorf("unknown trailing method %q", method)
	}
}

// All constructs every method with the same config, in the canonical
// simulation order.
func All(cfg Config) []Method {
	out := make([]Method, 0, len(domain.AllTrailingMethods))
	for _, name := range domain.AllTrailingMethods {
		m, _ := New(name, cfg)
		out = append(out, m)
	}
	return out
}

// Tighten applies the ratchet: the returned stop never loosens in the
// trade's favor. For bullish trades stops only move up; for bearish,
// only down. A zero current stop means unseeded and always accepts.
func Tighten(dir domain.Direction, current, candidate float64) float64 {
	if current == 0 {
		return candidate
	}
	if dir == domain.DirectionBearish {
		if candidate < current {
			return candidate
		}
		return current
	}
	if candidate > current {
		return candidate
	}
	return current
}
