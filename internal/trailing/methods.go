package trailing

import (
	"math"

	"squeezebot/internal/domain"
	"squeezebot/internal/indicator"
)

// HeikenAshiTrail stops at the extreme of the last Lookback HA candles:
// the lowest HA low for bullish trades, the highest HA high for bearish.
type HeikenAshiTrail struct {
	Lookback int // 1..3
}

// Name implements Method.
func (t *HeikenAshiTrail) Name() domain.TrailingMethod { return domain.TrailingHeikenAshi }

// Candidate implements Method.
func (t *HeikenAshiTrail) Candidate(in Input) (float64, bool) {
	lookback := t.Lookback
	if lookback < 1 {
		lookback = 1
	}
	if lookback > 3 {
		lookback = 3
	}
	if len(in.History) < lookback {
		return 0, false
	}

	ha := indicator.HeikenAshi(in.History)
	window := ha[len(ha)-lookback:]

	if in.Direction == domain.DirectionBearish {
		hi := math.Inf(-1)
		for _, c := range window {
			hi = math.Max(hi, c.High)
		}
		return hi, true
	}

	lo := math.Inf(1)
	for _, c := range window {
		lo = math.Min(lo, c.Low)
	}
	return lo, true
}

// EMATrail stops at the EMA of closes.
type EMATrail struct {
	Period int // default 9
}

// Name implements Method.
func (t *EMATrail) Name() domain.TrailingMethod { return domain.TrailingEMA }

// Candidate implements Method.
func (t *EMATrail) Candidate(in Input) (float64, bool) {
	return indicator.EMA(in.History, t.Period)
}

// PercentTrail stops a fixed percentage away from the current price.
type PercentTrail struct {
	TrailPct float64
}

// Name implements Method.
func (t *PercentTrail) Name() domain.TrailingMethod { return domain.TrailingPercent }

// Candidate implements Method.
func (t *PercentTrail) Candidate(in Input) (float64, bool) {
	if in.CurrentPrice <= 0 {
		return 0, false
	}
	if in.Direction == domain.DirectionBearish {
		return in.CurrentPrice * (1 + t.TrailPct), true
	}
	return in.CurrentPrice * (1 - t.TrailPct), true
}

// ATRTrail stops an ATR multiple away from the current price.
type ATRTrail struct {
	Period   int
	Multiple float64
}

// Name implements Method.
func (t *ATRTrail) Name() domain.TrailingMethod { return domain.TrailingATR }

// Candidate implements Method.
func (t *ATRTrail) Candidate(in Input) (float64, bool) {
	atr, ok := indicator.ATR(in.History, t.Period)
	if !ok {
		return 0, false
	}
	if in.Direction == domain.DirectionBearish {
		return in.CurrentPrice + atr*t.Multiple, true
	}
	return in.CurrentPrice - atr*t.Multiple, true
}

// FixedTrail stops a fixed point distance away from the current price.
type FixedTrail struct {
	Points float64
}

// Name implements Method.
func (t *FixedTrail) Name() domain.TrailingMethod { return domain.TrailingFixed }

// Candidate implements Method.
func (t *FixedTrail) Candidate(in Input) (float64, bool) {
	if in.CurrentPrice <= 0 {
		return 0, false
	}
	if in.Direction == domain.DirectionBearish {
		return in.CurrentPrice + t.Points, true
	}
	return in.CurrentPrice - t.Points, true
}

// Compile-time interface checks.
var (
	_ Method = (*HeikenAshiTrail)(nil)
	_ Method = (*EMATrail)(nil)
	_ Method = (*PercentTrail)(nil)
	_ Method = (*ATRTrail)(nil)
	_ Method = (*FixedTrail)(nil)
)
