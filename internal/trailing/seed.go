package trailing

import (
	"squeezebot/internal/domain"
	"squeezebot/internal/indicator"
)

// Seeder computes the initial protective stop when an entry fills.
// The configured rule places the first stop; the trailing method then
// tightens it bar by bar. Every rule falls back to the fixed-percentage
// stop when the history is too thin to apply it.
type Seeder struct {
	method domain.StopLossMethod
	cfg    Config
}

// NewSeeder constructs the named seeding rule. An empty or unknown
// method behaves as the fixed-percentage rule.
func NewSeeder(method domain.StopLossMethod, cfg Config) *Seeder {
	if cfg.FixedStopPct <= 0 {
		cfg.FixedStopPct = 1.0
	}
	if cfg.SwingLookback <= 0 {
		cfg.SwingLookback = 10
	}
	if cfg.ATRPeriod <= 0 {
		cfg.ATRPeriod = 14
	}
	if cfg.ATRMultiple <= 0 {
		cfg.ATRMultiple = 1.5
	}
	return &Seeder{method: method, cfg: cfg}
}

// Method returns the seeding rule identifier.
func (s *Seeder) Method() domain.StopLossMethod {
	return s.method
}

// Seed returns the initial stop for a fill at price.
func (s *Seeder) Seed(dir domain.Direction, price float64, history []domain.Candle) float64 {
	switch s.method {
	case domain.StopATRMultiple:
		if atr, ok := indicator.ATR(history, s.cfg.ATRPeriod); ok {
			if dir == domain.DirectionBearish {
				return price + atr*s.cfg.ATRMultiple
			}
			return price - atr*s.cfg.ATRMultiple
		}
	case domain.StopStructure:
		if stop, ok := s.structureStop(dir, history); ok {
			return stop
		}
	}
	return s.fixedStop(dir, price)
}

func (s *Seeder) fixedStop(dir domain.Direction, price float64) float64 {
	pct := s.cfg.FixedStopPct / 100
	if dir == domain.DirectionBearish {
		return price * (1 + pct)
	}
	return price * (1 - pct)
}

// structureStop scans the last SwingLookback candles for swing points.
// A swing low sits below both neighbors, a swing high above both.
// Bullish trades stop under the deepest swing low, bearish trades above
// the tallest swing high.
func (s *Seeder) structureStop(dir domain.Direction, history []domain.Candle) (float64, bool) {
	lookback := s.cfg.SwingLookback
	if lookback > len(history) {
		lookback = len(history)
	}
	if lookback < 3 {
		return 0, false
	}
	window := history[len(history)-lookback:]

	found := false
	var level float64
	for i := 1; i < len(window)-1; i++ {
		if dir == domain.DirectionBearish {
			if window[i].High > window[i-1].High && window[i].High > window[i+1].High {
				if !found || window[i].High > level {
					level = window[i].High
					found = true
				}
			}
			continue
		}
		if window[i].Low < window[i-1].Low && window[i].Low < window[i+1].Low {
			if !found || window[i].Low < level {
				level = window[i].Low
				found = true
			}
		}
	}
	return level, found
}
