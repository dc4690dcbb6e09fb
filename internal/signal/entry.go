package signal

import (
	"math"

	"squeezebot/internal/domain"
	"squeezebot/internal/indicator"
)

// EntryConfig holds the Heiken-Ashi trigger parameters and the optional
// continuation patterns.
type EntryConfig struct {
	WickTolerancePct     float64 // fraction of HA range, default 0.1
	ContinuationPatterns bool
	PivotZonePct         float64 // distance from VWAP for pivot continuation
}

// EntryTrigger matches the Heiken-Ashi wick-tolerance entry pattern.
type EntryTrigger struct {
	cfg EntryConfig
}

// NewEntryTrigger creates an entry trigger.
func NewEntryTrigger(cfg EntryConfig) *EntryTrigger {
	return &EntryTrigger{cfg: cfg}
}

// Trigger reports whether an entry pattern exists in the signal
// direction. The primary pattern is a flat-wick Heiken-Ashi candle;
// when enabled, continuation patterns may still fire after a primary
// miss.
func (e *EntryTrigger) Trigger(candles []domain.Candle, dir domain.Direction) bool {
	if len(candles) < 2 || dir == domain.DirectionNeutral {
		return false
	}

	ha := indicator.HeikenAshi(candles)
	last := ha[len(ha)-1]

	if e.primary(last, dir) {
		return true
	}
	if e.cfg.ContinuationPatterns {
		return e.continuation(candles, ha, dir)
	}
	return false
}

// primary is the flat-wick match: a bullish HA candle with no
// meaningful lower wick, or the mirror on the upper wick.
func (e *EntryTrigger) primary(last indicator.HACandle, dir domain.Direction) bool {
	tolerance := last.Range() * e.cfg.WickTolerancePct

	switch dir {
	case domain.DirectionBullish:
		return last.LowerWick() < tolerance && last.Close > last.Open
	case domain.DirectionBearish:
		return last.UpperWick() < tolerance && last.Close < last.Open
	default:
		return false
	}
}

// continuation tries the two secondary patterns: pivot-zone
// continuation near VWAP, and a VWAP reclaim/rejection cross.
func (e *EntryTrigger) continuation(candles []domain.Candle, ha []indicator.HACandle, dir domain.Direction) bool {
	vwap, ok := indicator.VWAP(candles)
	if !ok || vwap == 0 {
		return false
	}

	last := candles[len(candles)-1]
	haLast := ha[len(ha)-1]

	haInDirection := (dir == domain.DirectionBullish && haLast.Bullish()) ||
		(dir == domain.DirectionBearish && !haLast.Bullish())
	if !haInDirection {
		return false
	}

	// Pivot zone: price holding within the zone around VWAP.
	if math.Abs(last.Close-vwap)/vwap <= e.cfg.PivotZonePct {
		return true
	}

	// Reclaim/rejection: the close crossed VWAP against the prior candle.
	prior := candles[len(candles)-2]
	switch dir {
	case domain.DirectionBullish:
		return prior.Close <= vwap && last.Close > vwap
	case domain.DirectionBearish:
		return prior.Close >= vwap && last.Close < vwap
	default:
		return false
	}
}
