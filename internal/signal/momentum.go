package signal

import (
	"squeezebot/internal/domain"
	"squeezebot/internal/indicator"
)

// MomentumConfig holds stochastic and trend-check parameters.
type MomentumConfig struct {
	StochKPeriod     int
	StochDPeriod     int
	StochSmooth      int
	BullishThreshold float64 // %K must exceed this for bullish, default 20
	BearishThreshold float64 // %K must be under this for bearish, default 80
	EMAPeriod        int
}

// MomentumConfirmer runs the stochastic momentum check and the
// price-vs-VWAP/EMA trend check.
type MomentumConfirmer struct {
	cfg MomentumConfig
}

// NewMomentumConfirmer creates a confirmer with the given parameters.
func NewMomentumConfirmer(cfg MomentumConfig) *MomentumConfirmer {
	return &MomentumConfirmer{cfg: cfg}
}

// Momentum checks the stochastic oscillator against the direction.
// An uncomputable stochastic fails closed.
func (m *MomentumConfirmer) Momentum(candles []domain.Candle, dir domain.Direction) bool {
	k, _, ok := indicator.Stochastic(candles, m.cfg.StochKPeriod, m.cfg.StochDPeriod, m.cfg.StochSmooth)
	if !ok {
		return false
	}
	switch dir {
	case domain.DirectionBullish:
		return k > m.cfg.BullishThreshold
	case domain.DirectionBearish:
		return k < m.cfg.BearishThreshold
	default:
		return false
	}
}

// Trend requires the close strictly beyond both VWAP and the EMA in the
// signal direction. A missing indicator fails closed.
func (m *MomentumConfirmer) Trend(candles []domain.Candle, dir domain.Direction) bool {
	if len(candles) == 0 {
		return false
	}
	close := candles[len(candles)-1].Close

	vwap, vwapOK := indicator.VWAP(candles)
	ema, emaOK := indicator.EMA(candles, m.cfg.EMAPeriod)
	if !vwapOK || !emaOK {
		return false
	}

	switch dir {
	case domain.DirectionBullish:
		return close > vwap && close > ema
	case domain.DirectionBearish:
		return close < vwap && close < ema
	default:
		return false
	}
}
