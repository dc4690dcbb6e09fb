// Package exit implements the priority-ordered exit evaluator for open
// trades. Conditions are checked in fixed order on every update; the
// first true condition wins the tick.
package exit

import (
	"time"

	"squeezebot/internal/domain"
	"squeezebot/internal/indicator"
	"squeezebot/internal/session"
	"squeezebot/internal/signal"
)

// Config holds the exit thresholds.
type Config struct {
	MinProfitBeforeHA float64 // HA reversal suppressed under this profit, default 0.005
	LossGuardPct      float64 // ...unless loss exceeds this guard, default -0.001
	StochExtremeUpper float64 // default 85
	StochExtremeLower float64 // default 15
	StochKPeriod      int
	StochDPeriod      int
	StochSmooth       int
	EMAPeriod         int
	FailsafeMinutes   int
}

// Verdict is the outcome of one evaluation tick.
type Verdict struct {
	Exit   bool
	Reason string
}

// Evaluator checks exit conditions for open trades.
type Evaluator struct {
	cfg         Config
	compression *signal.CompressionDetector
	rules       *session.Rules
}

// NewEvaluator creates an exit evaluator. compression detects re-entry
// into a fresh compression zone; rules provides the auto-close window.
func NewEvaluator(cfg Config, compression *signal.CompressionDetector, rules *session.Rules) *Evaluator {
	return &Evaluator{cfg: cfg, compression: compression, rules: rules}
}

// Check runs the priority chain for an open trade against the latest
// candle. candles is the full ordered history including the current bar.
func (e *Evaluator) Check(tr *domain.Trade, candles []domain.Candle, now time.Time) Verdict {
	if len(candles) == 0 {
		return Verdict{}
	}
	last := candles[len(candles)-1]

	// 1. Stop price touched.
	if e.stopTouched(tr, last) {
		return Verdict{Exit: true, Reason: domain.ExitReasonStopLoss}
	}

	// 2. Opposing Heiken-Ashi reversal, suppressed near breakeven.
	if e.haReversal(tr, candles, last.Close) {
		return Verdict{Exit: true, Reason: domain.ExitReasonHAReversal}
	}

	// 3. Stochastic extreme with a cross against the position.
	if e.stochCross(tr, candles) {
		return Verdict{Exit: true, Reason: domain.ExitReasonStochCross}
	}

	// 4. Close beyond both VWAP and EMA against the position.
	if e.trendBreak(tr, candles, last.Close) {
		return Verdict{Exit: true, Reason: domain.ExitReasonTrendBreak}
	}

	// 5. Fresh compression zone.
	if e.compression != nil && e.compression.Detect(candles).Detected {
		return Verdict{Exit: true, Reason: domain.ExitReasonRecompression}
	}

	// 6. Failsafe holding time.
	if session.HoldingExceeded(tr.EntryTime, now, e.cfg.FailsafeMinutes) {
		return Verdict{Exit: true, Reason: domain.ExitReasonFailsafe}
	}

	// 7. Session auto-close window.
	if e.rules != nil && e.rules.ShouldAutoClose(now) {
		return Verdict{Exit: true, Reason: domain.ExitReasonAutoClose}
	}

	return Verdict{}
}

func (e *Evaluator) stopTouched(tr *domain.Trade, last domain.Candle) bool {
	stop := tr.Stop.CurrentStop
	if stop == 0 {
		return false
	}
	if tr.Direction == domain.DirectionBearish {
		return last.High >= stop
	}
	return last.Low <= stop
}

// haReversal fires on an opposing Heiken-Ashi candle, but only outside
// the breakeven whipsaw band: current profit must reach the minimum or
// the loss must exceed the guard.
func (e *Evaluator) haReversal(tr *domain.Trade, candles []domain.Candle, close float64) bool {
	if len(candles) < 2 || tr.EntryPrice == 0 {
		return false
	}

	pnlPct := tr.OpenPnL(close) / tr.EntryPrice
	if pnlPct < e.cfg.MinProfitBeforeHA && pnlPct > e.cfg.LossGuardPct {
		return false
	}

	ha := indicator.HeikenAshi(candles)
	last := ha[len(ha)-1]
	if tr.Direction == domain.DirectionBearish {
		return last.Bullish()
	}
	return last.Close < last.Open
}

// stochCross fires when %K is in the extreme zone and crosses %D
// against the position on this tick.
func (e *Evaluator) stochCross(tr *domain.Trade, candles []domain.Candle) bool {
	k, d, ok := indicator.Stochastic(candles, e.cfg.StochKPeriod, e.cfg.StochDPeriod, e.cfg.StochSmooth)
	if !ok {
		return false
	}
	prevK, prevD, ok := indicator.Stochastic(candles[:len(candles)-1], e.cfg.StochKPeriod, e.cfg.StochDPeriod, e.cfg.StochSmooth)
	if !ok {
		return false
	}

	if tr.Direction == domain.DirectionBearish {
		return k < e.cfg.StochExtremeLower && prevK < prevD && k > d
	}
	return k > e.cfg.StochExtremeUpper && prevK > prevD && k < d
}

func (e *Evaluator) trendBreak(tr *domain.Trade, candles []domain.Candle, close float64) bool {
	vwap, vwapOK := indicator.VWAP(candles)
	ema, emaOK := indicator.EMA(candles, e.cfg.EMAPeriod)
	if !vwapOK || !emaOK {
		return false
	}

	if tr.Direction == domain.DirectionBearish {
		return close > vwap && close > ema
	}
	return close < vwap && close < ema
}
