// Package signal implements the cascading setup-detection pipeline:
// basket status tracking, directional alignment, volatility compression,
// momentum/trend confirmation, and the Heiken-Ashi entry trigger.
package signal

import (
	"sync"

	"gonum.org/v1/gonum/stat"

	"squeezebot/internal/domain"
)

// statusPeriods is the lookback of the mean-deviation classification test.
const statusPeriods = 5

// Tracker maintains per-member basket status from streamed closes.
// Safe for concurrent use; live update callbacks and the evaluation
// worker may touch it from different goroutines.
type Tracker struct {
	mu      sync.RWMutex
	delta   float64
	weights map[string]float64
	order   []string
	closes  map[string][]float64
}

// NewTracker creates a basket tracker. weights may be nil in mega-cap
// mode; delta is the classification deviation.
func NewTracker(symbols []string, weights map[string]float64, delta float64) *Tracker {
	t := &Tracker{
		delta:   delta,
		weights: make(map[string]float64, len(symbols)),
		order:   make([]string, len(symbols)),
		closes:  make(map[string][]float64, len(symbols)),
	}
	copy(t.order, symbols)
	for _, s := range symbols {
		t.weights[s] = weights[s]
		t.closes[s] = nil
	}
	return t
}

// Update records a new close for a basket member. Unknown symbols are
// ignored.
func (t *Tracker) Update(symbol string, close float64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	history, ok := t.closes[symbol]
	if !ok {
		return
	}
	history = append(history, close)
	if len(history) > statusPeriods {
		history = history[len(history)-statusPeriods:]
	}
	t.closes[symbol] = history
}

// Members returns the current snapshot of basket statuses. Members with
// fewer than five closes are marked not Ready and are excluded from the
// alignment vote rather than counted as neutral.
func (t *Tracker) Members() []domain.BasketMember {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]domain.BasketMember, 0, len(t.order))
	for _, sym := range t.order {
		m := domain.BasketMember{
			Symbol: sym,
			Weight: t.weights[sym],
			Status: domain.DirectionNeutral,
		}
		history := t.closes[sym]
		if len(history) >= statusPeriods {
			m.Ready = true
			m.Status = classify(history[len(history)-1], history, t.delta)
		}
		out = append(out, m)
	}
	return out
}

// classify applies the mean-deviation test: bullish above mean*(1+delta),
// bearish below mean*(1-delta), neutral inside the band.
func classify(close float64, history []float64, delta float64) domain.Direction {
	mean := stat.Mean(history, nil)
	switch {
	case close > mean*(1+delta):
		return domain.DirectionBullish
	case close < mean*(1-delta):
		return domain.DirectionBearish
	default:
		return domain.DirectionNeutral
	}
}
