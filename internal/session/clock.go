// Package session provides the trading-clock abstraction and the
// wall-clock window rules (no-trade window, cutoff, auto-close). Both
// execution modes share the same rules; backtests drive them with a
// simulated clock so replay stays deterministic.
package session

import "time"

// Clock abstracts time so live and replay execution share one code path.
type Clock interface {
	Now() time.Time
}

// RealClock reads the system clock.
type RealClock struct{}

// Now implements Clock.
func (RealClock) Now() time.Time { return time.Now() }

// SimClock is a settable clock advanced by the backtest driver.
type SimClock struct {
	current time.Time
}

// NewSimClock creates a simulated clock starting at t.
func NewSimClock(t time.Time) *SimClock {
	return &SimClock{current: t}
}

// Now implements Clock.
func (c *SimClock) Now() time.Time { return c.current }

// Set moves the simulated clock to t.
func (c *SimClock) Set(t time.Time) { c.current = t }

// Compile-time interface checks.
var (
	_ Clock = RealClock{}
	_ Clock = (*SimClock)(nil)
)
