package feed

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// StalenessMonitor tracks the last quote time per symbol and reports
// symbols whose feed has gone quiet past the threshold.
type StalenessMonitor struct {
	threshold time.Duration
	logger    zerolog.Logger

	mu       sync.Mutex
	lastSeen map[string]time.Time
}

// NewStalenessMonitor creates a monitor with the given threshold.
func NewStalenessMonitor(threshold time.Duration, logger zerolog.Logger) *StalenessMonitor {
	if threshold <= 0 {
		threshold = 60 * time.Second
	}
	return &StalenessMonitor{
		threshold: threshold,
		logger:    logger.With().Str("component", "staleness_monitor").Logger(),
		lastSeen:  make(map[string]time.Time),
	}
}

// Touch records quote activity for symbol at the given time.
func (m *StalenessMonitor) Touch(symbol string, at time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if prev, ok := m.lastSeen[symbol]; !ok || at.After(prev) {
		m.lastSeen[symbol] = at
	}
}

// Stale returns the symbols whose last quote is older than the
// threshold as of now, sorted order not guaranteed.
func (m *StalenessMonitor) Stale(now time.Time) []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	var stale []string
	for symbol, last := range m.lastSeen {
		if now.Sub(last) > m.threshold {
			stale = append(stale, symbol)
		}
	}
	return stale
}

// IsStale reports whether symbol has gone quiet. Unknown symbols are
// stale: no quote has ever arrived for them.
func (m *StalenessMonitor) IsStale(symbol string, now time.Time) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	last, ok := m.lastSeen[symbol]
	if !ok {
		return true
	}
	return now.Sub(last) > m.threshold
}

// LastSeen returns the last quote time for symbol and whether any
// quote has been recorded.
func (m *StalenessMonitor) LastSeen(symbol string) (time.Time, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	last, ok := m.lastSeen[symbol]
	return last, ok
}
