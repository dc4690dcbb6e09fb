package position

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"squeezebot/internal/domain"
	"squeezebot/internal/storage"
)

// Manager owns the position book. Writes go to the store first and the
// in-memory mirror second, so a crash between the two leaves the durable
// copy ahead of the mirror, never behind. At most one position per
// symbol is open at any time.
type Manager struct {
	store  storage.PositionStore
	logger zerolog.Logger

	mu     sync.RWMutex
	mirror map[string]*domain.Position
}

// NewManager creates a position manager backed by store.
func NewManager(store storage.PositionStore, logger zerolog.Logger) *Manager {
	return &Manager{
		store:  store,
		logger: logger.With().Str("component", "position_manager").Logger(),
		mirror: make(map[string]*domain.Position),
	}
}

// Restore loads open positions from the store into the mirror. Called
// once at startup before reconciliation.
func (m *Manager) Restore(ctx context.Context) error {
	open, err := m.store.GetOpen(ctx)
	if err != nil {
		return fmt.Errorf("load open positions: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.mirror = make(map[string]*domain.Position, len(open))
	for _, p := range open {
		m.mirror[p.Symbol] = p
	}

	m.logger.Info().Int("count", len(open)).Msg("position book restored")
	return nil
}

// Open records a new position. Returns storage.ErrDuplicateKey when the
// symbol already has one.
func (m *Manager) Open(ctx context.Context, p *domain.Position) error {
	if p == nil || p.Symbol == "" {
		return storage.ErrInvalidInput
	}

	if err := m.store.Add(ctx, p); err != nil {
		return fmt.Errorf("persist position: %w", err)
	}

	m.mu.Lock()
	copy := *p
	copy.Status = domain.PositionStatusOpen
	if copy.LastUpdate.IsZero() {
		copy.LastUpdate = copy.EntryTime
	}
	m.mirror[p.Symbol] = &copy
	m.mu.Unlock()

	m.logger.Info().
		Str("symbol", p.Symbol).
		Str("direction", string(p.Direction)).
		Float64("entry_price", p.EntryPrice).
		Msg("position opened")
	return nil
}

// UpdateStop persists a new trailing stop and last price for a symbol.
func (m *Manager) UpdateStop(ctx context.Context, symbol string, stopPrice, lastPrice float64) error {
	m.mu.RLock()
	current, exists := m.mirror[symbol]
	m.mu.RUnlock()
	if !exists {
		return storage.ErrNotFound
	}

	updated := *current
	updated.StopPrice = stopPrice
	updated.LastPrice = lastPrice
	updated.LastUpdate = time.Now().UTC()

	if err := m.store.Update(ctx, &updated); err != nil {
		return fmt.Errorf("persist stop update: %w", err)
	}

	m.mu.Lock()
	m.mirror[symbol] = &updated
	m.mu.Unlock()
	return nil
}

// Close marks the position closed and drops it from the mirror.
func (m *Manager) Close(ctx context.Context, symbol string, exitPrice float64, exitTime time.Time, reason string) error {
	if err := m.store.Close(ctx, symbol, exitPrice, exitTime, reason); err != nil {
		return fmt.Errorf("persist close: %w", err)
	}

	m.mu.Lock()
	delete(m.mirror, symbol)
	m.mu.Unlock()

	m.logger.Info().
		Str("symbol", symbol).
		Float64("exit_price", exitPrice).
		Str("reason", reason).
		Msg("position closed")
	return nil
}

// Get returns the open position for a symbol from the mirror.
func (m *Manager) Get(symbol string) (*domain.Position, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, exists := m.mirror[symbol]
	if !exists {
		return nil, false
	}
	copy := *p
	return &copy, true
}

// HasOpen reports whether a symbol currently holds a position.
func (m *Manager) HasOpen(symbol string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, exists := m.mirror[symbol]
	return exists
}

// OpenPositions returns the mirror's open positions.
func (m *Manager) OpenPositions() []*domain.Position {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*domain.Position, 0, len(m.mirror))
	for _, p := range m.mirror {
		copy := *p
		result = append(result, &copy)
	}
	return result
}

// Summary aggregates the current book.
func (m *Manager) Summary() domain.PositionSummary {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var s domain.PositionSummary
	for _, p := range m.mirror {
		s.OpenCount++
		switch p.Direction {
		case domain.DirectionBearish:
			s.BearishCount++
			s.TotalPnL += (p.EntryPrice - p.LastPrice) * float64(p.Quantity)
		default:
			s.BullishCount++
			s.TotalPnL += (p.LastPrice - p.EntryPrice) * float64(p.Quantity)
		}
	}
	return s
}

// ExportJSON writes the open book to path as indented JSON, replacing
// the file atomically via a temp-and-rename.
func (m *Manager) ExportJSON(path string) error {
	positions := m.OpenPositions()

	data, err := json.MarshalIndent(positions, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal positions: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write positions file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replace positions file: %w", err)
	}
	return nil
}

// IsNotFound reports whether err is the store's not-found sentinel.
func IsNotFound(err error) bool {
	return errors.Is(err, storage.ErrNotFound)
}
