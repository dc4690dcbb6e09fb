package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"squeezebot/internal/domain"
	"squeezebot/internal/storage"
)

// PositionStore is an in-memory implementation of storage.PositionStore.
type PositionStore struct {
	mu      sync.RWMutex
	open    map[string]*domain.Position // keyed by symbol
	history []*domain.Position
}

// NewPositionStore creates a new in-memory position store.
func NewPositionStore() *PositionStore {
	return &PositionStore{
		open: make(map[string]*domain.Position),
	}
}

// Add creates a position for a symbol. Returns ErrDuplicateKey when a
// non-closed position for the symbol already exists.
func (s *PositionStore) Add(_ context.Context, p *domain.Position) error {
	if p == nil || p.Symbol == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.open[p.Symbol]; exists {
		return storage.ErrDuplicateKey
	}

	copy := *p
	copy.Status = domain.PositionStatusOpen
	if copy.CreatedAt.IsZero() {
		copy.CreatedAt = time.Now().UTC()
	}
	copy.LastUpdate = copy.CreatedAt
	s.open[p.Symbol] = &copy
	return nil
}

// Update replaces the stored position for the symbol. Returns ErrNotFound
// if no non-closed position exists.
func (s *PositionStore) Update(_ context.Context, p *domain.Position) error {
	if p == nil || p.Symbol == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, exists := s.open[p.Symbol]
	if !exists {
		return storage.ErrNotFound
	}

	copy := *p
	copy.Status = domain.PositionStatusOpen
	copy.CreatedAt = existing.CreatedAt
	copy.LastUpdate = time.Now().UTC()
	s.open[p.Symbol] = &copy
	return nil
}

// Close marks the position closed and moves it to history. Returns
// ErrNotFound if no non-closed position exists.
func (s *PositionStore) Close(_ context.Context, symbol string, exitPrice float64, exitTime time.Time, reason string) error {
	if symbol == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	p, exists := s.open[symbol]
	if !exists {
		return storage.ErrNotFound
	}

	p.Status = domain.PositionStatusClosed
	p.ExitPrice = exitPrice
	p.ExitTime = exitTime
	p.ExitReason = reason
	p.LastUpdate = time.Now().UTC()

	delete(s.open, symbol)
	s.history = append(s.history, p)
	return nil
}

// GetBySymbol retrieves the non-closed position for a symbol. Returns
// ErrNotFound if not exists.
func (s *PositionStore) GetBySymbol(_ context.Context, symbol string) (*domain.Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, exists := s.open[symbol]
	if !exists {
		return nil, storage.ErrNotFound
	}

	copy := *p
	return &copy, nil
}

// GetOpen retrieves all non-closed positions, ordered by symbol for
// deterministic iteration.
func (s *PositionStore) GetOpen(_ context.Context) ([]*domain.Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.Position, 0, len(s.open))
	for _, p := range s.open {
		copy := *p
		result = append(result, &copy)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Symbol < result[j].Symbol
	})

	return result, nil
}

// GetHistory retrieves closed positions, most recently closed first.
func (s *PositionStore) GetHistory(_ context.Context, limit int) ([]*domain.Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.Position, 0, len(s.history))
	for _, p := range s.history {
		copy := *p
		result = append(result, &copy)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].ExitTime.After(result[j].ExitTime)
	})

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}

	return result, nil
}

var _ storage.PositionStore = (*PositionStore)(nil)
