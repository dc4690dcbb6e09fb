package memory

import (
	"context"
	"sort"
	"sync"

	"squeezebot/internal/domain"
	"squeezebot/internal/storage"
)

// SimulatedTradeStore is an in-memory implementation of storage.SimulatedTradeStore.
type SimulatedTradeStore struct {
	mu   sync.RWMutex
	data map[string]*domain.SimulatedTrade // keyed by trade ID
}

// NewSimulatedTradeStore creates a new in-memory simulated trade store.
func NewSimulatedTradeStore() *SimulatedTradeStore {
	return &SimulatedTradeStore{
		data: make(map[string]*domain.SimulatedTrade),
	}
}

// InsertBulk adds simulated trades for a run. Fails the entire batch on
// any duplicate trade ID.
func (s *SimulatedTradeStore) InsertBulk(_ context.Context, trades []*domain.SimulatedTrade) error {
	if len(trades) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batchKeys := make(map[string]struct{}, len(trades))
	for _, t := range trades {
		if t == nil || t.TradeID == "" || t.RunID == "" {
			return storage.ErrInvalidInput
		}
		if _, exists := s.data[t.TradeID]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[t.TradeID]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[t.TradeID] = struct{}{}
	}

	for _, t := range trades {
		copy := *t
		s.data[t.TradeID] = &copy
	}

	return nil
}

// GetByRunID retrieves all simulated trades of a run ordered by entry
// index ASC, then method for stable ordering within an index.
func (s *SimulatedTradeStore) GetByRunID(_ context.Context, runID string) ([]*domain.SimulatedTrade, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.SimulatedTrade
	for _, t := range s.data {
		if t.RunID == runID {
			copy := *t
			result = append(result, &copy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].EntryIdx != result[j].EntryIdx {
			return result[i].EntryIdx < result[j].EntryIdx
		}
		return result[i].Method < result[j].Method
	})

	return result, nil
}

// GetByRunAndMethod retrieves one method's trades for a run, ordered by
// entry index ASC.
func (s *SimulatedTradeStore) GetByRunAndMethod(_ context.Context, runID string, method domain.TrailingMethod) ([]*domain.SimulatedTrade, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.SimulatedTrade
	for _, t := range s.data {
		if t.RunID == runID && t.Method == method {
			copy := *t
			result = append(result, &copy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].EntryIdx < result[j].EntryIdx
	})

	return result, nil
}

var _ storage.SimulatedTradeStore = (*SimulatedTradeStore)(nil)
