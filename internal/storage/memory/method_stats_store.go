package memory

import (
	"context"
	"sync"

	"squeezebot/internal/domain"
	"squeezebot/internal/storage"
)

// MethodStatsStore is an in-memory implementation of storage.MethodStatsStore.
type MethodStatsStore struct {
	mu   sync.RWMutex
	data map[string][]domain.MethodStats // keyed by run ID
}

// NewMethodStatsStore creates a new in-memory method stats store.
func NewMethodStatsStore() *MethodStatsStore {
	return &MethodStatsStore{
		data: make(map[string][]domain.MethodStats),
	}
}

// InsertBulk adds one run's per-method stats rows. Returns ErrDuplicateKey
// if the run already has stats.
func (s *MethodStatsStore) InsertBulk(_ context.Context, runID string, stats []domain.MethodStats) error {
	if runID == "" {
		return storage.ErrInvalidInput
	}
	if len(stats) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[runID]; exists {
		return storage.ErrDuplicateKey
	}

	copied := make([]domain.MethodStats, len(stats))
	copy(copied, stats)
	s.data[runID] = copied
	return nil
}

// GetByRunID retrieves the stats rows for a run. Returns ErrNotFound if
// the run has no stats.
func (s *MethodStatsStore) GetByRunID(_ context.Context, runID string) ([]domain.MethodStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored, exists := s.data[runID]
	if !exists {
		return nil, storage.ErrNotFound
	}

	result := make([]domain.MethodStats, len(stored))
	copy(result, stored)
	return result, nil
}

var _ storage.MethodStatsStore = (*MethodStatsStore)(nil)
