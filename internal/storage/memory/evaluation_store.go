package memory

import (
	"context"
	"sort"
	"sync"

	"squeezebot/internal/domain"
	"squeezebot/internal/storage"
)

// EvaluationStore is an in-memory implementation of storage.EvaluationStore.
type EvaluationStore struct {
	mu   sync.RWMutex
	data map[string][]*domain.EvaluationRecord // keyed by run ID
}

// NewEvaluationStore creates a new in-memory evaluation store.
func NewEvaluationStore() *EvaluationStore {
	return &EvaluationStore{
		data: make(map[string][]*domain.EvaluationRecord),
	}
}

// InsertBulk adds evaluation records for a run.
func (s *EvaluationStore) InsertBulk(_ context.Context, records []*domain.EvaluationRecord) error {
	if len(records) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range records {
		if r == nil || r.RunID == "" {
			return storage.ErrInvalidInput
		}
	}

	for _, r := range records {
		copy := *r
		s.data[r.RunID] = append(s.data[r.RunID], &copy)
	}

	return nil
}

// GetByRunID retrieves all records of a run ordered by candle index.
func (s *EvaluationStore) GetByRunID(_ context.Context, runID string) ([]*domain.EvaluationRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored := s.data[runID]
	result := make([]*domain.EvaluationRecord, 0, len(stored))
	for _, r := range stored {
		copy := *r
		result = append(result, &copy)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CandleIdx < result[j].CandleIdx
	})

	return result, nil
}

var _ storage.EvaluationStore = (*EvaluationStore)(nil)
