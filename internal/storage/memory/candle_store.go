package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"squeezebot/internal/domain"
	"squeezebot/internal/storage"
)

// CandleStore is an in-memory implementation of storage.CandleStore.
type CandleStore struct {
	mu   sync.RWMutex
	data map[string]domain.Candle // keyed by symbol|timeframe|timestamp
}

// NewCandleStore creates a new in-memory candle store.
func NewCandleStore() *CandleStore {
	return &CandleStore{
		data: make(map[string]domain.Candle),
	}
}

func candleKey(symbol string, tf domain.Timeframe, ts time.Time) string {
	return fmt.Sprintf("%s|%s|%d", symbol, tf, ts.UnixNano())
}

// InsertBulk adds candles. Duplicate (symbol, timeframe, timestamp) rows
// fail the entire batch with ErrDuplicateKey.
func (s *CandleStore) InsertBulk(_ context.Context, candles []domain.Candle) error {
	if len(candles) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batchKeys := make(map[string]struct{}, len(candles))
	for _, c := range candles {
		if c.Symbol == "" || c.Timestamp.IsZero() {
			return storage.ErrInvalidInput
		}
		key := candleKey(c.Symbol, c.Timeframe, c.Timestamp)
		if _, exists := s.data[key]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[key]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[key] = struct{}{}
	}

	for _, c := range candles {
		s.data[candleKey(c.Symbol, c.Timeframe, c.Timestamp)] = c
	}

	return nil
}

// GetRange retrieves candles for (symbol, timeframe) within [start, end],
// ordered by timestamp ASC.
func (s *CandleStore) GetRange(_ context.Context, symbol string, tf domain.Timeframe, start, end time.Time) ([]domain.Candle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []domain.Candle
	for _, c := range s.data {
		if c.Symbol != symbol || c.Timeframe != tf {
			continue
		}
		if c.Timestamp.Before(start) || c.Timestamp.After(end) {
			continue
		}
		result = append(result, c)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Timestamp.Before(result[j].Timestamp)
	})

	return result, nil
}

var _ storage.CandleStore = (*CandleStore)(nil)
