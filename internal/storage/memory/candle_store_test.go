package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"squeezebot/internal/domain"
	"squeezebot/internal/storage"
)

func minuteCandles(symbol string, start time.Time, n int) []domain.Candle {
	out := make([]domain.Candle, n)
	for i := range out {
		out[i] = domain.Candle{
			Symbol:    symbol,
			Timeframe: domain.Timeframe1Min,
			Timestamp: start.Add(time.Duration(i) * time.Minute),
			Open:      100, High: 101, Low: 99, Close: 100.5, Volume: 1000,
		}
	}
	return out
}

func TestCandleStore_InsertAndRange(t *testing.T) {
	store := NewCandleStore()
	ctx := context.Background()
	start := time.Date(2024, 3, 12, 9, 30, 0, 0, time.UTC)

	if err := store.InsertBulk(ctx, minuteCandles("SPY", start, 10)); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}

	got, err := store.GetRange(ctx, "SPY", domain.Timeframe1Min, start.Add(2*time.Minute), start.Add(5*time.Minute))
	if err != nil {
		t.Fatalf("GetRange failed: %v", err)
	}
	if len(got) != 4 {
		t.Fatalf("Expected 4 candles, got %d", len(got))
	}
	for i := 1; i < len(got); i++ {
		if !got[i].Timestamp.After(got[i-1].Timestamp) {
			t.Error("Candles not ordered by timestamp")
		}
	}
}

func TestCandleStore_DuplicateTimestamp(t *testing.T) {
	store := NewCandleStore()
	ctx := context.Background()
	start := time.Date(2024, 3, 12, 9, 30, 0, 0, time.UTC)

	if err := store.InsertBulk(ctx, minuteCandles("SPY", start, 3)); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}

	err := store.InsertBulk(ctx, minuteCandles("SPY", start, 1))
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("Expected ErrDuplicateKey, got %v", err)
	}

	// Same timestamp for a different symbol is fine.
	if err := store.InsertBulk(ctx, minuteCandles("QQQ", start, 1)); err != nil {
		t.Errorf("Different symbol insert failed: %v", err)
	}
}

func TestCandleStore_TimeframeIsolation(t *testing.T) {
	store := NewCandleStore()
	ctx := context.Background()
	start := time.Date(2024, 3, 12, 9, 30, 0, 0, time.UTC)

	oneMin := minuteCandles("SPY", start, 3)
	fiveMin := minuteCandles("SPY", start, 3)
	for i := range fiveMin {
		fiveMin[i].Timeframe = domain.Timeframe5Min
	}

	if err := store.InsertBulk(ctx, oneMin); err != nil {
		t.Fatalf("1m insert failed: %v", err)
	}
	if err := store.InsertBulk(ctx, fiveMin); err != nil {
		t.Fatalf("5m insert failed: %v", err)
	}

	got, _ := store.GetRange(ctx, "SPY", domain.Timeframe5Min, start, start.Add(time.Hour))
	if len(got) != 3 {
		t.Errorf("Expected 3 candles for 5m timeframe, got %d", len(got))
	}
}
