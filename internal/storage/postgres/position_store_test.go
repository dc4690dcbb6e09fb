package postgres_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"squeezebot/internal/domain"
	"squeezebot/internal/storage"
	"squeezebot/internal/storage/postgres"
)

func createTestPosition(symbol, tradeID string) *domain.Position {
	return &domain.Position{
		Symbol:         symbol,
		TradeID:        tradeID,
		Direction:      domain.DirectionBullish,
		Quantity:       1,
		EntryPrice:     501.25,
		EntryTime:      time.Date(2024, 3, 12, 10, 5, 0, 0, time.UTC),
		StopPrice:      499.80,
		TrailingMethod: domain.TrailingATR,
		LastPrice:      501.25,
	}
}

func TestPositionStore_AddAndGet(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := postgres.NewPositionStore(pool)

	pos := createTestPosition("SPY", "trade-001")
	require.NoError(t, store.Add(ctx, pos))

	retrieved, err := store.GetBySymbol(ctx, "SPY")
	require.NoError(t, err)

	assert.Equal(t, pos.TradeID, retrieved.TradeID)
	assert.Equal(t, pos.Direction, retrieved.Direction)
	assert.Equal(t, domain.PositionStatusOpen, retrieved.Status)
	assert.InDelta(t, pos.EntryPrice, retrieved.EntryPrice, 0.0001)
	assert.InDelta(t, pos.StopPrice, retrieved.StopPrice, 0.0001)
	assert.Equal(t, pos.TrailingMethod, retrieved.TrailingMethod)
	assert.True(t, retrieved.ExitTime.IsZero())
}

func TestPositionStore_OneOpenPerSymbol(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := postgres.NewPositionStore(pool)

	require.NoError(t, store.Add(ctx, createTestPosition("QQQ", "trade-001")))

	err := store.Add(ctx, createTestPosition("QQQ", "trade-002"))
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)
}

func TestPositionStore_CloseAndReopen(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := postgres.NewPositionStore(pool)

	require.NoError(t, store.Add(ctx, createTestPosition("TSLA", "trade-001")))

	exitTime := time.Date(2024, 3, 12, 15, 0, 0, 0, time.UTC)
	require.NoError(t, store.Close(ctx, "TSLA", 178.2, exitTime, domain.ExitReasonStopLoss))

	_, err := store.GetBySymbol(ctx, "TSLA")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	// The partial unique index only covers open rows, so the symbol is
	// free for a new position after close.
	require.NoError(t, store.Add(ctx, createTestPosition("TSLA", "trade-002")))

	history, err := store.GetHistory(ctx, 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "trade-001", history[0].TradeID)
	assert.Equal(t, domain.ExitReasonStopLoss, history[0].ExitReason)
	assert.InDelta(t, 178.2, history[0].ExitPrice, 0.0001)
}

func TestPositionStore_UpdateStop(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := postgres.NewPositionStore(pool)

	pos := createTestPosition("MSFT", "trade-001")
	require.NoError(t, store.Add(ctx, pos))

	pos.StopPrice = 500.9
	pos.LastPrice = 503.1
	require.NoError(t, store.Update(ctx, pos))

	retrieved, err := store.GetBySymbol(ctx, "MSFT")
	require.NoError(t, err)
	assert.InDelta(t, 500.9, retrieved.StopPrice, 0.0001)
	assert.InDelta(t, 503.1, retrieved.LastPrice, 0.0001)
}

func TestPositionStore_NotFound(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := postgres.NewPositionStore(pool)

	_, err := store.GetBySymbol(ctx, "NOPE")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	err = store.Update(ctx, createTestPosition("NOPE", "trade-001"))
	assert.ErrorIs(t, err, storage.ErrNotFound)

	err = store.Close(ctx, "NOPE", 100.0, time.Now(), domain.ExitReasonAutoClose)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestPositionStore_GetOpenOrdered(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := postgres.NewPositionStore(pool)

	for i, sym := range []string{"TSLA", "AAPL", "MSFT"} {
		p := createTestPosition(sym, "trade-00"+string(rune('1'+i)))
		require.NoError(t, store.Add(ctx, p))
	}

	open, err := store.GetOpen(ctx)
	require.NoError(t, err)
	require.Len(t, open, 3)
	assert.Equal(t, "AAPL", open[0].Symbol)
	assert.Equal(t, "MSFT", open[1].Symbol)
	assert.Equal(t, "TSLA", open[2].Symbol)
}

func TestPositionStore_InvalidInput(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := postgres.NewPositionStore(pool)

	err := store.Add(ctx, nil)
	if !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput, got %v", err)
	}
}
