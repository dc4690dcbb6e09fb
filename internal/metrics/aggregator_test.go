package metrics

import (
	"context"
	"errors"
	"testing"

	"squeezebot/internal/domain"
	"squeezebot/internal/storage"
	"squeezebot/internal/storage/memory"
)

func TestAggregator_ComputeRun(t *testing.T) {
	ctx := context.Background()
	trades := memory.NewSimulatedTradeStore()
	stats := memory.NewMethodStatsStore()

	err := trades.InsertBulk(ctx, []*domain.SimulatedTrade{
		{TradeID: "a", RunID: "run-1", Method: domain.TrailingATR, EntryIdx: 20, PnLPct: 2, PnLDollars: 200},
		{TradeID: "b", RunID: "run-1", Method: domain.TrailingATR, EntryIdx: 40, PnLPct: -1, PnLDollars: -100},
		{TradeID: "c", RunID: "run-1", Method: domain.TrailingEMA, EntryIdx: 20, PnLPct: 3, PnLDollars: 300},
	})
	if err != nil {
		t.Fatalf("insert trades: %v", err)
	}

	agg := NewAggregator(trades, stats)
	rows, err := agg.ComputeRun(ctx, "run-1", 10000)
	if err != nil {
		t.Fatalf("ComputeRun: %v", err)
	}

	if len(rows) != len(domain.AllTrailingMethods) {
		t.Fatalf("expected %d rows, got %d", len(domain.AllTrailingMethods), len(rows))
	}
	for i, method := range domain.AllTrailingMethods {
		if rows[i].Method != method {
			t.Errorf("row %d: expected method %s, got %s", i, method, rows[i].Method)
		}
	}

	byMethod := make(map[domain.TrailingMethod]domain.MethodStats)
	for _, r := range rows {
		byMethod[r.Method] = r
	}
	atr := byMethod[domain.TrailingATR]
	if atr.TotalTrades != 2 || atr.WinningTrades != 1 {
		t.Errorf("ATR: expected 2 trades 1 win, got %d/%d", atr.TotalTrades, atr.WinningTrades)
	}
	if atr.FinalEquity != 10100 {
		t.Errorf("ATR: expected final equity 10100, got %f", atr.FinalEquity)
	}
	ema := byMethod[domain.TrailingEMA]
	if ema.TotalTrades != 1 || ema.GrossProfit != 300 {
		t.Errorf("EMA: unexpected stats %+v", ema)
	}
	if fixed := byMethod[domain.TrailingFixed]; fixed.TotalTrades != 0 {
		t.Errorf("Fixed: expected 0 trades, got %d", fixed.TotalTrades)
	}
}

func TestAggregator_ComputeRun_NoTrades(t *testing.T) {
	agg := NewAggregator(memory.NewSimulatedTradeStore(), memory.NewMethodStatsStore())

	_, err := agg.ComputeRun(context.Background(), "missing-run", 10000)
	if !errors.Is(err, ErrNoTrades) {
		t.Fatalf("expected ErrNoTrades, got %v", err)
	}
}

func TestAggregator_ComputeAndStore_Duplicate(t *testing.T) {
	ctx := context.Background()
	trades := memory.NewSimulatedTradeStore()
	stats := memory.NewMethodStatsStore()

	err := trades.InsertBulk(ctx, []*domain.SimulatedTrade{
		{TradeID: "a", RunID: "run-1", Method: domain.TrailingATR, EntryIdx: 20, PnLPct: 2, PnLDollars: 200},
	})
	if err != nil {
		t.Fatalf("insert trades: %v", err)
	}

	agg := NewAggregator(trades, stats)
	if _, err := agg.ComputeAndStore(ctx, "run-1", 10000); err != nil {
		t.Fatalf("first ComputeAndStore: %v", err)
	}
	_, err = agg.ComputeAndStore(ctx, "run-1", 10000)
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Fatalf("expected ErrDuplicateKey, got %v", err)
	}
}
