package metrics

import (
	"context"
	"errors"
	"sort"

	"squeezebot/internal/domain"
	"squeezebot/internal/storage"
)

// ErrNoTrades is returned when no simulated trades are available for
// aggregation.
var ErrNoTrades = errors.New("no trades available for aggregation")

// Aggregator recomputes per-method stats for a backtest run from the
// stored simulated trades. Used by the report command to regenerate
// summaries without re-running the backtest.
type Aggregator struct {
	trades storage.SimulatedTradeStore
	stats  storage.MethodStatsStore
}

// NewAggregator creates a metrics aggregator over the given stores.
func NewAggregator(trades storage.SimulatedTradeStore, stats storage.MethodStatsStore) *Aggregator {
	return &Aggregator{trades: trades, stats: stats}
}

// ComputeRun loads a run's simulated trades and computes one stats row
// per trailing method, in the canonical simulation order. Returns
// ErrNoTrades when the run has no simulated trades.
func (a *Aggregator) ComputeRun(ctx context.Context, runID string, initialEquity float64) ([]domain.MethodStats, error) {
	trades, err := a.trades.GetByRunID(ctx, runID)
	if err != nil {
		return nil, err
	}
	if len(trades) == 0 {
		return nil, ErrNoTrades
	}

	byMethod := make(map[domain.TrailingMethod][]*domain.SimulatedTrade, len(domain.AllTrailingMethods))
	for _, t := range trades {
		byMethod[t.Method] = append(byMethod[t.Method], t)
	}
	for _, group := range byMethod {
		sort.SliceStable(group, func(i, j int) bool {
			return group[i].EntryIdx < group[j].EntryIdx
		})
	}

	out := make([]domain.MethodStats, 0, len(domain.AllTrailingMethods))
	for _, method := range domain.AllTrailingMethods {
		out = append(out, ComputeMethodStats(method, byMethod[method], initialEquity))
	}
	return out, nil
}

// ComputeAndStore computes a run's stats and persists them. Returns
// storage.ErrDuplicateKey if the run already has stats rows.
func (a *Aggregator) ComputeAndStore(ctx context.Context, runID string, initialEquity float64) ([]domain.MethodStats, error) {
	stats, err := a.ComputeRun(ctx, runID, initialEquity)
	if err != nil {
		return nil, err
	}
	if err := a.stats.InsertBulk(ctx, runID, stats); err != nil {
		return nil, err
	}
	return stats, nil
}
