package decision

import (
	"context"
	"errors"

	"squeezebot/internal/metrics"
	"squeezebot/internal/storage"
)

// ErrNoStats is returned when a run has no persisted method stats.
var ErrNoStats = errors.New("no method stats for run")

// Builder grades a stored backtest run by loading its stats rows.
type Builder struct {
	stats     storage.MethodStatsStore
	evaluator *Evaluator
}

// NewBuilder creates a builder over the stats store.
func NewBuilder(stats storage.MethodStatsStore, evaluator *Evaluator) *Builder {
	return &Builder{stats: stats, evaluator: evaluator}
}

// Build loads a run's stats and grades every method. symbolPeriod
// labels the report; the optimal method is recomputed from the stored
// rows so the report stands alone.
func (b *Builder) Build(ctx context.Context, runID, symbolPeriod string, initialEquity float64) (*RunReport, error) {
	rows, err := b.stats.GetByRunID(ctx, runID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrNoStats
		}
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrNoStats
	}

	report := &RunReport{
		RunID:        runID,
		SymbolPeriod: symbolPeriod,
		Optimal:      string(metrics.BestMethod(rows, rows[0].Method)),
		Methods:      make([]MethodReport, 0, len(rows)),
	}
	for _, stats := range rows {
		report.Methods = append(report.Methods, b.evaluator.Grade(stats, initialEquity))
	}
	return report, nil
}
