package reporting

import (
	"context"
	"errors"
	"fmt"
	"time"

	"squeezebot/internal/domain"
	"squeezebot/internal/metrics"
	"squeezebot/internal/storage"
)

// ErrRunNotFound is returned when a run ID has no stored data.
var ErrRunNotFound = errors.New("run not found")

// Generator produces reports from stored backtest runs.
type Generator struct {
	evaluations storage.EvaluationStore
	trades      storage.SimulatedTradeStore
	stats       storage.MethodStatsStore
	now         func() time.Time // injectable clock for deterministic output
}

// NewGenerator creates a new report generator.
func NewGenerator(
	evaluations storage.EvaluationStore,
	trades storage.SimulatedTradeStore,
	stats storage.MethodStatsStore,
) *Generator {
	return &Generator{
		evaluations: evaluations,
		trades:      trades,
		stats:       stats,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// WithClock sets a custom clock function for deterministic output.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// Generate produces a complete report for one stored run.
func (g *Generator) Generate(ctx context.Context, runID, symbolPeriod string) (*Report, error) {
	// Load evaluation trace
	records, err := g.evaluations.GetByRunID(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("load evaluations: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("run %s: %w", runID, ErrRunNotFound)
	}

	// Load per-method stats; a run with zero entered signals has none
	statRows, err := g.stats.GetByRunID(ctx, runID)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("load method stats: %w", err)
	}

	optimal := domain.AllTrailingMethods[0]
	if len(statRows) > 0 {
		optimal = metrics.BestMethod(statRows, statRows[0].Method)
	}

	report := &Report{
		GeneratedAt:   g.now(),
		RunID:         runID,
		SymbolPeriod:  symbolPeriod,
		Funnel:        computeFunnel(records),
		MethodStats:   statRows,
		OptimalMethod: optimal,
		Summary:       buildSummaryRow(symbolPeriod, statRows, optimal),
	}

	return report, nil
}

// computeFunnel counts candles surviving each cascade stage.
func computeFunnel(records []*domain.EvaluationRecord) FunnelSection {
	f := FunnelSection{TotalCandles: len(records)}
	for _, r := range records {
		if r.Aligned {
			f.Aligned++
		}
		if r.CompressionFound {
			f.Compressed++
		}
		if r.MomentumAligned {
			f.MomentumPassed++
		}
		if r.TrendAligned {
			f.TrendPassed++
		}
		if r.EntrySignal {
			f.EntrySignals++
		}
		if r.TradeEntered {
			f.TradesEntered++
		}
	}
	return f
}

// buildSummaryRow builds the summary CSV row from the optimal method's
// stats. A run with no stats yields a zeroed row with the fallback method.
func buildSummaryRow(symbolPeriod string, stats []domain.MethodStats, optimal domain.TrailingMethod) SummaryRow {
	row := SummaryRow{
		SymbolPeriod:  symbolPeriod,
		OptimalMethod: optimal,
	}

	for _, s := range stats {
		if s.Method != optimal {
			continue
		}
		row.WinRate = s.WinRate
		row.ProfitFactor = s.ProfitFactor
		row.MaxDrawdown = s.MaxDrawdown
		row.TotalTrades = s.TotalTrades
		row.WinningTrades = s.WinningTrades
		row.LosingTrades = s.LosingTrades
		row.GrossProfit = s.GrossProfit
		row.GrossLoss = s.GrossLoss
		row.FinalEquity = s.FinalEquity
		break
	}

	return row
}

// RenderRunCSVs loads one run and renders all three CSV artifacts.
func (g *Generator) RenderRunCSVs(ctx context.Context, runID, symbolPeriod string) (evaluations, trades, summary string, err error) {
	records, err := g.evaluations.GetByRunID(ctx, runID)
	if err != nil {
		return "", "", "", fmt.Errorf("load evaluations: %w", err)
	}
	if len(records) == 0 {
		return "", "", "", fmt.Errorf("run %s: %w", runID, ErrRunNotFound)
	}

	tradeRows, err := g.trades.GetByRunID(ctx, runID)
	if err != nil {
		return "", "", "", fmt.Errorf("load trades: %w", err)
	}

	report, err := g.Generate(ctx, runID, symbolPeriod)
	if err != nil {
		return "", "", "", err
	}

	return RenderEvaluationsCSV(records),
		RenderTradesCSV(tradeRows),
		RenderSummaryCSV([]SummaryRow{report.Summary}),
		nil
}
