// Package reporting renders backtest runs as CSV and Markdown artifacts.
// The summary CSV column order is stable and consumed by downstream
// analysis tooling; changing it is a breaking change.
package reporting

import (
	"time"

	"squeezebot/internal/domain"
)

// Report represents one backtest run rendered for human and tool consumption.
type Report struct {
	// Metadata
	GeneratedAt  time.Time
	RunID        string
	SymbolPeriod string

	// Funnel counts over all evaluated candles
	Funnel FunnelSection

	// Per-method stat rows (canonical method order)
	MethodStats []domain.MethodStats

	// Optimal method and its stats, mirrored in the summary CSV
	OptimalMethod domain.TrailingMethod
	Summary       SummaryRow
}

// FunnelSection counts how many candles survived each cascade stage.
type FunnelSection struct {
	TotalCandles   int
	Aligned        int
	Compressed     int
	MomentumPassed int
	TrendPassed    int
	EntrySignals   int
	TradesEntered  int
}

// SummaryRow is one row of the summary CSV, built from the optimal
// method's stats.
type SummaryRow struct {
	SymbolPeriod  string
	WinRate       float64
	ProfitFactor  float64
	MaxDrawdown   float64
	TotalTrades   int
	WinningTrades int
	LosingTrades  int
	GrossProfit   float64
	GrossLoss     float64
	FinalEquity   float64
	OptimalMethod domain.TrailingMethod
}
