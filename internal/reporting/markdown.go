package reporting

import (
	"fmt"
	"strings"
	"time"
)

// RenderMarkdown renders a run report as a Markdown string.
func RenderMarkdown(r *Report) string {
	var sb strings.Builder

	// Header
	sb.WriteString("# Backtest Report\n\n")
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", r.GeneratedAt.Format(time.RFC3339)))
	sb.WriteString(fmt.Sprintf("Run: %s | Series: %s\n\n", r.RunID, r.SymbolPeriod))

	// Signal funnel
	sb.WriteString("## Signal Funnel\n\n")
	sb.WriteString("| Stage | Candles |\n")
	sb.WriteString("|-------|--------|\n")
	sb.WriteString(fmt.Sprintf("| Evaluated | %d |\n", r.Funnel.TotalCandles))
	sb.WriteString(fmt.Sprintf("| Basket Aligned | %d |\n", r.Funnel.Aligned))
	sb.WriteString(fmt.Sprintf("| Compression Found | %d |\n", r.Funnel.Compressed))
	sb.WriteString(fmt.Sprintf("| Momentum Confirmed | %d |\n", r.Funnel.MomentumPassed))
	sb.WriteString(fmt.Sprintf("| Trend Confirmed | %d |\n", r.Funnel.TrendPassed))
	sb.WriteString(fmt.Sprintf("| Entry Signals | %d |\n", r.Funnel.EntrySignals))
	sb.WriteString(fmt.Sprintf("| Trades Entered | %d |\n", r.Funnel.TradesEntered))
	sb.WriteString("\n")

	// Per-method stats
	sb.WriteString("## Trailing Method Performance\n\n")
	if len(r.MethodStats) > 0 {
		sb.WriteString("| Method | Trades | Wins | Losses | WinRate | ProfitFactor | MaxDD | GrossProfit | GrossLoss | FinalEquity |\n")
		sb.WriteString("|--------|--------|------|--------|---------|--------------|-------|-------------|-----------|-------------|\n")
		for _, s := range r.MethodStats {
			sb.WriteString(fmt.Sprintf("| %s | %d | %d | %d | %.2f | %.2f | %.2f | %.2f | %.2f | %.2f |\n",
				s.Method, s.TotalTrades, s.WinningTrades, s.LosingTrades,
				s.WinRate, s.ProfitFactor, s.MaxDrawdown,
				s.GrossProfit, s.GrossLoss, s.FinalEquity))
		}
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("**Optimal trailing method: %s**\n", r.OptimalMethod))
	} else {
		sb.WriteString("No trades entered during this run.\n")
	}
	sb.WriteString("\n")

	return sb.String()
}
