// Package metrics computes per-trailing-method performance aggregates
// from simulated backtest trades.
package metrics

import (
	"squeezebot/internal/domain"
)

// ComputeMethodStats calculates one method's stats row. trades must be
// pre-filtered to a single method and ordered by entry index ASC; the
// equity curve is rebuilt from the initial equity so order-dependent
// metrics (MaxDrawdown, FinalEquity) are deterministic.
func ComputeMethodStats(method domain.TrailingMethod, trades []*domain.SimulatedTrade, initialEquity float64) domain.MethodStats {
	stats := domain.MethodStats{
		Method:      method,
		FinalEquity: initialEquity,
	}
	if len(trades) == 0 {
		return stats
	}

	curve := make([]float64, 0, len(trades)+1)
	curve = append(curve, initialEquity)

	for _, t := range trades {
		if t.PnLPct > 0 {
			stats.WinningTrades++
			stats.GrossProfit += t.PnLDollars
		} else {
			stats.LosingTrades++
			stats.GrossLoss += -t.PnLDollars
		}
		curve = append(curve, curve[len(curve)-1]+t.PnLDollars)
	}

	stats.TotalTrades = len(trades)
	stats.WinRate = computeWinRate(stats.WinningTrades, stats.TotalTrades)
	stats.ProfitFactor = computeProfitFactor(stats.GrossProfit, stats.GrossLoss)
	stats.MaxDrawdown = MaxDrawdown(curve)
	stats.FinalEquity = curve[len(curve)-1]
	return stats
}

// computeWinRate calculates win rate as a percentage.
func computeWinRate(wins, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(wins) / float64(total) * 100
}

// computeProfitFactor divides gross profit by gross loss. A gross loss
// under one dollar is floored to one so a loss-free run stays finite.
func computeProfitFactor(grossProfit, grossLoss float64) float64 {
	if grossLoss < 1 {
		grossLoss = 1
	}
	return grossProfit / grossLoss
}

// MaxDrawdown calculates the worst peak-to-trough decline on an equity
// curve, as a percentage of the peak. The curve must be in
// chronological order.
func MaxDrawdown(curve []float64) float64 {
	if len(curve) == 0 {
		return 0
	}

	peak := curve[0]
	maxDD := 0.0
	for _, equity := range curve {
		if equity > peak {
			peak = equity
		}
		if peak > 0 {
			dd := (peak - equity) / peak * 100
			if dd > maxDD {
				maxDD = dd
			}
		}
	}
	return maxDD
}

// BestMethod picks the stats row with the highest profit factor. Ties
// keep the earlier row, so callers passing rows in the canonical
// simulation order get a deterministic winner. A run with no trades at
// all returns the fallback.
func BestMethod(stats []domain.MethodStats, fallback domain.TrailingMethod) domain.TrailingMethod {
	best := fallback
	bestPF := 0.0
	traded := false
	for _, s := range stats {
		if s.TotalTrades == 0 {
			continue
		}
		traded = true
		if s.ProfitFactor > bestPF {
			bestPF = s.ProfitFactor
			best = s.Method
		}
	}
	if !traded {
		return fallback
	}
	return best
}
