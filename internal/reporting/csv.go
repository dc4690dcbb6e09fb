package reporting

import (
	"fmt"
	"strings"
	"time"

	"squeezebot/internal/domain"
)

// RenderSummaryCSV renders summary rows as a CSV string. The column order
// is frozen for downstream tooling.
func RenderSummaryCSV(rows []SummaryRow) string {
	var sb strings.Builder

	// Header
	sb.WriteString("Symbol_Period,Win Rate,Profit Factor,Max Drawdown,Total Trades,")
	sb.WriteString("Winning Trades,Losing Trades,Gross Profit,Gross Loss,")
	sb.WriteString("Final Equity,Optimal Trailing Method\n")

	// Rows
	for _, r := range rows {
		sb.WriteString(fmt.Sprintf("%s,%.2f,%.2f,%.2f,%d,%d,%d,%.2f,%.2f,%.2f,%s\n",
			r.SymbolPeriod,
			r.WinRate,
			r.ProfitFactor,
			r.MaxDrawdown,
			r.TotalTrades,
			r.WinningTrades,
			r.LosingTrades,
			r.GrossProfit,
			r.GrossLoss,
			r.FinalEquity,
			r.OptimalMethod,
		))
	}

	return sb.String()
}

// RenderEvaluationsCSV renders the record-per-candle table as a CSV string.
func RenderEvaluationsCSV(records []*domain.EvaluationRecord) string {
	var sb strings.Builder

	// Header
	sb.WriteString("run_id,symbol,candle_idx,timestamp,open,high,low,close,volume,")
	sb.WriteString("ema9,ema15,vwap,bb_width,stoch_k,stoch_d,atr,adx,")
	sb.WriteString("aligned,align_direction,align_score,compression_found,compression_dir,")
	sb.WriteString("compression_signals,momentum_aligned,trend_aligned,entry_signal,")
	sb.WriteString("trade_entered,trade_direction,equity,skip_reason\n")

	// Rows
	for _, r := range records {
		sb.WriteString(fmt.Sprintf("%s,%s,%d,%s,%.4f,%.4f,%.4f,%.4f,%.2f,%.4f,%.4f,%.4f,%.6f,%.2f,%.2f,%.4f,%.2f,%t,%s,%.2f,%t,%s,%d,%t,%t,%t,%t,%s,%.2f,%s\n",
			r.RunID,
			r.Symbol,
			r.CandleIdx,
			r.Timestamp.Format(time.RFC3339),
			r.Open,
			r.High,
			r.Low,
			r.Close,
			r.Volume,
			r.EMA9,
			r.EMA15,
			r.VWAP,
			r.BBWidth,
			r.StochK,
			r.StochD,
			r.ATR,
			r.ADX,
			r.Aligned,
			r.AlignDirection,
			r.AlignScore,
			r.CompressionFound,
			r.CompressionDir,
			r.CompressionSignals,
			r.MomentumAligned,
			r.TrendAligned,
			r.EntrySignal,
			r.TradeEntered,
			r.TradeDirection,
			r.Equity,
			r.SkipReason,
		))
	}

	return sb.String()
}

// RenderTradesCSV renders the record-per-trade table as a CSV string.
func RenderTradesCSV(trades []*domain.SimulatedTrade) string {
	var sb strings.Builder

	// Header
	sb.WriteString("trade_id,run_id,symbol,method,direction,entry_idx,entry_time,entry_price,")
	sb.WriteString("exit_idx,exit_time,exit_price,exit_reason,pnl_pct,pnl_dollars,contract_price\n")

	// Rows
	for _, t := range trades {
		sb.WriteString(fmt.Sprintf("%s,%s,%s,%s,%s,%d,%s,%.4f,%d,%s,%.4f,%s,%.2f,%.2f,%.4f\n",
			t.TradeID,
			t.RunID,
			t.Symbol,
			t.Method,
			t.Direction,
			t.EntryIdx,
			t.EntryTime.Format(time.RFC3339),
			t.EntryPrice,
			t.ExitIdx,
			t.ExitTime.Format(time.RFC3339),
			t.ExitPrice,
			t.ExitReason,
			t.PnLPct,
			t.PnLDollars,
			t.ContractPrice,
		))
	}

	return sb.String()
}
