package domain

import "time"

// EvaluationRecord is one row of the record-per-candle backtest trace.
// Every evaluated candle produces exactly one record carrying the full
// cascade intermediate values, so downstream analysis can see why an
// entry did or did not happen. The column set is a stable schema.
type EvaluationRecord struct {
	RunID     string
	Symbol    string
	CandleIdx int
	Timestamp time.Time

	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64

	EMA9    float64
	EMA15   float64
	VWAP    float64
	BBWidth float64
	StochK  float64
	StochD  float64
	ATR     float64
	ADX     float64

	Aligned            bool
	AlignDirection     Direction
	AlignScore         float64
	CompressionFound   bool
	CompressionDir     Direction
	CompressionSignals int
	MomentumAligned    bool
	TrendAligned       bool
	EntrySignal        bool

	TradeEntered   bool
	TradeDirection Direction
	Equity         float64
	SkipReason     string
}

// SimulatedTrade is one row of the record-per-trade backtest table: a
// single entered signal simulated under one trailing method.
type SimulatedTrade struct {
	TradeID   string
	RunID     string
	Symbol    string
	Method    TrailingMethod
	Direction Direction

	EntryIdx   int
	EntryTime  time.Time
	EntryPrice float64

	ExitIdx   int
	ExitTime  time.Time
	ExitPrice float64

	ExitReason    string
	PnLPct        float64
	PnLDollars    float64
	ContractPrice float64
}

// MethodStats aggregates per-trailing-method performance for one run.
type MethodStats struct {
	Method        TrailingMethod
	TotalTrades   int
	WinningTrades int
	LosingTrades  int
	WinRate       float64
	GrossProfit   float64
	GrossLoss     float64
	ProfitFactor  float64
	MaxDrawdown   float64
	FinalEquity   float64
}

// RunSummary is the per-run backtest summary row, including the
// best-performing trailing method for the run.
type RunSummary struct {
	RunID         string
	SymbolPeriod  string
	Stats         []MethodStats
	OptimalMethod TrailingMethod
}
