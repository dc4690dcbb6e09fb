package domain

import "time"

// AlignmentResult is the outcome of the basket consensus vote.
// Invariant: Aligned iff Score >= threshold AND Direction != neutral.
type AlignmentResult struct {
	Aligned   bool
	Direction Direction
	Score     float64    // combined weight % (sector) or aligned-count % (mega-cap)
	Mode      BasketMode // which vote produced this result
}

// CompressionResult is the outcome of the 3-signal volatility quorum.
// Invariant: Detected iff SignalCount >= required quorum.
type CompressionResult struct {
	Detected    bool
	Direction   Direction
	SignalCount int // contributing signals, 0..3

	// Individual contributors, kept for the evaluation trace.
	BollingerSqueeze bool
	DonchianContract bool
	VolumeSqueeze    bool
}

// Skip reasons recorded on the first failing cascade stage.
const (
	SkipWarmup             = "Warmup period"
	SkipEndOfData          = "End of data"
	SkipNoAlignment        = "No sector alignment"
	SkipNoMegaCapAlignment = "No mega-cap alignment"
	SkipNoCompression      = "No compression or direction mismatch"
	SkipNoMomentum         = "Momentum not aligned"
	SkipNoTrend            = "Trend not aligned"
	SkipNoVolumeSpike      = "No volume spike"
	SkipLowADX             = "ADX below minimum"
	SkipNoEntry            = "No entry signal"
	SkipTradeOpen          = "Trade already open"
	SkipNoTradeWindow      = "Inside no-trade window"
	SkipAfterCutoff        = "After cutoff time"
	SkipStaleData          = "Stale market data"
)

// TradeSignal is the full audit record of one cascade evaluation.
// Produced once per evaluated candle; evaluation short-circuits at the
// first failing stage and records why in SkipReason.
type TradeSignal struct {
	Symbol    string
	Direction Direction
	Timestamp time.Time

	Alignment   AlignmentResult
	Compression CompressionResult
	MomentumOK  bool
	TrendOK     bool
	VolumeOK    bool
	ADXOK       bool
	EntryOK     bool

	SkipReason string // empty when every stage passed
}

// Tradeable reports whether the cascade completed with every stage passing.
func (s TradeSignal) Tradeable() bool {
	return s.EntryOK && s.SkipReason == ""
}
