// Package verification compares a live-recorded evaluation trace against
// a replayed trace over the same candles. Two matching traces demonstrate
// that both modes ran the same decision path.
package verification

import (
	"context"
	"math"

	"squeezebot/internal/domain"
)

// FloatTolerance is the tolerance for float64 comparisons.
const FloatTolerance = 1e-7

// FieldDivergence represents a mismatch between recorded and replayed values.
type FieldDivergence struct {
	Field    string      // field name
	Expected interface{} // recorded value
	Actual   interface{} // replayed value
}

// RecordResult contains the comparison outcome for one candle.
type RecordResult struct {
	CandleIdx   int               // candle index within the run
	Match       bool              // true if all fields match
	Divergences []FieldDivergence // list of divergent fields
}

// TraceReport contains results for comparing two full runs.
type TraceReport struct {
	RecordedRunID    string         // run the reference trace came from
	ReplayedRunID    string         // run being verified
	TotalRecords     int            // records compared
	MatchedRecords   int            // records that matched exactly
	DivergentRecords int            // records with divergences
	Results          []RecordResult // individual results
}

// Match reports whether every compared record matched.
func (r *TraceReport) Match() bool {
	return r.DivergentRecords == 0 && r.TotalRecords > 0
}

// Verifier compares evaluation traces.
type Verifier interface {
	// VerifyRecord compares a single pair of evaluation records.
	VerifyRecord(recorded, replayed *domain.EvaluationRecord) RecordResult

	// VerifyRuns compares two stored runs candle by candle.
	VerifyRuns(ctx context.Context, recordedRunID, replayedRunID string) (*TraceReport, error)
}

// CompareEvaluationRecords compares two evaluation records field by field.
// Returns empty slice if records match within tolerance. RunID is excluded:
// the two traces carry different run IDs by construction.
func CompareEvaluationRecords(recorded, replayed *domain.EvaluationRecord) []FieldDivergence {
	var divergences []FieldDivergence

	if recorded.Symbol != replayed.Symbol {
		divergences = append(divergences, FieldDivergence{
			Field:    "Symbol",
			Expected: recorded.Symbol,
			Actual:   replayed.Symbol,
		})
	}

	if recorded.CandleIdx != replayed.CandleIdx {
		divergences = append(divergences, FieldDivergence{
			Field:    "CandleIdx",
			Expected: recorded.CandleIdx,
			Actual:   replayed.CandleIdx,
		})
	}

	if !recorded.Timestamp.Equal(replayed.Timestamp) {
		divergences = append(divergences, FieldDivergence{
			Field:    "Timestamp",
			Expected: recorded.Timestamp,
			Actual:   replayed.Timestamp,
		})
	}

	// Candle values
	if !floatEquals(recorded.Open, replayed.Open) {
		divergences = append(divergences, FieldDivergence{
			Field:    "Open",
			Expected: recorded.Open,
			Actual:   replayed.Open,
		})
	}

	if !floatEquals(recorded.High, replayed.High) {
		divergences = append(divergences, FieldDivergence{
			Field:    "High",
			Expected: recorded.High,
			Actual:   replayed.High,
		})
	}

	if !floatEquals(recorded.Low, replayed.Low) {
		divergences = append(divergences, FieldDivergence{
			Field:    "Low",
			Expected: recorded.Low,
			Actual:   replayed.Low,
		})
	}

	if !floatEquals(recorded.Close, replayed.Close) {
		divergences = append(divergences, FieldDivergence{
			Field:    "Close",
			Expected: recorded.Close,
			Actual:   replayed.Close,
		})
	}

	if !floatEquals(recorded.Volume, replayed.Volume) {
		divergences = append(divergences, FieldDivergence{
			Field:    "Volume",
			Expected: recorded.Volume,
			Actual:   replayed.Volume,
		})
	}

	// Indicator values
	if !floatEquals(recorded.EMA9, replayed.EMA9) {
		divergences = append(divergences, FieldDivergence{
			Field:    "EMA9",
			Expected: recorded.EMA9,
			Actual:   replayed.EMA9,
		})
	}

	if !floatEquals(recorded.EMA15, replayed.EMA15) {
		divergences = append(divergences, FieldDivergence{
			Field:    "EMA15",
			Expected: recorded.EMA15,
			Actual:   replayed.EMA15,
		})
	}

	if !floatEquals(recorded.VWAP, replayed.VWAP) {
		divergences = append(divergences, FieldDivergence{
			Field:    "VWAP",
			Expected: recorded.VWAP,
			Actual:   replayed.VWAP,
		})
	}

	if !floatEquals(recorded.BBWidth, replayed.BBWidth) {
		divergences = append(divergences, FieldDivergence{
			Field:    "BBWidth",
			Expected: recorded.BBWidth,
			Actual:   replayed.BBWidth,
		})
	}

	if !floatEquals(recorded.StochK, replayed.StochK) {
		divergences = append(divergences, FieldDivergence{
			Field:    "StochK",
			Expected: recorded.StochK,
			Actual:   replayed.StochK,
		})
	}

	if !floatEquals(recorded.StochD, replayed.StochD) {
		divergences = append(divergences, FieldDivergence{
			Field:    "StochD",
			Expected: recorded.StochD,
			Actual:   replayed.StochD,
		})
	}

	if !floatEquals(recorded.ATR, replayed.ATR) {
		divergences = append(divergences, FieldDivergence{
			Field:    "ATR",
			Expected: recorded.ATR,
			Actual:   replayed.ATR,
		})
	}

	if !floatEquals(recorded.ADX, replayed.ADX) {
		divergences = append(divergences, FieldDivergence{
			Field:    "ADX",
			Expected: recorded.ADX,
			Actual:   replayed.ADX,
		})
	}

	// Decision cascade (critical for verification)
	if recorded.Aligned != replayed.Aligned {
		divergences = append(divergences, FieldDivergence{
			Field:    "Aligned",
			Expected: recorded.Aligned,
			Actual:   replayed.Aligned,
		})
	}

	if recorded.AlignDirection != replayed.AlignDirection {
		divergences = append(divergences, FieldDivergence{
			Field:    "AlignDirection",
			Expected: recorded.AlignDirection,
			Actual:   replayed.AlignDirection,
		})
	}

	if !floatEquals(recorded.AlignScore, replayed.AlignScore) {
		divergences = append(divergences, FieldDivergence{
			Field:    "AlignScore",
			Expected: recorded.AlignScore,
			Actual:   replayed.AlignScore,
		})
	}

	if recorded.CompressionFound != replayed.CompressionFound {
		divergences = append(divergences, FieldDivergence{
			Field:    "CompressionFound",
			Expected: recorded.CompressionFound,
			Actual:   replayed.CompressionFound,
		})
	}

	if recorded.CompressionDir != replayed.CompressionDir {
		divergences = append(divergences, FieldDivergence{
			Field:    "CompressionDir",
			Expected: recorded.CompressionDir,
			Actual:   replayed.CompressionDir,
		})
	}

	if recorded.CompressionSignals != replayed.CompressionSignals {
		divergences = append(divergences, FieldDivergence{
			Field:    "CompressionSignals",
			Expected: recorded.CompressionSignals,
			Actual:   replayed.CompressionSignals,
		})
	}

	if recorded.MomentumAligned != replayed.MomentumAligned {
		divergences = append(divergences, FieldDivergence{
			Field:    "MomentumAligned",
			Expected: recorded.MomentumAligned,
			Actual:   replayed.MomentumAligned,
		})
	}

	if recorded.TrendAligned != replayed.TrendAligned {
		divergences = append(divergences, FieldDivergence{
			Field:    "TrendAligned",
			Expected: recorded.TrendAligned,
			Actual:   replayed.TrendAligned,
		})
	}

	if recorded.EntrySignal != replayed.EntrySignal {
		divergences = append(divergences, FieldDivergence{
			Field:    "EntrySignal",
			Expected: recorded.EntrySignal,
			Actual:   replayed.EntrySignal,
		})
	}

	// Outcome
	if recorded.TradeEntered != replayed.TradeEntered {
		divergences = append(divergences, FieldDivergence{
			Field:    "TradeEntered",
			Expected: recorded.TradeEntered,
			Actual:   replayed.TradeEntered,
		})
	}

	if recorded.TradeDirection != replayed.TradeDirection {
		divergences = append(divergences, FieldDivergence{
			Field:    "TradeDirection",
			Expected: recorded.TradeDirection,
			Actual:   replayed.TradeDirection,
		})
	}

	if !floatEquals(recorded.Equity, replayed.Equity) {
		divergences = append(divergences, FieldDivergence{
			Field:    "Equity",
			Expected: recorded.Equity,
			Actual:   replayed.Equity,
		})
	}

	if recorded.SkipReason != replayed.SkipReason {
		divergences = append(divergences, FieldDivergence{
			Field:    "SkipReason",
			Expected: recorded.SkipReason,
			Actual:   replayed.SkipReason,
		})
	}

	return divergences
}

// floatEquals compares floats within FloatTolerance.
func floatEquals(a, b float64) bool {
	return math.Abs(a-b) < FloatTolerance
}
