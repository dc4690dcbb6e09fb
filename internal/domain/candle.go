package domain

import "time"

// Timeframe identifies the bar interval of a candle series.
type Timeframe string

// Supported timeframes.
const (
	Timeframe1Min  Timeframe = "1m"
	Timeframe5Min  Timeframe = "5m"
	Timeframe15Min Timeframe = "15m"
)

// Candle is one OHLCV bar. Immutable once produced; series are
// append-only and ordered by Timestamp per (symbol, timeframe).
type Candle struct {
	Symbol    string
	Timeframe Timeframe
	Timestamp time.Time
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
}

// Bullish reports whether the candle closed above its open.
func (c Candle) Bullish() bool {
	return c.Close > c.Open
}

// Quote is a live bid/ask update used for candle aggregation.
type Quote struct {
	Symbol    string
	Bid       float64
	Ask       float64
	Last      float64
	Volume    float64
	Timestamp time.Time
}

// Mid returns the bid/ask midpoint, falling back to Last when one side is missing.
func (q Quote) Mid() float64 {
	if q.Bid > 0 && q.Ask > 0 {
		return (q.Bid + q.Ask) / 2
	}
	return q.Last
}

// Closes extracts the close series from candles, oldest first.
func Closes(candles []Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Close
	}
	return out
}

// Volumes extracts the volume series from candles, oldest first.
func Volumes(candles []Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Volume
	}
	return out
}
