package indicator

import (
	"math"

	"squeezebot/internal/domain"
)

// HACandle is one Heiken-Ashi transformed candle.
type HACandle struct {
	Open  float64
	High  float64
	Low   float64
	Close float64
}

// Bullish reports whether the HA candle closed above its open.
func (h HACandle) Bullish() bool {
	return h.Close > h.Open
}

// LowerWick returns the distance between the HA open and low.
func (h HACandle) LowerWick() float64 {
	return math.Abs(h.Open - h.Low)
}

// UpperWick returns the distance between the HA high and open.
func (h HACandle) UpperWick() float64 {
	return math.Abs(h.High - h.Open)
}

// Range returns the HA high-low span.
func (h HACandle) Range() float64 {
	return h.High - h.Low
}

// HeikenAshi transforms a real candle series into Heiken-Ashi candles:
//
//	HA-close = (O+H+L+C)/4
//	HA-open  = (prior HA-open + prior HA-close)/2, seeded from the first
//	           real candle's (O+C)/2
//	HA-high  = max(H, HA-open, HA-close)
//	HA-low   = min(L, HA-open, HA-close)
func HeikenAshi(candles []domain.Candle) []HACandle {
	if len(candles) == 0 {
		return nil
	}

	out := make([]HACandle, len(candles))
	for i, c := range candles {
		haClose := (c.Open + c.High + c.Low + c.Close) / 4
		var haOpen float64
		if i == 0 {
			haOpen = (c.Open + c.Close) / 2
		} else {
			haOpen = (out[i-1].Open + out[i-1].Close) / 2
		}
		out[i] = HACandle{
			Open:  haOpen,
			High:  math.Max(c.High, math.Max(haOpen, haClose)),
			Low:   math.Min(c.Low, math.Min(haOpen, haClose)),
			Close: haClose,
		}
	}
	return out
}
