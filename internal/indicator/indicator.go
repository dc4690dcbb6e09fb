// Package indicator provides technical indicator calculations over
// ordered candle series. All functions are pure and stateless: they
// take candles oldest-first and return the most recent value, with
// ok=false when the series is too short to compute.
package indicator

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"squeezebot/internal/domain"
)

// EMA computes the exponential moving average of closes over period.
// Seeded with the SMA of the first period values.
func EMA(candles []domain.Candle, period int) (float64, bool) {
	if period < 1 || len(candles) < period {
		return 0, false
	}

	closes := domain.Closes(candles)
	return emaSeries(closes, period)
}

func emaSeries(values []float64, period int) (float64, bool) {
	if period < 1 || len(values) < period {
		return 0, false
	}

	ema := stat.Mean(values[:period], nil)
	k := 2.0 / float64(period+1)
	for _, v := range values[period:] {
		ema = v*k + ema*(1-k)
	}
	return ema, true
}

// VWAP computes the volume-weighted average price using the typical
// price (H+L+C)/3. Returns ok=false when total volume is zero.
func VWAP(candles []domain.Candle) (float64, bool) {
	if len(candles) == 0 {
		return 0, false
	}

	var pv, vol float64
	for _, c := range candles {
		typical := (c.High + c.Low + c.Close) / 3
		pv += typical * c.Volume
		vol += c.Volume
	}
	if vol == 0 {
		return 0, false
	}
	return pv / vol, true
}

// BollingerWidth computes (upper-lower)/middle for a period-length
// window with 2 standard deviation bands. A zero middle band cannot be
// normalized; ok=false lets the caller apply its documented default.
func BollingerWidth(candles []domain.Candle, period int) (float64, bool) {
	if period < 2 || len(candles) < period {
		return 0, false
	}

	window := domain.Closes(candles[len(candles)-period:])
	middle := stat.Mean(window, nil)
	if middle == 0 {
		return 0, false
	}
	sd := stat.StdDev(window, nil)
	// Population stddev, matching the usual Bollinger definition.
	sd *= math.Sqrt(float64(period-1) / float64(period))
	return (4 * sd) / middle, true
}

// Stochastic computes the smoothed %K and %D oscillator values.
// Raw %K = 100*(close-lowestLow)/(highestHigh-lowestLow) over kPeriod,
// smoothed by an SMA of length smooth; %D is the SMA of %K over dPeriod.
func Stochastic(candles []domain.Candle, kPeriod, dPeriod, smooth int) (k, d float64, ok bool) {
	if kPeriod < 1 || dPeriod < 1 || smooth < 1 {
		return 0, 0, false
	}
	need := kPeriod + smooth + dPeriod - 2
	if len(candles) < need {
		return 0, 0, false
	}

	rawK := func(end int) float64 {
		lo := math.Inf(1)
		hi := math.Inf(-1)
		for _, c := range candles[end-kPeriod+1 : end+1] {
			lo = math.Min(lo, c.Low)
			hi = math.Max(hi, c.High)
		}
		if hi == lo {
			return 50
		}
		return 100 * (candles[end].Close - lo) / (hi - lo)
	}

	smoothK := func(end int) float64 {
		sum := 0.0
		for i := 0; i < smooth; i++ {
			sum += rawK(end - i)
		}
		return sum / float64(smooth)
	}

	last := len(candles) - 1
	k = smoothK(last)

	dSum := 0.0
	for i := 0; i < dPeriod; i++ {
		dSum += smoothK(last - i)
	}
	d = dSum / float64(dPeriod)
	return k, d, true
}

// ATR computes the average true range over period using Wilder's
// smoothing, seeded with the simple mean of the first period TRs.
func ATR(candles []domain.Candle, period int) (float64, bool) {
	if period < 1 || len(candles) < period+1 {
		return 0, false
	}

	trs := trueRanges(candles)
	atr := stat.Mean(trs[:period], nil)
	for _, tr := range trs[period:] {
		atr = (atr*float64(period-1) + tr) / float64(period)
	}
	return atr, true
}

func trueRanges(candles []domain.Candle) []float64 {
	trs := make([]float64, 0, len(candles)-1)
	for i := 1; i < len(candles); i++ {
		cur, prev := candles[i], candles[i-1]
		tr := math.Max(cur.High-cur.Low,
			math.Max(math.Abs(cur.High-prev.Close), math.Abs(cur.Low-prev.Close)))
		trs = append(trs, tr)
	}
	return trs
}

// ADX computes the average directional index over period using
// Wilder's smoothing of +DI/-DI.
func ADX(candles []domain.Candle, period int) (float64, bool) {
	if period < 1 || len(candles) < 2*period+1 {
		return 0, false
	}

	n := len(candles) - 1
	plusDM := make([]float64, n)
	minusDM := make([]float64, n)
	trs := trueRanges(candles)
	for i := 1; i < len(candles); i++ {
		up := candles[i].High - candles[i-1].High
		down := candles[i-1].Low - candles[i].Low
		if up > down && up > 0 {
			plusDM[i-1] = up
		}
		if down > up && down > 0 {
			minusDM[i-1] = down
		}
	}

	wilder := func(vals []float64) []float64 {
		out := make([]float64, len(vals))
		sum := 0.0
		for i := 0; i < period; i++ {
			sum += vals[i]
		}
		out[period-1] = sum
		for i := period; i < len(vals); i++ {
			out[i] = out[i-1] - out[i-1]/float64(period) + vals[i]
		}
		return out
	}

	smTR := wilder(trs)
	smPlus := wilder(plusDM)
	smMinus := wilder(minusDM)

	dxs := make([]float64, 0, n-period+1)
	for i := period - 1; i < n; i++ {
		if smTR[i] == 0 {
			dxs = append(dxs, 0)
			continue
		}
		pdi := 100 * smPlus[i] / smTR[i]
		mdi := 100 * smMinus[i] / smTR[i]
		if pdi+mdi == 0 {
			dxs = append(dxs, 0)
			continue
		}
		dxs = append(dxs, 100*math.Abs(pdi-mdi)/(pdi+mdi))
	}

	if len(dxs) < period {
		return 0, false
	}
	adx := stat.Mean(dxs[:period], nil)
	for _, dx := range dxs[period:] {
		adx = (adx*float64(period-1) + dx) / float64(period)
	}
	return adx, true
}

// DonchianRange returns the high-low range of the last period candles.
func DonchianRange(candles []domain.Candle, period int) (float64, bool) {
	if period < 1 || len(candles) < period {
		return 0, false
	}

	lo := math.Inf(1)
	hi := math.Inf(-1)
	for _, c := range candles[len(candles)-period:] {
		lo = math.Min(lo, c.Low)
		hi = math.Max(hi, c.High)
	}
	return hi - lo, true
}

// MeanVolume returns the mean volume of candles[from:to] (slice indexes
// counted from the end: from=5,to=0 means the last five candles).
func MeanVolume(candles []domain.Candle, from, to int) (float64, bool) {
	n := len(candles)
	if from <= to || n < from {
		return 0, false
	}
	window := domain.Volumes(candles[n-from : n-to])
	return stat.Mean(window, nil), true
}
