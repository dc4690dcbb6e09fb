package signal

import (
	"squeezebot/internal/domain"
	"squeezebot/internal/indicator"
)

// CompressionConfig holds the thresholds of the 3-signal quorum.
type CompressionConfig struct {
	Window            int     // rolling window, default 20
	RequiredCount     int     // quorum, default 2
	BBWidthThreshold  float64 // default 0.05
	DonchianThreshold float64 // default 0.6
	VolumeThreshold   float64 // default 0.3
	EMAPeriod         int     // used for direction resolution
}

// CompressionDetector detects a volatility-contraction state from three
// independent boolean signals over a rolling candle window.
type CompressionDetector struct {
	cfg CompressionConfig
}

// NewCompressionDetector creates a detector with the given thresholds.
func NewCompressionDetector(cfg CompressionConfig) *CompressionDetector {
	return &CompressionDetector{cfg: cfg}
}

// Detect evaluates the quorum on the candle series. Signals that cannot
// be computed (insufficient data, zero middle band, no volume) count as
// false rather than failing the evaluation.
func (d *CompressionDetector) Detect(candles []domain.Candle) domain.CompressionResult {
	res := domain.CompressionResult{
		Direction:        domain.DirectionNeutral,
		BollingerSqueeze: d.bollingerSqueeze(candles),
		DonchianContract: d.donchianContraction(candles),
		VolumeSqueeze:    d.volumeSqueeze(candles),
	}

	for _, sig := range []bool{res.BollingerSqueeze, res.DonchianContract, res.VolumeSqueeze} {
		if sig {
			res.SignalCount++
		}
	}
	if res.SignalCount < d.cfg.RequiredCount {
		return res
	}

	res.Detected = true
	res.Direction = d.resolveDirection(candles)
	return res
}

func (d *CompressionDetector) bollingerSqueeze(candles []domain.Candle) bool {
	width, ok := indicator.BollingerWidth(candles, d.cfg.Window)
	if !ok {
		// Zero middle band or short series: treated as not compressed.
		return false
	}
	return width < d.cfg.BBWidthThreshold
}

// donchianContraction compares the current window range against the
// prior window. With fewer than two full windows of history the prior
// range is the running average of all rolling window ranges instead.
func (d *CompressionDetector) donchianContraction(candles []domain.Candle) bool {
	w := d.cfg.Window
	current, ok := indicator.DonchianRange(candles, w)
	if !ok {
		return false
	}

	var prior float64
	if len(candles) >= 2*w {
		prior, _ = indicator.DonchianRange(candles[:len(candles)-w], w)
	} else {
		if len(candles) <= w {
			return false
		}
		sum := 0.0
		count := 0
		for end := w; end <= len(candles); end++ {
			r, _ := indicator.DonchianRange(candles[:end], w)
			sum += r
			count++
		}
		prior = sum / float64(count)
	}

	if prior == 0 {
		return false
	}
	return current < prior*d.cfg.DonchianThreshold
}

func (d *CompressionDetector) volumeSqueeze(candles []domain.Candle) bool {
	if len(candles) < d.cfg.Window {
		return false
	}
	recent, ok := indicator.MeanVolume(candles, 5, 0)
	if !ok {
		return false
	}
	prior, ok := indicator.MeanVolume(candles, 20, 5)
	if !ok || prior == 0 {
		// No volume data: signal skipped.
		return false
	}
	return recent < prior*d.cfg.VolumeThreshold
}

// resolveDirection picks the breakout bias by priority: close vs VWAP,
// then close vs EMA, then the candle body. First available comparison wins.
func (d *CompressionDetector) resolveDirection(candles []domain.Candle) domain.Direction {
	last := candles[len(candles)-1]

	if vwap, ok := indicator.VWAP(candles); ok && last.Close != vwap {
		if last.Close > vwap {
			return domain.DirectionBullish
		}
		return domain.DirectionBearish
	}

	if ema, ok := indicator.EMA(candles, d.cfg.EMAPeriod); ok && last.Close != ema {
		if last.Close > ema {
			return domain.DirectionBullish
		}
		return domain.DirectionBearish
	}

	switch {
	case last.Close > last.Open:
		return domain.DirectionBullish
	case last.Close < last.Open:
		return domain.DirectionBearish
	default:
		return domain.DirectionNeutral
	}
}
