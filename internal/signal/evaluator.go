package signal

import (
	"time"

	"github.com/rs/zerolog"

	"squeezebot/internal/domain"
	"squeezebot/internal/indicator"
)

// EvaluatorConfig holds the optional entry filters applied between
// trend confirmation and the entry trigger.
type EvaluatorConfig struct {
	VolumeSpikeFilter bool
	VolumeSpikeMult   float64 // default 1.5
	ADXFilter         bool
	ADXMinimum        float64 // default 20
	ADXPeriod         int
}

// Evaluator runs the full cascade for one symbol and produces the
// TradeSignal audit record. Evaluation short-circuits at the first
// failing stage; SkipReason records which one.
type Evaluator struct {
	cfg         EvaluatorConfig
	compression *CompressionDetector
	momentum    *MomentumConfirmer
	entry       *EntryTrigger
	log         zerolog.Logger
}

// EvaluatorOptions wires the cascade stages together.
type EvaluatorOptions struct {
	Config      EvaluatorConfig
	Compression *CompressionDetector
	Momentum    *MomentumConfirmer
	Entry       *EntryTrigger
	Logger      zerolog.Logger
}

// NewEvaluator creates a cascade evaluator.
func NewEvaluator(opts EvaluatorOptions) *Evaluator {
	return &Evaluator{
		cfg:         opts.Config,
		compression: opts.Compression,
		momentum:    opts.Momentum,
		entry:       opts.Entry,
		log:         opts.Logger.With().Str("component", "signal").Logger(),
	}
}

// Evaluate runs every stage in order on the candle series for symbol.
// The alignment result is computed by the caller from the basket
// tracker so that one basket snapshot serves all evaluated symbols.
func (e *Evaluator) Evaluate(symbol string, candles []domain.Candle, align domain.AlignmentResult, ts time.Time) domain.TradeSignal {
	sig := domain.TradeSignal{
		Symbol:    symbol,
		Direction: align.Direction,
		Timestamp: ts,
		Alignment: align,
	}

	if !align.Aligned {
		sig.SkipReason = domain.SkipNoAlignment
		if align.Mode == domain.BasketModeMegaCap {
			sig.SkipReason = domain.SkipNoMegaCapAlignment
		}
		return sig
	}

	sig.Compression = e.compression.Detect(candles)
	if !sig.Compression.Detected || sig.Compression.Direction != align.Direction {
		sig.SkipReason = domain.SkipNoCompression
		return sig
	}

	sig.MomentumOK = e.momentum.Momentum(candles, align.Direction)
	if !sig.MomentumOK {
		e.log.Debug().Str("symbol", symbol).Str("stage", "momentum").Msg("stage not matched")
		sig.SkipReason = domain.SkipNoMomentum
		return sig
	}

	sig.TrendOK = e.momentum.Trend(candles, align.Direction)
	if !sig.TrendOK {
		sig.SkipReason = domain.SkipNoTrend
		return sig
	}

	sig.VolumeOK = e.volumeSpike(candles)
	if !sig.VolumeOK {
		sig.SkipReason = domain.SkipNoVolumeSpike
		return sig
	}

	sig.ADXOK = e.adxOK(candles)
	if !sig.ADXOK {
		sig.SkipReason = domain.SkipLowADX
		return sig
	}

	sig.EntryOK = e.entry.Trigger(candles, align.Direction)
	if !sig.EntryOK {
		sig.SkipReason = domain.SkipNoEntry
		return sig
	}

	return sig
}

// volumeSpike passes unless the filter is on and current volume fails
// to exceed the recent mean by the configured multiple.
func (e *Evaluator) volumeSpike(candles []domain.Candle) bool {
	if !e.cfg.VolumeSpikeFilter {
		return true
	}
	if len(candles) < 6 {
		return false
	}
	mean, ok := indicator.MeanVolume(candles[:len(candles)-1], 5, 0)
	if !ok || mean == 0 {
		return false
	}
	return candles[len(candles)-1].Volume > mean*e.cfg.VolumeSpikeMult
}

// adxOK passes unless the filter is on and ADX is below the minimum.
// An uncomputable ADX fails closed.
func (e *Evaluator) adxOK(candles []domain.Candle) bool {
	if !e.cfg.ADXFilter {
		return true
	}
	period := e.cfg.ADXPeriod
	if period == 0 {
		period = 14
	}
	adx, ok := indicator.ADX(candles, period)
	if !ok {
		e.log.Debug().Str("stage", "adx").Msg("insufficient history")
		return false
	}
	return adx >= e.cfg.ADXMinimum
}
