package backtest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"squeezebot/internal/config"
	"squeezebot/internal/domain"
	"squeezebot/internal/exit"
	"squeezebot/internal/feed"
	"squeezebot/internal/idhash"
	"squeezebot/internal/session"
	"squeezebot/internal/signal"
	"squeezebot/internal/storage"
	"squeezebot/internal/trailing"
)

// Runner loads historical data, executes a backtest run, and persists
// its output.
type Runner struct {
	provider    feed.Provider
	evaluations storage.EvaluationStore
	simulated   storage.SimulatedTradeStore
	stats       storage.MethodStatsStore
	engine      *Engine
	log         zerolog.Logger
}

// RunnerOptions contains configuration for creating a Runner.
type RunnerOptions struct {
	Provider    feed.Provider
	Evaluations storage.EvaluationStore
	Simulated   storage.SimulatedTradeStore
	Stats       storage.MethodStatsStore
	Engine      *Engine
	Logger      zerolog.Logger
}

// NewRunner creates a backtest runner.
func NewRunner(opts RunnerOptions) *Runner {
	return &Runner{
		provider:    opts.Provider,
		evaluations: opts.Evaluations,
		simulated:   opts.Simulated,
		stats:       opts.Stats,
		engine:      opts.Engine,
		log:         opts.Logger.With().Str("component", "backtest").Logger(),
	}
}

// Run executes one backtest over [start, end].
// Steps:
//  1. Generate a fresh run ID
//  2. Load the primary candle series
//  3. Load the basket member series
//  4. Run the engine
//  5. Persist evaluation records, simulated trades, and method stats
func (r *Runner) Run(ctx context.Context, start, end time.Time) (*Results, error) {
	// 1. Generate a fresh run ID
	runID := idhash.NewRunID()

	// 2. Load the primary candle series
	cfg := r.engine.cfg
	candles, err := r.provider.GetCandles(ctx, cfg.Symbol, cfg.Timeframe, start, end)
	if err != nil {
		return nil, fmt.Errorf("load %s candles: %w", cfg.Symbol, err)
	}

	// 3. Load the basket member series. A member without data simply
	// never reaches Ready and drops out of the alignment vote.
	basket := make(map[string][]domain.Candle, len(r.engine.basket.Symbols))
	for _, sym := range r.engine.basket.Symbols {
		series, err := r.provider.GetCandles(ctx, sym, cfg.Timeframe, start, end)
		if err != nil {
			if errors.Is(err, feed.ErrDataUnavailable) {
				r.log.Warn().Str("symbol", sym).Msg("no basket data, member excluded")
				continue
			}
			return nil, fmt.Errorf("load %s candles: %w", sym, err)
		}
		basket[sym] = series
	}

	// 4. Run the engine
	res, err := r.engine.Run(ctx, runID, candles, basket)
	if err != nil {
		return nil, err
	}

	// 5. Persist evaluation records, simulated trades, and method stats
	if err := r.evaluations.InsertBulk(ctx, res.Records); err != nil {
		return nil, fmt.Errorf("persist evaluations: %w", err)
	}
	if err := r.simulated.InsertBulk(ctx, res.Trades); err != nil {
		return nil, fmt.Errorf("persist simulated trades: %w", err)
	}
	if err := r.stats.InsertBulk(ctx, runID, res.Stats); err != nil {
		return nil, fmt.Errorf("persist method stats: %w", err)
	}

	return res, nil
}

// OptionsFromConfig assembles engine options for one symbol from the
// application configuration, wiring the same cascade and exit
// components the live engine uses.
func OptionsFromConfig(cfg config.Config, symbol string, logger zerolog.Logger) Options {
	compression := signal.NewCompressionDetector(signal.CompressionConfig{
		Window:            cfg.Compression.Window,
		RequiredCount:     cfg.Compression.RequiredCount,
		BBWidthThreshold:  cfg.Compression.BBWidthThreshold,
		DonchianThreshold: cfg.Compression.DonchianThreshold,
		VolumeThreshold:   cfg.Compression.VolumeThreshold,
		EMAPeriod:         cfg.Momentum.EMAPeriod,
	})
	momentum := signal.NewMomentumConfirmer(signal.MomentumConfig{
		StochKPeriod:     cfg.Momentum.StochKPeriod,
		StochDPeriod:     cfg.Momentum.StochDPeriod,
		StochSmooth:      cfg.Momentum.StochSmooth,
		BullishThreshold: cfg.Momentum.BullishThreshold,
		BearishThreshold: cfg.Momentum.BearishThreshold,
		EMAPeriod:        cfg.Momentum.EMAPeriod,
	})
	entry := signal.NewEntryTrigger(signal.EntryConfig{
		WickTolerancePct:     cfg.Entry.WickTolerancePct,
		ContinuationPatterns: cfg.Entry.ContinuationPatterns,
		PivotZonePct:         cfg.Entry.PivotZonePct,
	})

	evaluator := signal.NewEvaluator(signal.EvaluatorOptions{
		Config: signal.EvaluatorConfig{
			VolumeSpikeFilter: cfg.Entry.VolumeSpikeFilter,
			VolumeSpikeMult:   cfg.Entry.VolumeSpikeMult,
			ADXFilter:         cfg.Entry.ADXFilter,
			ADXMinimum:        cfg.Entry.ADXMinimum,
		},
		Compression: compression,
		Momentum:    momentum,
		Entry:       entry,
		Logger:      logger,
	})

	// Candle timestamps stand in for the wall clock, so the no-trade
	// window, cutoff, auto-close, and failsafe all replay exactly as
	// they run live.
	rules, err := session.NewRules(session.RulesConfig{
		OpenTime:             cfg.Session.OpenTime,
		CloseTime:            cfg.Session.CloseTime,
		CutoffTime:           cfg.Session.CutoffTime,
		Timezone:             cfg.Session.Timezone,
		NoTradeWindowMinutes: cfg.Session.NoTradeWindowMinutes,
		AutoCloseMinutes:     cfg.Exits.AutoCloseMinutes,
	})
	if err != nil {
		logger.Warn().Err(err).Msg("session rules unavailable, replay skips session handling")
		rules = nil
	}

	exits := exit.NewEvaluator(exit.Config{
		MinProfitBeforeHA: cfg.Exits.MinProfitBeforeHA,
		LossGuardPct:      cfg.Exits.LossGuardPct,
		StochExtremeUpper: cfg.Exits.StochExtremeUpper,
		StochExtremeLower: cfg.Exits.StochExtremeLower,
		StochKPeriod:      cfg.Momentum.StochKPeriod,
		StochDPeriod:      cfg.Momentum.StochDPeriod,
		StochSmooth:       cfg.Momentum.StochSmooth,
		EMAPeriod:         cfg.Momentum.EMAPeriod,
		FailsafeMinutes:   cfg.Exits.FailsafeMinutes,
	}, compression, rules)

	trailCfg := trailing.DefaultConfig()
	trailCfg.TrailPct = cfg.Exits.TrailPct
	trailCfg.ATRMultiple = cfg.Exits.ATRMultiple
	trailCfg.FixedPoints = cfg.Exits.FixedPoints
	trailCfg.FixedStopPct = cfg.Exits.FixedStopPct

	basket := BasketConfig{
		Symbols: cfg.Basket.SectorETFs,
		Weights: cfg.Basket.SectorWeights,
		Delta:   cfg.Basket.SectorDelta,
	}
	threshold := cfg.Basket.SectorThreshold
	if cfg.Basket.Mode == domain.BasketModeMegaCap {
		basket = BasketConfig{
			Symbols: cfg.Basket.MegaCapStocks,
			Delta:   cfg.Basket.MegaCapDelta,
		}
		threshold = cfg.Basket.MegaCapThreshold
	}

	return Options{
		Config: Config{
			Symbol:        symbol,
			Timeframe:     domain.Timeframe(cfg.Trading.Timeframe),
			InitialEquity: cfg.Trading.InitialEquity,
			PrimaryMethod: cfg.Exits.TrailingMethod,
		},
		Basket:    basket,
		Alignment: signal.NewAlignmentDetector(cfg.Basket.Mode, threshold),
		Evaluator: evaluator,
		Exits:     exits,
		Trailing:  trailCfg,
		StopLoss:  cfg.Exits.StopLossMethod,
		Rules:     rules,
		Logger:    logger,
	}
}
