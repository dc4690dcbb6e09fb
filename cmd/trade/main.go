// Package main runs the live trading daemon: websocket quotes feed a
// candle builder, completed bars run through the signal cascade, and
// the lifecycle engine manages orders against Alpaca or the in-process
// paper broker. A monitoring HTTP server exposes /metrics, /health,
// and /status.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	ossignal "os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"squeezebot/internal/broker"
	"squeezebot/internal/config"
	"squeezebot/internal/domain"
	"squeezebot/internal/engine"
	"squeezebot/internal/exit"
	"squeezebot/internal/feed"
	"squeezebot/internal/logging"
	"squeezebot/internal/observability"
	"squeezebot/internal/position"
	"squeezebot/internal/session"
	"squeezebot/internal/signal"
	"squeezebot/internal/storage"
	"squeezebot/internal/storage/memory"
	pgstore "squeezebot/internal/storage/postgres"
	"squeezebot/internal/trailing"
)

func main() {
	// Load .env file if exists
	godotenv.Load()

	// Parse flags (env vars as defaults)
	configPath := flag.String("config", os.Getenv("SQUEEZEBOT_CONFIG"), "YAML config file path")
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of PostgreSQL")
	paper := flag.Bool("paper", false, "Use the in-process paper broker instead of Alpaca")
	wsEndpoint := flag.String("ws-endpoint", os.Getenv("QUOTE_WS_ENDPOINT"), "Quote stream websocket endpoint")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.LogLevel)

	if *wsEndpoint == "" {
		fmt.Fprintln(os.Stderr, "--ws-endpoint is required")
		os.Exit(1)
	}

	ctx, cancel := ossignal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Stores
	var (
		posStore   storage.PositionStore = memory.NewPositionStore()
		tradeStore storage.TradeStore    = memory.NewTradeStore()
	)
	if !*useMemory {
		if *postgresDSN == "" {
			fmt.Fprintln(os.Stderr, "--postgres-dsn is required (use --use-memory for in-memory storage)")
			os.Exit(1)
		}
		pool, err := pgstore.NewPool(ctx, *postgresDSN)
		if err != nil {
			fmt.Fprintf(os.Stderr, "connect to postgres: %v\n", err)
			os.Exit(1)
		}
		defer pool.Close()
		posStore = pgstore.NewPositionStore(pool)
		tradeStore = pgstore.NewTradeStore(pool)
	}

	// Latest mid per symbol, shared by the paper broker and the quote
	// handler.
	var lastPrices sync.Map

	gateway, history, err := buildGateway(*paper, &lastPrices, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	manager := position.NewManager(posStore, logger)
	reconciler := position.NewReconciler(manager, gateway, position.ReconcilerOptions{
		StaleAfter: time.Duration(cfg.Storage.StaleSweepHrs) * time.Hour,
		Logger:     logger,
	})

	rules, err := session.NewRules(session.RulesConfig{
		OpenTime:             cfg.Session.OpenTime,
		CloseTime:            cfg.Session.CloseTime,
		CutoffTime:           cfg.Session.CutoffTime,
		Timezone:             cfg.Session.Timezone,
		NoTradeWindowMinutes: cfg.Session.NoTradeWindowMinutes,
		AutoCloseMinutes:     cfg.Exits.AutoCloseMinutes,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "session rules: %v\n", err)
		os.Exit(1)
	}

	components, err := buildComponents(cfg, rules, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	staleness := feed.NewStalenessMonitor(time.Duration(cfg.Trading.StalenessSeconds)*time.Second, logger)

	basketSymbols := cfg.Basket.SectorETFs
	if cfg.Basket.Mode == domain.BasketModeMegaCap {
		basketSymbols = cfg.Basket.MegaCapStocks
	}
	timeframe := domain.Timeframe(cfg.Trading.Timeframe)
	period, err := timeframePeriod(timeframe)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	eng := engine.New(engine.Options{
		Config: engine.Config{
			Timeframe:     timeframe,
			Quantity:      cfg.Trading.ContractsPerTrade,
			TradeSymbols:  cfg.Trading.Tickers,
			BasketSymbols: basketSymbols,
		},
		Basket:    components.tracker,
		Alignment: components.alignment,
		Evaluator: components.evaluator,
		Exits:     components.exits,
		Trailing:  components.trail,
		Seeder:    components.seeder,
		Gateway:   gateway,
		Positions: manager,
		Trades:    tradeStore,
		Rules:     rules,
		Staleness: staleness,
		Logger:    logger,
	})

	// Restore local state and align it with the broker before any
	// quote arrives.
	if err := eng.Restore(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "restore positions: %v\n", err)
		os.Exit(1)
	}
	if err := reconciler.Reconcile(ctx, time.Now()); err != nil {
		logger.Error().Err(err).Msg("startup reconcile failed")
	}
	go reconciler.RunPeriodic(ctx, time.Duration(cfg.Storage.SyncIntervalSec)*time.Second)

	// Candle builder, seeded with recent history so indicators are warm
	// from the first live bar.
	builder := feed.NewCandleBuilder(period, timeframe)
	allSymbols := append(append([]string{}, cfg.Trading.Tickers...), basketSymbols...)
	if history != nil {
		seedHistory(ctx, history, builder, allSymbols, timeframe, logger)
	}

	stream, err := feed.NewStream(ctx, *wsEndpoint, nil, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "connect quote stream: %v\n", err)
		os.Exit(1)
	}
	provider := feed.NewLiveProvider(history, stream)

	cancelSub, err := provider.Subscribe(ctx, allSymbols, func(q domain.Quote) {
		observability.RecordQuote(q.Symbol)
		staleness.Touch(q.Symbol, q.Timestamp)
		if mid := q.Mid(); mid > 0 {
			lastPrices.Store(q.Symbol, mid)
		}
		if completed := builder.OnQuote(q); completed != nil {
			eng.Enqueue(engine.Event{
				Candle:  *completed,
				History: builder.History(completed.Symbol),
			})
		}
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "subscribe: %v\n", err)
		os.Exit(1)
	}
	defer cancelSub()

	// Monitoring HTTP server
	srv := &http.Server{
		Addr:    cfg.MetricsAddr,
		Handler: observability.Mux(func() any { return eng.Status() }),
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("metrics server failed")
		}
	}()
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		srv.Shutdown(shutdownCtx)
	}()

	logger.Info().
		Strs("tickers", cfg.Trading.Tickers).
		Strs("basket", basketSymbols).
		Str("timeframe", cfg.Trading.Timeframe).
		Bool("paper", *paper).
		Msg("live engine starting")

	if err := eng.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "engine: %v\n", err)
		os.Exit(1)
	}
	logger.Info().Msg("shutdown complete")
}

// components bundles the shared decision stack built from configuration.
type components struct {
	tracker   *signal.Tracker
	alignment *signal.AlignmentDetector
	evaluator *signal.Evaluator
	exits     *exit.Evaluator
	trail     trailing.Method
	seeder    *trailing.Seeder
}

// buildComponents assembles the cascade, exit chain, and trailing method
// from configuration. The backtest builds the same stack; only the
// session rules differ.
func buildComponents(cfg config.Config, rules *session.Rules, logger zerolog.Logger) (*components, error) {
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
	trail, err := trailing.New(cfg.Exits.TrailingMethod, trailCfg)
	if err != nil {
		return nil, fmt.Errorf("trailing method: %w", err)
	}
	seeder := trailing.NewSeeder(cfg.Exits.StopLossMethod, trailCfg)

	symbols := cfg.Basket.SectorETFs
	weights := cfg.Basket.SectorWeights
	delta := cfg.Basket.SectorDelta
	threshold := cfg.Basket.SectorThreshold
	if cfg.Basket.Mode == domain.BasketModeMegaCap {
		symbols = cfg.Basket.MegaCapStocks
		weights = nil
		delta = cfg.Basket.MegaCapDelta
		threshold = cfg.Basket.MegaCapThreshold
	}

	return &components{
		tracker:   signal.NewTracker(symbols, weights, delta),
		alignment: signal.NewAlignmentDetector(cfg.Basket.Mode, threshold),
		evaluator: evaluator,
		exits:     exits,
		trail:     trail,
		seeder:    seeder,
	}, nil
}

// buildGateway selects the broker. Paper mode fills at the latest
// streamed mid; Alpaca mode wraps the real gateway with retry.
func buildGateway(paper bool, lastPrices *sync.Map, logger zerolog.Logger) (broker.Gateway, feed.Provider, error) {
	apiKey := os.Getenv("ALPACA_API_KEY")
	apiSecret := os.Getenv("ALPACA_API_SECRET")

	var history feed.Provider
	if apiKey != "" && apiSecret != "" {
		md := marketdata.NewClient(marketdata.ClientOpts{APIKey: apiKey, APISecret: apiSecret})
		history = feed.NewAlpacaProvider(md, logger)
	}

	if paper {
		price := func(symbol string) (float64, error) {
			if v, ok := lastPrices.Load(symbol); ok {
				return v.(float64), nil
			}
			return 0, fmt.Errorf("no quote seen for %s", symbol)
		}
		return broker.NewPaper(price, logger), history, nil
	}

	if apiKey == "" || apiSecret == "" {
		return nil, nil, errors.New("ALPACA_API_KEY and ALPACA_API_SECRET are required (use --paper for the paper broker)")
	}
	gw := broker.NewAlpaca(broker.AlpacaOptions{
		APIKey:    apiKey,
		APISecret: apiSecret,
		BaseURL:   os.Getenv("ALPACA_BASE_URL"),
		Logger:    logger,
	})
	return broker.NewRetrier(gw, broker.RetryOptions{Logger: logger}), history, nil
}

// seedHistory warms the candle builder from the historical source.
func seedHistory(ctx context.Context, provider feed.Provider, builder *feed.CandleBuilder, symbols []string, tf domain.Timeframe, logger zerolog.Logger) {
	end := time.Now()
	start := end.AddDate(0, 0, -2)
	for _, sym := range symbols {
		candles, err := provider.GetCandles(ctx, sym, tf, start, end)
		if err != nil {
			logger.Warn().Err(err).Str("symbol", sym).Msg("no warmup history")
			continue
		}
		builder.Seed(sym, candles)
	}
}

func timeframePeriod(tf domain.Timeframe) (time.Duration, error) {
	switch tf {
	case domain.Timeframe1Min:
		return time.Minute, nil
	case domain.Timeframe5Min:
		return 5 * time.Minute, nil
	case domain.Timeframe15Min:
		return 15 * time.Minute, nil
	default:
		return 0, fmt.Errorf("unsupported timeframe %q", tf)
	}
}
