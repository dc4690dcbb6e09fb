// Package backtest runs the signal cascade over historical candles in a
// single deterministic pass. Every candle produces one evaluation
// record; every entered signal is simulated forward under all five
// trailing-stop methods so the run can report which method performed
// best. The cascade and exit logic are the same components the live
// engine uses, so replay results validate live behavior.
package backtest

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"

	"squeezebot/internal/domain"
	"squeezebot/internal/exit"
	"squeezebot/internal/idhash"
	"squeezebot/internal/indicator"
	"squeezebot/internal/metrics"
	"squeezebot/internal/session"
	"squeezebot/internal/signal"
	"squeezebot/internal/trailing"
)

// ErrNoData is returned when a run has no candles to evaluate.
var ErrNoData = errors.New("no candles to evaluate")

// Approximate 0.60-delta option premium per share of underlying.
const contractPriceRatio = 0.006

// maxWarmupBars caps the warmup at thirty bars; shorter series warm up
// on a tenth of their length.
const maxWarmupBars = 30

// Config holds the per-run backtest parameters.
type Config struct {
	Symbol        string
	Timeframe     domain.Timeframe
	InitialEquity float64               // default 10000
	PrimaryMethod domain.TrailingMethod // drives the open-trade window
	MaxHoldBars   int                   // default 30
}

// BasketConfig describes the parallel basket series evaluated alongside
// the primary symbol.
type BasketConfig struct {
	Symbols []string
	Weights map[string]float64
	Delta   float64
}

// Options wires the engine's collaborators.
type Options struct {
	Config    Config
	Basket    BasketConfig
	Alignment *signal.AlignmentDetector
	Evaluator *signal.Evaluator
	Exits     *exit.Evaluator
	Trailing  trailing.Config
	StopLoss  domain.StopLossMethod
	Rules     *session.Rules
	Logger    zerolog.Logger
}

// Results holds one run's complete output.
type Results struct {
	RunID   string
	Symbol  string
	Records []*domain.EvaluationRecord
	Trades  []*domain.SimulatedTrade
	Stats   []domain.MethodStats
	Summary domain.RunSummary
}

// Engine evaluates a candle series deterministically. Not safe for
// concurrent use; run one engine per goroutine.
type Engine struct {
	cfg       Config
	basket    BasketConfig
	alignment *signal.AlignmentDetector
	evaluator *signal.Evaluator
	exits     *exit.Evaluator
	methods   []trailing.Method
	seeder    *trailing.Seeder
	rules     *session.Rules
	log       zerolog.Logger
}

// NewEngine creates a backtest engine.
func NewEngine(opts Options) *Engine {
	cfg := opts.Config
	if cfg.InitialEquity <= 0 {
		cfg.InitialEquity = 10000
	}
	if cfg.MaxHoldBars <= 0 {
		cfg.MaxHoldBars = 30
	}
	if cfg.PrimaryMethod == "" {
		cfg.PrimaryMethod = domain.TrailingHeikenAshi
	}
	return &Engine{
		cfg:       cfg,
		basket:    opts.Basket,
		alignment: opts.Alignment,
		evaluator: opts.Evaluator,
		exits:     opts.Exits,
		methods:   trailing.All(opts.Trailing),
		seeder:    trailing.NewSeeder(opts.StopLoss, opts.Trailing),
		rules:     opts.Rules,
		log:       opts.Logger.With().Str("component", "backtest").Logger(),
	}
}

// Run evaluates every candle in order. basket maps member symbols to
// their candle series, index-aligned with the primary series; members
// whose series run short simply stop updating. The same inputs always
// produce identical results.
func (e *Engine) Run(ctx context.Context, runID string, candles []domain.Candle, basket map[string][]domain.Candle) (*Results, error) {
	n := len(candles)
	if n == 0 {
		return nil, ErrNoData
	}

	warmup := warmupBars(n)
	tracker := signal.NewTracker(e.basket.Symbols, e.basket.Weights, e.basket.Delta)
	equity := e.cfg.InitialEquity

	res := &Results{
		RunID:   runID,
		Symbol:  e.cfg.Symbol,
		Records: make([]*domain.EvaluationRecord, 0, n),
	}

	// Index of the last bar occupied by the primary method's simulated
	// trade; one open trade per symbol holds in replay too.
	activeUntil := -1

	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		candle := candles[i]
		history := candles[:i+1]

		for _, sym := range e.basket.Symbols {
			if series := basket[sym]; i < len(series) {
				tracker.Update(sym, series[i].Close)
			}
		}

		rec := e.snapshot(runID, i, candle, history)
		rec.Equity = equity

		switch {
		case i < warmup:
			rec.SkipReason = domain.SkipWarmup
		case i >= n-1:
			rec.SkipReason = domain.SkipEndOfData
		case i <= activeUntil:
			rec.SkipReason = domain.SkipTradeOpen
		default:
			if skip := e.sessionGate(candle.Timestamp); skip != "" {
				rec.SkipReason = skip
				break
			}
			align := e.alignment.Detect(tracker.Members())
			rec.Aligned = align.Aligned
			rec.AlignDirection = align.Direction
			rec.AlignScore = align.Score

			sig := e.evaluator.Evaluate(e.cfg.Symbol, history, align, candle.Timestamp)
			rec.CompressionFound = sig.Compression.Detected
			rec.CompressionDir = sig.Compression.Direction
			rec.CompressionSignals = sig.Compression.SignalCount
			rec.MomentumAligned = sig.MomentumOK
			rec.TrendAligned = sig.TrendOK
			rec.EntrySignal = sig.EntryOK
			rec.SkipReason = sig.SkipReason

			if sig.Tradeable() {
				rec.TradeEntered = true
				rec.TradeDirection = sig.Direction

				legs := e.simulateAll(runID, candles, i, sig.Direction, equity)
				res.Trades = append(res.Trades, legs...)

				equity += bestLeg(legs).PnLDollars
				activeUntil = primaryExit(legs, e.cfg.PrimaryMethod)
			}
		}

		res.Records = append(res.Records, rec)
	}

	res.Stats = e.computeStats(res.Trades)
	res.Summary = domain.RunSummary{
		RunID:         runID,
		SymbolPeriod:  fmt.Sprintf("%s_%s", e.cfg.Symbol, e.cfg.Timeframe),
		Stats:         res.Stats,
		OptimalMethod: metrics.BestMethod(res.Stats, e.cfg.PrimaryMethod),
	}

	e.log.Info().
		Str("run_id", runID).
		Str("symbol", e.cfg.Symbol).
		Int("candles", len(res.Records)).
		Int("simulated_trades", len(res.Trades)).
		Str("optimal_method", string(res.Summary.OptimalMethod)).
		Msg("backtest run complete")

	return res, nil
}

// sessionGate applies the no-trade window and cutoff to the simulated
// clock. Nil rules disable session handling in replay.
func (e *Engine) sessionGate(ts time.Time) string {
	if e.rules == nil {
		return ""
	}
	if ok, reason := e.rules.CanEnter(ts); !ok {
		if reason == session.ReasonAfterCutoff {
			return domain.SkipAfterCutoff
		}
		return domain.SkipNoTradeWindow
	}
	return ""
}

// snapshot builds the base evaluation record with the indicator values
// at this bar. Indicators that cannot be computed yet stay zero.
func (e *Engine) snapshot(runID string, idx int, candle domain.Candle, history []domain.Candle) *domain.EvaluationRecord {
	rec := &domain.EvaluationRecord{
		RunID:          runID,
		Symbol:         e.cfg.Symbol,
		CandleIdx:      idx,
		Timestamp:      candle.Timestamp,
		Open:           candle.Open,
		High:           candle.High,
		Low:            candle.Low,
		Close:          candle.Close,
		Volume:         candle.Volume,
		AlignDirection: domain.DirectionNeutral,
		CompressionDir: domain.DirectionNeutral,
		TradeDirection: domain.DirectionNeutral,
	}

	rec.EMA9, _ = indicator.EMA(history, 9)
	rec.EMA15, _ = indicator.EMA(history, 15)
	rec.VWAP, _ = indicator.VWAP(history)
	rec.BBWidth, _ = indicator.BollingerWidth(history, 20)
	rec.StochK, rec.StochD, _ = indicator.Stochastic(history, 5, 3, 2)
	rec.ATR, _ = indicator.ATR(history, 14)
	rec.ADX, _ = indicator.ADX(history, 14)
	return rec
}

// simulateAll runs the forward simulation once per trailing method, in
// the canonical order.
func (e *Engine) simulateAll(runID string, candles []domain.Candle, start int, dir domain.Direction, equity float64) []*domain.SimulatedTrade {
	legs := make([]*domain.SimulatedTrade, 0, len(e.methods))
	for _, m := range e.methods {
		legs = append(legs, e.simulateMethod(runID, candles, start, dir, equity, m))
	}
	return legs
}

// simulateMethod walks the trade forward bar by bar under one trailing
// method. Exits run through the shared exit evaluator; a stop touch
// fills at the stop price, every other exit fills at the bar close. The
// stop only trails when the trade sets a new maximum profit.
func (e *Engine) simulateMethod(runID string, candles []domain.Candle, start int, dir domain.Direction, equity float64, m trailing.Method) *domain.SimulatedTrade {
	entry := candles[start].Close
	n := len(candles)
	maxHold := e.cfg.MaxHoldBars
	if n-start < maxHold {
		maxHold = n - start
	}

	tr := &domain.Trade{
		Symbol:     e.cfg.Symbol,
		Direction:  dir,
		State:      domain.TradeStateOpen,
		EntryTime:  candles[start].Timestamp,
		EntryPrice: entry,
		Quantity:   1,
		Stop: domain.TrailingStopState{
			Method:      m.Name(),
			CurrentStop: e.seeder.Seed(dir, entry, candles[:start+1]),
		},
	}
	if stop, ok := m.Candidate(trailing.Input{
		Direction:    dir,
		EntryPrice:   entry,
		CurrentPrice: entry,
		CurrentStop:  tr.Stop.CurrentStop,
		History:      candles[:start+1],
	}); ok {
		tr.Stop.CurrentStop = trailing.Tighten(dir, tr.Stop.CurrentStop, stop)
	}

	maxProfit := 0.0
	end := start + maxHold
	for i := start + 1; i < end; i++ {
		bar := candles[i]

		verdict := e.exits.Check(tr, candles[:i+1], bar.Timestamp)
		if verdict.Exit {
			price := bar.Close
			if verdict.Reason == domain.ExitReasonStopLoss {
				price = tr.Stop.CurrentStop
			}
			return e.leg(runID, candles, start, i, dir, m.Name(), price, verdict.Reason, equity)
		}

		if profit := tr.OpenPnL(bar.Close); profit > maxProfit {
			maxProfit = profit
			if stop, ok := m.Candidate(trailing.Input{
				Direction:    dir,
				EntryPrice:   entry,
				CurrentPrice: bar.Close,
				CurrentStop:  tr.Stop.CurrentStop,
				History:      candles[:i+1],
			}); ok {
				tr.Stop.CurrentStop = trailing.Tighten(dir, tr.Stop.CurrentStop, stop)
			}
		}
	}

	exitIdx := end - 1
	return e.leg(runID, candles, start, exitIdx, dir, m.Name(), candles[exitIdx].Close, domain.ExitReasonMaxHold, equity)
}

// leg builds the simulated trade row for one (entry, method) pair.
func (e *Engine) leg(runID string, candles []domain.Candle, start, exitIdx int, dir domain.Direction, method domain.TrailingMethod, exitPrice float64, reason string, equity float64) *domain.SimulatedTrade {
	entry := candles[start].Close

	pnlPct := (exitPrice - entry) / entry * 100
	if dir == domain.DirectionBearish {
		pnlPct = -pnlPct
	}
	pnlPct = round2(pnlPct)

	return &domain.SimulatedTrade{
		TradeID:       idhash.ComputeSimulationID(runID, e.cfg.Symbol, method, start, candles[start].Timestamp),
		RunID:         runID,
		Symbol:        e.cfg.Symbol,
		Method:        method,
		Direction:     dir,
		EntryIdx:      start,
		EntryTime:     candles[start].Timestamp,
		EntryPrice:    entry,
		ExitIdx:       exitIdx,
		ExitTime:      candles[exitIdx].Timestamp,
		ExitPrice:     exitPrice,
		ExitReason:    reason,
		PnLPct:        pnlPct,
		PnLDollars:    round2(pnlPct / 100 * equity),
		ContractPrice: entry * contractPriceRatio,
	}
}

// computeStats aggregates the per-method rows in canonical order.
func (e *Engine) computeStats(trades []*domain.SimulatedTrade) []domain.MethodStats {
	byMethod := make(map[domain.TrailingMethod][]*domain.SimulatedTrade, len(e.methods))
	for _, t := range trades {
		byMethod[t.Method] = append(byMethod[t.Method], t)
	}

	out := make([]domain.MethodStats, 0, len(domain.AllTrailingMethods))
	for _, method := range domain.AllTrailingMethods {
		out = append(out, metrics.ComputeMethodStats(method, byMethod[method], e.cfg.InitialEquity))
	}
	return out
}

// bestLeg returns the leg with the highest dollar P&L. Ties keep the
// earlier leg so the canonical method order decides.
func bestLeg(legs []*domain.SimulatedTrade) *domain.SimulatedTrade {
	best := legs[0]
	for _, leg := range legs[1:] {
		if leg.PnLDollars > best.PnLDollars {
			best = leg
		}
	}
	return best
}

// primaryExit returns the exit index of the primary method's leg,
// falling back to the first leg when the primary is not among them.
func primaryExit(legs []*domain.SimulatedTrade, primary domain.TrailingMethod) int {
	for _, leg := range legs {
		if leg.Method == primary {
			return leg.ExitIdx
		}
	}
	return legs[0].ExitIdx
}

// warmupBars is the number of leading candles excluded from signal
// evaluation: a tenth of the series, at most thirty.
func warmupBars(n int) int {
	w := n / 10
	if w > maxWarmupBars {
		w = maxWarmupBars
	}
	return w
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
