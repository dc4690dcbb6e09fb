// Package engine runs the live trade lifecycle. A single consumer
// drains the event queue so every state transition happens on one
// goroutine; feed callbacks only enqueue.
package engine

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"squeezebot/internal/broker"
	"squeezebot/internal/domain"
	"squeezebot/internal/exit"
	"squeezebot/internal/feed"
	"squeezebot/internal/observability"
	"squeezebot/internal/position"
	"squeezebot/internal/session"
	"squeezebot/internal/signal"
	"squeezebot/internal/storage"
	"squeezebot/internal/trailing"
)

// defaultQueueSize bounds the event queue. Candles arrive at bar
// cadence, so a small buffer absorbs any burst.
const defaultQueueSize = 256

// Event is one completed candle plus the full ordered history for its
// symbol, including the completed bar.
type Event struct {
	Candle  domain.Candle
	History []domain.Candle
}

// Config carries the engine's trading parameters.
type Config struct {
	Timeframe domain.Timeframe
	Quantity  int
	// TradeSymbols are the instruments the engine may open trades on.
	TradeSymbols []string
	// BasketSymbols feed the alignment vote but are never traded.
	BasketSymbols []string
	QueueSize     int
}

// Options wires the engine's collaborators together.
type Options struct {
	Config Config

	Basket    *signal.Tracker
	Alignment *signal.AlignmentDetector
	Evaluator *signal.Evaluator
	Exits     *exit.Evaluator
	Trailing  trailing.Method
	Seeder    *trailing.Seeder

	Gateway   broker.Gateway
	Positions *position.Manager
	Trades    storage.TradeStore

	Rules     *session.Rules
	Clock     session.Clock
	Staleness *feed.StalenessMonitor

	Logger zerolog.Logger
}

// Engine owns the lifecycle of every trade. All trade state lives on
// the consumer goroutine; the only concurrent surface is Enqueue.
type Engine struct {
	cfg       Config
	basket    *signal.Tracker
	alignment *signal.AlignmentDetector
	evaluator *signal.Evaluator
	exits     *exit.Evaluator
	trail     trailing.Method
	seeder    *trailing.Seeder

	gateway   broker.Gateway
	positions *position.Manager
	trades    storage.TradeStore

	rules     *session.Rules
	clock     session.Clock
	staleness *feed.StalenessMonitor

	tradeable map[string]bool
	inBasket  map[string]bool

	// active and pendingOrders are touched only by the consumer goroutine.
	active        map[string]*domain.Trade
	pendingOrders map[string]string

	queue chan Event
	log   zerolog.Logger
}

// New creates an engine.
func New(opts Options) *Engine {
	size := opts.Config.QueueSize
	if size <= 0 {
		size = defaultQueueSize
	}
	clock := opts.Clock
	if clock == nil {
		clock = session.RealClock{}
	}
	seeder := opts.Seeder
	if seeder == nil {
		seeder = trailing.NewSeeder(domain.StopATRMultiple, trailing.DefaultConfig())
	}

	tradeable := make(map[string]bool, len(opts.Config.TradeSymbols))
	for _, s := range opts.Config.TradeSymbols {
		tradeable[s] = true
	}
	inBasket := make(map[string]bool, len(opts.Config.BasketSymbols))
	for _, s := range opts.Config.BasketSymbols {
		inBasket[s] = true
	}

	return &Engine{
		cfg:           opts.Config,
		basket:        opts.Basket,
		alignment:     opts.Alignment,
		evaluator:     opts.Evaluator,
		exits:         opts.Exits,
		trail:         opts.Trailing,
		seeder:        seeder,
		gateway:       opts.Gateway,
		positions:     opts.Positions,
		trades:        opts.Trades,
		rules:         opts.Rules,
		clock:         clock,
		staleness:     opts.Staleness,
		tradeable:     tradeable,
		inBasket:      inBasket,
		active:        make(map[string]*domain.Trade),
		pendingOrders: make(map[string]string),
		queue:         make(chan Event, size),
		log:           opts.Logger.With().Str("component", "engine").Logger(),
	}
}

// Enqueue hands an event to the consumer without blocking. A full
// queue drops the event; the next bar supersedes it anyway.
func (e *Engine) Enqueue(ev Event) bool {
	select {
	case e.queue <- ev:
		return true
	default:
		observability.DefaultMetrics.EventsDropped.Inc()
		e.log.Warn().Str("symbol", ev.Candle.Symbol).Msg("event queue full, dropping candle")
		return false
	}
}

// Run drains the queue until ctx is canceled.
func (e *Engine) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-e.queue:
			e.Process(ctx, ev)
		}
	}
}

// Restore rebuilds in-flight trade state from the position store after
// a restart. Restored trades resume in the Open state with their
// persisted stop.
func (e *Engine) Restore(ctx context.Context) error {
	if err := e.positions.Restore(ctx); err != nil {
		return err
	}
	for _, p := range e.positions.OpenPositions() {
		if p.External {
			continue
		}
		e.active[p.Symbol] = &domain.Trade{
			ID:         p.TradeID,
			Symbol:     p.Symbol,
			Direction:  p.Direction,
			State:      domain.TradeStateOpen,
			EntryTime:  p.EntryTime,
			EntryPrice: p.EntryPrice,
			Quantity:   p.Quantity,
			Stop: domain.TrailingStopState{
				Method:        p.TrailingMethod,
				CurrentStop:   p.StopPrice,
				HighWaterMark: p.EntryPrice,
				LowWaterMark:  p.EntryPrice,
			},
		}
		e.log.Info().
			Str("symbol", p.Symbol).
			Str("trade_id", p.TradeID).
			Float64("stop", p.StopPrice).
			Msg("restored open trade")
	}
	return nil
}

// ActiveTrade returns the live trade for a symbol, if any.
func (e *Engine) ActiveTrade(symbol string) (*domain.Trade, bool) {
	tr, ok := e.active[symbol]
	return tr, ok
}

// Status summarizes the engine for the /status endpoint.
func (e *Engine) Status() map[string]any {
	open := 0
	pending := 0
	for _, tr := range e.active {
		switch tr.State {
		case domain.TradeStateOpen:
			open++
		case domain.TradeStatePendingEntry:
			pending++
		}
	}
	return map[string]any{
		"open_trades":    open,
		"pending_trades": pending,
		"queue_depth":    len(e.queue),
		"time":           e.clock.Now().UTC().Format(time.RFC3339),
	}
}
