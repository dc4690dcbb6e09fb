package engine

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"squeezebot/internal/broker"
	"squeezebot/internal/domain"
	"squeezebot/internal/idhash"
	"squeezebot/internal/observability"
	"squeezebot/internal/session"
	"squeezebot/internal/trailing"
)

// Process handles one completed candle. Exported so the replay driver
// can feed the engine synchronously; live mode goes through Enqueue/Run.
func (e *Engine) Process(ctx context.Context, ev Event) {
	symbol := ev.Candle.Symbol
	now := e.clock.Now()

	observability.RecordCandle(symbol)

	if e.inBasket[symbol] {
		e.basket.Update(symbol, ev.Candle.Close)
	}
	if !e.tradeable[symbol] {
		return
	}

	if tr, ok := e.active[symbol]; ok {
		switch tr.State {
		case domain.TradeStatePendingEntry:
			e.handlePending(ctx, tr, ev, now)
		case domain.TradeStateOpen:
			e.handleOpen(ctx, tr, ev, now)
		}
		return
	}

	e.evaluateEntry(ctx, symbol, ev, now)
}

// evaluateEntry runs the gate checks and the cascade for an idle symbol.
func (e *Engine) evaluateEntry(ctx context.Context, symbol string, ev Event, now time.Time) {
	if skip := e.gate(symbol, now); skip != "" {
		observability.RecordSignal("", skip)
		e.log.Debug().Str("symbol", symbol).Str("skip", skip).Msg("entry gated")
		return
	}

	align := e.alignment.Detect(e.basket.Members())
	sig := e.evaluator.Evaluate(symbol, ev.History, align, ev.Candle.Timestamp)
	observability.RecordSignal(string(sig.Direction), sig.SkipReason)

	if !sig.Tradeable() {
		return
	}

	e.enter(ctx, sig, ev, now)
}

// gate applies the pre-cascade checks: one trade per symbol, session
// windows, and data staleness. Returns the skip reason or empty.
func (e *Engine) gate(symbol string, now time.Time) string {
	if e.staleness != nil && e.staleness.IsStale(symbol, now) {
		return domain.SkipStaleData
	}
	if e.rules != nil {
		if ok, reason := e.rules.CanEnter(now); !ok {
			if reason == session.ReasonAfterCutoff {
				return domain.SkipAfterCutoff
			}
			return domain.SkipNoTradeWindow
		}
	}
	return ""
}

// enter submits the entry order. Entry orders are submitted exactly
// once; on failure the slot is released and the signal is forfeit.
func (e *Engine) enter(ctx context.Context, sig domain.TradeSignal, ev Event, now time.Time) {
	tr := &domain.Trade{
		ID:        idhash.ComputeTradeID(sig.Symbol, sig.Direction, e.cfg.Timeframe, sig.Timestamp),
		Symbol:    sig.Symbol,
		Direction: sig.Direction,
		State:     domain.TradeStatePendingEntry,
		Signal:    sig,
	}
	e.active[sig.Symbol] = tr

	spec := domain.OrderSpec{
		Symbol:   sig.Symbol,
		Action:   domain.EntryAction(sig.Direction),
		Type:     domain.OrderTypeMarket,
		Quantity: e.cfg.Quantity,
	}

	order, err := e.gateway.SubmitOrder(ctx, spec)
	observability.RecordOrder(string(spec.Action), errorClass(err))
	if err != nil {
		delete(e.active, sig.Symbol)
		e.log.Error().Err(err).
			Str("symbol", sig.Symbol).
			Str("direction", string(sig.Direction)).
			Msg("entry order failed, signal forfeit")
		return
	}

	if order.Filled() {
		e.markOpen(ctx, tr, order.FilledPrice, order.FilledQty, ev, now)
		return
	}

	e.pendingOrders[sig.Symbol] = order.ID
	e.log.Info().
		Str("symbol", sig.Symbol).
		Str("order_id", order.ID).
		Msg("entry order pending")
}

// handlePending polls the entry order once per bar.
func (e *Engine) handlePending(ctx context.Context, tr *domain.Trade, ev Event, now time.Time) {
	orderID := e.pendingOrders[tr.Symbol]
	order, err := e.gateway.GetOrder(ctx, orderID)
	if err != nil {
		e.log.Warn().Err(err).Str("order_id", orderID).Msg("order poll failed")
		return
	}

	switch order.Status {
	case domain.OrderStatusFilled:
		delete(e.pendingOrders, tr.Symbol)
		e.markOpen(ctx, tr, order.FilledPrice, order.FilledQty, ev, now)
	case domain.OrderStatusCanceled, domain.OrderStatusRejected, domain.OrderStatusExpired:
		delete(e.pendingOrders, tr.Symbol)
		delete(e.active, tr.Symbol)
		e.log.Warn().
			Str("symbol", tr.Symbol).
			Str("status", string(order.Status)).
			Msg("entry order terminal without fill, slot released")
	}
}

// markOpen transitions a filled entry to Open, seeds the trailing stop,
// and persists the position.
func (e *Engine) markOpen(ctx context.Context, tr *domain.Trade, fillPrice float64, fillQty int, ev Event, now time.Time) {
	tr.State = domain.TradeStateOpen
	tr.EntryPrice = fillPrice
	tr.EntryTime = now
	tr.Quantity = fillQty
	if tr.Quantity == 0 {
		tr.Quantity = e.cfg.Quantity
	}

	// The configured stop-loss rule seeds the protective stop. A method
	// with its own seed rule may only tighten from there, so the
	// configured rule stays the worst-case stop.
	tr.Stop = domain.TrailingStopState{
		Method:        e.trail.Name(),
		HighWaterMark: fillPrice,
		LowWaterMark:  fillPrice,
		CurrentStop:   e.seeder.Seed(tr.Direction, fillPrice, ev.History),
	}
	if stop, ok := e.trail.Candidate(trailing.Input{
		Direction:    tr.Direction,
		EntryPrice:   fillPrice,
		CurrentPrice: fillPrice,
		CurrentStop:  tr.Stop.CurrentStop,
		History:      ev.History,
	}); ok {
		tr.Stop.CurrentStop = trailing.Tighten(tr.Direction, tr.Stop.CurrentStop, stop)
	}

	p := &domain.Position{
		Symbol:         tr.Symbol,
		TradeID:        tr.ID,
		Direction:      tr.Direction,
		Quantity:       tr.Quantity,
		EntryPrice:     tr.EntryPrice,
		EntryTime:      tr.EntryTime,
		StopPrice:      tr.Stop.CurrentStop,
		TrailingMethod: tr.Stop.Method,
		LastPrice:      fillPrice,
	}
	if err := e.positions.Open(ctx, p); err != nil {
		e.log.Error().Err(err).Str("symbol", tr.Symbol).Msg("position persist failed")
	}

	observability.RecordTradeOpened(string(tr.Direction))
	e.log.Info().
		Str("symbol", tr.Symbol).
		Str("trade_id", tr.ID).
		Str("direction", string(tr.Direction)).
		Float64("entry", tr.EntryPrice).
		Float64("stop", tr.Stop.CurrentStop).
		Msg("trade opened")
}

// handleOpen runs the exit chain, then the trailing update when the
// trade survives the tick.
func (e *Engine) handleOpen(ctx context.Context, tr *domain.Trade, ev Event, now time.Time) {
	verdict := e.exits.Check(tr, ev.History, now)
	if verdict.Exit {
		e.closeTrade(ctx, tr, ev.Candle.Close, verdict.Reason, now)
		return
	}

	e.updateStop(ctx, tr, ev)
}

// updateStop ratchets the trailing stop and refreshes watermarks.
func (e *Engine) updateStop(ctx context.Context, tr *domain.Trade, ev Event) {
	last := ev.Candle
	if last.High > tr.Stop.HighWaterMark {
		tr.Stop.HighWaterMark = last.High
	}
	if last.Low < tr.Stop.LowWaterMark || tr.Stop.LowWaterMark == 0 {
		tr.Stop.LowWaterMark = last.Low
	}

	candidate, ok := e.trail.Candidate(trailing.Input{
		Direction:    tr.Direction,
		EntryPrice:   tr.EntryPrice,
		CurrentPrice: last.Close,
		CurrentStop:  tr.Stop.CurrentStop,
		History:      ev.History,
	})
	if ok {
		next := trailing.Tighten(tr.Direction, tr.Stop.CurrentStop, candidate)
		if next != tr.Stop.CurrentStop {
			tr.Stop.CurrentStop = next
			observability.RecordStopUpdate(string(tr.Stop.Method))
		}
	}

	if err := e.positions.UpdateStop(ctx, tr.Symbol, tr.Stop.CurrentStop, last.Close); err != nil {
		e.log.Warn().Err(err).Str("symbol", tr.Symbol).Msg("stop persist failed")
	}
}

// closeTrade submits the exit order, archives the trade, and frees the
// symbol slot. Exit orders go through the gateway's retry policy.
func (e *Engine) closeTrade(ctx context.Context, tr *domain.Trade, markPrice float64, reason string, now time.Time) {
	spec := domain.OrderSpec{
		Symbol:   tr.Symbol,
		Action:   domain.ExitAction(tr.Direction),
		Type:     domain.OrderTypeMarket,
		Quantity: tr.Quantity,
	}

	exitPrice := markPrice
	order, err := e.gateway.SubmitOrder(ctx, spec)
	observability.RecordOrder(string(spec.Action), errorClass(err))
	if err != nil {
		// The position may still be live at the broker; the reconciler
		// picks it back up on its next pass.
		e.log.Error().Err(err).Str("symbol", tr.Symbol).Msg("exit order failed")
	} else if order.Filled() && order.FilledPrice > 0 {
		exitPrice = order.FilledPrice
	}

	tr.State = domain.TradeStateClosed
	tr.ExitTime = now
	tr.ExitPrice = exitPrice
	tr.ExitReason = reason
	tr.RealizedPnL = tr.ComputePnL(exitPrice)

	if err := e.positions.Close(ctx, tr.Symbol, exitPrice, now, reason); err != nil {
		e.log.Warn().Err(err).Str("symbol", tr.Symbol).Msg("position close persist failed")
	}
	if e.trades != nil {
		if err := e.trades.Insert(ctx, tr); err != nil {
			e.log.Warn().Err(err).Str("trade_id", tr.ID).Msg("trade archive failed")
		}
	}

	delete(e.active, tr.Symbol)
	observability.RecordTradeClosed(reason)
	e.logClose(tr)
}

func (e *Engine) logClose(tr *domain.Trade) {
	var evt *zerolog.Event
	if tr.RealizedPnL >= 0 {
		evt = e.log.Info()
	} else {
		evt = e.log.Warn()
	}
	evt.Str("symbol", tr.Symbol).
		Str("trade_id", tr.ID).
		Str("reason", tr.ExitReason).
		Float64("exit", tr.ExitPrice).
		Float64("pnl", tr.RealizedPnL).
		Msg("trade closed")
}

// errorClass maps a gateway error onto a metric label.
func errorClass(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, broker.ErrAuthExpired):
		return "auth"
	case errors.Is(err, broker.ErrRateLimited):
		return "rate_limit"
	case errors.Is(err, broker.ErrRejected):
		return "rejected"
	default:
		return "other"
	}
}
