package engine

import (
	"context"
	"errors"
	"fmt"

	"squeezebot/internal/broker"
	"squeezebot/internal/domain"
	"squeezebot/internal/observability"
)

// KillSwitch cancels every open order and liquidates every open
// position, best effort. It keeps going past individual failures and
// returns them joined so the operator sees exactly what is still live.
func (e *Engine) KillSwitch(ctx context.Context) error {
	observability.DefaultMetrics.KillSwitchFired.Inc()
	e.log.Warn().Msg("kill switch activated")

	var errs []error

	orders, err := e.gateway.OpenOrders(ctx)
	if err != nil {
		errs = append(errs, fmt.Errorf("list open orders: %w", err))
	}
	for _, o := range orders {
		if err := e.gateway.CancelOrder(ctx, o.ID); err != nil {
			errs = append(errs, fmt.Errorf("cancel order %s (%s): %w", o.ID, o.Symbol, err))
			continue
		}
		e.log.Info().Str("order_id", o.ID).Str("symbol", o.Symbol).Msg("order canceled")
	}

	now := e.clock.Now()
	for _, p := range e.positions.OpenPositions() {
		if err := e.gateway.ClosePosition(ctx, p.Symbol); err != nil && !errors.Is(err, broker.ErrPositionNotFound) {
			errs = append(errs, fmt.Errorf("liquidate %s: %w", p.Symbol, err))
			continue
		}

		exitPrice := p.LastPrice
		if exitPrice == 0 {
			exitPrice = p.EntryPrice
		}
		if err := e.positions.Close(ctx, p.Symbol, exitPrice, now, domain.ExitReasonKillSwitch); err != nil {
			errs = append(errs, fmt.Errorf("close local %s: %w", p.Symbol, err))
			continue
		}

		if tr, ok := e.active[p.Symbol]; ok {
			tr.State = domain.TradeStateClosed
			tr.ExitTime = now
			tr.ExitPrice = exitPrice
			tr.ExitReason = domain.ExitReasonKillSwitch
			tr.RealizedPnL = tr.ComputePnL(exitPrice)
			if e.trades != nil {
				if err := e.trades.Insert(ctx, tr); err != nil {
					errs = append(errs, fmt.Errorf("archive trade %s: %w", tr.ID, err))
				}
			}
			delete(e.active, p.Symbol)
			delete(e.pendingOrders, p.Symbol)
			observability.RecordTradeClosed(domain.ExitReasonKillSwitch)
		}
		e.log.Info().Str("symbol", p.Symbol).Float64("exit", exitPrice).Msg("position liquidated")
	}

	return errors.Join(errs...)
}
