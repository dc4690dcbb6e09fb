package position

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"squeezebot/internal/broker"
	"squeezebot/internal/domain"
)

// ReconcilerOptions configures reconciliation behavior.
type ReconcilerOptions struct {
	// StaleAfter is how long a position may go without an update before
	// the sweep force-closes it as abandoned.
	StaleAfter time.Duration
	Logger     zerolog.Logger
}

// Reconciler aligns the local position book with the broker's. The
// broker is authoritative: local positions missing at the broker are
// force-closed, broker positions missing locally are adopted and marked
// external. Running it twice in a row is a no-op the second time.
type Reconciler struct {
	manager *Manager
	gateway broker.Gateway
	opts    ReconcilerOptions
	logger  zerolog.Logger
}

// NewReconciler creates a reconciler over manager and gateway.
func NewReconciler(manager *Manager, gateway broker.Gateway, opts ReconcilerOptions) *Reconciler {
	if opts.StaleAfter == 0 {
		opts.StaleAfter = 24 * time.Hour
	}
	return &Reconciler{
		manager: manager,
		gateway: gateway,
		opts:    opts,
		logger:  opts.Logger.With().Str("component", "reconciler").Logger(),
	}
}

// Reconcile performs one full pass: force-close local orphans, adopt
// broker-only positions, then sweep stale entries.
func (r *Reconciler) Reconcile(ctx context.Context, now time.Time) error {
	brokerPositions, err := r.gateway.Positions(ctx)
	if err != nil {
		return fmt.Errorf("fetch broker positions: %w", err)
	}

	atBroker := make(map[string]domain.BrokerPosition, len(brokerPositions))
	for _, bp := range brokerPositions {
		atBroker[bp.Symbol] = bp
	}

	// Local positions the broker does not know about cannot be managed:
	// close them in the book so the symbol slot frees up.
	for _, local := range r.manager.OpenPositions() {
		if _, exists := atBroker[local.Symbol]; exists {
			continue
		}
		r.logger.Warn().Str("symbol", local.Symbol).Msg("local position missing at broker, closing")
		if err := r.manager.Close(ctx, local.Symbol, local.LastPrice, now, domain.ExitReasonNotAtBroker); err != nil {
			return fmt.Errorf("close orphan %s: %w", local.Symbol, err)
		}
	}

	// Broker positions with no local record are adopted so the exit
	// evaluator can manage them.
	for symbol, bp := range atBroker {
		if r.manager.HasOpen(symbol) {
			continue
		}
		adopted := &domain.Position{
			Symbol:         symbol,
			TradeID:        uuid.NewString(),
			Direction:      bp.Direction,
			Quantity:       bp.Quantity,
			EntryPrice:     bp.AvgPrice,
			EntryTime:      now,
			LastPrice:      bp.AvgPrice,
			TrailingMethod: domain.TrailingHeikenAshi,
			External:       true,
		}
		r.logger.Warn().Str("symbol", symbol).Msg("adopting external broker position")
		if err := r.manager.Open(ctx, adopted); err != nil {
			return fmt.Errorf("adopt %s: %w", symbol, err)
		}
	}

	return r.SweepStale(ctx, now)
}

// SweepStale force-closes positions whose last update is older than the
// configured threshold. A position still receiving stop updates is live
// no matter how long ago it was entered.
func (r *Reconciler) SweepStale(ctx context.Context, now time.Time) error {
	for _, p := range r.manager.OpenPositions() {
		lastTouch := p.LastUpdate
		if lastTouch.IsZero() {
			lastTouch = p.EntryTime
		}
		if lastTouch.IsZero() || now.Sub(lastTouch) < r.opts.StaleAfter {
			continue
		}
		r.logger.Warn().
			Str("symbol", p.Symbol).
			Time("last_update", lastTouch).
			Msg("sweeping stale position")
		if err := r.gateway.ClosePosition(ctx, p.Symbol); err != nil && !errors.Is(err, broker.ErrPositionNotFound) {
			return fmt.Errorf("liquidate stale %s: %w", p.Symbol, err)
		}
		if err := r.manager.Close(ctx, p.Symbol, p.LastPrice, now, domain.ExitReasonStale); err != nil {
			return fmt.Errorf("sweep %s: %w", p.Symbol, err)
		}
	}
	return nil
}

// RunPeriodic reconciles on the given interval until ctx is canceled.
func (r *Reconciler) RunPeriodic(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if err := r.Reconcile(ctx, now); err != nil {
				r.logger.Error().Err(err).Msg("periodic reconcile failed")
			}
		}
	}
}
