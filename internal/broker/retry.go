package broker

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"squeezebot/internal/domain"
)

// RefreshFunc re-authenticates the underlying session after an
// ErrAuthExpired. It is invoked at most once per operation.
type RefreshFunc func(ctx context.Context) error

// RetryOptions configures the retrying gateway decorator.
type RetryOptions struct {
	MaxRetries      uint64
	InitialInterval time.Duration
	Refresh         RefreshFunc
	Logger          zerolog.Logger
}

// Retrier decorates a Gateway with rate-limit backoff and a single
// auth-refresh attempt. Opening orders are never retried: a request that
// timed out may still have reached the broker, and retrying would risk a
// duplicate position. Closing orders and reads are safe to retry.
type Retrier struct {
	inner   Gateway
	opts    RetryOptions
	logger  zerolog.Logger
	refresh RefreshFunc
}

// NewRetrier wraps gw with retry behavior.
func NewRetrier(gw Gateway, opts RetryOptions) *Retrier {
	if opts.MaxRetries == 0 {
		opts.MaxRetries = 3
	}
	if opts.InitialInterval == 0 {
		opts.InitialInterval = 500 * time.Millisecond
	}
	return &Retrier{
		inner:   gw,
		opts:    opts,
		logger:  opts.Logger.With().Str("component", "broker_retry").Logger(),
		refresh: opts.Refresh,
	}
}

// Compile-time interface check.
var _ Gateway = (*Retrier)(nil)

func (r *Retrier) newBackOff(ctx context.Context) backoff.BackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = r.opts.InitialInterval
	return backoff.WithContext(backoff.WithMaxRetries(bo, r.opts.MaxRetries), ctx)
}

// do runs op with rate-limit retries and one auth refresh.
func (r *Retrier) do(ctx context.Context, name string, op func() error) error {
	refreshed := false

	attempt := func() error {
		err := op()
		if err == nil {
			return nil
		}

		if errors.Is(err, ErrAuthExpired) && r.refresh != nil && !refreshed {
			refreshed = true
			r.logger.Warn().Str("op", name).Msg("auth expired, refreshing session")
			if refreshErr := r.refresh(ctx); refreshErr != nil {
				return backoff.Permanent(refreshErr)
			}
			// Retry immediately after a successful refresh.
			return err
		}

		if errors.Is(err, ErrRateLimited) {
			r.logger.Warn().Str("op", name).Msg("rate limited, backing off")
			return err
		}

		return backoff.Permanent(err)
	}

	return backoff.Retry(attempt, r.newBackOff(ctx))
}

// SubmitOrder submits an order. Opening actions are submitted exactly
// once; closing actions retry on rate limits.
func (r *Retrier) SubmitOrder(ctx context.Context, spec domain.OrderSpec) (*Order, error) {
	opening := spec.Action == domain.OrderActionBuyToOpen || spec.Action == domain.OrderActionSellToOpen
	if opening {
		return r.inner.SubmitOrder(ctx, spec)
	}

	var order *Order
	err := r.do(ctx, "submit_order", func() error {
		var err error
		order, err = r.inner.SubmitOrder(ctx, spec)
		return err
	})
	return order, err
}

// GetOrder retrieves an order with retries.
func (r *Retrier) GetOrder(ctx context.Context, id string) (*Order, error) {
	var order *Order
	err := r.do(ctx, "get_order", func() error {
		var err error
		order, err = r.inner.GetOrder(ctx, id)
		return err
	})
	return order, err
}

// CancelOrder cancels an order with retries.
func (r *Retrier) CancelOrder(ctx context.Context, id string) error {
	return r.do(ctx, "cancel_order", func() error {
		return r.inner.CancelOrder(ctx, id)
	})
}

// OpenOrders lists non-terminal orders with retries.
func (r *Retrier) OpenOrders(ctx context.Context) ([]Order, error) {
	var orders []Order
	err := r.do(ctx, "open_orders", func() error {
		var err error
		orders, err = r.inner.OpenOrders(ctx)
		return err
	})
	return orders, err
}

// Positions lists broker positions with retries.
func (r *Retrier) Positions(ctx context.Context) ([]domain.BrokerPosition, error) {
	var positions []domain.BrokerPosition
	err := r.do(ctx, "positions", func() error {
		var err error
		positions, err = r.inner.Positions(ctx)
		return err
	})
	return positions, err
}

// GetQuote returns the current market price with retries.
func (r *Retrier) GetQuote(ctx context.Context, symbol string) (float64, error) {
	var price float64
	err := r.do(ctx, "get_quote", func() error {
		var err error
		price, err = r.inner.GetQuote(ctx, symbol)
		return err
	})
	return price, err
}

// ClosePosition liquidates a position with retries.
func (r *Retrier) ClosePosition(ctx context.Context, symbol string) error {
	return r.do(ctx, "close_position", func() error {
		return r.inner.ClosePosition(ctx, symbol)
	})
}
