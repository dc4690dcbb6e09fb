package broker

import (
	"context"
	"errors"

	"squeezebot/internal/domain"
)

// Sentinel errors returned by Gateway implementations. Adapters map
// provider-specific failures onto these so callers can branch with
// errors.Is.
var (
	// ErrAuthExpired indicates the session token is no longer valid and
	// must be refreshed before retrying.
	ErrAuthExpired = errors.New("broker auth expired")

	// ErrRateLimited indicates the broker throttled the request.
	ErrRateLimited = errors.New("broker rate limited")

	// ErrRejected indicates the broker refused the order. Not retryable.
	ErrRejected = errors.New("order rejected")

	// ErrPositionNotFound indicates the broker has no open position for
	// the symbol.
	ErrPositionNotFound = errors.New("position not found at broker")
)

// Order is the broker's view of a submitted order.
type Order struct {
	ID          string
	Symbol      string
	Action      domain.OrderAction
	Status      domain.OrderStatus
	Quantity    int
	FilledQty   int
	FilledPrice float64
}

// Filled reports whether the order reached the filled terminal state.
func (o Order) Filled() bool {
	return o.Status == domain.OrderStatusFilled
}

// Gateway is the order and position surface of a brokerage account.
// Implementations must be safe for concurrent use.
type Gateway interface {
	// SubmitOrder places an order and returns the broker's view of it.
	// The returned order may still be pending; callers poll GetOrder for
	// terminal status.
	SubmitOrder(ctx context.Context, spec domain.OrderSpec) (*Order, error)

	// GetOrder retrieves the current state of an order by broker ID.
	GetOrder(ctx context.Context, id string) (*Order, error)

	// CancelOrder cancels a pending order. Canceling an already-terminal
	// order is a no-op.
	CancelOrder(ctx context.Context, id string) error

	// OpenOrders lists non-terminal orders.
	OpenOrders(ctx context.Context) ([]Order, error)

	// Positions lists the broker's open positions.
	Positions(ctx context.Context) ([]domain.BrokerPosition, error)

	// ClosePosition liquidates the position for a symbol at market.
	// Returns ErrPositionNotFound when no position exists.
	ClosePosition(ctx context.Context, symbol string) error

	// GetQuote returns the current market price for a symbol.
	GetQuote(ctx context.Context, symbol string) (float64, error)
}
