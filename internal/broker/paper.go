package broker

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"squeezebot/internal/domain"
)

// PriceFunc supplies the current market price for a symbol.
type PriceFunc func(symbol string) (float64, error)

// Paper is an in-process Gateway that fills market orders immediately at
// the supplied price. It backs live-mode dry runs and engine tests.
type Paper struct {
	price  PriceFunc
	logger zerolog.Logger

	mu        sync.Mutex
	orders    map[string]*Order
	positions map[string]*domain.BrokerPosition
}

// NewPaper creates a paper broker quoting prices from price.
func NewPaper(price PriceFunc, logger zerolog.Logger) *Paper {
	return &Paper{
		price:     price,
		logger:    logger.With().Str("component", "paper_broker").Logger(),
		orders:    make(map[string]*Order),
		positions: make(map[string]*domain.BrokerPosition),
	}
}

// Compile-time interface check.
var _ Gateway = (*Paper)(nil)

// SubmitOrder fills market orders immediately. Limit orders fill only
// when marketable at the current price, otherwise they rest as pending.
func (p *Paper) SubmitOrder(_ context.Context, spec domain.OrderSpec) (*Order, error) {
	if spec.Symbol == "" || spec.Quantity <= 0 {
		return nil, fmt.Errorf("%w: invalid order spec", ErrRejected)
	}

	price, err := p.price(spec.Symbol)
	if err != nil {
		return nil, fmt.Errorf("quote %s: %w", spec.Symbol, err)
	}

	order := &Order{
		ID:       uuid.NewString(),
		Symbol:   spec.Symbol,
		Action:   spec.Action,
		Status:   domain.OrderStatusPending,
		Quantity: spec.Quantity,
	}

	fillable := spec.Type == domain.OrderTypeMarket || marketable(spec, price)
	if fillable {
		order.Status = domain.OrderStatusFilled
		order.FilledQty = spec.Quantity
		order.FilledPrice = price
	}

	p.mu.Lock()
	p.orders[order.ID] = order
	if fillable {
		p.applyFill(spec, price)
	}
	p.mu.Unlock()

	p.logger.Info().
		Str("symbol", spec.Symbol).
		Str("action", string(spec.Action)).
		Str("status", string(order.Status)).
		Float64("price", price).
		Msg("paper order")

	copy := *order
	return &copy, nil
}

func marketable(spec domain.OrderSpec, price float64) bool {
	switch spec.Action {
	case domain.OrderActionBuyToOpen, domain.OrderActionBuyToClose:
		return price <= spec.LimitPrice
	default:
		return price >= spec.LimitPrice
	}
}

// applyFill mutates the position book for a filled order. Caller holds mu.
func (p *Paper) applyFill(spec domain.OrderSpec, price float64) {
	switch spec.Action {
	case domain.OrderActionBuyToOpen:
		p.positions[spec.Symbol] = &domain.BrokerPosition{
			Symbol: spec.Symbol, Quantity: spec.Quantity,
			Direction: domain.DirectionBullish, AvgPrice: price,
		}
	case domain.OrderActionSellToOpen:
		p.positions[spec.Symbol] = &domain.BrokerPosition{
			Symbol: spec.Symbol, Quantity: spec.Quantity,
			Direction: domain.DirectionBearish, AvgPrice: price,
		}
	case domain.OrderActionSellToClose, domain.OrderActionBuyToClose:
		delete(p.positions, spec.Symbol)
	}
}

// GetOrder retrieves the current state of an order.
func (p *Paper) GetOrder(_ context.Context, id string) (*Order, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	order, exists := p.orders[id]
	if !exists {
		return nil, fmt.Errorf("order %s: not found", id)
	}
	copy := *order
	return &copy, nil
}

// CancelOrder cancels a pending order. Terminal orders are left alone.
func (p *Paper) CancelOrder(_ context.Context, id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	order, exists := p.orders[id]
	if !exists {
		return fmt.Errorf("order %s: not found", id)
	}
	if order.Status == domain.OrderStatusPending {
		order.Status = domain.OrderStatusCanceled
	}
	return nil
}

// OpenOrders lists non-terminal orders.
func (p *Paper) OpenOrders(_ context.Context) ([]Order, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var result []Order
	for _, o := range p.orders {
		if o.Status == domain.OrderStatusPending {
			result = append(result, *o)
		}
	}
	return result, nil
}

// Positions lists the broker's open positions.
func (p *Paper) Positions(_ context.Context) ([]domain.BrokerPosition, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var result []domain.BrokerPosition
	for _, pos := range p.positions {
		result = append(result, *pos)
	}
	return result, nil
}

// ClosePosition liquidates the position for a symbol at the current price.
func (p *Paper) ClosePosition(_ context.Context, symbol string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, exists := p.positions[symbol]; !exists {
		return ErrPositionNotFound
	}
	delete(p.positions, symbol)
	return nil
}

// GetQuote returns the current price from the price source.
func (p *Paper) GetQuote(_ context.Context, symbol string) (float64, error) {
	return p.price(symbol)
}

// SetPosition seeds a broker-side position directly, bypassing the order
// path. Reconciliation tests use it to model externally opened positions.
// OrderCount reports how many orders have been submitted in total,
// filled or not.
func (p *Paper) OrderCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.orders)
}

func (p *Paper) SetPosition(pos domain.BrokerPosition) {
	p.mu.Lock()
	defer p.mu.Unlock()
	copy := pos
	p.positions[pos.Symbol] = &copy
}
