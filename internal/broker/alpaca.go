package broker

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/alpacahq/alpaca-trade-api-go/v3/alpaca"
	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"squeezebot/internal/domain"
)

// AlpacaOptions configures the Alpaca gateway.
type AlpacaOptions struct {
	APIKey    string
	APISecret string
	// BaseURL selects the paper or live trading endpoint.
	BaseURL string
	Logger  zerolog.Logger
}

// Alpaca adapts the Alpaca trading API to the Gateway interface.
// Prices cross the boundary as decimals and are converted at the edge.
type Alpaca struct {
	client *alpaca.Client
	md     *marketdata.Client
	logger zerolog.Logger
}

// NewAlpaca creates an Alpaca-backed gateway.
func NewAlpaca(opts AlpacaOptions) *Alpaca {
	client := alpaca.NewClient(alpaca.ClientOpts{
		APIKey:    opts.APIKey,
		APISecret: opts.APISecret,
		BaseURL:   opts.BaseURL,
	})
	md := marketdata.NewClient(marketdata.ClientOpts{
		APIKey:    opts.APIKey,
		APISecret: opts.APISecret,
	})
	return &Alpaca{
		client: client,
		md:     md,
		logger: opts.Logger.With().Str("component", "alpaca").Logger(),
	}
}

// Compile-time interface check.
var _ Gateway = (*Alpaca)(nil)

// SubmitOrder places an order with Alpaca.
func (a *Alpaca) SubmitOrder(_ context.Context, spec domain.OrderSpec) (*Order, error) {
	if spec.Symbol == "" || spec.Quantity <= 0 {
		return nil, fmt.Errorf("%w: invalid order spec", ErrRejected)
	}

	qty := decimal.NewFromInt(int64(spec.Quantity))
	req := alpaca.PlaceOrderRequest{
		Symbol:         spec.Symbol,
		Qty:            &qty,
		Side:           orderSide(spec.Action),
		Type:           alpaca.OrderType(spec.Type),
		TimeInForce:    alpaca.Day,
		PositionIntent: positionIntent(spec.Action),
	}
	if spec.Type == domain.OrderTypeLimit && spec.LimitPrice > 0 {
		// Round to 2 decimal places to avoid sub-penny increments.
		limit := decimal.NewFromFloat(spec.LimitPrice).Round(2)
		req.LimitPrice = &limit
	}

	order, err := a.client.PlaceOrder(req)
	if err != nil {
		return nil, mapAlpacaError("place order", err)
	}

	a.logger.Info().
		Str("symbol", spec.Symbol).
		Str("action", string(spec.Action)).
		Str("order_id", order.ID).
		Msg("order submitted")

	return mapOrder(order, spec.Action), nil
}

// GetOrder retrieves the current state of an order.
func (a *Alpaca) GetOrder(_ context.Context, id string) (*Order, error) {
	order, err := a.client.GetOrder(id)
	if err != nil {
		return nil, mapAlpacaError("get order", err)
	}
	return mapOrder(order, ""), nil
}

// CancelOrder cancels a pending order.
func (a *Alpaca) CancelOrder(_ context.Context, id string) error {
	if err := a.client.CancelOrder(id); err != nil {
		return mapAlpacaError("cancel order", err)
	}
	return nil
}

// OpenOrders lists non-terminal orders.
func (a *Alpaca) OpenOrders(_ context.Context) ([]Order, error) {
	orders, err := a.client.GetOrders(alpaca.GetOrdersRequest{Status: "open"})
	if err != nil {
		return nil, mapAlpacaError("get orders", err)
	}

	result := make([]Order, 0, len(orders))
	for i := range orders {
		result = append(result, *mapOrder(&orders[i], ""))
	}
	return result, nil
}

// Positions lists the broker's open positions.
func (a *Alpaca) Positions(_ context.Context) ([]domain.BrokerPosition, error) {
	positions, err := a.client.GetPositions()
	if err != nil {
		return nil, mapAlpacaError("get positions", err)
	}

	result := make([]domain.BrokerPosition, 0, len(positions))
	for _, p := range positions {
		direction := domain.DirectionBullish
		if p.Side == "short" {
			direction = domain.DirectionBearish
		}
		qty := int(p.Qty.IntPart())
		if qty < 0 {
			qty = -qty
		}
		pos := domain.BrokerPosition{
			Symbol:    p.Symbol,
			Quantity:  qty,
			Direction: direction,
			AvgPrice:  p.AvgEntryPrice.InexactFloat64(),
		}
		if p.MarketValue != nil {
			pos.MarketVal = p.MarketValue.InexactFloat64()
		}
		result = append(result, pos)
	}
	return result, nil
}

// ClosePosition liquidates the position for a symbol at market.
func (a *Alpaca) ClosePosition(_ context.Context, symbol string) error {
	_, err := a.client.ClosePosition(symbol, alpaca.ClosePositionRequest{})
	if err != nil {
		mapped := mapAlpacaError("close position", err)
		var apiErr *alpaca.APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
			return ErrPositionNotFound
		}
		return mapped
	}
	return nil
}

// GetQuote returns the bid/ask midpoint for a symbol, falling back to
// whichever side is present.
func (a *Alpaca) GetQuote(_ context.Context, symbol string) (float64, error) {
	quote, err := a.md.GetLatestQuote(symbol, marketdata.GetLatestQuoteRequest{})
	if err != nil {
		return 0, mapAlpacaError("get quote", err)
	}

	bid, ask := quote.BidPrice, quote.AskPrice
	switch {
	case bid > 0 && ask > 0:
		return (bid + ask) / 2, nil
	case ask > 0:
		return ask, nil
	default:
		return bid, nil
	}
}

func orderSide(action domain.OrderAction) alpaca.Side {
	switch action {
	case domain.OrderActionBuyToOpen, domain.OrderActionBuyToClose:
		return alpaca.Buy
	default:
		return alpaca.Sell
	}
}

func positionIntent(action domain.OrderAction) alpaca.PositionIntent {
	switch action {
	case domain.OrderActionBuyToOpen:
		return alpaca.BuyToOpen
	case domain.OrderActionSellToOpen:
		return alpaca.SellToOpen
	case domain.OrderActionBuyToClose:
		return alpaca.BuyToClose
	default:
		return alpaca.SellToClose
	}
}

func mapOrder(o *alpaca.Order, action domain.OrderAction) *Order {
	order := &Order{
		ID:     o.ID,
		Symbol: o.Symbol,
		Action: action,
		Status: mapOrderStatus(o.Status),
	}
	if o.Qty != nil {
		order.Quantity = int(o.Qty.IntPart())
	}
	order.FilledQty = int(o.FilledQty.IntPart())
	if o.FilledAvgPrice != nil {
		order.FilledPrice = o.FilledAvgPrice.InexactFloat64()
	}
	return order
}

func mapOrderStatus(status string) domain.OrderStatus {
	switch status {
	case "filled":
		return domain.OrderStatusFilled
	case "canceled", "done_for_day":
		return domain.OrderStatusCanceled
	case "rejected":
		return domain.OrderStatusRejected
	case "expired":
		return domain.OrderStatusExpired
	default:
		return domain.OrderStatusPending
	}
}

// mapAlpacaError folds API failures onto the gateway sentinel errors.
func mapAlpacaError(op string, err error) error {
	var apiErr *alpaca.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return fmt.Errorf("%s: %w", op, ErrAuthExpired)
		case http.StatusTooManyRequests:
			return fmt.Errorf("%s: %w", op, ErrRateLimited)
		case http.StatusUnprocessableEntity:
			return fmt.Errorf("%s: %s: %w", op, apiErr.Message, ErrRejected)
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}
