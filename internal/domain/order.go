package domain

// OrderAction is the broker-side action of an order leg.
type OrderAction string

// Order actions.
const (
	OrderActionBuyToOpen   OrderAction = "Buy to Open"
	OrderActionSellToClose OrderAction = "Sell to Close"
	OrderActionSellToOpen  OrderAction = "Sell to Open"
	OrderActionBuyToClose  OrderAction = "Buy to Close"
)

// OrderType distinguishes market from limit orders.
type OrderType string

// Order types.
const (
	OrderTypeMarket OrderType = "market"
	OrderTypeLimit  OrderType = "limit"
)

// OrderStatus is a terminal or in-flight broker order state.
type OrderStatus string

// Order statuses. Filled, Canceled, Rejected, and Expired are terminal.
const (
	OrderStatusPending  OrderStatus = "Pending"
	OrderStatusFilled   OrderStatus = "Filled"
	OrderStatusCanceled OrderStatus = "Canceled"
	OrderStatusRejected OrderStatus = "Rejected"
	OrderStatusExpired  OrderStatus = "Expired"
)

// OrderSpec describes an order to submit to the broker.
type OrderSpec struct {
	Symbol     string
	Action     OrderAction
	Type       OrderType
	Quantity   int
	LimitPrice float64 // only for limit orders
}

// EntryAction returns the opening action for a direction.
func EntryAction(d Direction) OrderAction {
	if d == DirectionBearish {
		return OrderActionSellToOpen
	}
	return OrderActionBuyToOpen
}

// ExitAction returns the closing action for a direction.
func ExitAction(d Direction) OrderAction {
	if d == DirectionBearish {
		return OrderActionBuyToClose
	}
	return OrderActionSellToClose
}
