package domain

import "time"

// PositionStatus is the persisted lifecycle status of a position.
type PositionStatus string

// Position status constants.
const (
	PositionStatusOpen   PositionStatus = "open"
	PositionStatusClosed PositionStatus = "closed"
)

// Position is the persisted projection of an Open/Closed trade, keyed
// by symbol. At most one active position per symbol exists at any time.
type Position struct {
	Symbol    string
	TradeID   string
	Direction Direction
	Status    PositionStatus

	Quantity   int
	EntryPrice float64
	EntryTime  time.Time

	StopPrice      float64
	TrailingMethod TrailingMethod
	LastPrice      float64

	ExitPrice  float64
	ExitTime   time.Time
	ExitReason string

	// External marks positions adopted from the broker during
	// reconciliation rather than opened by this engine.
	External bool

	CreatedAt  time.Time
	LastUpdate time.Time
}

// BrokerPosition is the broker's authoritative view of one open position,
// used during startup reconciliation and periodic sync.
type BrokerPosition struct {
	Symbol    string
	Quantity  int
	Direction Direction
	AvgPrice  float64
	MarketVal float64
}

// PositionSummary aggregates the manager's current book for monitoring.
type PositionSummary struct {
	OpenCount    int
	BullishCount int
	BearishCount int
	TotalPnL     float64
}
