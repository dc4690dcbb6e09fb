package domain

import "time"

// TradeState is the lifecycle state of a trade.
type TradeState string

// Lifecycle states. Closed is terminal.
const (
	TradeStateIdle         TradeState = "IDLE"
	TradeStatePendingEntry TradeState = "PENDING_ENTRY"
	TradeStateOpen         TradeState = "OPEN"
	TradeStateClosed       TradeState = "CLOSED"
)

// TrailingMethod identifies one of the interchangeable stop-update algorithms.
type TrailingMethod string

// Trailing method constants.
const (
	TrailingHeikenAshi TrailingMethod = "HA_TRAIL"
	TrailingEMA        TrailingMethod = "EMA_TRAIL"
	TrailingPercent    TrailingMethod = "PCT_TRAIL"
	TrailingATR        TrailingMethod = "ATR_TRAIL"
	TrailingFixed      TrailingMethod = "FIXED_TRAIL"
)

// AllTrailingMethods lists every method, in the order the backtest
// simulates them.
var AllTrailingMethods = []TrailingMethod{
	TrailingHeikenAshi,
	TrailingEMA,
	TrailingPercent,
	TrailingATR,
	TrailingFixed,
}

// StopLossMethod identifies the rule that seeds the initial protective
// stop when an entry fills. The trailing method takes over from there.
type StopLossMethod string

// Stop-loss seeding rule constants.
const (
	StopFixedPercentage StopLossMethod = "Fixed Percentage"
	StopATRMultiple     StopLossMethod = "ATR Multiple"
	StopStructure       StopLossMethod = "Structure-based"
)

// AllStopLossMethods lists every seeding rule.
var AllStopLossMethods = []StopLossMethod{
	StopFixedPercentage,
	StopATRMultiple,
	StopStructure,
}

// Exit reason codes recorded on trade close, in evaluator priority order.
const (
	ExitReasonStopLoss      = "Stop loss hit"
	ExitReasonHAReversal    = "Heiken-Ashi reversal"
	ExitReasonStochCross    = "Stochastic reversal cross"
	ExitReasonTrendBreak    = "Closed beyond VWAP and EMA"
	ExitReasonRecompression = "Re-entered compression zone"
	ExitReasonFailsafe      = "Failsafe time exit"
	ExitReasonMaxHold       = "Max bars reached"
	ExitReasonAutoClose     = "Session auto-close"
	ExitReasonKillSwitch    = "Kill switch"
	ExitReasonNotAtBroker   = "not found at broker"
	ExitReasonStale         = "stale position"
)

// TrailingStopState tracks the active stop for an open trade.
// Ratchet invariant: for a bullish trade CurrentStop is non-decreasing
// over the life of the trade; for bearish, non-increasing.
type TrailingStopState struct {
	Method        TrailingMethod
	CurrentStop   float64
	HighWaterMark float64
	LowWaterMark  float64
}

// Trade is the lifecycle entity owned by the engine. Created on a
// qualifying TradeSignal, mutated only through defined transitions,
// archived on Closed.
type Trade struct {
	ID        string
	Symbol    string
	Direction Direction
	State     TradeState

	EntryTime  time.Time
	EntryPrice float64
	Quantity   int

	Stop TrailingStopState

	ExitTime    time.Time
	ExitPrice   float64
	ExitReason  string
	RealizedPnL float64

	// Signal carries the full cascade audit trail that opened this trade.
	Signal TradeSignal
}

// OpenPnL returns the unrealized per-unit profit at price, positive in
// the trade's favor.
func (t *Trade) OpenPnL(price float64) float64 {
	if t.Direction == DirectionBearish {
		return t.EntryPrice - price
	}
	return price - t.EntryPrice
}

// ComputePnL returns the realized profit for an exit at price, scaled
// by quantity.
func (t *Trade) ComputePnL(price float64) float64 {
	return t.OpenPnL(price) * float64(t.Quantity)
}

// Active reports whether the trade occupies its symbol's single slot.
func (t *Trade) Active() bool {
	return t.State == TradeStatePendingEntry || t.State == TradeStateOpen
}
