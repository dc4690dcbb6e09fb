package domain

// Direction is the directional bias of a signal, basket member, or trade.
type Direction string

// Direction constants.
const (
	DirectionBullish Direction = "bullish"
	DirectionBearish Direction = "bearish"
	DirectionNeutral Direction = "neutral"
)

// Opposite returns the mirrored direction. Neutral maps to itself.
func (d Direction) Opposite() Direction {
	switch d {
	case DirectionBullish:
		return DirectionBearish
	case DirectionBearish:
		return DirectionBullish
	default:
		return DirectionNeutral
	}
}

// BasketMode selects how directional consensus is computed.
type BasketMode string

// Basket mode constants.
const (
	BasketModeSector  BasketMode = "sector"
	BasketModeMegaCap BasketMode = "megacap"
)

// BasketMember is one reference instrument in the alignment basket.
// Weight is only meaningful in sector mode. Status is derived per update
// from the 5-period mean-deviation test; Ready is false until the member
// has enough history to vote.
type BasketMember struct {
	Symbol string
	Weight float64
	Status Direction
	Ready  bool
}
