package domain

import "github.com/shopspring/decimal"

// OrderStatus is the mutually exclusive fate of one submitted order.
type OrderStatus string

const (
	StatusFilled  OrderStatus = "FILLED"
	StatusResting OrderStatus = "RESTING"
	StatusFailed  OrderStatus = "FAILED"
)

// OrderOutcome classifies one submitted OrderDescriptor after execution.
// Matches never borrow fills from a sibling order: they are exactly the
// fill events seen between this order's request marker and the next.
type OrderOutcome struct {
	Index     int
	OrderType OrderType
	Price     int64 // fixed-point, as submitted
	LotSize   int64 // fixed-point, as submitted
	Status    OrderStatus
	Matches   []MatchRecord
	// VolumeWeightedFillPrice is the human-unit VWAP across Matches,
	// nil iff Matches is empty.
	VolumeWeightedFillPrice *decimal.Decimal
	TotalFees               int64
	// RestingOrderID is the exchange-assigned id, nil unless Status is RESTING.
	RestingOrderID *uint64
}

// FilledLots returns the total matched lot size across all matches.
func (o OrderOutcome) FilledLots() int64 {
	var total int64
	for _, m := range o.Matches {
		total += m.LotSize
	}
	return total
}
