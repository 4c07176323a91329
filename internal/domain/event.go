package domain

// DomainEvent is one decoded exchange event. Rather than one concrete type
// per event kind, events are a tagged union: consumers switch on Name and
// pull typed values out of Args. Args values are decimal strings for
// integers, lowercase 0x-hex for addresses and "true"/"false" for bools.
//
// Events are produced in strict receipt-log order; that order is the only
// signal used to group events back into per-order outcomes.
type DomainEvent struct {
	Name string
	Args map[string]string
}

// Event names emitted by the exchange contract.
const (
	EventOrderRequest    = "OrderRequest"
	EventOrderPlaced     = "OrderPlaced"
	EventOrderMatched    = "OrderMatched"
	EventOrderCancelled  = "OrderCancelled"
	EventOrderChanged    = "OrderChanged"
	EventPositionChanged = "PositionChanged"
	EventFundingPaid     = "FundingPaid"
	EventMarginAdded     = "MarginAdded"
	EventLiquidated      = "Liquidated"
	EventDeposit         = "Deposit"
	EventWithdraw        = "Withdraw"
)
