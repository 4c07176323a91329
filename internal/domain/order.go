package domain

// OrderType identifies the exchange operation an order descriptor encodes.
type OrderType uint8

const (
	OrderTypeOpenLong OrderType = iota
	OrderTypeOpenShort
	OrderTypeCloseLong
	OrderTypeCloseShort
	OrderTypeCancel
	OrderTypeChange
)

// String returns the exchange-facing name for the order type.
func (t OrderType) String() string {
	switch t {
	case OrderTypeOpenLong:
		return "OPEN_LONG"
	case OrderTypeOpenShort:
		return "OPEN_SHORT"
	case OrderTypeCloseLong:
		return "CLOSE_LONG"
	case OrderTypeCloseShort:
		return "CLOSE_SHORT"
	case OrderTypeCancel:
		return "CANCEL"
	case OrderTypeChange:
		return "CHANGE"
	default:
		return "UNKNOWN"
	}
}

// IsOpen reports whether the order type opens or extends a position.
func (t OrderType) IsOpen() bool {
	return t == OrderTypeOpenLong || t == OrderTypeOpenShort
}

// OrderDescriptor is one order as the exchange contract accepts it.
// All price/size/leverage fields are protocol fixed-point integers scaled
// by the market's decimal counts. Descriptors are immutable once built.
type OrderDescriptor struct {
	PerpetualID        uint32
	OrderType          OrderType
	OrderID            uint64 // target order for CANCEL / CHANGE, else 0
	Price              int64  // fixed-point, market price decimals
	LotSize            int64  // fixed-point, market lot decimals
	ExpiryBlock        uint64
	PostOnly           bool
	FillOrKill         bool
	ImmediateOrCancel  bool
	MaxMatches         uint32
	Leverage           int64 // fixed-point, leverage decimals
	LastExecutionBlock uint64
	Amount             int64 // collateral amount in smallest units, 0 if unused
}

// MatchRecord is one maker fill extracted from a fill-class event.
type MatchRecord struct {
	MakerAccount string
	MakerOrderID uint64
	Price        int64 // fixed-point
	LotSize      int64 // fixed-point
	Fee          int64 // collateral smallest units
}
