package domain

import "github.com/shopspring/decimal"

// SweepPoint is one price point of a liquidation sweep.
type SweepPoint struct {
	Price        decimal.Decimal
	Liquidatable bool
}

// FundingPoint is one hour mark of a funding-drift projection.
type FundingPoint struct {
	Hour                     decimal.Decimal
	FundingAccrued           decimal.Decimal
	AdjustedLiquidationPrice decimal.Decimal
}

// LiquidationProjection is the pure-math projection for one position:
// the flat liquidation price, a sweep over a price range, and funding
// drift over time. Prices use the market's mark-price decimal convention.
type LiquidationProjection struct {
	PerpetualID      uint32
	LiquidationPrice decimal.Decimal
	Sweep            []SweepPoint
	Funding          []FundingPoint
}
