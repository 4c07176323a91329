package domain

import "github.com/shopspring/decimal"

// VolumeWeightedPrice computes the human-unit VWAP of a match list through
// the market's price decimals: sum(price*lot)/sum(lot), then unscaled.
// Returns nil iff matches is empty, matching the invariant that a fill
// price exists only when fills do.
func VolumeWeightedPrice(matches []MatchRecord, priceDecimals int32) *decimal.Decimal {
	if len(matches) == 0 {
		return nil
	}

	notional := decimal.Zero
	lots := decimal.Zero
	for _, m := range matches {
		price := decimal.NewFromInt(m.Price)
		lot := decimal.NewFromInt(m.LotSize)
		notional = notional.Add(price.Mul(lot))
		lots = lots.Add(lot)
	}
	if lots.IsZero() {
		return nil
	}

	vwap := notional.Div(lots).Shift(-priceDecimals)
	return &vwap
}
