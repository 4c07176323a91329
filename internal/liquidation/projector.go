// Package liquidation is the pure-math projector: liquidation price,
// price-sweep classification and funding-drift projection. It never
// touches the ledger; every market- or fee-dependent figure arrives as an
// explicit parameter, so the same functions serve what-if projections and
// replay-derived numbers alike.
package liquidation

import (
	"github.com/shopspring/decimal"

	"perpsim/internal/domain"
	"perpsim/internal/fixedpoint"
)

// Options tune sweep and funding projections.
type Options struct {
	// PriceRangePct is the half-width of the sweep around mark, e.g. 0.2
	// sweeps mark±20%. Defaults to 0.2.
	PriceRangePct decimal.Decimal
	// SweepSteps is the number of intervals in the sweep (points = steps+1).
	// Defaults to 20.
	SweepSteps int
	// FundingHours is the projection horizon. Defaults to 24.
	FundingHours int
	// FundingSteps is the number of hour marks. Defaults to 8.
	FundingSteps int
	// MaintenanceMarginRatio, e.g. 0.05 for 5%.
	MaintenanceMarginRatio decimal.Decimal
	// CollateralDecimals converts Position.Margin smallest units to human
	// collateral. Defaults to 6.
	CollateralDecimals int32
}

func (o Options) withDefaults() Options {
	if o.PriceRangePct.IsZero() {
		o.PriceRangePct = decimal.RequireFromString("0.2")
	}
	if o.SweepSteps <= 0 {
		o.SweepSteps = 20
	}
	if o.FundingHours <= 0 {
		o.FundingHours = 24
	}
	if o.FundingSteps <= 0 {
		o.FundingSteps = 8
	}
	if o.CollateralDecimals == 0 {
		o.CollateralDecimals = 6
	}
	return o
}

// Price computes the liquidation price: the price where equity (collateral
// plus directional PnL) equals mmr times the notional at that price.
//
//	long:  (entry*size - collateral) / (size * (1 - mmr))
//	short: (entry*size + collateral) / (size * (1 + mmr))
//
// A negative algebraic result clamps to zero: a fully collateralized
// position has no positive liquidation price.
func Price(entryPrice, size, collateral decimal.Decimal, isLong bool, mmr decimal.Decimal) decimal.Decimal {
	if size.IsZero() {
		return decimal.Zero
	}

	notionalAtEntry := entryPrice.Mul(size)
	var numerator, denominator decimal.Decimal
	if isLong {
		numerator = notionalAtEntry.Sub(collateral)
		denominator = size.Mul(decimal.NewFromInt(1).Sub(mmr))
	} else {
		numerator = notionalAtEntry.Add(collateral)
		denominator = size.Mul(decimal.NewFromInt(1).Add(mmr))
	}
	if denominator.IsZero() {
		return decimal.Zero
	}

	liq := numerator.Div(denominator)
	if liq.IsNegative() {
		return decimal.Zero
	}
	return liq
}

// Sweep produces steps+1 evenly spaced price points over
// [mark*(1-rangePct), mark*(1+rangePct)], each flagged liquidatable when it
// sits on the losing side of the liquidation price.
func Sweep(position domain.Position, market domain.MarketState, opts Options) []domain.SweepPoint {
	opts = opts.withDefaults()

	mark := fixedpoint.DecodePrice(market.MarkPrice, market.PriceDecimals)
	entry := fixedpoint.DecodePrice(position.EntryPrice, market.PriceDecimals)
	size := fixedpoint.DecodeLot(position.LotSize, market.LotDecimals)
	collateral := fixedpoint.DecodeCollateral(position.Margin, opts.CollateralDecimals)
	isLong := position.Side == domain.SideLong

	liq := Price(entry, size, collateral, isLong, opts.MaintenanceMarginRatio)

	low := mark.Mul(decimal.NewFromInt(1).Sub(opts.PriceRangePct))
	high := mark.Mul(decimal.NewFromInt(1).Add(opts.PriceRangePct))
	step := high.Sub(low).Div(decimal.NewFromInt(int64(opts.SweepSteps)))

	points := make([]domain.SweepPoint, 0, opts.SweepSteps+1)
	for i := 0; i <= opts.SweepSteps; i++ {
		price := low.Add(step.Mul(decimal.NewFromInt(int64(i))))
		liquidatable := false
		if liq.IsPositive() {
			if isLong {
				liquidatable = price.LessThanOrEqual(liq)
			} else {
				liquidatable = price.GreaterThanOrEqual(liq)
			}
		}
		points = append(points, domain.SweepPoint{Price: price, Liquidatable: liquidatable})
	}
	return points
}

// ProjectFunding accrues hourly funding cost against collateral and
// recomputes the liquidation price at each hour mark. Longs pay a positive
// rate and receive a negative one; shorts mirror that. A zero rate yields
// an empty projection.
func ProjectFunding(position domain.Position, market domain.MarketState, opts Options) []domain.FundingPoint {
	opts = opts.withDefaults()

	if market.FundingRateRaw == 0 {
		return nil
	}

	rate := decimal.New(market.FundingRateRaw, 0).Div(decimal.NewFromInt(domain.FundingRateScale))
	mark := fixedpoint.DecodePrice(market.MarkPrice, market.PriceDecimals)
	entry := fixedpoint.DecodePrice(position.EntryPrice, market.PriceDecimals)
	size := fixedpoint.DecodeLot(position.LotSize, market.LotDecimals)
	collateral := fixedpoint.DecodeCollateral(position.Margin, opts.CollateralDecimals)
	isLong := position.Side == domain.SideLong

	// Hourly cost on notional at mark. Positive cost drains a long's
	// collateral; a short flips the sign.
	hourlyCost := rate.Mul(mark).Mul(size)
	if !isLong {
		hourlyCost = hourlyCost.Neg()
	}

	hourStep := decimal.NewFromInt(int64(opts.FundingHours)).Div(decimal.NewFromInt(int64(opts.FundingSteps)))

	points := make([]domain.FundingPoint, 0, opts.FundingSteps)
	for i := 1; i <= opts.FundingSteps; i++ {
		hours := hourStep.Mul(decimal.NewFromInt(int64(i)))
		accrued := hourlyCost.Mul(hours)
		effective := collateral.Sub(accrued)
		points = append(points, domain.FundingPoint{
			Hour:                     hours,
			FundingAccrued:           accrued,
			AdjustedLiquidationPrice: Price(entry, size, effective, isLong, opts.MaintenanceMarginRatio),
		})
	}
	return points
}

// Project bundles the flat liquidation price, sweep and funding drift for
// one position into a LiquidationProjection.
func Project(perpetualID uint32, position domain.Position, market domain.MarketState, opts Options) domain.LiquidationProjection {
	opts = opts.withDefaults()

	entry := fixedpoint.DecodePrice(position.EntryPrice, market.PriceDecimals)
	size := fixedpoint.DecodeLot(position.LotSize, market.LotDecimals)
	collateral := fixedpoint.DecodeCollateral(position.Margin, opts.CollateralDecimals)
	isLong := position.Side == domain.SideLong

	return domain.LiquidationProjection{
		PerpetualID:      perpetualID,
		LiquidationPrice: Price(entry, size, collateral, isLong, opts.MaintenanceMarginRatio),
		Sweep:            Sweep(position, market, opts),
		Funding:          ProjectFunding(position, market, opts),
	}
}
