package strategy

import (
	"github.com/shopspring/decimal"

	"perpsim/internal/domain"
	"perpsim/internal/fixedpoint"
)

// Grid lays a symmetric price ladder around mark: Levels buy rungs below,
// Levels sell rungs above, each SpacingPct apart.
type Grid struct{}

// Name identifies the strategy in results.
func (g *Grid) Name() string { return TypeGrid }

// Generate builds the grid descriptors, buys first (closest rung first),
// then sells.
func (g *Grid) Generate(cfg Config, market domain.MarketState) ([]domain.OrderDescriptor, error) {
	mark := fixedpoint.DecodePrice(market.MarkPrice, market.PriceDecimals)
	lot := fixedpoint.EncodeLot(cfg.LotSize, market.LotDecimals)
	leverage := fixedpoint.EncodeLeverage(cfg.Leverage, cfg.LeverageDecimals)
	expiry := expiryBlock(cfg)

	orders := make([]domain.OrderDescriptor, 0, 2*cfg.Levels)
	one := decimal.NewFromInt(1)

	for i := 1; i <= cfg.Levels; i++ {
		offset := cfg.SpacingPct.Mul(decimal.NewFromInt(int64(i)))
		buyPrice := mark.Mul(one.Sub(offset))
		orders = append(orders, domain.OrderDescriptor{
			PerpetualID: market.PerpetualID,
			OrderType:   domain.OrderTypeOpenLong,
			Price:       fixedpoint.EncodePrice(buyPrice, market.PriceDecimals),
			LotSize:     lot,
			ExpiryBlock: expiry,
			PostOnly:    cfg.PostOnly,
			Leverage:    leverage,
		})
	}
	for i := 1; i <= cfg.Levels; i++ {
		offset := cfg.SpacingPct.Mul(decimal.NewFromInt(int64(i)))
		sellPrice := mark.Mul(one.Add(offset))
		orders = append(orders, domain.OrderDescriptor{
			PerpetualID: market.PerpetualID,
			OrderType:   domain.OrderTypeOpenShort,
			Price:       fixedpoint.EncodePrice(sellPrice, market.PriceDecimals),
			LotSize:     lot,
			ExpiryBlock: expiry,
			PostOnly:    cfg.PostOnly,
			Leverage:    leverage,
		})
	}
	return orders, nil
}

// Metrics reports grid capital, break-even and rung spacing.
func (g *Grid) Metrics(cfg Config, orders []domain.OrderDescriptor, market domain.MarketState) domain.DerivedMetrics {
	mark := fixedpoint.DecodePrice(market.MarkPrice, market.PriceDecimals)
	return domain.DerivedMetrics{
		CapitalRequired: capitalRequired(orders, market, cfg.Leverage),
		// The symmetric ladder breaks even at its center.
		BreakEvenPrice: mark,
		GridSpacing:    mark.Mul(cfg.SpacingPct),
	}
}
