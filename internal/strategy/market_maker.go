package strategy

import (
	"github.com/shopspring/decimal"

	"perpsim/internal/domain"
	"perpsim/internal/fixedpoint"
)

// MarketMaker quotes both sides of the book around mark at half the
// configured spread, deepening each further level by SpacingPct. Quotes
// are post-only regardless of config: a maker that takes is mispriced.
type MarketMaker struct{}

// Name identifies the strategy in results.
func (m *MarketMaker) Name() string { return TypeMarketMaker }

// Generate interleaves bid/ask pairs, tightest level first.
func (m *MarketMaker) Generate(cfg Config, market domain.MarketState) ([]domain.OrderDescriptor, error) {
	mark := fixedpoint.DecodePrice(market.MarkPrice, market.PriceDecimals)
	lot := fixedpoint.EncodeLot(cfg.LotSize, market.LotDecimals)
	leverage := fixedpoint.EncodeLeverage(cfg.Leverage, cfg.LeverageDecimals)
	expiry := expiryBlock(cfg)

	halfSpread := cfg.SpacingPct.Div(decimal.NewFromInt(2))
	one := decimal.NewFromInt(1)

	orders := make([]domain.OrderDescriptor, 0, 2*cfg.Levels)
	for i := 0; i < cfg.Levels; i++ {
		depth := halfSpread.Add(cfg.SpacingPct.Mul(decimal.NewFromInt(int64(i))))
		bid := mark.Mul(one.Sub(depth))
		ask := mark.Mul(one.Add(depth))

		orders = append(orders, domain.OrderDescriptor{
			PerpetualID: market.PerpetualID,
			OrderType:   domain.OrderTypeOpenLong,
			Price:       fixedpoint.EncodePrice(bid, market.PriceDecimals),
			LotSize:     lot,
			ExpiryBlock: expiry,
			PostOnly:    true,
			Leverage:    leverage,
		}, domain.OrderDescriptor{
			PerpetualID: market.PerpetualID,
			OrderType:   domain.OrderTypeOpenShort,
			Price:       fixedpoint.EncodePrice(ask, market.PriceDecimals),
			LotSize:     lot,
			ExpiryBlock: expiry,
			PostOnly:    true,
			Leverage:    leverage,
		})
	}
	return orders, nil
}

// Metrics reports maker capital and the quoted top-of-book spread.
func (m *MarketMaker) Metrics(cfg Config, orders []domain.OrderDescriptor, market domain.MarketState) domain.DerivedMetrics {
	mark := fixedpoint.DecodePrice(market.MarkPrice, market.PriceDecimals)
	return domain.DerivedMetrics{
		CapitalRequired: capitalRequired(orders, market, cfg.Leverage),
		BreakEvenPrice:  mark,
		QuotedSpreadPct: cfg.SpacingPct,
	}
}
