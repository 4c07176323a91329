// Package strategy generates order lists for batch simulation. Generators
// are pure: they read a market state and a config and emit descriptors,
// leaving execution entirely to the batch runner.
package strategy

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"perpsim/internal/domain"
)

// Strategy type identifiers.
const (
	TypeGrid        = "GRID"
	TypeMarketMaker = "MARKET_MAKER"
)

// Factory errors
var (
	ErrUnknownStrategyType = errors.New("unknown strategy type")
	ErrNoLevels            = errors.New("strategy requires at least one level")
	ErrNoLotSize           = errors.New("strategy requires a positive lot size")
)

// Config describes one strategy run. Human-unit fields are converted to
// protocol fixed-point against the market's decimals at generation time.
type Config struct {
	Type string

	// Levels is the number of orders per side.
	Levels int
	// SpacingPct is the per-level distance from mark, e.g. 0.005 = 0.5%.
	SpacingPct decimal.Decimal
	// LotSize is the human-unit size of each order.
	LotSize decimal.Decimal
	// Leverage is the human-unit leverage multiple, e.g. 10.
	Leverage decimal.Decimal
	// LeverageDecimals scales Leverage into the protocol integer.
	LeverageDecimals int32
	// PostOnly flags every generated order post-only.
	PostOnly bool
	// ExpiryBlocks is added to the current head for order expiry; zero
	// means no expiry.
	ExpiryBlocks uint64
	// HeadBlock is the fork head at generation time.
	HeadBlock uint64
}

// Generator produces the order list and its derived metrics.
type Generator interface {
	// Name identifies the strategy in results.
	Name() string
	// Generate builds the descriptors for one run against market.
	Generate(cfg Config, market domain.MarketState) ([]domain.OrderDescriptor, error)
	// Metrics computes strategy-specific derived figures for the orders.
	Metrics(cfg Config, orders []domain.OrderDescriptor, market domain.MarketState) domain.DerivedMetrics
}

// FromConfig creates a Generator from Config, validating required
// parameters per strategy type.
func FromConfig(cfg Config) (Generator, error) {
	if cfg.Levels <= 0 {
		return nil, ErrNoLevels
	}
	if !cfg.LotSize.IsPositive() {
		return nil, ErrNoLotSize
	}
	switch cfg.Type {
	case TypeGrid:
		return &Grid{}, nil
	case TypeMarketMaker:
		return &MarketMaker{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownStrategyType, cfg.Type)
	}
}

// expiryBlock resolves a config's expiry against the head block.
func expiryBlock(cfg Config) uint64 {
	if cfg.ExpiryBlocks == 0 {
		return 0
	}
	return cfg.HeadBlock + cfg.ExpiryBlocks
}

// capitalRequired sums price*lot/leverage across orders in human units.
func capitalRequired(orders []domain.OrderDescriptor, market domain.MarketState, leverage decimal.Decimal) decimal.Decimal {
	if !leverage.IsPositive() {
		return decimal.Zero
	}
	total := decimal.Zero
	for _, o := range orders {
		price := decimal.New(o.Price, -market.PriceDecimals)
		lot := decimal.New(o.LotSize, -market.LotDecimals)
		total = total.Add(price.Mul(lot).Div(leverage))
	}
	return total
}
