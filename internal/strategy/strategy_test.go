package strategy

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"perpsim/internal/domain"
)

func testMarket() domain.MarketState {
	return domain.MarketState{
		PerpetualID:   1,
		PriceDecimals: 2,
		LotDecimals:   6,
		MarkPrice:     100000_00,
	}
}

func gridConfig() Config {
	return Config{
		Type:             TypeGrid,
		Levels:           3,
		SpacingPct:       decimal.RequireFromString("0.01"),
		LotSize:          decimal.RequireFromString("0.5"),
		Leverage:         decimal.NewFromInt(10),
		LeverageDecimals: 1,
		PostOnly:         true,
		ExpiryBlocks:     100,
		HeadBlock:        5000,
	}
}

func TestFromConfig(t *testing.T) {
	gen, err := FromConfig(gridConfig())
	require.NoError(t, err)
	assert.Equal(t, TypeGrid, gen.Name())

	cfg := gridConfig()
	cfg.Type = TypeMarketMaker
	gen, err = FromConfig(cfg)
	require.NoError(t, err)
	assert.Equal(t, TypeMarketMaker, gen.Name())
}

func TestFromConfigValidation(t *testing.T) {
	cfg := gridConfig()
	cfg.Type = "MOMENTUM"
	_, err := FromConfig(cfg)
	require.ErrorIs(t, err, ErrUnknownStrategyType)

	cfg = gridConfig()
	cfg.Levels = 0
	_, err = FromConfig(cfg)
	require.ErrorIs(t, err, ErrNoLevels)

	cfg = gridConfig()
	cfg.LotSize = decimal.Zero
	_, err = FromConfig(cfg)
	require.ErrorIs(t, err, ErrNoLotSize)
}

func TestGridGenerate(t *testing.T) {
	orders, err := (&Grid{}).Generate(gridConfig(), testMarket())
	require.NoError(t, err)
	require.Len(t, orders, 6)

	// First three are buys below mark, closest rung first.
	assert.Equal(t, domain.OrderTypeOpenLong, orders[0].OrderType)
	assert.Equal(t, int64(99000_00), orders[0].Price)
	assert.Equal(t, int64(98000_00), orders[1].Price)
	assert.Equal(t, int64(97000_00), orders[2].Price)

	// Then sells above mark.
	assert.Equal(t, domain.OrderTypeOpenShort, orders[3].OrderType)
	assert.Equal(t, int64(101000_00), orders[3].Price)
	assert.Equal(t, int64(103000_00), orders[5].Price)

	for _, o := range orders {
		assert.Equal(t, int64(500_000), o.LotSize)
		assert.Equal(t, int64(100), o.Leverage)
		assert.Equal(t, uint64(5100), o.ExpiryBlock)
		assert.True(t, o.PostOnly)
	}
}

func TestMarketMakerGenerate(t *testing.T) {
	cfg := gridConfig()
	cfg.Type = TypeMarketMaker
	cfg.Levels = 2
	cfg.PostOnly = false // makers force post-only regardless

	orders, err := (&MarketMaker{}).Generate(cfg, testMarket())
	require.NoError(t, err)
	require.Len(t, orders, 4)

	// Interleaved bid/ask, tightest first: mark +- 0.5%.
	assert.Equal(t, domain.OrderTypeOpenLong, orders[0].OrderType)
	assert.Equal(t, int64(99500_00), orders[0].Price)
	assert.Equal(t, domain.OrderTypeOpenShort, orders[1].OrderType)
	assert.Equal(t, int64(100500_00), orders[1].Price)

	assert.Equal(t, int64(98500_00), orders[2].Price)
	assert.Equal(t, int64(101500_00), orders[3].Price)

	for _, o := range orders {
		assert.True(t, o.PostOnly)
	}
}

func TestGridMetrics(t *testing.T) {
	cfg := gridConfig()
	orders, err := (&Grid{}).Generate(cfg, testMarket())
	require.NoError(t, err)

	m := (&Grid{}).Metrics(cfg, orders, testMarket())

	// Six orders of 0.5 lots at ~100000 with 10x leverage: ~30000.
	assert.True(t, m.CapitalRequired.GreaterThan(decimal.NewFromInt(29000)), "got %s", m.CapitalRequired)
	assert.True(t, m.CapitalRequired.LessThan(decimal.NewFromInt(31000)), "got %s", m.CapitalRequired)
	assert.True(t, m.BreakEvenPrice.Equal(decimal.NewFromInt(100000)))
	assert.True(t, m.GridSpacing.Equal(decimal.NewFromInt(1000)))
}
