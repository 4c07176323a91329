package exchange

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"perpsim/internal/abi"
	"perpsim/internal/domain"
)

func sampleOrder(i int) domain.OrderDescriptor {
	return domain.OrderDescriptor{
		PerpetualID:        3,
		OrderType:          domain.OrderTypeOpenLong,
		Price:              10000000 + int64(i),
		LotSize:            1_000_000,
		ExpiryBlock:        9_999_999,
		PostOnly:           true,
		MaxMatches:         16,
		Leverage:           100,
		LastExecutionBlock: 123,
		Amount:             50_000_000,
	}
}

func TestSubmitOrderCalldataRoundTrip(t *testing.T) {
	order := sampleOrder(0)
	data := EncodeSubmitOrder(order)

	desc, err := DecodeCalldata(data)
	require.NoError(t, err)

	assert.Equal(t, MethodSubmitOrder, desc.Method)
	require.Len(t, desc.Orders, 1)
	assert.Equal(t, order, desc.Orders[0])
	assert.Equal(t, uint32(3), desc.PerpetualID)
}

func TestSubmitOrdersCalldataRoundTrip(t *testing.T) {
	orders := []domain.OrderDescriptor{sampleOrder(0), sampleOrder(1), sampleOrder(2)}
	data := EncodeSubmitOrders(orders, true)

	desc, err := DecodeCalldata(data)
	require.NoError(t, err)

	assert.Equal(t, MethodSubmitOrders, desc.Method)
	require.Len(t, desc.Orders, 3)
	assert.Equal(t, orders, desc.Orders)
	assert.True(t, IsOrderSubmission(desc))
}

// Crafted submitOrders calldata with out-of-range offset or length words
// must decode to an error, never panic: forensics feeds arbitrary
// historical calldata through here.
func TestDecodeCalldataHugeArrayOffsetRejected(t *testing.T) {
	data := abi.Pack(selSubmitOrders, abi.WordFromUint(math.MaxUint64-31))

	_, err := DecodeCalldata(data)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad array offset")
}

func TestDecodeCalldataHugeArrayLengthRejected(t *testing.T) {
	data := abi.Pack(selSubmitOrders,
		abi.WordFromUint(abi.WordSize),
		abi.WordFromUint(1<<63),
	)

	_, err := DecodeCalldata(data)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad array length")
}

func TestDecodeCalldataOverstatedArrayLengthRejected(t *testing.T) {
	data := abi.Pack(selSubmitOrders,
		abi.WordFromUint(abi.WordSize),
		abi.WordFromUint(500),
	)

	_, err := DecodeCalldata(data)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad array length")
}

func TestDecodeCalldataUnknownSelector(t *testing.T) {
	desc, err := DecodeCalldata("0xdeadbeef")
	require.NoError(t, err)
	assert.Equal(t, MethodUnknown, desc.Method)
	assert.Empty(t, desc.Orders)
}

func TestParsePositionReturn(t *testing.T) {
	ret := append([]byte{}, abi.WordFromUint(uint64(domain.SideShort))...)
	ret = append(ret, abi.WordFromInt(2_000_000)...)
	ret = append(ret, abi.WordFromInt(10050000)...)
	ret = append(ret, abi.WordFromInt(500_000_000)...)
	ret = append(ret, abi.WordFromInt(-12_345)...)

	pos, err := ParsePositionReturn(ret)
	require.NoError(t, err)
	require.NotNil(t, pos)
	assert.Equal(t, domain.SideShort, pos.Side)
	assert.Equal(t, int64(2_000_000), pos.LotSize)
	assert.Equal(t, int64(-12_345), pos.UnrealizedPnl)
}

func TestParsePositionReturnZeroLotIsNil(t *testing.T) {
	ret := make([]byte, 5*abi.WordSize)
	pos, err := ParsePositionReturn(ret)
	require.NoError(t, err)
	assert.Nil(t, pos)
}

func TestParseMarketReturn(t *testing.T) {
	symbol := make([]byte, abi.WordSize)
	copy(symbol, "BTC-PERP")

	ret := symbol
	ret = append(ret, abi.WordFromUint(2)...)          // price decimals
	ret = append(ret, abi.WordFromUint(6)...)          // lot decimals
	ret = append(ret, abi.WordFromInt(10000000)...)    // mark
	ret = append(ret, abi.WordFromInt(10000100)...)    // oracle
	ret = append(ret, abi.WordFromInt(5_000_000)...)   // long OI
	ret = append(ret, abi.WordFromInt(4_500_000)...)   // short OI
	ret = append(ret, abi.WordFromInt(-2500)...)       // funding
	ret = append(ret, abi.WordFromBool(false)...)      // paused
	ret = append(ret, abi.WordFromInt(9999900)...)     // best bid
	ret = append(ret, abi.WordFromInt(10000200)...)    // best ask
	ret = append(ret, abi.WordFromUint(42)...)         // resting orders

	market, err := ParseMarketReturn(7, ret)
	require.NoError(t, err)
	assert.Equal(t, "BTC-PERP", market.Symbol)
	assert.Equal(t, uint32(7), market.PerpetualID)
	assert.Equal(t, int32(2), market.PriceDecimals)
	assert.Equal(t, int64(-2500), market.FundingRateRaw)
	assert.Equal(t, uint32(42), market.RestingOrderCount)
}
