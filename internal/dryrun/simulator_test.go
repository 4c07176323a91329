package dryrun

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"perpsim/internal/abi"
	"perpsim/internal/chain"
	chainstub "perpsim/internal/chain/stub"
	"perpsim/internal/domain"
	"perpsim/internal/exchange"
	forkstub "perpsim/internal/fork/stub"
)

const (
	exchangeAddr = "0x1111111111111111111111111111111111111111"
	testAccount  = "0xaabbccddeeff00112233445566778899aabbccdd"
)

func testOrder() domain.OrderDescriptor {
	return domain.OrderDescriptor{
		PerpetualID: 1,
		OrderType:   domain.OrderTypeOpenLong,
		Price:       100000_00,
		LotSize:     1_000_000,
		Leverage:    10_000_000,
	}
}

// stateHandler answers getAccount, getPosition and getMarket with fixed
// values so snapshots succeed on the fake fork.
func stateHandler(msg chain.CallMsg, _ string) ([]byte, error) {
	raw, err := abi.HexToBytes(msg.Data)
	if err != nil || len(raw) < 4 {
		return nil, errors.New("bad calldata")
	}
	switch {
	case bytes.Equal(raw[:4], abi.Selector(exchange.SigGetAccount)):
		return append(abi.WordFromInt(5_000_000_000), abi.WordFromInt(0)...), nil
	case bytes.Equal(raw[:4], abi.Selector(exchange.SigGetPosition)):
		return nil, &chain.RevertError{Reason: "NO_POSITION"}
	case bytes.Equal(raw[:4], abi.Selector(exchange.SigGetMarket)):
		symbol := make([]byte, abi.WordSize)
		copy(symbol, "BTC-PERP")
		ret := symbol
		ret = append(ret, abi.WordFromUint(2)...)
		ret = append(ret, abi.WordFromUint(6)...)
		ret = append(ret, abi.WordFromInt(100000_00)...)
		ret = append(ret, abi.WordFromInt(100000_00)...)
		ret = append(ret, abi.WordFromInt(0)...)
		ret = append(ret, abi.WordFromInt(0)...)
		ret = append(ret, abi.WordFromInt(0)...)
		ret = append(ret, abi.WordFromBool(false)...)
		ret = append(ret, abi.WordFromInt(99990_00)...)
		ret = append(ret, abi.WordFromInt(100010_00)...)
		ret = append(ret, abi.WordFromUint(3)...)
		return ret, nil
	default:
		return nil, errors.New("unexpected call")
	}
}

// estimateHandler answers the live submitOrder eth_call with an order id.
func estimateHandler(orderID uint64) func(chain.CallMsg, string) ([]byte, error) {
	return func(msg chain.CallMsg, _ string) ([]byte, error) {
		raw, err := abi.HexToBytes(msg.Data)
		if err != nil || len(raw) < 4 {
			return nil, errors.New("bad calldata")
		}
		if !bytes.Equal(raw[:4], abi.Selector(exchange.SigSubmitOrder)) {
			return nil, errors.New("unexpected call")
		}
		return abi.WordFromUint(orderID), nil
	}
}

func placedLog(t *testing.T, orderID uint64) chain.Log {
	t.Helper()
	sig := "OrderPlaced(uint32,address,uint64,uint256,uint256)"
	accountWord, err := abi.WordFromAddress(testAccount)
	require.NoError(t, err)

	data := append([]byte{}, abi.WordFromUint(orderID)...)
	data = append(data, abi.WordFromInt(100000_00)...)
	data = append(data, abi.WordFromInt(1_000_000)...)

	return chain.Log{
		Address: exchangeAddr,
		Topics: []string{
			abi.EventTopic(sig),
			"0x" + hex.EncodeToString(abi.WordFromUint(1)),
			"0x" + hex.EncodeToString(accountWord),
		},
		Data: "0x" + hex.EncodeToString(data),
	}
}

func TestRunEstimateOnlyWhenForkMissing(t *testing.T) {
	live := chainstub.New()
	live.CallHandler = estimateHandler(42)
	live.GasEstimate = 180_000

	mgr := forkstub.New()
	mgr.InstalledFlag = false

	sim := New(Options{
		Client:       live,
		ForkManager:  mgr,
		LiveRPCURL:   "http://live",
		ExchangeAddr: exchangeAddr,
	})
	result, err := sim.Run(context.Background(), testAccount, testOrder())
	require.NoError(t, err)

	assert.NotEmpty(t, result.RunID)
	assert.True(t, result.Simulate.Success)
	assert.Equal(t, uint64(42), result.Simulate.OrderID)
	assert.Equal(t, uint64(180_000), result.Simulate.GasEstimate)
	assert.Nil(t, result.Fork)
	assert.Equal(t, 0, mgr.Starts())
}

func TestRunRevertIsResultNotError(t *testing.T) {
	live := chainstub.New()
	live.CallHandler = func(chain.CallMsg, string) ([]byte, error) {
		return nil, &chain.RevertError{Reason: "POSTONLY_WOULD_MATCH"}
	}
	mgr := forkstub.New()
	mgr.InstalledFlag = false

	sim := New(Options{Client: live, ForkManager: mgr, ExchangeAddr: exchangeAddr})
	result, err := sim.Run(context.Background(), testAccount, testOrder())
	require.NoError(t, err)

	assert.False(t, result.Simulate.Success)
	assert.Equal(t, "POSTONLY_WOULD_MATCH", result.Simulate.RevertReason)
}

func TestRunForkSection(t *testing.T) {
	live := chainstub.New()
	live.CallHandler = estimateHandler(7)

	forkClient := chainstub.New()
	forkClient.CallHandler = stateHandler
	forkClient.QueueReceipt(&chain.Receipt{
		Status:            1,
		GasUsed:           210_000,
		EffectiveGasPrice: 1_000_000_000,
		Logs:              []chain.Log{placedLog(t, 7)},
	})

	mgr := forkstub.New()
	sim := New(Options{
		Client:       live,
		ForkManager:  mgr,
		LiveRPCURL:   "http://live",
		ExchangeAddr: exchangeAddr,
		NewForkClient: func(string) chain.Client {
			return forkClient
		},
	})

	result, err := sim.Run(context.Background(), testAccount, testOrder())
	require.NoError(t, err)
	require.NotNil(t, result.Fork)

	assert.Equal(t, uint64(210_000), result.Fork.GasUsed)
	assert.Equal(t, int64(5_000_000_000), result.Fork.PreState.Balance)
	assert.Equal(t, int64(5_000_000_000), result.Fork.PostState.Balance)
	require.Len(t, result.Fork.Events, 1)
	assert.Equal(t, domain.EventOrderPlaced, result.Fork.Events[0].Name)
	require.NotNil(t, result.Fork.MarketState)
	assert.Equal(t, "BTC-PERP", result.Fork.MarketState.Symbol)

	// The order went through the fork, not the live endpoint.
	assert.Empty(t, live.Sent)
	require.Len(t, forkClient.Sent, 1)
	assert.Equal(t, testAccount, forkClient.Sent[0].From)
	assert.Equal(t, []string{testAccount}, forkClient.Impersonated)
	assert.Equal(t, 1, forkClient.MineCount)

	// Fork released before return.
	assert.Equal(t, 1, mgr.Starts())
	assert.Equal(t, 1, mgr.Stops())
}

func TestRunForkFailureDegradesToEstimate(t *testing.T) {
	live := chainstub.New()
	live.CallHandler = estimateHandler(9)

	mgr := forkstub.New()
	mgr.StartErr = errors.New("spawn failed")

	sim := New(Options{
		Client:       live,
		ForkManager:  mgr,
		ExchangeAddr: exchangeAddr,
	})
	result, err := sim.Run(context.Background(), testAccount, testOrder())
	require.NoError(t, err)

	assert.True(t, result.Simulate.Success)
	assert.Nil(t, result.Fork)
}

func TestRunTransportErrorFailsRun(t *testing.T) {
	live := chainstub.New()
	live.CallHandler = func(chain.CallMsg, string) ([]byte, error) {
		return nil, errors.New("connection refused")
	}
	sim := New(Options{Client: live, ForkManager: forkstub.New(), ExchangeAddr: exchangeAddr})

	_, err := sim.Run(context.Background(), testAccount, testOrder())
	require.Error(t, err)
}
