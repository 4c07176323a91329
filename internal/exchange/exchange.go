// Package exchange encodes and decodes calls against the perpetual
// exchange contract. The contract ABI is static-typed except for the batch
// order array, so encoding stays on plain 32-byte words.
package exchange

import (
	"bytes"
	"fmt"

	"perpsim/internal/abi"
	"perpsim/internal/domain"
)

// Canonical call signatures of the exchange contract.
const (
	orderTuple = "(uint32,uint8,uint64,uint256,uint256,uint64,bool,bool,bool,uint32,uint256,uint64,uint256)"

	SigSubmitOrder  = "submitOrder" + orderTuple
	SigSubmitOrders = "submitOrders(" + orderTuple + "[],bool)"
	SigCancelOrder  = "cancelOrder(uint32,uint64)"
	SigGetAccount   = "getAccount(address)"
	SigGetPosition  = "getPosition(address,uint32)"
	SigGetMarket    = "getMarket(uint32)"
	SigGetFees      = "getFees(uint32)"
	SigOwner        = "owner()"
)

// orderWords is the number of ABI words one order descriptor occupies.
const orderWords = 13

var (
	selSubmitOrder  = abi.Selector(SigSubmitOrder)
	selSubmitOrders = abi.Selector(SigSubmitOrders)
	selCancelOrder  = abi.Selector(SigCancelOrder)
	selGetAccount   = abi.Selector(SigGetAccount)
	selGetPosition  = abi.Selector(SigGetPosition)
	selGetMarket    = abi.Selector(SigGetMarket)
	selGetFees      = abi.Selector(SigGetFees)
	selOwner        = abi.Selector(SigOwner)
)

// orderToWords flattens a descriptor into its 13 ABI words.
func orderToWords(o domain.OrderDescriptor) [][]byte {
	return [][]byte{
		abi.WordFromUint(uint64(o.PerpetualID)),
		abi.WordFromUint(uint64(o.OrderType)),
		abi.WordFromUint(o.OrderID),
		abi.WordFromInt(o.Price),
		abi.WordFromInt(o.LotSize),
		abi.WordFromUint(o.ExpiryBlock),
		abi.WordFromBool(o.PostOnly),
		abi.WordFromBool(o.FillOrKill),
		abi.WordFromBool(o.ImmediateOrCancel),
		abi.WordFromUint(uint64(o.MaxMatches)),
		abi.WordFromInt(o.Leverage),
		abi.WordFromUint(o.LastExecutionBlock),
		abi.WordFromInt(o.Amount),
	}
}

// wordsToOrder rebuilds a descriptor from 13 consecutive ABI words.
func wordsToOrder(data []byte, first int) (domain.OrderDescriptor, error) {
	words := make([][]byte, orderWords)
	for i := range words {
		w := abi.Word(data, first+i)
		if w == nil {
			return domain.OrderDescriptor{}, fmt.Errorf("order truncated at word %d", first+i)
		}
		words[i] = w
	}
	return domain.OrderDescriptor{
		PerpetualID:        uint32(abi.WordToUint64(words[0])),
		OrderType:          domain.OrderType(abi.WordToUint64(words[1])),
		OrderID:            abi.WordToUint64(words[2]),
		Price:              abi.WordToInt64(words[3]),
		LotSize:            abi.WordToInt64(words[4]),
		ExpiryBlock:        abi.WordToUint64(words[5]),
		PostOnly:           abi.WordToBool(words[6]),
		FillOrKill:         abi.WordToBool(words[7]),
		ImmediateOrCancel:  abi.WordToBool(words[8]),
		MaxMatches:         uint32(abi.WordToUint64(words[9])),
		Leverage:           abi.WordToInt64(words[10]),
		LastExecutionBlock: abi.WordToUint64(words[11]),
		Amount:             abi.WordToInt64(words[12]),
	}, nil
}

// EncodeSubmitOrder builds calldata for a single order submission.
func EncodeSubmitOrder(o domain.OrderDescriptor) string {
	return abi.Pack(selSubmitOrder, orderToWords(o)...)
}

// EncodeSubmitOrders builds calldata for an atomic batch submission.
// continueOnFailure makes the contract skip a failing order instead of
// reverting the whole batch.
func EncodeSubmitOrders(orders []domain.OrderDescriptor, continueOnFailure bool) string {
	// Head: array offset, bool. Tail: array length then packed tuples.
	words := [][]byte{
		abi.WordFromUint(2 * abi.WordSize), // tail starts after the two head words
		abi.WordFromBool(continueOnFailure),
		abi.WordFromUint(uint64(len(orders))),
	}
	for _, o := range orders {
		words = append(words, orderToWords(o)...)
	}
	return abi.Pack(selSubmitOrders, words...)
}

// EncodeCancelOrder builds calldata for an order cancellation.
func EncodeCancelOrder(perpetualID uint32, orderID uint64) string {
	return abi.Pack(selCancelOrder,
		abi.WordFromUint(uint64(perpetualID)),
		abi.WordFromUint(orderID),
	)
}

// EncodeGetAccount builds calldata for the account balance read.
func EncodeGetAccount(account string) (string, error) {
	word, err := abi.WordFromAddress(account)
	if err != nil {
		return "", err
	}
	return abi.Pack(selGetAccount, word), nil
}

// EncodeGetPosition builds calldata for the position read.
func EncodeGetPosition(account string, perpetualID uint32) (string, error) {
	word, err := abi.WordFromAddress(account)
	if err != nil {
		return "", err
	}
	return abi.Pack(selGetPosition, word, abi.WordFromUint(uint64(perpetualID))), nil
}

// EncodeGetMarket builds calldata for the market state read.
func EncodeGetMarket(perpetualID uint32) string {
	return abi.Pack(selGetMarket, abi.WordFromUint(uint64(perpetualID)))
}

// EncodeGetFees builds calldata for the fee schedule read.
func EncodeGetFees(perpetualID uint32) string {
	return abi.Pack(selGetFees, abi.WordFromUint(uint64(perpetualID)))
}

// EncodeOwnerProbe builds the owner() probe used to detect account
// proxies.
func EncodeOwnerProbe() string {
	return abi.Pack(selOwner)
}

// ParseSubmitOrderReturn reads the order id a submitOrder call returns.
// Zero means the order did not rest.
func ParseSubmitOrderReturn(ret []byte) uint64 {
	w := abi.Word(ret, 0)
	if w == nil {
		return 0
	}
	return abi.WordToUint64(w)
}

// ParseAccountReturn reads a getAccount result.
func ParseAccountReturn(ret []byte) (balance, locked int64, err error) {
	b, l := abi.Word(ret, 0), abi.Word(ret, 1)
	if b == nil || l == nil {
		return 0, 0, fmt.Errorf("getAccount return truncated (%d bytes)", len(ret))
	}
	return abi.WordToInt64(b), abi.WordToInt64(l), nil
}

// ParsePositionReturn reads a getPosition result. A zero lot size means no
// open position and yields nil.
func ParsePositionReturn(ret []byte) (*domain.Position, error) {
	for i := 0; i < 5; i++ {
		if abi.Word(ret, i) == nil {
			return nil, fmt.Errorf("getPosition return truncated (%d bytes)", len(ret))
		}
	}
	lot := abi.WordToInt64(abi.Word(ret, 1))
	if lot == 0 {
		return nil, nil
	}
	return &domain.Position{
		Side:          domain.PositionSide(abi.WordToUint64(abi.Word(ret, 0))),
		LotSize:       lot,
		EntryPrice:    abi.WordToInt64(abi.Word(ret, 2)),
		Margin:        abi.WordToInt64(abi.Word(ret, 3)),
		UnrealizedPnl: abi.WordToInt64(abi.Word(ret, 4)),
	}, nil
}

// ParseMarketReturn reads a getMarket result.
func ParseMarketReturn(perpetualID uint32, ret []byte) (domain.MarketState, error) {
	const marketWords = 12
	for i := 0; i < marketWords; i++ {
		if abi.Word(ret, i) == nil {
			return domain.MarketState{}, fmt.Errorf("getMarket return truncated (%d bytes)", len(ret))
		}
	}
	return domain.MarketState{
		PerpetualID:       perpetualID,
		Symbol:            string(bytes.TrimRight(abi.Word(ret, 0), "\x00")),
		PriceDecimals:     int32(abi.WordToUint64(abi.Word(ret, 1))),
		LotDecimals:       int32(abi.WordToUint64(abi.Word(ret, 2))),
		MarkPrice:         abi.WordToInt64(abi.Word(ret, 3)),
		OraclePrice:       abi.WordToInt64(abi.Word(ret, 4)),
		LongOpenInterest:  abi.WordToInt64(abi.Word(ret, 5)),
		ShortOpenInterest: abi.WordToInt64(abi.Word(ret, 6)),
		FundingRateRaw:    abi.WordToInt64(abi.Word(ret, 7)),
		Paused:            abi.WordToBool(abi.Word(ret, 8)),
		BestBid:           abi.WordToInt64(abi.Word(ret, 9)),
		BestAsk:           abi.WordToInt64(abi.Word(ret, 10)),
		RestingOrderCount: uint32(abi.WordToUint64(abi.Word(ret, 11))),
	}, nil
}

// ParseFeesReturn reads a getFees result.
func ParseFeesReturn(ret []byte) (domain.FeeSchedule, error) {
	t, m := abi.Word(ret, 0), abi.Word(ret, 1)
	if t == nil || m == nil {
		return domain.FeeSchedule{}, fmt.Errorf("getFees return truncated (%d bytes)", len(ret))
	}
	return domain.FeeSchedule{
		TakerBps: abi.WordToInt64(t),
		MakerBps: abi.WordToInt64(m),
	}, nil
}
