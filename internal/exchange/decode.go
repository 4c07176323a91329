package exchange

import (
	"bytes"
	"fmt"

	"perpsim/internal/abi"
	"perpsim/internal/domain"
)

// Method names used in decoded call descriptions.
const (
	MethodSubmitOrder  = "submitOrder"
	MethodSubmitOrders = "submitOrders"
	MethodCancelOrder  = "cancelOrder"
	MethodUnknown      = "unknown"
)

// DecodeCalldata parses transaction input into a structured call
// description. Unknown selectors yield MethodUnknown rather than an error,
// since a forensics report must still be producible for them.
func DecodeCalldata(input string) (domain.CallDescription, error) {
	raw, err := abi.HexToBytes(input)
	if err != nil {
		return domain.CallDescription{}, fmt.Errorf("decode calldata: %w", err)
	}
	if len(raw) < 4 {
		return domain.CallDescription{Method: MethodUnknown}, nil
	}
	selector, args := raw[:4], raw[4:]

	switch {
	case bytes.Equal(selector, selSubmitOrder):
		order, err := wordsToOrder(args, 0)
		if err != nil {
			return domain.CallDescription{}, fmt.Errorf("decode submitOrder: %w", err)
		}
		return domain.CallDescription{
			Method:      MethodSubmitOrder,
			Orders:      []domain.OrderDescriptor{order},
			PerpetualID: order.PerpetualID,
		}, nil

	case bytes.Equal(selector, selSubmitOrders):
		orders, err := decodeOrderArray(args)
		if err != nil {
			return domain.CallDescription{}, fmt.Errorf("decode submitOrders: %w", err)
		}
		desc := domain.CallDescription{
			Method: MethodSubmitOrders,
			Orders: orders,
		}
		if len(orders) > 0 {
			desc.PerpetualID = orders[0].PerpetualID
		}
		return desc, nil

	case bytes.Equal(selector, selCancelOrder):
		w := abi.Word(args, 0)
		if w == nil {
			return domain.CallDescription{}, fmt.Errorf("decode cancelOrder: truncated")
		}
		return domain.CallDescription{
			Method:      MethodCancelOrder,
			PerpetualID: uint32(abi.WordToUint64(w)),
		}, nil

	default:
		return domain.CallDescription{Method: MethodUnknown}, nil
	}
}

// decodeOrderArray reads the (tuple[], bool) argument block of submitOrders.
func decodeOrderArray(args []byte) ([]domain.OrderDescriptor, error) {
	offsetWord := abi.Word(args, 0)
	if offsetWord == nil {
		return nil, fmt.Errorf("missing array offset")
	}
	// Offset and length words come from untrusted calldata; compare against
	// the buffer size before any arithmetic so huge values cannot wrap.
	offset := abi.WordToUint64(offsetWord)
	if offset%abi.WordSize != 0 || offset > uint64(len(args))-abi.WordSize {
		return nil, fmt.Errorf("bad array offset %d", offset)
	}
	tailFirst := int(offset / abi.WordSize)

	lengthWord := abi.Word(args, tailFirst)
	if lengthWord == nil {
		return nil, fmt.Errorf("missing array length")
	}
	count := abi.WordToUint64(lengthWord)
	if count > uint64(len(args))/(orderWords*abi.WordSize) {
		return nil, fmt.Errorf("bad array length %d", count)
	}

	orders := make([]domain.OrderDescriptor, 0, count)
	for i := uint64(0); i < count; i++ {
		order, err := wordsToOrder(args, tailFirst+1+int(i)*orderWords)
		if err != nil {
			return nil, fmt.Errorf("order %d: %w", i, err)
		}
		orders = append(orders, order)
	}
	return orders, nil
}

// IsOrderSubmission reports whether a decoded call carries order
// descriptors.
func IsOrderSubmission(desc domain.CallDescription) bool {
	return desc.Method == MethodSubmitOrder || desc.Method == MethodSubmitOrders
}
