// Package events decodes raw receipt logs into ordered domain events.
//
// Each known event is matched by its topic-0 hash; indexed arguments come
// from topics, the rest from the data words. Logs from other contracts or
// with unknown topics are expected noise and are dropped, never errored.
// Input order is preserved exactly: downstream outcome grouping depends on
// it.
package events

import (
	"strconv"
	"strings"

	"perpsim/internal/abi"
	"perpsim/internal/chain"
	"perpsim/internal/domain"
)

// argDef describes one event argument.
type argDef struct {
	Name    string
	Type    string
	Indexed bool
}

// eventDef describes one known exchange event.
type eventDef struct {
	Name string
	Args []argDef
}

// signature builds the canonical event signature for topic hashing.
func (d eventDef) signature() string {
	sig := d.Name + "("
	for i, a := range d.Args {
		if i > 0 {
			sig += ","
		}
		sig += a.Type
	}
	return sig + ")"
}

// knownEvents is the exchange event set.
var knownEvents = []eventDef{
	{domain.EventOrderRequest, []argDef{
		{"perpetualId", "uint32", true},
		{"account", "address", true},
		{"orderType", "uint8", false},
		{"orderId", "uint64", false},
		{"price", "uint256", false},
		{"lotSize", "uint256", false},
	}},
	{domain.EventOrderPlaced, []argDef{
		{"perpetualId", "uint32", true},
		{"account", "address", true},
		{"orderId", "uint64", false},
		{"price", "uint256", false},
		{"lotSize", "uint256", false},
	}},
	{domain.EventOrderMatched, []argDef{
		{"perpetualId", "uint32", true},
		{"maker", "address", true},
		{"taker", "address", false},
		{"makerOrderId", "uint64", false},
		{"takerOrderId", "uint64", false},
		{"price", "uint256", false},
		{"lotSize", "uint256", false},
		{"fee", "uint256", false},
	}},
	{domain.EventOrderCancelled, []argDef{
		{"perpetualId", "uint32", true},
		{"account", "address", true},
		{"orderId", "uint64", false},
	}},
	{domain.EventOrderChanged, []argDef{
		{"perpetualId", "uint32", true},
		{"account", "address", true},
		{"orderId", "uint64", false},
		{"price", "uint256", false},
		{"lotSize", "uint256", false},
	}},
	{domain.EventPositionChanged, []argDef{
		{"perpetualId", "uint32", true},
		{"account", "address", true},
		{"side", "uint8", false},
		{"lotSize", "uint256", false},
		{"entryPrice", "uint256", false},
		{"margin", "uint256", false},
	}},
	{domain.EventFundingPaid, []argDef{
		{"perpetualId", "uint32", true},
		{"account", "address", true},
		{"amount", "int256", false},
	}},
	{domain.EventMarginAdded, []argDef{
		{"perpetualId", "uint32", true},
		{"account", "address", true},
		{"amount", "uint256", false},
	}},
	{domain.EventLiquidated, []argDef{
		{"perpetualId", "uint32", true},
		{"account", "address", true},
		{"lotSize", "uint256", false},
		{"price", "uint256", false},
	}},
	{domain.EventDeposit, []argDef{
		{"account", "address", true},
		{"amount", "uint256", false},
	}},
	{domain.EventWithdraw, []argDef{
		{"account", "address", true},
		{"amount", "uint256", false},
	}},
}

// Decoder maps raw logs to domain events for one exchange contract.
type Decoder struct {
	exchange string // lowercase address filter, empty disables filtering
	byTopic  map[string]eventDef
}

// NewDecoder creates a decoder. A non-empty exchangeAddr restricts decoding
// to logs emitted by that contract.
func NewDecoder(exchangeAddr string) *Decoder {
	byTopic := make(map[string]eventDef, len(knownEvents))
	for _, def := range knownEvents {
		byTopic[abi.EventTopic(def.signature())] = def
	}
	return &Decoder{
		exchange: strings.ToLower(exchangeAddr),
		byTopic:  byTopic,
	}
}

// Decode converts an ordered log list into an ordered domain event list.
func (d *Decoder) Decode(logs []chain.Log) []domain.DomainEvent {
	var out []domain.DomainEvent
	for _, entry := range logs {
		if d.exchange != "" && strings.ToLower(entry.Address) != d.exchange {
			continue
		}
		if len(entry.Topics) == 0 {
			continue
		}
		def, ok := d.byTopic[strings.ToLower(entry.Topics[0])]
		if !ok {
			continue
		}
		ev, ok := decodeLog(def, entry)
		if !ok {
			continue
		}
		out = append(out, ev)
	}
	return out
}

// decodeLog extracts one event's arguments. Malformed logs for a known
// topic are dropped like unknown ones.
func decodeLog(def eventDef, entry chain.Log) (domain.DomainEvent, bool) {
	data, err := abi.HexToBytes(entry.Data)
	if err != nil {
		return domain.DomainEvent{}, false
	}

	args := make(map[string]string, len(def.Args))
	topicIdx := 1 // topic 0 is the signature hash
	dataIdx := 0

	for _, a := range def.Args {
		var word []byte
		if a.Indexed {
			if topicIdx >= len(entry.Topics) {
				return domain.DomainEvent{}, false
			}
			word, err = abi.HexToBytes(entry.Topics[topicIdx])
			if err != nil || len(word) != abi.WordSize {
				return domain.DomainEvent{}, false
			}
			topicIdx++
		} else {
			word = abi.Word(data, dataIdx)
			if word == nil {
				return domain.DomainEvent{}, false
			}
			dataIdx++
		}
		args[a.Name] = formatWord(a.Type, word)
	}

	return domain.DomainEvent{Name: def.Name, Args: args}, true
}

// formatWord renders one argument word per its ABI type.
func formatWord(abiType string, word []byte) string {
	switch {
	case abiType == "address":
		return abi.WordToAddress(word)
	case abiType == "bool":
		if abi.WordToBool(word) {
			return "true"
		}
		return "false"
	case len(abiType) >= 3 && abiType[:3] == "int":
		return abi.WordToSignedBig(word).String()
	default: // uintN
		return abi.WordToBig(word).String()
	}
}

// Int64Arg reads an integer argument from a decoded event, zero when the
// key is absent or not numeric.
func Int64Arg(ev domain.DomainEvent, key string) int64 {
	v, err := strconv.ParseInt(ev.Args[key], 10, 64)
	if err != nil {
		return 0
	}
	return v
}

// Uint64Arg reads an unsigned integer argument from a decoded event.
func Uint64Arg(ev domain.DomainEvent, key string) uint64 {
	v, err := strconv.ParseUint(ev.Args[key], 10, 64)
	if err != nil {
		return 0
	}
	return v
}
