package abi

import (
	"encoding/hex"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelectorKnownValue(t *testing.T) {
	// keccak("transfer(address,uint256)")[:4] is the canonical ERC-20 vector.
	require.Equal(t, "a9059cbb", hex.EncodeToString(Selector("transfer(address,uint256)")))
}

func TestEventTopicKnownValue(t *testing.T) {
	require.Equal(t,
		"0xddf252ad1be2c89b69c2b068fc378daa952ba7f163c4a11628f55a4df523b3ef",
		EventTopic("Transfer(address,address,uint256)"))
}

func TestWordRoundTrips(t *testing.T) {
	assert.Equal(t, uint64(12345), WordToUint64(WordFromUint(12345)))
	assert.Equal(t, int64(-42), WordToInt64(WordFromInt(-42)))
	assert.Equal(t, int64(42), WordToInt64(WordFromInt(42)))
	assert.True(t, WordToBool(WordFromBool(true)))
	assert.False(t, WordToBool(WordFromBool(false)))

	addr := "0x00112233445566778899aabbccddeeff00112233"
	word, err := WordFromAddress(addr)
	require.NoError(t, err)
	assert.Equal(t, addr, WordToAddress(word))
}

func TestWordFromAddressRejectsBadInput(t *testing.T) {
	_, err := WordFromAddress("0x1234")
	require.Error(t, err)
}

func TestUnpackRevert(t *testing.T) {
	reason := "POSTONLY_WOULD_MATCH"

	payload := append([]byte{}, Selector("Error(string)")...)
	payload = append(payload, WordFromUint(32)...)
	payload = append(payload, WordFromUint(uint64(len(reason)))...)
	padded := make([]byte, WordSize)
	copy(padded, reason)
	payload = append(payload, padded...)

	got, ok := UnpackRevert(payload)
	require.True(t, ok)
	assert.Equal(t, reason, got)
}

func TestUnpackRevertRejectsGarbage(t *testing.T) {
	_, ok := UnpackRevert([]byte{0x01, 0x02})
	assert.False(t, ok)

	_, ok = UnpackRevert(WordFromUint(7))
	assert.False(t, ok)
}

// Offset and length words larger than the payload must fail the decode
// instead of wrapping the bounds arithmetic.
func TestUnpackRevertRejectsHugeOffset(t *testing.T) {
	payload := append([]byte{}, Selector("Error(string)")...)
	payload = append(payload, WordFromUint(math.MaxUint64-WordSize+1)...)
	payload = append(payload, WordFromUint(0)...)

	_, ok := UnpackRevert(payload)
	assert.False(t, ok)
}

func TestUnpackRevertRejectsHugeLength(t *testing.T) {
	payload := append([]byte{}, Selector("Error(string)")...)
	payload = append(payload, WordFromUint(32)...)
	payload = append(payload, WordFromUint(math.MaxUint64)...)

	_, ok := UnpackRevert(payload)
	assert.False(t, ok)
}

func TestPackAndWord(t *testing.T) {
	data := Pack(Selector("foo(uint256)"), WordFromUint(9))
	raw, err := HexToBytes(data)
	require.NoError(t, err)
	assert.Equal(t, uint64(9), WordToUint64(Word(raw[4:], 0)))
	assert.Nil(t, Word(raw[4:], 1))
}
