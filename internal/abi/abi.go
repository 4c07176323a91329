// Package abi implements the small slice of contract ABI encoding the
// engine needs: keccak-256 selectors and event topics, 32-byte word
// packing for static arguments, and Error(string) revert decoding.
// The exchange ABI uses only static types, so no full ABI library is
// required.
package abi

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"

	"golang.org/x/crypto/sha3"
)

// WordSize is the length of one ABI word in bytes.
const WordSize = 32

// errorStringSelector is the 4-byte selector of Error(string).
var errorStringSelector = Selector("Error(string)")

// Keccak256 returns the keccak-256 digest of data.
func Keccak256(data []byte) []byte {
	h := sha3.NewLegacyKeccak256()
	h.Write(data)
	return h.Sum(nil)
}

// Selector returns the 4-byte function selector for a canonical signature.
func Selector(signature string) []byte {
	return Keccak256([]byte(signature))[:4]
}

// EventTopic returns the 0x-hex topic-0 for a canonical event signature.
func EventTopic(signature string) string {
	return "0x" + hex.EncodeToString(Keccak256([]byte(signature)))
}

// WordFromUint encodes an unsigned integer as one ABI word.
func WordFromUint(v uint64) []byte {
	word := make([]byte, WordSize)
	new(big.Int).SetUint64(v).FillBytes(word)
	return word
}

// WordFromInt encodes a signed integer as one two's-complement ABI word.
func WordFromInt(v int64) []byte {
	return WordFromBig(big.NewInt(v))
}

// WordFromBig encodes a big integer as one two's-complement ABI word.
func WordFromBig(v *big.Int) []byte {
	word := make([]byte, WordSize)
	if v.Sign() >= 0 {
		v.FillBytes(word)
		return word
	}
	// two's complement: 2^256 + v
	wrapped := new(big.Int).Add(twoPow256, v)
	wrapped.FillBytes(word)
	return word
}

// WordFromBool encodes a bool as one ABI word.
func WordFromBool(v bool) []byte {
	word := make([]byte, WordSize)
	if v {
		word[WordSize-1] = 1
	}
	return word
}

// WordFromAddress encodes a 0x-hex address as one ABI word.
func WordFromAddress(addr string) ([]byte, error) {
	raw, err := hex.DecodeString(Strip0x(addr))
	if err != nil {
		return nil, fmt.Errorf("decode address %q: %w", addr, err)
	}
	if len(raw) != 20 {
		return nil, fmt.Errorf("address %q: expected 20 bytes, got %d", addr, len(raw))
	}
	word := make([]byte, WordSize)
	copy(word[WordSize-20:], raw)
	return word, nil
}

var twoPow256 = new(big.Int).Lsh(big.NewInt(1), 256)
var twoPow255 = new(big.Int).Lsh(big.NewInt(1), 255)

// WordToBig decodes one word as an unsigned big integer.
func WordToBig(word []byte) *big.Int {
	return new(big.Int).SetBytes(word)
}

// WordToSignedBig decodes one word as a two's-complement signed integer.
func WordToSignedBig(word []byte) *big.Int {
	v := new(big.Int).SetBytes(word)
	if v.Cmp(twoPow255) >= 0 {
		v.Sub(v, twoPow256)
	}
	return v
}

// WordToUint64 decodes one word as uint64, truncating high bytes.
func WordToUint64(word []byte) uint64 {
	return WordToBig(word).Uint64()
}

// WordToInt64 decodes one word as a signed int64.
func WordToInt64(word []byte) int64 {
	return WordToSignedBig(word).Int64()
}

// WordToBool decodes one word as a bool.
func WordToBool(word []byte) bool {
	return WordToBig(word).Sign() != 0
}

// WordToAddress decodes one word as a lowercase 0x-hex address.
func WordToAddress(word []byte) string {
	return "0x" + hex.EncodeToString(word[WordSize-20:])
}

// Pack concatenates a selector and static argument words into 0x-hex
// calldata.
func Pack(selector []byte, words ...[]byte) string {
	data := make([]byte, 0, len(selector)+len(words)*WordSize)
	data = append(data, selector...)
	for _, w := range words {
		data = append(data, w...)
	}
	return "0x" + hex.EncodeToString(data)
}

// Word extracts word i from ABI-encoded data, or nil when out of range.
func Word(data []byte, i int) []byte {
	start := i * WordSize
	if i < 0 || start+WordSize > len(data) {
		return nil
	}
	return data[start : start+WordSize]
}

// UnpackRevert decodes an Error(string) revert payload. The second return
// is false when data is not a standard revert encoding.
func UnpackRevert(data []byte) (string, bool) {
	if len(data) < 4+2*WordSize {
		return "", false
	}
	if !strings.EqualFold(hex.EncodeToString(data[:4]), hex.EncodeToString(errorStringSelector)) {
		return "", false
	}
	body := data[4:]
	// Offset and length come straight off the wire; bound each against the
	// remaining payload before adding anything so huge words cannot wrap.
	offset := WordToUint64(Word(body, 0))
	if offset > uint64(len(body))-WordSize {
		return "", false
	}
	length := WordToUint64(body[offset : offset+WordSize])
	start := offset + WordSize
	if length > uint64(len(body))-start {
		return "", false
	}
	return string(body[start : start+length]), true
}

// Strip0x removes a leading 0x/0X prefix if present.
func Strip0x(s string) string {
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		return s[2:]
	}
	return s
}

// HexToBytes decodes 0x-hex data, tolerating the missing prefix.
func HexToBytes(s string) ([]byte, error) {
	raw, err := hex.DecodeString(Strip0x(s))
	if err != nil {
		return nil, fmt.Errorf("decode hex: %w", err)
	}
	return raw, nil
}
