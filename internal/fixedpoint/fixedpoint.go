// Package fixedpoint converts between human decimal values and the
// protocol's scaled integer representation.
//
// Every conversion is parameterized by the market's decimal count for that
// quantity. Rounding is half-away-from-zero at the target precision,
// applied by every Encode function; Decode is exact. Inputs are not
// validated here, that is the caller's concern.
package fixedpoint

import "github.com/shopspring/decimal"

// EncodePrice converts a human price to the protocol integer.
func EncodePrice(price decimal.Decimal, decimals int32) int64 {
	return encode(price, decimals)
}

// DecodePrice converts a protocol price integer back to a human price.
func DecodePrice(raw int64, decimals int32) decimal.Decimal {
	return decimal.New(raw, -decimals)
}

// EncodeLot converts a human lot size to the protocol integer.
func EncodeLot(lot decimal.Decimal, decimals int32) int64 {
	return encode(lot, decimals)
}

// DecodeLot converts a protocol lot integer back to a human lot size.
func DecodeLot(raw int64, decimals int32) decimal.Decimal {
	return decimal.New(raw, -decimals)
}

// EncodeLeverage converts a human leverage multiple to the protocol integer.
func EncodeLeverage(leverage decimal.Decimal, decimals int32) int64 {
	return encode(leverage, decimals)
}

// DecodeLeverage converts a protocol leverage integer back to a multiple.
func DecodeLeverage(raw int64, decimals int32) decimal.Decimal {
	return decimal.New(raw, -decimals)
}

// EncodeCollateral converts a human collateral amount to smallest units.
func EncodeCollateral(amount decimal.Decimal, decimals int32) int64 {
	return encode(amount, decimals)
}

// DecodeCollateral converts smallest units back to a human amount.
func DecodeCollateral(raw int64, decimals int32) decimal.Decimal {
	return decimal.New(raw, -decimals)
}

func encode(v decimal.Decimal, decimals int32) int64 {
	// Shift then Round(0): decimal's Round is half-away-from-zero.
	return v.Shift(decimals).Round(0).IntPart()
}
