package domain

import "math/big"

// PositionSide is the exchange's on-wire side enum.
// The contract encodes long as 0 and short as 1; every call site goes
// through these constants rather than raw integers.
type PositionSide uint8

const (
	SideLong  PositionSide = 0
	SideShort PositionSide = 1
)

// String returns the human name for the side.
func (s PositionSide) String() string {
	if s == SideShort {
		return "SHORT"
	}
	return "LONG"
}

// Position is an open position as read from the exchange.
type Position struct {
	Side          PositionSide
	LotSize       int64 // fixed-point
	EntryPrice    int64 // fixed-point
	Margin        int64 // collateral smallest units
	UnrealizedPnl int64 // collateral smallest units
}

// AccountSnapshot captures one account's exchange state at a single block.
// Position is nil when the account holds no open position (lot size zero).
// Snapshots are taken pre and post per action and never mutated afterwards.
type AccountSnapshot struct {
	Account          string
	Balance          int64 // collateral smallest units
	LockedBalance    int64 // collateral smallest units
	Position         *Position
	NativeGasBalance *big.Int // wei
}

// HasPosition reports whether the snapshot carries an open position.
func (s AccountSnapshot) HasPosition() bool {
	return s.Position != nil && s.Position.LotSize != 0
}
