// Package chain is the JSON-RPC client for the target ledger. It speaks
// the standard eth_ namespace plus the handful of admin methods a local
// fork node exposes (impersonation, balance override, explicit mining).
package chain

import (
	"context"
	"errors"
	"math/big"
)

// ErrNotFound is returned when a transaction or receipt does not exist.
var ErrNotFound = errors.New("not found")

// CallMsg describes a contract call or transaction to submit.
type CallMsg struct {
	From  string
	To    string
	Data  string // 0x-hex calldata
	Value *big.Int
	Gas   uint64 // 0 means let the node choose
}

// Log is one raw receipt log entry, untouched by decoding.
type Log struct {
	Address string
	Topics  []string
	Data    string // 0x-hex
}

// Receipt is a mined transaction's receipt.
type Receipt struct {
	TxHash            string
	Status            uint64 // 1 success, 0 revert
	BlockNumber       uint64
	GasUsed           uint64
	EffectiveGasPrice uint64
	Logs              []Log
}

// Transaction is the subset of a fetched transaction the engine uses.
type Transaction struct {
	Hash        string
	From        string
	To          string
	Input       string // 0x-hex calldata
	Value       *big.Int
	BlockNumber uint64
}

// Client is the ledger surface the engine consumes. The production
// implementation is HTTPClient; tests use the stub package.
type Client interface {
	BlockNumber(ctx context.Context) (uint64, error)
	CallContract(ctx context.Context, msg CallMsg, block string) ([]byte, error)
	EstimateGas(ctx context.Context, msg CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, msg CallMsg) (string, error)
	WaitForReceipt(ctx context.Context, txHash string) (*Receipt, error)
	TransactionByHash(ctx context.Context, txHash string) (*Transaction, error)
	BalanceAt(ctx context.Context, account string) (*big.Int, error)
	CodeAt(ctx context.Context, account string) ([]byte, error)

	// Fork-admin methods, only meaningful against a local fork node.
	ImpersonateAccount(ctx context.Context, account string) error
	SetBalance(ctx context.Context, account string, amount *big.Int) error
	Mine(ctx context.Context) error
}

// RevertError is a simulated execution failure reported by the node.
// It is a first-class result for the engine, never a transport error.
type RevertError struct {
	Reason string // decoded Error(string) payload, may be empty
}

func (e *RevertError) Error() string {
	if e.Reason == "" {
		return "execution reverted"
	}
	return "execution reverted: " + e.Reason
}

// AsRevert unwraps a RevertError if err carries one.
func AsRevert(err error) (*RevertError, bool) {
	var rev *RevertError
	if errors.As(err, &rev) {
		return rev, true
	}
	return nil, false
}
