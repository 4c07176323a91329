// Package stub implements chain.Client for testing.
package stub

import (
	"context"
	"fmt"
	"math/big"

	"perpsim/internal/chain"
)

// Client is a programmable in-memory chain.Client. Read calls dispatch to
// CallHandler, mutating calls are recorded and answered from queued
// receipts.
type Client struct {
	BlockNum     uint64
	Balances     map[string]*big.Int
	Codes        map[string][]byte
	Transactions map[string]*chain.Transaction
	Receipts     map[string]*chain.Receipt

	// CallHandler answers eth_call. Nil handler returns empty bytes.
	CallHandler func(msg chain.CallMsg, block string) ([]byte, error)
	// EstimateHandler answers eth_estimateGas. Nil returns GasEstimate.
	EstimateHandler func(msg chain.CallMsg) (uint64, error)
	GasEstimate     uint64

	// SendErr, when set, fails SendTransaction with it.
	SendErr error

	Sent         []chain.CallMsg
	queued       []*chain.Receipt
	Impersonated []string
	SetBalances  map[string]*big.Int
	MineCount    int
}

// New creates an empty stub client.
func New() *Client {
	return &Client{
		Balances:     make(map[string]*big.Int),
		Codes:        make(map[string][]byte),
		Transactions: make(map[string]*chain.Transaction),
		Receipts:     make(map[string]*chain.Receipt),
		SetBalances:  make(map[string]*big.Int),
		GasEstimate:  100_000,
	}
}

// QueueReceipt registers the receipt the next SendTransaction resolves to.
func (c *Client) QueueReceipt(r *chain.Receipt) {
	c.queued = append(c.queued, r)
}

// AddTransaction adds a fetchable transaction with its receipt.
func (c *Client) AddTransaction(tx *chain.Transaction, receipt *chain.Receipt) {
	c.Transactions[tx.Hash] = tx
	if receipt != nil {
		c.Receipts[tx.Hash] = receipt
	}
}

// BlockNumber returns the programmed head.
func (c *Client) BlockNumber(_ context.Context) (uint64, error) {
	return c.BlockNum, nil
}

// CallContract dispatches to CallHandler.
func (c *Client) CallContract(_ context.Context, msg chain.CallMsg, block string) ([]byte, error) {
	if c.CallHandler != nil {
		return c.CallHandler(msg, block)
	}
	return nil, nil
}

// EstimateGas dispatches to EstimateHandler or returns GasEstimate.
func (c *Client) EstimateGas(_ context.Context, msg chain.CallMsg) (uint64, error) {
	if c.EstimateHandler != nil {
		return c.EstimateHandler(msg)
	}
	return c.GasEstimate, nil
}

// SendTransaction records the message and assigns a synthetic hash bound to
// the next queued receipt.
func (c *Client) SendTransaction(_ context.Context, msg chain.CallMsg) (string, error) {
	if c.SendErr != nil {
		return "", c.SendErr
	}
	c.Sent = append(c.Sent, msg)
	hash := fmt.Sprintf("0xstub%04d", len(c.Sent))
	if len(c.queued) > 0 {
		r := c.queued[0]
		c.queued = c.queued[1:]
		r.TxHash = hash
		c.Receipts[hash] = r
	}
	return hash, nil
}

// WaitForReceipt returns a registered receipt.
func (c *Client) WaitForReceipt(_ context.Context, txHash string) (*chain.Receipt, error) {
	r, ok := c.Receipts[txHash]
	if !ok {
		return nil, fmt.Errorf("receipt for %s: %w", txHash, chain.ErrNotFound)
	}
	return r, nil
}

// TransactionByHash returns a registered transaction.
func (c *Client) TransactionByHash(_ context.Context, txHash string) (*chain.Transaction, error) {
	tx, ok := c.Transactions[txHash]
	if !ok {
		return nil, fmt.Errorf("transaction %s: %w", txHash, chain.ErrNotFound)
	}
	return tx, nil
}

// BalanceAt returns the programmed balance, zero when absent.
func (c *Client) BalanceAt(_ context.Context, account string) (*big.Int, error) {
	if b, ok := c.Balances[account]; ok {
		return b, nil
	}
	return big.NewInt(0), nil
}

// CodeAt returns the programmed bytecode, empty when absent.
func (c *Client) CodeAt(_ context.Context, account string) ([]byte, error) {
	return c.Codes[account], nil
}

// ImpersonateAccount records the impersonated sender.
func (c *Client) ImpersonateAccount(_ context.Context, account string) error {
	c.Impersonated = append(c.Impersonated, account)
	return nil
}

// SetBalance records the override.
func (c *Client) SetBalance(_ context.Context, account string, amount *big.Int) error {
	c.SetBalances[account] = amount
	return nil
}

// Mine counts mining requests and advances the head.
func (c *Client) Mine(_ context.Context) error {
	c.MineCount++
	c.BlockNum++
	return nil
}
