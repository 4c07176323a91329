package chain

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"perpsim/internal/abi"
)

// Default configuration values.
const (
	DefaultTimeout      = 30 * time.Second
	DefaultMaxRetries   = 3
	DefaultRetryDelay   = 500 * time.Millisecond
	DefaultMaxDelay     = 5 * time.Second
	DefaultBackoffMult  = 2.0
	DefaultReceiptPoll  = 200 * time.Millisecond
	DefaultReceiptLimit = 30 * time.Second
)

// HTTPClient implements Client using HTTP JSON-RPC 2.0.
type HTTPClient struct {
	endpoint    string
	client      *http.Client
	maxRetries  int
	retryDelay  time.Duration
	maxDelay    time.Duration
	backoffMult float64
	receiptPoll time.Duration
	receiptWait time.Duration
	observe     func(method string, elapsed time.Duration)
	requestID   atomic.Uint64
}

// ClientOption configures HTTPClient.
type ClientOption func(*HTTPClient)

// WithTimeout sets HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *HTTPClient) {
		c.client.Timeout = d
	}
}

// WithMaxRetries sets maximum retry attempts.
func WithMaxRetries(n int) ClientOption {
	return func(c *HTTPClient) {
		c.maxRetries = n
	}
}

// WithRetryDelay sets initial retry delay.
func WithRetryDelay(d time.Duration) ClientOption {
	return func(c *HTTPClient) {
		c.retryDelay = d
	}
}

// WithReceiptPolling sets the poll interval and overall wait limit used by
// WaitForReceipt.
func WithReceiptPolling(interval, limit time.Duration) ClientOption {
	return func(c *HTTPClient) {
		c.receiptPoll = interval
		c.receiptWait = limit
	}
}

// WithLatencyObserver registers a per-call latency callback, typically
// feeding a metrics histogram.
func WithLatencyObserver(fn func(method string, elapsed time.Duration)) ClientOption {
	return func(c *HTTPClient) {
		c.observe = fn
	}
}

// WithHTTPClient sets a custom http.Client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *HTTPClient) {
		c.client = client
	}
}

// NewHTTPClient creates a new ledger RPC client for endpoint.
func NewHTTPClient(endpoint string, opts ...ClientOption) *HTTPClient {
	c := &HTTPClient{
		endpoint:    endpoint,
		client:      &http.Client{Timeout: DefaultTimeout},
		maxRetries:  DefaultMaxRetries,
		retryDelay:  DefaultRetryDelay,
		maxDelay:    DefaultMaxDelay,
		backoffMult: DefaultBackoffMult,
		receiptPoll: DefaultReceiptPoll,
		receiptWait: DefaultReceiptLimit,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Endpoint returns the URL this client talks to.
func (c *HTTPClient) Endpoint() string {
	return c.endpoint
}

// rpcRequest represents a JSON-RPC 2.0 request.
type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      uint64        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params,omitempty"`
}

// rpcResponse represents a JSON-RPC 2.0 response.
type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      uint64          `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

// rpcError represents a JSON-RPC 2.0 error. Execution reverts arrive here
// with the ABI-encoded payload in Data.
type rpcError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("RPC error %d: %s", e.Code, e.Message)
}

// asRevert converts a node execution failure into a RevertError.
func (e *rpcError) asRevert() (*RevertError, bool) {
	if len(e.Data) > 0 {
		var hexData string
		if err := json.Unmarshal(e.Data, &hexData); err == nil {
			if raw, err := abi.HexToBytes(hexData); err == nil {
				if reason, ok := abi.UnpackRevert(raw); ok {
					return &RevertError{Reason: reason}, true
				}
			}
		}
	}
	lower := strings.ToLower(e.Message)
	if idx := strings.Index(lower, "execution reverted"); idx >= 0 {
		reason := strings.TrimSpace(e.Message[idx+len("execution reverted"):])
		reason = strings.TrimPrefix(reason, ":")
		return &RevertError{Reason: strings.TrimSpace(reason)}, true
	}
	return nil, false
}

// call performs a JSON-RPC call with retries and exponential backoff.
// RPC-level errors are not retried; transport errors are.
func (c *HTTPClient) call(ctx context.Context, method string, params []interface{}, result interface{}) error {
	start := time.Now()
	defer func() {
		if c.observe != nil {
			c.observe(method, time.Since(start))
		}
	}()

	reqID := c.requestID.Add(1)
	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      reqID,
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	delay := c.retryDelay
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			delay = time.Duration(float64(delay) * c.backoffMult)
			if delay > c.maxDelay {
				delay = c.maxDelay
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.client.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("http request: %w", err)
			continue
		}

		respBody, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("read response: %w", err)
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			lastErr = fmt.Errorf("rate limited (429)")
			continue
		}

		if resp.StatusCode != http.StatusOK {
			lastErr = fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(respBody))
			continue
		}

		var rpcResp rpcResponse
		if err := json.Unmarshal(respBody, &rpcResp); err != nil {
			lastErr = fmt.Errorf("unmarshal response: %w", err)
			continue
		}

		if rpcResp.Error != nil {
			if rev, ok := rpcResp.Error.asRevert(); ok {
				return rev
			}
			return rpcResp.Error
		}

		if result != nil && rpcResp.Result != nil {
			if err := json.Unmarshal(rpcResp.Result, result); err != nil {
				return fmt.Errorf("unmarshal result: %w", err)
			}
		}

		return nil
	}

	return fmt.Errorf("max retries exceeded: %w", lastErr)
}

// callArg converts a CallMsg into the JSON-RPC transaction object.
func callArg(msg CallMsg) map[string]interface{} {
	arg := map[string]interface{}{
		"to":   msg.To,
		"data": msg.Data,
	}
	if msg.From != "" {
		arg["from"] = msg.From
	}
	if msg.Value != nil && msg.Value.Sign() != 0 {
		arg["value"] = hexBig(msg.Value)
	}
	if msg.Gas != 0 {
		arg["gas"] = hexUint(msg.Gas)
	}
	return arg
}

// BlockNumber returns the current head block number.
func (c *HTTPClient) BlockNumber(ctx context.Context) (uint64, error) {
	var result string
	if err := c.call(ctx, "eth_blockNumber", nil, &result); err != nil {
		return 0, err
	}
	return parseHexUint(result)
}

// CallContract executes a read-only call at the given block tag.
func (c *HTTPClient) CallContract(ctx context.Context, msg CallMsg, block string) ([]byte, error) {
	if block == "" {
		block = "latest"
	}
	var result string
	if err := c.call(ctx, "eth_call", []interface{}{callArg(msg), block}, &result); err != nil {
		return nil, err
	}
	return abi.HexToBytes(result)
}

// EstimateGas asks the node for a gas estimate of msg.
func (c *HTTPClient) EstimateGas(ctx context.Context, msg CallMsg) (uint64, error) {
	var result string
	if err := c.call(ctx, "eth_estimateGas", []interface{}{callArg(msg)}, &result); err != nil {
		return 0, err
	}
	return parseHexUint(result)
}

// SendTransaction submits msg from a node-managed (or impersonated) sender
// and returns the transaction hash.
func (c *HTTPClient) SendTransaction(ctx context.Context, msg CallMsg) (string, error) {
	var result string
	if err := c.call(ctx, "eth_sendTransaction", []interface{}{callArg(msg)}, &result); err != nil {
		return "", err
	}
	return result, nil
}

// rawReceipt is the raw RPC shape of a receipt, all quantities hex.
type rawReceipt struct {
	TransactionHash   string `json:"transactionHash"`
	Status            string `json:"status"`
	BlockNumber       string `json:"blockNumber"`
	GasUsed           string `json:"gasUsed"`
	EffectiveGasPrice string `json:"effectiveGasPrice"`
	Logs              []struct {
		Address string   `json:"address"`
		Topics  []string `json:"topics"`
		Data    string   `json:"data"`
	} `json:"logs"`
}

func (r *rawReceipt) toReceipt() (*Receipt, error) {
	status, err := parseHexUint(r.Status)
	if err != nil {
		return nil, fmt.Errorf("parse status: %w", err)
	}
	block, err := parseHexUint(r.BlockNumber)
	if err != nil {
		return nil, fmt.Errorf("parse blockNumber: %w", err)
	}
	gasUsed, err := parseHexUint(r.GasUsed)
	if err != nil {
		return nil, fmt.Errorf("parse gasUsed: %w", err)
	}
	var gasPrice uint64
	if r.EffectiveGasPrice != "" {
		if gasPrice, err = parseHexUint(r.EffectiveGasPrice); err != nil {
			return nil, fmt.Errorf("parse effectiveGasPrice: %w", err)
		}
	}
	receipt := &Receipt{
		TxHash:            r.TransactionHash,
		Status:            status,
		BlockNumber:       block,
		GasUsed:           gasUsed,
		EffectiveGasPrice: gasPrice,
	}
	for _, l := range r.Logs {
		receipt.Logs = append(receipt.Logs, Log{
			Address: strings.ToLower(l.Address),
			Topics:  l.Topics,
			Data:    l.Data,
		})
	}
	return receipt, nil
}

// WaitForReceipt polls for a transaction's receipt until it appears, the
// wait limit elapses, or ctx is done.
func (c *HTTPClient) WaitForReceipt(ctx context.Context, txHash string) (*Receipt, error) {
	deadline := time.Now().Add(c.receiptWait)
	for {
		var raw *rawReceipt
		if err := c.call(ctx, "eth_getTransactionReceipt", []interface{}{txHash}, &raw); err != nil {
			return nil, err
		}
		if raw != nil {
			return raw.toReceipt()
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("receipt for %s: %w", txHash, ErrNotFound)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(c.receiptPoll):
		}
	}
}

// rawTransaction is the raw RPC shape of a transaction.
type rawTransaction struct {
	Hash        string `json:"hash"`
	From        string `json:"from"`
	To          string `json:"to"`
	Input       string `json:"input"`
	Value       string `json:"value"`
	BlockNumber string `json:"blockNumber"`
}

// TransactionByHash fetches a transaction, ErrNotFound when unknown.
func (c *HTTPClient) TransactionByHash(ctx context.Context, txHash string) (*Transaction, error) {
	var raw *rawTransaction
	if err := c.call(ctx, "eth_getTransactionByHash", []interface{}{txHash}, &raw); err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, fmt.Errorf("transaction %s: %w", txHash, ErrNotFound)
	}
	value, err := parseHexBig(raw.Value)
	if err != nil {
		return nil, fmt.Errorf("parse value: %w", err)
	}
	var block uint64
	if raw.BlockNumber != "" {
		if block, err = parseHexUint(raw.BlockNumber); err != nil {
			return nil, fmt.Errorf("parse blockNumber: %w", err)
		}
	}
	return &Transaction{
		Hash:        raw.Hash,
		From:        strings.ToLower(raw.From),
		To:          strings.ToLower(raw.To),
		Input:       raw.Input,
		Value:       value,
		BlockNumber: block,
	}, nil
}

// BalanceAt returns the native balance of account at the latest block.
func (c *HTTPClient) BalanceAt(ctx context.Context, account string) (*big.Int, error) {
	var result string
	if err := c.call(ctx, "eth_getBalance", []interface{}{account, "latest"}, &result); err != nil {
		return nil, err
	}
	return parseHexBig(result)
}

// CodeAt returns the deployed bytecode at account, empty for an EOA.
func (c *HTTPClient) CodeAt(ctx context.Context, account string) ([]byte, error) {
	var result string
	if err := c.call(ctx, "eth_getCode", []interface{}{account, "latest"}, &result); err != nil {
		return nil, err
	}
	return abi.HexToBytes(result)
}

// ImpersonateAccount unlocks an arbitrary sender on a fork node.
func (c *HTTPClient) ImpersonateAccount(ctx context.Context, account string) error {
	return c.call(ctx, "anvil_impersonateAccount", []interface{}{account}, nil)
}

// SetBalance overrides an account's native balance on a fork node.
func (c *HTTPClient) SetBalance(ctx context.Context, account string, amount *big.Int) error {
	return c.call(ctx, "anvil_setBalance", []interface{}{account, hexBig(amount)}, nil)
}

// Mine asks a fork node to produce one block.
func (c *HTTPClient) Mine(ctx context.Context) error {
	return c.call(ctx, "evm_mine", nil, nil)
}

func parseHexUint(s string) (uint64, error) {
	v, err := parseHexBig(s)
	if err != nil {
		return 0, err
	}
	return v.Uint64(), nil
}

func parseHexBig(s string) (*big.Int, error) {
	trimmed := abi.Strip0x(s)
	if trimmed == "" {
		return big.NewInt(0), nil
	}
	v, ok := new(big.Int).SetString(trimmed, 16)
	if !ok {
		return nil, fmt.Errorf("invalid hex quantity %q", s)
	}
	return v, nil
}

func hexUint(v uint64) string {
	return fmt.Sprintf("0x%x", v)
}

func hexBig(v *big.Int) string {
	return "0x" + v.Text(16)
}
