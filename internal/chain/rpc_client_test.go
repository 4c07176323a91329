package chain

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"perpsim/internal/abi"
)

// rpcHandler answers JSON-RPC requests via a per-method dispatch table.
func rpcHandler(t *testing.T, methods map[string]func(params []json.RawMessage) (interface{}, *rpcError)) http.HandlerFunc {
	t.Helper()
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ID     uint64            `json:"id"`
			Method string            `json:"method"`
			Params []json.RawMessage `json:"params"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		handler, ok := methods[req.Method]
		if !ok {
			t.Errorf("unexpected method %s", req.Method)
			http.Error(w, "unexpected method", http.StatusBadRequest)
			return
		}
		result, rpcErr := handler(req.Params)

		resp := map[string]interface{}{"jsonrpc": "2.0", "id": req.ID}
		if rpcErr != nil {
			resp["error"] = map[string]interface{}{
				"code":    rpcErr.Code,
				"message": rpcErr.Message,
				"data":    rpcErr.Data,
			}
		} else {
			resp["result"] = result
		}
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}
}

func TestBlockNumber(t *testing.T) {
	srv := httptest.NewServer(rpcHandler(t, map[string]func([]json.RawMessage) (interface{}, *rpcError){
		"eth_blockNumber": func([]json.RawMessage) (interface{}, *rpcError) {
			return "0x64", nil
		},
	}))
	defer srv.Close()

	head, err := NewHTTPClient(srv.URL).BlockNumber(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(100), head)
}

func TestCallContractReturnsBytes(t *testing.T) {
	want := abi.WordFromUint(42)
	srv := httptest.NewServer(rpcHandler(t, map[string]func([]json.RawMessage) (interface{}, *rpcError){
		"eth_call": func(params []json.RawMessage) (interface{}, *rpcError) {
			var arg map[string]string
			require.NoError(t, json.Unmarshal(params[0], &arg))
			assert.Equal(t, "0xdead", arg["to"])
			return "0x" + hex.EncodeToString(want), nil
		},
	}))
	defer srv.Close()

	got, err := NewHTTPClient(srv.URL).CallContract(context.Background(), CallMsg{To: "0xdead", Data: "0x"}, "latest")
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestCallContractRevertFromErrorData(t *testing.T) {
	// Error(string) payload carrying "POSTONLY_WOULD_MATCH".
	reason := "POSTONLY_WOULD_MATCH"
	payload := abi.Selector("Error(string)")
	payload = append(payload, abi.WordFromUint(32)...)
	payload = append(payload, abi.WordFromUint(uint64(len(reason)))...)
	padded := make([]byte, abi.WordSize)
	copy(padded, reason)
	payload = append(payload, padded...)
	data, err := json.Marshal("0x" + hex.EncodeToString(payload))
	require.NoError(t, err)

	srv := httptest.NewServer(rpcHandler(t, map[string]func([]json.RawMessage) (interface{}, *rpcError){
		"eth_call": func([]json.RawMessage) (interface{}, *rpcError) {
			return nil, &rpcError{Code: 3, Message: "execution reverted", Data: data}
		},
	}))
	defer srv.Close()

	_, err = NewHTTPClient(srv.URL).CallContract(context.Background(), CallMsg{To: "0xdead", Data: "0x"}, "latest")
	require.Error(t, err)
	rev, ok := AsRevert(err)
	require.True(t, ok)
	assert.Equal(t, reason, rev.Reason)
}

func TestCallContractRevertFromMessage(t *testing.T) {
	srv := httptest.NewServer(rpcHandler(t, map[string]func([]json.RawMessage) (interface{}, *rpcError){
		"eth_call": func([]json.RawMessage) (interface{}, *rpcError) {
			return nil, &rpcError{Code: -32000, Message: "execution reverted: MARKET_PAUSED"}
		},
	}))
	defer srv.Close()

	_, err := NewHTTPClient(srv.URL).CallContract(context.Background(), CallMsg{To: "0xdead", Data: "0x"}, "latest")
	rev, ok := AsRevert(err)
	require.True(t, ok)
	assert.Equal(t, "MARKET_PAUSED", rev.Reason)
}

func TestRPCErrorIsNotRetried(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(rpcHandler(t, map[string]func([]json.RawMessage) (interface{}, *rpcError){
		"eth_blockNumber": func([]json.RawMessage) (interface{}, *rpcError) {
			calls.Add(1)
			return nil, &rpcError{Code: -32600, Message: "invalid request"}
		},
	}))
	defer srv.Close()

	client := NewHTTPClient(srv.URL, WithMaxRetries(3), WithRetryDelay(time.Millisecond))
	_, err := client.BlockNumber(context.Background())
	require.Error(t, err)
	assert.Equal(t, int64(1), calls.Load())
}

func TestTransportErrorIsRetried(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, "rate limited", http.StatusTooManyRequests)
			return
		}
		rpcHandler(t, map[string]func([]json.RawMessage) (interface{}, *rpcError){
			"eth_blockNumber": func([]json.RawMessage) (interface{}, *rpcError) {
				return "0x2a", nil
			},
		})(w, r)
	}))
	defer srv.Close()

	client := NewHTTPClient(srv.URL, WithMaxRetries(2), WithRetryDelay(time.Millisecond))
	head, err := client.BlockNumber(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(42), head)
	assert.Equal(t, int64(2), calls.Load())
}

func TestWaitForReceiptPolls(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(rpcHandler(t, map[string]func([]json.RawMessage) (interface{}, *rpcError){
		"eth_getTransactionReceipt": func([]json.RawMessage) (interface{}, *rpcError) {
			if calls.Add(1) < 3 {
				return nil, nil
			}
			return map[string]interface{}{
				"transactionHash":   "0xabc",
				"status":            "0x1",
				"blockNumber":       "0x10",
				"gasUsed":           "0x5208",
				"effectiveGasPrice": "0x3b9aca00",
				"logs": []map[string]interface{}{{
					"address": "0xAAAA000000000000000000000000000000000001",
					"topics":  []string{"0x01"},
					"data":    "0x",
				}},
			}, nil
		},
	}))
	defer srv.Close()

	client := NewHTTPClient(srv.URL, WithReceiptPolling(time.Millisecond, time.Second))
	receipt, err := client.WaitForReceipt(context.Background(), "0xabc")
	require.NoError(t, err)

	assert.Equal(t, uint64(1), receipt.Status)
	assert.Equal(t, uint64(16), receipt.BlockNumber)
	assert.Equal(t, uint64(21000), receipt.GasUsed)
	require.Len(t, receipt.Logs, 1)
	// Receipt log addresses are normalized to lowercase.
	assert.Equal(t, "0xaaaa000000000000000000000000000000000001", receipt.Logs[0].Address)
	assert.GreaterOrEqual(t, calls.Load(), int64(3))
}

func TestTransactionByHashNotFound(t *testing.T) {
	srv := httptest.NewServer(rpcHandler(t, map[string]func([]json.RawMessage) (interface{}, *rpcError){
		"eth_getTransactionByHash": func([]json.RawMessage) (interface{}, *rpcError) {
			return nil, nil
		},
	}))
	defer srv.Close()

	_, err := NewHTTPClient(srv.URL).TransactionByHash(context.Background(), "0xmissing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestLatencyObserverSeesEveryCall(t *testing.T) {
	srv := httptest.NewServer(rpcHandler(t, map[string]func([]json.RawMessage) (interface{}, *rpcError){
		"eth_blockNumber": func([]json.RawMessage) (interface{}, *rpcError) {
			return "0x1", nil
		},
	}))
	defer srv.Close()

	var observed []string
	client := NewHTTPClient(srv.URL, WithLatencyObserver(func(method string, _ time.Duration) {
		observed = append(observed, method)
	}))
	_, err := client.BlockNumber(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"eth_blockNumber"}, observed)
}
