package chain

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
)

// HeadWaiter subscribes to newHeads over WebSocket and lets a caller block
// until the next block lands. Fork nodes serve WS on the same port as HTTP,
// so mining confirmation does not need receipt polling.
type HeadWaiter struct {
	conn         *websocket.Conn
	subscription string
	readTimeout  time.Duration
}

// DefaultHeadReadTimeout bounds a single wait for the next head.
const DefaultHeadReadTimeout = 15 * time.Second

// NewHeadWaiter dials endpoint (ws:// or wss://) and subscribes to newHeads.
func NewHeadWaiter(ctx context.Context, endpoint string) (*HeadWaiter, error) {
	dialer := websocket.Dialer{}
	conn, resp, err := dialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", endpoint, err)
	}
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}

	sub := rpcRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "eth_subscribe",
		Params:  []interface{}{"newHeads"},
	}
	if err := conn.WriteJSON(sub); err != nil {
		conn.Close()
		return nil, fmt.Errorf("subscribe newHeads: %w", err)
	}

	var reply rpcResponse
	if err := conn.ReadJSON(&reply); err != nil {
		conn.Close()
		return nil, fmt.Errorf("read subscription reply: %w", err)
	}
	if reply.Error != nil {
		conn.Close()
		return nil, fmt.Errorf("subscribe newHeads: %w", reply.Error)
	}
	var subID string
	if err := json.Unmarshal(reply.Result, &subID); err != nil {
		conn.Close()
		return nil, fmt.Errorf("parse subscription id: %w", err)
	}

	return &HeadWaiter{
		conn:         conn,
		subscription: subID,
		readTimeout:  DefaultHeadReadTimeout,
	}, nil
}

// headNotification is the eth_subscription push for newHeads.
type headNotification struct {
	Method string `json:"method"`
	Params struct {
		Subscription string `json:"subscription"`
		Result       struct {
			Number string `json:"number"`
		} `json:"result"`
	} `json:"params"`
}

// Next blocks until the next head arrives and returns its block number.
func (w *HeadWaiter) Next(ctx context.Context) (uint64, error) {
	deadline := time.Now().Add(w.readTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := w.conn.SetReadDeadline(deadline); err != nil {
		return 0, fmt.Errorf("set read deadline: %w", err)
	}

	for {
		var note headNotification
		if err := w.conn.ReadJSON(&note); err != nil {
			return 0, fmt.Errorf("read head: %w", err)
		}
		if note.Method != "eth_subscription" || note.Params.Subscription != w.subscription {
			continue
		}
		return parseHexUint(note.Params.Result.Number)
	}
}

// Close tears down the subscription connection.
func (w *HeadWaiter) Close() error {
	return w.conn.Close()
}

// MineAndWait mines one block on a fork node and, when a WS endpoint is
// given, waits for the head notification before returning. The WS wait is
// best-effort: a subscription failure degrades to plain mining, since the
// subsequent receipt poll still observes the new block.
func MineAndWait(ctx context.Context, client Client, wsEndpoint string) error {
	var waiter *HeadWaiter
	if wsEndpoint != "" {
		if w, err := NewHeadWaiter(ctx, wsEndpoint); err == nil {
			waiter = w
			defer waiter.Close()
		}
	}

	if err := client.Mine(ctx); err != nil {
		return err
	}

	if waiter != nil {
		if _, err := waiter.Next(ctx); err != nil {
			return nil // degraded, receipt polling covers it
		}
	}
	return nil
}
