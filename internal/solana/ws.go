package solana

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
)

// ErrTransactionFailed is returned when a confirmed transaction carries an execution error.
var ErrTransactionFailed = errors.New("transaction failed on chain")

// WSConfirmer waits for signature confirmation over a signatureSubscribe stream.
type WSConfirmer struct {
	endpoint   string
	commitment string
	dialer     websocket.Dialer
}

// NewWSConfirmer creates a confirmer for the given websocket endpoint.
func NewWSConfirmer(endpoint string) *WSConfirmer {
	return &WSConfirmer{
		endpoint:   endpoint,
		commitment: "confirmed",
		dialer:     websocket.Dialer{HandshakeTimeout: 10 * time.Second},
	}
}

type wsRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      uint64 `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type wsMessage struct {
	ID     uint64          `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  *RPCError       `json:"error"`
	Method string          `json:"method"`
	Params struct {
		Result struct {
			Value struct {
				Err json.RawMessage `json:"err"`
			} `json:"value"`
		} `json:"result"`
		Subscription int64 `json:"subscription"`
	} `json:"params"`
}

// Confirm blocks until signature reaches the configured commitment, the transaction
// fails, or ctx is done.
func (w *WSConfirmer) Confirm(ctx context.Context, signature string) error {
	conn, _, err := w.dialer.DialContext(ctx, w.endpoint, nil)
	if err != nil {
		return fmt.Errorf("websocket dial: %w", err)
	}
	defer conn.Close()

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			// unblocks ReadJSON
			_ = conn.SetReadDeadline(time.Now())
		case <-stop:
		}
	}()

	req := wsRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "signatureSubscribe",
		Params:  []any{signature, map[string]any{"commitment": w.commitment}},
	}
	_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	if err := conn.WriteJSON(req); err != nil {
		return fmt.Errorf("write subscribe: %w", err)
	}

	for {
		var msg wsMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("read notification: %w", err)
		}
		if msg.Error != nil {
			return msg.Error
		}
		if msg.Method != "signatureNotification" {
			continue
		}
		if hasErr(msg.Params.Result.Value.Err) {
			return fmt.Errorf("%w: %s", ErrTransactionFailed, string(msg.Params.Result.Value.Err))
		}
		return nil
	}
}
