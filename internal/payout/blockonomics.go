package payout

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"SwapSentinel/internal/httpclient"
	"SwapSentinel/internal/model"
)

// Blockonomics pays destinations by creating merchant orders.
type Blockonomics struct {
	BaseURL string
	APIKey  string
	Client  *http.Client
}

// NewBlockonomics creates the rail with optional proxy support.
func NewBlockonomics(baseURL, apiKey, proxyURL string, timeout time.Duration) *Blockonomics {
	return &Blockonomics{
		BaseURL: strings.TrimRight(baseURL, "/"),
		APIKey:  apiKey,
		Client:  httpclient.New(timeout, proxyURL),
	}
}

func (b *Blockonomics) Name() string { return "blockonomics" }

// Pay creates an order of amountUSD (sent as integer cents) for the destination address.
func (b *Blockonomics) Pay(ctx context.Context, dest model.Destination, amountUSD decimal.Decimal) (string, error) {
	cents := amountUSD.Shift(2).Round(0)
	if !cents.IsPositive() {
		return "", fmt.Errorf("pay %s: %w", amountUSD, model.ErrInvalidAmount)
	}
	body, err := json.Marshal(map[string]any{
		"addr":  dest.Address,
		"value": cents.IntPart(),
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.BaseURL+"/api/merchant_order", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if b.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+b.APIKey)
	}

	resp, err := b.Client.Do(req)
	if err != nil {
		return "", fmt.Errorf("merchant order: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("merchant order: status %d, body: %s", resp.StatusCode, string(msg))
	}

	var result struct {
		OrderID json.RawMessage `json:"order_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decode merchant order: %w", err)
	}
	ref := strings.Trim(string(result.OrderID), `"`)
	if ref == "" || ref == "null" {
		return "", fmt.Errorf("merchant order: missing order_id")
	}
	return ref, nil
}
