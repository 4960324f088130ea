package quote

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"SwapSentinel/internal/httpclient"
	"SwapSentinel/internal/model"
)

// Service quotes routes between units and builds the swap transaction for a quote.
type Service interface {
	GetQuote(ctx context.Context, in, out model.Unit, amount decimal.Decimal) (*model.Quote, error)
	BuildTransaction(ctx context.Context, q *model.Quote, signer string) ([]byte, error)
}

// Jupiter implements Service against the Jupiter v6 swap API.
type Jupiter struct {
	BaseURL     string
	APIKey      string
	SlippageBps int
	Client      *http.Client
}

// NewJupiter creates a Jupiter client with optional proxy support.
func NewJupiter(baseURL, apiKey, proxyURL string, slippageBps int, timeout time.Duration) *Jupiter {
	return &Jupiter{
		BaseURL:     strings.TrimRight(baseURL, "/"),
		APIKey:      apiKey,
		SlippageBps: slippageBps,
		Client:      httpclient.New(timeout, proxyURL),
	}
}

// jupQuote holds the fields of a quote response the agent reads. The full payload is kept
// verbatim as the route handle, since /swap expects it back unchanged.
type jupQuote struct {
	InputMint      string            `json:"inputMint"`
	InAmount       string            `json:"inAmount"`
	OutputMint     string            `json:"outputMint"`
	OutAmount      string            `json:"outAmount"`
	PriceImpactPct string            `json:"priceImpactPct"`
	RoutePlan      []json.RawMessage `json:"routePlan"`
}

// GetQuote asks for the best route swapping amount (UI units) of in into out.
func (j *Jupiter) GetQuote(ctx context.Context, in, out model.Unit, amount decimal.Decimal) (*model.Quote, error) {
	raw := in.ToBaseUnits(amount)
	if !raw.IsPositive() {
		return nil, fmt.Errorf("quote %s→%s amount %s: %w", in, out, amount, model.ErrInvalidAmount)
	}

	q := url.Values{
		"inputMint":   {in.Mint},
		"outputMint":  {out.Mint},
		"amount":      {raw.String()},
		"slippageBps": {strconv.Itoa(j.SlippageBps)},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, j.BaseURL+"/quote?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	j.authorize(req)

	body, err := j.do(req)
	if err != nil {
		return nil, fmt.Errorf("quote %s→%s: %v: %w", in, out, err, model.ErrNoRouteFound)
	}

	var jq jupQuote
	if err := json.Unmarshal(body, &jq); err != nil {
		return nil, fmt.Errorf("decode quote: %v: %w", err, model.ErrNoRouteFound)
	}
	outRaw, err := decimal.NewFromString(jq.OutAmount)
	if err != nil || !outRaw.IsPositive() || len(jq.RoutePlan) == 0 {
		return nil, fmt.Errorf("quote %s→%s returned no usable route: %w", in, out, model.ErrNoRouteFound)
	}
	impact := decimal.Zero
	if jq.PriceImpactPct != "" {
		if v, err := decimal.NewFromString(jq.PriceImpactPct); err == nil {
			impact = v.Abs()
		}
	}

	return &model.Quote{
		InputUnit:            in,
		OutputUnit:           out,
		InputAmount:          in.FromBaseUnits(raw),
		ExpectedOutputAmount: out.FromBaseUnits(outRaw),
		PriceImpact:          impact,
		RouteHandle:          json.RawMessage(body),
	}, nil
}

// BuildTransaction asks the router to assemble the unsigned swap transaction for q.
func (j *Jupiter) BuildTransaction(ctx context.Context, q *model.Quote, signer string) ([]byte, error) {
	if q == nil || len(q.RouteHandle) == 0 {
		return nil, fmt.Errorf("build transaction: empty route handle")
	}
	payload, err := json.Marshal(map[string]any{
		"quoteResponse":           q.RouteHandle,
		"userPublicKey":           signer,
		"wrapAndUnwrapSol":        true,
		"dynamicComputeUnitLimit": true,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal swap request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, j.BaseURL+"/swap", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	j.authorize(req)

	body, err := j.do(req)
	if err != nil {
		return nil, fmt.Errorf("build swap: %w", err)
	}
	var result struct {
		SwapTransaction string `json:"swapTransaction"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("decode swap: %w", err)
	}
	if result.SwapTransaction == "" {
		return nil, fmt.Errorf("build swap: empty transaction")
	}
	tx, err := base64.StdEncoding.DecodeString(result.SwapTransaction)
	if err != nil {
		return nil, fmt.Errorf("decode swap transaction: %w", err)
	}
	return tx, nil
}

func (j *Jupiter) authorize(req *http.Request) {
	if j.APIKey != "" {
		req.Header.Set("x-api-key", j.APIKey)
	}
}

func (j *Jupiter) do(req *http.Request) ([]byte, error) {
	resp, err := j.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d, body: %s", resp.StatusCode, truncate(body, 256))
	}
	return body, nil
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		return string(b[:n]) + "..."
	}
	return string(b)
}
