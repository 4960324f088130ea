package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"SwapSentinel/internal/httpclient"
	"SwapSentinel/internal/model"
)

// CoinGecko implements Oracle using the CoinGecko simple price API.
type CoinGecko struct {
	BaseURL  string
	APIKey   string
	Currency string
	Client   *http.Client
}

// NewCoinGecko creates a CoinGecko oracle with optional proxy support.
func NewCoinGecko(baseURL, apiKey, proxyURL string, timeout time.Duration) *CoinGecko {
	return &CoinGecko{
		BaseURL:  strings.TrimRight(baseURL, "/"),
		APIKey:   apiKey,
		Currency: "usd",
		Client:   httpclient.New(timeout, proxyURL),
	}
}

func (c *CoinGecko) Name() string { return "coingecko" }

// GetRate returns the USD rate of one unit.
func (c *CoinGecko) GetRate(ctx context.Context, unit model.Unit) (decimal.Decimal, error) {
	rates, err := c.GetRates(ctx, []model.Unit{unit})
	if err != nil {
		return decimal.Zero, err
	}
	r, ok := rates[unit.Symbol]
	if !ok {
		return decimal.Zero, fmt.Errorf("no %s rate for %s: %w", c.Currency, unit, model.ErrOracleUnavailable)
	}
	return r, nil
}

// GetRates prices a batch of units with at most two requests: one by coin id and one by mint.
// Units the API does not price are absent from the result.
func (c *CoinGecko) GetRates(ctx context.Context, units []model.Unit) (map[string]decimal.Decimal, error) {
	out := make(map[string]decimal.Decimal, len(units))
	var ids, mints []string
	for _, u := range units {
		switch {
		case u.PriceID != "":
			ids = append(ids, u.PriceID)
		case u.Stable:
			out[u.Symbol] = decimal.NewFromInt(1)
		default:
			mints = append(mints, u.Mint)
		}
	}

	var byID, byMint map[string]map[string]json.Number
	var err error
	if len(ids) > 0 {
		q := url.Values{"ids": {strings.Join(ids, ",")}, "vs_currencies": {c.Currency}}
		if byID, err = c.fetch(ctx, "/simple/price", q); err != nil {
			return nil, err
		}
	}
	if len(mints) > 0 {
		q := url.Values{"contract_addresses": {strings.Join(mints, ",")}, "vs_currencies": {c.Currency}}
		if byMint, err = c.fetch(ctx, "/simple/token_price/solana", q); err != nil {
			if len(ids) == 0 {
				return nil, err
			}
			zap.L().Warn("token price lookup failed",
				zap.String("component", "oracle"),
				zap.Error(err))
		}
	}

	for _, u := range units {
		var entry map[string]json.Number
		if u.PriceID != "" {
			entry = byID[u.PriceID]
		} else {
			entry = lookupFold(byMint, u.Mint)
		}
		if entry == nil {
			continue
		}
		rate, err := decimal.NewFromString(entry[c.Currency].String())
		if err != nil || !rate.IsPositive() {
			continue
		}
		out[u.Symbol] = rate
	}
	return out, nil
}

func (c *CoinGecko) fetch(ctx context.Context, path string, q url.Values) (map[string]map[string]json.Number, error) {
	endpoint := c.BaseURL + path + "?" + q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if c.APIKey != "" {
		req.Header.Set("x-cg-demo-api-key", c.APIKey)
	}
	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %v: %w", path, err, model.ErrOracleUnavailable)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("fetch %s: status %d, body: %s: %w", path, resp.StatusCode, string(body), model.ErrOracleUnavailable)
	}
	result := map[string]map[string]json.Number{}
	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	if err := dec.Decode(&result); err != nil {
		return nil, fmt.Errorf("decode %s: %v: %w", path, err, model.ErrOracleUnavailable)
	}
	return result, nil
}

func lookupFold(m map[string]map[string]json.Number, key string) map[string]json.Number {
	if v, ok := m[key]; ok {
		return v
	}
	for k, v := range m {
		if strings.EqualFold(k, key) {
			return v
		}
	}
	return nil
}
