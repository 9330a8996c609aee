package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	coingeckoAPI = "https://api.coingecko.com/api/v3"
)

// RateClient client for CoinGecko API.
// It prices the community currency against a reference coin for display only;
// settlement never depends on it.
type RateClient struct {
	baseURL    string
	coinID     string
	vsCurrency string
	client     *http.Client
}

// NewRateClient creates a new CoinGecko client
func NewRateClient(baseURL, coinID, vsCurrency string) *RateClient {
	if baseURL == "" {
		baseURL = coingeckoAPI
	}
	return &RateClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		coinID:     coinID,
		vsCurrency: strings.ToLower(vsCurrency),
		client: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// Enabled reports whether a reference coin is configured.
func (c *RateClient) Enabled() bool {
	return c != nil && c.coinID != ""
}

// Currency returns the fiat currency rates are quoted in.
func (c *RateClient) Currency() string {
	return strings.ToUpper(c.vsCurrency)
}

// GetRate gets the coin to fiat exchange rate
func (c *RateClient) GetRate(ctx context.Context) (decimal.Decimal, error) {
	endpoint := fmt.Sprintf("%s/simple/price?ids=%s&vs_currencies=%s",
		c.baseURL, url.QueryEscape(c.coinID), url.QueryEscape(c.vsCurrency))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to build rate request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to get rate: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return decimal.Zero, fmt.Errorf("failed to get rate: status %d", resp.StatusCode)
	}

	// {"<coin>": {"<currency>": 1.23}}
	var priceResp map[string]map[string]json.Number
	if err := json.NewDecoder(resp.Body).Decode(&priceResp); err != nil {
		return decimal.Zero, fmt.Errorf("failed to decode rate: %w", err)
	}

	raw, ok := priceResp[c.coinID][c.vsCurrency]
	if !ok {
		return decimal.Zero, fmt.Errorf("rate for %s/%s missing in response", c.coinID, c.vsCurrency)
	}
	rate, err := decimal.NewFromString(raw.String())
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to parse rate: %w", err)
	}
	return rate, nil
}
