package rates

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/donkicalc-api/internal/resilience"
)

// Provider fetches a live rate from an upstream service.
type Provider interface {
	Fetch(ctx context.Context, base, quote string) (decimal.Decimal, error)
}

// ExchangeRateAPI talks to exchangerate-api.com's pair endpoint.
type ExchangeRateAPI struct {
	BaseURL string
	APIKey  string
	Client  resilience.HTTPClient
}

type pairResponse struct {
	Result         string      `json:"result"`
	ErrorType      string      `json:"error-type"`
	ConversionRate json.Number `json:"conversion_rate"`
}

// Fetch returns ErrNoAPIKey without calling out when no key is configured.
func (p ExchangeRateAPI) Fetch(ctx context.Context, base, quote string) (decimal.Decimal, error) {
	if strings.TrimSpace(p.APIKey) == "" {
		return decimal.Zero, ErrNoAPIKey
	}
	url := fmt.Sprintf("%s/%s/pair/%s/%s", strings.TrimRight(p.BaseURL, "/"), p.APIKey, strings.ToUpper(base), strings.ToUpper(quote))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return decimal.Zero, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.Client.Do(ctx, req)
	if err != nil {
		return decimal.Zero, fmt.Errorf("exchangerate-api: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return decimal.Zero, fmt.Errorf("exchangerate-api: unexpected status %d", resp.StatusCode)
	}

	var body pairResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&body); err != nil {
		return decimal.Zero, fmt.Errorf("exchangerate-api: decode: %w", err)
	}
	if body.Result != "success" {
		return decimal.Zero, fmt.Errorf("exchangerate-api: result %q (%s)", body.Result, body.ErrorType)
	}
	rate, err := decimal.NewFromString(body.ConversionRate.String())
	if err != nil || !rate.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidRate, body.ConversionRate)
	}
	return rate, nil
}
