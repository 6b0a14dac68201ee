// Package rates supplies the JPY/KRW exchange rate. Reads never fail: they
// fall back from Redis to Postgres to the configured default.
package rates

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	// ErrNotFound is returned by a Store that has no row for the pair.
	ErrNotFound = errors.New("rates: not found")
	// ErrInvalidRate rejects zero, negative, or unparsable rates.
	ErrInvalidRate = errors.New("rates: invalid rate")
	// ErrNoAPIKey means the upstream provider is not configured.
	ErrNoAPIKey = errors.New("rates: provider api key not configured")
	// ErrRefreshPending is returned when a refresh is already queued.
	ErrRefreshPending = errors.New("rates: refresh already pending")
)

// Sources recorded alongside a stored rate.
const (
	SourceProvider = "provider"
	SourceStored   = "stored"
	SourceDefault  = "default"
	SourceCache    = "cache"
)

// ExchangeRate is the persisted rate for one currency pair: Quote units per
// one Base unit.
type ExchangeRate struct {
	Base      string          `json:"base"`
	Quote     string          `json:"quote"`
	Rate      decimal.Decimal `json:"rate"`
	Source    string          `json:"source"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// Validate checks the positive-rate invariant.
func (r ExchangeRate) Validate() error {
	if !r.Rate.IsPositive() {
		return ErrInvalidRate
	}
	if r.Base == "" || r.Quote == "" {
		return errors.New("rates: currency pair is required")
	}
	return nil
}

// Snapshot is the public view of the current rate.
type Snapshot struct {
	Currency  string     `json:"currency"`
	Quote     string     `json:"quote"`
	Rate      float64    `json:"rate"`
	Source    string     `json:"source"`
	UpdatedAt *time.Time `json:"updatedAt,omitempty"`
	Fallback  bool       `json:"fallback,omitempty"`
}

func snapshotOf(r ExchangeRate, source string) Snapshot {
	updated := r.UpdatedAt
	snap := Snapshot{
		Currency: r.Base,
		Quote:    r.Quote,
		Rate:     r.Rate.InexactFloat64(),
		Source:   source,
	}
	if !updated.IsZero() {
		snap.UpdatedAt = &updated
	}
	return snap
}
