package rates

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Store persists the latest rate per currency pair.
type Store interface {
	Get(ctx context.Context, base, quote string) (ExchangeRate, error)
	Upsert(ctx context.Context, rate ExchangeRate) error
}

// DB is the subset of pgxpool.Pool used by PGStore.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PGStore keeps rates in the exchange_rates table.
type PGStore struct {
	DB DB
}

const selectRateSQL = `
SELECT base_currency, quote_currency, rate, source, updated_at
FROM exchange_rates
WHERE base_currency = $1 AND quote_currency = $2`

const upsertRateSQL = `
INSERT INTO exchange_rates (base_currency, quote_currency, rate, source, updated_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (base_currency, quote_currency)
DO UPDATE SET rate = EXCLUDED.rate, source = EXCLUDED.source, updated_at = EXCLUDED.updated_at`

// Get returns ErrNotFound when the pair has never been stored.
func (s PGStore) Get(ctx context.Context, base, quote string) (ExchangeRate, error) {
	var r ExchangeRate
	err := s.DB.QueryRow(ctx, selectRateSQL, strings.ToUpper(base), strings.ToUpper(quote)).
		Scan(&r.Base, &r.Quote, &r.Rate, &r.Source, &r.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ExchangeRate{}, ErrNotFound
		}
		return ExchangeRate{}, fmt.Errorf("select rate: %w", err)
	}
	return r, nil
}

// Upsert inserts or replaces the pair's rate.
func (s PGStore) Upsert(ctx context.Context, r ExchangeRate) error {
	if err := r.Validate(); err != nil {
		return err
	}
	if _, err := s.DB.Exec(ctx, upsertRateSQL, strings.ToUpper(r.Base), strings.ToUpper(r.Quote), r.Rate, r.Source, r.UpdatedAt.UTC()); err != nil {
		return fmt.Errorf("upsert rate: %w", err)
	}
	return nil
}
