package views

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Store keeps per-slug view counters.
type Store interface {
	Get(ctx context.Context, slug string) (int64, error)
	Increment(ctx context.Context, slug string) (int64, error)
}

// DB is the subset of pgxpool.Pool used by PGStore.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PGStore counts views in the page_views table.
type PGStore struct {
	DB DB
}

const selectViewsSQL = `SELECT views FROM page_views WHERE slug = $1`

const incrementViewsSQL = `
INSERT INTO page_views (slug, views, updated_at)
VALUES ($1, 1, now())
ON CONFLICT (slug)
DO UPDATE SET views = page_views.views + 1, updated_at = now()
RETURNING views`

// Get returns 0 for a slug that has never been viewed.
func (s PGStore) Get(ctx context.Context, slug string) (int64, error) {
	var n int64
	if err := s.DB.QueryRow(ctx, selectViewsSQL, slug).Scan(&n); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("select views: %w", err)
	}
	return n, nil
}

// Increment adds one view and returns the new total.
func (s PGStore) Increment(ctx context.Context, slug string) (int64, error) {
	var n int64
	if err := s.DB.QueryRow(ctx, incrementViewsSQL, slug).Scan(&n); err != nil {
		return 0, fmt.Errorf("increment views: %w", err)
	}
	return n, nil
}
