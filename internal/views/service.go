package views

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/noah-isme/donkicalc-api/internal/cache"
	"github.com/noah-isme/donkicalc-api/internal/obs"
)

// Service reads counters through the Redis cache and writes through to Postgres.
type Service struct {
	Store  Store
	Cache  *cache.JSON
	Logger zerolog.Logger
}

type cachedCount struct {
	Views int64 `json:"views"`
}

// Views returns the current count for slug.
func (s *Service) Views(ctx context.Context, slug string) (int64, error) {
	slug, err := SanitizeSlug(slug)
	if err != nil {
		return 0, err
	}
	key := cache.KeyViews(slug)
	var cached cachedCount
	ok, err := s.Cache.Get(ctx, key, &cached)
	if err != nil {
		s.Logger.Warn().Err(err).Str("slug", slug).Msg("views cache read failed")
	}
	if ok {
		return cached.Views, nil
	}
	n, err := s.Store.Get(ctx, slug)
	if err != nil {
		return 0, err
	}
	s.remember(ctx, slug, n)
	return n, nil
}

// Record counts one view for slug and returns the new total.
func (s *Service) Record(ctx context.Context, slug string) (int64, error) {
	slug, err := SanitizeSlug(slug)
	if err != nil {
		return 0, err
	}
	n, err := s.Store.Increment(ctx, slug)
	if err != nil {
		return 0, err
	}
	obs.ObservePageView()
	s.remember(ctx, slug, n)
	return n, nil
}

func (s *Service) remember(ctx context.Context, slug string, n int64) {
	if err := s.Cache.Set(ctx, cache.KeyViews(slug), cachedCount{Views: n}); err != nil {
		s.Logger.Warn().Err(err).Str("slug", slug).Msg("views cache write failed")
	}
}
