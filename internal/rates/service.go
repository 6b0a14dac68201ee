package rates

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/donkicalc-api/internal/cache"
	"github.com/noah-isme/donkicalc-api/internal/lock"
	"github.com/noah-isme/donkicalc-api/internal/obs"
)

// ServiceConfig wires the rate service.
type ServiceConfig struct {
	Store       Store
	Cache       *cache.JSON
	Provider    Provider
	Base        string
	Quote       string
	DefaultRate float64
	Logger      zerolog.Logger
	Now         func() time.Time
	// Lock serialises refreshes across processes. Optional.
	Lock    RefreshLock
	LockTTL time.Duration
}

// RefreshLock runs fn while holding key, failing fast with
// lock.ErrNotAcquired when another process owns it.
type RefreshLock interface {
	TryWithLock(ctx context.Context, key string, ttl time.Duration, fn func(context.Context) error) error
}

// Service resolves and refreshes the current exchange rate.
type Service struct {
	store       Store
	cache       *cache.JSON
	provider    Provider
	base        string
	quote       string
	defaultRate decimal.Decimal
	logger      zerolog.Logger
	now         func() time.Time
	lock        RefreshLock
	lockTTL     time.Duration
}

// NewService validates the configuration and returns a Service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Store == nil {
		return nil, errors.New("rates: store is required")
	}
	def := decimal.NewFromFloat(cfg.DefaultRate)
	if !def.IsPositive() {
		return nil, fmt.Errorf("%w: default %v", ErrInvalidRate, cfg.DefaultRate)
	}
	base := strings.ToUpper(strings.TrimSpace(cfg.Base))
	if base == "" {
		base = "JPY"
	}
	quote := strings.ToUpper(strings.TrimSpace(cfg.Quote))
	if quote == "" {
		quote = "KRW"
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	lockTTL := cfg.LockTTL
	if lockTTL <= 0 {
		lockTTL = time.Minute
	}
	return &Service{
		store:       cfg.Store,
		cache:       cfg.Cache,
		provider:    cfg.Provider,
		base:        base,
		quote:       quote,
		defaultRate: def,
		logger:      obs.Component(cfg.Logger, "rates"),
		now:         now,
		lock:        cfg.Lock,
		lockTTL:     lockTTL,
	}, nil
}

// Default returns the configured fallback snapshot.
func (s *Service) Default() Snapshot {
	return Snapshot{
		Currency: s.base,
		Quote:    s.quote,
		Rate:     s.defaultRate.InexactFloat64(),
		Source:   SourceDefault,
		Fallback: true,
	}
}

// Latest returns the freshest known rate. Cache and store failures are logged
// and degrade to the default rate instead of failing the caller.
func (s *Service) Latest(ctx context.Context) Snapshot {
	key := cache.KeyRate(s.base, s.quote)

	var cached ExchangeRate
	ok, err := s.cache.Get(ctx, key, &cached)
	if err != nil {
		s.logger.Warn().Err(err).Msg("rate cache read failed")
	}
	if ok && cached.Validate() == nil {
		obs.ObserveRateLookup(SourceCache)
		return snapshotOf(cached, cached.Source)
	}

	stored, err := s.store.Get(ctx, s.base, s.quote)
	switch {
	case err == nil && stored.Validate() == nil:
		if err := s.cache.Set(ctx, key, stored); err != nil {
			s.logger.Warn().Err(err).Msg("rate cache write failed")
		}
		obs.ObserveRateLookup(SourceStored)
		return snapshotOf(stored, stored.Source)
	case err != nil && !errors.Is(err, ErrNotFound):
		s.logger.Error().Err(err).Msg("rate store read failed")
	}
	obs.ObserveRateLookup(SourceDefault)
	return s.Default()
}

// Refresh pulls a live rate and persists it. If the provider fails the stored
// rate is kept; if nothing is stored the default is written. The returned
// error is non-nil only when the result could not be persisted, or is
// ErrRefreshPending when another process is already refreshing.
func (s *Service) Refresh(ctx context.Context) (Snapshot, error) {
	if s.lock == nil {
		return s.refresh(ctx)
	}
	var snap Snapshot
	err := s.lock.TryWithLock(ctx, cache.KeyRefreshLock(s.base, s.quote), s.lockTTL, func(ctx context.Context) error {
		var err error
		snap, err = s.refresh(ctx)
		return err
	})
	if errors.Is(err, lock.ErrNotAcquired) {
		return Snapshot{}, ErrRefreshPending
	}
	return snap, err
}

func (s *Service) refresh(ctx context.Context) (Snapshot, error) {
	rate, source := s.resolve(ctx)
	record := ExchangeRate{
		Base:      s.base,
		Quote:     s.quote,
		Rate:      rate,
		Source:    source,
		UpdatedAt: s.now().UTC(),
	}
	if err := s.store.Upsert(ctx, record); err != nil {
		return Snapshot{}, fmt.Errorf("persist rate: %w", err)
	}
	if err := s.cache.Delete(ctx, cache.KeyRate(s.base, s.quote)); err != nil {
		s.logger.Warn().Err(err).Msg("rate cache invalidate failed")
	}
	obs.ObserveRateRefresh(source)
	s.logger.Info().Str("source", source).Str("rate", rate.String()).Msg("rate refreshed")
	return snapshotOf(record, source), nil
}

func (s *Service) resolve(ctx context.Context) (decimal.Decimal, string) {
	if s.provider == nil {
		return s.defaultRate, SourceDefault
	}
	start := time.Now()
	rate, err := s.provider.Fetch(ctx, s.base, s.quote)
	obs.ObserveRateFetch(obs.DurationMillis(time.Since(start)), err)
	if err == nil && rate.IsPositive() {
		return rate, SourceProvider
	}
	if errors.Is(err, ErrNoAPIKey) {
		s.logger.Warn().Msg("exchange rate api key missing, using default rate")
		return s.defaultRate, SourceDefault
	}
	s.logger.Error().Err(err).Msg("rate provider failed")

	stored, serr := s.store.Get(ctx, s.base, s.quote)
	if serr == nil && stored.Validate() == nil {
		return stored.Rate, SourceStored
	}
	if serr != nil && !errors.Is(serr, ErrNotFound) {
		s.logger.Error().Err(serr).Msg("rate store read failed")
	}
	return s.defaultRate, SourceDefault
}
