// Package app wires the shared infrastructure used by the api and worker binaries.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/noah-isme/donkicalc-api/internal/cache"
	"github.com/noah-isme/donkicalc-api/internal/config"
	"github.com/noah-isme/donkicalc-api/internal/lock"
	"github.com/noah-isme/donkicalc-api/internal/migrations"
	"github.com/noah-isme/donkicalc-api/internal/obs"
	"github.com/noah-isme/donkicalc-api/internal/rates"
	"github.com/noah-isme/donkicalc-api/internal/resilience"
)

// Dependencies enumerates the services shared by the binaries.
type Dependencies struct {
	Config   *config.Config
	Logger   zerolog.Logger
	DB       *pgxpool.Pool
	Redis    *redis.Client
	TaskOpt  asynq.RedisClientOpt
	Rates    *rates.Service
	RateRepo rates.Store
}

// Open connects to Postgres and Redis, applies migrations when enabled and
// builds the rate service. application names the process in pg_stat_activity.
func Open(ctx context.Context, cfg *config.Config, logger zerolog.Logger, application string) (*Dependencies, error) {
	pool, err := NewPool(ctx, cfg.DatabaseURL, application)
	if err != nil {
		return nil, err
	}
	redisClient, err := NewRedis(ctx, cfg.RedisURL, logger)
	if err != nil {
		pool.Close()
		return nil, err
	}
	deps := &Dependencies{
		Config:   cfg,
		Logger:   logger,
		DB:       pool,
		Redis:    redisClient,
		TaskOpt:  TaskRedisOpt(redisClient.Options()),
		RateRepo: rates.PGStore{DB: pool},
	}

	if cfg.DBAutoMigrate {
		if err := migrations.Up(cfg.DatabaseURL); err != nil {
			deps.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
		logger.Info().Msg("migrations applied")
	}

	deps.Rates, err = NewRateService(cfg, deps.RateRepo, redisClient, logger)
	if err != nil {
		deps.Close()
		return nil, err
	}
	return deps, nil
}

// Close releases pooled connections.
func (d *Dependencies) Close() {
	if d.Redis != nil {
		if err := d.Redis.Close(); err != nil {
			d.Logger.Error().Err(err).Msg("close redis")
		}
	}
	if d.DB != nil {
		d.DB.Close()
	}
}

// NewPool opens a traced pgx pool and pings it.
func NewPool(ctx context.Context, databaseURL, application string) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database config: %w", err)
	}
	poolConfig.ConnConfig.Tracer = obs.PGXTracer{}
	if poolConfig.ConnConfig.RuntimeParams == nil {
		poolConfig.ConnConfig.RuntimeParams = map[string]string{}
	}
	poolConfig.ConnConfig.RuntimeParams["application_name"] = application

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

// NewRedis opens an instrumented Redis client and pings it.
func NewRedis(ctx context.Context, redisURL string, logger zerolog.Logger) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := redisotel.InstrumentTracing(client); err != nil {
		logger.Error().Err(err).Msg("instrument redis tracing")
	}
	if err := redisotel.InstrumentMetrics(client); err != nil {
		logger.Error().Err(err).Msg("instrument redis metrics")
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// TaskRedisOpt mirrors go-redis options for asynq, which manages its own pool.
func TaskRedisOpt(opts *redis.Options) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Network:   opts.Network,
		Addr:      opts.Addr,
		Username:  opts.Username,
		Password:  opts.Password,
		DB:        opts.DB,
		TLSConfig: opts.TLSConfig,
	}
}

// NewRateService assembles the rate service around store with an outbound
// client guarded by retries and a circuit breaker.
func NewRateService(cfg *config.Config, store rates.Store, redisClient *redis.Client, logger zerolog.Logger) (*rates.Service, error) {
	breaker := resilience.NewBreaker(resilience.BreakerConfig{
		Target:           "exchangerate-api",
		FailureThreshold: cfg.BreakerFailureThreshold,
		OpenFor:          cfg.BreakerHalfOpenAfter,
		Logger:           obs.Component(logger, "resilience"),
	})
	provider := rates.ExchangeRateAPI{
		BaseURL: cfg.ExchangeRateAPIURL,
		APIKey:  cfg.ExchangeRateAPIKey,
		Client: resilience.HTTPClient{
			Client: &http.Client{
				Transport: otelhttp.NewTransport(http.DefaultTransport),
				Timeout:   cfg.OutboundTimeout,
			},
			Breaker:     breaker,
			BaseBackoff: cfg.OutboundBackoffBase,
			MaxBackoff:  cfg.OutboundBackoffMax,
			MaxAttempts: cfg.OutboundRetryMax + 1,
			Jitter:      0.2,
			Timeout:     cfg.OutboundTimeout,
		},
	}
	return rates.NewService(rates.ServiceConfig{
		Store:       store,
		Cache:       cache.New(redisClient, cfg.RateCacheTTL),
		Provider:    provider,
		Base:        cfg.RateBaseCurrency,
		Quote:       cfg.RateQuoteCurrency,
		DefaultRate: cfg.RateDefault,
		Logger:      logger,
		Lock:        lock.Locker{R: redisClient},
		LockTTL:     cfg.OutboundTimeout * time.Duration(cfg.OutboundRetryMax+2),
	})
}

// ReadinessChecker pings the backing stores for /health/ready.
type ReadinessChecker struct {
	DB    *pgxpool.Pool
	Redis *redis.Client
}

func (c ReadinessChecker) PingDB(ctx context.Context, timeout time.Duration) error {
	if c.DB == nil {
		return errors.New("db not configured")
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return c.DB.Ping(ctx)
}

func (c ReadinessChecker) PingRedis(ctx context.Context, timeout time.Duration) error {
	if c.Redis == nil {
		return errors.New("redis not configured")
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return c.Redis.Ping(ctx).Err()
}
