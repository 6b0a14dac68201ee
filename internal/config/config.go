package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"

	"github.com/noah-isme/donkicalc-api/internal/calculator"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	AppEnv             string
	Port               string
	DatabaseURL        string
	RedisURL           string
	DBAutoMigrate      bool
	CORSAllowedOrigins []string
	CronSecret         string

	ObsLogFormat    string
	ObsLogLevel     string
	ObsTraceEnabled bool
	ServiceName     string
	OTLPEndpoint    string

	ExchangeRateAPIKey string
	ExchangeRateAPIURL string
	RateBaseCurrency   string
	RateQuoteCurrency  string
	RateDefault        float64
	RateCacheTTL       time.Duration
	RateRefreshCron    string

	RateLimitMax      int
	RateLimitWindow   time.Duration
	RateLimitStrategy string

	CalcTaxFreeThreshold float64
	CalcMaxDigits        int

	BodyLimitBytes int64

	OutboundTimeout         time.Duration
	OutboundRetryMax        int
	OutboundBackoffBase     time.Duration
	OutboundBackoffMax      time.Duration
	BreakerFailureThreshold int
	BreakerHalfOpenAfter    time.Duration

	WorkerConcurrency int
	WorkerMetricsAddr string
	ShutdownTimeout   time.Duration
}

// Load reads configuration from environment variables and optional .env files.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := &Config{
		AppEnv:             valueOrDefault(k.String("APP_ENV"), "development"),
		Port:               valueOrDefault(k.String("PORT"), "8080"),
		DatabaseURL:        k.String("DATABASE_URL"),
		RedisURL:           k.String("REDIS_URL"),
		DBAutoMigrate:      parseBool(k.String("DB_AUTO_MIGRATE")),
		CORSAllowedOrigins: splitAndTrim(k.String("CORS_ALLOWED_ORIGINS")),
		CronSecret:         strings.TrimSpace(k.String("CRON_SECRET")),

		ObsLogFormat:    valueOrDefault(k.String("OBS_LOG_FORMAT"), "json"),
		ObsLogLevel:     valueOrDefault(k.String("OBS_LOG_LEVEL"), "info"),
		ObsTraceEnabled: parseBool(k.String("OBS_TRACE_ENABLED")),
		ServiceName:     valueOrDefault(k.String("SERVICE_NAME"), "donkicalc-api"),
		OTLPEndpoint:    strings.TrimSpace(k.String("OTEL_EXPORTER_OTLP_ENDPOINT")),

		ExchangeRateAPIKey: strings.TrimSpace(k.String("EXCHANGE_RATE_API_KEY")),
		ExchangeRateAPIURL: strings.TrimRight(valueOrDefault(k.String("EXCHANGE_RATE_API_URL"), "https://v6.exchangerate-api.com/v6"), "/"),
		RateBaseCurrency:   strings.ToUpper(valueOrDefault(k.String("RATE_BASE_CURRENCY"), "JPY")),
		RateQuoteCurrency:  strings.ToUpper(valueOrDefault(k.String("RATE_QUOTE_CURRENCY"), "KRW")),
		RateDefault:        parseFloat(k.String("RATE_DEFAULT"), 9.05),
		RateCacheTTL:       parseDuration(k.String("RATE_CACHE_TTL"), "30m"),
		RateRefreshCron:    valueOrDefault(k.String("RATE_REFRESH_CRON"), "@every 1h"),

		RateLimitMax:      parseInt(k.String("RATE_LIMIT_MAX"), 60),
		RateLimitWindow:   parseDuration(k.String("RATE_LIMIT_WINDOW"), "1m"),
		RateLimitStrategy: strings.ToLower(valueOrDefault(k.String("RATE_LIMIT_STRATEGY"), "sliding")),

		CalcTaxFreeThreshold: parseFloat(k.String("CALC_TAX_FREE_THRESHOLD"), 5500),
		CalcMaxDigits:        calculator.ClampMaxDigits(parseInt(k.String("CALC_MAX_DIGITS"), calculator.DefaultMaxDigits)),

		BodyLimitBytes: int64(parseInt(k.String("BODY_LIMIT_BYTES"), 64<<10)),

		OutboundTimeout:         parseDuration(k.String("OUTBOUND_TIMEOUT"), "5s"),
		OutboundRetryMax:        parseInt(k.String("OUTBOUND_RETRY_MAX"), 2),
		OutboundBackoffBase:     parseDuration(k.String("OUTBOUND_BACKOFF_BASE"), "200ms"),
		OutboundBackoffMax:      parseDuration(k.String("OUTBOUND_BACKOFF_MAX"), "2s"),
		BreakerFailureThreshold: parseInt(k.String("BREAKER_FAILURE_THRESHOLD"), 5),
		BreakerHalfOpenAfter:    parseDuration(k.String("BREAKER_HALF_OPEN_AFTER"), "30s"),

		WorkerConcurrency: parseInt(k.String("WORKER_CONCURRENCY"), 2),
		WorkerMetricsAddr: strings.TrimSpace(k.String("WORKER_METRICS_ADDR")),
		ShutdownTimeout:   parseDuration(k.String("SHUTDOWN_TIMEOUT"), "10s"),
	}

	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL is required")
	}
	if cfg.RateDefault <= 0 {
		return nil, errors.New("RATE_DEFAULT must be positive")
	}
	switch cfg.RateLimitStrategy {
	case "sliding", "fixed":
	default:
		return nil, fmt.Errorf("RATE_LIMIT_STRATEGY %q is not supported", cfg.RateLimitStrategy)
	}

	return cfg, nil
}

// HTTPAddr returns the address the HTTP server should bind to.
func (c *Config) HTTPAddr() string {
	port := strings.TrimSpace(c.Port)
	if port == "" {
		port = "8080"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return ":" + port
}

// IsProduction reports whether APP_ENV names a production deployment.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.AppEnv, "production")
}

func splitAndTrim(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func valueOrDefault(value, fallback string) string {
	if strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}
	return fallback
}

func parseDuration(value, fallback string) time.Duration {
	base := strings.TrimSpace(value)
	if base == "" {
		base = fallback
	}
	d, err := time.ParseDuration(base)
	if err != nil {
		d, _ = time.ParseDuration(fallback)
	}
	return d
}

func parseBool(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

func parseInt(value string, fallback int) int {
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

func parseFloat(value string, fallback float64) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil || f <= 0 {
		return fallback
	}
	return f
}

// MustLoad behaves like Load but panics on error. Useful for tests and command entrypoints.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// LoadForTests allows tests to override environment variables without touching the real environment.
func LoadForTests(env map[string]string) (*Config, error) {
	original := make(map[string]string, len(env))
	for key := range env {
		original[key] = os.Getenv(key)
		if err := setEnvVar(key, env[key]); err != nil {
			return nil, err
		}
	}
	cfg, err := Load()
	restoreErr := restoreEnv(original)
	if err != nil {
		return nil, err
	}
	return cfg, restoreErr
}

func setEnvVar(key, value string) error {
	if value == "" {
		return os.Unsetenv(key)
	}
	return os.Setenv(key, value)
}

func restoreEnv(values map[string]string) error {
	var errs []string
	for key, value := range values {
		if err := setEnvVar(key, value); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", key, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("restore env: %s", strings.Join(errs, "; "))
	}
	return nil
}
