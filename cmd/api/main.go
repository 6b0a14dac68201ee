package main

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/noah-isme/donkicalc-api/internal/app"
	"github.com/noah-isme/donkicalc-api/internal/cache"
	"github.com/noah-isme/donkicalc-api/internal/config"
	"github.com/noah-isme/donkicalc-api/internal/health"
	"github.com/noah-isme/donkicalc-api/internal/obs"
	"github.com/noah-isme/donkicalc-api/internal/queue"
	"github.com/noah-isme/donkicalc-api/internal/quote"
	"github.com/noah-isme/donkicalc-api/internal/ratelimit"
	"github.com/noah-isme/donkicalc-api/internal/rates"
	"github.com/noah-isme/donkicalc-api/internal/security"
	"github.com/noah-isme/donkicalc-api/internal/tools"
	"github.com/noah-isme/donkicalc-api/internal/views"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := obs.NewLogger(cfg.ObsLogFormat, cfg.ObsLogLevel).With().Str("env", cfg.AppEnv).Logger()

	metricsNamespace := envOrDefault("OBS_METRICS_NAMESPACE", "donkicalc")
	metricsEnabled := envBool("OBS_ENABLE_PROMETHEUS", true)
	obs.MustRegisterDomainMetrics(metricsNamespace, nil)

	tracingEnabled := cfg.ObsTraceEnabled
	shutdownTracer, err := obs.InitTracer(context.Background(), obs.TracingConfig{
		Enabled:       tracingEnabled,
		ServiceName:   cfg.ServiceName,
		Environment:   cfg.AppEnv,
		Endpoint:      cfg.OTLPEndpoint,
		SamplingRatio: envFloat("OBS_TRACING_SAMPLING_RATIO", 1.0),
	})
	if err != nil {
		logger.Error().Err(err).Msg("initialise tracing")
		tracingEnabled = false
	} else {
		defer func() {
			if err := shutdownTracer(context.Background()); err != nil {
				logger.Error().Err(err).Msg("shutdown tracer")
			}
		}()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	deps, err := app.Open(ctx, cfg, logger, cfg.ServiceName)
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise dependencies")
	}
	defer deps.Close()

	taskClient := asynq.NewClient(deps.TaskOpt)
	defer func() {
		if err := taskClient.Close(); err != nil {
			logger.Error().Err(err).Msg("close task client")
		}
	}()
	inspector := asynq.NewInspector(deps.TaskOpt)
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Error().Err(err).Msg("close queue inspector")
		}
	}()

	limiter, err := ratelimit.New(cfg.RateLimitStrategy, deps.Redis, cache.KeyRateLimit())
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise rate limiter")
	}

	var httpMetrics *obs.HTTPMetrics
	if metricsEnabled {
		buckets := obs.ParseBucketsCSV(envOrDefault("OBS_METRICS_BUCKETS_MS", ""))
		httpMetrics = obs.NewHTTPMetrics(metricsNamespace, buckets, nil)
	}

	var pprofHandler http.Handler
	if envBool("OBS_ENABLE_PPROF", !cfg.IsProduction()) {
		pprofHandler = protectPprof(newPprofMux(), envOrDefault("SECURE_PPROF_BASIC_AUTH_USER", ""), envOrDefault("SECURE_PPROF_BASIC_AUTH_PASS", ""))
	}

	rt := routes{
		Logger:         logger,
		AllowedOrigins: cfg.CORSAllowedOrigins,
		Headers: security.Headers{
			Enable:  true,
			HSTS:    hstsFor(cfg),
			NoStore: true,
		},
		BodyLimit: security.BodyLimit{Max: cfg.BodyLimitBytes},
		CronAuth:  security.CronAuth{Secret: cfg.CronSecret},
		RateLimit: ratelimit.Handler{
			Limiter: limiter,
			Config:  ratelimit.Config{Key: ratelimit.KeyByClientIP, Window: cfg.RateLimitWindow, Max: cfg.RateLimitMax},
			OnError: func(err error) { logger.Warn().Err(err).Msg("rate limiter unavailable") },
		},
		Metrics: httpMetrics,
		Tracing: tracingEnabled,
		Pprof:   pprofHandler,
		Health: health.Handler{
			Checker:      app.ReadinessChecker{DB: deps.DB, Redis: deps.Redis},
			DBTimeout:    envDurationMillis("HEALTH_READY_DB_TIMEOUT_MS", 500),
			RedisTimeout: envDurationMillis("HEALTH_READY_REDIS_TIMEOUT_MS", 300),
		},
		Rates: rates.Handler{
			Service:  deps.Rates,
			Enqueuer: queue.Enqueuer{Client: taskClient},
		},
		Quote: quote.NewHandler(deps.Rates, tools.NewRegistry(), cfg.CalcTaxFreeThreshold, cfg.CalcMaxDigits),
		Views: views.Handler{Service: &views.Service{
			Store:  views.PGStore{DB: deps.DB},
			Cache:  cache.New(deps.Redis, time.Minute),
			Logger: obs.Component(logger, "views"),
		}},
		Queue: &queue.AdminHandler{Inspector: inspector, Logger: obs.Component(logger, "queue")},
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           rt.handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			logger.Fatal().Err(err).Msg("server exited unexpectedly")
		}
	case <-ctx.Done():
	}

	health.SetReady(false)
	logger.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}
	logger.Info().Msg("server stopped")
}

func envOrDefault(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		trimmed := strings.TrimSpace(val)
		if trimmed != "" {
			return trimmed
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if val, ok := os.LookupEnv(key); ok {
		switch strings.ToLower(strings.TrimSpace(val)) {
		case "1", "t", "true", "yes", "on":
			return true
		case "0", "f", "false", "no", "off":
			return false
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.ParseFloat(strings.TrimSpace(val), 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.Atoi(strings.TrimSpace(val)); err == nil {
			return parsed
		}
	}
	return fallback
}

func envDurationMillis(key string, fallback int) time.Duration {
	return time.Duration(envInt(key, fallback)) * time.Millisecond
}

func newPprofMux() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", pprof.Index)
	mux.HandleFunc("/cmdline", pprof.Cmdline)
	mux.HandleFunc("/profile", pprof.Profile)
	mux.HandleFunc("/symbol", pprof.Symbol)
	mux.HandleFunc("/trace", pprof.Trace)
	mux.Handle("/allocs", pprof.Handler("allocs"))
	mux.Handle("/goroutine", pprof.Handler("goroutine"))
	mux.Handle("/heap", pprof.Handler("heap"))
	return mux
}

func protectPprof(handler http.Handler, user, pass string) http.Handler {
	user = strings.TrimSpace(user)
	pass = strings.TrimSpace(pass)
	if user == "" {
		return handler
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, p, ok := r.BasicAuth()
		if !ok || subtle.ConstantTimeCompare([]byte(u), []byte(user)) != 1 || subtle.ConstantTimeCompare([]byte(p), []byte(pass)) != 1 {
			w.Header().Set("WWW-Authenticate", "Basic realm=restricted")
			http.Error(w, "unauthorised", http.StatusUnauthorized)
			return
		}
		handler.ServeHTTP(w, r)
	})
}

func hstsFor(cfg *config.Config) time.Duration {
	if !cfg.IsProduction() {
		return 0
	}
	return 365 * 24 * time.Hour
}
