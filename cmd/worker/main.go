package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/donkicalc-api/internal/app"
	"github.com/noah-isme/donkicalc-api/internal/config"
	"github.com/noah-isme/donkicalc-api/internal/obs"
	"github.com/noah-isme/donkicalc-api/internal/queue"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := obs.NewLogger(cfg.ObsLogFormat, cfg.ObsLogLevel).With().Str("component", "worker").Logger()
	obs.MustRegisterDomainMetrics("donkicalc", nil)

	shutdownTracer, err := obs.InitTracer(context.Background(), obs.TracingConfig{
		Enabled:     cfg.ObsTraceEnabled,
		ServiceName: cfg.ServiceName + "-worker",
		Environment: cfg.AppEnv,
		Endpoint:    cfg.OTLPEndpoint,
	})
	if err != nil {
		logger.Error().Err(err).Msg("initialise tracing")
	} else {
		defer func() { _ = shutdownTracer(context.Background()) }()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	deps, err := app.Open(ctx, cfg, logger, cfg.ServiceName+"-worker")
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise dependencies")
	}
	defer deps.Close()

	server := queue.NewServer(deps.TaskOpt, queue.ServerConfig{
		Concurrency:     cfg.WorkerConcurrency,
		ShutdownTimeout: cfg.ShutdownTimeout,
		Logger:          logger,
	})
	scheduler, err := queue.NewScheduler(deps.TaskOpt, cfg.RateRefreshCron, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise scheduler")
	}

	var metricsSrv *http.Server
	if cfg.WorkerMetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		metricsSrv = &http.Server{Addr: cfg.WorkerMetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error().Err(err).Msg("metrics listener failed")
			}
		}()
	}

	logger.Info().Int("concurrency", cfg.WorkerConcurrency).Str("cron", cfg.RateRefreshCron).Msg("worker starting")
	if err := server.Start(queue.NewMux(deps.Rates, logger)); err != nil {
		logger.Fatal().Err(err).Msg("start task server")
	}
	if err := scheduler.Start(); err != nil {
		server.Shutdown()
		logger.Fatal().Err(err).Msg("start scheduler")
	}

	// pull a rate straight away instead of waiting for the first tick
	client := asynq.NewClient(deps.TaskOpt)
	if _, err := (queue.Enqueuer{Client: client}).EnqueueRefresh(ctx, "worker:startup"); err != nil {
		logger.Info().Err(err).Msg("startup refresh skipped")
	}
	if err := client.Close(); err != nil {
		logger.Error().Err(err).Msg("close task client")
	}

	<-ctx.Done()
	logger.Info().Msg("worker shutting down")
	scheduler.Shutdown()
	server.Shutdown()
	if metricsSrv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		_ = metricsSrv.Shutdown(shutdownCtx)
		cancel()
	}
	logger.Info().Msg("worker shutdown complete")
}
