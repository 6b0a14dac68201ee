package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/noah-isme/donkicalc-api/internal/obs"
	"github.com/noah-isme/donkicalc-api/internal/rates"
)

// Refresher is implemented by *rates.Service.
type Refresher interface {
	Refresh(ctx context.Context) (rates.Snapshot, error)
}

// NewMux registers the task handlers served by the worker.
func NewMux(refresher Refresher, logger zerolog.Logger) *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeRatesRefresh, RefreshHandler(refresher, logger))
	return mux
}

// RefreshHandler runs a rate refresh for each rates:refresh task.
func RefreshHandler(refresher Refresher, logger zerolog.Logger) asynq.HandlerFunc {
	log := obs.Component(logger, "worker")
	return func(ctx context.Context, t *asynq.Task) (err error) {
		start := time.Now()
		defer func() { obs.ObserveJob(t.Type(), err) }()

		payload, err := DecodeRefreshPayload(t.Payload())
		if err != nil {
			// a malformed payload will not improve on retry
			return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
		}
		snap, err := refresher.Refresh(ctx)
		if errors.Is(err, rates.ErrRefreshPending) {
			log.Info().Str("requested_by", payload.RequestedBy).Msg("rate refresh already running elsewhere")
			return nil
		}
		if err != nil {
			log.Error().Err(err).Str("requested_by", payload.RequestedBy).Msg("rate refresh job failed")
			return err
		}
		log.Info().
			Str("requested_by", payload.RequestedBy).
			Str("source", snap.Source).
			Float64("rate", snap.Rate).
			Float64("duration_ms", obs.DurationMillis(time.Since(start))).
			Msg("rate refresh job done")
		return nil
	}
}

// ServerConfig tunes the asynq worker server.
type ServerConfig struct {
	Concurrency     int
	Queue           string
	ShutdownTimeout time.Duration
	Logger          zerolog.Logger
}

// NewServer builds an asynq server bound to the given Redis connection.
func NewServer(opt asynq.RedisConnOpt, cfg ServerConfig) *asynq.Server {
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}
	queue := cfg.Queue
	if queue == "" {
		queue = DefaultQueue
	}
	log := obs.Component(cfg.Logger, "asynq")
	return asynq.NewServer(opt, asynq.Config{
		Concurrency:     concurrency,
		Queues:          map[string]int{queue: 1},
		ShutdownTimeout: cfg.ShutdownTimeout,
		Logger:          Logger{L: log},
		LogLevel:        asynq.InfoLevel,
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			retried, _ := asynq.GetRetryCount(ctx)
			maxRetry, _ := asynq.GetMaxRetry(ctx)
			log.Warn().Err(err).Str("type", task.Type()).Int("retried", retried).Int("max_retry", maxRetry).Msg("task failed")
		}),
	})
}

// Logger adapts zerolog to asynq.Logger.
type Logger struct {
	L zerolog.Logger
}

func (l Logger) Debug(args ...interface{}) { l.L.Debug().Msg(fmt.Sprint(args...)) }
func (l Logger) Info(args ...interface{})  { l.L.Info().Msg(fmt.Sprint(args...)) }
func (l Logger) Warn(args ...interface{})  { l.L.Warn().Msg(fmt.Sprint(args...)) }
func (l Logger) Error(args ...interface{}) { l.L.Error().Msg(fmt.Sprint(args...)) }
func (l Logger) Fatal(args ...interface{}) { l.L.Fatal().Msg(fmt.Sprint(args...)) }
