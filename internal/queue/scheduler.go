package queue

import (
	"errors"
	"strings"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/noah-isme/donkicalc-api/internal/obs"
)

// Registrar is the subset of *asynq.Scheduler used to add periodic tasks.
type Registrar interface {
	Register(cronspec string, task *asynq.Task, opts ...asynq.Option) (string, error)
}

// RegisterRefresh adds the periodic rate refresh under cronspec and returns
// the scheduler entry id.
func RegisterRefresh(s Registrar, cronspec string, uniqueFor time.Duration) (string, error) {
	cronspec = strings.TrimSpace(cronspec)
	if cronspec == "" {
		return "", errors.New("queue: refresh cron spec is empty")
	}
	task, err := NewRefreshTask(RefreshPayload{RequestedBy: "scheduler"})
	if err != nil {
		return "", err
	}
	// scheduled payloads are constant, so payload uniqueness applies
	e := Enqueuer{UniqueFor: uniqueFor}
	opts := append(e.options(), asynq.Unique(e.window()))
	return s.Register(cronspec, task, opts...)
}

// NewScheduler builds an asynq scheduler with the refresh entry registered.
func NewScheduler(opt asynq.RedisConnOpt, cronspec string, logger zerolog.Logger) (*asynq.Scheduler, error) {
	log := obs.Component(logger, "scheduler")
	scheduler := asynq.NewScheduler(opt, &asynq.SchedulerOpts{
		Location: time.UTC,
		Logger:   Logger{L: log},
		LogLevel: asynq.InfoLevel,
		PostEnqueueFunc: func(info *asynq.TaskInfo, err error) {
			if err != nil && !errors.Is(err, asynq.ErrDuplicateTask) {
				log.Error().Err(err).Msg("scheduled enqueue failed")
				return
			}
			if info != nil {
				log.Debug().Str("task_id", info.ID).Str("type", info.Type).Msg("scheduled task enqueued")
			}
		},
	})
	id, err := RegisterRefresh(scheduler, cronspec, 5*time.Minute)
	if err != nil {
		return nil, err
	}
	log.Info().Str("entry_id", id).Str("cron", cronspec).Msg("rate refresh scheduled")
	return scheduler, nil
}
