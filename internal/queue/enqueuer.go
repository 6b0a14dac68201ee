package queue

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hibiken/asynq"

	"github.com/noah-isme/donkicalc-api/internal/rates"
)

// TaskClient is the subset of *asynq.Client used to publish tasks.
type TaskClient interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Enqueuer publishes rate refresh tasks. Each refresh gets a task id derived
// from the pair and the UniqueFor window it falls in, so repeated admin calls
// within one window collapse into one job.
type Enqueuer struct {
	Client    TaskClient
	Queue     string
	UniqueFor time.Duration
	MaxRetry  int
	Now       func() time.Time
}

// EnqueueRefresh schedules a refresh and returns the asynq task id. A refresh
// already queued for the current window yields rates.ErrRefreshPending.
func (e Enqueuer) EnqueueRefresh(ctx context.Context, requestedBy string) (string, error) {
	if e.Client == nil {
		return "", errors.New("queue: task client not configured")
	}
	now := time.Now
	if e.Now != nil {
		now = e.Now
	}
	at := now().UTC()
	requestedBy = strings.TrimSpace(requestedBy)
	if requestedBy == "" {
		requestedBy = "unknown"
	}
	task, err := NewRefreshTask(RefreshPayload{RequestedBy: requestedBy, RequestedAt: at})
	if err != nil {
		return "", err
	}
	opts := append(e.options(), asynq.TaskID(RefreshTaskID(at, e.window())))
	info, err := e.Client.EnqueueContext(ctx, task, opts...)
	if errors.Is(err, asynq.ErrDuplicateTask) || errors.Is(err, asynq.ErrTaskIDConflict) {
		return "", rates.ErrRefreshPending
	}
	if err != nil {
		return "", err
	}
	return info.ID, nil
}

// RefreshTaskID names the refresh slot containing at:
// "rates:refresh:JPY:KRW:<unix seconds / window>".
func RefreshTaskID(at time.Time, window time.Duration) string {
	secs := int64(window / time.Second)
	if secs <= 0 {
		secs = 1
	}
	return fmt.Sprintf("%s:JPY:KRW:%d", TypeRatesRefresh, at.Unix()/secs)
}

func (e Enqueuer) window() time.Duration {
	if e.UniqueFor <= 0 {
		return 5 * time.Minute
	}
	return e.UniqueFor
}

func (e Enqueuer) options() []asynq.Option {
	queue := e.Queue
	if queue == "" {
		queue = DefaultQueue
	}
	retries := e.MaxRetry
	if retries <= 0 {
		retries = 3
	}
	return []asynq.Option{
		asynq.Queue(queue),
		asynq.MaxRetry(retries),
		asynq.Timeout(30 * time.Second),
	}
}
