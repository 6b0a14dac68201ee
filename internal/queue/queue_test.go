package queue

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/donkicalc-api/internal/obs"
	"github.com/noah-isme/donkicalc-api/internal/rates"
)

type fakeClient struct {
	tasks []*asynq.Task
	opts  [][]asynq.Option
	err   error
}

func (f *fakeClient) EnqueueContext(_ context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.tasks = append(f.tasks, task)
	f.opts = append(f.opts, opts)
	return &asynq.TaskInfo{ID: "task-1", Type: task.Type(), Queue: DefaultQueue}, nil
}

type fakeRefresher struct {
	calls int
	err   error
}

func (f *fakeRefresher) Refresh(context.Context) (rates.Snapshot, error) {
	f.calls++
	if f.err != nil {
		return rates.Snapshot{}, f.err
	}
	return rates.Snapshot{Currency: "JPY", Quote: "KRW", Rate: 9.1, Source: rates.SourceProvider}, nil
}

func TestRefreshPayloadCodec(t *testing.T) {
	at := time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC)
	task, err := NewRefreshTask(RefreshPayload{RequestedBy: "api:abc", RequestedAt: at})
	require.NoError(t, err)
	require.Equal(t, TypeRatesRefresh, task.Type())
	require.JSONEq(t, `{"requested_by":"api:abc","requested_at":"2026-10-17T09:00:00Z"}`, string(task.Payload()))

	p, err := DecodeRefreshPayload(task.Payload())
	require.NoError(t, err)
	require.Equal(t, "api:abc", p.RequestedBy)
	require.True(t, p.RequestedAt.Equal(at))

	p, err = DecodeRefreshPayload(nil)
	require.NoError(t, err)
	require.Empty(t, p.RequestedBy)

	_, err = DecodeRefreshPayload([]byte("{"))
	require.Error(t, err)
}

func TestEnqueueRefresh(t *testing.T) {
	client := &fakeClient{}
	at := time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC)
	e := Enqueuer{Client: client, Now: func() time.Time { return at }}

	id, err := e.EnqueueRefresh(context.Background(), "  ")
	require.NoError(t, err)
	require.Equal(t, "task-1", id)
	require.Len(t, client.tasks, 1)

	p, err := DecodeRefreshPayload(client.tasks[0].Payload())
	require.NoError(t, err)
	require.Equal(t, "unknown", p.RequestedBy)
	require.True(t, p.RequestedAt.Equal(at))
	require.Len(t, client.opts[0], 4)

	var taskID string
	for _, opt := range client.opts[0] {
		require.NotEqual(t, asynq.UniqueOpt, opt.Type())
		if opt.Type() == asynq.TaskIDOpt {
			taskID = opt.Value().(string)
		}
	}
	require.Equal(t, RefreshTaskID(at, 5*time.Minute), taskID)
}

func TestEnqueueRefreshCollapsesWithinWindow(t *testing.T) {
	mr := miniredis.RunT(t)
	client := asynq.NewClient(asynq.RedisClientOpt{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	at := time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC)
	clock := at
	e := Enqueuer{Client: client, Now: func() time.Time { return clock }}
	ctx := context.Background()

	first, err := e.EnqueueRefresh(ctx, "api:a")
	require.NoError(t, err)
	require.Equal(t, RefreshTaskID(at, 5*time.Minute), first)

	clock = at.Add(90 * time.Second)
	_, err = e.EnqueueRefresh(ctx, "api:b")
	require.ErrorIs(t, err, rates.ErrRefreshPending)

	clock = at.Add(5 * time.Minute)
	next, err := e.EnqueueRefresh(ctx, "api:c")
	require.NoError(t, err)
	require.NotEqual(t, first, next)
}

func TestEnqueueRefreshErrors(t *testing.T) {
	e := Enqueuer{Client: &fakeClient{err: asynq.ErrTaskIDConflict}}
	_, err := e.EnqueueRefresh(context.Background(), "api")
	require.ErrorIs(t, err, rates.ErrRefreshPending)

	e = Enqueuer{Client: &fakeClient{err: errors.New("redis down")}}
	_, err = e.EnqueueRefresh(context.Background(), "api")
	require.EqualError(t, err, "redis down")

	_, err = Enqueuer{}.EnqueueRefresh(context.Background(), "api")
	require.Error(t, err)
}

func TestRefreshTaskID(t *testing.T) {
	at := time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC)
	require.Equal(t, "rates:refresh:JPY:KRW:5974092", RefreshTaskID(at, 5*time.Minute))
	require.Equal(t, RefreshTaskID(at, 5*time.Minute), RefreshTaskID(at.Add(4*time.Minute), 5*time.Minute))
	require.NotEqual(t, RefreshTaskID(at, 5*time.Minute), RefreshTaskID(at.Add(5*time.Minute), 5*time.Minute))
}

func TestRefreshHandler(t *testing.T) {
	obs.MustRegisterDomainMetrics("donkicalc_test", prometheus.NewRegistry())
	before := testutil.ToFloat64(obs.JobsProcessedTotal.WithLabelValues(TypeRatesRefresh, "ok"))

	refresher := &fakeRefresher{}
	mux := NewMux(refresher, zerolog.Nop())
	task, err := NewRefreshTask(RefreshPayload{RequestedBy: "scheduler"})
	require.NoError(t, err)
	require.NoError(t, mux.ProcessTask(context.Background(), task))
	require.Equal(t, 1, refresher.calls)

	after := testutil.ToFloat64(obs.JobsProcessedTotal.WithLabelValues(TypeRatesRefresh, "ok"))
	require.Equal(t, before+1, after)
}

func TestRefreshHandlerErrors(t *testing.T) {
	refresher := &fakeRefresher{err: errors.New("persist rate: boom")}
	handler := RefreshHandler(refresher, zerolog.Nop())

	err := handler(context.Background(), asynq.NewTask(TypeRatesRefresh, nil))
	require.EqualError(t, err, "persist rate: boom")

	err = handler(context.Background(), asynq.NewTask(TypeRatesRefresh, []byte("not json")))
	require.ErrorIs(t, err, asynq.SkipRetry)
	require.Equal(t, 1, refresher.calls)

	refresher.err = rates.ErrRefreshPending
	require.NoError(t, handler(context.Background(), asynq.NewTask(TypeRatesRefresh, nil)))
	require.Equal(t, 2, refresher.calls)
}

type fakeRegistrar struct {
	spec string
	task *asynq.Task
}

func (f *fakeRegistrar) Register(cronspec string, task *asynq.Task, _ ...asynq.Option) (string, error) {
	f.spec = cronspec
	f.task = task
	return "entry-1", nil
}

func TestRegisterRefresh(t *testing.T) {
	reg := &fakeRegistrar{}
	id, err := RegisterRefresh(reg, " @every 1h ", time.Minute)
	require.NoError(t, err)
	require.Equal(t, "entry-1", id)
	require.Equal(t, "@every 1h", reg.spec)
	require.Equal(t, TypeRatesRefresh, reg.task.Type())

	_, err = RegisterRefresh(reg, "", time.Minute)
	require.Error(t, err)
}
