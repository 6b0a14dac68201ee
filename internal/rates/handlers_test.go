package rates

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type stubEnqueuer struct {
	id  string
	err error
	by  string
}

func (s *stubEnqueuer) EnqueueRefresh(_ context.Context, requestedBy string) (string, error) {
	s.by = requestedBy
	return s.id, s.err
}

func TestLatestHandlerReturnsFallbackWith200(t *testing.T) {
	svc, _ := newService(t, newMemStore(), nil)
	rr := httptest.NewRecorder()
	Handler{Service: svc}.Latest(rr, httptest.NewRequest(http.MethodGet, "/api/v1/rates", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	require.JSONEq(t, `{"currency":"JPY","quote":"KRW","rate":9.05,"source":"default","fallback":true}`, rr.Body.String())
}

func TestRefreshHandlerEnqueues(t *testing.T) {
	svc, _ := newService(t, newMemStore(), nil)
	enq := &stubEnqueuer{id: "task-1"}
	rr := httptest.NewRecorder()
	Handler{Service: svc, Enqueuer: enq}.Refresh(rr, httptest.NewRequest(http.MethodPost, "/api/v1/admin/rates/refresh", nil))

	require.Equal(t, http.StatusAccepted, rr.Code)
	var body struct {
		Data struct {
			Queued bool   `json:"queued"`
			TaskID string `json:"taskId"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.True(t, body.Data.Queued)
	require.Equal(t, "task-1", body.Data.TaskID)
	require.Equal(t, "api", enq.by)
}

func TestRefreshHandlerPendingAndFailure(t *testing.T) {
	svc, _ := newService(t, newMemStore(), nil)

	rr := httptest.NewRecorder()
	Handler{Service: svc, Enqueuer: &stubEnqueuer{err: ErrRefreshPending}}.Refresh(rr, httptest.NewRequest(http.MethodPost, "/", nil))
	require.Equal(t, http.StatusAccepted, rr.Code)
	require.Contains(t, rr.Body.String(), `"pending":true`)

	rr = httptest.NewRecorder()
	Handler{Service: svc, Enqueuer: &stubEnqueuer{err: errors.New("redis down")}}.Refresh(rr, httptest.NewRequest(http.MethodPost, "/", nil))
	require.Equal(t, http.StatusServiceUnavailable, rr.Code)
	require.Contains(t, rr.Body.String(), "ENQUEUE_FAILED")
}

func TestRefreshHandlerInline(t *testing.T) {
	store := newMemStore()
	svc, _ := newService(t, store, stubProvider{rate: decimal.RequireFromString("9.2")})
	rr := httptest.NewRecorder()
	Handler{Service: svc}.Refresh(rr, httptest.NewRequest(http.MethodPost, "/", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), `"rate":9.2`)
	require.Equal(t, 1, store.upserts)
}
