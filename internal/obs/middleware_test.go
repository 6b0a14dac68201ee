package obs_test

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/donkicalc-api/internal/obs"
)

func TestHTTPMetricsLabels(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := obs.NewHTTPMetrics("donkicalc", []float64{10, 1}, registry)
	handler := obs.HTTPObs{Metrics: metrics}.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/health/ready", nil)
	req = req.WithContext(obs.WithRoute(req.Context(), "/health/ready"))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	require.Equal(t, http.StatusNoContent, rr.Code)
	require.Equal(t, 1.0, testutil.ToFloat64(metrics.ReqTotal.WithLabelValues(http.MethodGet, "/health/ready", "204")))
	require.NotZero(t, testutil.CollectAndCount(metrics.ReqDur))
	require.Zero(t, testutil.ToFloat64(metrics.InFlight))

	again := obs.NewHTTPMetrics("donkicalc", nil, registry)
	require.Same(t, metrics.ReqTotal, again.ReqTotal)
}

func TestRequestLoggerWritesStatusAndRoute(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	handler := obs.RequestLogger{Logger: logger}.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NotNil(t, zerolog.Ctx(r.Context()))
		w.WriteHeader(http.StatusTeapot)
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/calculate", nil)
	req = req.WithContext(obs.WithRoute(req.Context(), "/api/v1/calculate"))
	handler.ServeHTTP(httptest.NewRecorder(), req)

	out := buf.String()
	require.Contains(t, out, `"status":418`)
	require.Contains(t, out, `"route":"/api/v1/calculate"`)
	require.Contains(t, out, `"message":"http_request"`)
}

func TestDomainMetricsHelpers(t *testing.T) {
	registry := prometheus.NewRegistry()
	obs.MustRegisterDomainMetrics("donkicalc_test", registry)

	obs.ObserveCalculation("flat", true, false)
	obs.ObserveToolRun("coupon-calculator", errors.New("boom"))
	obs.ObserveRateRefresh("provider")
	obs.ObservePageView()

	require.Equal(t, 1.0, testutil.ToFloat64(obs.CalculationsTotal.WithLabelValues("flat", "true", "false")))
	require.Equal(t, 1.0, testutil.ToFloat64(obs.ToolRunsTotal.WithLabelValues("coupon-calculator", "error")))
	require.Equal(t, 1.0, testutil.ToFloat64(obs.RateRefreshTotal.WithLabelValues("provider")))
	require.Equal(t, 1.0, testutil.ToFloat64(obs.PageViewsTotal))
}

func TestParseBucketsCSV(t *testing.T) {
	require.Equal(t, []float64{5, 10}, obs.ParseBucketsCSV("5, x, -1, 10"))
	require.Nil(t, obs.ParseBucketsCSV("  "))
}

func TestRouteResolvedAfterRouting(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := obs.NewHTTPMetrics("donkicalc_route", nil, registry)

	r := chi.NewRouter()
	r.Use(obs.HTTPObs{Metrics: metrics}.Middleware)
	r.Get("/api/v1/views/{slug}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/views/osaka-trip", nil))

	require.Equal(t, 1.0, testutil.ToFloat64(metrics.ReqTotal.WithLabelValues(http.MethodGet, "/api/v1/views/{slug}", "200")))
}

func TestPGXTracerTimesStatements(t *testing.T) {
	obs.MustRegisterDomainMetrics("donkicalc_test", prometheus.NewRegistry())
	before := testutil.CollectAndCount(obs.DBQueryDuration)

	tracer := obs.PGXTracer{}
	ctx := tracer.TraceQueryStart(context.Background(), nil, pgx.TraceQueryStartData{SQL: "  select views\n from page_views where slug = $1"})
	tracer.TraceQueryEnd(ctx, nil, pgx.TraceQueryEndData{Err: pgx.ErrNoRows})

	require.Equal(t, before+1, testutil.CollectAndCount(obs.DBQueryDuration))
	require.Equal(t, 1, testutil.CollectAndCount(obs.DBQueryDuration.WithLabelValues("SELECT", "ok").(prometheus.Collector)))
}
