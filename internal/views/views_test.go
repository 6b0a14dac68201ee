package views

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/donkicalc-api/internal/cache"
)

type memStore struct {
	mu     sync.Mutex
	counts map[string]int64
	gets   int
	err    error
}

func (m *memStore) Get(_ context.Context, slug string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gets++
	if m.err != nil {
		return 0, m.err
	}
	return m.counts[slug], nil
}

func (m *memStore) Increment(_ context.Context, slug string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return 0, m.err
	}
	m.counts[slug]++
	return m.counts[slug], nil
}

func newService(t *testing.T) (*Service, *memStore) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	store := &memStore{counts: map[string]int64{}}
	return &Service{Store: store, Cache: cache.New(client, time.Minute)}, store
}

func TestSanitizeSlug(t *testing.T) {
	cases := map[string]string{
		"Hello World":            "helloworld",
		"  donki--tax-free  ":    "donki-tax-free",
		"-coupon-2026-":          "coupon-2026",
		"ドンキ-guide":              "guide",
		"a/b?c=d":                "abcd",
		strings.Repeat("a", 100): strings.Repeat("a", 100),
	}
	for in, want := range cases {
		got, err := SanitizeSlug(in)
		require.NoError(t, err, in)
		require.Equal(t, want, got, in)
	}

	for _, in := range []string{"", "---", "ドンキ", strings.Repeat("b", 101)} {
		_, err := SanitizeSlug(in)
		require.ErrorIs(t, err, ErrInvalidSlug, in)
	}
}

func TestServiceRecordAndCachedRead(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()

	n, err := svc.Record(ctx, "Tax-Free")
	require.NoError(t, err)
	require.EqualValues(t, 1, n)
	n, err = svc.Record(ctx, "tax-free")
	require.NoError(t, err)
	require.EqualValues(t, 2, n)

	n, err = svc.Views(ctx, "tax-free")
	require.NoError(t, err)
	require.EqualValues(t, 2, n)
	require.Zero(t, store.gets)
}

func TestServiceViewsMissFallsToStore(t *testing.T) {
	svc, store := newService(t)
	store.counts["guide"] = 7

	n, err := svc.Views(context.Background(), "guide")
	require.NoError(t, err)
	require.EqualValues(t, 7, n)
	n, err = svc.Views(context.Background(), "guide")
	require.NoError(t, err)
	require.EqualValues(t, 7, n)
	require.Equal(t, 1, store.gets)
}

func TestHandler(t *testing.T) {
	svc, store := newService(t)
	r := chi.NewRouter()
	h := Handler{Service: svc}
	r.Get("/api/v1/views/{slug}", h.Get)
	r.Post("/api/v1/views/{slug}", h.Record)

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/v1/views/donki-guide", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.JSONEq(t, `{"data":{"views":1}}`, rr.Body.String())

	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/views/donki-guide", nil))
	require.JSONEq(t, `{"data":{"views":1}}`, rr.Body.String())

	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/views/---", nil))
	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Contains(t, rr.Body.String(), "INVALID_SLUG")

	store.err = errors.New("db down")
	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/v1/views/other", nil))
	require.Equal(t, http.StatusInternalServerError, rr.Code)
	require.NotContains(t, rr.Body.String(), "db down")
}
