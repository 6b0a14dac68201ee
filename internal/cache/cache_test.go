package cache

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

type payload struct {
	Rate float64 `json:"rate"`
}

func TestJSONRoundTripAndExpiry(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer func() { _ = client.Close() }()

	c := New(client, time.Minute)
	ctx := context.Background()
	key := KeyRate("jpy", "krw")
	require.Equal(t, "donkicalc:rate:JPY:KRW", key)

	var got payload
	ok, err := c.Get(ctx, key, &got)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, c.Set(ctx, key, payload{Rate: 9.05}))
	ok, err = c.Get(ctx, key, &got)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 9.05, got.Rate)

	mr.FastForward(2 * time.Minute)
	ok, err = c.Get(ctx, key, &got)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestJSONCorruptPayloadIsAMiss(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer func() { _ = client.Close() }()

	require.NoError(t, mr.Set(KeyViews("home"), "{not json"))
	var n int64
	ok, err := New(client, time.Minute).Get(context.Background(), KeyViews("home"), &n)
	require.NoError(t, err)
	require.False(t, ok)
	require.False(t, mr.Exists(KeyViews("home")))
}

func TestNilCacheIsNoop(t *testing.T) {
	var c *JSON
	ok, err := c.Get(context.Background(), "k", &payload{})
	require.NoError(t, err)
	require.False(t, ok)
	require.NoError(t, c.Set(context.Background(), "k", payload{}))
	require.NoError(t, c.Delete(context.Background(), "k"))
}
