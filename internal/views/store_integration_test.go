//go:build integration

package views

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/donkicalc-api/internal/testdb"
)

func TestPGStoreIncrement(t *testing.T) {
	store := PGStore{DB: testdb.Postgres(t)}
	ctx := context.Background()

	n, err := store.Get(ctx, "guide")
	require.NoError(t, err)
	require.Zero(t, n)

	for want := int64(1); want <= 3; want++ {
		n, err = store.Increment(ctx, "guide")
		require.NoError(t, err)
		require.Equal(t, want, n)
	}
	n, err = store.Get(ctx, "guide")
	require.NoError(t, err)
	require.EqualValues(t, 3, n)
}
