package shared

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newIdempotencyStore(t *testing.T) (*IdempotencyStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewIdempotencyStore(client, time.Hour), mr
}

func TestIdempotencyStoreLifecycle(t *testing.T) {
	store, _ := newIdempotencyStore(t)
	ctx := context.Background()

	_, done, err := store.Begin(ctx, "parking", "k1")
	require.NoError(t, err)
	require.False(t, done)

	_, _, err = store.Begin(ctx, "parking", "k1")
	require.ErrorIs(t, err, ErrIdempotencyConflict)

	require.NoError(t, store.Complete(ctx, "parking", "k1", "A1B2C3"))
	result, done, err := store.Begin(ctx, "parking", "k1")
	require.NoError(t, err)
	require.True(t, done)
	require.Equal(t, "A1B2C3", result)

	_, done, err = store.Begin(ctx, "other", "k1")
	require.NoError(t, err)
	require.False(t, done)
}

func TestIdempotencyStoreDeleteAllowsRetry(t *testing.T) {
	store, _ := newIdempotencyStore(t)
	ctx := context.Background()

	_, _, err := store.Begin(ctx, "parking", "k2")
	require.NoError(t, err)
	require.NoError(t, store.Delete(ctx, "parking", "k2"))

	_, done, err := store.Begin(ctx, "parking", "k2")
	require.NoError(t, err)
	require.False(t, done)
}

func TestIdempotencyStoreKeysExpire(t *testing.T) {
	store, mr := newIdempotencyStore(t)
	ctx := context.Background()

	_, _, err := store.Begin(ctx, "parking", "k3")
	require.NoError(t, err)
	require.NoError(t, store.Complete(ctx, "parking", "k3", "R1"))

	mr.FastForward(2 * time.Hour)
	_, done, err := store.Begin(ctx, "parking", "k3")
	require.NoError(t, err)
	require.False(t, done)
}
