package clients

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

type countingDirectory struct {
	*MemoryDirectory
	calls atomic.Int32
}

func (d *countingDirectory) FindByDocumentID(ctx context.Context, documentID string) (Client, error) {
	d.calls.Add(1)
	if err := ctx.Err(); err != nil {
		return Client{}, err
	}
	return d.MemoryDirectory.FindByDocumentID(ctx, documentID)
}

func newCached(t *testing.T, next Directory) (*CachedDirectory, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewCachedDirectory(next, client, time.Minute, nil), mr
}

func TestCachedDirectoryServesSecondLookupFromRedis(t *testing.T) {
	inner := &countingDirectory{MemoryDirectory: NewMemoryDirectory(Client{ID: 1, UserID: 10, Name: "Ana", DocumentID: "94392380033"})}
	cached, mr := newCached(t, inner)
	ctx := context.Background()

	c, err := cached.FindByDocumentID(ctx, "94392380033")
	require.NoError(t, err)
	require.Equal(t, "Ana", c.Name)

	c, err = cached.FindByDocumentID(ctx, "94392380033")
	require.NoError(t, err)
	require.Equal(t, int64(1), c.ID)
	require.EqualValues(t, 1, inner.calls.Load())
	require.True(t, mr.Exists("clients:doc:94392380033"))
}

func TestCachedDirectoryDoesNotCacheMisses(t *testing.T) {
	inner := &countingDirectory{MemoryDirectory: NewMemoryDirectory()}
	cached, mr := newCached(t, inner)
	ctx := context.Background()

	_, err := cached.FindByDocumentID(ctx, "00000000000")
	require.ErrorIs(t, err, ErrNotFound)
	require.False(t, mr.Exists("clients:doc:00000000000"))

	inner.Put(Client{ID: 2, DocumentID: "00000000000"})
	c, err := cached.FindByDocumentID(ctx, "00000000000")
	require.NoError(t, err)
	require.Equal(t, int64(2), c.ID)
}

func TestCachedDirectoryEntriesExpire(t *testing.T) {
	inner := &countingDirectory{MemoryDirectory: NewMemoryDirectory(Client{ID: 3, UserID: 30, Name: "Bia", DocumentID: "59644826000"})}
	cached, mr := newCached(t, inner)
	ctx := context.Background()

	_, err := cached.FindByDocumentID(ctx, "59644826000")
	require.NoError(t, err)
	require.True(t, mr.Exists("clients:doc:59644826000"))

	mr.FastForward(2 * time.Minute)
	require.False(t, mr.Exists("clients:doc:59644826000"))

	inner.Put(Client{ID: 3, UserID: 30, Name: "Beatriz", DocumentID: "59644826000"})
	c, err := cached.FindByDocumentID(ctx, "59644826000")
	require.NoError(t, err)
	require.Equal(t, "Beatriz", c.Name)
	require.EqualValues(t, 2, inner.calls.Load())
}

func TestCachedDirectoryLoadIgnoresCallerCancellation(t *testing.T) {
	inner := &countingDirectory{MemoryDirectory: NewMemoryDirectory(Client{ID: 5, UserID: 50, Name: "Caio", DocumentID: "22222222222"})}
	cached, mr := newCached(t, inner)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c, err := cached.FindByDocumentID(ctx, "22222222222")
	require.NoError(t, err)
	require.Equal(t, "Caio", c.Name)
	require.True(t, mr.Exists("clients:doc:22222222222"))
}

func TestCachedDirectoryWithoutRedisDelegates(t *testing.T) {
	inner := NewMemoryDirectory(Client{ID: 4, DocumentID: "11111111111"})
	cached := NewCachedDirectory(inner, nil, 0, nil)

	c, err := cached.FindByDocumentID(context.Background(), "11111111111")
	require.NoError(t, err)
	require.Equal(t, int64(4), c.ID)
}
