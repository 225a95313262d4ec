package clients

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// Directory resolves clients. Both Repository and MemoryDirectory satisfy it.
type Directory interface {
	FindByDocumentID(ctx context.Context, documentID string) (Client, error)
	FindByUserID(ctx context.Context, userID int64) (Client, error)
}

// CachedDirectory fronts a Directory with a Redis read-through cache.
// Misses are never cached so freshly registered clients resolve immediately.
type CachedDirectory struct {
	next   Directory
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
	group  singleflight.Group
}

// NewCachedDirectory wraps next. A nil redis client disables caching.
func NewCachedDirectory(next Directory, client *redis.Client, ttl time.Duration, logger *slog.Logger) *CachedDirectory {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedDirectory{next: next, client: client, ttl: ttl, logger: logger}
}

// FindByDocumentID implements Directory.
func (d *CachedDirectory) FindByDocumentID(ctx context.Context, documentID string) (Client, error) {
	return d.fetch(ctx, "clients:doc:"+documentID, func(ctx context.Context) (Client, error) {
		return d.next.FindByDocumentID(ctx, documentID)
	})
}

// FindByUserID implements Directory.
func (d *CachedDirectory) FindByUserID(ctx context.Context, userID int64) (Client, error) {
	return d.fetch(ctx, "clients:user:"+strconv.FormatInt(userID, 10), func(ctx context.Context) (Client, error) {
		return d.next.FindByUserID(ctx, userID)
	})
}

func (d *CachedDirectory) fetch(ctx context.Context, key string, loader func(context.Context) (Client, error)) (Client, error) {
	if d.client == nil {
		return loader(ctx)
	}
	raw, err := d.client.Get(ctx, key).Bytes()
	if err == nil {
		var c Client
		if err := json.Unmarshal(raw, &c); err == nil {
			return c, nil
		}
		d.logger.Warn("client cache decode", slog.String("key", key))
	} else if !errors.Is(err, redis.Nil) {
		d.logger.Warn("client cache get", slog.String("key", key), slog.Any("error", err))
	}

	// The shared load outlives the caller that started it.
	detached := context.WithoutCancel(ctx)
	v, err, _ := d.group.Do(key, func() (interface{}, error) {
		c, err := loader(detached)
		if err != nil {
			return Client{}, err
		}
		if payload, err := json.Marshal(c); err == nil {
			if err := d.client.Set(detached, key, payload, d.ttl).Err(); err != nil {
				d.logger.Warn("client cache set", slog.String("key", key), slog.Any("error", err))
			}
		}
		return c, nil
	})
	if err != nil {
		return Client{}, err
	}
	return v.(Client), nil
}
