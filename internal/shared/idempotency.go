package shared

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrIdempotencyConflict is returned when the same key is still being processed.
var ErrIdempotencyConflict = errors.New("idempotent request already in progress")

const idempotencyPending = "\x00pending"

// IdempotencyStore remembers the outcome of client supplied request keys in Redis.
type IdempotencyStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewIdempotencyStore constructs the store. Keys live for ttl after they are claimed.
func NewIdempotencyStore(client *redis.Client, ttl time.Duration) *IdempotencyStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &IdempotencyStore{client: client, ttl: ttl}
}

// Begin claims key within module. When the key already completed, the stored
// result is returned with done set. A key that is claimed but not completed
// yields ErrIdempotencyConflict.
func (s *IdempotencyStore) Begin(ctx context.Context, module, key string) (result string, done bool, err error) {
	k := idempotencyKey(module, key)
	ok, err := s.client.SetNX(ctx, k, idempotencyPending, s.ttl).Result()
	if err != nil {
		return "", false, fmt.Errorf("claim idempotency key: %w", err)
	}
	if ok {
		return "", false, nil
	}
	stored, err := s.client.Get(ctx, k).Result()
	switch {
	case errors.Is(err, redis.Nil):
		return "", false, ErrIdempotencyConflict
	case err != nil:
		return "", false, fmt.Errorf("read idempotency key: %w", err)
	case stored == idempotencyPending:
		return "", false, ErrIdempotencyConflict
	}
	return stored, true, nil
}

// Complete records the result for a claimed key.
func (s *IdempotencyStore) Complete(ctx context.Context, module, key, result string) error {
	if err := s.client.Set(ctx, idempotencyKey(module, key), result, s.ttl).Err(); err != nil {
		return fmt.Errorf("complete idempotency key: %w", err)
	}
	return nil
}

// Delete releases a key so the request can be retried.
func (s *IdempotencyStore) Delete(ctx context.Context, module, key string) error {
	if err := s.client.Del(ctx, idempotencyKey(module, key)).Err(); err != nil {
		return fmt.Errorf("delete idempotency key: %w", err)
	}
	return nil
}

func idempotencyKey(module, key string) string {
	return "idempotency:" + module + ":" + key
}
