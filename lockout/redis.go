package lockout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "gl"

// Redis is the shared-store tracker: per-identifier counters with a
// TTL refreshed on every failure, giving the same sliding-window
// semantics as [Memory] across a fleet.
type Redis struct {
	redis       redis.UniversalClient
	maxAttempts int
	window      time.Duration
}

// NewRedis creates a tracker backed by the given Redis client.
func NewRedis(client redis.UniversalClient, maxAttempts int, window time.Duration) *Redis {
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	if window <= 0 {
		window = 15 * time.Minute
	}

	return &Redis{
		redis:       client,
		maxAttempts: maxAttempts,
		window:      window,
	}
}

func (r *Redis) key(identifier string) string {
	return redisKeyPrefix + ":" + identifier
}

// RecordFailure increments the counter and refreshes its TTL so the
// window slides with the last failure.
func (r *Redis) RecordFailure(ctx context.Context, identifier string) error {
	key := r.key(identifier)

	if _, err := r.redis.Incr(ctx, key).Result(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if err := r.redis.Expire(ctx, key, r.window).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	return nil
}

// RecordSuccess deletes the counter.
func (r *Redis) RecordSuccess(ctx context.Context, identifier string) error {
	if err := r.redis.Del(ctx, r.key(identifier)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	return nil
}

// IsLocked reads the counter; the key's remaining TTL doubles as the
// retry-after hint. Expiry is Redis-side, so an elapsed window simply
// reads as absent.
func (r *Redis) IsLocked(ctx context.Context, identifier string) (bool, time.Duration, error) {
	key := r.key(identifier)

	count, err := r.redis.Get(ctx, key).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, 0, nil
		}
		return false, 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	if count < int64(r.maxAttempts) {
		return false, 0, nil
	}

	ttl, err := r.redis.PTTL(ctx, key).Result()
	if err != nil {
		return false, 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if ttl < 0 {
		ttl = 0
	}

	return true, ttl, nil
}
