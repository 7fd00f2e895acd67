package store

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const sweepLockKey = "vanish:sweep:lock"

// RedisStore handles Redis operations: the sweep-in-progress guard and the
// fixed-window rate limit counters. Everything here is an optimization; the
// engine behaves identically when redis is not configured.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a new Redis store.
func NewRedisStore(ctx context.Context, redisURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opts)

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return &RedisStore{client: client}, nil
}

// Close closes the Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Ping checks the Redis connection.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// AcquireSweepLock takes the sweep guard for ttl. Returns false when another
// sweep already holds it. Best-effort: redis errors report the lock as taken
// rather than failing the sweep outright, since overlapping sweeps are safe.
func (s *RedisStore) AcquireSweepLock(ctx context.Context, ttl time.Duration) bool {
	ok, err := s.client.SetNX(ctx, sweepLockKey, "1", ttl).Result()
	if err != nil {
		return true
	}
	return ok
}

// ReleaseSweepLock drops the sweep guard.
func (s *RedisStore) ReleaseSweepLock(ctx context.Context) {
	s.client.Del(ctx, sweepLockKey)
}

// rateLimitKey returns the key for a caller's fixed-window counter.
func rateLimitKey(caller string, window time.Duration) string {
	bucket := time.Now().Unix() / int64(window.Seconds())
	return fmt.Sprintf("vanish:ratelimit:%s:%d", caller, bucket)
}

// IncrRateLimit increments the caller's counter for the current window and
// returns the new count.
func (s *RedisStore) IncrRateLimit(ctx context.Context, caller string, window time.Duration) (int64, error) {
	key := rateLimitKey(caller, window)

	pipe := s.client.Pipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, window*2)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return incr.Val(), nil
}
