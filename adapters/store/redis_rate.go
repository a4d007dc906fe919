package store

import (
	"context"
	"fmt"
	"time"

	"github.com/handyhub/identity/core"
	"github.com/handyhub/identity/ports"
	"github.com/redis/go-redis/v9"
)

// incrBucketLua couples the counter bump with the window bookkeeping.
// The first hit starts the window; every caller learns the remaining
// window so the limiter can surface a retry-after.
var incrBucketLua = redis.NewScript(`
local count = redis.call("INCR", KEYS[1])
if count == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
local ttl = redis.call("PTTL", KEYS[1])
if ttl < 0 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
  ttl = tonumber(ARGV[1])
end
return {count, ttl}
`)

// RedisRateStore is a Redis implementation of the RateStore port.
// Buckets are plain counters with a TTL equal to the window, so stale
// buckets self-clean.
type RedisRateStore struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisRateStore creates a Redis rate store.
func NewRedisRateStore(client redis.UniversalClient) ports.RateStore {
	return &RedisRateStore{
		client: client,
		prefix: "identity:rate:",
	}
}

// Incr bumps the bucket and returns count and window reset time.
func (s *RedisRateStore) Incr(ctx context.Context, key string, window time.Duration) (int64, time.Time, error) {
	result, err := incrBucketLua.Run(ctx, s.client,
		[]string{s.prefix + key},
		window.Milliseconds(),
	).Result()
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("%w: %v", core.ErrStoreUnavailable, err)
	}

	values, ok := result.([]interface{})
	if !ok || len(values) != 2 {
		return 0, time.Time{}, fmt.Errorf("%w: unexpected rate script result", core.ErrStoreUnavailable)
	}
	count, ok := values[0].(int64)
	if !ok {
		return 0, time.Time{}, fmt.Errorf("%w: unexpected rate script result", core.ErrStoreUnavailable)
	}
	ttlMs, ok := values[1].(int64)
	if !ok {
		return 0, time.Time{}, fmt.Errorf("%w: unexpected rate script result", core.ErrStoreUnavailable)
	}

	return count, time.Now().Add(time.Duration(ttlMs) * time.Millisecond), nil
}
