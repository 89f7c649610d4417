package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// slideScript trims members that fell out of the window, counts the rest,
// and inserts the new member only while the count is below the limit. One
// round trip, atomic per key. Returns the count before any insert.
//
// KEYS[1] window key
// ARGV[1] window start (unix seconds)
// ARGV[2] member
// ARGV[3] score (unix seconds)
// ARGV[4] limit
// ARGV[5] key TTL in seconds
var slideScript = redis.NewScript(`
redis.call('ZREMRANGEBYSCORE', KEYS[1], 0, ARGV[1])
local count = redis.call('ZCARD', KEYS[1])
if count < tonumber(ARGV[4]) then
	redis.call('ZADD', KEYS[1], ARGV[3], ARGV[2])
	redis.call('EXPIRE', KEYS[1], ARGV[5])
end
return count
`)

// RedisWindowStore backs the sliding-window limiter with one Redis sorted
// set per key.
type RedisWindowStore struct {
	client *redis.Client
}

// NewRedisWindowStore connects to Redis at addr.
func NewRedisWindowStore(addr, password string, db int) *RedisWindowStore {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return &RedisWindowStore{client: client}
}

// Slide implements port.WindowStore.
func (s *RedisWindowStore) Slide(ctx context.Context, key string, windowStart float64, member string, score float64, limit int, ttl time.Duration) (int64, error) {
	ttlSeconds := int(ttl / time.Second)
	if ttlSeconds < 1 {
		ttlSeconds = 1
	}

	n, err := slideScript.Run(ctx, s.client, []string{key},
		windowStart, member, score, limit, ttlSeconds).Int64()
	if err != nil {
		return 0, fmt.Errorf("slide window %s: %w", key, err)
	}
	return n, nil
}

// Ping verifies the Redis connection is alive.
func (s *RedisWindowStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the underlying client.
func (s *RedisWindowStore) Close() error {
	return s.client.Close()
}
