package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// incrScript increments the window counter and sets the window expiry only
// when the counter was just created. Running as a single script makes
// increment-and-expiry atomic across concurrent gateway instances.
var incrScript = redis.NewScript(`
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
local ttl = redis.call("PTTL", KEYS[1])
return {current, ttl}
`)

// RedisStore is a Store backed by a shared Redis instance. The Redis server,
// not any gateway process, is authoritative for window counts.
type RedisStore struct {
	client *redis.Client
}

// RedisConfig configures the counter-store connection.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(ctx context.Context, cfg RedisConfig) (*RedisStore, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("redis addr is required")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &RedisStore{client: client}, nil
}

// Incr implements Store.
func (s *RedisStore) Incr(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	windowMillis := window.Milliseconds()
	if windowMillis <= 0 {
		return 0, 0, fmt.Errorf("window must be positive")
	}

	result, err := incrScript.Run(ctx, s.client, []string{key}, windowMillis).Result()
	if err != nil {
		return 0, 0, fmt.Errorf("counter increment: %w", err)
	}

	values, ok := result.([]interface{})
	if !ok || len(values) < 2 {
		return 0, 0, fmt.Errorf("unexpected counter store response")
	}
	count, ok := values[0].(int64)
	if !ok {
		return 0, 0, fmt.Errorf("invalid counter value in store response")
	}
	ttlMillis, _ := values[1].(int64)

	var ttl time.Duration
	if ttlMillis > 0 {
		ttl = time.Duration(ttlMillis) * time.Millisecond
	}

	return count, ttl, nil
}

// Close releases the Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
