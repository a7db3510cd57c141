package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisAdapter is a Redis-backed adapter: the persistent backend for
// deployments where the cache must survive process restarts.
type RedisAdapter struct {
	client *redis.Client
}

// RedisConfig holds configuration for the Redis adapter.
type RedisConfig struct {
	URL string // Redis connection URL (e.g., "redis://localhost:6379")
}

// NewRedisAdapter connects to Redis and verifies the connection.
func NewRedisAdapter(cfg RedisConfig) (*RedisAdapter, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return &RedisAdapter{client: client}, nil
}

// NewRedisAdapterFromClient wraps an existing Redis client.
func NewRedisAdapterFromClient(client *redis.Client) *RedisAdapter {
	return &RedisAdapter{client: client}
}

// Get retrieves a value from Redis. Errors read as misses; the Store treats
// a flaky backend the same as an empty one.
func (a *RedisAdapter) Get(key string) (string, bool) {
	val, err := a.client.Get(context.Background(), key).Result()
	if err != nil {
		return "", false
	}
	return val, true
}

// Set stores a value in Redis without expiry; the Store owns entry lifetime
// via envelope timestamps.
func (a *RedisAdapter) Set(key, value string) error {
	return a.client.Set(context.Background(), key, value, 0).Err()
}

// Delete removes a key.
func (a *RedisAdapter) Delete(key string) {
	a.client.Del(context.Background(), key)
}

// Keys scans the rustle namespace.
func (a *RedisAdapter) Keys() []string {
	var keys []string
	iter := a.client.Scan(context.Background(), 0, Namespace+"*", 0).Iterator()
	for iter.Next(context.Background()) {
		keys = append(keys, iter.Val())
	}
	return keys
}

// Close closes the Redis connection.
func (a *RedisAdapter) Close() error {
	return a.client.Close()
}

// Ping tests the Redis connection.
func (a *RedisAdapter) Ping() error {
	return a.client.Ping(context.Background()).Err()
}

// Verify RedisAdapter implements Adapter
var _ Adapter = (*RedisAdapter)(nil)
