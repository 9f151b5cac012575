package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisHandle wraps the key-value cache backend.
type RedisHandle struct {
	client *redis.Client
}

// NewRedisHandle wraps an existing client.
func NewRedisHandle(client *redis.Client) *RedisHandle {
	return &RedisHandle{client: client}
}

// OpenRedis connects to the cache and verifies it with a ping.
// The endpoint may omit the port; 6379 is assumed.
func OpenRedis(endpoint string) (*RedisHandle, error) {
	addr := endpoint
	if !strings.Contains(addr, ":") {
		addr += ":6379"
	}

	client := redis.NewClient(&redis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
		ReadTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	return &RedisHandle{client: client}, nil
}

// CacheSet stores a value with a TTL.
func (h *RedisHandle) CacheSet(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := h.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set cache key %s: %w", key, err)
	}
	return nil
}

// CacheGet retrieves a value. A missing key returns ErrCacheMiss,
// distinct from a backend error.
func (h *RedisHandle) CacheGet(ctx context.Context, key string) ([]byte, error) {
	value, err := h.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cache key %s: %w", key, err)
	}
	return value, nil
}

// CacheDelete removes a key. Deleting an absent key is not an error.
func (h *RedisHandle) CacheDelete(ctx context.Context, key string) error {
	if err := h.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("failed to delete cache key %s: %w", key, err)
	}
	return nil
}

// Probe executes a liveness ping.
func (h *RedisHandle) Probe(ctx context.Context) error {
	if err := h.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis probe failed: %w", err)
	}
	return nil
}

// Close closes the client.
func (h *RedisHandle) Close() error {
	return h.client.Close()
}
