package dispatch

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DedupeRegistry is the fast-path duplicate suppressor in front of the
// durable job claim. Acquiring a key holds it for a bounded window, so a
// burst of retried submissions collapses without a storage round trip.
// The registry is advisory: the JobStore claim is the authority, so a
// registry outage degrades to extra claim attempts, never to duplicates.
type DedupeRegistry interface {
	// TryAcquire returns true if the key was free and is now held for
	// the window.
	TryAcquire(ctx context.Context, key string) (bool, error)

	// Release frees a held key before its window expires. Called when
	// the durable claim behind the key failed, so a retried submission
	// is not suppressed for the rest of the window.
	Release(ctx context.Context, key string) error

	Close() error
}

type redisRegistry struct {
	client *redis.Client
	window time.Duration
}

// NewRedisRegistry creates a Redis-backed dedupe registry. Keys are held
// with SETNX for the given window.
func NewRedisRegistry(redisURL string, window time.Duration) (DedupeRegistry, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}

	client := redis.NewClient(opt)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	return &redisRegistry{client: client, window: window}, nil
}

// NewRedisRegistryWithClient wraps an existing client. Used by tests.
func NewRedisRegistryWithClient(client *redis.Client, window time.Duration) DedupeRegistry {
	return &redisRegistry{client: client, window: window}
}

func (r *redisRegistry) TryAcquire(ctx context.Context, key string) (bool, error) {
	acquired, err := r.client.SetNX(ctx, "dedupe:"+key, 1, r.window).Result()
	if err != nil {
		return false, fmt.Errorf("dedupe acquire failed: %w", err)
	}
	return acquired, nil
}

func (r *redisRegistry) Release(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, "dedupe:"+key).Err(); err != nil {
		return fmt.Errorf("dedupe release failed: %w", err)
	}
	return nil
}

func (r *redisRegistry) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}

// NoOpRegistry always acquires. Used when Redis is disabled; the durable
// JobStore claim still enforces at-most-once.
type NoOpRegistry struct{}

func (n *NoOpRegistry) TryAcquire(ctx context.Context, key string) (bool, error) {
	return true, nil
}

func (n *NoOpRegistry) Release(ctx context.Context, key string) error {
	return nil
}

func (n *NoOpRegistry) Close() error {
	return nil
}
