// Package hits counts paste and profile views in redis.
package hits

import (
	"context"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "pastemate:hits"

// Counter increments and reads view counters.
type Counter interface {
	Hit(ctx context.Context, kind, id string) (int64, error)
	Count(ctx context.Context, kind, id string) (int64, error)
	Forget(ctx context.Context, kind, id string) error
}

const (
	KindPaste = "paste"
	KindUser  = "user"
)

// RedisCounter stores counters as plain redis integers.
type RedisCounter struct {
	client redis.UniversalClient
}

// NewRedisCounter parses a redis URL (or bare host:port) and returns a counter.
func NewRedisCounter(address string) (*RedisCounter, error) {
	var options *redis.Options
	if strings.Contains(address, "://") {
		parsed, err := redis.ParseURL(address)
		if err != nil {
			return nil, fmt.Errorf("hits: invalid redis url: %w", err)
		}
		options = parsed
	} else {
		options = &redis.Options{Addr: address}
	}
	return NewRedisCounterWithClient(redis.NewClient(options)), nil
}

// NewRedisCounterWithClient wraps an existing client.
func NewRedisCounterWithClient(client redis.UniversalClient) *RedisCounter {
	return &RedisCounter{client: client}
}

// Ping checks connectivity.
func (c *RedisCounter) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close releases the underlying client.
func (c *RedisCounter) Close() error {
	return c.client.Close()
}

func (c *RedisCounter) Hit(ctx context.Context, kind, id string) (int64, error) {
	return c.client.Incr(ctx, key(kind, id)).Result()
}

func (c *RedisCounter) Count(ctx context.Context, kind, id string) (int64, error) {
	value, err := c.client.Get(ctx, key(kind, id)).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	return value, err
}

// Forget drops the counter for a deleted resource.
func (c *RedisCounter) Forget(ctx context.Context, kind, id string) error {
	return c.client.Del(ctx, key(kind, id)).Err()
}

func key(kind, id string) string {
	return keyPrefix + ":" + kind + ":" + id
}

// Noop is used when no redis is configured.
type Noop struct{}

func (Noop) Hit(context.Context, string, string) (int64, error)   { return 0, nil }
func (Noop) Count(context.Context, string, string) (int64, error) { return 0, nil }
func (Noop) Forget(context.Context, string, string) error          { return nil }
