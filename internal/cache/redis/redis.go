package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "marketscout:cache:"

// Backend stores cache entries in Redis, relying on its native TTL handling.
type Backend struct {
	client *redis.Client
}

func NewBackend(host, port, pass string, db int) (*Backend, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", host, port),
		Password: pass,
		DB:       db,
	})
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("redis connection failed (%s:%s): %w", host, port, err)
	}
	return &Backend{client: client}, nil
}

func (b *Backend) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := b.client.Get(ctx, keyPrefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return val, true, nil
}

func (b *Backend) Set(ctx context.Context, key string, payload []byte, ttl time.Duration) error {
	return b.client.Set(ctx, keyPrefix+key, payload, ttl).Err()
}
