package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "carbon:report:"

// ErrMiss is returned by Get when the key is absent.
var ErrMiss = errors.New("cache miss")

// Reports is a JSON cache for derived reports. Keys must already encode
// everything the value depends on; entries are never invalidated, only
// expired.
type Reports struct {
	client *redis.Client
	ttl    time.Duration
}

func NewClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", addr, err)
	}
	return client, nil
}

func New(client *redis.Client, ttl time.Duration) *Reports {
	return &Reports{client: client, ttl: ttl}
}

// Key builds a report key from the data version, the factor table
// fingerprint and the month range.
func Key(version int64, fingerprint, from, to string) string {
	return fmt.Sprintf("%sv%d:f%s:%s:%s", keyPrefix, version, fingerprint, from, to)
}

func (c *Reports) Get(ctx context.Context, key string, dest any) error {
	raw, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return ErrMiss
	}
	if err != nil {
		return fmt.Errorf("cache get %s: %w", key, err)
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return fmt.Errorf("cache decode %s: %w", key, err)
	}
	return nil
}

func (c *Reports) Set(ctx context.Context, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache encode %s: %w", key, err)
	}
	if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache set %s: %w", key, err)
	}
	return nil
}
