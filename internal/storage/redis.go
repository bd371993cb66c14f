package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCache is a flight cache backed by Redis, for deployments where
// several instances share cached upstream results. Seat counts stay in the
// SQL Store.
type RedisCache struct {
	client    *redis.Client
	prefix    string
	retention time.Duration
}

type redisEntry struct {
	StoredAt int64           `json:"stored_at"`
	Data     json.RawMessage `json:"data"`
}

// NewRedisCache wraps client. Keys are written under prefix and expire from
// Redis after retention; a zero retention keeps them until overwritten.
// Expiry only bounds memory, freshness is still decided on read.
func NewRedisCache(client *redis.Client, prefix string, retention time.Duration) *RedisCache {
	return &RedisCache{client: client, prefix: prefix, retention: retention}
}

// DialRedis connects to addr and verifies the connection with a PING.
func DialRedis(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("pinging redis at %s: %w", addr, err)
	}
	return client, nil
}

func (c *RedisCache) LookupFlights(ctx context.Context, key string, window time.Duration, now time.Time) (CacheEntry, error) {
	raw, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return CacheEntry{}, ErrNotFound
	}
	if err != nil {
		return CacheEntry{}, fmt.Errorf("reading cache entry %s: %w", key, err)
	}

	var e redisEntry
	if err := json.Unmarshal(raw, &e); err != nil {
		return CacheEntry{}, fmt.Errorf("decoding cache entry %s: %w", key, err)
	}
	entry := CacheEntry{Key: key, Payload: []byte(e.Data), StoredAt: time.UnixMilli(e.StoredAt).UTC()}
	if !Fresh(entry.StoredAt, window, now) {
		return CacheEntry{}, ErrNotFound
	}
	return entry, nil
}

func (c *RedisCache) StoreFlights(ctx context.Context, key string, payload []byte, now time.Time) error {
	if !json.Valid(payload) {
		return fmt.Errorf("writing cache entry %s: payload is not JSON", key)
	}
	raw, err := json.Marshal(redisEntry{StoredAt: now.UnixMilli(), Data: payload})
	if err != nil {
		return fmt.Errorf("encoding cache entry %s: %w", key, err)
	}
	if err := c.client.Set(ctx, c.prefix+key, raw, c.retention).Err(); err != nil {
		return fmt.Errorf("writing cache entry %s: %w", key, err)
	}
	return nil
}

// Close closes the underlying client.
func (c *RedisCache) Close() error {
	return c.client.Close()
}
