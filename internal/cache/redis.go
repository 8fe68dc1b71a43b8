package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/redis/go-redis/v9"

	"MexcPulse/internal/model"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// RedisConfig holds connection settings for the Redis cache.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// RedisCache implements SnapshotCache on Redis with native key expiry.
type RedisCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisCache connects and pings Redis.
func NewRedisCache(cfg RedisConfig, ttl time.Duration) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     10,
		MinIdleConns: 2,
		PoolTimeout:  5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return newRedisCache(client, cfg.Prefix, ttl), nil
}

func newRedisCache(client *redis.Client, prefix string, ttl time.Duration) *RedisCache {
	if prefix == "" {
		prefix = "mexcpulse"
	}
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	return &RedisCache{client: client, prefix: prefix, ttl: ttl}
}

func (c *RedisCache) key(symbol string) string {
	return c.prefix + ":snapshot:" + symbol
}

func (c *RedisCache) Put(ctx context.Context, snap model.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	if err := c.client.Set(ctx, c.key(snap.Symbol), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", snap.Symbol, err)
	}
	return nil
}

func (c *RedisCache) Get(ctx context.Context, symbol string) (model.Snapshot, error) {
	data, err := c.client.Get(ctx, c.key(symbol)).Bytes()
	if errors.Is(err, redis.Nil) {
		return model.Snapshot{}, ErrCacheMiss
	}
	if err != nil {
		return model.Snapshot{}, fmt.Errorf("redis get %s: %w", symbol, err)
	}
	var snap model.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return model.Snapshot{}, fmt.Errorf("unmarshal snapshot %s: %w", symbol, err)
	}
	return snap, nil
}

// Purge is a no-op: Redis expires keys itself.
func (c *RedisCache) Purge(context.Context) (int, error) { return 0, nil }

func (c *RedisCache) Close() error {
	return c.client.Close()
}
