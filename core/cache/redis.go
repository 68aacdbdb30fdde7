package cache

import (
	"context"
	"errors"
	"time"

	"consult-booking/core/config"
	"consult-booking/core/logger"

	"github.com/redis/go-redis/v9"
)

var ErrCacheMiss = errors.New("cache: key not found")

type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	// SetNX stores value only when key is absent and reports whether it did.
	SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
	Del(ctx context.Context, keys ...string) error
	Close() error
}

type redisCache struct {
	client *redis.Client
}

func NewRedisCache(cfg config.RedisConfig) (Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Error("Cache:NewRedisCache:Ping:Error", "addr", cfg.Addr, "error", err)
		_ = client.Close()
		return nil, err
	}

	logger.Info("Cache:NewRedisCache:Connected", "addr", cfg.Addr, "db", cfg.DB)
	return &redisCache{client: client}, nil
}

// NewFromClient wraps an existing client.
func NewFromClient(client *redis.Client) Cache {
	return &redisCache{client: client}
}

func (c *redisCache) Get(ctx context.Context, key string) (string, error) {
	val, err := c.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrCacheMiss
	}
	return val, err
}

func (c *redisCache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return c.client.Set(ctx, key, value, ttl).Err()
}

func (c *redisCache) SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	return c.client.SetNX(ctx, key, value, ttl).Result()
}

func (c *redisCache) Del(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return c.client.Del(ctx, keys...).Err()
}

func (c *redisCache) Close() error {
	return c.client.Close()
}

// Noop is used when Redis is not configured. Every lookup misses and every SetNX wins.
type Noop struct{}

func (Noop) Get(context.Context, string) (string, error)                      { return "", ErrCacheMiss }
func (Noop) Set(context.Context, string, string, time.Duration) error         { return nil }
func (Noop) SetNX(context.Context, string, string, time.Duration) (bool, error) { return true, nil }
func (Noop) Del(context.Context, ...string) error                             { return nil }
func (Noop) Close() error                                                     { return nil }
