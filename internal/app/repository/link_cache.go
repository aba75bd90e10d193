package repository

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const cacheKeyPrefix = "link:"

// LinkCache is a disposable projection of code -> URL. A miss is never an error.
type LinkCache interface {
	Get(ctx context.Context, code string) (string, bool, error)
	Set(ctx context.Context, code, url string, ttl time.Duration) error
	Delete(ctx context.Context, code string) error
}

type redisLinkCache struct {
	client *redis.Client
}

// NewLinkCache returns a Redis-backed cache, or an always-miss cache when client is nil.
func NewLinkCache(client *redis.Client) LinkCache {
	if client == nil {
		return NopCache{}
	}
	return &redisLinkCache{client: client}
}

func (c *redisLinkCache) Get(ctx context.Context, code string) (string, bool, error) {
	url, err := c.client.Get(ctx, cacheKey(code)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return url, true, nil
}

func (c *redisLinkCache) Set(ctx context.Context, code, url string, ttl time.Duration) error {
	return c.client.Set(ctx, cacheKey(code), url, ttl).Err()
}

func (c *redisLinkCache) Delete(ctx context.Context, code string) error {
	return c.client.Del(ctx, cacheKey(code)).Err()
}

func cacheKey(code string) string {
	return cacheKeyPrefix + code
}

// NopCache always misses and drops writes.
type NopCache struct{}

func (NopCache) Get(context.Context, string) (string, bool, error) { return "", false, nil }

func (NopCache) Set(context.Context, string, string, time.Duration) error { return nil }

func (NopCache) Delete(context.Context, string) error { return nil }
