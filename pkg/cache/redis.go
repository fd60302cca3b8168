package cache

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisCache holds generated reports and session-state snapshots. Reports
// stay until explicitly invalidated or the TTL expires; snapshots let a
// client without URL state resume its last known page.
type RedisCache struct {
	client *redis.Client
	ctx    context.Context
}

const cacheTTL = 24 * time.Hour

func NewRedisCache(addr string) *RedisCache {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
	})
	return &RedisCache{
		client: client,
		ctx:    context.Background(),
	}
}

func reportKey(token string) string   { return "report:" + token }
func snapshotKey(token string) string { return "snapshot:" + token }

func (c *RedisCache) SetReport(token, text string) error {
	return c.client.Set(c.ctx, reportKey(token), text, cacheTTL).Err()
}

func (c *RedisCache) GetReport(token string) (string, error) {
	return c.client.Get(c.ctx, reportKey(token)).Result()
}

func (c *RedisCache) DeleteReport(token string) error {
	return c.client.Del(c.ctx, reportKey(token)).Err()
}

func (c *RedisCache) SetSnapshot(token, encoded string) error {
	return c.client.Set(c.ctx, snapshotKey(token), encoded, cacheTTL).Err()
}

func (c *RedisCache) GetSnapshot(token string) (string, error) {
	return c.client.Get(c.ctx, snapshotKey(token)).Result()
}

// Ping verifies connectivity at startup.
func (c *RedisCache) Ping() error {
	return c.client.Ping(c.ctx).Err()
}
