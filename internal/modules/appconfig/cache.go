package appconfig

import (
	"context"
	"encoding/json"
	"time"

	"github.com/derlev/sandwich-spawnpoint/internal/pkg/redis"
)

const (
	cacheKey    = "config:snapshot"
	cacheGenKey = "config:gen"
	cacheTTL    = 5 * time.Minute
)

// RedisCache keeps the config snapshot in Redis so every instance shares invalidations.
// Every invalidation bumps a generation counter; a snapshot read from the database is only
// saved while the generation it was loaded under is still current.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{client: client, ttl: cacheTTL}
}

func (c *RedisCache) Load(ctx context.Context) (*Snapshot, int64, bool, error) {
	raw, ok, gen, err := c.client.GetVersioned(ctx, cacheKey, cacheGenKey)
	if err != nil || !ok {
		return nil, gen, false, err
	}
	var snap Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, gen, false, err
	}
	return &snap, gen, true, nil
}

func (c *RedisCache) Save(ctx context.Context, gen int64, snap *Snapshot) error {
	raw, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	_, err = c.client.SetIfVersion(ctx, cacheKey, cacheGenKey, gen, raw, c.ttl)
	return err
}

func (c *RedisCache) Invalidate(ctx context.Context) error {
	return c.client.Bump(ctx, cacheGenKey, cacheKey)
}
