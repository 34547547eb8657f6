package profile

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCache shares resolved profiles across engine instances. Misses
// and transport errors both read as cache misses; the resolver falls
// through to the source either way.
type RedisCache struct {
	Client *redis.Client
	TTL    time.Duration
}

func NewRedisCache(url string, ttl time.Duration) (*RedisCache, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &RedisCache{Client: redis.NewClient(opt), TTL: ttl}, nil
}

func cacheKey(id string) string {
	return "engagement:profile:" + id
}

func (c *RedisCache) Get(ctx context.Context, id string) (Profile, bool) {
	val, err := c.Client.Get(ctx, cacheKey(id)).Result()
	if err != nil {
		return Profile{}, false
	}
	var p Profile
	if err := json.Unmarshal([]byte(val), &p); err != nil {
		return Profile{}, false
	}
	return p, true
}

func (c *RedisCache) Set(ctx context.Context, p Profile) {
	b, err := json.Marshal(p)
	if err != nil {
		return
	}
	_ = c.Client.Set(ctx, cacheKey(p.ID), b, c.TTL).Err()
}
