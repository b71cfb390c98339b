package ai

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache memoises read-only flow results in Redis. A nil client disables it.
type Cache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewCache(rdb *redis.Client, ttl time.Duration) *Cache {
	return &Cache{rdb: rdb, ttl: ttl}
}

func (c *Cache) get(ctx context.Context, flow string, req, out any) bool {
	if c == nil || c.rdb == nil {
		return false
	}
	key, err := cacheKey(flow, req)
	if err != nil {
		return false
	}
	raw, err := c.rdb.Get(ctx, key).Bytes()
	if err != nil {
		return false
	}
	return json.Unmarshal(raw, out) == nil
}

func (c *Cache) set(ctx context.Context, flow string, req, val any) error {
	if c == nil || c.rdb == nil || c.ttl <= 0 {
		return nil
	}
	key, err := cacheKey(flow, req)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(val)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, key, raw, c.ttl).Err()
}

func cacheKey(flow string, req any) (string, error) {
	raw, err := json.Marshal(req)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(raw)
	return "fliptok:ai:" + flow + ":" + hex.EncodeToString(sum[:]), nil
}
