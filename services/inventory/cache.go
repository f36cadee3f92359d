package inventory

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"rewardvault/pkg/config"
	"rewardvault/pkg/logger"
	"rewardvault/pkg/rediskey"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// StatsCache holds the last inventory snapshot. Failures are logged and
// treated as misses.
type StatsCache interface {
	Get(ctx context.Context) (*InventoryStats, bool)
	Set(ctx context.Context, st *InventoryStats)
}

type redisCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisCache(rdb *redis.Client, ttl time.Duration) StatsCache {
	return &redisCache{rdb: rdb, ttl: ttl}
}

func ProvideCache(rdb *redis.Client, cfg *config.Config) StatsCache {
	return NewRedisCache(rdb, cfg.Inventory.CacheTTL)
}

func (c *redisCache) Get(ctx context.Context) (*InventoryStats, bool) {
	b, err := c.rdb.Get(ctx, rediskey.InventoryStatsKey()).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			logger.FromContext(ctx).Warn("inventory cache read failed", zap.Error(err))
		}
		return nil, false
	}

	var st InventoryStats
	if err := json.Unmarshal(b, &st); err != nil {
		logger.FromContext(ctx).Warn("inventory cache entry unreadable", zap.Error(err))
		return nil, false
	}
	return &st, true
}

func (c *redisCache) Set(ctx context.Context, st *InventoryStats) {
	if c.ttl <= 0 {
		return
	}

	b, err := json.Marshal(st)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, rediskey.InventoryStatsKey(), b, c.ttl).Err(); err != nil {
		logger.FromContext(ctx).Warn("inventory cache write failed", zap.Error(err))
	}
}
