package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/smartinventory-backend/internal/pkg/logger"
)

const predictionKeyPrefix = "forecast:"

// PredictionCacheKey is forecast:<model_id>:<store>:<sku>:<date>.
func PredictionCacheKey(modelID uuid.UUID, storeID, sku string, date civil.Date) string {
	return fmt.Sprintf("%s%s:%s:%s:%s", predictionKeyPrefix, modelID, storeID, sku, date)
}

// PredictionCache holds point forecasts. Lookups never fail: a backend error
// is a miss.
type PredictionCache interface {
	Get(ctx context.Context, key string) (*PredictionResult, bool)
	Set(ctx context.Context, key string, v *PredictionResult)
	// Purge drops every cached forecast.
	Purge(ctx context.Context)
	Backend() string
}

type memoryPredictionCache struct {
	lru *expirable.LRU[string, PredictionResult]
}

// NewMemoryPredictionCache keeps at most maxEntries forecasts, each for ttl.
func NewMemoryPredictionCache(ttl time.Duration, maxEntries int) PredictionCache {
	if ttl <= 0 {
		ttl = time.Hour
	}
	if maxEntries <= 0 {
		maxEntries = 100_000
	}
	return &memoryPredictionCache{lru: expirable.NewLRU[string, PredictionResult](maxEntries, nil, ttl)}
}

func (c *memoryPredictionCache) Backend() string { return "memory" }

func (c *memoryPredictionCache) Get(_ context.Context, key string) (*PredictionResult, bool) {
	v, ok := c.lru.Get(key)
	if !ok {
		return nil, false
	}
	return &v, true
}

func (c *memoryPredictionCache) Set(_ context.Context, key string, v *PredictionResult) {
	if v == nil {
		return
	}
	c.lru.Add(key, *v)
}

func (c *memoryPredictionCache) Purge(context.Context) { c.lru.Purge() }

type redisPredictionCache struct {
	log *logger.Logger
	rdb goredis.UniversalClient
	ttl time.Duration
}

func NewRedisPredictionCache(baseLog *logger.Logger, rdb goredis.UniversalClient, ttl time.Duration) PredictionCache {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &redisPredictionCache{
		log: baseLog.With("service", "RedisPredictionCache"),
		rdb: rdb,
		ttl: ttl,
	}
}

func (c *redisPredictionCache) Backend() string { return "redis" }

func (c *redisPredictionCache) Get(ctx context.Context, key string) (*PredictionResult, bool) {
	raw, err := c.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, goredis.Nil) {
			c.log.Warn("Cache get failed", "key", key, "error", err)
		}
		return nil, false
	}
	var out PredictionResult
	if err := json.Unmarshal(raw, &out); err != nil {
		c.log.Warn("Cache entry undecodable", "key", key, "error", err)
		return nil, false
	}
	return &out, true
}

func (c *redisPredictionCache) Set(ctx context.Context, key string, v *PredictionResult) {
	if v == nil {
		return
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		c.log.Warn("Cache set failed", "key", key, "error", err)
	}
}

func (c *redisPredictionCache) Purge(ctx context.Context) {
	iter := c.rdb.Scan(ctx, 0, predictionKeyPrefix+"*", 500).Iterator()
	batch := make([]string, 0, 500)
	flush := func() {
		if len(batch) == 0 {
			return
		}
		if err := c.rdb.Del(ctx, batch...).Err(); err != nil {
			c.log.Warn("Cache purge failed", "error", err)
		}
		batch = batch[:0]
	}
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == cap(batch) {
			flush()
		}
	}
	flush()
	if err := iter.Err(); err != nil {
		c.log.Warn("Cache scan failed", "error", err)
	}
}
