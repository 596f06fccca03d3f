package app

import (
	"context"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/smartinventory-backend/internal/clients/gcp"
	"github.com/yungbote/smartinventory-backend/internal/clients/kafka"
	redisbus "github.com/yungbote/smartinventory-backend/internal/clients/redis"
	"github.com/yungbote/smartinventory-backend/internal/pkg/logger"
)

// Clients are the optional external connections. Each field is nil when its
// backend is not configured.
type Clients struct {
	Redis    *goredis.Client
	ModelBus redisbus.ModelBus
	Kafka    *kafka.Producer
	Bucket   gcp.BucketService
}

func wireClients(ctx context.Context, log *logger.Logger, cfg Config) (Clients, error) {
	log.Info("Wiring clients...")
	var c Clients

	// Redis
	if redisbus.Enabled() {
		rdb, err := redisbus.NewClient(log)
		if err != nil {
			return Clients{}, fmt.Errorf("init redis: %w", err)
		}
		bus, err := redisbus.NewModelBus(log, rdb)
		if err != nil {
			_ = rdb.Close()
			return Clients{}, fmt.Errorf("init redis model bus: %w", err)
		}
		c.Redis, c.ModelBus = rdb, bus
	}

	// Kafka
	if kcfg := kafka.ConfigFromEnv(); len(kcfg.Brokers) > 0 {
		p, err := kafka.NewProducer(kcfg)
		if err != nil {
			c.Close()
			return Clients{}, fmt.Errorf("init kafka producer: %w", err)
		}
		c.Kafka = p
		log.Info("Kafka alert publishing enabled", "brokers", kcfg.Brokers, "topic", cfg.AlertTopic)
	}

	// Gcs
	if cfg.GCSBucket != "" {
		bucket, err := gcp.NewBucketService(ctx, log, cfg.GCSBucket, 0)
		if err != nil {
			c.Close()
			return Clients{}, &StorageBootstrapError{Backend: cfg.ArtifactBackend, Bucket: cfg.GCSBucket, Cause: err}
		}
		c.Bucket = bucket
	}
	return c, nil
}

func (c *Clients) Close() {
	if c == nil {
		return
	}
	if c.Kafka != nil {
		_ = c.Kafka.Close()
	}
	if c.Redis != nil {
		_ = c.Redis.Close()
	}
}
