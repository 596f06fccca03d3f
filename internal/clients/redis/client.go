package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/smartinventory-backend/internal/pkg/logger"
	"github.com/yungbote/smartinventory-backend/internal/platform/envutil"
)

// Enabled reports whether REDIS_ADDR is configured.
func Enabled() bool {
	return envutil.String("REDIS_ADDR", "") != ""
}

// NewClient dials REDIS_ADDR and pings it once.
func NewClient(log *logger.Logger) (*goredis.Client, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	addr := envutil.String("REDIS_ADDR", "")
	if addr == "" {
		return nil, fmt.Errorf("missing REDIS_ADDR")
	}
	rdb := goredis.NewClient(&goredis.Options{
		Addr:         addr,
		Password:     envutil.String("REDIS_PASSWORD", ""),
		DB:           envutil.Int("REDIS_DB", 0),
		DialTimeout:  5 * time.Second,
		ReadTimeout:  envutil.Duration("REDIS_READ_TIMEOUT", 2*time.Second),
		WriteTimeout: envutil.Duration("REDIS_WRITE_TIMEOUT", 2*time.Second),
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	log.Info("Connected to redis", "addr", addr, "db", envutil.Int("REDIS_DB", 0))
	return rdb, nil
}
