package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/smartinventory-backend/internal/pkg/logger"
	"github.com/yungbote/smartinventory-backend/internal/platform/envutil"
)

// ModelEvent tells other processes that the active model changed.
type ModelEvent struct {
	Kind    string    `json:"kind"`
	ModelID uuid.UUID `json:"model_id"`
}

const (
	ModelActivated   = "activated"
	ModelDeactivated = "deactivated"
)

type ModelBus interface {
	Publish(ctx context.Context, ev ModelEvent) error
	StartForwarder(ctx context.Context, onEvent func(ev ModelEvent)) error
}

type modelBus struct {
	log     *logger.Logger
	rdb     goredis.UniversalClient
	channel string
}

func NewModelBus(log *logger.Logger, rdb goredis.UniversalClient) (ModelBus, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if rdb == nil {
		return nil, fmt.Errorf("redis client required")
	}
	return &modelBus{
		log:     log.With("service", "RedisModelBus"),
		rdb:     rdb,
		channel: envutil.String("REDIS_MODEL_CHANNEL", "smartinventory:models"),
	}, nil
}

func (b *modelBus) Publish(ctx context.Context, ev ModelEvent) error {
	raw, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return b.rdb.Publish(ctx, b.channel, raw).Err()
}

func (b *modelBus) StartForwarder(ctx context.Context, onEvent func(ev ModelEvent)) error {
	if onEvent == nil {
		return fmt.Errorf("onEvent callback required")
	}
	sub := b.rdb.Subscribe(ctx, b.channel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("redis subscribe: %w", err)
	}

	go func() {
		defer sub.Close()
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-ch:
				if !ok || m == nil {
					return
				}
				var ev ModelEvent
				if err := json.Unmarshal([]byte(m.Payload), &ev); err != nil {
					b.log.Warn("bad model event payload", "error", err)
					continue
				}
				onEvent(ev)
			}
		}
	}()
	return nil
}
