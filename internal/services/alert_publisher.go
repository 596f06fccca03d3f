package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/yungbote/smartinventory-backend/internal/clients/kafka"
	types "github.com/yungbote/smartinventory-backend/internal/domain"
	"github.com/yungbote/smartinventory-backend/internal/pkg/backoff"
	"github.com/yungbote/smartinventory-backend/internal/pkg/ctxutil"
	"github.com/yungbote/smartinventory-backend/internal/pkg/logger"
)

// AlertPublisher fans newly created alerts out to downstream consumers.
type AlertPublisher interface {
	PublishAlerts(ctx context.Context, alerts []*types.Alert) error
}

type NopAlertPublisher struct{}

func (NopAlertPublisher) PublishAlerts(context.Context, []*types.Alert) error { return nil }

// MessageProducer is the slice of *kafka.Producer the publisher needs.
type MessageProducer interface {
	Publish(ctx context.Context, topic string, messages ...kafka.Message) error
}

type AlertEvent struct {
	Event string       `json:"event"`
	Alert *types.Alert `json:"alert"`
}

type kafkaAlertPublisher struct {
	log      *logger.Logger
	producer MessageProducer
	topic    string
	attempts int
	backoff  time.Duration
}

func NewKafkaAlertPublisher(baseLog *logger.Logger, producer MessageProducer, topic string) AlertPublisher {
	if topic == "" {
		topic = "inventory.alerts"
	}
	return &kafkaAlertPublisher{
		log:      baseLog.With("service", "KafkaAlertPublisher"),
		producer: producer,
		topic:    topic,
		attempts: 3,
		backoff:  500 * time.Millisecond,
	}
}

func (p *kafkaAlertPublisher) PublishAlerts(ctx context.Context, alerts []*types.Alert) error {
	if len(alerts) == 0 {
		return nil
	}
	headers := map[string]string{"content-type": "application/json"}
	if rid := ctxutil.RequestID(ctx); rid != "" {
		headers["request_id"] = rid
	}
	msgs := make([]kafka.Message, 0, len(alerts))
	for _, a := range alerts {
		if a == nil {
			continue
		}
		raw, err := json.Marshal(AlertEvent{Event: "alert.created", Alert: a})
		if err != nil {
			return fmt.Errorf("encode alert %s: %w", a.ID, err)
		}
		// Keyed by series so one store/product stays ordered within a partition.
		msgs = append(msgs, kafka.Message{Key: []byte(a.StoreID + "/" + a.SKU), Value: raw, Headers: headers})
	}

	return backoff.Policy{
		Attempts: p.attempts,
		Base:     p.backoff,
		OnRetry: func(attempt int, wait time.Duration, err error) {
			p.log.Warn("Alert publish retry", "attempt", attempt, "wait", wait, "error", err)
		},
	}.Do(ctx, func(ctx context.Context) error {
		return p.producer.Publish(ctx, p.topic, msgs...)
	})
}
