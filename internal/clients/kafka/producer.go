package kafka

import (
	"context"
	"crypto/tls"
	"fmt"
	"sync"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/segmentio/kafka-go/sasl"
	"github.com/segmentio/kafka-go/sasl/plain"
	"github.com/segmentio/kafka-go/sasl/scram"

	"github.com/yungbote/smartinventory-backend/internal/platform/envutil"
)

type Config struct {
	Brokers       []string
	TLS           bool
	SASLMechanism string // PLAIN, SCRAM-SHA-256 or SCRAM-SHA-512; empty disables SASL
	SASLUsername  string
	SASLPassword  string
	WriteTimeout  time.Duration
}

// ConfigFromEnv reads KAFKA_*; Brokers is empty when kafka is not configured.
func ConfigFromEnv() Config {
	return Config{
		Brokers:       envutil.List("KAFKA_BROKERS"),
		TLS:           envutil.Bool("KAFKA_TLS", false),
		SASLMechanism: envutil.String("KAFKA_SASL_MECHANISM", ""),
		SASLUsername:  envutil.String("KAFKA_SASL_USERNAME", ""),
		SASLPassword:  envutil.String("KAFKA_SASL_PASSWORD", ""),
		WriteTimeout:  envutil.Duration("KAFKA_WRITE_TIMEOUT", 10*time.Second),
	}
}

type Message struct {
	Key     []byte
	Value   []byte
	Headers map[string]string
}

// Producer lazily creates one writer per topic.
type Producer struct {
	mu      sync.Mutex
	writers map[string]*kafkago.Writer
	cfg     Config
}

func NewProducer(cfg Config) (*Producer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka: no brokers configured")
	}
	if _, err := mechanism(cfg); err != nil {
		return nil, err
	}
	return &Producer{writers: make(map[string]*kafkago.Writer), cfg: cfg}, nil
}

func (p *Producer) Publish(ctx context.Context, topic string, messages ...Message) error {
	if len(messages) == 0 {
		return nil
	}
	w := p.writer(topic)
	out := make([]kafkago.Message, 0, len(messages))
	for _, msg := range messages {
		km := kafkago.Message{Key: msg.Key, Value: msg.Value}
		for k, v := range msg.Headers {
			km.Headers = append(km.Headers, kafkago.Header{Key: k, Value: []byte(v)})
		}
		out = append(out, km)
	}
	if err := w.WriteMessages(ctx, out...); err != nil {
		return fmt.Errorf("kafka publish to %s: %w", topic, err)
	}
	return nil
}

func (p *Producer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	var firstErr error
	for topic, w := range p.writers {
		if err := w.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("closing writer for topic %s: %w", topic, err)
		}
	}
	p.writers = make(map[string]*kafkago.Writer)
	return firstErr
}

func (p *Producer) writer(topic string) *kafkago.Writer {
	p.mu.Lock()
	defer p.mu.Unlock()
	if w, ok := p.writers[topic]; ok {
		return w
	}
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(p.cfg.Brokers...),
		Topic:        topic,
		Balancer:     &kafkago.Hash{},
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: kafkago.RequireAll,
		WriteTimeout: p.cfg.WriteTimeout,
	}
	if p.cfg.TLS || p.cfg.SASLMechanism != "" {
		tr := &kafkago.Transport{}
		if p.cfg.TLS {
			tr.TLS = &tls.Config{MinVersion: tls.VersionTLS12}
		}
		if m, _ := mechanism(p.cfg); m != nil {
			tr.SASL = m
		}
		w.Transport = tr
	}
	p.writers[topic] = w
	return w
}

func mechanism(cfg Config) (sasl.Mechanism, error) {
	switch cfg.SASLMechanism {
	case "":
		return nil, nil
	case "PLAIN":
		return plain.Mechanism{Username: cfg.SASLUsername, Password: cfg.SASLPassword}, nil
	case "SCRAM-SHA-256":
		return scram.Mechanism(scram.SHA256, cfg.SASLUsername, cfg.SASLPassword)
	case "SCRAM-SHA-512":
		return scram.Mechanism(scram.SHA512, cfg.SASLUsername, cfg.SASLPassword)
	default:
		return nil, fmt.Errorf("kafka: unsupported SASL mechanism %q", cfg.SASLMechanism)
	}
}
