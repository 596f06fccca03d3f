package kafka

import "testing"

func TestNewProducerRequiresBrokers(t *testing.T) {
	if _, err := NewProducer(Config{}); err == nil {
		t.Fatal("expected error without brokers")
	}
	if _, err := NewProducer(Config{Brokers: []string{"kafka:9092"}, SASLMechanism: "GSSAPI"}); err == nil {
		t.Fatal("expected error for unsupported SASL mechanism")
	}
}

func TestWriterPerTopic(t *testing.T) {
	p, err := NewProducer(Config{Brokers: []string{"localhost:9092", "localhost:9093"}})
	if err != nil {
		t.Fatalf("NewProducer: %v", err)
	}
	w1 := p.writer("inventory.alerts")
	w2 := p.writer("inventory.alerts")
	if w1 != w2 {
		t.Error("expected same writer instance for same topic")
	}
	if w3 := p.writer("other"); w3 == w1 {
		t.Error("expected different writer instance for different topic")
	}
	if w1.Transport != nil {
		t.Error("expected default transport without TLS or SASL")
	}
	if err := p.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if len(p.writers) != 0 {
		t.Fatalf("expected writers cleared on close, got %d", len(p.writers))
	}
}

func TestSASLWriterTransport(t *testing.T) {
	p, err := NewProducer(Config{Brokers: []string{"kafka:9092"}, SASLMechanism: "PLAIN", SASLUsername: "u", SASLPassword: "p"})
	if err != nil {
		t.Fatalf("NewProducer: %v", err)
	}
	if p.writer("t").Transport == nil {
		t.Fatal("expected SASL transport")
	}
}
