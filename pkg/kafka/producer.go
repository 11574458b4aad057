package kafka

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/segmentio/kafka-go"
)

// AuditRecord is one append-only trail entry for a sensitive action:
// offer outcomes and step-up gated admin mutations.
type AuditRecord struct {
	Actor   string    `json:"actor"`
	Action  string    `json:"action"`
	Target  string    `json:"target"`
	Outcome string    `json:"outcome"`
	At      time.Time `json:"at"`
}

type Producer interface {
	Record(ctx context.Context, record AuditRecord) error
	Close() error
}

type kafkaProducer struct {
	writer *kafka.Writer
	topic  string
}

func NewProducer(brokers, topic string) Producer {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
	}

	log.Printf("Kafka audit producer configured for brokers: %s", brokers)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	conn, err := kafka.DialContext(ctx, "tcp", brokers)
	if err != nil {
		log.Printf("Kafka connection failed: %v", err)
		log.Printf("Using no-op audit producer instead")
		return &noopProducer{}
	}
	defer conn.Close()

	topicConfigs := []kafka.TopicConfig{
		{
			Topic:             topic,
			NumPartitions:     1,
			ReplicationFactor: 1,
		},
	}

	err = conn.CreateTopics(topicConfigs...)
	if err != nil {
		log.Printf("Could not create topic (might already exist): %v", err)
	} else {
		log.Printf("Created topic: %s", topic)
	}

	return &kafkaProducer{writer: writer, topic: topic}
}

func (p *kafkaProducer) Record(ctx context.Context, record AuditRecord) error {
	if record.At.IsZero() {
		record.At = time.Now().UTC()
	}

	value, err := json.Marshal(record)
	if err != nil {
		return err
	}

	msg := kafka.Message{
		Key:   []byte(record.Action),
		Value: value,
		Time:  record.At,
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		log.Printf("Failed to write audit record to Kafka: %v", err)
		return err
	}

	return nil
}

func (p *kafkaProducer) Close() error {
	return p.writer.Close()
}

// No-op producer keeps the write path alive when auditing is disabled or
// Kafka is unreachable.
type noopProducer struct{}

func NewNoopProducer() Producer {
	return &noopProducer{}
}

func (n *noopProducer) Record(ctx context.Context, record AuditRecord) error {
	return nil
}

func (n *noopProducer) Close() error {
	return nil
}
