// v1
// internal/mirror/kafka.go
package mirror

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/nrg-champ/telemetry-stream/internal/telemetry"
)

const (
	kafkaBatchTimeout   = 10 * time.Millisecond
	kafkaPublishTimeout = 2 * time.Second
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher copies every sample to a Kafka topic keyed by run ID.
type KafkaPublisher struct {
	w       messageWriter
	topic   string
	runID   string
	timeout time.Duration
	log     *slog.Logger
}

func newKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: kafkaBatchTimeout,
	}
}

func NewKafkaPublisher(brokers []string, topic, runID string, log *slog.Logger) *KafkaPublisher {
	log.Info("kafka mirror ready", "topic", topic, "brokers", brokers)
	return &KafkaPublisher{
		w:       newKafkaWriter(brokers, topic),
		topic:   topic,
		runID:   runID,
		timeout: kafkaPublishTimeout,
		log:     log,
	}
}

func (k *KafkaPublisher) Name() string { return "kafka" }

func (k *KafkaPublisher) Publish(ctx context.Context, s telemetry.Sample) error {
	b, err := encode(k.runID, s)
	if err != nil {
		return fmt.Errorf("marshal sample: %w", err)
	}
	msg := kafka.Message{Key: []byte(k.runID), Value: b, Time: s.Time()}

	timeout := k.timeout
	if timeout <= 0 {
		timeout = kafkaPublishTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := k.w.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("kafka write to %s: %w", k.topic, err)
	}
	k.log.Debug("published", "topic", k.topic, "ts", s.Timestamp)
	return nil
}

func (k *KafkaPublisher) Close() error {
	return k.w.Close()
}
