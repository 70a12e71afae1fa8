package notification

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/twmb/franz-go/pkg/kgo"
)

// producer is the part of *kgo.Client used by KafkaPublisher.
type producer interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
	Close()
}

// KafkaPublisher publishes messages to Kafka-compatible brokers. The exchange is the
// topic and the message key selects the partition.
type KafkaPublisher struct {
	client producer
	logger *slog.Logger
}

// NewKafkaPublisher creates a KafkaPublisher connected to the seed brokers.
func NewKafkaPublisher(brokers []string, logger *slog.Logger) (*KafkaPublisher, error) {
	if len(brokers) == 0 {
		return nil, errors.New("at least one kafka broker is required")
	}

	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.AllowAutoTopicCreation(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka client: %w", err)
	}

	return newKafkaPublisher(client, logger), nil
}

func newKafkaPublisher(client producer, logger *slog.Logger) *KafkaPublisher {
	return &KafkaPublisher{
		client: client,
		logger: logger.With(slog.String("component", "kafka-publisher")),
	}
}

// Publish sends msg synchronously.
func (p *KafkaPublisher) Publish(ctx context.Context, msg Message) error {
	if msg.Exchange == "" {
		return errors.New("message exchange is required")
	}

	metadata := msg.metadata()
	headers := make([]kgo.RecordHeader, 0, len(metadata))
	for _, k := range sortedKeys(metadata) {
		headers = append(headers, kgo.RecordHeader{Key: k, Value: []byte(metadata[k])})
	}

	record := &kgo.Record{
		Topic:   msg.Exchange,
		Key:     []byte(msg.Key),
		Value:   msg.Body,
		Headers: headers,
	}

	if err := p.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", msg.Exchange, err)
	}

	p.logger.DebugContext(ctx, "notification published",
		slog.String("topic", msg.Exchange),
		slog.String("routing_key", msg.RoutingKey),
		slog.String("key", msg.Key),
	)
	return nil
}

// Close flushes and closes the client.
func (p *KafkaPublisher) Close(context.Context) error {
	p.client.Close()
	return nil
}
