// Package notification delivers domain notifications to a message broker.
package notification

import (
	"context"
	"log/slog"
	"maps"
	"sort"
)

// Message is a broker-neutral notification. Exchange names the topic, RoutingKey selects
// the binding, and Key keeps messages of one aggregate on the same partition.
type Message struct {
	Exchange   string
	RoutingKey string
	Key        string
	Body       []byte
	Headers    map[string]string
}

// Publisher sends messages to a broker.
type Publisher interface {
	Publish(ctx context.Context, msg Message) error
	Close(ctx context.Context) error
}

// metadata returns the message headers plus routing information.
func (m Message) metadata() map[string]string {
	metadata := make(map[string]string, len(m.Headers)+3)
	maps.Copy(metadata, m.Headers)
	metadata["exchange"] = m.Exchange
	metadata["routing_key"] = m.RoutingKey
	if m.Key != "" {
		metadata["key"] = m.Key
	}
	return metadata
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// LogPublisher writes messages to the logger instead of a broker.
type LogPublisher struct {
	logger *slog.Logger
}

// NewLogPublisher creates a LogPublisher.
func NewLogPublisher(logger *slog.Logger) *LogPublisher {
	return &LogPublisher{logger: logger.With(slog.String("component", "log-publisher"))}
}

// Publish logs msg at info level.
func (p *LogPublisher) Publish(ctx context.Context, msg Message) error {
	p.logger.InfoContext(ctx, "notification published",
		slog.String("exchange", msg.Exchange),
		slog.String("routing_key", msg.RoutingKey),
		slog.String("key", msg.Key),
		slog.String("body", string(msg.Body)),
	)
	return nil
}

// Close is a no-op.
func (p *LogPublisher) Close(context.Context) error {
	return nil
}
