package notification

import (
	"context"
	"fmt"

	"gocloud.dev/pubsub"
	_ "gocloud.dev/pubsub/mempubsub"
)

// PubSubPublisher publishes messages to a gocloud.dev topic such as "mem://order.exchange".
// Routing information travels in the message metadata.
type PubSubPublisher struct {
	topic *pubsub.Topic
}

// NewPubSubPublisher opens the topic at url.
func NewPubSubPublisher(ctx context.Context, url string) (*PubSubPublisher, error) {
	topic, err := pubsub.OpenTopic(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to open topic %s: %w", url, err)
	}
	return NewPubSubPublisherFromTopic(topic), nil
}

// NewPubSubPublisherFromTopic wraps an already opened topic.
func NewPubSubPublisherFromTopic(topic *pubsub.Topic) *PubSubPublisher {
	return &PubSubPublisher{topic: topic}
}

// Publish sends msg to the topic.
func (p *PubSubPublisher) Publish(ctx context.Context, msg Message) error {
	err := p.topic.Send(ctx, &pubsub.Message{
		Body:     msg.Body,
		Metadata: msg.metadata(),
	})
	if err != nil {
		return fmt.Errorf("failed to publish to %s: %w", msg.Exchange, err)
	}
	return nil
}

// Close shuts the topic down.
func (p *PubSubPublisher) Close(ctx context.Context) error {
	return p.topic.Shutdown(ctx)
}
