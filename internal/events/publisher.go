package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go/jetstream"
)

// Publisher provides typed methods for publishing events to NATS JetStream.
type Publisher struct {
	js jetstream.JetStream
}

// NewPublisher creates a new Publisher.
func NewPublisher(js jetstream.JetStream) *Publisher {
	return &Publisher{js: js}
}

// PublishGeneration publishes a generation outcome event.
func (p *Publisher) PublishGeneration(ctx context.Context, event GenerationEvent) error {
	return p.publish(ctx, SubjectGeneration, event)
}

// PublishQuotaDenied publishes a trial-exhaustion denial event.
func (p *Publisher) PublishQuotaDenied(ctx context.Context, event QuotaEvent) error {
	return p.publish(ctx, SubjectQuota, event)
}

// PublishSubscription publishes a subscription lifecycle event.
func (p *Publisher) PublishSubscription(ctx context.Context, event SubscriptionEvent) error {
	return p.publish(ctx, SubjectSubscription, event)
}

func (p *Publisher) publish(ctx context.Context, subject string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshaling event for %s: %w", subject, err)
	}
	if _, err = p.js.Publish(ctx, subject, payload); err != nil {
		return fmt.Errorf("publishing to %s: %w", subject, err)
	}
	return nil
}
