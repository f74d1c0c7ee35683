package audit

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/promptforge-ai/promptforge/internal/events"
)

// Consumer listens on the event stream and persists entries to the database.
type Consumer struct {
	repo        *Repository
	consumerMgr *events.ConsumerManager
}

// NewConsumer creates a new audit event Consumer.
func NewConsumer(repo *Repository, consumerMgr *events.ConsumerManager) *Consumer {
	return &Consumer{
		repo:        repo,
		consumerMgr: consumerMgr,
	}
}

// Start begins the consume loop. Blocks until ctx is cancelled.
func (c *Consumer) Start(ctx context.Context) error {
	consumer, err := c.consumerMgr.EnsureConsumer(ctx, events.StreamEvents, "audit-persister", "forge.events.>")
	if err != nil {
		return err
	}

	slog.Info("audit consumer started", "consumer", "audit-persister")

	for {
		msgs, err := consumer.Fetch(10, jetstream.FetchMaxWait(events.FetchTimeout))
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			slog.Debug("audit consumer: fetching events", "error", err)
			continue
		}

		for msg := range msgs.Messages() {
			c.handleEvent(ctx, msg)
		}

		if ctx.Err() != nil {
			return nil
		}
	}
}

func (c *Consumer) handleEvent(ctx context.Context, msg jetstream.Msg) {
	entry, err := entryFromMessage(msg.Subject(), msg.Data())
	if err != nil {
		slog.Error("audit consumer: decoding event", "error", err, "subject", msg.Subject())
		_ = msg.Nak()
		return
	}

	if err := c.repo.Insert(ctx, entry); err != nil {
		slog.Error("audit consumer: persisting entry", "error", err, "event_type", entry.EventType)
		_ = msg.Nak()
		return
	}

	_ = msg.Ack()

	slog.Debug("audit consumer: persisted event",
		"event_type", entry.EventType,
		"user_id", entry.UserID,
	)
}

func entryFromMessage(subject string, data []byte) (*Entry, error) {
	switch subject {
	case events.SubjectGeneration:
		var ev events.GenerationEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			return nil, err
		}
		return newEntry(ev.UserID, "generation."+ev.Status, ev.Modality, data, ev.Timestamp), nil
	case events.SubjectQuota:
		var ev events.QuotaEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			return nil, err
		}
		return newEntry(ev.UserID, "quota.denied", ev.Modality, data, ev.Timestamp), nil
	case events.SubjectSubscription:
		var ev events.SubscriptionEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			return nil, err
		}
		return newEntry(ev.UserID, "subscription."+ev.EventType, "", data, ev.Timestamp), nil
	default:
		var base struct {
			UserID    uuid.UUID `json:"user_id"`
			Timestamp time.Time `json:"timestamp"`
		}
		if err := json.Unmarshal(data, &base); err != nil {
			return nil, err
		}
		return newEntry(base.UserID, subject, "", data, base.Timestamp), nil
	}
}

func newEntry(userID uuid.UUID, eventType, modality string, details []byte, at time.Time) *Entry {
	if at.IsZero() {
		at = time.Now().UTC()
	}
	return &Entry{
		ID:        uuid.New(),
		UserID:    userID,
		EventType: eventType,
		Modality:  modality,
		Details:   details,
		CreatedAt: at,
	}
}
