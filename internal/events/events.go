package events

import (
	"time"

	"github.com/google/uuid"
)

// FetchTimeout is the default timeout for batch fetching messages from consumers.
const FetchTimeout = 2 * time.Second

// Stream names.
const (
	StreamEvents = "FORGE_EVENTS"
)

// Subject constants.
const (
	SubjectGeneration   = "forge.events.generation"
	SubjectQuota        = "forge.events.quota"
	SubjectSubscription = "forge.events.subscription"
)

// GenerationEvent is published after every vendor call, success or failure.
type GenerationEvent struct {
	UserID    uuid.UUID `json:"user_id"`
	Modality  string    `json:"modality"`
	Vendor    string    `json:"vendor"`
	Status    string    `json:"status"` // succeeded, vendor_failed
	Pro       bool      `json:"pro"`
	Timestamp time.Time `json:"timestamp"`
}

// QuotaEvent is published when the access gate denies a request.
type QuotaEvent struct {
	UserID    uuid.UUID `json:"user_id"`
	Modality  string    `json:"modality"`
	Count     int       `json:"count"`
	Limit     int       `json:"limit"`
	Timestamp time.Time `json:"timestamp"`
}

// SubscriptionEvent is published when a billing webhook changes entitlement.
type SubscriptionEvent struct {
	UserID         uuid.UUID `json:"user_id"`
	SubscriptionID string    `json:"subscription_id"`
	Status         string    `json:"status"`
	EventType      string    `json:"event_type"`
	Timestamp      time.Time `json:"timestamp"`
}
