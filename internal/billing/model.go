package billing

import (
	"time"

	"github.com/google/uuid"
)

// Subscription status values as reported by the billing provider.
const (
	StatusActive   = "active"
	StatusTrialing = "trialing"
	StatusPastDue  = "past_due"
	StatusCanceled = "canceled"
)

// Subscription matches the subscriptions table schema. One row per user,
// written only by the webhook path; the generation path reads it.
type Subscription struct {
	UserID                 uuid.UUID `json:"user_id"`
	ProviderCustomerID     string    `json:"provider_customer_id"`
	ProviderSubscriptionID string    `json:"provider_subscription_id"`
	PriceID                string    `json:"price_id"`
	Status                 string    `json:"status"`
	CurrentPeriodEnd       time.Time `json:"current_period_end"`
	CreatedAt              time.Time `json:"created_at"`
	UpdatedAt              time.Time `json:"updated_at"`
}

// ActiveAt reports whether the subscription entitles the user at the given
// time, tolerating webhook/clock skew up to grace.
func (s *Subscription) ActiveAt(now time.Time, grace time.Duration) bool {
	if s == nil {
		return false
	}
	if s.Status != StatusActive && s.Status != StatusTrialing {
		return false
	}
	return s.CurrentPeriodEnd.Add(grace).After(now)
}
