package billing

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository handles subscriptions PostgreSQL operations.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new billing Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetByUserID returns the user's subscription row, or nil if none exists.
func (r *Repository) GetByUserID(ctx context.Context, userID uuid.UUID) (*Subscription, error) {
	var sub Subscription
	err := r.pool.QueryRow(ctx,
		`SELECT user_id, provider_customer_id, provider_subscription_id, price_id,
		        status, current_period_end, created_at, updated_at
		 FROM subscriptions WHERE user_id = $1`, userID,
	).Scan(&sub.UserID, &sub.ProviderCustomerID, &sub.ProviderSubscriptionID, &sub.PriceID,
		&sub.Status, &sub.CurrentPeriodEnd, &sub.CreatedAt, &sub.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fetching subscription: %w", err)
	}
	return &sub, nil
}

// Upsert writes the subscription row keyed by user. Renewal webhooks overwrite
// the period end and status in place.
func (r *Repository) Upsert(ctx context.Context, sub *Subscription) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO subscriptions
		   (user_id, provider_customer_id, provider_subscription_id, price_id, status, current_period_end)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (user_id) DO UPDATE
		 SET provider_customer_id = EXCLUDED.provider_customer_id,
		     provider_subscription_id = EXCLUDED.provider_subscription_id,
		     price_id = EXCLUDED.price_id,
		     status = EXCLUDED.status,
		     current_period_end = EXCLUDED.current_period_end,
		     updated_at = NOW()`,
		sub.UserID, sub.ProviderCustomerID, sub.ProviderSubscriptionID,
		sub.PriceID, sub.Status, sub.CurrentPeriodEnd)
	if err != nil {
		return fmt.Errorf("upserting subscription: %w", err)
	}
	return nil
}

// UpdateStatus marks the subscription with a provider-reported status, looked
// up by the provider's subscription ID.
func (r *Repository) UpdateStatus(ctx context.Context, providerSubID, status string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE subscriptions
		 SET status = $2, updated_at = NOW()
		 WHERE provider_subscription_id = $1`, providerSubID, status)
	if err != nil {
		return fmt.Errorf("updating subscription status: %w", err)
	}
	return nil
}
