package billing

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/promptforge-ai/promptforge/internal/config"
)

const proCacheKeyPrefix = "billing:pro:"

// SubscriptionStore is the persistence surface the service needs.
type SubscriptionStore interface {
	GetByUserID(ctx context.Context, userID uuid.UUID) (*Subscription, error)
	Upsert(ctx context.Context, sub *Subscription) error
	UpdateStatus(ctx context.Context, providerSubID, status string) error
}

// Service answers subscription entitlement questions and applies webhook
// updates. Entitlement reads are cached briefly in Redis; the cache is
// invalidated whenever a webhook touches the user's row.
type Service struct {
	store SubscriptionStore
	cache redis.Cmdable
	cfg   config.GateConfig
}

// NewService creates a new billing Service. cache may be nil, in which case
// every IsActive call hits PostgreSQL.
func NewService(store SubscriptionStore, cache redis.Cmdable, cfg config.GateConfig) *Service {
	return &Service{store: store, cache: cache, cfg: cfg}
}

// IsActive reports whether the user holds an unexpired paid entitlement.
// Storage or cache failures fail closed: an unverifiable subscription does
// not grant unmetered usage.
func (s *Service) IsActive(ctx context.Context, userID uuid.UUID) bool {
	if s.cache != nil {
		val, err := s.cache.Get(ctx, proCacheKeyPrefix+userID.String()).Result()
		if err == nil {
			return val == "1"
		}
		if err != redis.Nil {
			slog.Warn("billing: pro cache read failed", "error", err)
		}
	}

	sub, err := s.store.GetByUserID(ctx, userID)
	if err != nil {
		slog.Warn("billing: subscription lookup failed, treating as not subscribed", "error", err, "user_id", userID)
		return false
	}

	active := sub.ActiveAt(time.Now(), s.cfg.GracePeriod)
	s.cacheActive(ctx, userID, active)
	return active
}

// Get returns the user's subscription row, or nil if none exists.
func (s *Service) Get(ctx context.Context, userID uuid.UUID) (*Subscription, error) {
	return s.store.GetByUserID(ctx, userID)
}

// ApplySubscription upserts the subscription from a provider webhook and drops
// the cached entitlement so the next gate check sees the new state.
func (s *Service) ApplySubscription(ctx context.Context, sub *Subscription) error {
	if err := s.store.Upsert(ctx, sub); err != nil {
		return fmt.Errorf("applying subscription webhook: %w", err)
	}
	s.invalidate(ctx, sub.UserID)
	return nil
}

// ApplyStatus records a status-only change (e.g. cancellation) reported by the
// provider for an existing subscription.
func (s *Service) ApplyStatus(ctx context.Context, userID uuid.UUID, providerSubID, status string) error {
	if err := s.store.UpdateStatus(ctx, providerSubID, status); err != nil {
		return fmt.Errorf("applying status webhook: %w", err)
	}
	s.invalidate(ctx, userID)
	return nil
}

func (s *Service) cacheActive(ctx context.Context, userID uuid.UUID, active bool) {
	if s.cache == nil || s.cfg.ProCacheTTL <= 0 {
		return
	}
	val := "0"
	if active {
		val = "1"
	}
	if err := s.cache.Set(ctx, proCacheKeyPrefix+userID.String(), val, s.cfg.ProCacheTTL).Err(); err != nil {
		slog.Warn("billing: pro cache write failed", "error", err)
	}
}

func (s *Service) invalidate(ctx context.Context, userID uuid.UUID) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, proCacheKeyPrefix+userID.String()).Err(); err != nil {
		slog.Warn("billing: pro cache invalidation failed", "error", err, "user_id", userID)
	}
}
