// Package gate implements the allow/deny decision for generation requests:
// a free-tier usage counter combined with a paid-subscription check.
package gate

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/promptforge-ai/promptforge/internal/config"
	"github.com/promptforge-ai/promptforge/internal/usage"
)

// UsageStore is the counter surface the gate needs. Implemented by
// usage.Repository.
type UsageStore interface {
	GetCount(ctx context.Context, userID uuid.UUID) (int, error)
	Get(ctx context.Context, userID uuid.UUID) (*usage.Record, error)
	Increment(ctx context.Context, userID uuid.UUID) error
	ResetIfStale(ctx context.Context, userID uuid.UUID, cutoff time.Time) (bool, error)
}

// SubscriptionChecker reports paid entitlement. Implemented by
// billing.Service; fails closed internally, so it returns no error.
type SubscriptionChecker interface {
	IsActive(ctx context.Context, userID uuid.UUID) bool
}

// Decision is the outcome of an authorization check. Pro controls whether a
// later success consumes free-tier quota.
type Decision struct {
	Allowed bool
	Pro     bool
	Count   int
}

// Status is the quota view returned to clients. PeriodStart is nil until the
// user's first generation creates the counter row.
type Status struct {
	Count       int        `json:"count"`
	Limit       int        `json:"limit"`
	Remaining   int        `json:"remaining"`
	Pro         bool       `json:"pro"`
	PeriodStart *time.Time `json:"period_start,omitempty"`
}

// Service composes the usage counter and subscription check into a single
// gate. It has no state of its own; concurrent requests race benignly on the
// counter (the free limit is a soft bound, not a hard quota).
type Service struct {
	usage UsageStore
	subs  SubscriptionChecker
	cfg   config.GateConfig
}

// NewService creates a new gate Service.
func NewService(usage UsageStore, subs SubscriptionChecker, cfg config.GateConfig) *Service {
	return &Service{usage: usage, subs: subs, cfg: cfg}
}

// Authorize decides whether the user may run a generation. It must be called
// before any vendor request: denied calls never reach a vendor. A usage-store
// failure is a hard failure of the request; a subscription-store failure has
// already been converted to "not subscribed" by the checker.
func (s *Service) Authorize(ctx context.Context, userID uuid.UUID) (Decision, error) {
	if _, err := s.usage.ResetIfStale(ctx, userID, time.Now().Add(-s.cfg.UsagePeriod)); err != nil {
		slog.Warn("gate: usage period reset failed", "error", err, "user_id", userID)
	}

	count, err := s.usage.GetCount(ctx, userID)
	if err != nil {
		return Decision{}, fmt.Errorf("reading usage count: %w", err)
	}

	pro := s.subs.IsActive(ctx, userID)
	return Decision{
		Allowed: count < s.cfg.FreeLimit || pro,
		Pro:     pro,
		Count:   count,
	}, nil
}

// Record consumes one unit of free-tier quota after a verified success.
// Subscribers never consume quota. The increment is best effort: the
// generation result has already been produced, so a storage failure is logged
// rather than surfaced.
func (s *Service) Record(ctx context.Context, userID uuid.UUID, d Decision) {
	if d.Pro {
		return
	}
	if err := s.usage.Increment(ctx, userID); err != nil {
		slog.Error("gate: usage increment failed", "error", err, "user_id", userID)
	}
}

// Status returns the user's current quota view.
func (s *Service) Status(ctx context.Context, userID uuid.UUID) (Status, error) {
	if _, err := s.usage.ResetIfStale(ctx, userID, time.Now().Add(-s.cfg.UsagePeriod)); err != nil {
		slog.Warn("gate: usage period reset failed", "error", err, "user_id", userID)
	}

	rec, err := s.usage.Get(ctx, userID)
	if err != nil {
		return Status{}, fmt.Errorf("reading usage record: %w", err)
	}

	count := 0
	var periodStart *time.Time
	if rec != nil {
		count = rec.Count
		start := rec.PeriodStart
		periodStart = &start
	}

	remaining := s.cfg.FreeLimit - count
	if remaining < 0 {
		remaining = 0
	}
	return Status{
		Count:       count,
		Limit:       s.cfg.FreeLimit,
		Remaining:   remaining,
		Pro:         s.subs.IsActive(ctx, userID),
		PeriodStart: periodStart,
	}, nil
}

// FreeLimit exposes the configured limit for event payloads.
func (s *Service) FreeLimit() int {
	return s.cfg.FreeLimit
}
