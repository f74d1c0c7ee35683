package usage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository handles user_usage PostgreSQL operations.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new usage Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetCount returns the user's current generation count. A missing row is not
// an error: first use reads as zero.
func (r *Repository) GetCount(ctx context.Context, userID uuid.UUID) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx,
		`SELECT count FROM user_usage WHERE user_id = $1`, userID,
	).Scan(&count)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("fetching usage count: %w", err)
	}
	return count, nil
}

// Increment atomically creates-or-increments the user's counter. The upsert
// keeps concurrent requests from losing updates.
func (r *Repository) Increment(ctx context.Context, userID uuid.UUID) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO user_usage (user_id, count) VALUES ($1, 1)
		 ON CONFLICT (user_id) DO UPDATE
		 SET count = user_usage.count + 1,
		     updated_at = NOW()`, userID)
	if err != nil {
		return fmt.Errorf("incrementing usage count: %w", err)
	}
	return nil
}

// ResetIfStale zeroes the counter when the current period started before the
// given cutoff. Returns true if a reset was performed.
func (r *Repository) ResetIfStale(ctx context.Context, userID uuid.UUID, cutoff time.Time) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE user_usage
		 SET count = 0,
		     period_start = NOW(),
		     updated_at = NOW()
		 WHERE user_id = $1 AND period_start < $2`, userID, cutoff)
	if err != nil {
		return false, fmt.Errorf("resetting usage period: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// Get returns the full usage row, or nil if none exists.
func (r *Repository) Get(ctx context.Context, userID uuid.UUID) (*Record, error) {
	var rec Record
	err := r.pool.QueryRow(ctx,
		`SELECT user_id, count, period_start, updated_at
		 FROM user_usage WHERE user_id = $1`, userID,
	).Scan(&rec.UserID, &rec.Count, &rec.PeriodStart, &rec.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fetching usage record: %w", err)
	}
	return &rec, nil
}
