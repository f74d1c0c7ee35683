package usage

import (
	"time"

	"github.com/google/uuid"
)

// Record matches the user_usage table schema. One row per user, created on
// first generation attempt and never deleted.
type Record struct {
	UserID      uuid.UUID `json:"user_id"`
	Count       int       `json:"count"`
	PeriodStart time.Time `json:"period_start"`
	UpdatedAt   time.Time `json:"updated_at"`
}
