package stats

import (
	"time"

	"github.com/google/uuid"
)

// LifetimeStats aggregates a user's history across all challenge attempts.
// It is only mutated inside the failure transition, so the counters and the
// challenge table can never disagree about how many resets happened.
type LifetimeStats struct {
	UserID        uuid.UUID `json:"user_id" db:"user_id"`
	AttemptNumber int       `json:"attempt_number" db:"attempt_number"`
	TotalRestarts int       `json:"total_restarts" db:"total_restarts"`
	LongestStreak int       `json:"longest_streak" db:"longest_streak"`
	UpdatedAt     time.Time `json:"updated_at" db:"updated_at"`
}
