package challenge

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

type Visibility string

const (
	VisibilityPrivate Visibility = "private"
	VisibilityFriends Visibility = "friends"
	VisibilityPublic  Visibility = "public"
)

type Challenge struct {
	ID            uuid.UUID  `json:"id" db:"id"`
	UserID        uuid.UUID  `json:"user_id" db:"user_id"`
	StartDate     string     `json:"start_date" db:"start_date"` // YYYY-MM-DD
	CurrentDay    int        `json:"current_day" db:"current_day"`
	Status        Status     `json:"status" db:"status"`
	AttemptNumber int        `json:"attempt_number" db:"attempt_number"`
	Visibility    Visibility `json:"visibility" db:"visibility"`
	FailedOnDay   *int       `json:"failed_on_day,omitempty" db:"failed_on_day"`
	CreatedAt     time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at" db:"updated_at"`
}

// EvaluateResult is what a status check reports back to its caller. On a
// fresh failure it carries everything the reset notice needs: the day that
// broke the run, the streak reached, and the replacement attempt.
type EvaluateResult struct {
	Status         Status     `json:"status"`
	FailedOnDay    int        `json:"failed_on_day,omitempty"`
	StreakReached  int        `json:"streak_reached,omitempty"`
	AttemptNumber  int        `json:"attempt_number"`
	NewChallengeID *uuid.UUID `json:"new_challenge_id,omitempty"`
}

// ActiveRef identifies an active challenge together with its owner's
// timezone. The sweep has no client session to supply a timezone, so it is
// read from the owner's profile instead.
type ActiveRef struct {
	ID       uuid.UUID `json:"id"`
	Timezone string    `json:"timezone"`
}

type NewHabit struct {
	Name        string `json:"name"`
	HabitType   string `json:"habit_type"`
	TargetCount int    `json:"target_count,omitempty"`
	IsHard      bool   `json:"is_hard"`
}

type CreateChallengeRequest struct {
	Visibility string     `json:"visibility,omitempty"`
	Habits     []NewHabit `json:"habits"`
}
