package habit

import (
	"time"

	"github.com/google/uuid"
)

type HabitType string

const (
	TypeTask    HabitType = "task"
	TypeCounter HabitType = "counter"
)

// Habit is one requirement of a challenge. Hard habits gate the day: a day
// only counts when every hard habit is satisfied. Soft habits are
// tracked-only.
type Habit struct {
	ID          uuid.UUID `json:"id" db:"id"`
	ChallengeID uuid.UUID `json:"challenge_id" db:"challenge_id"`
	Name        string    `json:"name" db:"name"`
	HabitType   HabitType `json:"habit_type" db:"habit_type"`
	TargetCount int       `json:"target_count" db:"target_count"`
	IsHard      bool      `json:"is_hard" db:"is_hard"`
	SortOrder   int       `json:"sort_order" db:"sort_order"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}
