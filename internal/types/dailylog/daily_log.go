package dailylog

import (
	"time"

	"github.com/google/uuid"
)

// Entry is the logged value for one habit on one day. Task habits use
// Completed, counter habits use Count.
type Entry struct {
	Completed bool `json:"completed"`
	Count     int  `json:"count,omitempty"`
}

type DailyLog struct {
	ID                 uuid.UUID        `json:"id" db:"id"`
	ChallengeID        uuid.UUID        `json:"challenge_id" db:"challenge_id"`
	DayNumber          int              `json:"day_number" db:"day_number"`
	Entries            map[string]Entry `json:"entries" db:"entries"`
	AllRequirementsMet bool             `json:"all_requirements_met" db:"all_requirements_met"`
	CompletedAt        *time.Time       `json:"completed_at,omitempty" db:"completed_at"`
	CreatedAt          time.Time        `json:"created_at" db:"created_at"`
	UpdatedAt          time.Time        `json:"updated_at" db:"updated_at"`
}

type UpdateDayRequest struct {
	Entries map[string]Entry `json:"entries"`
}

// DayView is a day as the dashboard renders it: the calendar date, whether
// the day is still open for edits, and the log if one exists yet.
type DayView struct {
	DayNumber int       `json:"day_number"`
	Date      string    `json:"date"`
	Editable  bool      `json:"editable"`
	Log       *DailyLog `json:"log,omitempty"`
}
