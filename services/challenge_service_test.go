package services

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"seventyFiveAPI/internal/calendar"
	"seventyFiveAPI/internal/policy"
	"seventyFiveAPI/internal/types/challenge"
	"seventyFiveAPI/internal/types/dailylog"
	"seventyFiveAPI/internal/types/habit"
)

func metThrough(day int) map[int]bool {
	met := make(map[int]bool)
	for d := 1; d <= day; d++ {
		met[d] = true
	}
	return met
}

func TestResolveOutcomeOnTrack(t *testing.T) {
	// start 2024-01-01, today 2024-01-05, days 1-4 complete
	todayDay, err := calendar.DayNumber("2024-01-01", "2024-01-05")
	require.NoError(t, err)
	require.Equal(t, 5, todayDay)

	out := resolveOutcome(todayDay, metThrough(4))
	assert.Equal(t, challenge.StatusActive, out.status)
	assert.Equal(t, 5, out.currentDay)
}

func TestResolveOutcomeGraceFailure(t *testing.T) {
	// start 2024-01-01, today 2024-01-06 (day 6), day 3 never logged:
	// day 3 + grace = day 5 < day 6, so the run is broken on day 3
	todayDay, err := calendar.DayNumber("2024-01-01", "2024-01-06")
	require.NoError(t, err)
	require.Equal(t, 6, todayDay)

	met := metThrough(5)
	delete(met, 3)

	out := resolveOutcome(todayDay, met)
	assert.Equal(t, challenge.StatusFailed, out.status)
	assert.Equal(t, 3, out.failedOnDay)
}

func TestResolveOutcomeWithinGrace(t *testing.T) {
	// same gap on day 3 but today is day 5: grace has not elapsed yet
	met := metThrough(4)
	delete(met, 3)

	out := resolveOutcome(5, met)
	assert.Equal(t, challenge.StatusActive, out.status)
	assert.Equal(t, 5, out.currentDay)
}

func TestResolveOutcomeCompletion(t *testing.T) {
	out := resolveOutcome(75, metThrough(75))
	assert.Equal(t, challenge.StatusCompleted, out.status)
	assert.Equal(t, 75, out.currentDay)
}

func TestResolveOutcomeEarliestFailureWins(t *testing.T) {
	// days 2 and 4 both unmet past grace; only the earliest matters
	met := metThrough(10)
	delete(met, 2)
	delete(met, 4)

	out := resolveOutcome(10, met)
	assert.Equal(t, challenge.StatusFailed, out.status)
	assert.Equal(t, 2, out.failedOnDay)
}

func TestResolveOutcomeUnmetWithFalseLog(t *testing.T) {
	// a log that exists but never met requirements fails the same way a
	// missing log does
	met := metThrough(6)
	met[2] = false

	out := resolveOutcome(6, met)
	assert.Equal(t, challenge.StatusFailed, out.status)
	assert.Equal(t, 2, out.failedOnDay)
}

func TestResolveOutcomeClampsBeyondProgram(t *testing.T) {
	// well past the program with an incomplete final day: currentDay is
	// clamped to 75, never extended
	met := metThrough(75)
	met[75] = false

	out := resolveOutcome(80, met)
	assert.Equal(t, challenge.StatusFailed, out.status)
	assert.Equal(t, 75, out.failedOnDay)

	out = resolveOutcome(80, metThrough(75))
	assert.Equal(t, challenge.StatusCompleted, out.status)
	assert.Equal(t, policy.ProgramLength, out.currentDay)
}

func TestResolveOutcomeDayOne(t *testing.T) {
	// a brand new challenge with nothing logged is simply active
	out := resolveOutcome(1, map[int]bool{})
	assert.Equal(t, challenge.StatusActive, out.status)
	assert.Equal(t, 1, out.currentDay)
}

func TestResolveOutcomeIsDeterministic(t *testing.T) {
	// evaluating twice with no state change yields the identical decision
	met := metThrough(5)
	delete(met, 3)

	first := resolveOutcome(8, met)
	second := resolveOutcome(8, met)
	assert.Equal(t, first, second)
	assert.Equal(t, challenge.StatusFailed, first.status)
}

func TestAllRequirementsMet(t *testing.T) {
	water := &habit.Habit{ID: uuid.New(), Name: "drink water", HabitType: habit.TypeCounter, TargetCount: 4, IsHard: true}
	workout := &habit.Habit{ID: uuid.New(), Name: "workout", HabitType: habit.TypeTask, IsHard: true}
	reading := &habit.Habit{ID: uuid.New(), Name: "read", HabitType: habit.TypeTask, IsHard: false}
	habits := []*habit.Habit{water, workout, reading}

	// all hard habits satisfied; soft habit untouched
	entries := map[string]dailylog.Entry{
		water.ID.String():   {Count: 4},
		workout.ID.String(): {Completed: true},
	}
	assert.True(t, allRequirementsMet(habits, entries))

	// counter below target
	entries[water.ID.String()] = dailylog.Entry{Count: 3}
	assert.False(t, allRequirementsMet(habits, entries))

	// hard task missing entirely
	entries[water.ID.String()] = dailylog.Entry{Count: 4}
	delete(entries, workout.ID.String())
	assert.False(t, allRequirementsMet(habits, entries))

	// soft habit failing never gates the day
	entries[workout.ID.String()] = dailylog.Entry{Completed: true}
	entries[reading.ID.String()] = dailylog.Entry{Completed: false}
	assert.True(t, allRequirementsMet(habits, entries))

	// no entries at all
	assert.False(t, allRequirementsMet(habits, nil))
}
