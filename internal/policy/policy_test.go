package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsEditable(t *testing.T) {
	tests := []struct {
		day      int
		todayDay int
		want     bool
	}{
		{5, 5, true},  // same day
		{5, 6, true},  // one day late
		{5, 7, true},  // last day of grace
		{5, 8, false}, // grace elapsed
		{5, 3, true},  // "future" relative to today; gated by IsFuture, not here
		{1, 1, true},
		{1, 4, false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, IsEditable(tt.day, tt.todayDay), "IsEditable(%d, %d)", tt.day, tt.todayDay)
	}
}

func TestIsEditableMatchesDefinition(t *testing.T) {
	for day := 1; day <= ProgramLength; day++ {
		for today := 1; today <= ProgramLength+GraceDays+1; today++ {
			assert.Equal(t, today <= day+GraceDays, IsEditable(day, today))
		}
	}
}

func TestGraceElapsed(t *testing.T) {
	// GraceElapsed is the exact complement of IsEditable
	for day := 1; day <= ProgramLength; day++ {
		for today := 1; today <= ProgramLength+GraceDays+1; today++ {
			assert.NotEqual(t, IsEditable(day, today), GraceElapsed(day, today))
		}
	}
}

func TestIsFuture(t *testing.T) {
	assert.True(t, IsFuture(6, 5))
	assert.False(t, IsFuture(5, 5))
	assert.False(t, IsFuture(4, 5))
}
