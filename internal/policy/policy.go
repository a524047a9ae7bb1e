package policy

// ProgramLength is the fixed length of a challenge. Day numbers beyond it
// are clamped, never extended.
const ProgramLength = 75

// GraceDays is how many calendar days after a given day it stays editable
// before being judged. Fixed for every user so the rule stays auditable.
const GraceDays = 2

// IsEditable reports whether the given day may still be mutated when the
// user is on todayDay. A day stays open through the two days after it.
// Future days falsify a separate check (IsFuture); callers reject those
// before consulting this predicate.
func IsEditable(day, todayDay int) bool {
	return todayDay <= day+GraceDays
}

// IsFuture reports whether day has not happened yet.
func IsFuture(day, todayDay int) bool {
	return day > todayDay
}

// GraceElapsed reports whether the day can no longer be satisfied. Once
// true for an unmet day, the challenge's continuity is irrecoverably broken.
func GraceElapsed(day, todayDay int) bool {
	return todayDay > day+GraceDays
}
