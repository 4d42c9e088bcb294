package domain

import "errors"

// ─── Sentinel Errors ────────────────────────────────────────────────────────
// Domain errors carry no infrastructure dependency.

var (
	// Lookup errors
	ErrHabitNotFound        = errors.New("habit not found")
	ErrCompletionNotFound   = errors.New("completion not found")
	ErrNotificationNotFound = errors.New("notification not found")

	// Validation errors
	ErrEmptyName        = errors.New("habit name must not be empty")
	ErrInvalidFrequency = errors.New("frequency must be one of DAILY, WEEKLY, MONTHLY, CUSTOM")
	ErrInvalidGoal      = errors.New("goal must be a positive integer")
	ErrInvalidMood      = errors.New("mood must be between 1 and 5")

	// Habitfile errors
	ErrNoHabits = errors.New("habitfile declares no habits")
)

// IsValidation reports whether err is a caller input error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrEmptyName) ||
		errors.Is(err, ErrInvalidFrequency) ||
		errors.Is(err, ErrInvalidGoal) ||
		errors.Is(err, ErrInvalidMood)
}
