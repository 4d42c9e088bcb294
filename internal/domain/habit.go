// Package domain holds the pure habit-tracking types.
// No infrastructure dependency: the engine, stores, and API all speak these.
package domain

import (
	"strings"
	"time"
)

// ─── Frequency ──────────────────────────────────────────────────────────────

// Frequency is the calendar window a habit's goal is measured against.
type Frequency string

const (
	Daily   Frequency = "DAILY"
	Weekly  Frequency = "WEEKLY"
	Monthly Frequency = "MONTHLY"
	Custom  Frequency = "CUSTOM" // no calendar window: every satisfied goal extends the streak
)

// Frequencies lists every known frequency.
var Frequencies = []Frequency{Daily, Weekly, Monthly, Custom}

// Valid reports whether f is one of the known frequencies.
func (f Frequency) Valid() bool {
	switch f {
	case Daily, Weekly, Monthly, Custom:
		return true
	}
	return false
}

// ParseFrequency accepts any casing ("daily", "Weekly").
func ParseFrequency(s string) (Frequency, error) {
	f := Frequency(strings.ToUpper(strings.TrimSpace(s)))
	if !f.Valid() {
		return "", ErrInvalidFrequency
	}
	return f, nil
}

// UnmarshalText lets JSON and TOML inputs use any casing.
func (f *Frequency) UnmarshalText(b []byte) error {
	p, err := ParseFrequency(string(b))
	if err != nil {
		return err
	}
	*f = p
	return nil
}

// ─── Habit ──────────────────────────────────────────────────────────────────

// Habit is a tracked habit and its progress state.
//
// GoalProgress stays within [0, Goal]: it resets to 0 the moment it reaches Goal
// (together with the streak update) and when a new period begins.
type Habit struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Category     string    `json:"category,omitempty"`
	Frequency    Frequency `json:"frequency"`
	Goal         int       `json:"goal"`
	GoalProgress int       `json:"goal_progress"`
	Streak       int       `json:"streak"`

	// Zero value means "never".
	LastCompletedDate time.Time `json:"last_completed_date"`
	LastSatisfiedDate time.Time `json:"last_satisfied_date"`

	CompletionHistory       []time.Time `json:"completion_history"`
	UnlockedBadgeMilestones []int       `json:"unlocked_badge_milestones"`
	IsEnabled               bool        `json:"is_enabled"`
	CreatedAt               time.Time   `json:"created_at"`
}

// HasMilestone reports whether the streak milestone was already counted.
func (h Habit) HasMilestone(m int) bool {
	for _, v := range h.UnlockedBadgeMilestones {
		if v == m {
			return true
		}
	}
	return false
}

// Clone returns a deep copy so callers can mutate slices freely.
func (h Habit) Clone() Habit {
	c := h
	c.CompletionHistory = append([]time.Time(nil), h.CompletionHistory...)
	c.UnlockedBadgeMilestones = append([]int(nil), h.UnlockedBadgeMilestones...)
	return c
}

// NewHabit is the input for creating a habit.
type NewHabit struct {
	Name      string    `json:"name"`
	Category  string    `json:"category"`
	Frequency Frequency `json:"frequency"`
	Goal      int       `json:"goal"`
}

// Validate checks a habit definition.
func (n NewHabit) Validate() error {
	if strings.TrimSpace(n.Name) == "" {
		return ErrEmptyName
	}
	if !n.Frequency.Valid() {
		return ErrInvalidFrequency
	}
	if n.Goal < 1 {
		return ErrInvalidGoal
	}
	return nil
}

// ─── Completion ─────────────────────────────────────────────────────────────

// HabitCompletion is one immutable completion event. HabitID is a reference,
// not ownership.
type HabitCompletion struct {
	ID             string    `json:"id"`
	HabitID        string    `json:"habit_id"`
	CompletionDate time.Time `json:"completion_date"`
	Note           string    `json:"note,omitempty"`
	Mood           int       `json:"mood,omitempty"` // 1–5, 0 = unset
	Location       string    `json:"location,omitempty"`
	PhotoRef       string    `json:"photo_ref,omitempty"`
}

// CompletionInput carries the optional fields of a completion.
type CompletionInput struct {
	Note     string `json:"note"`
	Mood     int    `json:"mood"`
	Location string `json:"location"`
	PhotoRef string `json:"photo_ref"`
}

// Validate checks the optional fields.
func (in CompletionInput) Validate() error {
	if in.Mood != 0 && (in.Mood < 1 || in.Mood > 5) {
		return ErrInvalidMood
	}
	return nil
}
