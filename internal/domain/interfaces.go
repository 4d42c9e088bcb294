package domain

import (
	"context"
	"time"
)

// ─── Store Interfaces ───────────────────────────────────────────────────────
// These interfaces define boundaries between layers.
// Infrastructure implements them; the application layer depends on them.

// HabitStore abstracts persistent habit state.
type HabitStore interface {
	CreateHabit(ctx context.Context, h Habit) error
	GetHabit(ctx context.Context, id string) (*Habit, error) // ErrHabitNotFound if absent
	ListHabits(ctx context.Context) ([]Habit, error)
	UpdateHabit(ctx context.Context, h Habit) error

	// SaveCompletion writes the updated habit and inserts the completion
	// atomically: either both are visible or neither is.
	SaveCompletion(ctx context.Context, h Habit, c HabitCompletion) error
}

// CompletionStore abstracts persistent completion records.
type CompletionStore interface {
	InsertCompletion(ctx context.Context, c HabitCompletion) error
	GetCompletion(ctx context.Context, id string) (*HabitCompletion, error)
	ListCompletions(ctx context.Context) ([]HabitCompletion, error)
	ListCompletionsByHabit(ctx context.Context, habitID string) ([]HabitCompletion, error)
	ListCompletionsInRange(ctx context.Context, from, to time.Time) ([]HabitCompletion, error)
	UpdateCompletion(ctx context.Context, c HabitCompletion) error
	DeleteCompletion(ctx context.Context, id string) error
}

// BadgeLedger records which badges have already been announced.
type BadgeLedger interface {
	// UnlockedBadges returns badge id → first unlock time.
	UnlockedBadges(ctx context.Context) (map[string]time.Time, error)

	// UnlockBadge returns false if the badge was already recorded.
	UnlockBadge(ctx context.Context, id string, at time.Time) (bool, error)
}

// BadgeSink receives newly unlocked badge events.
type BadgeSink interface {
	PublishBadge(ctx context.Context, ev BadgeUnlocked) error
}

// Snapshot is the full set of habits and completions at one instant.
type Snapshot struct {
	Habits      []Habit
	Completions []HabitCompletion
}

// SnapshotReader reads habits and completions consistently in one pass.
type SnapshotReader interface {
	Snapshot(ctx context.Context) (Snapshot, error)
}
