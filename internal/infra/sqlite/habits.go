package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/habitforge/habitforge/internal/domain"
)

const habitColumns = `id, name, category, frequency, goal, goal_progress, streak,
	last_completed_at, last_satisfied_at, completion_history, badge_milestones, enabled, created_at`

// ─── Habit Repository ───────────────────────────────────────────────────────

// CreateHabit inserts a new habit.
func (d *DB) CreateHabit(ctx context.Context, h domain.Habit) error {
	return upsertHabit(ctx, d.db, h)
}

// UpdateHabit writes back the full habit record.
func (d *DB) UpdateHabit(ctx context.Context, h domain.Habit) error {
	if _, err := d.GetHabit(ctx, h.ID); err != nil {
		return err
	}
	return upsertHabit(ctx, d.db, h)
}

// GetHabit retrieves a single habit by id.
func (d *DB) GetHabit(ctx context.Context, id string) (*domain.Habit, error) {
	row := d.db.QueryRowContext(ctx,
		`SELECT `+habitColumns+` FROM habits WHERE id = ?`, id,
	)
	h, err := scanHabit(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrHabitNotFound
	}
	return h, err
}

// ListHabits returns all habits in creation order.
func (d *DB) ListHabits(ctx context.Context) ([]domain.Habit, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT `+habitColumns+` FROM habits ORDER BY created_at, id`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var habits []domain.Habit
	for rows.Next() {
		h, err := scanHabit(rows)
		if err != nil {
			return nil, err
		}
		habits = append(habits, *h)
	}
	return habits, rows.Err()
}

// SaveCompletion writes the habit and inserts the completion in one transaction.
func (d *DB) SaveCompletion(ctx context.Context, h domain.Habit, c domain.HabitCompletion) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if err := upsertHabit(ctx, tx, h); err != nil {
		return fmt.Errorf("write habit: %w", err)
	}
	if err := insertCompletion(ctx, tx, c); err != nil {
		return fmt.Errorf("insert completion: %w", err)
	}
	return tx.Commit()
}

func upsertHabit(ctx context.Context, ex execer, h domain.Habit) error {
	history, err := encodeMillis(h.CompletionHistory)
	if err != nil {
		return fmt.Errorf("encode history: %w", err)
	}
	milestones, err := encodeInts(h.UnlockedBadgeMilestones)
	if err != nil {
		return fmt.Errorf("encode milestones: %w", err)
	}
	createdAt := h.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err = ex.ExecContext(ctx,
		`INSERT INTO habits (`+habitColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			name=excluded.name,
			category=excluded.category,
			frequency=excluded.frequency,
			goal=excluded.goal,
			goal_progress=excluded.goal_progress,
			streak=excluded.streak,
			last_completed_at=excluded.last_completed_at,
			last_satisfied_at=excluded.last_satisfied_at,
			completion_history=excluded.completion_history,
			badge_milestones=excluded.badge_milestones,
			enabled=excluded.enabled`,
		h.ID, h.Name, h.Category, string(h.Frequency), h.Goal, h.GoalProgress, h.Streak,
		nullableMilli(h.LastCompletedDate), nullableMilli(h.LastSatisfiedDate),
		history, milestones, h.IsEnabled, createdAt.UnixMilli(),
	)
	return err
}

func scanHabit(s scanner) (*domain.Habit, error) {
	var h domain.Habit
	var freq, history, milestones string
	var lastCompleted, lastSatisfied sql.NullInt64
	var createdAt int64

	err := s.Scan(&h.ID, &h.Name, &h.Category, &freq, &h.Goal, &h.GoalProgress, &h.Streak,
		&lastCompleted, &lastSatisfied, &history, &milestones, &h.IsEnabled, &createdAt)
	if err != nil {
		return nil, err
	}

	h.Frequency = domain.Frequency(freq)
	h.LastCompletedDate = fromNullMilli(lastCompleted)
	h.LastSatisfiedDate = fromNullMilli(lastSatisfied)
	h.CreatedAt = time.UnixMilli(createdAt)
	if h.CompletionHistory, err = decodeMillis(history); err != nil {
		return nil, fmt.Errorf("decode history for habit %s: %w", h.ID, err)
	}
	if h.UnlockedBadgeMilestones, err = decodeInts(milestones); err != nil {
		return nil, fmt.Errorf("decode milestones for habit %s: %w", h.ID, err)
	}
	return &h, nil
}
