package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/habitforge/habitforge/internal/domain"
)

const completionColumns = `id, habit_id, completed_at, note, mood, location, photo_ref`

// ─── Completion Repository ──────────────────────────────────────────────────

// InsertCompletion stores a completion record.
func (d *DB) InsertCompletion(ctx context.Context, c domain.HabitCompletion) error {
	return insertCompletion(ctx, d.db, c)
}

// GetCompletion retrieves a completion by id.
func (d *DB) GetCompletion(ctx context.Context, id string) (*domain.HabitCompletion, error) {
	row := d.db.QueryRowContext(ctx,
		`SELECT `+completionColumns+` FROM completions WHERE id = ?`, id,
	)
	c, err := scanCompletion(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrCompletionNotFound
	}
	return c, err
}

// ListCompletions returns every completion ordered by time.
func (d *DB) ListCompletions(ctx context.Context) ([]domain.HabitCompletion, error) {
	return d.queryCompletions(ctx,
		`SELECT `+completionColumns+` FROM completions ORDER BY completed_at, id`,
	)
}

// ListCompletionsByHabit returns one habit's completions ordered by time.
func (d *DB) ListCompletionsByHabit(ctx context.Context, habitID string) ([]domain.HabitCompletion, error) {
	return d.queryCompletions(ctx,
		`SELECT `+completionColumns+` FROM completions WHERE habit_id = ? ORDER BY completed_at, id`,
		habitID,
	)
}

// ListCompletionsInRange returns completions with from <= completed_at < to.
func (d *DB) ListCompletionsInRange(ctx context.Context, from, to time.Time) ([]domain.HabitCompletion, error) {
	return d.queryCompletions(ctx,
		`SELECT `+completionColumns+` FROM completions
		 WHERE completed_at >= ? AND completed_at < ? ORDER BY completed_at, id`,
		from.UnixMilli(), to.UnixMilli(),
	)
}

// UpdateCompletion rewrites a completion's fields.
func (d *DB) UpdateCompletion(ctx context.Context, c domain.HabitCompletion) error {
	result, err := d.db.ExecContext(ctx,
		`UPDATE completions SET habit_id = ?, completed_at = ?, note = ?, mood = ?, location = ?, photo_ref = ?
		 WHERE id = ?`,
		c.HabitID, c.CompletionDate.UnixMilli(), c.Note, c.Mood, c.Location, c.PhotoRef, c.ID,
	)
	if err != nil {
		return err
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return domain.ErrCompletionNotFound
	}
	return nil
}

// DeleteCompletion removes a completion record.
func (d *DB) DeleteCompletion(ctx context.Context, id string) error {
	result, err := d.db.ExecContext(ctx, `DELETE FROM completions WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return domain.ErrCompletionNotFound
	}
	return nil
}

func (d *DB) queryCompletions(ctx context.Context, query string, args ...any) ([]domain.HabitCompletion, error) {
	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.HabitCompletion
	for rows.Next() {
		c, err := scanCompletion(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

func insertCompletion(ctx context.Context, ex execer, c domain.HabitCompletion) error {
	_, err := ex.ExecContext(ctx,
		`INSERT INTO completions (`+completionColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.HabitID, c.CompletionDate.UnixMilli(), c.Note, c.Mood, c.Location, c.PhotoRef,
	)
	return err
}

func scanCompletion(s scanner) (*domain.HabitCompletion, error) {
	var c domain.HabitCompletion
	var at int64
	if err := s.Scan(&c.ID, &c.HabitID, &at, &c.Note, &c.Mood, &c.Location, &c.PhotoRef); err != nil {
		return nil, err
	}
	c.CompletionDate = time.UnixMilli(at)
	return &c, nil
}

// ─── Snapshot ───────────────────────────────────────────────────────────────

// Snapshot reads all habits and completions inside one read transaction so
// evaluation never observes a half-written completion.
func (d *DB) Snapshot(ctx context.Context) (domain.Snapshot, error) {
	var snap domain.Snapshot

	tx, err := d.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return snap, err
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, `SELECT `+habitColumns+` FROM habits ORDER BY created_at, id`)
	if err != nil {
		return snap, err
	}
	for rows.Next() {
		h, err := scanHabit(rows)
		if err != nil {
			rows.Close()
			return snap, err
		}
		snap.Habits = append(snap.Habits, *h)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return snap, err
	}

	rows, err = tx.QueryContext(ctx, `SELECT `+completionColumns+` FROM completions ORDER BY completed_at, id`)
	if err != nil {
		return snap, err
	}
	defer rows.Close()
	for rows.Next() {
		c, err := scanCompletion(rows)
		if err != nil {
			return snap, err
		}
		snap.Completions = append(snap.Completions, *c)
	}
	if err := rows.Err(); err != nil {
		return snap, err
	}
	return snap, tx.Commit()
}
