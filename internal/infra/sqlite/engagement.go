package sqlite

import (
	"context"
	"time"

	"github.com/habitforge/habitforge/internal/domain"
)

// ─── Badge Ledger ───────────────────────────────────────────────────────────

// UnlockBadge records a badge as announced.
// Returns false if already recorded (idempotent).
func (d *DB) UnlockBadge(ctx context.Context, id string, at time.Time) (bool, error) {
	result, err := d.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO badge_unlocks (id, unlocked_at) VALUES (?, ?)`,
		id, at.UnixMilli(),
	)
	if err != nil {
		return false, err
	}
	n, _ := result.RowsAffected()
	return n > 0, nil // true = newly unlocked
}

// UnlockedBadges returns every announced badge with its unlock time.
func (d *DB) UnlockedBadges(ctx context.Context) (map[string]time.Time, error) {
	rows, err := d.db.QueryContext(ctx, `SELECT id, unlocked_at FROM badge_unlocks`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]time.Time)
	for rows.Next() {
		var id string
		var at int64
		if err := rows.Scan(&id, &at); err != nil {
			return nil, err
		}
		out[id] = time.UnixMilli(at)
	}
	return out, rows.Err()
}

// ─── Notifications ──────────────────────────────────────────────────────────

// InsertNotification creates a new notification.
func (d *DB) InsertNotification(ctx context.Context, n domain.Notification) (int64, error) {
	createdAt := n.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	result, err := d.db.ExecContext(ctx,
		`INSERT INTO notifications (type, title, body, bonus_xp, created_at, shown)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		string(n.Type), n.Title, n.Body, n.BonusXP, createdAt.UnixMilli(), n.Shown,
	)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

// ListPendingNotifications returns unshown notifications, oldest first.
func (d *DB) ListPendingNotifications(ctx context.Context, limit int) ([]domain.Notification, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT id, type, title, body, bonus_xp, created_at, shown
		 FROM notifications WHERE shown = 0 ORDER BY created_at ASC, id ASC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var notifs []domain.Notification
	for rows.Next() {
		var n domain.Notification
		var createdAt int64
		if err := rows.Scan(&n.ID, &n.Type, &n.Title, &n.Body, &n.BonusXP, &createdAt, &n.Shown); err != nil {
			return nil, err
		}
		n.CreatedAt = time.UnixMilli(createdAt)
		notifs = append(notifs, n)
	}
	return notifs, rows.Err()
}

// MarkNotificationShown consumes a pending notification. Already shown or
// unknown ids return ErrNotificationNotFound.
func (d *DB) MarkNotificationShown(ctx context.Context, id int64) error {
	result, err := d.db.ExecContext(ctx, `UPDATE notifications SET shown = 1 WHERE id = ? AND shown = 0`, id)
	if err != nil {
		return err
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return domain.ErrNotificationNotFound
	}
	return nil
}
