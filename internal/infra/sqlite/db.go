// Package sqlite provides SQLite-based persistent storage for habitforge.
// Uses WAL mode for concurrent reads and crash-safe writes.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver (no CGO required)
)

// DB wraps a SQLite connection with WAL mode and migrations.
// It implements domain.HabitStore, domain.CompletionStore, domain.BadgeLedger
// and engagement.NotificationStore.
type DB struct {
	db *sql.DB
}

// Open creates or opens the SQLite database at dir/state.db.
// Enables WAL mode, foreign keys, and 5-second busy timeout.
func Open(dir string) (*DB, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	dbPath := filepath.Join(dir, "state.db")
	dsn := dbPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	// SQLite is single-writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	d := &DB{db: db}
	if err := d.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return d, nil
}

// Close cleanly shuts down the database.
func (d *DB) Close() error {
	return d.db.Close()
}

// Ping checks database connectivity.
func (d *DB) Ping(ctx context.Context) error {
	return d.db.PingContext(ctx)
}

// migrate runs idempotent schema migrations.
func (d *DB) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS habits (
			id                 TEXT PRIMARY KEY,
			name               TEXT NOT NULL,
			category           TEXT NOT NULL DEFAULT '',
			frequency          TEXT NOT NULL,
			goal               INTEGER NOT NULL,
			goal_progress      INTEGER NOT NULL DEFAULT 0,
			streak             INTEGER NOT NULL DEFAULT 0,
			last_completed_at  INTEGER,
			last_satisfied_at  INTEGER,
			completion_history TEXT NOT NULL DEFAULT '[]',
			badge_milestones   TEXT NOT NULL DEFAULT '[]',
			enabled            BOOLEAN NOT NULL DEFAULT 1,
			created_at         INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_habits_created ON habits(created_at)`,

		// Completions reference habits by id; they are not cascaded.
		`CREATE TABLE IF NOT EXISTS completions (
			id           TEXT PRIMARY KEY,
			habit_id     TEXT NOT NULL,
			completed_at INTEGER NOT NULL,
			note         TEXT NOT NULL DEFAULT '',
			mood         INTEGER NOT NULL DEFAULT 0,
			location     TEXT NOT NULL DEFAULT '',
			photo_ref    TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE INDEX IF NOT EXISTS idx_completions_habit ON completions(habit_id)`,
		`CREATE INDEX IF NOT EXISTS idx_completions_at ON completions(completed_at)`,

		// Badges already announced (exactly-once ledger)
		`CREATE TABLE IF NOT EXISTS badge_unlocks (
			id          TEXT PRIMARY KEY,
			unlocked_at INTEGER NOT NULL
		)`,

		// Unread notification queue
		`CREATE TABLE IF NOT EXISTS notifications (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			type       TEXT NOT NULL,
			title      TEXT NOT NULL,
			body       TEXT NOT NULL,
			bonus_xp   INTEGER NOT NULL DEFAULT 0,
			created_at INTEGER NOT NULL,
			shown      BOOLEAN DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS idx_notif_created ON notifications(created_at)`,
	}

	for _, m := range migrations {
		if _, err := d.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w\nSQL: %s", err, m)
		}
	}
	return nil
}

// ─── Helpers ────────────────────────────────────────────────────────────────

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// execer is satisfied by both *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func nullableMilli(t time.Time) sql.NullInt64 {
	if t.IsZero() {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixMilli(), Valid: true}
}

func fromNullMilli(n sql.NullInt64) time.Time {
	if !n.Valid {
		return time.Time{}
	}
	return time.UnixMilli(n.Int64)
}

func encodeMillis(ts []time.Time) (string, error) {
	ms := make([]int64, len(ts))
	for i, t := range ts {
		ms[i] = t.UnixMilli()
	}
	b, err := json.Marshal(ms)
	return string(b), err
}

func decodeMillis(s string) ([]time.Time, error) {
	var ms []int64
	if err := json.Unmarshal([]byte(s), &ms); err != nil {
		return nil, err
	}
	ts := make([]time.Time, len(ms))
	for i, m := range ms {
		ts[i] = time.UnixMilli(m)
	}
	return ts, nil
}

func encodeInts(v []int) (string, error) {
	if v == nil {
		v = []int{}
	}
	b, err := json.Marshal(v)
	return string(b), err
}

func decodeInts(s string) ([]int, error) {
	var v []int
	err := json.Unmarshal([]byte(s), &v)
	return v, err
}
