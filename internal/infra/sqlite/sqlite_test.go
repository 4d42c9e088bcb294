package sqlite

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/habitforge/habitforge/internal/domain"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	dir := t.TempDir()
	db, err := Open(dir)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

var base = time.Date(2026, time.March, 2, 9, 0, 0, 0, time.UTC)

func testHabit(id string) domain.Habit {
	return domain.Habit{
		ID:        id,
		Name:      "Habit " + id,
		Category:  "Health",
		Frequency: domain.Daily,
		Goal:      2,
		IsEnabled: true,
		CreatedAt: base,
	}
}

// ─── Database Lifecycle ─────────────────────────────────────────────────────

func TestOpen_CreatesDatabase(t *testing.T) {
	dir := t.TempDir()
	db, err := Open(dir)
	require.NoError(t, err)
	defer db.Close()

	_, err = os.Stat(filepath.Join(dir, "state.db"))
	assert.NoError(t, err, "state.db should exist")
}

func TestOpen_Ping(t *testing.T) {
	db := newTestDB(t)
	assert.NoError(t, db.Ping(context.Background()))
}

func TestOpen_Reopen(t *testing.T) {
	dir := t.TempDir()
	db, err := Open(dir)
	require.NoError(t, err)
	require.NoError(t, db.CreateHabit(context.Background(), testHabit("h1")))
	require.NoError(t, db.Close())

	db, err = Open(dir)
	require.NoError(t, err, "migrations must be idempotent")
	defer db.Close()

	h, err := db.GetHabit(context.Background(), "h1")
	require.NoError(t, err)
	assert.Equal(t, "Habit h1", h.Name)
}

// ─── Habits ─────────────────────────────────────────────────────────────────

func TestHabit_RoundTrip(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	h := testHabit("h1")
	h.GoalProgress = 1
	h.Streak = 4
	h.LastCompletedDate = base.Add(time.Hour)
	h.LastSatisfiedDate = base.Add(-24 * time.Hour)
	h.CompletionHistory = []time.Time{base.Add(-24 * time.Hour), base.Add(time.Hour)}
	h.UnlockedBadgeMilestones = []int{7}
	require.NoError(t, db.CreateHabit(ctx, h))

	got, err := db.GetHabit(ctx, "h1")
	require.NoError(t, err)
	assert.Equal(t, h.Name, got.Name)
	assert.Equal(t, "Health", got.Category)
	assert.Equal(t, domain.Daily, got.Frequency)
	assert.Equal(t, 2, got.Goal)
	assert.Equal(t, 1, got.GoalProgress)
	assert.Equal(t, 4, got.Streak)
	assert.True(t, got.LastCompletedDate.Equal(h.LastCompletedDate))
	assert.True(t, got.LastSatisfiedDate.Equal(h.LastSatisfiedDate))
	require.Len(t, got.CompletionHistory, 2)
	assert.True(t, got.CompletionHistory[1].Equal(base.Add(time.Hour)))
	assert.Equal(t, []int{7}, got.UnlockedBadgeMilestones)
	assert.True(t, got.IsEnabled)
	assert.True(t, got.CreatedAt.Equal(base))
}

func TestHabit_ZeroDatesStayZero(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	require.NoError(t, db.CreateHabit(ctx, testHabit("h1")))

	got, err := db.GetHabit(ctx, "h1")
	require.NoError(t, err)
	assert.True(t, got.LastCompletedDate.IsZero())
	assert.True(t, got.LastSatisfiedDate.IsZero())
	assert.Empty(t, got.CompletionHistory)
}

func TestHabit_NotFound(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	_, err := db.GetHabit(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrHabitNotFound)

	err = db.UpdateHabit(ctx, testHabit("missing"))
	assert.ErrorIs(t, err, domain.ErrHabitNotFound)
}

func TestHabit_UpdateAndList(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	first := testHabit("b")
	second := testHabit("a")
	second.CreatedAt = base.Add(time.Minute)
	require.NoError(t, db.CreateHabit(ctx, first))
	require.NoError(t, db.CreateHabit(ctx, second))

	first.IsEnabled = false
	first.Streak = 9
	require.NoError(t, db.UpdateHabit(ctx, first))

	habits, err := db.ListHabits(ctx)
	require.NoError(t, err)
	require.Len(t, habits, 2)
	assert.Equal(t, "b", habits[0].ID, "creation order")
	assert.False(t, habits[0].IsEnabled)
	assert.Equal(t, 9, habits[0].Streak)
	assert.Equal(t, "a", habits[1].ID)
}

// ─── Completions ────────────────────────────────────────────────────────────

func TestSaveCompletion(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	h := testHabit("h1")
	require.NoError(t, db.CreateHabit(ctx, h))

	h.GoalProgress = 1
	h.LastCompletedDate = base
	c := domain.HabitCompletion{ID: "c1", HabitID: "h1", CompletionDate: base, Note: "felt good", Mood: 4}
	require.NoError(t, db.SaveCompletion(ctx, h, c))

	got, err := db.GetHabit(ctx, "h1")
	require.NoError(t, err)
	assert.Equal(t, 1, got.GoalProgress)

	gc, err := db.GetCompletion(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "felt good", gc.Note)
	assert.Equal(t, 4, gc.Mood)
	assert.True(t, gc.CompletionDate.Equal(base))
}

func TestSaveCompletion_Atomic(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	h := testHabit("h1")
	require.NoError(t, db.CreateHabit(ctx, h))
	require.NoError(t, db.InsertCompletion(ctx, domain.HabitCompletion{ID: "dup", HabitID: "h1", CompletionDate: base}))

	h.GoalProgress = 1
	h.Streak = 3
	err := db.SaveCompletion(ctx, h, domain.HabitCompletion{ID: "dup", HabitID: "h1", CompletionDate: base})
	require.Error(t, err)

	got, err := db.GetHabit(ctx, "h1")
	require.NoError(t, err)
	assert.Equal(t, 0, got.GoalProgress, "habit write must roll back with the failed insert")
	assert.Equal(t, 0, got.Streak)
}

func TestCompletions_Queries(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	for i, id := range []string{"c1", "c2", "c3", "c4"} {
		habitID := "h1"
		if i%2 == 1 {
			habitID = "h2"
		}
		require.NoError(t, db.InsertCompletion(ctx, domain.HabitCompletion{
			ID:             id,
			HabitID:        habitID,
			CompletionDate: base.Add(time.Duration(i) * 24 * time.Hour),
		}))
	}

	all, err := db.ListCompletions(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 4)

	byHabit, err := db.ListCompletionsByHabit(ctx, "h2")
	require.NoError(t, err)
	require.Len(t, byHabit, 2)
	assert.Equal(t, "c2", byHabit[0].ID)
	assert.Equal(t, "c4", byHabit[1].ID)

	// [from, to): c2 at day 1 is included, c4 at day 3 is excluded.
	ranged, err := db.ListCompletionsInRange(ctx, base.Add(24*time.Hour), base.Add(72*time.Hour))
	require.NoError(t, err)
	require.Len(t, ranged, 2)
	assert.Equal(t, "c2", ranged[0].ID)
	assert.Equal(t, "c3", ranged[1].ID)
}

func TestCompletion_UpdateDelete(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	c := domain.HabitCompletion{ID: "c1", HabitID: "h1", CompletionDate: base}
	require.NoError(t, db.InsertCompletion(ctx, c))

	c.Note = "edited"
	c.Location = "park"
	require.NoError(t, db.UpdateCompletion(ctx, c))
	got, err := db.GetCompletion(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "edited", got.Note)
	assert.Equal(t, "park", got.Location)

	require.NoError(t, db.DeleteCompletion(ctx, "c1"))
	_, err = db.GetCompletion(ctx, "c1")
	assert.ErrorIs(t, err, domain.ErrCompletionNotFound)

	assert.ErrorIs(t, db.DeleteCompletion(ctx, "c1"), domain.ErrCompletionNotFound)
	assert.ErrorIs(t, db.UpdateCompletion(ctx, c), domain.ErrCompletionNotFound)
}

func TestSnapshot(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	h := testHabit("h1")
	require.NoError(t, db.CreateHabit(ctx, h))
	require.NoError(t, db.SaveCompletion(ctx, h, domain.HabitCompletion{ID: "c1", HabitID: "h1", CompletionDate: base}))

	snap, err := db.Snapshot(ctx)
	require.NoError(t, err)
	require.Len(t, snap.Habits, 1)
	require.Len(t, snap.Completions, 1)
	assert.Equal(t, "c1", snap.Completions[0].ID)
}

func TestSnapshot_Empty(t *testing.T) {
	snap, err := newTestDB(t).Snapshot(context.Background())
	require.NoError(t, err)
	assert.Empty(t, snap.Habits)
	assert.Empty(t, snap.Completions)
}

// ─── Badge Ledger ───────────────────────────────────────────────────────────

func TestUnlockBadge_ExactlyOnce(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	isNew, err := db.UnlockBadge(ctx, "streak_7", base)
	require.NoError(t, err)
	assert.True(t, isNew)

	isNew, err = db.UnlockBadge(ctx, "streak_7", base.Add(time.Hour))
	require.NoError(t, err)
	assert.False(t, isNew)

	unlocked, err := db.UnlockedBadges(ctx)
	require.NoError(t, err)
	require.Len(t, unlocked, 1)
	assert.True(t, unlocked["streak_7"].Equal(base), "first unlock time is kept")
}

// ─── Notifications ──────────────────────────────────────────────────────────

func TestNotifications(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	id1, err := db.InsertNotification(ctx, domain.Notification{Type: domain.NotifyBadge, Title: "first", CreatedAt: base})
	require.NoError(t, err)
	_, err = db.InsertNotification(ctx, domain.Notification{Type: domain.NotifyLevelUp, Title: "second", CreatedAt: base.Add(time.Second)})
	require.NoError(t, err)

	pending, err := db.ListPendingNotifications(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, "first", pending[0].Title)
	assert.Equal(t, domain.NotifyLevelUp, pending[1].Type)

	require.NoError(t, db.MarkNotificationShown(ctx, id1))
	assert.ErrorIs(t, db.MarkNotificationShown(ctx, id1), domain.ErrNotificationNotFound)

	pending, err = db.ListPendingNotifications(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "second", pending[0].Title)
}
