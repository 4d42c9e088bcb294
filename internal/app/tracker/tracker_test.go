package tracker_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/habitforge/habitforge/internal/app/engagement"
	"github.com/habitforge/habitforge/internal/app/tracker"
	"github.com/habitforge/habitforge/internal/domain"
	"github.com/habitforge/habitforge/internal/infra/sqlite"
)

// clock is a settable time source.
type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = t
}

func (c *clock) Advance(d time.Duration) { c.Set(c.Now().Add(d)) }

func day(d, hour int) time.Time {
	return time.Date(2026, time.March, d, hour, 0, 0, 0, time.UTC)
}

func newTracker(t *testing.T) (*tracker.Tracker, *sqlite.DB, *clock) {
	t.Helper()
	db, err := sqlite.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	tr := tracker.New(tracker.Deps{
		Habits:      db,
		Completions: db,
		Snapshots:   db,
		Ledger:      db,
	}, tracker.Config{
		Location: time.UTC,
		Catalog:  engagement.DefaultCatalogConfig(),
	})
	c := &clock{t: day(2, 9)}
	tr.SetClock(c.Now)
	return tr, db, c
}

func createHabit(t *testing.T, tr *tracker.Tracker, f domain.Frequency, goal int) domain.Habit {
	t.Helper()
	h, err := tr.CreateHabit(context.Background(), domain.NewHabit{Name: "Run", Frequency: f, Goal: goal})
	require.NoError(t, err)
	return h
}

// recordingSink collects published events.
type recordingSink struct {
	mu     sync.Mutex
	events []domain.BadgeUnlocked
	fail   int // fail this many calls first
	ch     chan domain.BadgeUnlocked
}

func (s *recordingSink) PublishBadge(_ context.Context, ev domain.BadgeUnlocked) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail > 0 {
		s.fail--
		return errors.New("sink unavailable")
	}
	s.events = append(s.events, ev)
	if s.ch != nil {
		s.ch <- ev
	}
	return nil
}

func (s *recordingSink) ids() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.events))
	for i, ev := range s.events {
		out[i] = ev.BadgeID
	}
	return out
}

// ─── Habits ─────────────────────────────────────────────────────────────────

func TestCreateHabit_Validation(t *testing.T) {
	tr, _, _ := newTracker(t)
	ctx := context.Background()

	_, err := tr.CreateHabit(ctx, domain.NewHabit{Name: " ", Frequency: domain.Daily, Goal: 1})
	assert.ErrorIs(t, err, domain.ErrEmptyName)
	_, err = tr.CreateHabit(ctx, domain.NewHabit{Name: "x", Frequency: "HOURLY", Goal: 1})
	assert.ErrorIs(t, err, domain.ErrInvalidFrequency)
	_, err = tr.CreateHabit(ctx, domain.NewHabit{Name: "x", Frequency: domain.Daily, Goal: 0})
	assert.ErrorIs(t, err, domain.ErrInvalidGoal)

	h := createHabit(t, tr, domain.Weekly, 3)
	assert.NotEmpty(t, h.ID)
	assert.True(t, h.IsEnabled)
	assert.Zero(t, h.Streak)
	assert.True(t, h.CreatedAt.Equal(day(2, 9)))
}

func TestGetHabit_NotFound(t *testing.T) {
	tr, _, _ := newTracker(t)
	_, err := tr.GetHabit(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrHabitNotFound)

	_, err = tr.Complete(context.Background(), "missing", time.Time{}, domain.CompletionInput{})
	assert.ErrorIs(t, err, domain.ErrHabitNotFound)
}

// ─── Completions ────────────────────────────────────────────────────────────

func TestComplete_DailyStreak(t *testing.T) {
	tr, _, _ := newTracker(t)
	ctx := context.Background()
	h := createHabit(t, tr, domain.Daily, 1)

	for d := 2; d <= 4; d++ {
		out, err := tr.Complete(ctx, h.ID, day(d, 10), domain.CompletionInput{})
		require.NoError(t, err)
		require.True(t, out.Recorded)
		assert.True(t, out.GoalMet)
		assert.Equal(t, d-1, out.Habit.Streak)
		assert.Zero(t, out.Habit.GoalProgress)
		require.NotNil(t, out.Completion)
		assert.Equal(t, h.ID, out.Completion.HabitID)
	}

	completions, err := tr.Completions(ctx, h.ID)
	require.NoError(t, err)
	assert.Len(t, completions, 3)
}

func TestComplete_BackdatedKeepsStreak(t *testing.T) {
	tr, _, c := newTracker(t)
	ctx := context.Background()
	h := createHabit(t, tr, domain.Daily, 1)

	for d := 2; d <= 11; d++ {
		c.Set(day(d, 10))
		_, err := tr.Complete(ctx, h.ID, time.Time{}, domain.CompletionInput{})
		require.NoError(t, err)
	}

	out, err := tr.Complete(ctx, h.ID, day(5, 20), domain.CompletionInput{Note: "forgot to log"})
	require.NoError(t, err)
	require.True(t, out.Recorded)
	assert.True(t, out.GoalMet)
	assert.Equal(t, 10, out.Habit.Streak)
	assert.True(t, out.Habit.LastCompletedDate.Equal(day(11, 10)))
	assert.Len(t, out.Habit.CompletionHistory, 11)
	for i := 1; i < len(out.Habit.CompletionHistory); i++ {
		assert.False(t, out.Habit.CompletionHistory[i].Before(out.Habit.CompletionHistory[i-1]), "history stays ordered")
	}

	stored, err := tr.GetHabit(ctx, h.ID)
	require.NoError(t, err)
	assert.Equal(t, 10, stored.Streak)

	c.Set(day(12, 10))
	out, err = tr.Complete(ctx, h.ID, time.Time{}, domain.CompletionInput{})
	require.NoError(t, err)
	assert.Equal(t, 11, out.Habit.Streak)

	completions, err := tr.Completions(ctx, h.ID)
	require.NoError(t, err)
	assert.Len(t, completions, 12)
}

func TestComplete_BackdatedFillsGap(t *testing.T) {
	tr, _, c := newTracker(t)
	ctx := context.Background()
	h := createHabit(t, tr, domain.Daily, 1)

	for _, at := range []time.Time{day(2, 10), day(3, 10), day(5, 10)} {
		_, err := tr.Complete(ctx, h.ID, at, domain.CompletionInput{})
		require.NoError(t, err)
	}
	c.Set(day(5, 12))

	out, err := tr.Complete(ctx, h.ID, day(4, 10), domain.CompletionInput{})
	require.NoError(t, err)
	assert.Equal(t, 4, out.Habit.Streak)
}

func TestComplete_DefaultsToNow(t *testing.T) {
	tr, _, c := newTracker(t)
	h := createHabit(t, tr, domain.Daily, 2)

	out, err := tr.Complete(context.Background(), h.ID, time.Time{}, domain.CompletionInput{Note: "easy", Mood: 5})
	require.NoError(t, err)
	assert.True(t, out.Completion.CompletionDate.Equal(c.Now()))
	assert.Equal(t, "easy", out.Completion.Note)
	assert.Equal(t, 1, out.Habit.GoalProgress)
	assert.False(t, out.GoalMet)
}

func TestComplete_InvalidMood(t *testing.T) {
	tr, _, _ := newTracker(t)
	h := createHabit(t, tr, domain.Daily, 1)
	_, err := tr.Complete(context.Background(), h.ID, time.Time{}, domain.CompletionInput{Mood: 9})
	assert.ErrorIs(t, err, domain.ErrInvalidMood)
}

func TestComplete_ConcurrentSameHabit(t *testing.T) {
	tr, _, _ := newTracker(t)
	ctx := context.Background()
	h := createHabit(t, tr, domain.Custom, 1000)

	const n = 20
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := tr.Complete(ctx, h.ID, day(2, 10).Add(time.Duration(i)*time.Second), domain.CompletionInput{})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	got, err := tr.GetHabit(ctx, h.ID)
	require.NoError(t, err)
	assert.Equal(t, n, got.GoalProgress, "no completion may be lost")
	assert.Len(t, got.CompletionHistory, n)

	completions, err := tr.Completions(ctx, h.ID)
	require.NoError(t, err)
	assert.Len(t, completions, n)
}

func TestComplete_PausedHabit(t *testing.T) {
	tr, _, _ := newTracker(t)
	ctx := context.Background()
	h := createHabit(t, tr, domain.Daily, 1)

	_, err := tr.SetEnabled(ctx, h.ID, false)
	require.NoError(t, err)

	out, err := tr.Complete(ctx, h.ID, day(2, 10), domain.CompletionInput{})
	require.NoError(t, err)
	assert.False(t, out.Recorded)
	assert.Nil(t, out.Completion)

	completions, err := tr.Completions(ctx, h.ID)
	require.NoError(t, err)
	assert.Empty(t, completions)

	_, err = tr.SetEnabled(ctx, h.ID, true)
	require.NoError(t, err)
	out, err = tr.Complete(ctx, h.ID, day(2, 11), domain.CompletionInput{})
	require.NoError(t, err)
	assert.True(t, out.Recorded)
}

func TestUpdateAndDeleteCompletion(t *testing.T) {
	tr, _, _ := newTracker(t)
	ctx := context.Background()
	h := createHabit(t, tr, domain.Daily, 1)

	out, err := tr.Complete(ctx, h.ID, day(2, 10), domain.CompletionInput{})
	require.NoError(t, err)

	c, err := tr.UpdateCompletion(ctx, out.Completion.ID, domain.CompletionInput{Note: "rainy", Mood: 3, Location: "park"})
	require.NoError(t, err)
	assert.Equal(t, "rainy", c.Note)
	assert.True(t, c.CompletionDate.Equal(day(2, 10)), "date is not editable")

	_, err = tr.UpdateCompletion(ctx, "missing", domain.CompletionInput{})
	assert.ErrorIs(t, err, domain.ErrCompletionNotFound)

	require.NoError(t, tr.DeleteCompletion(ctx, out.Completion.ID))
	assert.ErrorIs(t, tr.DeleteCompletion(ctx, out.Completion.ID), domain.ErrCompletionNotFound)
}

func TestCompletionsInRange(t *testing.T) {
	tr, _, _ := newTracker(t)
	ctx := context.Background()
	h := createHabit(t, tr, domain.Daily, 1)
	for d := 2; d <= 5; d++ {
		_, err := tr.Complete(ctx, h.ID, day(d, 10), domain.CompletionInput{})
		require.NoError(t, err)
	}

	got, err := tr.CompletionsInRange(ctx, day(3, 0), day(5, 0))
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

// ─── Sweep & Recompute ──────────────────────────────────────────────────────

func TestSweep_ResetsElapsedPeriods(t *testing.T) {
	tr, _, c := newTracker(t)
	ctx := context.Background()
	active := createHabit(t, tr, domain.Daily, 2)
	paused := createHabit(t, tr, domain.Daily, 2)

	for _, at := range []time.Time{day(2, 10), day(2, 11), day(3, 10)} {
		_, err := tr.Complete(ctx, active.ID, at, domain.CompletionInput{})
		require.NoError(t, err)
	}
	_, err := tr.Complete(ctx, paused.ID, day(3, 10), domain.CompletionInput{})
	require.NoError(t, err)
	_, err = tr.SetEnabled(ctx, paused.ID, false)
	require.NoError(t, err)

	c.Set(day(3, 20))
	n, err := tr.Sweep(ctx)
	require.NoError(t, err)
	assert.Zero(t, n, "same period: nothing to reset")

	c.Set(day(5, 9))
	n, err = tr.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := tr.GetHabit(ctx, active.ID)
	require.NoError(t, err)
	assert.Zero(t, got.GoalProgress)
	assert.Zero(t, got.Streak)

	frozen, err := tr.GetHabit(ctx, paused.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, frozen.GoalProgress, "paused habits are frozen")
}

func TestGetHabit_AppliesElapsedPeriod(t *testing.T) {
	tr, _, c := newTracker(t)
	ctx := context.Background()
	h := createHabit(t, tr, domain.Daily, 1)
	_, err := tr.Complete(ctx, h.ID, day(2, 10), domain.CompletionInput{})
	require.NoError(t, err)

	c.Set(day(3, 9))
	got, err := tr.GetHabit(ctx, h.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Streak, "yesterday's goal keeps the streak alive")

	c.Set(day(4, 9))
	got, err = tr.GetHabit(ctx, h.ID)
	require.NoError(t, err)
	assert.Zero(t, got.Streak)
}

func TestRecompute_AfterDelete(t *testing.T) {
	tr, _, c := newTracker(t)
	ctx := context.Background()
	h := createHabit(t, tr, domain.Daily, 1)

	var ids []string
	for d := 2; d <= 4; d++ {
		out, err := tr.Complete(ctx, h.ID, day(d, 10), domain.CompletionInput{})
		require.NoError(t, err)
		ids = append(ids, out.Completion.ID)
	}
	c.Set(day(4, 12))

	require.NoError(t, tr.DeleteCompletion(ctx, ids[1]))
	got, err := tr.GetHabit(ctx, h.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, got.Streak, "delete leaves the streak until recompute")

	got, err = tr.Recompute(ctx, h.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Streak)
	assert.Len(t, got.CompletionHistory, 2)

	_, err = tr.Recompute(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrHabitNotFound)
}

// ─── Gamification ───────────────────────────────────────────────────────────

func TestSinks_ReceiveUnlockOnce(t *testing.T) {
	tr, _, _ := newTracker(t)
	ctx := context.Background()
	sink := &recordingSink{}
	tr.AddSink(sink)
	h := createHabit(t, tr, domain.Daily, 1)

	var unlocked []domain.BadgeUnlocked
	for d := 2; d <= 8; d++ {
		out, err := tr.Complete(ctx, h.ID, day(d, 6), domain.CompletionInput{})
		require.NoError(t, err)
		unlocked = append(unlocked, out.NewlyUnlocked...)
	}

	// Day 6 reaches five early completions; day 8 reaches a 7-day streak.
	assert.Equal(t, []string{domain.SpecialEarlyBird, "streak_7"}, sink.ids())
	require.Len(t, unlocked, 2)
	assert.Equal(t, domain.SpecialEarlyBird, unlocked[0].BadgeID)

	_, err := tr.Badges(ctx)
	require.NoError(t, err)
	assert.Len(t, sink.ids(), 2, "re-evaluation must not re-publish")
}

func TestNotifications_BadgeAndLevelUp(t *testing.T) {
	tr, db, c := newTracker(t)
	ctx := context.Background()
	tr.SetNotifications(engagement.NewNotificationService(db))
	h := createHabit(t, tr, domain.Daily, 1)

	var leveled bool
	for d := 2; d <= 10; d++ {
		out, err := tr.Complete(ctx, h.ID, day(d, 12), domain.CompletionInput{})
		require.NoError(t, err)
		leveled = leveled || out.LeveledUp
	}
	assert.True(t, leveled, "9 completions with a 9-day streak pass 100 XP")

	pending, err := tr.Notifications().Pending(ctx, c.Now(), 50)
	require.NoError(t, err)
	var types []domain.NotificationType
	for _, n := range pending {
		types = append(types, n.Type)
	}
	assert.Contains(t, types, domain.NotifyBadge)
	assert.Contains(t, types, domain.NotifyLevelUp)
}

func TestFailedSink_IsRetried(t *testing.T) {
	tr, _, c := newTracker(t)
	ctx := context.Background()
	sink := &recordingSink{fail: 1}
	tr.AddSink(sink)
	h := createHabit(t, tr, domain.Daily, 1)

	for d := 2; d <= 6; d++ {
		_, err := tr.Complete(ctx, h.ID, day(d, 6), domain.CompletionInput{})
		require.NoError(t, err)
	}
	assert.Empty(t, sink.ids())
	assert.Equal(t, 1, tr.PendingDeliveries())

	assert.Zero(t, tr.RetryDeliveries(ctx), "backoff not elapsed")

	c.Advance(time.Second)
	assert.Equal(t, 1, tr.RetryDeliveries(ctx))
	assert.Equal(t, []string{domain.SpecialEarlyBird}, sink.ids())
	assert.Zero(t, tr.PendingDeliveries())
}

func TestLevelAndSummary(t *testing.T) {
	tr, _, _ := newTracker(t)
	ctx := context.Background()
	h := createHabit(t, tr, domain.Daily, 1)
	createHabit(t, tr, domain.Weekly, 3)

	_, err := tr.Complete(ctx, h.ID, day(2, 10), domain.CompletionInput{})
	require.NoError(t, err)

	lp, err := tr.Level(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(15), lp.TotalXP)
	assert.Equal(t, 1, lp.Level)

	sum, err := tr.Summary(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Habits)
	assert.Equal(t, 2, sum.ActiveHabits)
	assert.Equal(t, 1, sum.Completions)
	assert.Equal(t, 1, sum.MaxStreak)
	assert.Equal(t, 23, sum.TotalBadges)
	assert.Zero(t, sum.UnlockedBadges)
}

func TestLevel_IgnoresLapsedStreaks(t *testing.T) {
	tr, _, c := newTracker(t)
	ctx := context.Background()
	h := createHabit(t, tr, domain.Daily, 1)

	for d := 2; d <= 9; d++ {
		_, err := tr.Complete(ctx, h.ID, day(d, 10), domain.CompletionInput{})
		require.NoError(t, err)
	}
	c.Set(day(9, 12))
	lp, err := tr.Level(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(8*10+8*5), lp.TotalXP)

	// No sweep has run; the streak lapsed days ago.
	c.Set(day(25, 12))
	lp, err = tr.Level(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(80), lp.TotalXP)

	sum, err := tr.Summary(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(80), sum.Level.TotalXP)
	assert.Zero(t, sum.MaxStreak)

	_, err = tr.Sweep(ctx)
	require.NoError(t, err)
	swept, err := tr.Level(ctx)
	require.NoError(t, err)
	assert.Equal(t, lp, swept)
}

func TestLocalNow_UsesCalendarZone(t *testing.T) {
	db, err := sqlite.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	zone := time.FixedZone("UTC-5", -5*60*60)
	tr := tracker.New(tracker.Deps{Habits: db, Completions: db}, tracker.Config{Location: zone})
	tr.SetClock(func() time.Time { return day(2, 3) })

	got := tr.LocalNow()
	assert.Equal(t, zone, got.Location())
	assert.Equal(t, 22, got.Hour())
	assert.Equal(t, 1, got.Day())
}

func TestStats(t *testing.T) {
	tr, _, _ := newTracker(t)
	ctx := context.Background()
	sink := &recordingSink{fail: 1}
	tr.AddSink(sink)
	h := createHabit(t, tr, domain.Daily, 1)

	for d := 2; d <= 6; d++ {
		_, err := tr.Complete(ctx, h.ID, day(d, 6), domain.CompletionInput{})
		require.NoError(t, err)
	}

	st := tr.Stats()
	assert.Equal(t, int64(5), st.SerializedWrites)
	assert.Zero(t, st.ActiveLanes)
	assert.Equal(t, 1, st.AnnouncedBadges)
	assert.Equal(t, 1, st.Deliveries.PendingRetries)
	assert.Zero(t, st.EvaluationsRun, "no background loop")
}

func TestStartBackground_PublishesAsync(t *testing.T) {
	tr, _, _ := newTracker(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sink := &recordingSink{ch: make(chan domain.BadgeUnlocked, 4)}
	tr.AddSink(sink)
	tr.StartBackground(ctx)

	h := createHabit(t, tr, domain.Daily, 1)
	for d := 2; d <= 6; d++ {
		out, err := tr.Complete(ctx, h.ID, day(d, 6), domain.CompletionInput{})
		require.NoError(t, err)
		assert.Empty(t, out.NewlyUnlocked, "background mode reports unlocks through sinks")
	}

	select {
	case ev := <-sink.ch:
		assert.Equal(t, domain.SpecialEarlyBird, ev.BadgeID)
	case <-time.After(5 * time.Second):
		t.Fatal("no badge published by background evaluation")
	}

	assert.Eventually(t, func() bool {
		return tr.Last().UnlockedCount() == 1
	}, 5*time.Second, 10*time.Millisecond)
}
