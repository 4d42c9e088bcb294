// Package tracker is the habit tracking application service. It owns the
// write path for habits and completions and drives badge and level
// evaluation after every change.
//
// Concurrency model:
//   - Writes to one habit are serialized by habit id
//   - Writes to different habits run in parallel
//   - Evaluation runs on a consistent snapshot, after the write that
//     produced it has committed, and bursts of writes collapse into one pass
package tracker

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/habitforge/habitforge/internal/app/engagement"
	"github.com/habitforge/habitforge/internal/domain"
	"github.com/habitforge/habitforge/internal/infra/metrics"
	"github.com/habitforge/habitforge/internal/infra/scheduler"
	"github.com/habitforge/habitforge/internal/logger"
)

// Config tunes the tracker.
type Config struct {
	Location        *time.Location
	Catalog         engagement.CatalogConfig
	HabitMilestones []int
	SweepWorkers    int
}

// Deps are the stores the tracker works against.
type Deps struct {
	Habits      domain.HabitStore
	Completions domain.CompletionStore
	Snapshots   domain.SnapshotReader // optional; falls back to two list calls
	Ledger      domain.BadgeLedger    // optional; nil keeps announcements in memory
}

// Outcome is the result of Complete.
type Outcome struct {
	Habit         domain.Habit            `json:"habit"`
	Completion    *domain.HabitCompletion `json:"completion,omitempty"`
	Recorded      bool                    `json:"recorded"`
	GoalMet       bool                    `json:"goal_met"`
	NewMilestones []int                   `json:"new_milestones,omitempty"`

	// NewlyUnlocked is filled only when evaluation runs inline, i.e. before
	// StartBackground. In background mode unlocks reach the sinks instead.
	NewlyUnlocked []domain.BadgeUnlocked `json:"newly_unlocked,omitempty"`
	LeveledUp     bool                   `json:"leveled_up,omitempty"`
}

// Summary is an at-a-glance view of overall progress.
type Summary struct {
	Habits         int                  `json:"habits"`
	ActiveHabits   int                  `json:"active_habits"`
	Completions    int                  `json:"completions"`
	MaxStreak      int                  `json:"max_streak"`
	Level          domain.LevelProgress `json:"level"`
	UnlockedBadges int                  `json:"unlocked_badges"`
	TotalBadges    int                  `json:"total_badges"`
}

// Tracker coordinates habits, completions and gamification.
type Tracker struct {
	habits      domain.HabitStore
	completions domain.CompletionStore
	snapshots   domain.SnapshotReader

	recorder  *engagement.Recorder
	evaluator *engagement.Evaluator
	session   *engagement.Session
	serial    *scheduler.Serializer

	mu            sync.RWMutex
	sinks         []domain.BadgeSink
	notifications *engagement.NotificationService
	last          engagement.Evaluation

	coalescer  *scheduler.Coalescer
	background atomic.Bool
	retries    *scheduler.RetryQueue[delivery]

	workers int
	now     func() time.Time
}

// New creates a tracker.
func New(deps Deps, cfg Config) *Tracker {
	cal := engagement.NewCalendar(cfg.Location)
	evaluator := engagement.NewEvaluator(engagement.NewCatalog(cfg.Catalog), cal)
	workers := cfg.SweepWorkers
	if workers <= 0 {
		workers = 4
	}
	return &Tracker{
		habits:      deps.Habits,
		completions: deps.Completions,
		snapshots:   deps.Snapshots,
		recorder:    engagement.NewRecorder(cal, cfg.HabitMilestones),
		evaluator:   evaluator,
		session:     engagement.NewSession(evaluator, deps.Ledger),
		serial:      scheduler.NewSerializer(),
		retries:     scheduler.NewRetryQueue[delivery](scheduler.DefaultRetryConfig()),
		workers:     workers,
		now:         time.Now,
	}
}

// AddSink registers a receiver for newly unlocked badges.
func (t *Tracker) AddSink(s domain.BadgeSink) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sinks = append(t.sinks, s)
}

// SetNotifications wires the notification queue. It also becomes a badge sink.
func (t *Tracker) SetNotifications(n *engagement.NotificationService) {
	t.mu.Lock()
	t.notifications = n
	t.mu.Unlock()
	t.AddSink(n)
}

// Notifications returns the notification queue, or nil.
func (t *Tracker) Notifications() *engagement.NotificationService {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.notifications
}

// SetClock overrides the time source (tests).
func (t *Tracker) SetClock(now func() time.Time) {
	t.now = now
	t.retries.SetClock(now)
}

// LocalNow returns the current time in the calendar's location.
func (t *Tracker) LocalNow() time.Time {
	return t.now().In(t.Calendar().Location())
}

// Calendar returns the period calendar in use.
func (t *Tracker) Calendar() engagement.Calendar {
	return t.recorder.Calendar()
}

// StartBackground moves evaluation onto a coalescing goroutine and starts
// retrying failed sink deliveries. Both live until ctx is cancelled.
func (t *Tracker) StartBackground(ctx context.Context) {
	go scheduler.Every(ctx, time.Second, func(ctx context.Context) {
		t.RetryDeliveries(ctx)
	})
	t.coalescer = scheduler.NewCoalescer(func(ctx context.Context) {
		if _, err := t.Reevaluate(ctx); err != nil {
			logger.Error("background evaluation failed", "err", err)
		}
	})
	go t.coalescer.Run(ctx)
	t.background.Store(true)
	t.coalescer.Trigger()
}

// ─── Habits ─────────────────────────────────────────────────────────────────

// CreateHabit validates and stores a new, enabled habit.
func (t *Tracker) CreateHabit(ctx context.Context, in domain.NewHabit) (domain.Habit, error) {
	if err := in.Validate(); err != nil {
		return domain.Habit{}, err
	}
	h := domain.Habit{
		ID:        uuid.NewString(),
		Name:      in.Name,
		Category:  in.Category,
		Frequency: in.Frequency,
		Goal:      in.Goal,
		IsEnabled: true,
		CreatedAt: t.now(),
	}
	if err := t.habits.CreateHabit(ctx, h); err != nil {
		return domain.Habit{}, fmt.Errorf("create habit: %w", err)
	}
	logger.Info("habit created", "id", h.ID, "name", h.Name, "frequency", h.Frequency, "goal", h.Goal)
	t.requestEvaluation(ctx)
	return h, nil
}

// GetHabit returns a habit with any elapsed period already applied.
func (t *Tracker) GetHabit(ctx context.Context, id string) (domain.Habit, error) {
	var out domain.Habit
	err := t.serial.Do(ctx, id, func() error {
		h, err := t.habits.GetHabit(ctx, id)
		if err != nil {
			return err
		}
		out, err = t.refresh(ctx, *h, t.now())
		return err
	})
	return out, err
}

// ListHabits sweeps elapsed periods and returns every habit.
func (t *Tracker) ListHabits(ctx context.Context) ([]domain.Habit, error) {
	if _, err := t.Sweep(ctx); err != nil {
		return nil, err
	}
	return t.habits.ListHabits(ctx)
}

// SetEnabled pauses or resumes a habit. A paused habit ignores completions
// and is skipped by the sweep, so its streak is frozen.
func (t *Tracker) SetEnabled(ctx context.Context, id string, enabled bool) (domain.Habit, error) {
	var out domain.Habit
	err := t.serial.Do(ctx, id, func() error {
		h, err := t.habits.GetHabit(ctx, id)
		if err != nil {
			return err
		}
		h.IsEnabled = enabled
		if err := t.habits.UpdateHabit(ctx, *h); err != nil {
			return fmt.Errorf("update habit: %w", err)
		}
		out = *h
		return nil
	})
	if err == nil {
		logger.Info("habit toggled", "id", id, "enabled", enabled)
	}
	return out, err
}

// Recompute rebuilds a habit's progress and streak from its stored
// completions. Used after completions are edited or deleted.
func (t *Tracker) Recompute(ctx context.Context, id string) (domain.Habit, error) {
	var out domain.Habit
	err := t.serial.Do(ctx, id, func() error {
		h, err := t.habits.GetHabit(ctx, id)
		if err != nil {
			return err
		}
		completions, err := t.completions.ListCompletionsByHabit(ctx, id)
		if err != nil {
			return fmt.Errorf("list completions: %w", err)
		}
		next, _ := t.recorder.RecomputeStreakFromHistory(*h, completions)
		next, _ = t.recorder.ResetIfPeriodElapsed(next, t.now())
		if err := t.habits.UpdateHabit(ctx, next); err != nil {
			return fmt.Errorf("update habit: %w", err)
		}
		out = next
		return nil
	})
	if err != nil {
		return out, err
	}
	logger.Info("habit recomputed", "id", id, "streak", out.Streak, "progress", out.GoalProgress)
	t.requestEvaluation(ctx)
	return out, nil
}

// ─── Completions ────────────────────────────────────────────────────────────

// Complete records one completion of a habit at the given instant (zero
// means now). Completing a paused habit succeeds with Recorded=false.
// An instant before the habit's last completion is backfilled: the habit
// is rebuilt from its full history.
func (t *Tracker) Complete(ctx context.Context, id string, at time.Time, in domain.CompletionInput) (Outcome, error) {
	if err := in.Validate(); err != nil {
		return Outcome{}, err
	}
	if at.IsZero() {
		at = t.now()
	}

	var out Outcome
	err := t.serial.Do(ctx, id, func() error {
		h, err := t.habits.GetHabit(ctx, id)
		if err != nil {
			return err
		}
		if !h.IsEnabled {
			out = Outcome{Habit: *h}
			return nil
		}

		var rec engagement.Recorded
		if at.Before(h.LastCompletedDate) {
			existing, err := t.completions.ListCompletionsByHabit(ctx, id)
			if err != nil {
				return fmt.Errorf("list completions: %w", err)
			}
			rec = t.recorder.RecordBackfill(*h, at, in, existing)
			rec.Habit, _ = t.recorder.ResetIfPeriodElapsed(rec.Habit, t.now())
			logger.Debug("backdated completion", "habit", id, "at", at)
		} else {
			cur, reset := t.recorder.ResetIfPeriodElapsed(*h, at)
			if reset {
				metrics.StreakResets.Inc()
			}
			rec = t.recorder.RecordCompletion(cur, at, in)
		}
		if err := t.habits.SaveCompletion(ctx, rec.Habit, rec.Completion); err != nil {
			return fmt.Errorf("save completion: %w", err)
		}
		completion := rec.Completion
		out = Outcome{
			Habit:         rec.Habit,
			Completion:    &completion,
			Recorded:      true,
			GoalMet:       rec.GoalMet,
			NewMilestones: rec.NewMilestones,
		}
		return nil
	})
	if err != nil {
		return Outcome{}, err
	}

	if !out.Recorded {
		metrics.CompletionsSkipped.Inc()
		logger.Debug("completion ignored for paused habit", "id", id)
		return out, nil
	}

	freq := string(out.Habit.Frequency)
	metrics.CompletionsRecorded.WithLabelValues(freq).Inc()
	if out.GoalMet {
		metrics.GoalsMet.WithLabelValues(freq).Inc()
	}
	logger.Info("completion recorded", "habit", id, "streak", out.Habit.Streak,
		"progress", out.Habit.GoalProgress, "goal_met", out.GoalMet)
	for _, m := range out.NewMilestones {
		logger.Info("streak milestone reached", "habit", id, "milestone", m)
	}

	if ev, ran := t.requestEvaluation(ctx); ran {
		out.NewlyUnlocked = ev.NewlyUnlocked
		out.LeveledUp = ev.LeveledUp
	}
	return out, nil
}

// Completions returns one habit's completions.
func (t *Tracker) Completions(ctx context.Context, habitID string) ([]domain.HabitCompletion, error) {
	if _, err := t.habits.GetHabit(ctx, habitID); err != nil {
		return nil, err
	}
	return t.completions.ListCompletionsByHabit(ctx, habitID)
}

// CompletionsInRange returns completions with from <= date < to.
func (t *Tracker) CompletionsInRange(ctx context.Context, from, to time.Time) ([]domain.HabitCompletion, error) {
	return t.completions.ListCompletionsInRange(ctx, from, to)
}

// UpdateCompletion edits the journal fields of a completion. The date and
// habit are fixed.
func (t *Tracker) UpdateCompletion(ctx context.Context, id string, in domain.CompletionInput) (domain.HabitCompletion, error) {
	if err := in.Validate(); err != nil {
		return domain.HabitCompletion{}, err
	}
	c, err := t.completions.GetCompletion(ctx, id)
	if err != nil {
		return domain.HabitCompletion{}, err
	}
	c.Note = in.Note
	c.Mood = in.Mood
	c.Location = in.Location
	c.PhotoRef = in.PhotoRef
	if err := t.completions.UpdateCompletion(ctx, *c); err != nil {
		return domain.HabitCompletion{}, err
	}
	return *c, nil
}

// DeleteCompletion removes a completion. The habit's streak is left as is;
// call Recompute to rebuild it from the remaining history.
func (t *Tracker) DeleteCompletion(ctx context.Context, id string) error {
	if err := t.completions.DeleteCompletion(ctx, id); err != nil {
		return err
	}
	logger.Info("completion deleted", "id", id)
	t.requestEvaluation(ctx)
	return nil
}

// ─── Sweep ──────────────────────────────────────────────────────────────────

// Sweep applies elapsed-period resets to every enabled habit in parallel.
// Returns how many habits changed.
func (t *Tracker) Sweep(ctx context.Context) (int, error) {
	habits, err := t.habits.ListHabits(ctx)
	if err != nil {
		return 0, fmt.Errorf("list habits: %w", err)
	}
	now := t.now()

	var changed atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(t.workers)
	for _, h := range habits {
		if !h.IsEnabled {
			continue
		}
		id := h.ID
		g.Go(func() error {
			return t.serial.Do(gctx, id, func() error {
				cur, err := t.habits.GetHabit(gctx, id)
				if err != nil {
					return err
				}
				next, err := t.refresh(gctx, *cur, now)
				if err != nil {
					return err
				}
				if next.GoalProgress != cur.GoalProgress || next.Streak != cur.Streak {
					changed.Add(1)
				}
				return nil
			})
		})
	}
	if err := g.Wait(); err != nil {
		return int(changed.Load()), fmt.Errorf("sweep: %w", err)
	}

	n := int(changed.Load())
	if n > 0 {
		logger.Info("period sweep reset habits", "count", n)
		t.requestEvaluation(ctx)
	}
	return n, nil
}

// refresh applies ResetIfPeriodElapsed and persists a change. Caller holds
// the habit's lane.
func (t *Tracker) refresh(ctx context.Context, h domain.Habit, now time.Time) (domain.Habit, error) {
	if !h.IsEnabled {
		return h, nil
	}
	next, changed := t.recorder.ResetIfPeriodElapsed(h, now)
	if !changed {
		return h, nil
	}
	if next.GoalProgress == h.GoalProgress && next.Streak == h.Streak {
		return h, nil
	}
	if err := t.habits.UpdateHabit(ctx, next); err != nil {
		return h, fmt.Errorf("reset habit %s: %w", h.ID, err)
	}
	metrics.StreakResets.Inc()
	logger.Debug("habit period elapsed", "id", h.ID, "streak", next.Streak)
	return next, nil
}

// ─── Evaluation ─────────────────────────────────────────────────────────────

// requestEvaluation schedules a background pass, or runs one inline when no
// background loop is active. ran reports an inline pass.
func (t *Tracker) requestEvaluation(ctx context.Context) (ev engagement.Evaluation, ran bool) {
	if t.background.Load() {
		t.coalescer.Trigger()
		return ev, false
	}
	ev, err := t.Reevaluate(ctx)
	if err != nil {
		logger.Error("evaluation failed", "err", err)
	}
	return ev, true
}

// Reevaluate runs badges and XP over a fresh snapshot and publishes every
// newly unlocked badge to the sinks.
func (t *Tracker) Reevaluate(ctx context.Context) (engagement.Evaluation, error) {
	snap, err := t.snapshot(ctx)
	if err != nil {
		return engagement.Evaluation{}, fmt.Errorf("snapshot: %w", err)
	}
	return t.evaluate(ctx, snap)
}

func (t *Tracker) evaluate(ctx context.Context, snap domain.Snapshot) (engagement.Evaluation, error) {
	start := time.Now()
	ev, err := t.session.Evaluate(ctx, snap.Habits, snap.Completions, t.now())
	t.publish(ctx, ev)
	if err != nil {
		return ev, err
	}

	t.mu.Lock()
	t.last = ev
	t.mu.Unlock()

	metrics.EvaluationLatency.Observe(time.Since(start).Seconds())
	metrics.Level.Set(float64(ev.Level.Level))
	metrics.TotalXP.Set(float64(ev.Level.TotalXP))
	maxStreak := 0
	for _, h := range snap.Habits {
		maxStreak = max(maxStreak, h.Streak)
	}
	metrics.MaxStreak.Set(float64(maxStreak))
	return ev, nil
}

// Last returns the most recent evaluation.
func (t *Tracker) Last() engagement.Evaluation {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.last
}

func (t *Tracker) publish(ctx context.Context, ev engagement.Evaluation) {
	t.mu.RLock()
	sinks := append([]domain.BadgeSink(nil), t.sinks...)
	notifications := t.notifications
	t.mu.RUnlock()

	for _, b := range ev.NewlyUnlocked {
		metrics.BadgesUnlocked.WithLabelValues(string(b.Type)).Inc()
		logger.Info("badge unlocked", "badge", b.BadgeID, "title", b.Title, "bonus_xp", b.BonusXP)
		for _, s := range sinks {
			t.deliver(ctx, scheduler.RetryEntry[delivery]{Value: delivery{sink: s, event: b}})
		}
	}

	if ev.LeveledUp {
		logger.Info("level up", "level", ev.Level.Level, "xp", ev.Level.TotalXP)
		if notifications != nil {
			if err := notifications.LevelUp(ctx, ev.Level, t.now()); err != nil {
				logger.Warn("level-up notification failed", "err", err)
			}
		}
	}
}

// delivery is one badge event bound for one sink.
type delivery struct {
	sink  domain.BadgeSink
	event domain.BadgeUnlocked
}

// deliver publishes to the entry's sink and queues a retry on failure.
func (t *Tracker) deliver(ctx context.Context, entry scheduler.RetryEntry[delivery]) bool {
	d := entry.Value
	err := d.sink.PublishBadge(ctx, d.event)
	if err == nil {
		metrics.BadgeDeliveries.WithLabelValues("delivered").Inc()
		return true
	}
	entry.Error = err.Error()
	if t.retries.ScheduleRetry(entry) {
		metrics.BadgeDeliveries.WithLabelValues("retried").Inc()
		logger.Warn("badge sink failed, will retry", "badge", d.event.BadgeID, "attempt", entry.Attempt+1, "err", err)
		return false
	}
	metrics.BadgeDeliveries.WithLabelValues("dropped").Inc()
	logger.Error("badge sink failed, giving up", "badge", d.event.BadgeID, "attempts", entry.Attempt, "err", err)
	return false
}

// RetryDeliveries re-publishes every failed delivery whose backoff has
// elapsed. Returns how many succeeded.
func (t *Tracker) RetryDeliveries(ctx context.Context) int {
	n := 0
	for _, entry := range t.retries.DrainReady() {
		if t.deliver(ctx, entry) {
			n++
		}
	}
	return n
}

// PendingDeliveries reports failed deliveries still waiting for a retry.
func (t *Tracker) PendingDeliveries() int {
	return t.retries.Len()
}

// snapshot reads habits and completions and applies elapsed periods to
// the enabled habits in memory, so reads never count a lapsed streak.
// Stored state is left to the sweep.
func (t *Tracker) snapshot(ctx context.Context) (domain.Snapshot, error) {
	var snap domain.Snapshot
	var err error
	if t.snapshots != nil {
		snap, err = t.snapshots.Snapshot(ctx)
		if err != nil {
			return snap, err
		}
	} else {
		if snap.Habits, err = t.habits.ListHabits(ctx); err != nil {
			return snap, err
		}
		if snap.Completions, err = t.completions.ListCompletions(ctx); err != nil {
			return snap, err
		}
	}

	now := t.now()
	for i, h := range snap.Habits {
		if h.IsEnabled {
			snap.Habits[i], _ = t.recorder.ResetIfPeriodElapsed(h, now)
		}
	}
	return snap, nil
}

// ─── Queries ────────────────────────────────────────────────────────────────

// Badges evaluates and returns the full catalog with unlock state.
// Unlocks found here are published like any other evaluation.
func (t *Tracker) Badges(ctx context.Context) ([]domain.Badge, error) {
	ev, err := t.Reevaluate(ctx)
	if err != nil {
		return nil, err
	}
	return ev.Badges, nil
}

// Level returns current XP and level progress.
func (t *Tracker) Level(ctx context.Context) (domain.LevelProgress, error) {
	snap, err := t.snapshot(ctx)
	if err != nil {
		return domain.LevelProgress{}, err
	}
	stats := t.Calendar().Aggregate(snap.Habits, snap.Completions)
	return engagement.ComputeXPAndLevel(stats.TotalCompletions, stats.Streaks), nil
}

// Summary aggregates counts, level and badge totals.
func (t *Tracker) Summary(ctx context.Context) (Summary, error) {
	snap, err := t.snapshot(ctx)
	if err != nil {
		return Summary{}, err
	}
	ev, err := t.evaluate(ctx, snap)
	if err != nil {
		return Summary{}, err
	}

	s := Summary{
		Habits:         len(snap.Habits),
		Completions:    len(snap.Completions),
		Level:          ev.Level,
		UnlockedBadges: ev.UnlockedCount(),
		TotalBadges:    len(ev.Badges),
	}
	for _, h := range snap.Habits {
		if h.IsEnabled {
			s.ActiveHabits++
		}
		s.MaxStreak = max(s.MaxStreak, h.Streak)
	}
	return s, nil
}

// RuntimeStats describes the tracker's background machinery.
type RuntimeStats struct {
	ActiveLanes          int                  `json:"active_lanes"`
	SerializedWrites     int64                `json:"serialized_writes"`
	EvaluationsRequested int64                `json:"evaluations_requested"`
	EvaluationsRun       int64                `json:"evaluations_run"`
	AnnouncedBadges      int                  `json:"announced_badges"`
	Deliveries           scheduler.RetryStats `json:"deliveries"`
}

// Stats reports lane, evaluation and delivery counters.
func (t *Tracker) Stats() RuntimeStats {
	st := RuntimeStats{
		ActiveLanes:      t.serial.ActiveKeys(),
		SerializedWrites: t.serial.TotalRuns(),
		AnnouncedBadges:  len(t.session.Known()),
		Deliveries:       t.retries.RetryStats(),
	}
	if t.background.Load() {
		st.EvaluationsRequested, st.EvaluationsRun = t.coalescer.Stats()
	}
	return st
}
