package engagement

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/habitforge/habitforge/internal/domain"
)

// DefaultHabitMilestones are the per-habit streak tiers tracked in
// Habit.UnlockedBadgeMilestones.
var DefaultHabitMilestones = []int{7, 30, 100}

// Recorder turns completion events into habit state transitions.
// It never touches storage and is safe for concurrent use; callers must
// serialize calls for the same habit.
type Recorder struct {
	cal        Calendar
	milestones []int
	newID      func() string
}

// NewRecorder creates a recorder. Empty milestones fall back to the defaults.
func NewRecorder(cal Calendar, milestones []int) *Recorder {
	if len(milestones) == 0 {
		milestones = DefaultHabitMilestones
	}
	ms := append([]int(nil), milestones...)
	sort.Ints(ms)
	return &Recorder{cal: cal, milestones: ms, newID: uuid.NewString}
}

// Calendar returns the recorder's period calendar.
func (r *Recorder) Calendar() Calendar { return r.cal }

// Recorded is the result of RecordCompletion.
type Recorded struct {
	Habit      domain.Habit
	Completion domain.HabitCompletion

	// Recorded is false when the habit is disabled; nothing changed.
	Recorded bool
	// GoalMet is true when this completion satisfied the period's goal.
	GoalMet bool
	// NewMilestones lists streak tiers crossed for the first time.
	NewMilestones []int
}

// RecordCompletion applies one completion at the given instant.
//
// Not idempotent: every call is a new completion event. A disabled habit is a
// silent no-op.
func (r *Recorder) RecordCompletion(h domain.Habit, at time.Time, in domain.CompletionInput) Recorded {
	if !h.IsEnabled {
		return Recorded{Habit: h}
	}

	next := h.Clone()
	completion := r.newCompletion(h.ID, at, in)

	if r.cal.SamePeriod(h.Frequency, h.LastCompletedDate, at) {
		next.GoalProgress++
	} else {
		next.GoalProgress = 1 // first tally of a new period
	}
	next.CompletionHistory = append(next.CompletionHistory, at)
	next.LastCompletedDate = at

	out := Recorded{Completion: completion, Recorded: true}
	if next.GoalProgress >= next.Goal {
		next.Streak = r.satisfiedStreak(h, at)
		next.GoalProgress = 0
		next.LastSatisfiedDate = at
		out.GoalMet = true
		out.NewMilestones = r.crossMilestones(&next)
	}
	out.Habit = next
	return out
}

// RecordBackfill applies a completion dated before the habit's last one.
// The habit is rebuilt from existing plus the new completion, so history
// stays ordered and the streak breaks only on a real gap. The result
// describes state as of the latest completion.
func (r *Recorder) RecordBackfill(h domain.Habit, at time.Time, in domain.CompletionInput, existing []domain.HabitCompletion) Recorded {
	if !h.IsEnabled {
		return Recorded{Habit: h}
	}

	completion := r.newCompletion(h.ID, at, in)
	all := append(append([]domain.HabitCompletion(nil), existing...), completion)
	next, crossed := r.RecomputeStreakFromHistory(h, all)

	// The completion meets the goal when it closes a tally in its period.
	inPeriod := 0
	for _, c := range all {
		if c.HabitID == h.ID && r.cal.SamePeriod(h.Frequency, c.CompletionDate, at) {
			inPeriod++
		}
	}
	return Recorded{
		Habit:         next,
		Completion:    completion,
		Recorded:      true,
		GoalMet:       inPeriod%max(h.Goal, 1) == 0,
		NewMilestones: crossed,
	}
}

func (r *Recorder) newCompletion(habitID string, at time.Time, in domain.CompletionInput) domain.HabitCompletion {
	return domain.HabitCompletion{
		ID:             r.newID(),
		HabitID:        habitID,
		CompletionDate: at,
		Note:           in.Note,
		Mood:           in.Mood,
		Location:       in.Location,
		PhotoRef:       in.PhotoRef,
	}
}

// satisfiedStreak returns the streak after the period containing at is satisfied.
// Continuity is judged against the last satisfied period.
func (r *Recorder) satisfiedStreak(h domain.Habit, at time.Time) int {
	switch {
	case h.Frequency == domain.Custom:
		return h.Streak + 1
	case h.LastSatisfiedDate.IsZero():
		return 1
	case r.cal.SamePeriod(h.Frequency, h.LastSatisfiedDate, at):
		return h.Streak // period already counted
	case r.cal.Consecutive(h.Frequency, h.LastSatisfiedDate, at):
		return h.Streak + 1
	default:
		return 1
	}
}

// crossMilestones records tiers reached by h.Streak and returns the new ones.
func (r *Recorder) crossMilestones(h *domain.Habit) []int {
	var crossed []int
	for _, m := range r.milestones {
		if h.Streak >= m && !h.HasMilestone(m) {
			h.UnlockedBadgeMilestones = append(h.UnlockedBadgeMilestones, m)
			crossed = append(crossed, m)
		}
	}
	return crossed
}

// ResetIfPeriodElapsed zeroes goal progress once now has moved past the period
// of the last completion, and zeroes the streak when the period just before now
// was not satisfied. Reports whether anything changed.
func (r *Recorder) ResetIfPeriodElapsed(h domain.Habit, now time.Time) (domain.Habit, bool) {
	if h.LastCompletedDate.IsZero() || now.Before(h.LastCompletedDate) {
		return h, false
	}
	if r.cal.SamePeriod(h.Frequency, h.LastCompletedDate, now) {
		return h, false
	}

	next := h.Clone()
	changed := false
	if next.GoalProgress != 0 {
		next.GoalProgress = 0
		changed = true
	}

	alive := r.cal.SamePeriod(h.Frequency, h.LastSatisfiedDate, now) ||
		r.cal.Consecutive(h.Frequency, h.LastSatisfiedDate, now)
	if !alive && next.Streak != 0 {
		next.Streak = 0
		changed = true
	}
	return next, changed
}

// RecomputeStreakFromHistory rebuilds goal progress, streak, and history for h
// from the given completions (those of other habits are ignored). The result
// describes state as of the last completion; apply ResetIfPeriodElapsed to
// bring it up to a later instant. Milestones already counted are kept; newly
// reached tiers are added and returned.
func (r *Recorder) RecomputeStreakFromHistory(h domain.Habit, completions []domain.HabitCompletion) (domain.Habit, []int) {
	var times []time.Time
	for _, c := range completions {
		if c.HabitID == h.ID {
			times = append(times, c.CompletionDate)
		}
	}
	sort.Slice(times, func(i, j int) bool { return times[i].Before(times[j]) })

	next := h.Clone()
	next.CompletionHistory = times
	next.GoalProgress = 0
	next.Streak = 0
	next.LastCompletedDate = time.Time{}
	next.LastSatisfiedDate = time.Time{}
	if len(times) == 0 {
		return next, nil
	}
	goal := max(h.Goal, 1)
	next.LastCompletedDate = times[len(times)-1]

	if h.Frequency == domain.Custom {
		next.Streak = len(times) / goal
		next.GoalProgress = len(times) % goal
		if next.Streak > 0 {
			next.LastSatisfiedDate = times[next.Streak*goal-1]
		}
		return next, r.crossMilestones(&next)
	}

	// Replay period by period: each period restarts the tally.
	var periodStart time.Time
	count := 0
	for _, t := range times {
		if !r.cal.SamePeriod(h.Frequency, periodStart, t) {
			periodStart = t
			count = 0
		}
		count++
		if count%goal != 0 {
			continue
		}
		switch {
		case next.LastSatisfiedDate.IsZero():
			next.Streak = 1
		case r.cal.SamePeriod(h.Frequency, next.LastSatisfiedDate, t):
			// already counted
		case r.cal.Consecutive(h.Frequency, next.LastSatisfiedDate, t):
			next.Streak++
		default:
			next.Streak = 1
		}
		next.LastSatisfiedDate = t
	}
	next.GoalProgress = count % goal
	return next, r.crossMilestones(&next)
}
