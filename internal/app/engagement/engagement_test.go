package engagement_test

import (
	"testing"
	"time"

	"github.com/habitforge/habitforge/internal/app/engagement"
	"github.com/habitforge/habitforge/internal/domain"
	"github.com/habitforge/habitforge/internal/infra/sqlite"
)

// testDB creates a temporary SQLite database for testing.
func testDB(t *testing.T) *sqlite.DB {
	t.Helper()
	dir := t.TempDir()
	db, err := sqlite.Open(dir)
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

var utc = engagement.NewCalendar(time.UTC)

// at builds a UTC instant.
func at(year int, month time.Month, day, hour int) time.Time {
	return time.Date(year, month, day, hour, 0, 0, 0, time.UTC)
}

func newHabit(id string, f domain.Frequency, goal int) domain.Habit {
	return domain.Habit{
		ID:        id,
		Name:      id,
		Frequency: f,
		Goal:      goal,
		IsEnabled: true,
	}
}

// complete records one completion per instant and returns the final habit.
func complete(t *testing.T, r *engagement.Recorder, h domain.Habit, times ...time.Time) domain.Habit {
	t.Helper()
	for _, ts := range times {
		h, _ = r.ResetIfPeriodElapsed(h, ts)
		rec := r.RecordCompletion(h, ts, domain.CompletionInput{})
		if !rec.Recorded {
			t.Fatalf("completion at %v not recorded", ts)
		}
		h = rec.Habit
		if h.GoalProgress < 0 || h.GoalProgress > h.Goal {
			t.Fatalf("goal progress %d out of [0, %d]", h.GoalProgress, h.Goal)
		}
	}
	return h
}

func completionsAt(habitID string, times ...time.Time) []domain.HabitCompletion {
	out := make([]domain.HabitCompletion, len(times))
	for i, ts := range times {
		out[i] = domain.HabitCompletion{ID: habitID + "-" + ts.Format(time.RFC3339), HabitID: habitID, CompletionDate: ts}
	}
	return out
}
