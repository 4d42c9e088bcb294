// Package engagement implements the habit progress and gamification engine.
// Period calendar, completion recorder, badge evaluator, level calculator,
// and the gamification session. Pure computation over snapshots: callers
// own persistence and per-habit serialization.
package engagement

import (
	"time"

	"github.com/habitforge/habitforge/internal/domain"
)

// Calendar answers period questions in a fixed location.
// Instants are converted to loc before their calendar fields are read.
type Calendar struct {
	loc *time.Location
}

// NewCalendar creates a calendar for loc (nil means time.Local).
func NewCalendar(loc *time.Location) Calendar {
	if loc == nil {
		loc = time.Local
	}
	return Calendar{loc: loc}
}

// Location returns the calendar's time zone.
func (c Calendar) Location() *time.Location {
	if c.loc == nil {
		return time.Local
	}
	return c.loc
}

// periodKey identifies one calendar window as a (year, sub-unit) pair.
type periodKey struct {
	year int
	unit int
}

// key returns the period containing t. ok is false for CUSTOM and unknown
// frequencies, which have no calendar window.
func (c Calendar) key(f domain.Frequency, t time.Time) (periodKey, bool) {
	t = t.In(c.Location())
	switch f {
	case domain.Daily:
		return periodKey{t.Year(), t.YearDay()}, true
	case domain.Weekly:
		y, w := t.ISOWeek()
		return periodKey{y, w}, true
	case domain.Monthly:
		return periodKey{t.Year(), int(t.Month())}, true
	case domain.Custom:
		return periodKey{}, false
	}
	return periodKey{}, false
}

// next returns the start of the period following the one containing t.
func (c Calendar) next(f domain.Frequency, t time.Time) time.Time {
	t = t.In(c.Location())
	y, m, d := t.Date()
	switch f {
	case domain.Daily:
		return time.Date(y, m, d+1, 0, 0, 0, 0, c.Location())
	case domain.Weekly:
		offset := (int(t.Weekday()) + 6) % 7 // days since Monday
		return time.Date(y, m, d-offset+7, 0, 0, 0, 0, c.Location())
	case domain.Monthly:
		return time.Date(y, m+1, 1, 0, 0, 0, 0, c.Location())
	}
	return t
}

// SamePeriod reports whether a and b fall in the same period.
// A zero prev is never in the same period. CUSTOM is always the same period.
func (c Calendar) SamePeriod(f domain.Frequency, prev, cur time.Time) bool {
	if prev.IsZero() {
		return false
	}
	if f == domain.Custom {
		return true
	}
	kp, ok := c.key(f, prev)
	if !ok {
		return false
	}
	kc, _ := c.key(f, cur)
	return kp == kc
}

// Consecutive reports whether cur falls in the period immediately after prev's.
// A zero prev is never consecutive. CUSTOM has no calendar order.
func (c Calendar) Consecutive(f domain.Frequency, prev, cur time.Time) bool {
	if prev.IsZero() {
		return false
	}
	kn, ok := c.key(f, c.next(f, prev))
	if !ok {
		return false
	}
	kc, _ := c.key(f, cur)
	return kn == kc
}
