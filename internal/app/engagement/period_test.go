package engagement_test

import (
	"testing"
	"time"

	"github.com/habitforge/habitforge/internal/app/engagement"
	"github.com/habitforge/habitforge/internal/domain"
)

func TestCalendar_SamePeriod(t *testing.T) {
	tests := []struct {
		name      string
		freq      domain.Frequency
		prev, cur time.Time
		want      bool
	}{
		{"daily same day", domain.Daily, at(2026, 3, 10, 6), at(2026, 3, 10, 23), true},
		{"daily next day", domain.Daily, at(2026, 3, 10, 23), at(2026, 3, 11, 0), false},
		{"daily same yearday other year", domain.Daily, at(2025, 3, 10, 9), at(2026, 3, 10, 9), false},
		{"weekly monday and sunday", domain.Weekly, at(2026, 3, 9, 8), at(2026, 3, 15, 20), true},
		{"weekly sunday and monday", domain.Weekly, at(2026, 3, 15, 20), at(2026, 3, 16, 8), false},
		{"weekly iso week spans new year", domain.Weekly, at(2026, 12, 30, 9), at(2027, 1, 1, 9), true},
		{"weekly week 52 in two years", domain.Weekly, at(2025, 12, 22, 9), at(2026, 12, 21, 9), false},
		{"monthly first and last day", domain.Monthly, at(2026, 1, 1, 0), at(2026, 1, 31, 23), true},
		{"monthly same month other year", domain.Monthly, at(2025, 1, 15, 9), at(2026, 1, 15, 9), false},
		{"custom always same", domain.Custom, at(2020, 1, 1, 0), at(2026, 6, 1, 0), true},
		{"zero prev daily", domain.Daily, time.Time{}, at(2026, 3, 10, 9), false},
		{"zero prev custom", domain.Custom, time.Time{}, at(2026, 3, 10, 9), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := utc.SamePeriod(tt.freq, tt.prev, tt.cur); got != tt.want {
				t.Errorf("SamePeriod(%s, %v, %v) = %v, want %v", tt.freq, tt.prev, tt.cur, got, tt.want)
			}
		})
	}
}

func TestCalendar_Consecutive(t *testing.T) {
	tests := []struct {
		name      string
		freq      domain.Frequency
		prev, cur time.Time
		want      bool
	}{
		{"daily next day", domain.Daily, at(2026, 3, 10, 23), at(2026, 3, 11, 0), true},
		{"daily gap", domain.Daily, at(2026, 3, 10, 9), at(2026, 3, 12, 9), false},
		{"daily same day", domain.Daily, at(2026, 3, 10, 9), at(2026, 3, 10, 10), false},
		{"daily across new year", domain.Daily, at(2025, 12, 31, 22), at(2026, 1, 1, 7), true},
		{"daily across leap day", domain.Daily, at(2028, 2, 29, 9), at(2028, 3, 1, 9), true},
		{"weekly next week", domain.Weekly, at(2026, 3, 15, 20), at(2026, 3, 16, 8), true},
		{"weekly skip a week", domain.Weekly, at(2026, 3, 9, 8), at(2026, 3, 23, 8), false},
		{"weekly week 53 to week 1", domain.Weekly, at(2026, 12, 30, 9), at(2027, 1, 5, 9), true},
		{"monthly next month", domain.Monthly, at(2026, 1, 31, 9), at(2026, 2, 1, 9), true},
		{"monthly december to january", domain.Monthly, at(2025, 12, 15, 9), at(2026, 1, 2, 9), true},
		{"monthly skip", domain.Monthly, at(2026, 1, 15, 9), at(2026, 3, 1, 9), false},
		{"custom never", domain.Custom, at(2026, 3, 10, 9), at(2026, 3, 11, 9), false},
		{"zero prev", domain.Daily, time.Time{}, at(2026, 3, 10, 9), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := utc.Consecutive(tt.freq, tt.prev, tt.cur); got != tt.want {
				t.Errorf("Consecutive(%s, %v, %v) = %v, want %v", tt.freq, tt.prev, tt.cur, got, tt.want)
			}
		})
	}
}

func TestCalendar_UsesLocation(t *testing.T) {
	tokyo := engagement.NewCalendar(time.FixedZone("JST", 9*3600))
	evening := at(2026, 3, 10, 10)       // 19:00 JST, March 10
	afterMidnight := at(2026, 3, 10, 16) // 01:00 JST, March 11

	if !utc.SamePeriod(domain.Daily, evening, afterMidnight) {
		t.Error("same UTC day should be same period in UTC")
	}
	if tokyo.SamePeriod(domain.Daily, evening, afterMidnight) {
		t.Error("different JST days should not be same period in JST")
	}
	if !tokyo.Consecutive(domain.Daily, evening, afterMidnight) {
		t.Error("adjacent JST days should be consecutive")
	}
}

func TestCalendar_NilLocation(t *testing.T) {
	c := engagement.NewCalendar(nil)
	if c.Location() != time.Local {
		t.Errorf("Location() = %v, want Local", c.Location())
	}
}
