package engagement

import (
	"math"

	"github.com/habitforge/habitforge/internal/domain"
)

// XP curve: quadratic. Level L begins at 100*(L-1)^2 total XP, so level 1
// starts at 0 and level = 1 + floor(sqrt(totalXP/100)).
const (
	XPPerCompletion  = 10
	XPPerStreakPoint = 5
	levelXPBase      = 100
)

// TotalXP returns accumulated experience for the snapshot.
func TotalXP(totalCompletions int, streaks []int) int64 {
	xp := int64(max(totalCompletions, 0)) * XPPerCompletion
	for _, s := range streaks {
		xp += int64(max(s, 0)) * XPPerStreakPoint
	}
	return xp
}

// XPForLevel returns the cumulative XP at which a level begins.
func XPForLevel(level int) int64 {
	if level <= 1 {
		return 0
	}
	n := int64(level - 1)
	return levelXPBase * n * n
}

// LevelForXP returns the level for a total XP amount.
func LevelForXP(xp int64) int {
	if xp <= 0 {
		return 1
	}
	return 1 + int(isqrt(xp/levelXPBase))
}

// ComputeXPAndLevel maps completions and per-habit streaks to level progress.
// Monotonic non-decreasing in both inputs.
func ComputeXPAndLevel(totalCompletions int, streaks []int) domain.LevelProgress {
	xp := TotalXP(totalCompletions, streaks)
	level := LevelForXP(xp)
	start := XPForLevel(level)
	return domain.LevelProgress{
		Level:          level,
		TotalXP:        xp,
		XPInLevel:      xp - start,
		XPForNextLevel: XPForLevel(level+1) - start,
	}
}

// isqrt returns floor(sqrt(n)) exactly for n >= 0.
func isqrt(n int64) int64 {
	r := int64(math.Sqrt(float64(n)))
	for r*r > n {
		r--
	}
	for (r+1)*(r+1) <= n {
		r++
	}
	return r
}
