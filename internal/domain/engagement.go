// Gamification types.
// Badges and levels are derived from the habit/completion snapshot and
// recomputed on every evaluation; only the unlock ledger is persisted.

package domain

import "time"

// ─── Badge Types ────────────────────────────────────────────────────────────

// BadgeType groups badges by the aggregate they are checked against.
type BadgeType string

const (
	BadgeStreak     BadgeType = "STREAK"
	BadgeCompletion BadgeType = "COMPLETION"
	BadgeCategory   BadgeType = "CATEGORY"
	BadgeSpecial    BadgeType = "SPECIAL"
)

// BonusXP is the XP awarded with the unlock notification of a badge type.
func (t BadgeType) BonusXP() int64 {
	switch t {
	case BadgeStreak:
		return 50
	case BadgeCompletion:
		return 100
	case BadgeCategory:
		return 75
	case BadgeSpecial:
		return 150
	}
	return 0
}

// Special badge ids.
const (
	SpecialEarlyBird      = "special_early_bird"
	SpecialNightOwl       = "special_night_owl"
	SpecialWeekendWarrior = "special_weekend_warrior"
)

// Badge is a catalog entry with its unlock state for one evaluation.
type Badge struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	Type         BadgeType `json:"type"`
	Category     string    `json:"category,omitempty"` // CATEGORY only
	Milestone    int       `json:"milestone"`
	IsUnlocked   bool      `json:"is_unlocked"`
	UnlockedDate time.Time `json:"unlocked_date"`
}

// BadgeUnlocked is emitted exactly once when a badge flips locked → unlocked.
type BadgeUnlocked struct {
	BadgeID     string    `json:"badge_id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Type        BadgeType `json:"type"`
	BonusXP     int64     `json:"bonus_xp"`
	UnlockedAt  time.Time `json:"unlocked_at"`
}

// ─── Level / XP Types ───────────────────────────────────────────────────────

// LevelProgress is the derived level snapshot. Never persisted.
type LevelProgress struct {
	Level          int   `json:"level"`
	TotalXP        int64 `json:"total_xp"`
	XPInLevel      int64 `json:"xp_in_level"`
	XPForNextLevel int64 `json:"xp_for_next_level"`
}

// ProgressPct returns progress toward the next level (0–100).
func (l LevelProgress) ProgressPct() float64 {
	if l.XPForNextLevel <= 0 {
		return 100.0
	}
	pct := float64(l.XPInLevel) / float64(l.XPForNextLevel) * 100.0
	if pct > 100.0 {
		pct = 100.0
	}
	return pct
}

// ─── Notification Types ─────────────────────────────────────────────────────

// NotificationType categorizes notifications.
type NotificationType string

const (
	NotifyBadge   NotificationType = "badge"
	NotifyLevelUp NotificationType = "level_up"
)

// Notification is a user-facing message waiting to be shown once.
type Notification struct {
	ID        int64            `json:"id"`
	Type      NotificationType `json:"type"`
	Title     string           `json:"title"`
	Body      string           `json:"body"`
	BonusXP   int64            `json:"bonus_xp"`
	CreatedAt time.Time        `json:"created_at"`
	Shown     bool             `json:"shown"`
}
