package engagement

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/habitforge/habitforge/internal/domain"
)

// Session runs the badge evaluator and level calculator over each new
// snapshot and diffs unlocks against the badges already announced.
// A badge is announced once; later evaluations keep reporting it unlocked
// without emitting it again.
type Session struct {
	mu        sync.Mutex
	evaluator *Evaluator
	ledger    domain.BadgeLedger // nil keeps announcements in memory only

	known     map[string]time.Time
	loaded    bool
	lastLevel int
}

// NewSession creates a session. ledger may be nil.
func NewSession(evaluator *Evaluator, ledger domain.BadgeLedger) *Session {
	return &Session{
		evaluator: evaluator,
		ledger:    ledger,
		known:     make(map[string]time.Time),
	}
}

// Evaluation is the result of one session pass.
type Evaluation struct {
	Badges        []domain.Badge         `json:"badges"`
	Level         domain.LevelProgress   `json:"level"`
	NewlyUnlocked []domain.BadgeUnlocked `json:"newly_unlocked"`
	LeveledUp     bool                   `json:"leveled_up"`
}

// UnlockedCount returns how many badges are currently unlocked.
func (e Evaluation) UnlockedCount() int {
	n := 0
	for _, b := range e.Badges {
		if b.IsUnlocked {
			n++
		}
	}
	return n
}

// Evaluate re-runs badges and XP over the full snapshot.
// On a ledger error the events recorded so far are still returned.
func (s *Session) Evaluate(ctx context.Context, habits []domain.Habit, completions []domain.HabitCompletion, now time.Time) (Evaluation, error) {
	stats := s.evaluator.cal.Aggregate(habits, completions)
	out := Evaluation{
		Badges: s.evaluator.EvaluateStats(stats),
		Level:  ComputeXPAndLevel(stats.TotalCompletions, stats.Streaks),
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.load(ctx); err != nil {
		return out, err
	}

	for i := range out.Badges {
		b := &out.Badges[i]
		if !b.IsUnlocked {
			continue
		}
		if at, ok := s.known[b.ID]; ok {
			b.UnlockedDate = at
			continue
		}

		isNew := true
		unlockedAt := now
		if s.ledger != nil {
			var err error
			isNew, err = s.ledger.UnlockBadge(ctx, b.ID, now)
			if err != nil {
				return out, fmt.Errorf("unlock badge %s: %w", b.ID, err)
			}
			if !isNew {
				// Recorded by another process since load.
				if unlockedAt, err = s.recordedAt(ctx, b.ID, now); err != nil {
					return out, err
				}
			}
		}
		s.known[b.ID] = unlockedAt
		b.UnlockedDate = unlockedAt
		if isNew {
			out.NewlyUnlocked = append(out.NewlyUnlocked, domain.BadgeUnlocked{
				BadgeID:     b.ID,
				Title:       b.Title,
				Description: b.Description,
				Type:        b.Type,
				BonusXP:     b.Type.BonusXP(),
				UnlockedAt:  now,
			})
		}
	}

	// lastLevel never moves back, so a stale snapshot cannot repeat a level-up.
	if out.Level.Level > s.lastLevel {
		out.LeveledUp = s.lastLevel > 0
		s.lastLevel = out.Level.Level
	}
	return out, nil
}

// recordedAt returns the ledger's unlock time for id, or fallback if the
// ledger has none.
func (s *Session) recordedAt(ctx context.Context, id string, fallback time.Time) (time.Time, error) {
	unlocked, err := s.ledger.UnlockedBadges(ctx)
	if err != nil {
		return fallback, fmt.Errorf("load unlocked badges: %w", err)
	}
	if at, ok := unlocked[id]; ok {
		return at, nil
	}
	return fallback, nil
}

// load seeds the announced set from the ledger once.
func (s *Session) load(ctx context.Context) error {
	if s.loaded || s.ledger == nil {
		return nil
	}
	unlocked, err := s.ledger.UnlockedBadges(ctx)
	if err != nil {
		return fmt.Errorf("load unlocked badges: %w", err)
	}
	for id, at := range unlocked {
		s.known[id] = at
	}
	s.loaded = true
	return nil
}

// Known returns a copy of the announced badge set.
func (s *Session) Known() map[string]time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]time.Time, len(s.known))
	for k, v := range s.known {
		out[k] = v
	}
	return out
}
