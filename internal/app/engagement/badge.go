package engagement

import (
	"fmt"
	"strings"
	"time"

	"github.com/habitforge/habitforge/internal/domain"
)

// ─── Catalog ────────────────────────────────────────────────────────────────

// Special badge thresholds.
const (
	EarlyBirdHour       = 8  // completions strictly before 08:00
	NightOwlHour        = 22 // completions at or after 22:00
	EarlyBirdMilestone  = 5
	NightOwlMilestone   = 5
	WeekendMilestone    = 10
	defaultCategoryTier = "Tier"
)

// CatalogConfig is the read-only configuration the badge catalog is built from.
type CatalogConfig struct {
	StreakThresholds     []int    `toml:"streak_thresholds"`
	CompletionThresholds []int    `toml:"completion_thresholds"`
	Categories           []string `toml:"categories"`
	CategoryThresholds   []int    `toml:"category_thresholds"`
}

// DefaultCatalogConfig returns the stock catalog configuration.
func DefaultCatalogConfig() CatalogConfig {
	return CatalogConfig{
		StreakThresholds:     []int{7, 30, 100, 365},
		CompletionThresholds: []int{10, 50, 100, 500},
		Categories:           []string{"Health", "Fitness", "Learning", "Mindfulness", "Productivity", "Social"},
		CategoryThresholds:   []int{3, 5},
	}
}

// Catalog is an immutable list of badge definitions (all locked).
type Catalog struct {
	badges []domain.Badge
}

var (
	streakTitles = map[int]string{
		7: "Week Warrior", 30: "Monthly Master", 100: "Centurion", 365: "Year of Discipline",
	}
	completionTitles = map[int]string{
		10: "Getting Started", 50: "Dedicated", 100: "Century Club", 500: "Habit Hero",
	}
	categoryTiers = []string{"Enthusiast", "Devotee", "Master", "Legend"}
)

// NewCatalog generates the catalog from cfg.
func NewCatalog(cfg CatalogConfig) Catalog {
	var badges []domain.Badge

	for _, m := range cfg.StreakThresholds {
		title, ok := streakTitles[m]
		if !ok {
			title = fmt.Sprintf("%d Streak", m)
		}
		badges = append(badges, domain.Badge{
			ID:          fmt.Sprintf("streak_%d", m),
			Title:       title,
			Description: fmt.Sprintf("Reach a %d-period streak on any habit", m),
			Type:        domain.BadgeStreak,
			Milestone:   m,
		})
	}

	for _, m := range cfg.CompletionThresholds {
		title, ok := completionTitles[m]
		if !ok {
			title = fmt.Sprintf("%d Completions", m)
		}
		badges = append(badges, domain.Badge{
			ID:          fmt.Sprintf("completion_%d", m),
			Title:       title,
			Description: fmt.Sprintf("Record %d completions in total", m),
			Type:        domain.BadgeCompletion,
			Milestone:   m,
		})
	}

	for _, cat := range cfg.Categories {
		for i, m := range cfg.CategoryThresholds {
			tier := fmt.Sprintf("%s %d", defaultCategoryTier, i+1)
			if i < len(categoryTiers) {
				tier = categoryTiers[i]
			}
			badges = append(badges, domain.Badge{
				ID:          fmt.Sprintf("category_%s_%d", slug(cat), m),
				Title:       cat + " " + tier,
				Description: fmt.Sprintf("Track %d habits in the %s category", m, cat),
				Type:        domain.BadgeCategory,
				Category:    cat,
				Milestone:   m,
			})
		}
	}

	badges = append(badges,
		domain.Badge{
			ID:          domain.SpecialEarlyBird,
			Title:       "Early Bird",
			Description: fmt.Sprintf("Complete habits before %02d:00 %d times", EarlyBirdHour, EarlyBirdMilestone),
			Type:        domain.BadgeSpecial,
			Milestone:   EarlyBirdMilestone,
		},
		domain.Badge{
			ID:          domain.SpecialNightOwl,
			Title:       "Night Owl",
			Description: fmt.Sprintf("Complete habits after %02d:00 %d times", NightOwlHour, NightOwlMilestone),
			Type:        domain.BadgeSpecial,
			Milestone:   NightOwlMilestone,
		},
		domain.Badge{
			ID:          domain.SpecialWeekendWarrior,
			Title:       "Weekend Warrior",
			Description: fmt.Sprintf("Complete habits on weekends %d times", WeekendMilestone),
			Type:        domain.BadgeSpecial,
			Milestone:   WeekendMilestone,
		},
	)

	return Catalog{badges: badges}
}

// Badges returns a copy of the catalog entries.
func (c Catalog) Badges() []domain.Badge {
	return append([]domain.Badge(nil), c.badges...)
}

// Len returns the number of catalog entries.
func (c Catalog) Len() int { return len(c.badges) }

func slug(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), " ", "_")
}

// ─── Aggregates ─────────────────────────────────────────────────────────────

// Stats is the aggregate snapshot badges are checked against.
type Stats struct {
	TotalCompletions   int
	MaxStreak          int
	Streaks            []int
	HabitsByCategory   map[string]int // keyed by slug(category)
	EarlyCompletions   int
	LateCompletions    int
	WeekendCompletions int
}

// Aggregate computes Stats in one pass over habits and one over completions.
func (c Calendar) Aggregate(habits []domain.Habit, completions []domain.HabitCompletion) Stats {
	s := Stats{
		TotalCompletions: len(completions),
		Streaks:          make([]int, 0, len(habits)),
		HabitsByCategory: make(map[string]int),
	}
	for _, h := range habits {
		s.Streaks = append(s.Streaks, h.Streak)
		if h.Streak > s.MaxStreak {
			s.MaxStreak = h.Streak
		}
		if h.Category != "" {
			s.HabitsByCategory[slug(h.Category)]++
		}
	}
	loc := c.Location()
	for _, comp := range completions {
		t := comp.CompletionDate.In(loc)
		if t.Hour() < EarlyBirdHour {
			s.EarlyCompletions++
		}
		if t.Hour() >= NightOwlHour {
			s.LateCompletions++
		}
		if wd := t.Weekday(); wd == time.Saturday || wd == time.Sunday {
			s.WeekendCompletions++
		}
	}
	return s
}

// ─── Evaluator ──────────────────────────────────────────────────────────────

// Evaluator recomputes unlock state for every catalog entry.
// Stateless between calls: the same snapshot always yields the same result.
type Evaluator struct {
	catalog Catalog
	cal     Calendar
}

// NewEvaluator creates an evaluator over catalog.
func NewEvaluator(catalog Catalog, cal Calendar) *Evaluator {
	return &Evaluator{catalog: catalog, cal: cal}
}

// Evaluate returns every catalog badge with IsUnlocked set from the snapshot.
// An empty snapshot yields all badges locked.
func (e *Evaluator) Evaluate(habits []domain.Habit, completions []domain.HabitCompletion) []domain.Badge {
	return e.EvaluateStats(e.cal.Aggregate(habits, completions))
}

// EvaluateStats checks every catalog badge against precomputed aggregates.
func (e *Evaluator) EvaluateStats(s Stats) []domain.Badge {
	badges := e.catalog.Badges()
	for i := range badges {
		badges[i].IsUnlocked = unlocked(badges[i], s)
	}
	return badges
}

func unlocked(b domain.Badge, s Stats) bool {
	switch b.Type {
	case domain.BadgeStreak:
		return s.MaxStreak >= b.Milestone
	case domain.BadgeCompletion:
		return s.TotalCompletions >= b.Milestone
	case domain.BadgeCategory:
		return s.HabitsByCategory[slug(b.Category)] >= b.Milestone
	case domain.BadgeSpecial:
		switch b.ID {
		case domain.SpecialEarlyBird:
			return s.EarlyCompletions >= b.Milestone
		case domain.SpecialNightOwl:
			return s.LateCompletions >= b.Milestone
		case domain.SpecialWeekendWarrior:
			return s.WeekendCompletions >= b.Milestone
		}
	}
	return false
}
