// Package metrics provides Prometheus metrics for habitforge:
// completions, streak resets, badge unlocks, level, and evaluation timing.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ─── Completions ────────────────────────────────────────────────────────────

// CompletionsRecorded tracks recorded completions by habit frequency.
var CompletionsRecorded = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "habitforge",
	Name:      "completions_recorded_total",
	Help:      "Total completions recorded.",
}, []string{"frequency"})

// CompletionsSkipped tracks completions ignored because the habit was disabled.
var CompletionsSkipped = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "habitforge",
	Name:      "completions_skipped_total",
	Help:      "Completions ignored for disabled habits.",
})

// GoalsMet tracks satisfied periods by frequency.
var GoalsMet = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "habitforge",
	Name:      "goals_met_total",
	Help:      "Total periods whose goal was reached.",
}, []string{"frequency"})

// ─── Streaks ────────────────────────────────────────────────────────────────

// StreakResets tracks habits whose state was reset by an elapsed period.
var StreakResets = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "habitforge",
	Name:      "period_resets_total",
	Help:      "Habits reset because their period elapsed.",
})

// MaxStreak tracks the longest current streak across habits.
var MaxStreak = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "habitforge",
	Name:      "max_streak",
	Help:      "Longest current streak across all habits.",
})

// ─── Gamification ───────────────────────────────────────────────────────────

// BadgesUnlocked tracks announced badge unlocks by type.
var BadgesUnlocked = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "habitforge",
	Name:      "badges_unlocked_total",
	Help:      "Total badge unlocks announced.",
}, []string{"type"})

// BadgeDeliveries tracks sink delivery attempts by result
// (delivered, retried, dropped).
var BadgeDeliveries = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "habitforge",
	Name:      "badge_deliveries_total",
	Help:      "Badge sink deliveries by result.",
}, []string{"result"})

// Level tracks the current level.
var Level = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "habitforge",
	Name:      "level",
	Help:      "Current level.",
})

// TotalXP tracks accumulated experience.
var TotalXP = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "habitforge",
	Name:      "total_xp",
	Help:      "Total accumulated experience points.",
})

// EvaluationLatency tracks gamification session pass duration.
var EvaluationLatency = promauto.NewHistogram(prometheus.HistogramOpts{
	Namespace: "habitforge",
	Name:      "evaluation_latency_seconds",
	Help:      "Duration of one badge/XP evaluation pass.",
	Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 1},
})

// ─── Health ─────────────────────────────────────────────────────────────────

// HealthCheckStatus tracks health check results (1=healthy, 0=unhealthy).
var HealthCheckStatus = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Namespace: "habitforge",
	Name:      "health_check_status",
	Help:      "Health check result per component (1=healthy, 0=unhealthy).",
}, []string{"check"})
