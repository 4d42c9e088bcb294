package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/habitforge/habitforge/internal/app"
	"github.com/habitforge/habitforge/internal/domain"
)

// completeRequest is the body of POST /api/habits/{id}/completions.
type completeRequest struct {
	At time.Time `json:"at"` // zero means now
	domain.CompletionInput
}

// ─── Habits ─────────────────────────────────────────────────────────────────

func (s *Server) handleListHabits(w http.ResponseWriter, r *http.Request) {
	habits, err := s.tracker.ListHabits(r.Context())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	if habits == nil {
		habits = []domain.Habit{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"habits": habits})
}

func (s *Server) handleCreateHabit(w http.ResponseWriter, r *http.Request) {
	var req domain.NewHabit
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeTypedError(w, http.StatusBadRequest, "invalid request body: "+err.Error(), "invalid_request")
		return
	}
	if req.Goal == 0 {
		req.Goal = 1
	}
	h, err := s.tracker.CreateHabit(r.Context(), req)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, h)
}

// handleApplyHabitfile creates the habits declared in a Habitfile body.
func (s *Server) handleApplyHabitfile(w http.ResponseWriter, r *http.Request) {
	habits, err := app.ParseHabitfile(http.MaxBytesReader(w, r.Body, 1<<20))
	if err != nil {
		writeTypedError(w, http.StatusBadRequest, err.Error(), "invalid_request")
		return
	}
	res, err := app.ApplyHabitfile(r.Context(), s.tracker, habits)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	created := res.Created
	if created == nil {
		created = []domain.Habit{}
	}
	skipped := res.Skipped
	if skipped == nil {
		skipped = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"created": created,
		"skipped": skipped,
	})
}

func (s *Server) handleGetHabit(w http.ResponseWriter, r *http.Request) {
	h, err := s.tracker.GetHabit(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h)
}

func (s *Server) handleSetEnabled(enabled bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h, err := s.tracker.SetEnabled(r.Context(), chi.URLParam(r, "id"), enabled)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, h)
	}
}

func (s *Server) handleRecompute(w http.ResponseWriter, r *http.Request) {
	h, err := s.tracker.Recompute(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h)
}

// ─── Completions ────────────────────────────────────────────────────────────

func (s *Server) handleComplete(w http.ResponseWriter, r *http.Request) {
	var req completeRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeTypedError(w, http.StatusBadRequest, "invalid request body: "+err.Error(), "invalid_request")
			return
		}
	}
	out, err := s.tracker.Complete(r.Context(), chi.URLParam(r, "id"), req.At, req.CompletionInput)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	status := http.StatusCreated
	if !out.Recorded {
		status = http.StatusOK
	}
	writeJSON(w, status, out)
}

func (s *Server) handleHabitCompletions(w http.ResponseWriter, r *http.Request) {
	completions, err := s.tracker.Completions(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeCompletions(w, completions)
}

func (s *Server) handleCompletionsInRange(w http.ResponseWriter, r *http.Request) {
	to := time.Now()
	if v := r.URL.Query().Get("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeTypedError(w, http.StatusBadRequest, "to must be RFC3339", "invalid_request")
			return
		}
		to = t
	}
	from := to.AddDate(0, 0, -30)
	if v := r.URL.Query().Get("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeTypedError(w, http.StatusBadRequest, "from must be RFC3339", "invalid_request")
			return
		}
		from = t
	}
	if !from.Before(to) {
		writeTypedError(w, http.StatusBadRequest, "from must be before to", "invalid_request")
		return
	}

	completions, err := s.tracker.CompletionsInRange(r.Context(), from, to)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeCompletions(w, completions)
}

func (s *Server) handleUpdateCompletion(w http.ResponseWriter, r *http.Request) {
	var req domain.CompletionInput
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeTypedError(w, http.StatusBadRequest, "invalid request body: "+err.Error(), "invalid_request")
		return
	}
	c, err := s.tracker.UpdateCompletion(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) handleDeleteCompletion(w http.ResponseWriter, r *http.Request) {
	if err := s.tracker.DeleteCompletion(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeCompletions(w http.ResponseWriter, completions []domain.HabitCompletion) {
	if completions == nil {
		completions = []domain.HabitCompletion{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"completions": completions})
}

// ─── Gamification ───────────────────────────────────────────────────────────

func (s *Server) handleBadges(w http.ResponseWriter, r *http.Request) {
	badges, err := s.tracker.Badges(r.Context())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	unlocked := 0
	for _, b := range badges {
		if b.IsUnlocked {
			unlocked++
		}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"badges":   badges,
		"unlocked": unlocked,
		"total":    len(badges),
	})
}

func (s *Server) handleLevel(w http.ResponseWriter, r *http.Request) {
	lp, err := s.tracker.Level(r.Context())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"level":             lp.Level,
		"total_xp":          lp.TotalXP,
		"xp_in_level":       lp.XPInLevel,
		"xp_for_next_level": lp.XPForNextLevel,
		"progress_pct":      lp.ProgressPct(),
	})
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	sum, err := s.tracker.Summary(r.Context())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

// ─── Notifications ──────────────────────────────────────────────────────────

func (s *Server) handleNotifications(w http.ResponseWriter, r *http.Request) {
	n := s.tracker.Notifications()
	if n == nil {
		writeJSON(w, http.StatusOK, map[string]interface{}{"notifications": []domain.Notification{}})
		return
	}
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		if l, err := strconv.Atoi(v); err == nil && l > 0 {
			limit = l
		}
	}
	pending, err := n.Pending(r.Context(), s.tracker.LocalNow(), limit)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	if pending == nil {
		pending = []domain.Notification{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"notifications": pending})
}

func (s *Server) handleNotificationShown(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeTypedError(w, http.StatusBadRequest, "invalid notification id", "invalid_request")
		return
	}
	n := s.tracker.Notifications()
	if n == nil {
		writeDomainError(w, r, domain.ErrNotificationNotFound)
		return
	}
	if err := n.MarkShown(r.Context(), id); err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
