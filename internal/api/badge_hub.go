package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/habitforge/habitforge/internal/domain"
	"github.com/habitforge/habitforge/internal/logger"
)

// BadgeHub fans newly unlocked badges out to Server-Sent Events clients.
// It implements domain.BadgeSink. Slow clients lose events rather than
// blocking the publisher.
type BadgeHub struct {
	mu      sync.Mutex
	clients map[chan domain.BadgeUnlocked]struct{}
	buffer  int
}

// NewBadgeHub creates an empty hub.
func NewBadgeHub() *BadgeHub {
	return &BadgeHub{
		clients: make(map[chan domain.BadgeUnlocked]struct{}),
		buffer:  16,
	}
}

// PublishBadge broadcasts ev to every connected client.
func (h *BadgeHub) PublishBadge(ctx context.Context, ev domain.BadgeUnlocked) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.clients {
		select {
		case ch <- ev:
		default:
			logger.Warn("badge stream client lagging, event dropped", "badge", ev.BadgeID)
		}
	}
	return nil
}

// Clients returns the number of connected clients.
func (h *BadgeHub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *BadgeHub) subscribe() chan domain.BadgeUnlocked {
	ch := make(chan domain.BadgeUnlocked, h.buffer)
	h.mu.Lock()
	h.clients[ch] = struct{}{}
	h.mu.Unlock()
	return ch
}

func (h *BadgeHub) unsubscribe(ch chan domain.BadgeUnlocked) {
	h.mu.Lock()
	delete(h.clients, ch)
	h.mu.Unlock()
}

// HandleStream serves GET /api/badges/stream.
func (h *BadgeHub) HandleStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, ": connected\n\n")
	flusher.Flush()

	ch := h.subscribe()
	defer h.unsubscribe(ch)

	for {
		select {
		case <-r.Context().Done():
			return
		case ev := <-ch:
			data, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "event: badge\ndata: %s\n\n", data)
			flusher.Flush()
		}
	}
}
