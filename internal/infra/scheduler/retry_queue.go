package scheduler

import (
	"container/heap"
	"sync"
	"time"
)

// ─── Retry Queue ────────────────────────────────────────────────────────────
// Failed deliveries are re-queued with exponential backoff. The heap is keyed
// on the next retry time so the earliest-due entry is always on top.

// RetryConfig configures the retry queue behavior.
type RetryConfig struct {
	MaxRetries int           // attempts before the entry is dropped
	BaseDelay  time.Duration // first backoff, doubled per attempt
	MaxDelay   time.Duration // cap on backoff
}

// DefaultRetryConfig returns production retry defaults.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries: 5,
		BaseDelay:  1 * time.Second,
		MaxDelay:   60 * time.Second,
	}
}

// RetryEntry tracks one failed delivery.
type RetryEntry[T any] struct {
	Value     T
	Attempt   int       // retries scheduled so far
	NextRetry time.Time // earliest time this can be retried
	FailedAt  time.Time
	Error     string // last failure reason
}

// RetryQueue schedules retries with exponential backoff.
type RetryQueue[T any] struct {
	mu     sync.Mutex
	config RetryConfig
	items  retryHeap[T]
	now    func() time.Time

	// Stats
	totalRetries   int64
	totalExhausted int64
}

// NewRetryQueue creates an empty retry queue.
func NewRetryQueue[T any](cfg RetryConfig) *RetryQueue[T] {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = DefaultRetryConfig().MaxRetries
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = DefaultRetryConfig().BaseDelay
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = DefaultRetryConfig().MaxDelay
	}
	if cfg.MaxDelay < cfg.BaseDelay {
		cfg.MaxDelay = cfg.BaseDelay
	}
	return &RetryQueue[T]{config: cfg, now: time.Now}
}

// SetClock overrides the time source (tests).
func (rq *RetryQueue[T]) SetClock(now func() time.Time) {
	rq.mu.Lock()
	defer rq.mu.Unlock()
	rq.now = now
}

// ScheduleRetry queues entry with backoff. Returns false once the entry
// has exceeded MaxRetries; it is then dropped.
func (rq *RetryQueue[T]) ScheduleRetry(entry RetryEntry[T]) bool {
	rq.mu.Lock()
	defer rq.mu.Unlock()

	entry.Attempt++
	if entry.Attempt > rq.config.MaxRetries {
		rq.totalExhausted++
		return false
	}

	// baseDelay * 2^(attempt-1)
	delay := rq.config.BaseDelay
	for i := 1; i < entry.Attempt; i++ {
		delay *= 2
		if delay > rq.config.MaxDelay {
			delay = rq.config.MaxDelay
			break
		}
	}

	now := rq.now()
	entry.FailedAt = now
	entry.NextRetry = now.Add(delay)
	heap.Push(&rq.items, entry)

	rq.totalRetries++
	return true
}

// NextReady pops the earliest entry whose NextRetry has passed.
func (rq *RetryQueue[T]) NextReady() (RetryEntry[T], bool) {
	rq.mu.Lock()
	defer rq.mu.Unlock()

	if len(rq.items) == 0 || rq.now().Before(rq.items[0].NextRetry) {
		return RetryEntry[T]{}, false
	}
	return heap.Pop(&rq.items).(RetryEntry[T]), true
}

// DrainReady pops every ready entry, earliest first.
func (rq *RetryQueue[T]) DrainReady() []RetryEntry[T] {
	var ready []RetryEntry[T]
	for {
		entry, ok := rq.NextReady()
		if !ok {
			return ready
		}
		ready = append(ready, entry)
	}
}

// Len returns the number of entries pending retry.
func (rq *RetryQueue[T]) Len() int {
	rq.mu.Lock()
	defer rq.mu.Unlock()
	return len(rq.items)
}

// RetryStats holds retry queue statistics.
type RetryStats struct {
	PendingRetries int   `json:"pending_retries"`
	TotalRetries   int64 `json:"total_retries"`
	TotalExhausted int64 `json:"total_exhausted"`
}

// RetryStats returns current retry queue statistics.
func (rq *RetryQueue[T]) RetryStats() RetryStats {
	rq.mu.Lock()
	defer rq.mu.Unlock()
	return RetryStats{
		PendingRetries: len(rq.items),
		TotalRetries:   rq.totalRetries,
		TotalExhausted: rq.totalExhausted,
	}
}

// retryHeap implements heap.Interface ordered by NextRetry.
type retryHeap[T any] []RetryEntry[T]

func (h retryHeap[T]) Len() int           { return len(h) }
func (h retryHeap[T]) Less(i, j int) bool { return h[i].NextRetry.Before(h[j].NextRetry) }
func (h retryHeap[T]) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *retryHeap[T]) Push(x any) { *h = append(*h, x.(RetryEntry[T])) }

func (h *retryHeap[T]) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
