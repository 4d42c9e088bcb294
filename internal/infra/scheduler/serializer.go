// Package scheduler provides the concurrency primitives around the engine:
//   - Serializer: one writer at a time per key (habit id)
//   - Coalescer: pending re-evaluations collapse to the latest request
//   - RetryQueue: exponential backoff for failed deliveries
//   - Every: interval loop for background sweeps
package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
)

// Serializer runs functions one at a time per key. Different keys run in
// parallel. Lanes are created on demand and dropped once idle.
type Serializer struct {
	mu    sync.Mutex
	lanes map[string]*lane

	// Stats
	totalRuns atomic.Int64
}

type lane struct {
	sem  chan struct{} // capacity 1: holder owns the key
	refs int
}

// NewSerializer creates an empty serializer.
func NewSerializer() *Serializer {
	return &Serializer{lanes: make(map[string]*lane)}
}

// Do runs fn while holding key. It waits for earlier holders of the same key,
// or returns ctx.Err() if ctx ends first.
func (s *Serializer) Do(ctx context.Context, key string, fn func() error) error {
	l := s.acquireLane(key)
	defer s.releaseLane(key, l)

	select {
	case l.sem <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-l.sem }()

	s.totalRuns.Add(1)
	return fn()
}

func (s *Serializer) acquireLane(key string) *lane {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.lanes[key]
	if !ok {
		l = &lane{sem: make(chan struct{}, 1)}
		s.lanes[key] = l
	}
	l.refs++
	return l
}

func (s *Serializer) releaseLane(key string, l *lane) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l.refs--
	if l.refs == 0 {
		delete(s.lanes, key)
	}
}

// ActiveKeys returns how many keys currently have a holder or waiters.
func (s *Serializer) ActiveKeys() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.lanes)
}

// TotalRuns returns how many functions have run.
func (s *Serializer) TotalRuns() int64 {
	return s.totalRuns.Load()
}
