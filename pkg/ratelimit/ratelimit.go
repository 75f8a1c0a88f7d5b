// Package ratelimit provides per-user sliding-window admission control for
// session creation.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Defaults for the admission window.
const (
	DefaultWindow   = time.Minute
	DefaultCapacity = 5
)

// Limiter admits at most capacity calls per user within a rolling window.
// Denied admissions record nothing and do not reset the window. It is safe
// for concurrent use.
type Limiter struct {
	mu       sync.Mutex
	window   time.Duration
	capacity int
	calls    map[string][]time.Time

	// now is overridable in tests.
	now func() time.Time

	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a Limiter. Non-positive arguments fall back to defaults.
func New(window time.Duration, capacity int) *Limiter {
	if window <= 0 {
		window = DefaultWindow
	}
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Limiter{
		window:   window,
		capacity: capacity,
		calls:    make(map[string][]time.Time),
		now:      time.Now,
	}
}

// Admit reports whether userID may proceed, recording the call if admitted.
func (l *Limiter) Admit(userID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	recent := l.pruneLocked(userID, now)
	if len(recent) >= l.capacity {
		return false
	}

	l.calls[userID] = append(recent, now)
	return true
}

// Remaining returns how many admissions userID has left in the current window.
func (l *Limiter) Remaining(userID string) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	recent := l.pruneLocked(userID, l.now())
	return l.capacity - len(recent)
}

// pruneLocked drops timestamps older than the window for one user and stores
// the result. Callers must hold mu.
func (l *Limiter) pruneLocked(userID string, now time.Time) []time.Time {
	cutoff := now.Add(-l.window)
	timestamps := l.calls[userID]

	i := 0
	for i < len(timestamps) && !timestamps[i].After(cutoff) {
		i++
	}
	recent := timestamps[i:]

	if len(recent) == 0 {
		delete(l.calls, userID)
		return nil
	}
	l.calls[userID] = recent
	return recent
}

// Prune drops expired timestamps for all users to bound memory.
func (l *Limiter) Prune() {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	for userID := range l.calls {
		l.pruneLocked(userID, now)
	}
}

// StartPruneRoutine starts a background goroutine that periodically prunes
// expired window state. The goroutine is stopped when Close is called.
func (l *Limiter) StartPruneRoutine(interval time.Duration) {
	ctx, cancel := context.WithCancel(context.Background())
	l.cancel = cancel
	l.done = make(chan struct{})

	go func() {
		defer close(l.done)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				l.Prune()
			}
		}
	}()
}

// Close stops the prune goroutine and waits for it to exit. It is safe to
// call Close even if StartPruneRoutine was never called.
func (l *Limiter) Close() error {
	if l.cancel != nil {
		l.cancel()
		<-l.done
	}
	return nil
}
