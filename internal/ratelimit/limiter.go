// Package ratelimit bounds outbound request rate with a sliding one-minute
// window.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

const window = time.Minute

// Limiter admits at most rpm requests per sliding minute. Acquire blocks the
// caller until a slot opens or the context is cancelled.
type Limiter struct {
	mu       sync.Mutex
	rpm      int
	requests []time.Time

	// injectable for tests
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// New creates a limiter admitting rpm requests per minute. A non-positive rpm
// disables limiting entirely.
func New(rpm int) *Limiter {
	return &Limiter{
		rpm:   rpm,
		now:   time.Now,
		sleep: sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Acquire blocks until the request can proceed under the rate limit, then
// records it. Returns the context's error if cancelled while waiting.
func (l *Limiter) Acquire(ctx context.Context) error {
	if l.rpm <= 0 {
		return ctx.Err()
	}
	for {
		l.mu.Lock()
		now := l.now()
		l.prune(now)
		if len(l.requests) < l.rpm {
			l.requests = append(l.requests, now)
			l.mu.Unlock()
			return nil
		}
		// Oldest request falls out of the window first; wait for that.
		wait := l.requests[0].Add(window).Sub(now)
		l.mu.Unlock()

		if err := l.sleep(ctx, wait); err != nil {
			return err
		}
	}
}

// CurrentRPM reports how many requests fall inside the current window. It
// never mutates the recorded history.
func (l *Limiter) CurrentRPM() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.countInWindow(l.now())
}

// WaitTime reports how long the next Acquire would block, zero if it would
// proceed immediately.
func (l *Limiter) WaitTime() time.Duration {
	if l.rpm <= 0 {
		return 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if l.countInWindow(now) < l.rpm {
		return 0
	}
	cutoff := now.Add(-window)
	for _, ts := range l.requests {
		if ts.After(cutoff) {
			return ts.Add(window).Sub(now)
		}
	}
	return 0
}

// prune drops requests older than the window. Callers hold the lock.
func (l *Limiter) prune(now time.Time) {
	cutoff := now.Add(-window)
	i := 0
	for i < len(l.requests) && !l.requests[i].After(cutoff) {
		i++
	}
	if i > 0 {
		l.requests = append(l.requests[:0], l.requests[i:]...)
	}
}

// countInWindow counts without mutating. Callers hold the lock.
func (l *Limiter) countInWindow(now time.Time) int {
	cutoff := now.Add(-window)
	n := 0
	for _, ts := range l.requests {
		if ts.After(cutoff) {
			n++
		}
	}
	return n
}
