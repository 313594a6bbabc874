package ratelimit

import (
	"context"
	"testing"
	"time"
)

// fakeClock drives the limiter deterministically: sleeps advance the clock
// instead of blocking.
type fakeClock struct {
	current time.Time
	slept   []time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{current: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) now() time.Time { return c.current }

func (c *fakeClock) sleep(_ context.Context, d time.Duration) error {
	c.slept = append(c.slept, d)
	c.current = c.current.Add(d)
	return nil
}

func newTestLimiter(rpm int) (*Limiter, *fakeClock) {
	clock := newFakeClock()
	l := New(rpm)
	l.now = clock.now
	l.sleep = clock.sleep
	return l, clock
}

func TestAcquireUnderLimit(t *testing.T) {
	l, clock := newTestLimiter(3)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := l.Acquire(ctx); err != nil {
			t.Fatalf("acquire %d failed: %v", i, err)
		}
	}
	if len(clock.slept) != 0 {
		t.Errorf("slept %v while under the limit", clock.slept)
	}
	if got := l.CurrentRPM(); got != 3 {
		t.Errorf("CurrentRPM = %d, want 3", got)
	}
}

func TestAcquireBlocksAtLimit(t *testing.T) {
	l, clock := newTestLimiter(2)
	ctx := context.Background()

	if err := l.Acquire(ctx); err != nil {
		t.Fatal(err)
	}
	clock.current = clock.current.Add(10 * time.Second)
	if err := l.Acquire(ctx); err != nil {
		t.Fatal(err)
	}

	// Third acquire must wait until the first request ages out: 50s.
	if err := l.Acquire(ctx); err != nil {
		t.Fatal(err)
	}
	if len(clock.slept) != 1 {
		t.Fatalf("slept %d times, want 1", len(clock.slept))
	}
	if clock.slept[0] != 50*time.Second {
		t.Errorf("slept %v, want 50s", clock.slept[0])
	}
}

func TestWaitTimeIsReadOnly(t *testing.T) {
	l, clock := newTestLimiter(1)
	ctx := context.Background()

	if l.WaitTime() != 0 {
		t.Error("wait time nonzero on empty limiter")
	}
	if err := l.Acquire(ctx); err != nil {
		t.Fatal(err)
	}
	clock.current = clock.current.Add(20 * time.Second)

	want := 40 * time.Second
	for i := 0; i < 3; i++ {
		if got := l.WaitTime(); got != want {
			t.Errorf("WaitTime call %d = %v, want %v", i, got, want)
		}
	}
	if got := l.CurrentRPM(); got != 1 {
		t.Errorf("CurrentRPM = %d after observations, want 1", got)
	}
}

func TestWindowSlides(t *testing.T) {
	l, clock := newTestLimiter(2)
	ctx := context.Background()

	if err := l.Acquire(ctx); err != nil {
		t.Fatal(err)
	}
	if err := l.Acquire(ctx); err != nil {
		t.Fatal(err)
	}

	clock.current = clock.current.Add(61 * time.Second)
	if got := l.CurrentRPM(); got != 0 {
		t.Errorf("CurrentRPM = %d after window passed, want 0", got)
	}
	if err := l.Acquire(ctx); err != nil {
		t.Fatal(err)
	}
	if len(clock.slept) != 0 {
		t.Errorf("slept %v when the window had already cleared", clock.slept)
	}
}

func TestAcquireCancelled(t *testing.T) {
	l, clock := newTestLimiter(1)
	l.sleep = func(ctx context.Context, d time.Duration) error {
		return context.Canceled
	}
	_ = clock

	if err := l.Acquire(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := l.Acquire(context.Background()); err != context.Canceled {
		t.Errorf("error = %v, want context.Canceled", err)
	}
}

func TestDisabledLimiter(t *testing.T) {
	l := New(0)
	for i := 0; i < 100; i++ {
		if err := l.Acquire(context.Background()); err != nil {
			t.Fatal(err)
		}
	}
	if l.WaitTime() != 0 {
		t.Error("disabled limiter reported wait time")
	}
}
