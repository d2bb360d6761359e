package infra

import (
	"sync"
	"testing"
	"time"
)

// fakeClock steps time manually for deterministic window tests.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func newTestLimiter(perMin, perHour int) (*WindowRateLimiter, *fakeClock) {
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	l := NewWindowRateLimiter(perMin, perHour)
	l.now = clock.now
	return l, clock
}

func TestWindowRateLimiter_MinuteBudget(t *testing.T) {
	l, _ := newTestLimiter(3, 100)

	for i := 0; i < 3; i++ {
		if !l.CanProceed() {
			t.Fatalf("call %d should fit the budget", i+1)
		}
		l.RecordCall()
	}

	// The (max+1)-th call within the window is denied.
	if l.CanProceed() {
		t.Error("4th call within 60s should be denied")
	}
}

func TestWindowRateLimiter_CapacityRestores(t *testing.T) {
	l, clock := newTestLimiter(2, 100)

	l.RecordCall()
	l.RecordCall()
	if l.CanProceed() {
		t.Fatal("budget should be exhausted")
	}

	clock.advance(61 * time.Second)
	if !l.CanProceed() {
		t.Error("capacity should restore once the window elapses")
	}
	if got := l.CallsLastMinute(); got != 0 {
		t.Errorf("expected 0 calls in window, got %d", got)
	}
}

func TestWindowRateLimiter_HourBudget(t *testing.T) {
	l, clock := newTestLimiter(100, 5)

	// Spread calls so the minute window never trips.
	for i := 0; i < 5; i++ {
		if !l.CanProceed() {
			t.Fatalf("call %d should fit the hourly budget", i+1)
		}
		l.RecordCall()
		clock.advance(2 * time.Minute)
	}

	if l.CanProceed() {
		t.Error("6th call within the hour should be denied")
	}

	// First call ages out of the hour window.
	clock.advance(51 * time.Minute)
	if !l.CanProceed() {
		t.Error("hourly capacity should restore as calls expire")
	}
}

func TestWindowRateLimiter_CanProceedIsPure(t *testing.T) {
	l, _ := newTestLimiter(1, 10)

	// Repeated checks must not consume budget.
	for i := 0; i < 5; i++ {
		if !l.CanProceed() {
			t.Fatal("CanProceed must not commit a call")
		}
	}
	l.RecordCall()
	if l.CanProceed() {
		t.Error("budget should be exhausted after the single RecordCall")
	}
}

func TestWindowRateLimiter_DisabledHorizon(t *testing.T) {
	l, _ := newTestLimiter(0, 0)

	for i := 0; i < 1000; i++ {
		l.RecordCall()
	}
	if !l.CanProceed() {
		t.Error("non-positive limits should disable the horizon")
	}
}

func TestWindowRateLimiter_Concurrent(t *testing.T) {
	l := NewWindowRateLimiter(1000, 10000)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				l.CanProceed()
				l.RecordCall()
			}
		}()
	}
	wg.Wait()

	if got := l.CallsLastMinute(); got != 800 {
		t.Errorf("expected 800 recorded calls, got %d", got)
	}
}
