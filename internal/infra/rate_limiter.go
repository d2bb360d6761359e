package infra

import (
	"sync"
	"time"
)

// WindowRateLimiter enforces sliding-window call budgets over two horizons
// (per-minute and per-hour). Shared by the risk manager's pre-trade gate and
// the live engine's venue quota protection; safe under concurrent access.
//
// CanProceed is a pure budget check; RecordCall commits a timestamp. Expired
// timestamps are pruned lazily on access.
type WindowRateLimiter struct {
	mu           sync.Mutex
	maxPerMinute int
	maxPerHour   int
	calls        []time.Time

	now func() time.Time // injected for deterministic tests
}

// NewWindowRateLimiter creates a limiter. A non-positive limit disables that
// horizon.
func NewWindowRateLimiter(maxPerMinute, maxPerHour int) *WindowRateLimiter {
	return &WindowRateLimiter{
		maxPerMinute: maxPerMinute,
		maxPerHour:   maxPerHour,
		now:          time.Now,
	}
}

// CanProceed reports whether one more call fits both window budgets.
// It does not commit anything.
func (l *WindowRateLimiter) CanProceed() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.prune(now)

	if l.maxPerMinute > 0 && l.countSince(now.Add(-time.Minute)) >= l.maxPerMinute {
		return false
	}
	if l.maxPerHour > 0 && len(l.calls) >= l.maxPerHour {
		return false
	}
	return true
}

// RecordCall commits a call timestamp against both windows.
func (l *WindowRateLimiter) RecordCall() {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.prune(now)
	l.calls = append(l.calls, now)
}

// CallsLastMinute returns the committed call count inside the minute window.
func (l *WindowRateLimiter) CallsLastMinute() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.prune(now)
	return l.countSince(now.Add(-time.Minute))
}

// prune drops timestamps older than the hour horizon. Must hold mu.
func (l *WindowRateLimiter) prune(now time.Time) {
	cutoff := now.Add(-time.Hour)
	i := 0
	for i < len(l.calls) && !l.calls[i].After(cutoff) {
		i++
	}
	if i > 0 {
		l.calls = l.calls[i:]
	}
}

// countSince counts calls strictly after t. Must hold mu; calls are ordered.
func (l *WindowRateLimiter) countSince(t time.Time) int {
	n := 0
	for i := len(l.calls) - 1; i >= 0; i-- {
		if !l.calls[i].After(t) {
			break
		}
		n++
	}
	return n
}
