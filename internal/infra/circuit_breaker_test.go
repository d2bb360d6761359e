package infra

import (
	"testing"
	"time"
)

func TestCircuitBreaker_OpensAfterThreshold(t *testing.T) {
	cb := NewCircuitBreaker("venue", 3, 2, time.Minute)

	for i := 0; i < 2; i++ {
		cb.RecordFailure()
		if !cb.Allow() {
			t.Fatalf("breaker should stay closed after %d failures", i+1)
		}
	}

	cb.RecordFailure()
	if cb.State() != BreakerOpen {
		t.Fatalf("expected OPEN after 3 failures, got %s", cb.State())
	}
	if cb.Allow() {
		t.Error("open breaker must reject calls")
	}
}

func TestCircuitBreaker_SuccessResetsCount(t *testing.T) {
	cb := NewCircuitBreaker("venue", 3, 2, time.Minute)

	cb.RecordFailure()
	cb.RecordFailure()
	cb.RecordSuccess()
	cb.RecordFailure()
	cb.RecordFailure()

	if cb.State() != BreakerClosed {
		t.Errorf("non-consecutive failures should not trip the breaker: %s", cb.State())
	}
}

func TestCircuitBreaker_RecoveryCycle(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	cb := NewCircuitBreaker("venue", 1, 2, 30*time.Second)
	cb.now = clock.now

	cb.RecordFailure()
	if cb.Allow() {
		t.Fatal("breaker should be open")
	}

	// Cooldown elapses: probes allowed.
	clock.advance(31 * time.Second)
	if !cb.Allow() {
		t.Fatal("breaker should allow a probe after cooldown")
	}
	if cb.State() != BreakerHalfOpen {
		t.Fatalf("expected HALF_OPEN, got %s", cb.State())
	}

	// Two successful probes close it.
	cb.RecordSuccess()
	cb.RecordSuccess()
	if cb.State() != BreakerClosed {
		t.Errorf("expected CLOSED after probes, got %s", cb.State())
	}
}

func TestCircuitBreaker_FailedProbeReopens(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	cb := NewCircuitBreaker("venue", 1, 2, 30*time.Second)
	cb.now = clock.now

	cb.RecordFailure()
	clock.advance(31 * time.Second)
	if !cb.Allow() {
		t.Fatal("probe should be allowed")
	}

	cb.RecordFailure()
	if cb.State() != BreakerOpen {
		t.Errorf("failed probe should reopen, got %s", cb.State())
	}
	if cb.Allow() {
		t.Error("reopened breaker must reject until the next cooldown")
	}
}
