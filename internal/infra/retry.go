package infra

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"trading_go/internal/venue"
)

const (
	defaultInitialDelay = 1 * time.Second
	defaultMaxDelay     = 60 * time.Second
)

// RetryPolicy bounds the retry loop for a fallible venue operation.
type RetryPolicy struct {
	MaxRetries   int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	JitterFrac   float64
}

// DefaultRetryPolicy returns conservative defaults for broker API calls.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:   3,
		InitialDelay: defaultInitialDelay,
		MaxDelay:     defaultMaxDelay,
		JitterFrac:   0.1,
	}
}

// Delay returns the backoff before retry attempt n (0-based):
// min(initial * 2^n, max) plus uniform jitter in [0, JitterFrac*delay).
func (p RetryPolicy) Delay(attempt int) time.Duration {
	initial := p.InitialDelay
	if initial <= 0 {
		initial = defaultInitialDelay
	}
	max := p.MaxDelay
	if max <= 0 {
		max = defaultMaxDelay
	}

	// 2^31 seconds already dwarfs any sane max delay; cap early to avoid
	// overflow in the shift.
	var backoff time.Duration
	if attempt < 0 {
		backoff = initial
	} else if attempt > 30 {
		backoff = max
	} else {
		backoff = initial * time.Duration(1<<attempt)
		if backoff > max || backoff < 0 {
			backoff = max
		}
	}

	if p.JitterFrac > 0 {
		jitter := time.Duration(rand.Float64() * p.JitterFrac * float64(backoff))
		backoff += jitter
	}
	return backoff
}

// RetriesExhaustedError tags the last failure after the retry budget ran out.
type RetriesExhaustedError struct {
	Op       string
	Attempts int
	Last     error
}

func (e *RetriesExhaustedError) Error() string {
	return fmt.Sprintf("%s: retries exhausted after %d attempts: %v", e.Op, e.Attempts, e.Last)
}

func (e *RetriesExhaustedError) Unwrap() error {
	return e.Last
}

// Retrier wraps fallible operations with classified backoff. Only Transient
// failures are retried; Permanent and Ambiguous failures surface immediately
// to the caller after a single invocation.
type Retrier struct {
	policy   RetryPolicy
	classify func(error) venue.Class

	// sleep is the suspend/resume hook. It must honor ctx cancellation so a
	// coordinated shutdown halts pending retries mid-delay. Replaced in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewRetrier creates a retrier with the given policy and error classifier.
func NewRetrier(policy RetryPolicy, classify func(error) venue.Class) *Retrier {
	return &Retrier{
		policy:   policy,
		classify: classify,
		sleep:    sleepCtx,
	}
}

// Do runs op, retrying Transient failures per the policy. The wait between
// attempts is cancellable through ctx. After MaxRetries transient failures the
// last error is returned wrapped in *RetriesExhaustedError.
func (r *Retrier) Do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	for attempt := 0; ; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}

		class := r.classify(err)
		if class != venue.ClassTransient {
			return err
		}
		if attempt >= r.policy.MaxRetries {
			return &RetriesExhaustedError{Op: op, Attempts: attempt + 1, Last: err}
		}

		delay := r.policy.Delay(attempt)
		slog.Warn("Transient failure, backing off",
			slog.String("op", op),
			slog.Int("attempt", attempt+1),
			slog.Duration("delay", delay),
			slog.Any("error", err))

		if serr := r.sleep(ctx, delay); serr != nil {
			return serr
		}
	}
}

// sleepCtx blocks for d or until ctx is done, without leaking the timer.
func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
