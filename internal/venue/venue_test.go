package venue

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want Class
	}{
		{"auth", ErrAuth, ClassPermanent},
		{"insufficient funds", ErrInsufficientFunds, ClassPermanent},
		{"validation", ErrValidation, ClassPermanent},
		{"not found", ErrOrderNotFound, ClassPermanent},
		{"rate limited", ErrRateLimited, ClassTransient},
		{"unavailable", ErrUnavailable, ClassTransient},
		{"connection", ErrConnection, ClassTransient},
		{"deadline", context.DeadlineExceeded, ClassTransient},
		{"ambiguous", ErrAmbiguous, ClassAmbiguous},
		{"unknown errors default permanent", errors.New("boom"), ClassPermanent},
		{"wrapped sentinel", fmt.Errorf("op: %w", ErrRateLimited), ClassTransient},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := Classify(c.err); got != c.want {
				t.Errorf("Classify(%v) = %s, want %s", c.err, got, c.want)
			}
		})
	}
}

func TestClassifySubmit_IdempotencyDecidesAmbiguity(t *testing.T) {
	// Without an echoed client order ID, a timeout could mean a working
	// order, so a blind retry is forbidden.
	for _, err := range []error{ErrConnection, ErrAmbiguous, context.DeadlineExceeded} {
		if got := ClassifySubmit(err, false); got != ClassAmbiguous {
			t.Errorf("ClassifySubmit(%v, false) = %s, want AMBIGUOUS", err, got)
		}
		if got := ClassifySubmit(err, true); got != ClassTransient {
			t.Errorf("ClassifySubmit(%v, true) = %s, want TRANSIENT", err, got)
		}
	}

	// Business failures classify the same either way.
	if got := ClassifySubmit(ErrValidation, true); got != ClassPermanent {
		t.Errorf("validation should stay permanent, got %s", got)
	}
	if got := ClassifySubmit(ErrRateLimited, false); got != ClassTransient {
		t.Errorf("rate limit should stay transient, got %s", got)
	}
}
