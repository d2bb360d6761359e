// Package venue defines the capability interface to the external broker and
// the error taxonomy used to classify its failures. The wire-level protocol
// behind this interface belongs to the broker collaborator, not this core.
package venue

import (
	"context"
	"errors"

	"trading_go/internal/domain"
	"trading_go/pkg/quant"
)

// Sentinel errors a venue client maps broker responses onto. Classification
// of everything else falls through to network/context inspection.
var (
	// Permanent: retrying cannot help.
	ErrAuth              = errors.New("venue: authentication failed")
	ErrInsufficientFunds = errors.New("venue: insufficient funds")
	ErrValidation        = errors.New("venue: order validation failed")

	// Transient: retried per policy.
	ErrRateLimited = errors.New("venue: rate limited")
	ErrUnavailable = errors.New("venue: temporarily unavailable")
	ErrConnection  = errors.New("venue: connection error")

	// Ambiguous: the request may or may not have taken effect.
	ErrAmbiguous = errors.New("venue: outcome unknown")

	// ErrOrderNotFound from Status() means the order never reached the
	// venue; during reconciliation it proves a submit did not take effect.
	ErrOrderNotFound = errors.New("venue: order not found")
)

// Class buckets an error per the handling taxonomy.
type Class int

const (
	ClassPermanent Class = iota // surfaced immediately, exactly one invocation
	ClassTransient              // retried with backoff
	ClassAmbiguous              // reconciled via status polling, never blind-retried
)

func (c Class) String() string {
	switch c {
	case ClassPermanent:
		return "PERMANENT"
	case ClassTransient:
		return "TRANSIENT"
	case ClassAmbiguous:
		return "AMBIGUOUS"
	default:
		return "UNKNOWN"
	}
}

// Classify buckets an error for idempotent operations (cancel, status).
// Timeouts and connection failures are safe to retry there.
func Classify(err error) Class {
	switch {
	case errors.Is(err, ErrAuth), errors.Is(err, ErrInsufficientFunds),
		errors.Is(err, ErrValidation), errors.Is(err, ErrOrderNotFound):
		return ClassPermanent
	case errors.Is(err, ErrRateLimited), errors.Is(err, ErrUnavailable),
		errors.Is(err, ErrConnection), errors.Is(err, context.DeadlineExceeded):
		return ClassTransient
	case errors.Is(err, ErrAmbiguous):
		return ClassAmbiguous
	default:
		return ClassPermanent
	}
}

// ClassifySubmit buckets an error for order submission. Without venue-side
// idempotency a timeout is Ambiguous: the order may already be working, so a
// blind retry could double-submit. With an echoed client order ID resubmission
// is safe and the same failures become Transient.
func ClassifySubmit(err error, idempotent bool) Class {
	if errors.Is(err, ErrAmbiguous) || errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, ErrConnection) {
		if idempotent {
			return ClassTransient
		}
		return ClassAmbiguous
	}
	return Classify(err)
}

// SubmitRequest carries an order to the venue. ClientOrderID is the
// client-generated idempotency token, echoed back by venues that support it.
type SubmitRequest struct {
	Order         domain.Order
	ClientOrderID string
}

// Ack is the venue's synchronous response to a submission.
type Ack struct {
	VenueOrderID string
	Status       domain.Status // ACCEPTED or REJECTED
	Reason       string
}

// OrderStatus is the venue-side view of an order, used for reconciliation.
type OrderStatus struct {
	VenueOrderID   string
	Status         domain.Status
	FilledQtyMilli quant.QtyMilli
	AvgPriceMicros quant.PriceMicros
	Fills          []domain.Fill
}

// Client is the minimal broker capability surface the live engine needs.
type Client interface {
	// Submit places an order. Implementations must map broker failures onto
	// the sentinel errors above.
	Submit(ctx context.Context, req SubmitRequest) (Ack, error)

	// Cancel requests cancellation by client order ID. Success means the
	// venue confirmed the cancel, not that the client assumed it.
	Cancel(ctx context.Context, clientOrderID, symbol string) error

	// Status looks up the venue-side state by client order ID.
	Status(ctx context.Context, clientOrderID string) (OrderStatus, error)

	// SupportsClientOrderID reports whether Submit is idempotent on
	// ClientOrderID. Decides Ambiguous-vs-Transient handling of timeouts.
	SupportsClientOrderID() bool
}
