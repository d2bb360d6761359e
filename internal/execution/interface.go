// Package execution provides the order execution engines. The paper engine
// simulates fills from live quotes; the live engine routes orders to a broker
// through the rate limiter, circuit breaker and classified retry stack.
package execution

import (
	"context"

	"trading_go/internal/domain"
	"trading_go/internal/venue"
)

// Mode selects the execution engine.
type Mode string

const (
	ModePaper Mode = "PAPER" // simulated fills, no real money
	ModeLive  Mode = "LIVE"  // real venue, requires the confirmation latch
)

// FillFunc receives every execution produced by an engine. Engines call it
// without holding internal locks; the receiver applies the fill to the order
// and ledger under its own locking.
type FillFunc func(domain.Fill)

// AlertFunc flags a condition needing operator attention, e.g. an order whose
// venue-side state could not be reconciled.
type AlertFunc func(orderID, message string)

// Engine submits, cancels and reports orders. Submit and Cancel mutate the
// passed order's lifecycle; callers must hold the per-order lock.
type Engine interface {
	// Submit routes the order. On return the order has advanced past
	// Submitted: Accepted (possibly already filled via the fill callback),
	// Rejected, or Unknown after an unreconciled ambiguous outcome.
	Submit(ctx context.Context, order *domain.Order) error

	// Cancel asks the venue to cancel. It returns nil only once the venue
	// confirmed; the caller then transitions the order.
	Cancel(ctx context.Context, order *domain.Order) error

	// Status fetches the engine-side view of an order for reconciliation.
	Status(ctx context.Context, order *domain.Order) (venue.OrderStatus, error)
}
