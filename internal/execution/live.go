package execution

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"trading_go/internal/domain"
	"trading_go/internal/infra"
	"trading_go/internal/venue"
)

const (
	defaultReconcileBudget = 60 * time.Second
	defaultReconcileEvery  = 2 * time.Second
)

// LiveEngine routes orders to a real venue. Every API call passes the local
// rate limiter and the circuit breaker before going out; failures are retried
// per their classification. An ambiguous submit is never blindly resubmitted:
// it is reconciled by polling the venue-side status, and if the budget runs
// out the order is parked in Unknown and an operator alert is raised.
//
// All order mutations inside Submit complete before any fill callback fires,
// so callers may apply fills under their own per-order locking.
type LiveEngine struct {
	client  venue.Client
	limiter *infra.WindowRateLimiter
	breaker *infra.CircuitBreaker
	onFill  FillFunc
	onAlert AlertFunc
	log     *slog.Logger

	submitRetrier *infra.Retrier
	opRetrier     *infra.Retrier

	reconcileBudget time.Duration
	reconcileEvery  time.Duration

	// test seams
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewLiveEngine wires a live engine. The retry policy governs transient
// failures; ambiguity handling depends on client.SupportsClientOrderID().
func NewLiveEngine(client venue.Client, policy infra.RetryPolicy, limiter *infra.WindowRateLimiter,
	breaker *infra.CircuitBreaker, onFill FillFunc, onAlert AlertFunc, log *slog.Logger) *LiveEngine {

	e := &LiveEngine{
		client:          client,
		limiter:         limiter,
		breaker:         breaker,
		onFill:          onFill,
		onAlert:         onAlert,
		log:             log,
		reconcileBudget: defaultReconcileBudget,
		reconcileEvery:  defaultReconcileEvery,
		now:             time.Now,
		sleep:           sleepFor,
	}
	e.submitRetrier = infra.NewRetrier(policy, func(err error) venue.Class {
		return venue.ClassifySubmit(err, client.SupportsClientOrderID())
	})
	e.opRetrier = infra.NewRetrier(policy, venue.Classify)
	return e
}

// Submit places the order at the venue. The order ID travels as the client
// order ID so venues with idempotent submission can dedup resubmissions.
func (e *LiveEngine) Submit(ctx context.Context, order *domain.Order) error {
	if err := order.TransitionTo(domain.StatusSubmitted, "live submit"); err != nil {
		return err
	}

	var ack venue.Ack
	err := e.submitRetrier.Do(ctx, "submit "+order.ID, func(ctx context.Context) error {
		a, err := call(e, ctx, func(ctx context.Context) (venue.Ack, error) {
			return e.client.Submit(ctx, venue.SubmitRequest{Order: *order, ClientOrderID: order.ID})
		})
		if err != nil {
			return err
		}
		ack = a
		return nil
	})

	switch {
	case err == nil:
		order.VenueOrderID = ack.VenueOrderID
		if ack.Status == domain.StatusRejected {
			_ = order.TransitionTo(domain.StatusRejected, "venue rejected: "+ack.Reason)
			return nil
		}
		return order.TransitionTo(domain.StatusAccepted, "venue ack")

	case venue.ClassifySubmit(err, false) == venue.ClassAmbiguous:
		// Connection-class failures leave the venue-side outcome unknown.
		// That holds even when idempotency made resubmission safe and the
		// retries ran out: any of those attempts may have landed, so the
		// order must never be assumed rejected without checking.
		e.log.Warn("Ambiguous submit outcome, reconciling",
			slog.String("order_id", order.ID), slog.Any("error", err))
		return e.reconcile(ctx, order, err)

	default:
		_ = order.TransitionTo(domain.StatusRejected, "submit failed: "+err.Error())
		return fmt.Errorf("submit %s: %w", order.ID, err)
	}
}

// reconcile polls the venue for the true state of an order whose submission
// outcome is unknown. ErrOrderNotFound proves the submit never landed, so
// failure can be reported safely. On budget exhaustion the order goes to
// Unknown; it is never auto-cancelled and never resubmitted.
func (e *LiveEngine) reconcile(ctx context.Context, order *domain.Order, cause error) error {
	deadline := e.now().Add(e.reconcileBudget)

	for {
		st, err := call(e, ctx, func(ctx context.Context) (venue.OrderStatus, error) {
			return e.client.Status(ctx, order.ID)
		})
		switch {
		case err == nil:
			return e.adopt(order, st)
		case errors.Is(err, venue.ErrOrderNotFound):
			_ = order.TransitionTo(domain.StatusRejected, "submit never reached venue")
			return fmt.Errorf("submit %s: %w", order.ID, cause)
		}

		if e.now().After(deadline) {
			break
		}
		if serr := e.sleep(ctx, e.reconcileEvery); serr != nil {
			break
		}
	}

	_ = order.TransitionTo(domain.StatusUnknown, "reconciliation timed out")
	e.onAlert(order.ID, "order state unknown after ambiguous submit; manual reconciliation required")
	return fmt.Errorf("submit %s: %w: reconciliation timed out", order.ID, venue.ErrAmbiguous)
}

// adopt applies the venue-side truth discovered during reconciliation. Fills
// reported by the venue are re-emitted; downstream dedup by exec ID makes
// that idempotent.
func (e *LiveEngine) adopt(order *domain.Order, st venue.OrderStatus) error {
	order.VenueOrderID = st.VenueOrderID

	var err error
	switch st.Status {
	case domain.StatusRejected:
		err = order.TransitionTo(domain.StatusRejected, "reconciled: venue rejected")
	case domain.StatusCancelled, domain.StatusExpired:
		// The order was live at some point; route through Accepted so the
		// history shows it.
		if err = order.TransitionTo(domain.StatusAccepted, "reconciled"); err == nil {
			err = order.TransitionTo(st.Status, "reconciled terminal state")
		}
	default:
		// Accepted or (partially) filled; fills below advance the order.
		err = order.TransitionTo(domain.StatusAccepted, "reconciled")
	}
	if err != nil {
		return err
	}

	e.log.Info("Ambiguous submit reconciled",
		slog.String("order_id", order.ID),
		slog.String("status", string(st.Status)),
		slog.Int("fills", len(st.Fills)))
	for _, f := range st.Fills {
		// Venue status payloads omit what the venue assumes we know.
		if f.OrderID == "" {
			f.OrderID = order.ID
		}
		if f.Symbol == "" {
			f.Symbol = order.Symbol
		}
		if f.Side == "" {
			f.Side = order.Side
		}
		e.onFill(f)
	}
	return nil
}

// Cancel asks the venue to cancel by client order ID. Returns nil only after
// venue confirmation.
func (e *LiveEngine) Cancel(ctx context.Context, order *domain.Order) error {
	return e.opRetrier.Do(ctx, "cancel "+order.ID, func(ctx context.Context) error {
		_, err := call(e, ctx, func(ctx context.Context) (struct{}, error) {
			return struct{}{}, e.client.Cancel(ctx, order.ID, order.Symbol)
		})
		return err
	})
}

// Status fetches the venue-side view of the order.
func (e *LiveEngine) Status(ctx context.Context, order *domain.Order) (venue.OrderStatus, error) {
	var st venue.OrderStatus
	err := e.opRetrier.Do(ctx, "status "+order.ID, func(ctx context.Context) error {
		s, err := call(e, ctx, func(ctx context.Context) (venue.OrderStatus, error) {
			return e.client.Status(ctx, order.ID)
		})
		if err != nil {
			return err
		}
		st = s
		return nil
	})
	return st, err
}

// call runs one venue API call behind the local gates. Gate denials are
// transient and do not feed the breaker; venue-health failures do.
func call[T any](e *LiveEngine, ctx context.Context, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if !e.breaker.Allow() {
		return zero, fmt.Errorf("%w: circuit open", venue.ErrUnavailable)
	}
	if !e.limiter.CanProceed() {
		return zero, fmt.Errorf("%w: local budget exhausted", venue.ErrRateLimited)
	}
	e.limiter.RecordCall()

	out, err := fn(ctx)
	if err != nil {
		if venue.Classify(err) != venue.ClassPermanent {
			e.breaker.RecordFailure()
		}
		return zero, err
	}
	e.breaker.RecordSuccess()
	return out, nil
}

// sleepFor blocks for d or until ctx is done.
func sleepFor(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
