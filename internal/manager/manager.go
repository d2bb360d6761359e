// Package manager orchestrates the order lifecycle: signals come in, pass the
// pre-trade risk gate, get sized, submitted, and tracked until terminal. It is
// the only component that mutates orders after submission, always under the
// per-order lock.
package manager

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"trading_go/internal/domain"
	"trading_go/internal/event"
	"trading_go/internal/execution"
	"trading_go/internal/infra"
	"trading_go/internal/ledger"
	"trading_go/internal/risk"
	"trading_go/pkg/quant"
)

// OrderStore persists every order mutation to the durable order log.
type OrderStore interface {
	SaveOrder(o *domain.Order) error
}

// Config holds the manager's protective-exit policy.
type Config struct {
	StopLossEnabled bool
	// StopLossDistancePct places the child stop this fraction below the fill
	// price (e.g. 0.02 for 2%).
	StopLossDistancePct float64
	// StopLossOnPartialFill places a child per partial fill instead of one
	// child once the parent completes.
	StopLossOnPartialFill bool
}

// managedOrder pairs an order with its lock and the correlation ID of the
// signal that created it.
type managedOrder struct {
	mu     sync.Mutex
	order  *domain.Order
	corrID string
}

// Manager routes signals through risk, sizing and execution.
//
// Locking protocol: engine.Submit is called without the per-order lock; the
// engines guarantee all order mutations inside Submit happen before any fill
// callback. Fill application and cancellation take the per-order lock.
type Manager struct {
	cfg     Config
	risk    *risk.Manager
	sizer   *risk.Sizer
	ledger  *ledger.Ledger
	engine  execution.Engine
	bus     *event.Bus
	quotes  execution.QuoteSource
	limiter *infra.WindowRateLimiter
	store   OrderStore
	log     *slog.Logger

	mu     sync.Mutex
	orders map[string]*managedOrder
}

// New wires an order manager. The limiter must be the same instance the risk
// manager checks, so submissions consume the budget the gate observes.
func New(cfg Config, riskMgr *risk.Manager, sizer *risk.Sizer, led *ledger.Ledger,
	engine execution.Engine, bus *event.Bus, quotes execution.QuoteSource,
	limiter *infra.WindowRateLimiter, store OrderStore, log *slog.Logger) *Manager {

	return &Manager{
		cfg:     cfg,
		risk:    riskMgr,
		sizer:   sizer,
		ledger:  led,
		engine:  engine,
		bus:     bus,
		quotes:  quotes,
		limiter: limiter,
		store:   store,
		log:     log,
		orders:  make(map[string]*managedOrder),
	}
}

// HandleFill is the engines' fill callback. The ledger is the dedup
// authority: only a first-time exec ID advances the order. A fill for an
// order the manager does not track never touches the ledger; it raises an
// operator alert instead.
func (m *Manager) HandleFill(f domain.Fill) {
	mo := m.lookup(f.OrderID)
	if mo == nil {
		m.log.Error("Fill for unknown order",
			slog.String("order_id", f.OrderID), slog.String("exec_id", f.ExecID))
		m.bus.Publish(&event.AlertEvent{OrderID: f.OrderID,
			Message: "fill " + f.ExecID + " references an unknown order; ledger not modified"})
		return
	}

	applied, err := m.ledger.ApplyFill(f)
	if err != nil {
		m.log.Error("Fill rejected by ledger",
			slog.String("exec_id", f.ExecID), slog.Any("error", err))
		return
	}
	if !applied {
		return // duplicate delivery, e.g. from reconciliation
	}

	mo.mu.Lock()
	if mo.order.Status == domain.StatusUnknown {
		// A fill proves the ambiguous submit landed.
		_ = mo.order.TransitionTo(domain.StatusAccepted, "fill received")
	}
	err = mo.order.ApplyFill(f)
	snapshot := *mo.order
	corrID := mo.corrID
	mo.mu.Unlock()

	if err != nil {
		m.log.Error("Fill inconsistent with order state",
			slog.String("order_id", f.OrderID), slog.Any("error", err))
		m.bus.Publish(&event.AlertEvent{OrderID: f.OrderID,
			Message: "fill could not be applied to order: " + err.Error()})
		return
	}

	m.persist(&snapshot)
	m.bus.Publish(&event.FillEvent{Fill: f})
	m.publishUpdate(&snapshot, corrID, "fill "+f.ExecID)

	m.maybePlaceStopLoss(&snapshot, f, corrID)
}

// HandleSignal runs the full intake pipeline for one strategy signal. A
// rejected signal produces a RiskRejectedEvent and no order; a zero-sized
// signal produces no order and no event. The returned order, if any, has been
// submitted.
func (m *Manager) HandleSignal(ctx context.Context, sig domain.Signal) (*domain.Order, error) {
	corrID := uuid.NewString()

	q, ok := m.quotes.Quote(sig.Symbol)
	if !ok || q.LastMicros <= 0 {
		return nil, fmt.Errorf("signal %s %s: no quote", sig.Side, sig.Symbol)
	}
	price := q.LastMicros

	snap := m.ledger.Snapshot()
	accountValue := m.ledger.AccountValueMicros(m.lastPrices())

	qty := m.quantityFor(sig, snap, accountValue, price)
	if qty <= 0 {
		m.log.Info("Signal sized to zero, no order",
			slog.String("symbol", sig.Symbol), slog.String("side", string(sig.Side)))
		return nil, nil
	}

	if ok, reason := m.risk.CheckPreOrder(snap, accountValue, sig.Symbol, qty, sig.Side, price); !ok {
		m.log.Warn("Signal rejected by risk gate",
			slog.String("symbol", sig.Symbol),
			slog.String("side", string(sig.Side)),
			slog.String("reason", string(reason)))
		m.bus.Publish(&event.RiskRejectedEvent{Signal: sig, Reason: string(reason)})
		return nil, nil
	}

	order := domain.NewOrder(sig.Symbol, sig.Side, domain.TypeMarket, qty, sig.StrategyID)
	m.register(order, corrID)
	m.persist(order)
	m.publishUpdate(order, corrID, "created")

	return order, m.submit(ctx, order, corrID)
}

// quantityFor sizes the order. An opposite-side signal against an existing
// position closes it in full; otherwise the sizer decides from account value.
func (m *Manager) quantityFor(sig domain.Signal, snap ledger.Snapshot, accountValue int64, price quant.PriceMicros) quant.QtyMilli {
	if pos, held := snap.Positions[sig.Symbol]; held {
		long := pos.QtyMilli > 0
		if (long && sig.Side == domain.SideSell) || (!long && sig.Side == domain.SideBuy) {
			if pos.QtyMilli < 0 {
				return -pos.QtyMilli
			}
			return pos.QtyMilli
		}
	}
	return m.sizer.Size(accountValue, price)
}

// submit consumes the rate budget and routes the order to the engine.
func (m *Manager) submit(ctx context.Context, order *domain.Order, corrID string) error {
	m.limiter.RecordCall()

	err := m.engine.Submit(ctx, order)

	mo := m.lookup(order.ID)
	mo.mu.Lock()
	snapshot := *mo.order
	mo.mu.Unlock()

	m.persist(&snapshot)
	note := "submitted"
	if err != nil {
		note = err.Error()
	}
	m.publishUpdate(&snapshot, corrID, note)
	return err
}

// Cancel requests cancellation of a working order. The order transitions to
// Cancelled only after the venue confirms.
func (m *Manager) Cancel(ctx context.Context, orderID string) error {
	mo := m.lookup(orderID)
	if mo == nil {
		return fmt.Errorf("cancel %s: unknown order", orderID)
	}

	mo.mu.Lock()
	defer mo.mu.Unlock()

	switch mo.order.Status {
	case domain.StatusAccepted, domain.StatusPartiallyFilled:
	default:
		return fmt.Errorf("cancel %s: order is %s", orderID, mo.order.Status)
	}

	if err := m.engine.Cancel(ctx, mo.order); err != nil {
		return fmt.Errorf("cancel %s: %w", orderID, err)
	}
	if err := mo.order.TransitionTo(domain.StatusCancelled, "venue confirmed cancel"); err != nil {
		return err
	}

	snapshot := *mo.order
	m.persist(&snapshot)
	m.publishUpdate(&snapshot, mo.corrID, "cancelled")
	return nil
}

// Get returns a copy of a tracked order.
func (m *Manager) Get(orderID string) (domain.Order, bool) {
	mo := m.lookup(orderID)
	if mo == nil {
		return domain.Order{}, false
	}
	mo.mu.Lock()
	defer mo.mu.Unlock()
	return *mo.order, true
}

// OpenOrders returns copies of all non-terminal orders.
func (m *Manager) OpenOrders() []domain.Order {
	m.mu.Lock()
	tracked := make([]*managedOrder, 0, len(m.orders))
	for _, mo := range m.orders {
		tracked = append(tracked, mo)
	}
	m.mu.Unlock()

	var open []domain.Order
	for _, mo := range tracked {
		mo.mu.Lock()
		if mo.order.IsOpen() || mo.order.Status == domain.StatusUnknown {
			open = append(open, *mo.order)
		}
		mo.mu.Unlock()
	}
	return open
}

// maybePlaceStopLoss creates a protective sell-stop child after a buy fill,
// per policy either once the parent completes or per partial fill. Protective
// exits reduce exposure, so they skip the pre-trade risk gate.
func (m *Manager) maybePlaceStopLoss(parent *domain.Order, f domain.Fill, corrID string) {
	if !m.cfg.StopLossEnabled || parent.Side != domain.SideBuy || parent.ParentID != "" {
		return
	}

	var qty quant.QtyMilli
	switch {
	case m.cfg.StopLossOnPartialFill:
		qty = f.QtyMilli
	case parent.Status == domain.StatusFilled:
		qty = parent.FilledQtyMilli
	default:
		return // wait for the parent to complete
	}

	stopPrice := quant.PriceMicros(int64(f.PriceMicros) -
		int64(float64(f.PriceMicros)*m.cfg.StopLossDistancePct))

	child := domain.NewOrder(parent.Symbol, domain.SideSell, domain.TypeStop, qty, parent.StrategyID)
	child.ParentID = parent.ID
	child.StopPriceMicros = stopPrice

	m.register(child, corrID)
	m.persist(child)
	m.publishUpdate(child, corrID, "stop-loss child of "+parent.ID)

	m.limiter.RecordCall()
	if err := m.engine.Submit(context.Background(), child); err != nil {
		m.log.Error("Stop-loss child submission failed",
			slog.String("parent_id", parent.ID),
			slog.String("child_id", child.ID),
			slog.Any("error", err))
		m.bus.Publish(&event.AlertEvent{OrderID: child.ID,
			Message: "stop-loss child failed, position unprotected: " + err.Error()})
	}

	mo := m.lookup(child.ID)
	mo.mu.Lock()
	snapshot := *mo.order
	mo.mu.Unlock()
	m.persist(&snapshot)
	m.publishUpdate(&snapshot, corrID, "stop-loss submitted")
}

func (m *Manager) register(order *domain.Order, corrID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orders[order.ID] = &managedOrder{order: order, corrID: corrID}
}

func (m *Manager) lookup(orderID string) *managedOrder {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.orders[orderID]
}

// lastPrices collects the latest quote per held symbol for marking.
func (m *Manager) lastPrices() map[string]quant.PriceMicros {
	prices := make(map[string]quant.PriceMicros)
	for sym := range m.ledger.Snapshot().Positions {
		if q, ok := m.quotes.Quote(sym); ok && q.LastMicros > 0 {
			prices[sym] = q.LastMicros
		}
	}
	return prices
}

func (m *Manager) persist(order *domain.Order) {
	if m.store == nil {
		return
	}
	if err := m.store.SaveOrder(order); err != nil {
		m.log.Error("Order persistence failed",
			slog.String("order_id", order.ID), slog.Any("error", err))
	}
}

func (m *Manager) publishUpdate(order *domain.Order, corrID, reason string) {
	m.bus.Publish(&event.OrderUpdateEvent{
		OrderID:       order.ID,
		CorrelationID: corrID,
		Symbol:        order.Symbol,
		Status:        order.Status,
		Reason:        reason,
	})
}
