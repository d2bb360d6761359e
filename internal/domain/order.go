package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"trading_go/pkg/quant"
)

// Side is the order direction.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// OrderType selects the execution style.
type OrderType string

const (
	TypeMarket OrderType = "MARKET"
	TypeLimit  OrderType = "LIMIT"
	TypeStop   OrderType = "STOP"
)

// TIF is the time-in-force policy for an order.
type TIF string

const (
	TIFDay TIF = "DAY"
	TIFGTC TIF = "GTC"
	TIFIOC TIF = "IOC"
	TIFFOK TIF = "FOK"
)

// Status is the lifecycle state of an order.
type Status string

const (
	StatusCreated         Status = "CREATED"
	StatusSubmitted       Status = "SUBMITTED"
	StatusAccepted        Status = "ACCEPTED"
	StatusPartiallyFilled Status = "PARTIALLY_FILLED"
	StatusFilled          Status = "FILLED"
	StatusCancelled       Status = "CANCELLED"
	StatusRejected        Status = "REJECTED"
	StatusExpired         Status = "EXPIRED"
	// StatusUnknown marks an order whose venue-side state could not be
	// reconciled. Requires operator attention, never auto-cancelled.
	StatusUnknown Status = "UNKNOWN"
)

// transitions is the only legal forward path through the lifecycle.
// Terminal states have no outgoing edges. Unknown is the parked state for an
// ambiguous submit that could not be reconciled; it resolves to whatever the
// venue eventually reports.
var transitions = map[Status][]Status{
	StatusCreated:         {StatusSubmitted},
	StatusSubmitted:       {StatusAccepted, StatusRejected, StatusUnknown},
	StatusAccepted:        {StatusPartiallyFilled, StatusFilled, StatusCancelled, StatusExpired},
	StatusPartiallyFilled: {StatusPartiallyFilled, StatusFilled, StatusCancelled, StatusExpired},
	StatusUnknown:         {StatusAccepted, StatusPartiallyFilled, StatusFilled, StatusCancelled, StatusRejected, StatusExpired},
}

// IsTerminal reports whether the status has no outgoing transitions.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusFilled, StatusCancelled, StatusRejected, StatusExpired:
		return true
	default:
		return false
	}
}

// InvalidTransitionError is returned when a transition violates the state table.
// The order is left unchanged.
type InvalidTransitionError struct {
	OrderID string
	From    Status
	To      Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid order transition %s -> %s (order %s)", e.From, e.To, e.OrderID)
}

// Transition is an immutable history entry recorded for every status change.
type Transition struct {
	From         Status `json:"from"`
	To           Status `json:"to"`
	Note         string `json:"note,omitempty"`
	TsUnixMicros int64  `json:"ts"`
}

// Order represents a trading order and its audited lifecycle.
// Mutated only while holding the Order Manager's per-order lock.
type Order struct {
	ID               string            `json:"id"`
	Symbol           string            `json:"symbol"`
	Side             Side              `json:"side"`
	Type             OrderType         `json:"type"`
	QtyMilli         quant.QtyMilli    `json:"qty"`
	FilledQtyMilli   quant.QtyMilli    `json:"filled_qty"`
	LimitPriceMicros quant.PriceMicros `json:"limit_price,omitempty"`
	StopPriceMicros  quant.PriceMicros `json:"stop_price,omitempty"`
	TIF              TIF               `json:"tif"`
	Status           Status            `json:"status"`
	StrategyID       string            `json:"strategy_id"`
	VenueOrderID     string            `json:"venue_order_id,omitempty"`
	ParentID         string            `json:"parent_id,omitempty"`
	CreatedUnixM     int64             `json:"created_unix"`
	UpdatedUnixM     int64             `json:"updated_unix"`
	History          []Transition      `json:"history"`
}

// NewOrder creates an order in Created state with a fresh client-generated ID.
// The ID doubles as the idempotency token echoed to venues that support it.
func NewOrder(symbol string, side Side, typ OrderType, qty quant.QtyMilli, strategyID string) *Order {
	now := time.Now().UnixMicro()
	return &Order{
		ID:           uuid.NewString(),
		Symbol:       symbol,
		Side:         side,
		Type:         typ,
		QtyMilli:     qty,
		TIF:          TIFDay,
		Status:       StatusCreated,
		StrategyID:   strategyID,
		CreatedUnixM: now,
		UpdatedUnixM: now,
	}
}

// TransitionTo advances the order status per the state table and appends an
// immutable history entry. On an illegal transition the order is unchanged
// and an *InvalidTransitionError is returned.
func (o *Order) TransitionTo(to Status, note string) error {
	allowed, ok := transitions[o.Status]
	if !ok {
		return &InvalidTransitionError{OrderID: o.ID, From: o.Status, To: to}
	}
	legal := false
	for _, s := range allowed {
		if s == to {
			legal = true
			break
		}
	}
	if !legal {
		return &InvalidTransitionError{OrderID: o.ID, From: o.Status, To: to}
	}

	now := time.Now().UnixMicro()
	o.History = append(o.History, Transition{
		From:         o.Status,
		To:           to,
		Note:         note,
		TsUnixMicros: now,
	})
	o.Status = to
	o.UpdatedUnixM = now
	return nil
}

// ApplyFill accumulates a fill and advances to PartiallyFilled or Filled.
// The fill quantity must be positive and must not exceed the remaining quantity.
func (o *Order) ApplyFill(f Fill) error {
	if f.QtyMilli <= 0 {
		return fmt.Errorf("fill %s: non-positive quantity %d", f.ExecID, f.QtyMilli)
	}
	remaining := o.QtyMilli - o.FilledQtyMilli
	if f.QtyMilli > remaining {
		return fmt.Errorf("fill %s: quantity %d exceeds remaining %d (order %s)",
			f.ExecID, f.QtyMilli, remaining, o.ID)
	}

	to := StatusPartiallyFilled
	if o.FilledQtyMilli+f.QtyMilli == o.QtyMilli {
		to = StatusFilled
	}
	if err := o.TransitionTo(to, "fill "+f.ExecID); err != nil {
		return err
	}
	o.FilledQtyMilli += f.QtyMilli
	return nil
}

// RemainingQtyMilli returns the unfilled quantity.
func (o *Order) RemainingQtyMilli() quant.QtyMilli {
	return o.QtyMilli - o.FilledQtyMilli
}

// IsOpen checks if the order is still working at the venue.
func (o *Order) IsOpen() bool {
	switch o.Status {
	case StatusSubmitted, StatusAccepted, StatusPartiallyFilled:
		return true
	default:
		return false
	}
}
