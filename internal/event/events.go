// Package event defines the order-event stream exposed to reporting and
// alerting collaborators. Every terminal order outcome produces an event with
// a reason code; no signal is silently dropped.
package event

import (
	"trading_go/internal/domain"
)

// Type defines the type of event.
type Type uint16

const (
	EvOrderUpdate Type = iota + 1
	EvFill
	EvRiskRejected
	EvAlert
)

// Event is the interface for all published events.
type Event interface {
	GetSeq() uint64
	GetTs() int64
	GetType() Type
}

// BaseEvent contains common fields for all events. Seq is assigned by the bus
// on publish.
type BaseEvent struct {
	Seq uint64 `json:"seq"`
	Ts  int64  `json:"ts"` // Unix microseconds
}

func (e BaseEvent) GetSeq() uint64 { return e.Seq }
func (e BaseEvent) GetTs() int64   { return e.Ts }

// OrderUpdateEvent reports an order status change.
type OrderUpdateEvent struct {
	BaseEvent
	OrderID       string        `json:"order_id"`
	CorrelationID string        `json:"correlation_id,omitempty"`
	Symbol        string        `json:"symbol"`
	Status        domain.Status `json:"status"`
	Reason        string        `json:"reason,omitempty"`
	Fills         []domain.Fill `json:"fills,omitempty"`
}

func (e OrderUpdateEvent) GetType() Type { return EvOrderUpdate }

// FillEvent reports a single execution applied to the ledger.
type FillEvent struct {
	BaseEvent
	Fill domain.Fill `json:"fill"`
}

func (e FillEvent) GetType() Type { return EvFill }

// RiskRejectedEvent reports a signal rejected by the pre-trade gate.
// No order is created for a rejected signal.
type RiskRejectedEvent struct {
	BaseEvent
	Signal domain.Signal `json:"signal"`
	Reason string        `json:"reason"`
}

func (e RiskRejectedEvent) GetType() Type { return EvRiskRejected }

// AlertEvent flags a condition requiring operator attention, e.g. an order
// whose venue-side state could not be reconciled.
type AlertEvent struct {
	BaseEvent
	OrderID string `json:"order_id,omitempty"`
	Message string `json:"message"`
}

func (e AlertEvent) GetType() Type { return EvAlert }
