package domain

import "trading_go/pkg/quant"

// Fill represents a single execution against an order.
// ExecID is the dedup key: the ledger applies each ExecID exactly once.
type Fill struct {
	ExecID           string            `json:"exec_id"`
	OrderID          string            `json:"order_id"`
	Symbol           string            `json:"symbol"`
	Side             Side              `json:"side"`
	QtyMilli         quant.QtyMilli    `json:"qty"`
	PriceMicros      quant.PriceMicros `json:"price"`
	CommissionMicros int64             `json:"commission"`
	TsUnixMicros     int64             `json:"ts"`
}

// NotionalMicros returns the gross fill value (price * qty), excluding commission.
func (f Fill) NotionalMicros() int64 {
	return quant.Notional(f.PriceMicros, f.QtyMilli)
}
