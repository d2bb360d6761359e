package domain

import "trading_go/pkg/quant"

// Position represents an open position in a single symbol.
type Position struct {
	Symbol         string            `json:"symbol"`
	QtyMilli       quant.QtyMilli    `json:"qty"`   // Positive for Long, negative for Short.
	AvgPriceMicros quant.PriceMicros `json:"price"` // Weighted average entry price.
}

// IsLong checks if the position is long.
func (p *Position) IsLong() bool {
	return p.QtyMilli > 0
}

// IsShort checks if the position is short.
func (p *Position) IsShort() bool {
	return p.QtyMilli < 0
}

// MarketValueMicros values the position at the given price.
func (p *Position) MarketValueMicros(price quant.PriceMicros) int64 {
	return quant.Notional(price, p.QtyMilli)
}
