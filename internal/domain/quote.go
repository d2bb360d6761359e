package domain

import "trading_go/pkg/quant"

// Quote is the latest market snapshot for a symbol.
type Quote struct {
	Symbol       string            `json:"symbol"`
	LastMicros   quant.PriceMicros `json:"last"`
	BidMicros    quant.PriceMicros `json:"bid"`
	AskMicros    quant.PriceMicros `json:"ask"`
	TsUnixMicros int64             `json:"ts"`
}
