package marketdata

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"

	"trading_go/internal/domain"
	"trading_go/internal/infra"
	"trading_go/pkg/quant"
)

// quoteMessage is the feed's wire format for one quote tick. Prices arrive as
// strings and are parsed as exact decimals, never through float64.
type quoteMessage struct {
	Type   string      `json:"type"` // "quote"
	Symbol string      `json:"symbol"`
	Last   json.Number `json:"last"`
	Bid    json.Number `json:"bid"`
	Ask    json.Number `json:"ask"`
	TsMs   int64       `json:"ts"`
}

// Feed streams quotes from the venue websocket into a QuoteBook using
// infra.BaseWSWorker for connection lifecycle.
type Feed struct {
	base    *infra.BaseWSWorker
	url     string
	symbols []string
	book    *QuoteBook
}

// NewFeed creates a feed for the given symbols.
func NewFeed(url string, symbols []string, book *QuoteBook) *Feed {
	f := &Feed{
		url:     url,
		symbols: symbols,
		book:    book,
	}
	f.base = infra.NewBaseWSWorker(f)
	return f
}

// ID returns the worker identifier.
func (f *Feed) ID() string { return "QUOTES" }

// GetURL returns the feed endpoint.
func (f *Feed) GetURL() string { return f.url }

// Start begins streaming. The worker reconnects with backoff on failure.
func (f *Feed) Start(ctx context.Context) {
	f.base.Start(ctx)
}

// Stop terminates the feed.
func (f *Feed) Stop() {
	f.base.Stop()
}

// OnConnect subscribes to the configured symbols.
func (f *Feed) OnConnect(ctx context.Context, conn *websocket.Conn) error {
	msg := map[string]interface{}{
		"action":  "subscribe",
		"type":    "quote",
		"symbols": f.symbols,
	}
	b, _ := json.Marshal(msg)
	return f.base.Write(websocket.TextMessage, b)
}

// OnMessage parses a quote tick and updates the book.
func (f *Feed) OnMessage(ctx context.Context, msg []byte) {
	var qm quoteMessage
	if err := json.Unmarshal(msg, &qm); err != nil || qm.Type != "quote" || qm.Symbol == "" {
		return
	}

	ts := qm.TsMs * 1000
	if ts == 0 {
		ts = time.Now().UnixMicro()
	}

	f.book.Update(domain.Quote{
		Symbol:       qm.Symbol,
		LastMicros:   quant.ToPriceMicrosStr(qm.Last.String()),
		BidMicros:    quant.ToPriceMicrosStr(qm.Bid.String()),
		AskMicros:    quant.ToPriceMicrosStr(qm.Ask.String()),
		TsUnixMicros: ts,
	})
}

// OnPing keeps the connection alive with a control frame.
func (f *Feed) OnPing(ctx context.Context, conn *websocket.Conn) error {
	return f.base.Write(websocket.PingMessage, nil)
}
