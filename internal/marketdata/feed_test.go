package marketdata

import (
	"context"
	"encoding/json"
	"testing"

	"trading_go/internal/domain"
	"trading_go/pkg/quant"
)

func TestQuoteBook_UpdateAndLookup(t *testing.T) {
	book := NewQuoteBook()

	if _, ok := book.Quote("AAPL"); ok {
		t.Fatal("empty book should miss")
	}

	book.Update(domain.Quote{Symbol: "AAPL", LastMicros: quant.ToPriceMicros(189.25), TsUnixMicros: 10})

	q, ok := book.Quote("AAPL")
	if !ok || q.LastMicros != quant.ToPriceMicros(189.25) {
		t.Errorf("expected 189.25, got %v %v", ok, q.LastMicros)
	}
}

func TestQuoteBook_DropsStaleUpdates(t *testing.T) {
	book := NewQuoteBook()
	book.Update(domain.Quote{Symbol: "AAPL", LastMicros: quant.ToPriceMicros(190), TsUnixMicros: 20})
	book.Update(domain.Quote{Symbol: "AAPL", LastMicros: quant.ToPriceMicros(185), TsUnixMicros: 10})

	q, _ := book.Quote("AAPL")
	if q.LastMicros != quant.ToPriceMicros(190) {
		t.Errorf("stale update must not overwrite, got %s", q.LastMicros)
	}
}

func TestQuoteBook_NotifiesSubscribers(t *testing.T) {
	book := NewQuoteBook()

	var seen []domain.Quote
	book.Subscribe(func(q domain.Quote) { seen = append(seen, q) })

	book.Update(domain.Quote{Symbol: "AAPL", LastMicros: quant.ToPriceMicros(100), TsUnixMicros: 1})
	book.Update(domain.Quote{Symbol: "MSFT", LastMicros: quant.ToPriceMicros(400), TsUnixMicros: 1})

	if len(seen) != 2 {
		t.Fatalf("expected 2 notifications, got %d", len(seen))
	}
	if seen[0].Symbol != "AAPL" || seen[1].Symbol != "MSFT" {
		t.Errorf("unexpected notification order: %v", seen)
	}
}

func TestFeed_QuoteParsing(t *testing.T) {
	book := NewQuoteBook()
	feed := NewFeed("ws://example", []string{"AAPL"}, book)

	msg := map[string]interface{}{
		"type":   "quote",
		"symbol": "AAPL",
		"last":   json.Number("189.25"),
		"bid":    json.Number("189.24"),
		"ask":    json.Number("189.26"),
		"ts":     int64(1704067200000),
	}
	data, _ := json.Marshal(msg)
	feed.OnMessage(context.Background(), data)

	q, ok := book.Quote("AAPL")
	if !ok {
		t.Fatal("expected a quote in the book")
	}
	if q.LastMicros != quant.ToPriceMicros(189.25) {
		t.Errorf("expected last 189.25, got %s", q.LastMicros)
	}
	if q.BidMicros != quant.ToPriceMicros(189.24) || q.AskMicros != quant.ToPriceMicros(189.26) {
		t.Errorf("bid/ask mismatch: %s / %s", q.BidMicros, q.AskMicros)
	}
	if q.TsUnixMicros != 1704067200000*1000 {
		t.Errorf("timestamp should be microseconds, got %d", q.TsUnixMicros)
	}
}

func TestFeed_IgnoresNonQuoteMessages(t *testing.T) {
	book := NewQuoteBook()
	feed := NewFeed("ws://example", []string{"AAPL"}, book)

	for _, raw := range []string{
		`{"type":"heartbeat"}`,
		`{"type":"quote"}`, // no symbol
		`not json`,
	} {
		feed.OnMessage(context.Background(), []byte(raw))
	}

	if len(book.Symbols()) != 0 {
		t.Error("malformed messages must not populate the book")
	}
}
