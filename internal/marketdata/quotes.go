// Package marketdata maintains the latest quote per symbol and streams
// updates from the venue's websocket feed.
package marketdata

import (
	"sync"

	"trading_go/internal/domain"
)

// QuoteBook holds the most recent quote per symbol and fans updates out to
// subscribers (e.g. the paper engine's resting-order evaluation).
type QuoteBook struct {
	mu     sync.RWMutex
	quotes map[string]domain.Quote
	subs   []func(domain.Quote)
}

// NewQuoteBook creates an empty quote book.
func NewQuoteBook() *QuoteBook {
	return &QuoteBook{quotes: make(map[string]domain.Quote)}
}

// Quote returns the latest quote for a symbol.
func (b *QuoteBook) Quote(symbol string) (domain.Quote, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	q, ok := b.quotes[symbol]
	return q, ok
}

// Subscribe registers a callback invoked on every update, after the book is
// written. Callbacks run on the feed goroutine; keep them fast.
func (b *QuoteBook) Subscribe(fn func(domain.Quote)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs = append(b.subs, fn)
}

// Update stores a quote and notifies subscribers. Stale updates (older than
// the stored quote) are dropped.
func (b *QuoteBook) Update(q domain.Quote) {
	b.mu.Lock()
	if prev, ok := b.quotes[q.Symbol]; ok && q.TsUnixMicros < prev.TsUnixMicros {
		b.mu.Unlock()
		return
	}
	b.quotes[q.Symbol] = q
	subs := b.subs
	b.mu.Unlock()

	for _, fn := range subs {
		fn(q)
	}
}

// Symbols returns the symbols currently in the book.
func (b *QuoteBook) Symbols() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]string, 0, len(b.quotes))
	for sym := range b.quotes {
		out = append(out, sym)
	}
	return out
}
