// Package ledger is the single source of truth for cash and positions.
// State changes only through committed fills; in-flight orders are invisible
// to every consumer, including the risk manager.
package ledger

import (
	"log/slog"
	"sync"
	"time"

	"trading_go/internal/domain"
	"trading_go/pkg/quant"
)

// Snapshot is a point-in-time copy of committed ledger state. It is the only
// input the risk manager may use for capital checks.
type Snapshot struct {
	CashMicros        int64                      `json:"cash"`
	Positions         map[string]domain.Position `json:"positions"`
	RealizedPnLMicros int64                      `json:"realized_pnl"`
	DayRealizedMicros int64                      `json:"day_realized_pnl"`
	AppliedExecIDs    []string                   `json:"applied_exec_ids"`
	TsUnixMicros      int64                      `json:"ts"`
}

// Ledger tracks cash, positions and realized PnL from applied fills.
// ApplyFill is idempotent by execution ID; each fill commits atomically under
// the ledger lock so concurrent order paths cannot lose updates.
type Ledger struct {
	mu          sync.Mutex
	cashMicros  int64
	positions   map[string]*domain.Position
	applied     map[string]struct{}
	realized    int64
	dayRealized int64
	dayAnchor   time.Time // UTC midnight of the current trading day

	now func() time.Time
}

// NewLedger creates a ledger with the given starting cash.
func NewLedger(initialCashMicros int64) *Ledger {
	l := &Ledger{
		cashMicros: initialCashMicros,
		positions:  make(map[string]*domain.Position),
		applied:    make(map[string]struct{}),
		now:        time.Now,
	}
	l.dayAnchor = utcMidnight(l.now())
	return l
}

// ApplyFill commits a fill exactly once, keyed by execution ID. Re-applying
// a seen ExecID is a no-op returning false. The position delta, cash move and
// realized PnL are committed atomically.
func (l *Ledger) ApplyFill(f domain.Fill) (bool, error) {
	if f.QtyMilli <= 0 {
		return false, &InvalidFillError{ExecID: f.ExecID, Reason: "non-positive quantity"}
	}
	if f.ExecID == "" {
		return false, &InvalidFillError{ExecID: f.ExecID, Reason: "missing execution id"}
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, seen := l.applied[f.ExecID]; seen {
		slog.Debug("Duplicate fill ignored", slog.String("exec_id", f.ExecID))
		return false, nil
	}

	l.rollDay()

	signedQty := int64(f.QtyMilli)
	if f.Side == domain.SideSell {
		signedQty = -signedQty
	}

	notional := f.NotionalMicros()
	if f.Side == domain.SideBuy {
		l.cashMicros = quant.SafeSub(l.cashMicros, quant.SafeAdd(notional, f.CommissionMicros))
	} else {
		l.cashMicros = quant.SafeAdd(l.cashMicros, quant.SafeSub(notional, f.CommissionMicros))
	}

	l.applyPositionDelta(f.Symbol, quant.QtyMilli(signedQty), f.PriceMicros)

	l.applied[f.ExecID] = struct{}{}
	return true, nil
}

// applyPositionDelta merges a signed quantity into the symbol position,
// realizing PnL on any closing portion. Must hold mu.
func (l *Ledger) applyPositionDelta(symbol string, delta quant.QtyMilli, price quant.PriceMicros) {
	pos, ok := l.positions[symbol]
	if !ok {
		l.positions[symbol] = &domain.Position{Symbol: symbol, QtyMilli: delta, AvgPriceMicros: price}
		return
	}

	sameDirection := (pos.QtyMilli > 0) == (delta > 0)
	if sameDirection {
		// Extending: weighted average entry price.
		oldNotional := quant.Notional(pos.AvgPriceMicros, pos.QtyMilli)
		addNotional := quant.Notional(price, delta)
		newQty := pos.QtyMilli + delta
		pos.AvgPriceMicros = quant.PriceMicros(quant.MulDiv(
			quant.SafeAdd(oldNotional, addNotional), quant.QtyScale, int64(newQty)))
		pos.QtyMilli = newQty
		return
	}

	// Reducing (or flipping through zero): realize PnL on the closed portion.
	closing := delta
	if abs(delta) > abs(pos.QtyMilli) {
		closing = -pos.QtyMilli
	}
	// For a long, closing qty is negative: pnl = (price - avg) * closedQty.
	closedQty := -closing
	pnl := quant.MulDiv(int64(price)-int64(pos.AvgPriceMicros), int64(closedQty), quant.QtyScale)
	l.realized = quant.SafeAdd(l.realized, pnl)
	l.dayRealized = quant.SafeAdd(l.dayRealized, pnl)

	remainder := pos.QtyMilli + delta
	switch {
	case remainder == 0:
		delete(l.positions, symbol)
	case (remainder > 0) == (pos.QtyMilli > 0):
		pos.QtyMilli = remainder // partial reduce keeps entry price
	default:
		// Flipped: the surviving side was opened at the fill price.
		pos.QtyMilli = remainder
		pos.AvgPriceMicros = price
	}
}

// Snapshot returns a deep copy reflecting only committed fills.
func (l *Ledger) Snapshot() Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.rollDay()

	positions := make(map[string]domain.Position, len(l.positions))
	for sym, p := range l.positions {
		positions[sym] = *p
	}
	execIDs := make([]string, 0, len(l.applied))
	for id := range l.applied {
		execIDs = append(execIDs, id)
	}

	return Snapshot{
		CashMicros:        l.cashMicros,
		Positions:         positions,
		RealizedPnLMicros: l.realized,
		DayRealizedMicros: l.dayRealized,
		AppliedExecIDs:    execIDs,
		TsUnixMicros:      l.now().UnixMicro(),
	}
}

// Restore replaces ledger state from a checkpoint snapshot. Used once at
// startup before any fills are applied.
func (l *Ledger) Restore(snap Snapshot) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.cashMicros = snap.CashMicros
	l.realized = snap.RealizedPnLMicros
	l.dayRealized = snap.DayRealizedMicros
	l.positions = make(map[string]*domain.Position, len(snap.Positions))
	for sym, p := range snap.Positions {
		cp := p
		l.positions[sym] = &cp
	}
	l.applied = make(map[string]struct{}, len(snap.AppliedExecIDs))
	for _, id := range snap.AppliedExecIDs {
		l.applied[id] = struct{}{}
	}
	if snap.TsUnixMicros > 0 {
		l.dayAnchor = utcMidnight(time.UnixMicro(snap.TsUnixMicros).UTC())
	}
}

// AccountValueMicros marks the portfolio at the supplied quotes.
// Positions without a quote are valued at their entry price.
func (l *Ledger) AccountValueMicros(quotes map[string]quant.PriceMicros) int64 {
	l.mu.Lock()
	defer l.mu.Unlock()

	value := l.cashMicros
	for sym, pos := range l.positions {
		price, ok := quotes[sym]
		if !ok {
			price = pos.AvgPriceMicros
		}
		value = quant.SafeAdd(value, pos.MarketValueMicros(price))
	}
	return value
}

// UnrealizedPnLMicros computes open-position PnL at the supplied quotes.
func (l *Ledger) UnrealizedPnLMicros(quotes map[string]quant.PriceMicros) int64 {
	l.mu.Lock()
	defer l.mu.Unlock()

	var pnl int64
	for sym, pos := range l.positions {
		price, ok := quotes[sym]
		if !ok {
			continue
		}
		pnl = quant.SafeAdd(pnl,
			quant.MulDiv(int64(price)-int64(pos.AvgPriceMicros), int64(pos.QtyMilli), quant.QtyScale))
	}
	return pnl
}

// rollDay resets the daily realized counter when the UTC day changes.
// Must hold mu.
func (l *Ledger) rollDay() {
	midnight := utcMidnight(l.now())
	if midnight.After(l.dayAnchor) {
		l.dayAnchor = midnight
		l.dayRealized = 0
	}
}

func utcMidnight(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func abs(q quant.QtyMilli) quant.QtyMilli {
	if q < 0 {
		return -q
	}
	return q
}

// InvalidFillError reports a fill that fails validation before any state change.
type InvalidFillError struct {
	ExecID string
	Reason string
}

func (e *InvalidFillError) Error() string {
	return "invalid fill " + e.ExecID + ": " + e.Reason
}
