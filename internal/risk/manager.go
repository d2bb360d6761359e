package risk

import (
	"trading_go/internal/domain"
	"trading_go/internal/infra"
	"trading_go/internal/ledger"
	"trading_go/pkg/quant"
)

// Manager is the pre-trade accept/reject gate. CheckPreOrder is a pure
// function over a ledger snapshot and the injected limits; it commits
// nothing, which keeps its decisions deterministic and testable.
type Manager struct {
	limits  Limits
	limiter *infra.WindowRateLimiter
}

// NewManager creates a risk manager over the shared order rate limiter.
func NewManager(limits Limits, limiter *infra.WindowRateLimiter) *Manager {
	return &Manager{limits: limits, limiter: limiter}
}

// Limits returns the injected limits value.
func (m *Manager) Limits() Limits {
	return m.limits
}

// CheckPreOrder evaluates the fixed check order: (a) rate-limiter budget,
// (b) max open positions, (c) order notional vs position cap, (d) realized
// daily loss. The first failing check decides the rejection reason.
//
// The max-open-positions check blocks only buys opening a new symbol:
// reducing or closing an existing position must always remain possible.
func (m *Manager) CheckPreOrder(
	snap ledger.Snapshot,
	accountValueMicros int64,
	symbol string,
	qty quant.QtyMilli,
	side domain.Side,
	price quant.PriceMicros,
) (bool, Reason) {
	if !m.limiter.CanProceed() {
		return false, ReasonRateLimited
	}

	_, held := snap.Positions[symbol]
	if side == domain.SideBuy && !held &&
		m.limits.MaxOpenPositions > 0 && len(snap.Positions) >= m.limits.MaxOpenPositions {
		return false, ReasonMaxPositions
	}

	if m.limits.MaxPositionPct > 0 {
		notional := quant.Notional(price, qty)
		maxNotional := int64(m.limits.MaxPositionPct * float64(accountValueMicros))
		if notional > maxNotional {
			return false, ReasonMaxNotional
		}
	}

	if m.limits.MaxDailyLossMicros > 0 && snap.DayRealizedMicros <= -m.limits.MaxDailyLossMicros {
		return false, ReasonMaxDailyLoss
	}

	return true, ReasonNone
}
