// Package backtest reconstructs account state from the event journal. Because
// fills are applied idempotently by execution ID, replaying the journal over
// any starting checkpoint converges to the same ledger.
package backtest

import (
	"context"
	"fmt"
	"log/slog"

	"trading_go/internal/ledger"
	"trading_go/internal/storage"
)

// Replayer rebuilds a ledger from journaled fill events.
type Replayer struct {
	log *storage.OrderLog
}

// NewReplayer creates a replayer over an order log.
func NewReplayer(log *storage.OrderLog) *Replayer {
	return &Replayer{log: log}
}

// RebuildLedger replays every journaled fill into a fresh ledger seeded with
// the given starting cash. Used for audit: the result should match the live
// ledger's checkpoint.
func (r *Replayer) RebuildLedger(ctx context.Context, initialCashMicros int64) (*ledger.Ledger, error) {
	fills, err := r.log.LoadFillEvents(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load fill events: %w", err)
	}

	led := ledger.NewLedger(initialCashMicros)
	applied := 0
	for _, ev := range fills {
		ok, err := led.ApplyFill(ev.Fill)
		if err != nil {
			return nil, fmt.Errorf("replay fill %s: %w", ev.Fill.ExecID, err)
		}
		if ok {
			applied++
		}
	}

	slog.Info("Ledger rebuilt from journal",
		slog.Int("events", len(fills)),
		slog.Int("applied", applied))
	return led, nil
}

// Verify replays the journal and compares the result against a checkpoint.
// Returns an error describing the first divergence.
func (r *Replayer) Verify(ctx context.Context, initialCashMicros int64, snap ledger.Snapshot) error {
	led, err := r.RebuildLedger(ctx, initialCashMicros)
	if err != nil {
		return err
	}

	rebuilt := led.Snapshot()
	if rebuilt.CashMicros != snap.CashMicros {
		return fmt.Errorf("cash diverged: journal %d vs checkpoint %d", rebuilt.CashMicros, snap.CashMicros)
	}
	if rebuilt.RealizedPnLMicros != snap.RealizedPnLMicros {
		return fmt.Errorf("realized pnl diverged: journal %d vs checkpoint %d",
			rebuilt.RealizedPnLMicros, snap.RealizedPnLMicros)
	}
	if len(rebuilt.Positions) != len(snap.Positions) {
		return fmt.Errorf("position count diverged: journal %d vs checkpoint %d",
			len(rebuilt.Positions), len(snap.Positions))
	}
	for sym, want := range snap.Positions {
		got, ok := rebuilt.Positions[sym]
		if !ok || got.QtyMilli != want.QtyMilli {
			return fmt.Errorf("position %s diverged: journal %+v vs checkpoint %+v", sym, got, want)
		}
	}
	return nil
}
