package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"trading_go/internal/domain"
	"trading_go/internal/event"
	"trading_go/pkg/quant"
)

func newTestLog(t *testing.T) (*OrderLog, func()) {
	dir := filepath.Join(os.TempDir(), "order_log_test_"+t.Name())
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("mkdir failed: %v", err)
	}

	log, err := NewOrderLog(filepath.Join(dir, "orders.db"))
	if err != nil {
		t.Fatalf("NewOrderLog failed: %v", err)
	}
	return log, func() {
		log.Close()
		os.RemoveAll(dir)
	}
}

func TestOrderLog_SaveAndLoad(t *testing.T) {
	log, cleanup := newTestLog(t)
	defer cleanup()

	o := domain.NewOrder("AAPL", domain.SideBuy, domain.TypeMarket, quant.ToQtyMilli(10), "s1")
	if err := o.TransitionTo(domain.StatusSubmitted, "test"); err != nil {
		t.Fatal(err)
	}
	if err := log.SaveOrder(o); err != nil {
		t.Fatalf("SaveOrder failed: %v", err)
	}

	loaded, err := log.LoadOrder(context.Background(), o.ID)
	if err != nil {
		t.Fatalf("LoadOrder failed: %v", err)
	}
	if loaded == nil {
		t.Fatal("expected order, got nil")
	}
	if loaded.Status != domain.StatusSubmitted {
		t.Errorf("expected Submitted, got %s", loaded.Status)
	}
	if len(loaded.History) != 1 {
		t.Errorf("expected transition history to round-trip, got %d entries", len(loaded.History))
	}
}

func TestOrderLog_UpsertKeepsLatestState(t *testing.T) {
	log, cleanup := newTestLog(t)
	defer cleanup()

	o := domain.NewOrder("AAPL", domain.SideBuy, domain.TypeMarket, quant.ToQtyMilli(10), "s1")
	if err := log.SaveOrder(o); err != nil {
		t.Fatalf("SaveOrder failed: %v", err)
	}

	_ = o.TransitionTo(domain.StatusSubmitted, "test")
	_ = o.TransitionTo(domain.StatusAccepted, "test")
	if err := log.SaveOrder(o); err != nil {
		t.Fatalf("re-save failed: %v", err)
	}

	loaded, err := log.LoadOrder(context.Background(), o.ID)
	if err != nil {
		t.Fatalf("LoadOrder failed: %v", err)
	}
	if loaded.Status != domain.StatusAccepted {
		t.Errorf("expected latest state Accepted, got %s", loaded.Status)
	}
}

func TestOrderLog_LoadOpenOrders(t *testing.T) {
	log, cleanup := newTestLog(t)
	defer cleanup()

	open := domain.NewOrder("AAPL", domain.SideBuy, domain.TypeMarket, quant.ToQtyMilli(10), "s1")
	_ = open.TransitionTo(domain.StatusSubmitted, "test")
	_ = open.TransitionTo(domain.StatusAccepted, "test")

	closed := domain.NewOrder("MSFT", domain.SideBuy, domain.TypeMarket, quant.ToQtyMilli(5), "s1")
	_ = closed.TransitionTo(domain.StatusSubmitted, "test")
	_ = closed.TransitionTo(domain.StatusRejected, "test")

	unknown := domain.NewOrder("NVDA", domain.SideBuy, domain.TypeMarket, quant.ToQtyMilli(5), "s1")
	_ = unknown.TransitionTo(domain.StatusSubmitted, "test")
	_ = unknown.TransitionTo(domain.StatusUnknown, "test")

	for _, o := range []*domain.Order{open, closed, unknown} {
		if err := log.SaveOrder(o); err != nil {
			t.Fatalf("SaveOrder failed: %v", err)
		}
	}

	orders, err := log.LoadOpenOrders(context.Background())
	if err != nil {
		t.Fatalf("LoadOpenOrders failed: %v", err)
	}
	if len(orders) != 2 {
		t.Fatalf("expected 2 non-terminal orders, got %d", len(orders))
	}
	// Unknown orders need operator attention and must survive a restart.
	found := map[string]bool{}
	for _, o := range orders {
		found[string(o.Status)] = true
	}
	if !found["ACCEPTED"] || !found["UNKNOWN"] {
		t.Errorf("expected ACCEPTED and UNKNOWN recovered, got %v", found)
	}
}

func TestOrderLog_EventJournal(t *testing.T) {
	log, cleanup := newTestLog(t)
	defer cleanup()
	ctx := context.Background()

	fill := &event.FillEvent{Fill: domain.Fill{
		ExecID: "x-1", OrderID: "o-1", Symbol: "AAPL", Side: domain.SideBuy,
		QtyMilli: quant.ToQtyMilli(10), PriceMicros: quant.ToPriceMicros(100),
	}}
	fill.Seq = 1
	fill.Ts = 100

	update := &event.OrderUpdateEvent{OrderID: "o-1", Symbol: "AAPL", Status: domain.StatusFilled}
	update.Seq = 2
	update.Ts = 101

	if err := log.SaveEvent(ctx, fill); err != nil {
		t.Fatalf("SaveEvent failed: %v", err)
	}
	if err := log.SaveEvent(ctx, update); err != nil {
		t.Fatalf("SaveEvent failed: %v", err)
	}
	// Redelivery of the same sequence is ignored, not an error.
	if err := log.SaveEvent(ctx, fill); err != nil {
		t.Fatalf("duplicate SaveEvent should be a no-op: %v", err)
	}

	fills, err := log.LoadFillEvents(ctx)
	if err != nil {
		t.Fatalf("LoadFillEvents failed: %v", err)
	}
	if len(fills) != 1 {
		t.Fatalf("expected only the fill event, got %d", len(fills))
	}
	if fills[0].Fill.ExecID != "x-1" {
		t.Errorf("fill payload mismatch: %+v", fills[0].Fill)
	}
}

func TestOrderLog_Metadata(t *testing.T) {
	log, cleanup := newTestLog(t)
	defer cleanup()
	ctx := context.Background()

	if err := log.UpsertMetadata(ctx, "mode", "PAPER", 1); err != nil {
		t.Fatalf("UpsertMetadata failed: %v", err)
	}
	if err := log.UpsertMetadata(ctx, "mode", "LIVE", 2); err != nil {
		t.Fatalf("upsert overwrite failed: %v", err)
	}

	v, err := log.GetMetadata(ctx, "mode")
	if err != nil {
		t.Fatalf("GetMetadata failed: %v", err)
	}
	if v != "LIVE" {
		t.Errorf("expected LIVE, got %q", v)
	}

	missing, err := log.GetMetadata(ctx, "nope")
	if err != nil || missing != "" {
		t.Errorf("missing key should be empty, got %q err=%v", missing, err)
	}
}
