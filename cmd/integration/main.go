// Integration check: drives a scripted paper session end to end without any
// external services. Exits non-zero on the first failed step.
package main

import (
	"context"
	"io"
	"log/slog"
	"os"

	"trading_go/internal/domain"
	"trading_go/internal/event"
	"trading_go/internal/execution"
	"trading_go/internal/infra"
	"trading_go/internal/ledger"
	"trading_go/internal/manager"
	"trading_go/internal/marketdata"
	"trading_go/internal/risk"
	"trading_go/pkg/quant"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)
	slog.Info("🚀 Starting paper execution integration check...")

	ctx := context.Background()

	// Wire the stack by hand: 100k account, 10% position cap, 0.1% commission.
	quotes := marketdata.NewQuoteBook()
	led := ledger.NewLedger(100_000 * quant.PriceScale)
	limiter := infra.NewWindowRateLimiter(60, 600)
	riskMgr := risk.NewManager(risk.Limits{
		MaxPositionPct:     0.1,
		MaxOpenPositions:   5,
		MaxOrdersPerMinute: 60,
		MaxOrdersPerHour:   600,
	}, limiter)
	sizer := risk.NewSizer(risk.SizerConfig{
		Mode:         risk.SizeFixedFractional,
		RiskPerTrade: 0.09,
		LotSize:      quant.ToQtyMilli(1),
	})
	bus := event.NewBus()

	var mgr *manager.Manager
	engine := execution.NewPaperEngine(quotes, 0.001, 0,
		func(f domain.Fill) { mgr.HandleFill(f) },
		slog.New(slog.NewTextHandler(io.Discard, nil)))
	mgr = manager.New(manager.Config{
		StopLossEnabled:     true,
		StopLossDistancePct: 0.02,
	}, riskMgr, sizer, led, engine, bus, quotes, limiter, nil, logger)
	quotes.Subscribe(engine.OnQuote)

	quotes.Update(domain.Quote{Symbol: "AAPL", LastMicros: quant.ToPriceMicros(100), TsUnixMicros: 1})

	// STEP 1: buy signal fills 90 shares and spawns a stop-loss child.
	slog.Info("STEP 1: Buy signal...")
	order, err := mgr.HandleSignal(ctx, domain.Signal{
		Symbol: "AAPL", Side: domain.SideBuy, Confidence: 0.9, StrategyID: "integration",
	})
	fatalIf(err != nil || order == nil, "buy signal failed", err)

	got, _ := mgr.Get(order.ID)
	fatalIf(got.Status != domain.StatusFilled, "expected a filled buy", nil)
	fatalIf(got.FilledQtyMilli != quant.ToQtyMilli(90), "expected 90 shares", nil)
	slog.Info("✅ Buy filled", "qty", got.FilledQtyMilli.String())

	open := mgr.OpenOrders()
	fatalIf(len(open) != 1 || open[0].ParentID != order.ID, "expected one stop-loss child", nil)
	slog.Info("✅ Stop-loss child resting", "stop", open[0].StopPriceMicros.String())

	// STEP 2: the market falls through the stop; the child flattens the book.
	slog.Info("STEP 2: Price drops through the stop...")
	quotes.Update(domain.Quote{Symbol: "AAPL", LastMicros: quant.ToPriceMicros(97.50), TsUnixMicros: 2})

	snap := led.Snapshot()
	_, held := snap.Positions["AAPL"]
	fatalIf(held, "expected a flat book after the stop fired", nil)
	slog.Info("✅ Stop-loss fired",
		"realized_pnl", quant.PriceMicros(snap.RealizedPnLMicros).String(),
		"cash", quant.PriceMicros(snap.CashMicros).String())

	// STEP 3: an oversized signal is rejected with a reason code, no order.
	slog.Info("STEP 3: Oversized signal...")
	events := bus.Subscribe(16)
	bigSizer := risk.NewSizer(risk.SizerConfig{
		Mode:         risk.SizeFixedFractional,
		RiskPerTrade: 0.5,
		LotSize:      quant.ToQtyMilli(1),
	})
	mgr2 := manager.New(manager.Config{}, riskMgr, bigSizer, led, engine, bus, quotes, limiter, nil, logger)
	order, err = mgr2.HandleSignal(ctx, domain.Signal{
		Symbol: "AAPL", Side: domain.SideBuy, Confidence: 0.9, StrategyID: "integration",
	})
	fatalIf(err != nil || order != nil, "expected a silent risk rejection", err)

	select {
	case ev := <-events:
		rej, ok := ev.(*event.RiskRejectedEvent)
		fatalIf(!ok, "expected a RiskRejectedEvent", nil)
		fatalIf(rej.Reason != string(risk.ReasonMaxNotional), "expected MaxNotional", nil)
		slog.Info("✅ Risk gate rejected with reason", "reason", rej.Reason)
	default:
		fatalIf(true, "no rejection event published", nil)
	}

	slog.Info("🎉 Integration check passed!")
}

func fatalIf(cond bool, msg string, err error) {
	if cond {
		slog.Error("❌ "+msg, slog.Any("error", err))
		os.Exit(1)
	}
}
