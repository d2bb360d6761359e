// Package app wires configuration, storage, market data, execution and the
// order manager into a running trading system.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"trading_go/internal/domain"
	"trading_go/internal/event"
	"trading_go/internal/execution"
	"trading_go/internal/infra"
	"trading_go/internal/ledger"
	"trading_go/internal/manager"
	"trading_go/internal/marketdata"
	"trading_go/internal/risk"
	"trading_go/internal/storage"
	"trading_go/internal/venue"
	"trading_go/pkg/quant"
)

// Bootstrap orchestrates the application startup sequence.
type Bootstrap struct {
	Config      *infra.Config
	OrderLog    *storage.OrderLog
	Checkpoints *storage.CheckpointManager
	Ledger      *ledger.Ledger
	Quotes      *marketdata.QuoteBook
	Feed        *marketdata.Feed
	Bus         *event.Bus
	Manager     *manager.Manager

	unlock      func()
	journalDone chan struct{}
}

// NewBootstrap creates a new Bootstrap instance.
func NewBootstrap() *Bootstrap {
	return &Bootstrap{}
}

// Initialize loads config and builds the full component graph. Call Run
// afterwards to start the streaming loops.
func (b *Bootstrap) Initialize() error {
	slog.Info("🚀 Bootstrapping trading-go...")

	// 1. Config and logging.
	cfg, err := infra.LoadConfig(infra.ResolveConfigPath())
	if err != nil {
		return err
	}
	b.Config = cfg
	slog.SetDefault(infra.NewLogger(cfg))

	mode := execution.Mode(strings.ToUpper(cfg.Trading.Mode))

	// 2. Workspace layout: _workspace/data/{mode} isolates paper from live.
	workDir := infra.WorkspaceDir()
	dataDir := filepath.Join(workDir, "data", strings.ToLower(string(mode)))
	if err := infra.EnsureDir(dataDir); err != nil {
		return fmt.Errorf("failed to create data dir: %w", err)
	}

	unlock, err := infra.CreateLockFile(workDir)
	if err != nil {
		return err
	}
	b.unlock = unlock

	// 3. Durable stores.
	orderLog, err := storage.NewOrderLog(filepath.Join(dataDir, "orders.db"))
	if err != nil {
		return err
	}
	b.OrderLog = orderLog
	slog.Info("✅ Order log initialized (WAL-mode)", "dir", dataDir)

	b.Checkpoints = storage.NewCheckpointManager(filepath.Join(dataDir, "checkpoints"))

	// 4. Ledger, restored from the latest checkpoint when one exists.
	b.Ledger = ledger.NewLedger(int64(cfg.Trading.InitialCapital * quant.PriceScale))
	if snap, err := b.Checkpoints.LoadLatest(); err != nil {
		return fmt.Errorf("failed to load checkpoint: %w", err)
	} else if snap != nil {
		b.Ledger.Restore(*snap)
		slog.Info("✅ Ledger restored from checkpoint",
			"cash", quant.PriceMicros(snap.CashMicros).String(),
			"positions", len(snap.Positions))
	}

	// 5. Market data.
	b.Quotes = marketdata.NewQuoteBook()
	if cfg.Quotes.WSURL != "" {
		b.Feed = marketdata.NewFeed(cfg.Quotes.WSURL, cfg.Quotes.Symbols, b.Quotes)
	}

	// 6. Risk stack. One limiter is shared by the risk gate, the manager and
	// the execution engine, so the pre-trade check observes the same budget
	// that order submissions and venue API calls consume.
	limiter := infra.NewWindowRateLimiter(cfg.Risk.MaxOrdersPerMinute, cfg.Risk.MaxOrdersPerHour)
	riskMgr := risk.NewManager(risk.Limits{
		MaxPositionPct:     cfg.Risk.MaxPositionPct,
		MaxOpenPositions:   cfg.Risk.MaxOpenPositions,
		MaxOrdersPerMinute: cfg.Risk.MaxOrdersPerMinute,
		MaxOrdersPerHour:   cfg.Risk.MaxOrdersPerHour,
		MaxDailyLossMicros: int64(cfg.Risk.MaxDailyLoss * quant.PriceScale),
	}, limiter)
	sizer := risk.NewSizer(risk.SizerConfig{
		Mode:            risk.SizeMode(cfg.Risk.Sizing.Mode),
		RiskPerTrade:    cfg.Risk.Sizing.RiskPerTrade,
		StopLossPct:     cfg.Trading.StopLoss.DistancePct,
		WinRate:         cfg.Risk.Sizing.WinRate,
		WinLossRatio:    cfg.Risk.Sizing.WinLossRatio,
		KellyMultiplier: cfg.Risk.Sizing.KellyMultiplier,
		MaxPositionPct:  cfg.Risk.MaxPositionPct,
		LotSize:         quant.ToQtyMilli(cfg.Trading.LotSize),
	})

	// 7. Events, execution, manager. The manager's fill handler is handed to
	// the engine through a late-bound closure.
	b.Bus = event.NewBus()

	var mgr *manager.Manager
	engine, err := execution.NewEngine(mode, execution.Deps{
		Quotes:         b.Quotes,
		CommissionRate: cfg.Trading.CommissionRate,
		SlippageBps:    cfg.Trading.SlippageBps,
		Client: venue.NewRESTClient(cfg.Venue.RestURL, cfg.Venue.AccessKey,
			cfg.Venue.SecretKey, cfg.Venue.SupportsClientOrderID),
		Policy:  cfg.RetryPolicy(),
		Limiter: limiter,
		Breaker: infra.NewCircuitBreaker(cfg.Venue.Name,
			cfg.Venue.Breaker.FailureThreshold,
			cfg.Venue.Breaker.SuccessThreshold,
			time.Duration(cfg.Venue.Breaker.CooldownSec)*time.Second),
		OnFill: func(f domain.Fill) { mgr.HandleFill(f) },
		OnAlert: func(orderID, msg string) {
			b.Bus.Publish(&event.AlertEvent{OrderID: orderID, Message: msg})
		},
		Log: slog.Default(),
	})
	if err != nil {
		return err
	}

	mgr = manager.New(manager.Config{
		StopLossEnabled:       cfg.Trading.StopLoss.Enabled,
		StopLossDistancePct:   cfg.Trading.StopLoss.DistancePct,
		StopLossOnPartialFill: cfg.Trading.StopLoss.OnPartialFill,
	}, riskMgr, sizer, b.Ledger, engine, b.Bus, b.Quotes, limiter, orderLog, slog.Default())
	b.Manager = mgr

	// Paper engines re-evaluate resting orders on every tick.
	if paper, ok := engine.(*execution.PaperEngine); ok {
		b.Quotes.Subscribe(paper.OnQuote)
	}

	slog.Info("✅ Execution engine ready", "mode", string(mode))
	return nil
}

// Run starts the feed and the checkpoint loop and blocks until ctx is done,
// then shuts everything down in order.
func (b *Bootstrap) Run(ctx context.Context) error {
	// Journal every published event for audit and replay. The durable
	// subscription applies backpressure instead of dropping, so the journal
	// is lossless and ledger replay stays exact. Started before recovery so
	// recovery alerts are journaled too.
	b.journalDone = make(chan struct{})
	go b.journalEvents(b.Bus.SubscribeDurable(256))

	if err := b.recoverOpenOrders(ctx); err != nil {
		return err
	}

	if b.Feed != nil {
		b.Feed.Start(ctx)
		defer b.Feed.Stop()
	}

	interval := time.Duration(b.Config.Storage.CheckpointIntervalSec) * time.Second
	if interval <= 0 {
		interval = time.Minute
	}
	keep := b.Config.Storage.KeepCheckpoints
	if keep <= 0 {
		keep = 5
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			b.shutdown(keep)
			return nil
		case <-ticker.C:
			b.checkpoint(keep)
		}
	}
}

// recoverOpenOrders surfaces orders that were still working (or parked in
// Unknown) when the previous process exited. They are never auto-cancelled.
func (b *Bootstrap) recoverOpenOrders(ctx context.Context) error {
	orders, err := b.OrderLog.LoadOpenOrders(ctx)
	if err != nil {
		return fmt.Errorf("failed to recover open orders: %w", err)
	}
	for _, o := range orders {
		slog.Warn("Recovered non-terminal order from previous run",
			"order_id", o.ID, "symbol", o.Symbol, "status", string(o.Status))
		b.Bus.Publish(&event.AlertEvent{OrderID: o.ID,
			Message: "order was " + string(o.Status) + " at shutdown; reconcile manually"})
	}
	return nil
}

// journalEvents drains until the bus closes at shutdown; writes use a
// background context so a cancelled run context cannot drop tail events.
func (b *Bootstrap) journalEvents(events <-chan event.Event) {
	defer close(b.journalDone)
	for ev := range events {
		if err := b.OrderLog.SaveEvent(context.Background(), ev); err != nil {
			slog.Error("Event journaling failed", slog.Any("error", err))
		}
	}
}

func (b *Bootstrap) checkpoint(keep int) {
	if err := b.Checkpoints.Save(b.Ledger.Snapshot()); err != nil {
		slog.Error("Checkpoint failed", slog.Any("error", err))
		return
	}
	if err := b.Checkpoints.Cleanup(keep); err != nil {
		slog.Warn("Checkpoint cleanup failed", slog.Any("error", err))
	}
}

func (b *Bootstrap) shutdown(keep int) {
	slog.Info("👋 Shutting down gracefully...")
	b.checkpoint(keep)
	if b.Bus != nil {
		b.Bus.Close()
	}
	if b.journalDone != nil {
		<-b.journalDone // let the journal flush before closing the DB
	}
	if b.OrderLog != nil {
		b.OrderLog.Close()
	}
	if b.unlock != nil {
		b.unlock()
	}
}

// Summary is the operator-facing account snapshot.
type Summary struct {
	Cash          quant.PriceMicros
	AccountValue  quant.PriceMicros
	RealizedPnL   quant.PriceMicros
	DayRealized   quant.PriceMicros
	UnrealizedPnL quant.PriceMicros
	OpenPositions int
	OpenOrders    int
}

// Summarize computes the current account summary marked at the latest quotes.
func (b *Bootstrap) Summarize() Summary {
	snap := b.Ledger.Snapshot()
	prices := make(map[string]quant.PriceMicros, len(snap.Positions))
	for sym := range snap.Positions {
		if q, ok := b.Quotes.Quote(sym); ok && q.LastMicros > 0 {
			prices[sym] = q.LastMicros
		}
	}
	return Summary{
		Cash:          quant.PriceMicros(snap.CashMicros),
		AccountValue:  quant.PriceMicros(b.Ledger.AccountValueMicros(prices)),
		RealizedPnL:   quant.PriceMicros(snap.RealizedPnLMicros),
		DayRealized:   quant.PriceMicros(snap.DayRealizedMicros),
		UnrealizedPnL: quant.PriceMicros(b.Ledger.UnrealizedPnLMicros(prices)),
		OpenPositions: len(snap.Positions),
		OpenOrders:    len(b.Manager.OpenOrders()),
	}
}
