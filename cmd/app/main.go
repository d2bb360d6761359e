package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"trading_go/internal/app"
	"trading_go/internal/event"

	_ "net/http/pprof" // For pprof profiling
)

func main() {
	// .env is optional; real deployments use the environment directly.
	if err := godotenv.Load(); err == nil {
		slog.Info("🔑 Loaded .env file")
	}

	// Pprof server, localhost only for security.
	go func() {
		slog.Info("🕵️ Pprof server started on localhost:6060")
		if err := http.ListenAndServe("localhost:6060", nil); err != nil {
			slog.Error("Pprof server failed", slog.Any("error", err))
		}
	}()

	bootstrap := app.NewBootstrap()
	if err := bootstrap.Initialize(); err != nil {
		slog.Error("❌ Bootstrapping failed", slog.Any("error", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Operator event tail: every order outcome and alert, as it happens.
	go logEvents(bootstrap.Bus.Subscribe(256))

	// Periodic account summary.
	go logSummary(ctx, bootstrap)

	slog.InfoContext(ctx, "✨ Trading system operational. Press Ctrl+C to exit.")
	if err := bootstrap.Run(ctx); err != nil {
		slog.Error("❌ Runtime failure", slog.Any("error", err))
		os.Exit(1)
	}
}

func logEvents(events <-chan event.Event) {
	for ev := range events {
		switch e := ev.(type) {
		case *event.OrderUpdateEvent:
			slog.Info("Order update",
				"order_id", e.OrderID, "symbol", e.Symbol,
				"status", string(e.Status), "reason", e.Reason)
		case *event.FillEvent:
			slog.Info("Fill",
				"order_id", e.Fill.OrderID, "symbol", e.Fill.Symbol,
				"qty", e.Fill.QtyMilli.String(), "price", e.Fill.PriceMicros.String())
		case *event.RiskRejectedEvent:
			slog.Warn("Signal rejected",
				"symbol", e.Signal.Symbol, "side", string(e.Signal.Side), "reason", e.Reason)
		case *event.AlertEvent:
			slog.Error("🚨 ALERT", "order_id", e.OrderID, "message", e.Message)
		}
	}
}

func logSummary(ctx context.Context, b *app.Bootstrap) {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s := b.Summarize()
			slog.Info("📊 Account summary",
				"cash", s.Cash.String(),
				"account_value", s.AccountValue.String(),
				"realized_pnl", s.RealizedPnL.String(),
				"day_realized", s.DayRealized.String(),
				"unrealized_pnl", s.UnrealizedPnL.String(),
				"positions", s.OpenPositions,
				"open_orders", s.OpenOrders)
		}
	}
}
