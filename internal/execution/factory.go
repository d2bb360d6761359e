package execution

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"trading_go/internal/infra"
	"trading_go/internal/venue"
)

// Deps carries everything an engine may need. Paper uses Quotes; live uses
// Client, Policy, Limiter and Breaker.
type Deps struct {
	Quotes         QuoteSource
	CommissionRate float64
	SlippageBps    int64

	Client  venue.Client
	Policy  infra.RetryPolicy
	Limiter *infra.WindowRateLimiter
	Breaker *infra.CircuitBreaker

	OnFill  FillFunc
	OnAlert AlertFunc
	Log     *slog.Logger
}

// NewEngine builds the engine for the configured mode. Live mode refuses to
// start unless CONFIRM_REAL_MONEY=yes is set in the environment, so a config
// typo cannot silently trade real funds.
func NewEngine(mode Mode, d Deps) (Engine, error) {
	switch Mode(strings.ToUpper(string(mode))) {
	case ModePaper:
		if d.Quotes == nil {
			return nil, fmt.Errorf("paper engine requires a quote source")
		}
		return NewPaperEngine(d.Quotes, d.CommissionRate, d.SlippageBps, d.OnFill, d.Log), nil

	case ModeLive:
		if os.Getenv("CONFIRM_REAL_MONEY") != "yes" {
			return nil, fmt.Errorf("live mode requires CONFIRM_REAL_MONEY=yes in the environment")
		}
		if d.Client == nil {
			return nil, fmt.Errorf("live engine requires a venue client")
		}
		d.Log.Warn("⚠️ LIVE trading enabled, orders will use real funds")
		return NewLiveEngine(d.Client, d.Policy, d.Limiter, d.Breaker, d.OnFill, d.OnAlert, d.Log), nil

	default:
		return nil, fmt.Errorf("unknown execution mode %q", mode)
	}
}
