package risk

import (
	"log/slog"

	"trading_go/pkg/quant"
)

// SizeMode selects the position sizing model.
type SizeMode string

const (
	SizeFixedFractional SizeMode = "fixed"
	SizeKelly           SizeMode = "kelly"
)

// SizerConfig holds the sizing parameters. WinRate and WinLossRatio feed the
// Kelly model only; RiskPerTrade and StopLossPct feed the fixed-fractional
// model.
type SizerConfig struct {
	Mode            SizeMode
	RiskPerTrade    float64 // fraction of account value risked per trade
	StopLossPct     float64 // stop distance as a fraction of entry price
	WinRate         float64
	WinLossRatio    float64
	KellyMultiplier float64 // safety multiplier, e.g. 0.5 for half-Kelly
	MaxPositionPct  float64 // clamp, shared with the risk limits
	LotSize         quant.QtyMilli
}

// Sizer computes order quantity from risk parameters and account value.
type Sizer struct {
	cfg SizerConfig
}

// NewSizer creates a position sizer.
func NewSizer(cfg SizerConfig) *Sizer {
	return &Sizer{cfg: cfg}
}

// Fraction returns the capital fraction to deploy, clamped to
// [0, MaxPositionPct]. The second return is true for degenerate Kelly
// parameters (zero win/loss ratio), which size to zero instead of dividing
// by zero.
func (s *Sizer) Fraction() (float64, bool) {
	var f float64
	switch s.cfg.Mode {
	case SizeKelly:
		if s.cfg.WinLossRatio == 0 {
			return 0, true
		}
		// f* = w - (1-w)/r, scaled by the safety multiplier.
		f = s.cfg.WinRate - (1-s.cfg.WinRate)/s.cfg.WinLossRatio
		mult := s.cfg.KellyMultiplier
		if mult <= 0 {
			mult = 1
		}
		f *= mult
	default:
		// Fixed fractional: risk budget divided by the stop distance gives
		// the deployable fraction; without a stop the budget is the fraction.
		f = s.cfg.RiskPerTrade
		if s.cfg.StopLossPct > 0 {
			f = s.cfg.RiskPerTrade / s.cfg.StopLossPct
		}
	}

	if f < 0 {
		f = 0
	}
	if s.cfg.MaxPositionPct > 0 && f > s.cfg.MaxPositionPct {
		f = s.cfg.MaxPositionPct
	}
	return f, false
}

// Size converts the capital fraction into an order quantity at the given
// price, floored to the venue lot size. A degenerate configuration or a
// non-positive price yields zero.
func (s *Sizer) Size(accountValueMicros int64, price quant.PriceMicros) quant.QtyMilli {
	if price <= 0 || accountValueMicros <= 0 {
		return 0
	}

	f, degenerate := s.Fraction()
	if degenerate {
		slog.Warn("Degenerate sizing parameters, sizing to zero",
			slog.String("mode", string(s.cfg.Mode)),
			slog.Float64("win_loss_ratio", s.cfg.WinLossRatio))
		return 0
	}
	if f <= 0 {
		return 0
	}

	deployMicros := int64(f * float64(accountValueMicros))
	qty := quant.QtyMilli(quant.MulDiv(deployMicros, quant.QtyScale, int64(price)))
	return quant.FloorToLot(qty, s.cfg.LotSize)
}
