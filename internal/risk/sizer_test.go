package risk

import (
	"math"
	"testing"

	"trading_go/pkg/quant"
)

func TestSizer_HalfKellyFraction(t *testing.T) {
	s := NewSizer(SizerConfig{
		Mode:            SizeKelly,
		WinRate:         0.6,
		WinLossRatio:    1.5,
		KellyMultiplier: 0.5,
		MaxPositionPct:  1.0,
	})

	f, degenerate := s.Fraction()
	if degenerate {
		t.Fatal("unexpected degenerate flag")
	}

	// f* = 0.6 - 0.4/1.5 = 0.3333, half-Kelly = 0.1667
	if math.Abs(f-0.16667) > 0.0001 {
		t.Errorf("expected ~0.1667, got %f", f)
	}
}

func TestSizer_KellyClampedToMaxPosition(t *testing.T) {
	s := NewSizer(SizerConfig{
		Mode:            SizeKelly,
		WinRate:         0.6,
		WinLossRatio:    1.5,
		KellyMultiplier: 0.5,
		MaxPositionPct:  0.1,
	})

	f, _ := s.Fraction()
	if f != 0.1 {
		t.Errorf("expected clamp to 0.1, got %f", f)
	}
}

func TestSizer_NegativeEdgeSizesToZero(t *testing.T) {
	// w=0.4, r=1.0 -> f* = 0.4 - 0.6 = -0.2, clamped to 0.
	s := NewSizer(SizerConfig{
		Mode:            SizeKelly,
		WinRate:         0.4,
		WinLossRatio:    1.0,
		KellyMultiplier: 1.0,
		MaxPositionPct:  0.5,
	})

	if qty := s.Size(100_000*quant.PriceScale, quant.ToPriceMicros(100)); qty != 0 {
		t.Errorf("negative edge should size to zero, got %s", qty)
	}
}

func TestSizer_DegenerateWinLossRatio(t *testing.T) {
	s := NewSizer(SizerConfig{
		Mode:         SizeKelly,
		WinRate:      0.6,
		WinLossRatio: 0, // would divide by zero
	})

	f, degenerate := s.Fraction()
	if !degenerate {
		t.Fatal("expected degenerate flag")
	}
	if f != 0 {
		t.Errorf("expected zero fraction, got %f", f)
	}
	if qty := s.Size(100_000*quant.PriceScale, quant.ToPriceMicros(100)); qty != 0 {
		t.Errorf("degenerate config should size to zero, got %s", qty)
	}
}

func TestSizer_FixedFractional(t *testing.T) {
	// 2% risk over a 5% stop -> 40% of capital, clamped to 10%.
	s := NewSizer(SizerConfig{
		Mode:           SizeFixedFractional,
		RiskPerTrade:   0.02,
		StopLossPct:    0.05,
		MaxPositionPct: 0.1,
		LotSize:        quant.ToQtyMilli(1),
	})

	qty := s.Size(100_000*quant.PriceScale, quant.ToPriceMicros(150))
	// 10% of 100k = 10000; 10000/150 = 66.67 -> floored to 66 shares.
	if qty != quant.ToQtyMilli(66) {
		t.Errorf("expected 66 shares, got %s", qty)
	}
}

func TestSizer_FixedFractionalWithoutStop(t *testing.T) {
	s := NewSizer(SizerConfig{
		Mode:           SizeFixedFractional,
		RiskPerTrade:   0.02,
		MaxPositionPct: 0.1,
		LotSize:        quant.ToQtyMilli(1),
	})

	qty := s.Size(100_000*quant.PriceScale, quant.ToPriceMicros(100))
	// Without a stop the risk budget is deployed directly: 2% of 100k = 2000 -> 20 shares.
	if qty != quant.ToQtyMilli(20) {
		t.Errorf("expected 20 shares, got %s", qty)
	}
}

func TestSizer_LotFlooring(t *testing.T) {
	s := NewSizer(SizerConfig{
		Mode:           SizeFixedFractional,
		RiskPerTrade:   0.1,
		MaxPositionPct: 1.0,
		LotSize:        quant.ToQtyMilli(10), // 10-share lots
	})

	qty := s.Size(100_000*quant.PriceScale, quant.ToPriceMicros(130))
	// 10000/130 = 76.9 shares -> floored to 70.
	if qty != quant.ToQtyMilli(70) {
		t.Errorf("expected 70 shares, got %s", qty)
	}
}

func TestSizer_ZeroPrice(t *testing.T) {
	s := NewSizer(SizerConfig{Mode: SizeFixedFractional, RiskPerTrade: 0.02})
	if qty := s.Size(100_000*quant.PriceScale, 0); qty != 0 {
		t.Errorf("zero price should size to zero, got %s", qty)
	}
}
