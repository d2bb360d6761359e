package quant

import (
	"testing"
)

func TestNotional(t *testing.T) {
	// 150.00 price * 2.000 qty = 300.00 notional
	p := ToPriceMicros(150.0)
	q := ToQtyMilli(2.0)

	got := Notional(p, q)
	want := int64(300 * PriceScale)
	if got != want {
		t.Errorf("expected %d, got %d", want, got)
	}
}

func TestNotional_FractionalQty(t *testing.T) {
	p := ToPriceMicros(100.0)
	q := ToQtyMilli(0.5)

	got := Notional(p, q)
	want := int64(50 * PriceScale)
	if got != want {
		t.Errorf("expected %d, got %d", want, got)
	}
}

func TestFloorToLot(t *testing.T) {
	// 2.7 shares floored to whole-share lots -> 2.0
	q := ToQtyMilli(2.7)
	lot := ToQtyMilli(1.0)

	if got := FloorToLot(q, lot); got != ToQtyMilli(2.0) {
		t.Errorf("expected 2000, got %d", got)
	}

	// Zero lot leaves quantity unchanged
	if got := FloorToLot(q, 0); got != q {
		t.Errorf("expected %d, got %d", q, got)
	}

	// Below one lot floors to zero
	if got := FloorToLot(ToQtyMilli(0.4), lot); got != 0 {
		t.Errorf("expected 0, got %d", got)
	}
}

func TestToPriceMicrosStr(t *testing.T) {
	cases := []struct {
		in   string
		want PriceMicros
	}{
		{"189.25", 189_250_000},
		{"0.000001", 1},
		{"100", 100_000_000},
		{"garbage", 0},
		{"", 0},
	}
	for _, c := range cases {
		if got := ToPriceMicrosStr(c.in); got != c.want {
			t.Errorf("ToPriceMicrosStr(%q) = %d, want %d", c.in, got, c.want)
		}
	}
}

func TestToQtyMilliStr(t *testing.T) {
	if got := ToQtyMilliStr("2.5"); got != 2_500 {
		t.Errorf("expected 2500, got %d", got)
	}
	if got := ToQtyMilliStr("x"); got != 0 {
		t.Errorf("expected 0 for malformed input, got %d", got)
	}
}

func TestSafeMul_Overflow(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("expected panic on overflow")
		}
	}()

	SafeMul(int64(1)<<62, 4)
}

func TestSafeAdd_Overflow(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("expected panic on overflow")
		}
	}()

	SafeAdd(int64(1)<<62, int64(1)<<62)
}

func TestPriceString(t *testing.T) {
	p := ToPriceMicros(123.45)
	if p.String() != "123.450000" {
		t.Errorf("unexpected string: %s", p.String())
	}

	q := ToQtyMilli(1.5)
	if q.String() != "1.500" {
		t.Errorf("unexpected string: %s", q.String())
	}
}
