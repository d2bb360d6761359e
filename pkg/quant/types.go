package quant

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

// PriceMicros represents price multiplied by 1,000,000 (10^6).
// E.g., 123.45 USD = 123,450,000 PriceMicros.
type PriceMicros int64

// QtyMilli represents quantity multiplied by 1,000 (10^3).
// E.g., 1.5 shares = 1,500 QtyMilli. Supports fractional lots.
type QtyMilli int64

// TimeStamp represents Unix Microseconds.
type TimeStamp int64

const (
	PriceScale = 1_000_000
	QtyScale   = 1_000
)

// ToPriceMicros converts a float64 (from external API or config) to PriceMicros.
// Only used at the boundary. Internal logic uses PriceMicros directly.
func ToPriceMicros(f float64) PriceMicros {
	return PriceMicros(math.Round(f * PriceScale))
}

// ToQtyMilli converts a float64 to QtyMilli.
func ToQtyMilli(f float64) QtyMilli {
	return QtyMilli(math.Round(f * QtyScale))
}

// ToPriceMicrosStr parses a numeric string from a wire payload into
// PriceMicros exactly, without an intermediate float64. Malformed input
// yields zero.
func ToPriceMicrosStr(s string) PriceMicros {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0
	}
	return PriceMicros(d.Shift(6).IntPart())
}

// ToQtyMilliStr parses a numeric string into QtyMilli exactly.
func ToQtyMilliStr(s string) QtyMilli {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0
	}
	return QtyMilli(d.Shift(3).IntPart())
}

func (p PriceMicros) String() string {
	return fmt.Sprintf("%.6f", float64(p)/PriceScale)
}

func (q QtyMilli) String() string {
	return fmt.Sprintf("%.3f", float64(q)/QtyScale)
}

// Float returns the price as float64 for boundary output (reports, logs).
func (p PriceMicros) Float() float64 {
	return float64(p) / PriceScale
}

// Float returns the quantity as float64 for boundary output.
func (q QtyMilli) Float() float64 {
	return float64(q) / QtyScale
}

// Notional computes price * qty in micros, normalizing out the quantity scale.
// Panics on int64 overflow: monetary overflow is a fatal invariant violation.
func Notional(p PriceMicros, q QtyMilli) int64 {
	return MulDiv(int64(p), int64(q), QtyScale)
}

// FloorToLot floors a quantity down to a multiple of the venue lot size.
// A non-positive lot size leaves the quantity unchanged.
func FloorToLot(q QtyMilli, lot QtyMilli) QtyMilli {
	if lot <= 0 {
		return q
	}
	return (q / lot) * lot
}

// MulDiv computes a*b/div with an overflow check on the multiplication.
func MulDiv(a, b, div int64) int64 {
	if div == 0 {
		panic("QUANT_DIV_BY_ZERO")
	}
	return SafeMul(a, b) / div
}

// SafeMul performs int64 multiplication and panics on overflow/underflow.
func SafeMul(a, b int64) int64 {
	if a == 0 || b == 0 {
		return 0
	}
	if a > 0 {
		if b > 0 {
			if a > math.MaxInt64/b {
				panic("QUANT_MUL_OVERFLOW")
			}
		} else {
			if b < math.MinInt64/a {
				panic("QUANT_MUL_OVERFLOW")
			}
		}
	} else {
		if b > 0 {
			if a < math.MinInt64/b {
				panic("QUANT_MUL_OVERFLOW")
			}
		} else {
			if a < math.MaxInt64/b {
				panic("QUANT_MUL_OVERFLOW")
			}
		}
	}
	return a * b
}

// SafeAdd performs int64 addition and panics on overflow/underflow.
func SafeAdd(a, b int64) int64 {
	if (b > 0 && a > math.MaxInt64-b) || (b < 0 && a < math.MinInt64-b) {
		panic("QUANT_ADD_OVERFLOW")
	}
	return a + b
}

// SafeSub performs int64 subtraction and panics on overflow/underflow.
func SafeSub(a, b int64) int64 {
	if (b > 0 && a < math.MinInt64+b) || (b < 0 && a > math.MaxInt64+b) {
		panic("QUANT_SUB_OVERFLOW")
	}
	return a - b
}
