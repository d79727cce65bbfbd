package models

import (
	"fmt"
	"math"
	"math/big"

	"github.com/shopspring/decimal"
)

const (
	// FixedPrecision is the number of fractional digits every raw value is stored at.
	FixedPrecision = 9

	// FixedScalar converts between a raw value and its decimal magnitude.
	FixedScalar = 1_000_000_000

	// PriceMax and PriceMin bound the magnitude a Price can hold.
	PriceMax = 9_223_372_036.0
	PriceMin = -PriceMax

	// QuantityMax bounds the magnitude a Quantity can hold.
	QuantityMax = 18_446_744_073.0
)

// UnixNanos is a UNIX timestamp in nanoseconds.
type UnixNanos uint64

// Price is a signed decimal stored as a fixed-point integer scaled by
// FixedScalar. Precision is the number of fractional digits that are
// significant for the instrument.
type Price struct {
	Raw       int64 `json:"raw"`
	Precision uint8 `json:"precision"`
}

// Quantity is a non-negative decimal stored like Price.
type Quantity struct {
	Raw       uint64 `json:"raw"`
	Precision uint8  `json:"precision"`
}

// NewPrice rounds value half-to-even at precision digits and stores it
// exactly.
func NewPrice(value float64, precision uint8) (Price, error) {
	d, err := roundValue(value, precision)
	if err != nil {
		return Price{}, err
	}
	if value > PriceMax || value < PriceMin {
		return Price{}, fmt.Errorf("%w: price %v outside [%v, %v]", ErrInvalidValue, value, PriceMin, PriceMax)
	}
	return Price{Raw: d.Shift(FixedPrecision).IntPart(), Precision: precision}, nil
}

// NewQuantity rounds value half-to-even at precision digits and stores it
// exactly. Negative values are rejected.
func NewQuantity(value float64, precision uint8) (Quantity, error) {
	if value < 0 {
		return Quantity{}, fmt.Errorf("%w: quantity %v is negative", ErrInvalidValue, value)
	}
	d, err := roundValue(value, precision)
	if err != nil {
		return Quantity{}, err
	}
	if value > QuantityMax {
		return Quantity{}, fmt.Errorf("%w: quantity %v exceeds %v", ErrInvalidValue, value, QuantityMax)
	}
	return Quantity{Raw: d.Shift(FixedPrecision).BigInt().Uint64(), Precision: precision}, nil
}

func roundValue(value float64, precision uint8) (decimal.Decimal, error) {
	if precision > FixedPrecision {
		return decimal.Decimal{}, fmt.Errorf("%w: precision %d exceeds %d", ErrInvalidValue, precision, FixedPrecision)
	}
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return decimal.Decimal{}, fmt.Errorf("%w: non-finite value %v", ErrInvalidValue, value)
	}
	return decimal.NewFromFloat(value).RoundBank(int32(precision)), nil
}

// AsDecimal returns the exact decimal value.
func (p Price) AsDecimal() decimal.Decimal {
	return decimal.New(p.Raw, -FixedPrecision)
}

// AsFloat64 returns the nearest float64. Use AsDecimal for arithmetic.
func (p Price) AsFloat64() float64 {
	f, _ := p.AsDecimal().Float64()
	return f
}

func (p Price) IsZero() bool { return p.Raw == 0 }

func (p Price) String() string {
	return p.AsDecimal().StringFixed(int32(p.Precision))
}

// AsDecimal returns the exact decimal value.
func (q Quantity) AsDecimal() decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(q.Raw), -FixedPrecision)
}

// AsFloat64 returns the nearest float64. Use AsDecimal for arithmetic.
func (q Quantity) AsFloat64() float64 {
	f, _ := q.AsDecimal().Float64()
	return f
}

func (q Quantity) IsZero() bool { return q.Raw == 0 }

func (q Quantity) String() string {
	return q.AsDecimal().StringFixed(int32(q.Precision))
}
