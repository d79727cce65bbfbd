package models

import (
	"errors"
	"math"
	"testing"
)

func TestNewPriceRounding(t *testing.T) {
	cases := []struct {
		value     float64
		precision uint8
		raw       int64
		str       string
	}{
		{100.5, 1, 100_500_000_000, "100.5"},
		{100.56, 1, 100_600_000_000, "100.6"},
		{0.125, 2, 120_000_000, "0.12"},
		{0.135, 2, 140_000_000, "0.14"},
		{-2.5, 0, -2_000_000_000, "-2"},
		{1.000000001, 9, 1_000_000_001, "1.000000001"},
		{0, 4, 0, "0.0000"},
	}
	for _, c := range cases {
		p, err := NewPrice(c.value, c.precision)
		if err != nil {
			t.Fatalf("NewPrice(%v, %d): %v", c.value, c.precision, err)
		}
		if p.Raw != c.raw {
			t.Errorf("NewPrice(%v, %d).Raw = %d, want %d", c.value, c.precision, p.Raw, c.raw)
		}
		if p.String() != c.str {
			t.Errorf("NewPrice(%v, %d).String() = %q, want %q", c.value, c.precision, p.String(), c.str)
		}
	}
}

func TestNewQuantity(t *testing.T) {
	q, err := NewQuantity(1.23456, 3)
	if err != nil {
		t.Fatalf("NewQuantity: %v", err)
	}
	if q.Raw != 1_235_000_000 || q.Precision != 3 {
		t.Fatalf("unexpected quantity %+v", q)
	}
	if q.String() != "1.235" {
		t.Errorf("unexpected string %q", q.String())
	}

	big, err := NewQuantity(10_000_000_000, 0)
	if err != nil {
		t.Fatalf("NewQuantity large: %v", err)
	}
	if big.Raw != 10_000_000_000*FixedScalar {
		t.Errorf("unexpected raw for large quantity: %d", big.Raw)
	}

	// negative inputs are rejected even when they round to zero
	for _, c := range []struct {
		value     float64
		precision uint8
	}{{-0.004, 2}, {-0.4, 0}, {-1e-12, 2}} {
		if q, err := NewQuantity(c.value, c.precision); !errors.Is(err, ErrInvalidValue) {
			t.Errorf("NewQuantity(%v, %d) = %v, %v; want ErrInvalidValue", c.value, c.precision, q, err)
		}
	}
}

func TestScaledValueErrors(t *testing.T) {
	if _, err := NewQuantity(-1, 2); !errors.Is(err, ErrInvalidValue) {
		t.Errorf("expected ErrInvalidValue for negative quantity, got %v", err)
	}
	if _, err := NewPrice(1, 10); !errors.Is(err, ErrInvalidValue) {
		t.Errorf("expected ErrInvalidValue for precision 10, got %v", err)
	}
	if _, err := NewPrice(math.NaN(), 2); !errors.Is(err, ErrInvalidValue) {
		t.Errorf("expected ErrInvalidValue for NaN, got %v", err)
	}
	if _, err := NewPrice(PriceMax*2, 2); !errors.Is(err, ErrInvalidValue) {
		t.Errorf("expected ErrInvalidValue for out of range price, got %v", err)
	}
	if _, err := NewQuantity(math.Inf(1), 2); !errors.Is(err, ErrInvalidValue) {
		t.Errorf("expected ErrInvalidValue for +Inf, got %v", err)
	}
}

func TestRoundingIsIdempotent(t *testing.T) {
	values := []float64{0.1, 1.005, 123.456789, 9999.99995, 42, 0.000000015}
	for precision := uint8(0); precision <= FixedPrecision; precision++ {
		for _, v := range values {
			first, err := NewPrice(v, precision)
			if err != nil {
				t.Fatalf("NewPrice(%v, %d): %v", v, precision, err)
			}
			second, err := NewPrice(first.AsFloat64(), precision)
			if err != nil {
				t.Fatalf("NewPrice(%v, %d): %v", first.AsFloat64(), precision, err)
			}
			if first != second {
				t.Errorf("rounding %v at %d not stable: %+v then %+v", v, precision, first, second)
			}

			q1, err := NewQuantity(v, precision)
			if err != nil {
				t.Fatalf("NewQuantity(%v, %d): %v", v, precision, err)
			}
			q2, err := NewQuantity(q1.AsFloat64(), precision)
			if err != nil {
				t.Fatalf("NewQuantity(%v, %d): %v", q1.AsFloat64(), precision, err)
			}
			if q1 != q2 {
				t.Errorf("quantity rounding %v at %d not stable: %+v then %+v", v, precision, q1, q2)
			}
		}
	}
}

func TestNullOrderAndDepthLevel(t *testing.T) {
	if !NullOrder.IsNull() || NullOrder.Side != Buy || NullOrder.OrderID != 0 {
		t.Fatalf("unexpected sentinel %+v", NullOrder)
	}

	var depth OrderBookDepth10
	for i := range depth.Bids {
		depth.Bids[i] = NullOrder
		depth.Asks[i] = NullOrder
	}
	price, _ := NewPrice(10, 1)
	size, _ := NewQuantity(2, 0)
	depth.Asks[0] = BookOrder{Side: Sell, Price: price, Size: size}
	depth.AskCounts[0] = 1

	if o, ok := depth.Level(Sell, 0); !ok || o.Price != price {
		t.Errorf("expected populated ask level 0, got %+v %v", o, ok)
	}
	if o, ok := depth.Level(Buy, 0); ok || !o.IsNull() {
		t.Errorf("expected empty bid level 0, got %+v %v", o, ok)
	}
	if _, ok := depth.Level(Sell, Depth10Len); ok {
		t.Errorf("expected out of range level to be empty")
	}
}

func TestInstrumentIDAndFlags(t *testing.T) {
	id := InstrumentID{Symbol: "BTC-PERPETUAL", Venue: "DERIBIT"}
	if id.String() != "BTC-PERPETUAL.DERIBIT" {
		t.Errorf("unexpected instrument id %q", id.String())
	}
	d := OrderBookDelta{Flags: uint8(FLast)}
	if !d.IsLast() {
		t.Errorf("expected F_LAST to be set")
	}
	if FLast != 128 {
		t.Errorf("unexpected F_LAST value %d", FLast)
	}
	if Add.String() != "ADD" || Seller.String() != "SELLER" || Sell.String() != "SELL" {
		t.Errorf("unexpected enum names")
	}
}
