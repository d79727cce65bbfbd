package models

import "strings"

// Depth10Len is the fixed number of levels per side in an OrderBookDepth10.
const Depth10Len = 10

// InstrumentID identifies an instrument on a venue.
type InstrumentID struct {
	Symbol string `json:"symbol"`
	Venue  string `json:"venue"`
}

func (id InstrumentID) String() string {
	var b strings.Builder
	b.Grow(len(id.Symbol) + len(id.Venue) + 1)
	b.WriteString(id.Symbol)
	b.WriteByte('.')
	b.WriteString(id.Venue)
	return b.String()
}

// BookOrder is one order, or one aggregated price level, in a book.
type BookOrder struct {
	Side    OrderSide `json:"side"`
	Price   Price     `json:"price"`
	Size    Quantity  `json:"size"`
	OrderID uint64    `json:"order_id"`
}

// NullOrder stands in for an absent level in fixed-size depth arrays.
var NullOrder = BookOrder{Side: Buy}

// IsNull reports whether o is the NullOrder sentinel.
func (o BookOrder) IsNull() bool {
	return o == NullOrder
}

// OrderBookDelta is one atomic mutation to an order book.
type OrderBookDelta struct {
	InstrumentID InstrumentID `json:"instrument_id"`
	Action       BookAction   `json:"action"`
	Order        BookOrder    `json:"order"`
	Flags        uint8        `json:"flags"`
	Sequence     uint64       `json:"sequence"`
	TsEvent      UnixNanos    `json:"ts_event"`
	TsInit       UnixNanos    `json:"ts_init"`
}

// IsLast reports whether the delta closes its update batch.
func (d OrderBookDelta) IsLast() bool {
	return FLast.Matches(d.Flags)
}

// OrderBookDepth10 is a snapshot of the best ten levels on each side.
type OrderBookDepth10 struct {
	InstrumentID InstrumentID          `json:"instrument_id"`
	Bids         [Depth10Len]BookOrder `json:"bids"`
	Asks         [Depth10Len]BookOrder `json:"asks"`
	BidCounts    [Depth10Len]uint32    `json:"bid_counts"`
	AskCounts    [Depth10Len]uint32    `json:"ask_counts"`
	Flags        uint8                 `json:"flags"`
	Sequence     uint64                `json:"sequence"`
	TsEvent      UnixNanos             `json:"ts_event"`
	TsInit       UnixNanos             `json:"ts_init"`
}

// Level returns the order at level i of side and whether the level is
// populated. Unpopulated levels hold NullOrder with a count of zero.
func (d *OrderBookDepth10) Level(side OrderSide, i int) (BookOrder, bool) {
	if i < 0 || i >= Depth10Len {
		return NullOrder, false
	}
	switch side {
	case Buy:
		return d.Bids[i], d.BidCounts[i] > 0
	case Sell:
		return d.Asks[i], d.AskCounts[i] > 0
	default:
		return NullOrder, false
	}
}

// QuoteTick is a top-of-book quote.
type QuoteTick struct {
	InstrumentID InstrumentID `json:"instrument_id"`
	BidPrice     Price        `json:"bid_price"`
	AskPrice     Price        `json:"ask_price"`
	BidSize      Quantity     `json:"bid_size"`
	AskSize      Quantity     `json:"ask_size"`
	TsEvent      UnixNanos    `json:"ts_event"`
	TsInit       UnixNanos    `json:"ts_init"`
}

// TradeTick is a single executed trade.
type TradeTick struct {
	InstrumentID  InstrumentID  `json:"instrument_id"`
	Price         Price         `json:"price"`
	Size          Quantity      `json:"size"`
	AggressorSide AggressorSide `json:"aggressor_side"`
	TradeID       string        `json:"trade_id"`
	TsEvent       UnixNanos     `json:"ts_event"`
	TsInit        UnixNanos     `json:"ts_init"`
}
