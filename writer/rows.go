package writer

import (
	"tardisflow/models"
)

// Parquet row layouts. Prices and sizes are stored as fixed point decimal
// strings so values round-trip without float error.

type deltaRow struct {
	InstrumentID string `parquet:"name=instrument_id, type=BYTE_ARRAY, convertedtype=UTF8"`
	Action       string `parquet:"name=action, type=BYTE_ARRAY, convertedtype=UTF8"`
	Side         string `parquet:"name=side, type=BYTE_ARRAY, convertedtype=UTF8"`
	Price        string `parquet:"name=price, type=BYTE_ARRAY, convertedtype=UTF8"`
	Size         string `parquet:"name=size, type=BYTE_ARRAY, convertedtype=UTF8"`
	OrderID      int64  `parquet:"name=order_id, type=INT64"`
	Flags        int32  `parquet:"name=flags, type=INT32"`
	Sequence     int64  `parquet:"name=sequence, type=INT64"`
	TsEvent      int64  `parquet:"name=ts_event, type=INT64"`
	TsInit       int64  `parquet:"name=ts_init, type=INT64"`
}

// depthRow is one level of one side of a depth snapshot, mirroring how
// order book snapshots are flattened elsewhere in the pipeline.
type depthRow struct {
	InstrumentID string `parquet:"name=instrument_id, type=BYTE_ARRAY, convertedtype=UTF8"`
	Side         string `parquet:"name=side, type=BYTE_ARRAY, convertedtype=UTF8"`
	Level        int32  `parquet:"name=level, type=INT32"`
	Price        string `parquet:"name=price, type=BYTE_ARRAY, convertedtype=UTF8"`
	Size         string `parquet:"name=size, type=BYTE_ARRAY, convertedtype=UTF8"`
	Count        int32  `parquet:"name=count, type=INT32"`
	Flags        int32  `parquet:"name=flags, type=INT32"`
	Sequence     int64  `parquet:"name=sequence, type=INT64"`
	TsEvent      int64  `parquet:"name=ts_event, type=INT64"`
	TsInit       int64  `parquet:"name=ts_init, type=INT64"`
}

type quoteRow struct {
	InstrumentID string `parquet:"name=instrument_id, type=BYTE_ARRAY, convertedtype=UTF8"`
	BidPrice     string `parquet:"name=bid_price, type=BYTE_ARRAY, convertedtype=UTF8"`
	AskPrice     string `parquet:"name=ask_price, type=BYTE_ARRAY, convertedtype=UTF8"`
	BidSize      string `parquet:"name=bid_size, type=BYTE_ARRAY, convertedtype=UTF8"`
	AskSize      string `parquet:"name=ask_size, type=BYTE_ARRAY, convertedtype=UTF8"`
	TsEvent      int64  `parquet:"name=ts_event, type=INT64"`
	TsInit       int64  `parquet:"name=ts_init, type=INT64"`
}

type tradeRow struct {
	InstrumentID  string `parquet:"name=instrument_id, type=BYTE_ARRAY, convertedtype=UTF8"`
	Price         string `parquet:"name=price, type=BYTE_ARRAY, convertedtype=UTF8"`
	Size          string `parquet:"name=size, type=BYTE_ARRAY, convertedtype=UTF8"`
	AggressorSide string `parquet:"name=aggressor_side, type=BYTE_ARRAY, convertedtype=UTF8"`
	TradeID       string `parquet:"name=trade_id, type=BYTE_ARRAY, convertedtype=UTF8"`
	TsEvent       int64  `parquet:"name=ts_event, type=INT64"`
	TsInit        int64  `parquet:"name=ts_init, type=INT64"`
}

func newDeltaRow(d models.OrderBookDelta) deltaRow {
	return deltaRow{
		InstrumentID: d.InstrumentID.String(),
		Action:       d.Action.String(),
		Side:         d.Order.Side.String(),
		Price:        d.Order.Price.String(),
		Size:         d.Order.Size.String(),
		OrderID:      int64(d.Order.OrderID),
		Flags:        int32(d.Flags),
		Sequence:     int64(d.Sequence),
		TsEvent:      int64(d.TsEvent),
		TsInit:       int64(d.TsInit),
	}
}

// newDepthRows flattens a snapshot into bid levels followed by ask levels.
// Empty levels are kept with a count of zero so each snapshot always
// produces the same number of rows.
func newDepthRows(d models.OrderBookDepth10) []interface{} {
	rows := make([]interface{}, 0, 2*models.Depth10Len)
	id := d.InstrumentID.String()
	add := func(side models.OrderSide, orders [models.Depth10Len]models.BookOrder, counts [models.Depth10Len]uint32) {
		for i, o := range orders {
			rows = append(rows, depthRow{
				InstrumentID: id,
				Side:         side.String(),
				Level:        int32(i),
				Price:        o.Price.String(),
				Size:         o.Size.String(),
				Count:        int32(counts[i]),
				Flags:        int32(d.Flags),
				Sequence:     int64(d.Sequence),
				TsEvent:      int64(d.TsEvent),
				TsInit:       int64(d.TsInit),
			})
		}
	}
	add(models.Buy, d.Bids, d.BidCounts)
	add(models.Sell, d.Asks, d.AskCounts)
	return rows
}

func newQuoteRow(q models.QuoteTick) quoteRow {
	return quoteRow{
		InstrumentID: q.InstrumentID.String(),
		BidPrice:     q.BidPrice.String(),
		AskPrice:     q.AskPrice.String(),
		BidSize:      q.BidSize.String(),
		AskSize:      q.AskSize.String(),
		TsEvent:      int64(q.TsEvent),
		TsInit:       int64(q.TsInit),
	}
}

func newTradeRow(t models.TradeTick) tradeRow {
	return tradeRow{
		InstrumentID:  t.InstrumentID.String(),
		Price:         t.Price.String(),
		Size:          t.Size.String(),
		AggressorSide: t.AggressorSide.String(),
		TradeID:       t.TradeID,
		TsEvent:       int64(t.TsEvent),
		TsInit:        int64(t.TsInit),
	}
}
