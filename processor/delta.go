package processor

import (
	"context"

	appconfig "tardisflow/config"
	"tardisflow/models"
	"tardisflow/reader"
)

// BuildDelta converts one incremental_book_L2 row. Flags, sequence and
// order id are always zero; F_LAST is decided by the caller once the next
// row is known.
func BuildDelta(rec *reader.BookUpdateRecord, pricePrecision, sizePrecision uint8) (models.OrderBookDelta, error) {
	side, err := ParseOrderSide(rec.Side)
	if err != nil {
		return models.OrderBookDelta{}, err
	}
	price, err := newPrice("price", rec.Price, pricePrecision)
	if err != nil {
		return models.OrderBookDelta{}, err
	}
	size, err := newQuantity("amount", rec.Amount, sizePrecision)
	if err != nil {
		return models.OrderBookDelta{}, err
	}
	tsEvent, tsInit, err := parseEnvelopeTimes(rec.Envelope)
	if err != nil {
		return models.OrderBookDelta{}, err
	}

	return models.OrderBookDelta{
		InstrumentID: ParseInstrumentID(rec.Exchange, rec.Symbol),
		Action:       ParseBookAction(rec.IsSnapshot, rec.Amount),
		Order: models.BookOrder{
			Side:  side,
			Price: price,
			Size:  size,
		},
		TsEvent: tsEvent,
		TsInit:  tsInit,
	}, nil
}

// DeltaBatcher marks update batch boundaries on a stream of deltas while
// holding at most one delta back.
type DeltaBatcher struct {
	pending models.OrderBookDelta
	held    bool
}

// Push holds d and returns the previously held delta, if any. The returned
// delta carries F_LAST when d starts a new ts_event.
func (b *DeltaBatcher) Push(d models.OrderBookDelta) (models.OrderBookDelta, bool) {
	if !b.held {
		b.pending, b.held = d, true
		return models.OrderBookDelta{}, false
	}
	out := b.pending
	if out.TsEvent != d.TsEvent {
		out.Flags |= uint8(models.FLast)
	}
	b.pending = d
	return out, true
}

// Flush releases the held delta with F_LAST set. It returns false when
// nothing was pushed since the last flush.
func (b *DeltaBatcher) Flush() (models.OrderBookDelta, bool) {
	if !b.held {
		return models.OrderBookDelta{}, false
	}
	out := b.pending
	out.Flags |= uint8(models.FLast)
	b.pending, b.held = models.OrderBookDelta{}, false
	return out, true
}

func bindBookUpdates(header []string) (rowDecoder[reader.BookUpdateRecord], error) {
	return reader.NewBookUpdateDecoder(header)
}

// LoadDeltas loads order book deltas from an incremental_book_L2 file.
// The last delta of every ts_event run, and the last delta overall, carry
// F_LAST. A limit of zero or less reads the whole file.
func LoadDeltas(ctx context.Context, path string, pricePrecision, sizePrecision uint8, limit int, opts ...reader.Option) ([]models.OrderBookDelta, error) {
	if err := checkPrecision(pricePrecision, sizePrecision); err != nil {
		return nil, err
	}

	var deltas []models.OrderBookDelta
	_, err := scan(ctx, appconfig.KindDeltas, path, limit, opts, bindBookUpdates, func(rec *reader.BookUpdateRecord) error {
		d, err := BuildDelta(rec, pricePrecision, sizePrecision)
		if err != nil {
			return err
		}
		if n := len(deltas); n > 0 && deltas[n-1].TsEvent != d.TsEvent {
			deltas[n-1].Flags |= uint8(models.FLast)
		}
		deltas = append(deltas, d)
		return nil
	})
	if err != nil {
		return nil, err
	}

	if n := len(deltas); n > 0 {
		deltas[n-1].Flags |= uint8(models.FLast)
	}
	return deltas, nil
}

// StreamDeltas is LoadDeltas for large files: each delta is passed to fn
// as soon as its F_LAST flag is known. It returns the number of deltas
// delivered.
func StreamDeltas(ctx context.Context, path string, pricePrecision, sizePrecision uint8, limit int, fn func(models.OrderBookDelta) error, opts ...reader.Option) (int, error) {
	if err := checkPrecision(pricePrecision, sizePrecision); err != nil {
		return 0, err
	}

	var batcher DeltaBatcher
	sent := 0
	_, err := scan(ctx, appconfig.KindDeltas, path, limit, opts, bindBookUpdates, func(rec *reader.BookUpdateRecord) error {
		d, err := BuildDelta(rec, pricePrecision, sizePrecision)
		if err != nil {
			return err
		}
		if prev, ok := batcher.Push(d); ok {
			if err := fn(prev); err != nil {
				return err
			}
			sent++
		}
		return nil
	})
	if err != nil {
		return sent, err
	}

	if last, ok := batcher.Flush(); ok {
		if err := fn(last); err != nil {
			return sent, err
		}
		sent++
	}
	return sent, nil
}
