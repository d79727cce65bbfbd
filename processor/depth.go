package processor

import (
	"context"

	appconfig "tardisflow/config"
	"tardisflow/models"
	"tardisflow/reader"
)

func bookOrder(side models.OrderSide, lvl reader.Level, pricePrecision, sizePrecision uint8) (models.BookOrder, uint32, error) {
	if !lvl.HasPrice {
		return models.NullOrder, 0, nil
	}
	price, err := newPrice("price", lvl.Price, pricePrecision)
	if err != nil {
		return models.NullOrder, 0, err
	}
	// amount may be blank when the price is set
	size, err := newQuantity("amount", lvl.Amount, sizePrecision)
	if err != nil {
		return models.NullOrder, 0, err
	}
	return models.BookOrder{Side: side, Price: price, Size: size}, 1, nil
}

// BuildDepth10 converts one book_snapshot_N row into a ten level snapshot.
// Levels beyond those the row carries, and levels with a blank price, hold
// models.NullOrder with a count of zero. Levels past ten are ignored.
func BuildDepth10(rec *reader.SnapshotRecord, pricePrecision, sizePrecision uint8) (models.OrderBookDepth10, error) {
	tsEvent, tsInit, err := parseEnvelopeTimes(rec.Envelope)
	if err != nil {
		return models.OrderBookDepth10{}, err
	}
	depth := models.OrderBookDepth10{
		InstrumentID: ParseInstrumentID(rec.Exchange, rec.Symbol),
		Flags:        uint8(models.FLast),
		TsEvent:      tsEvent,
		TsInit:       tsInit,
	}
	for i := 0; i < models.Depth10Len; i++ {
		depth.Bids[i] = models.NullOrder
		depth.Asks[i] = models.NullOrder
	}

	levels := min(rec.Levels, models.Depth10Len)
	for i := 0; i < levels; i++ {
		if depth.Bids[i], depth.BidCounts[i], err = bookOrder(models.Buy, rec.Bids[i], pricePrecision, sizePrecision); err != nil {
			return models.OrderBookDepth10{}, err
		}
		if depth.Asks[i], depth.AskCounts[i], err = bookOrder(models.Sell, rec.Asks[i], pricePrecision, sizePrecision); err != nil {
			return models.OrderBookDepth10{}, err
		}
	}
	return depth, nil
}

func bindSnapshots(levels int) func([]string) (rowDecoder[reader.SnapshotRecord], error) {
	return func(header []string) (rowDecoder[reader.SnapshotRecord], error) {
		return reader.NewSnapshotDecoder(header, levels)
	}
}

func streamDepth10(ctx context.Context, kind string, levels int, path string, pricePrecision, sizePrecision uint8, limit int, fn func(models.OrderBookDepth10) error, opts []reader.Option) (int, error) {
	if err := checkPrecision(pricePrecision, sizePrecision); err != nil {
		return 0, err
	}
	return scan(ctx, kind, path, limit, opts, bindSnapshots(levels), func(rec *reader.SnapshotRecord) error {
		depth, err := BuildDepth10(rec, pricePrecision, sizePrecision)
		if err != nil {
			return err
		}
		return fn(depth)
	})
}

func loadDepth10(ctx context.Context, kind string, levels int, path string, pricePrecision, sizePrecision uint8, limit int, opts []reader.Option) ([]models.OrderBookDepth10, error) {
	var depths []models.OrderBookDepth10
	_, err := streamDepth10(ctx, kind, levels, path, pricePrecision, sizePrecision, limit, func(d models.OrderBookDepth10) error {
		depths = append(depths, d)
		return nil
	}, opts)
	if err != nil {
		return nil, err
	}
	return depths, nil
}

// LoadDepth10FromSnapshot5 loads ten level snapshots from a
// book_snapshot_5 file. Levels 5 to 9 are always empty.
func LoadDepth10FromSnapshot5(ctx context.Context, path string, pricePrecision, sizePrecision uint8, limit int, opts ...reader.Option) ([]models.OrderBookDepth10, error) {
	return loadDepth10(ctx, appconfig.KindDepth10Snapshot5, 5, path, pricePrecision, sizePrecision, limit, opts)
}

// LoadDepth10FromSnapshot25 loads ten level snapshots from a
// book_snapshot_25 file, keeping the best ten levels per side.
func LoadDepth10FromSnapshot25(ctx context.Context, path string, pricePrecision, sizePrecision uint8, limit int, opts ...reader.Option) ([]models.OrderBookDepth10, error) {
	return loadDepth10(ctx, appconfig.KindDepth10Snapshot25, 25, path, pricePrecision, sizePrecision, limit, opts)
}

func StreamDepth10FromSnapshot5(ctx context.Context, path string, pricePrecision, sizePrecision uint8, limit int, fn func(models.OrderBookDepth10) error, opts ...reader.Option) (int, error) {
	return streamDepth10(ctx, appconfig.KindDepth10Snapshot5, 5, path, pricePrecision, sizePrecision, limit, fn, opts)
}

func StreamDepth10FromSnapshot25(ctx context.Context, path string, pricePrecision, sizePrecision uint8, limit int, fn func(models.OrderBookDepth10) error, opts ...reader.Option) (int, error) {
	return streamDepth10(ctx, appconfig.KindDepth10Snapshot25, 25, path, pricePrecision, sizePrecision, limit, fn, opts)
}
