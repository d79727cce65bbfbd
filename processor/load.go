package processor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"tardisflow/logger"
	"tardisflow/models"
	"tardisflow/reader"
)

type rowDecoder[R any] interface {
	Decode(row reader.Row, rec *R) error
}

// scan opens path and calls visit for each decoded row in file order. It
// stops after limit rows when limit is positive. The first failure aborts
// the scan and is returned as a *models.RowError.
func scan[R any](
	ctx context.Context,
	kind, path string,
	limit int,
	opts []reader.Option,
	bind func(header []string) (rowDecoder[R], error),
	visit func(rec *R) error,
) (int, error) {
	start := time.Now()
	log := logger.GetLogger().WithComponent("processor").WithFields(logger.Fields{
		"kind": kind,
		"file": path,
	})

	src, err := reader.Open(ctx, path, opts...)
	if err != nil {
		return 0, err
	}
	defer src.Close()

	rows := 0
	if src.Header() != nil {
		dec, err := bind(src.Header())
		if err != nil {
			return 0, fmt.Errorf("%s: %w", path, err)
		}

		var rec R
		for limit <= 0 || rows < limit {
			row, err := src.Next()
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				return rows, &models.RowError{Row: rows + 1, Err: err}
			}
			if err := dec.Decode(row, &rec); err != nil {
				return rows, &models.RowError{Row: row.Line, Err: err}
			}
			if err := visit(&rec); err != nil {
				return rows, &models.RowError{Row: row.Line, Err: err}
			}
			rows++
		}
	}

	logger.AddRowsRead(kind, rows)
	logger.LogDataFlowEntry(log, src.Name(), kind, rows, kind)
	log.LogMetric("processor", "RowsLoaded", rows, "counter", logger.Fields{"kind": kind})
	logger.LogPerformanceEntry(log, "processor", "load", time.Since(start), logger.Fields{"limit": limit})
	return rows, nil
}

func checkPrecision(pricePrecision, sizePrecision uint8) error {
	if pricePrecision > models.FixedPrecision {
		return fmt.Errorf("%w: price precision %d exceeds %d", models.ErrInvalidValue, pricePrecision, models.FixedPrecision)
	}
	if sizePrecision > models.FixedPrecision {
		return fmt.Errorf("%w: size precision %d exceeds %d", models.ErrInvalidValue, sizePrecision, models.FixedPrecision)
	}
	return nil
}

func newPrice(field string, value float64, precision uint8) (models.Price, error) {
	p, err := models.NewPrice(value, precision)
	if err != nil {
		return models.Price{}, fmt.Errorf("%w: %s: %w", models.ErrFieldParse, field, err)
	}
	return p, nil
}

func newQuantity(field string, value float64, precision uint8) (models.Quantity, error) {
	q, err := models.NewQuantity(value, precision)
	if err != nil {
		return models.Quantity{}, fmt.Errorf("%w: %s: %w", models.ErrFieldParse, field, err)
	}
	return q, nil
}
