package writer

import (
	"context"
	"errors"

	"tardisflow/models"
)

// Sink receives loaded events. Close flushes anything buffered.
type Sink interface {
	WriteDelta(ctx context.Context, d models.OrderBookDelta) error
	WriteDepth10(ctx context.Context, d models.OrderBookDepth10) error
	WriteQuote(ctx context.Context, q models.QuoteTick) error
	WriteTrade(ctx context.Context, t models.TradeTick) error
	Close(ctx context.Context) error
}

// MultiSink fans every event out to each sink in order.
type MultiSink []Sink

func (m MultiSink) WriteDelta(ctx context.Context, d models.OrderBookDelta) error {
	for _, s := range m {
		if err := s.WriteDelta(ctx, d); err != nil {
			return err
		}
	}
	return nil
}

func (m MultiSink) WriteDepth10(ctx context.Context, d models.OrderBookDepth10) error {
	for _, s := range m {
		if err := s.WriteDepth10(ctx, d); err != nil {
			return err
		}
	}
	return nil
}

func (m MultiSink) WriteQuote(ctx context.Context, q models.QuoteTick) error {
	for _, s := range m {
		if err := s.WriteQuote(ctx, q); err != nil {
			return err
		}
	}
	return nil
}

func (m MultiSink) WriteTrade(ctx context.Context, t models.TradeTick) error {
	for _, s := range m {
		if err := s.WriteTrade(ctx, t); err != nil {
			return err
		}
	}
	return nil
}

// Close closes every sink and returns the joined errors.
func (m MultiSink) Close(ctx context.Context) error {
	var errs []error
	for _, s := range m {
		if err := s.Close(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
