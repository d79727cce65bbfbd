package processor

import (
	"context"

	appconfig "tardisflow/config"
	"tardisflow/models"
	"tardisflow/reader"
)

// BuildQuote converts one quotes row. A blank side becomes a zero price
// and size at the requested precision.
func BuildQuote(rec *reader.QuoteRecord, pricePrecision, sizePrecision uint8) (models.QuoteTick, error) {
	tsEvent, tsInit, err := parseEnvelopeTimes(rec.Envelope)
	if err != nil {
		return models.QuoteTick{}, err
	}
	q := models.QuoteTick{
		InstrumentID: ParseInstrumentID(rec.Exchange, rec.Symbol),
		TsEvent:      tsEvent,
		TsInit:       tsInit,
	}
	if q.BidPrice, err = newPrice("bid_price", rec.Bid.Price, pricePrecision); err != nil {
		return models.QuoteTick{}, err
	}
	if q.AskPrice, err = newPrice("ask_price", rec.Ask.Price, pricePrecision); err != nil {
		return models.QuoteTick{}, err
	}
	if q.BidSize, err = newQuantity("bid_amount", rec.Bid.Amount, sizePrecision); err != nil {
		return models.QuoteTick{}, err
	}
	if q.AskSize, err = newQuantity("ask_amount", rec.Ask.Amount, sizePrecision); err != nil {
		return models.QuoteTick{}, err
	}
	return q, nil
}

// BuildTrade converts one trades row.
func BuildTrade(rec *reader.TradeRecord, pricePrecision, sizePrecision uint8) (models.TradeTick, error) {
	aggressor, err := ParseAggressorSide(rec.Side)
	if err != nil {
		return models.TradeTick{}, err
	}
	price, err := newPrice("price", rec.Price, pricePrecision)
	if err != nil {
		return models.TradeTick{}, err
	}
	size, err := newQuantity("amount", rec.Amount, sizePrecision)
	if err != nil {
		return models.TradeTick{}, err
	}
	tsEvent, tsInit, err := parseEnvelopeTimes(rec.Envelope)
	if err != nil {
		return models.TradeTick{}, err
	}
	return models.TradeTick{
		InstrumentID:  ParseInstrumentID(rec.Exchange, rec.Symbol),
		Price:         price,
		Size:          size,
		AggressorSide: aggressor,
		TradeID:       rec.ID,
		TsEvent:       tsEvent,
		TsInit:        tsInit,
	}, nil
}

func bindQuotes(header []string) (rowDecoder[reader.QuoteRecord], error) {
	return reader.NewQuoteDecoder(header)
}

func bindTrades(header []string) (rowDecoder[reader.TradeRecord], error) {
	return reader.NewTradeDecoder(header)
}

func StreamQuotes(ctx context.Context, path string, pricePrecision, sizePrecision uint8, limit int, fn func(models.QuoteTick) error, opts ...reader.Option) (int, error) {
	if err := checkPrecision(pricePrecision, sizePrecision); err != nil {
		return 0, err
	}
	return scan(ctx, appconfig.KindQuotes, path, limit, opts, bindQuotes, func(rec *reader.QuoteRecord) error {
		q, err := BuildQuote(rec, pricePrecision, sizePrecision)
		if err != nil {
			return err
		}
		return fn(q)
	})
}

// LoadQuotes loads quote ticks from a quotes file.
func LoadQuotes(ctx context.Context, path string, pricePrecision, sizePrecision uint8, limit int, opts ...reader.Option) ([]models.QuoteTick, error) {
	var quotes []models.QuoteTick
	if _, err := StreamQuotes(ctx, path, pricePrecision, sizePrecision, limit, func(q models.QuoteTick) error {
		quotes = append(quotes, q)
		return nil
	}, opts...); err != nil {
		return nil, err
	}
	return quotes, nil
}

func StreamTrades(ctx context.Context, path string, pricePrecision, sizePrecision uint8, limit int, fn func(models.TradeTick) error, opts ...reader.Option) (int, error) {
	if err := checkPrecision(pricePrecision, sizePrecision); err != nil {
		return 0, err
	}
	return scan(ctx, appconfig.KindTrades, path, limit, opts, bindTrades, func(rec *reader.TradeRecord) error {
		t, err := BuildTrade(rec, pricePrecision, sizePrecision)
		if err != nil {
			return err
		}
		return fn(t)
	})
}

// LoadTrades loads trade ticks from a trades file.
func LoadTrades(ctx context.Context, path string, pricePrecision, sizePrecision uint8, limit int, opts ...reader.Option) ([]models.TradeTick, error) {
	var trades []models.TradeTick
	if _, err := StreamTrades(ctx, path, pricePrecision, sizePrecision, limit, func(t models.TradeTick) error {
		trades = append(trades, t)
		return nil
	}, opts...); err != nil {
		return nil, err
	}
	return trades, nil
}
