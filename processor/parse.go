package processor

import (
	"fmt"
	"math"
	"strings"

	"tardisflow/models"
	"tardisflow/reader"
)

// ParseInstrumentID builds the instrument id for a vendor exchange and
// symbol. The venue is the upper-cased exchange name.
func ParseInstrumentID(exchange, symbol string) models.InstrumentID {
	return models.InstrumentID{
		Symbol: symbol,
		Venue:  strings.ToUpper(exchange),
	}
}

// ParseOrderSide maps a book side to an order side.
func ParseOrderSide(side string) (models.OrderSide, error) {
	switch side {
	case "bid", "buy":
		return models.Buy, nil
	case "ask", "sell":
		return models.Sell, nil
	default:
		return models.NoOrderSide, fmt.Errorf("%w: invalid order side %q", models.ErrFieldParse, side)
	}
}

// ParseAggressorSide maps a trade side to the aggressor.
func ParseAggressorSide(side string) (models.AggressorSide, error) {
	switch side {
	case "buy":
		return models.Buyer, nil
	case "sell":
		return models.Seller, nil
	case "unknown":
		return models.NoAggressor, nil
	default:
		return models.NoAggressor, fmt.Errorf("%w: invalid aggressor side %q", models.ErrFieldParse, side)
	}
}

// ParseBookAction derives the action of a book update. Rows replayed from
// a snapshot add levels, a zero amount removes the level, anything else
// updates it. Clear is never produced since the format has no such event.
func ParseBookAction(isSnapshot bool, amount float64) models.BookAction {
	switch {
	case isSnapshot:
		return models.Add
	case amount == 0:
		return models.Delete
	default:
		return models.Update
	}
}

const maxTimestampMicros = math.MaxUint64 / 1_000

// ParseTimestamp converts a microsecond timestamp to nanoseconds. Values
// that do not fit in nanoseconds are a field parse error.
func ParseTimestamp(us uint64) (models.UnixNanos, error) {
	if us > maxTimestampMicros {
		return 0, fmt.Errorf("%w: timestamp %d overflows nanoseconds", models.ErrFieldParse, us)
	}
	return models.UnixNanos(us * 1_000), nil
}

func parseEnvelopeTimes(env reader.Envelope) (tsEvent, tsInit models.UnixNanos, err error) {
	if tsEvent, err = ParseTimestamp(env.Timestamp); err != nil {
		return 0, 0, fmt.Errorf("timestamp: %w", err)
	}
	if tsInit, err = ParseTimestamp(env.LocalTimestamp); err != nil {
		return 0, 0, fmt.Errorf("local_timestamp: %w", err)
	}
	return tsEvent, tsInit, nil
}
