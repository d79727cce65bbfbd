package reader

import (
	"fmt"
	"strconv"
	"strings"

	"tardisflow/models"
)

// MaxSnapshotLevels is the widest book_snapshot_N export supported.
const MaxSnapshotLevels = 25

// Envelope holds the columns shared by every record variant.
type Envelope struct {
	Exchange       string
	Symbol         string
	Timestamp      uint64
	LocalTimestamp uint64
}

// Level is one optional price level. Has* is false for empty cells.
type Level struct {
	Price     float64
	Amount    float64
	HasPrice  bool
	HasAmount bool
}

// BookUpdateRecord is a row of an incremental_book_L2 export.
type BookUpdateRecord struct {
	Envelope
	IsSnapshot bool
	Side       string
	Price      float64
	Amount     float64
}

// SnapshotRecord is a row of a book_snapshot_5 or book_snapshot_25 export.
// Only the first Levels entries of Asks and Bids are decoded.
type SnapshotRecord struct {
	Envelope
	Levels int
	Asks   [MaxSnapshotLevels]Level
	Bids   [MaxSnapshotLevels]Level
}

// QuoteRecord is a row of a quotes export. Either side may be empty.
type QuoteRecord struct {
	Envelope
	Ask Level
	Bid Level
}

// TradeRecord is a row of a trades export.
type TradeRecord struct {
	Envelope
	ID     string
	Side   string
	Price  float64
	Amount float64
}

type envelopeColumns struct {
	exchange, symbol, timestamp, localTimestamp int
}

type columnBinder struct {
	header map[string]int
	err    error
}

func newColumnBinder(header []string) *columnBinder {
	idx := make(map[string]int, len(header))
	for i, col := range header {
		idx[strings.TrimSpace(col)] = i
	}
	return &columnBinder{header: idx}
}

func (b *columnBinder) bind(name string) int {
	i, ok := b.header[name]
	if !ok && b.err == nil {
		b.err = fmt.Errorf("%w: missing column %q", models.ErrRowDecode, name)
	}
	return i
}

func (b *columnBinder) envelope() envelopeColumns {
	return envelopeColumns{
		exchange:       b.bind("exchange"),
		symbol:         b.bind("symbol"),
		timestamp:      b.bind("timestamp"),
		localTimestamp: b.bind("local_timestamp"),
	}
}

func (c envelopeColumns) decode(row Row, env *Envelope) error {
	var err error
	if env.Exchange, err = requiredString(row, c.exchange, "exchange"); err != nil {
		return err
	}
	if env.Symbol, err = requiredString(row, c.symbol, "symbol"); err != nil {
		return err
	}
	if env.Timestamp, err = requiredUint(row, c.timestamp, "timestamp"); err != nil {
		return err
	}
	if env.LocalTimestamp, err = requiredUint(row, c.localTimestamp, "local_timestamp"); err != nil {
		return err
	}
	return nil
}

// BookUpdateDecoder decodes incremental_book_L2 rows.
type BookUpdateDecoder struct {
	env        envelopeColumns
	isSnapshot int
	side       int
	price      int
	amount     int
}

func NewBookUpdateDecoder(header []string) (*BookUpdateDecoder, error) {
	b := newColumnBinder(header)
	d := &BookUpdateDecoder{
		env:        b.envelope(),
		isSnapshot: b.bind("is_snapshot"),
		side:       b.bind("side"),
		price:      b.bind("price"),
		amount:     b.bind("amount"),
	}
	if b.err != nil {
		return nil, b.err
	}
	return d, nil
}

func (d *BookUpdateDecoder) Decode(row Row, rec *BookUpdateRecord) error {
	if err := d.env.decode(row, &rec.Envelope); err != nil {
		return err
	}
	v, err := requiredString(row, d.isSnapshot, "is_snapshot")
	if err != nil {
		return err
	}
	if rec.IsSnapshot, err = strconv.ParseBool(v); err != nil {
		return decodeError("is_snapshot", err)
	}
	if rec.Side, err = requiredString(row, d.side, "side"); err != nil {
		return err
	}
	if rec.Price, err = requiredFloat(row, d.price, "price"); err != nil {
		return err
	}
	if rec.Amount, err = requiredFloat(row, d.amount, "amount"); err != nil {
		return err
	}
	return nil
}

type levelColumns struct {
	price      int
	amount     int
	priceName  string
	amountName string
}

func (c levelColumns) decode(row Row, lvl *Level) error {
	*lvl = Level{}
	var err error
	if lvl.Price, lvl.HasPrice, err = optionalFloat(row, c.price, c.priceName); err != nil {
		return err
	}
	if lvl.Amount, lvl.HasAmount, err = optionalFloat(row, c.amount, c.amountName); err != nil {
		return err
	}
	return nil
}

// SnapshotDecoder decodes book_snapshot_N rows for a fixed N.
type SnapshotDecoder struct {
	env    envelopeColumns
	levels int
	asks   []levelColumns
	bids   []levelColumns
}

// NewSnapshotDecoder binds the asks[i] and bids[i] columns for i < levels.
func NewSnapshotDecoder(header []string, levels int) (*SnapshotDecoder, error) {
	if levels <= 0 || levels > MaxSnapshotLevels {
		return nil, fmt.Errorf("snapshot levels must be between 1 and %d, got %d", MaxSnapshotLevels, levels)
	}
	b := newColumnBinder(header)
	d := &SnapshotDecoder{
		env:    b.envelope(),
		levels: levels,
		asks:   make([]levelColumns, levels),
		bids:   make([]levelColumns, levels),
	}
	for i := 0; i < levels; i++ {
		d.asks[i] = bindLevel(b, "asks", i)
		d.bids[i] = bindLevel(b, "bids", i)
	}
	if b.err != nil {
		return nil, b.err
	}
	return d, nil
}

func bindLevel(b *columnBinder, side string, i int) levelColumns {
	priceName := fmt.Sprintf("%s[%d].price", side, i)
	amountName := fmt.Sprintf("%s[%d].amount", side, i)
	return levelColumns{
		price:      b.bind(priceName),
		amount:     b.bind(amountName),
		priceName:  priceName,
		amountName: amountName,
	}
}

func (d *SnapshotDecoder) Decode(row Row, rec *SnapshotRecord) error {
	if err := d.env.decode(row, &rec.Envelope); err != nil {
		return err
	}
	rec.Levels = d.levels
	for i := 0; i < d.levels; i++ {
		if err := d.asks[i].decode(row, &rec.Asks[i]); err != nil {
			return err
		}
		if err := d.bids[i].decode(row, &rec.Bids[i]); err != nil {
			return err
		}
	}
	for i := d.levels; i < MaxSnapshotLevels; i++ {
		rec.Asks[i] = Level{}
		rec.Bids[i] = Level{}
	}
	return nil
}

// QuoteDecoder decodes quotes rows.
type QuoteDecoder struct {
	env envelopeColumns
	ask levelColumns
	bid levelColumns
}

func NewQuoteDecoder(header []string) (*QuoteDecoder, error) {
	b := newColumnBinder(header)
	d := &QuoteDecoder{
		env: b.envelope(),
		ask: levelColumns{
			price: b.bind("ask_price"), amount: b.bind("ask_amount"),
			priceName: "ask_price", amountName: "ask_amount",
		},
		bid: levelColumns{
			price: b.bind("bid_price"), amount: b.bind("bid_amount"),
			priceName: "bid_price", amountName: "bid_amount",
		},
	}
	if b.err != nil {
		return nil, b.err
	}
	return d, nil
}

func (d *QuoteDecoder) Decode(row Row, rec *QuoteRecord) error {
	if err := d.env.decode(row, &rec.Envelope); err != nil {
		return err
	}
	if err := d.ask.decode(row, &rec.Ask); err != nil {
		return err
	}
	return d.bid.decode(row, &rec.Bid)
}

// TradeDecoder decodes trades rows.
type TradeDecoder struct {
	env   envelopeColumns
	id    int
	side  int
	price int
	amt   int
}

func NewTradeDecoder(header []string) (*TradeDecoder, error) {
	b := newColumnBinder(header)
	d := &TradeDecoder{
		env:   b.envelope(),
		id:    b.bind("id"),
		side:  b.bind("side"),
		price: b.bind("price"),
		amt:   b.bind("amount"),
	}
	if b.err != nil {
		return nil, b.err
	}
	return d, nil
}

func (d *TradeDecoder) Decode(row Row, rec *TradeRecord) error {
	if err := d.env.decode(row, &rec.Envelope); err != nil {
		return err
	}
	var err error
	// some venues publish trades without an id
	rec.ID, _ = row.Field(d.id)
	if rec.Side, err = requiredString(row, d.side, "side"); err != nil {
		return err
	}
	if rec.Price, err = requiredFloat(row, d.price, "price"); err != nil {
		return err
	}
	if rec.Amount, err = requiredFloat(row, d.amt, "amount"); err != nil {
		return err
	}
	return nil
}

func decodeError(column string, err error) error {
	return fmt.Errorf("%w: column %s: %v", models.ErrRowDecode, column, err)
}

func requiredString(row Row, i int, column string) (string, error) {
	v, ok := row.Field(i)
	if !ok {
		return "", fmt.Errorf("%w: column %s is empty", models.ErrRowDecode, column)
	}
	return v, nil
}

func requiredUint(row Row, i int, column string) (uint64, error) {
	v, err := requiredString(row, i, column)
	if err != nil {
		return 0, err
	}
	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return 0, decodeError(column, err)
	}
	return n, nil
}

func requiredFloat(row Row, i int, column string) (float64, error) {
	v, err := requiredString(row, i, column)
	if err != nil {
		return 0, err
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, decodeError(column, err)
	}
	return f, nil
}

func optionalFloat(row Row, i int, column string) (float64, bool, error) {
	v, ok := row.Field(i)
	if !ok {
		return 0, false, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, false, decodeError(column, err)
	}
	return f, true, nil
}
