package reader

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"

	"tardisflow/models"
)

const bookUpdateCSV = `exchange,symbol,timestamp,local_timestamp,is_snapshot,side,price,amount
deribit,BTC-PERPETUAL,1585699200245000,1585699200355684,false,ask,6443.5,38640
deribit,BTC-PERPETUAL,1585699200245000,1585699200355684,false,bid,6421,0
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	return p
}

func writeGzip(t *testing.T, name, content string) string {
	t.Helper()
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write([]byte(content)); err != nil {
		t.Fatalf("gzip write: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("gzip close: %v", err)
	}
	return writeFile(t, name, buf.String())
}

func writeZstd(t *testing.T, name, content string) string {
	t.Helper()
	var buf bytes.Buffer
	enc, err := zstd.NewWriter(&buf)
	if err != nil {
		t.Fatalf("zstd writer: %v", err)
	}
	if _, err := enc.Write([]byte(content)); err != nil {
		t.Fatalf("zstd write: %v", err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("zstd close: %v", err)
	}
	return writeFile(t, name, buf.String())
}

func readAllBookUpdates(t *testing.T, src *Source) []BookUpdateRecord {
	t.Helper()
	dec, err := NewBookUpdateDecoder(src.Header())
	if err != nil {
		t.Fatalf("NewBookUpdateDecoder: %v", err)
	}
	var out []BookUpdateRecord
	for {
		row, err := src.Next()
		if errors.Is(err, io.EOF) {
			return out
		}
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		var rec BookUpdateRecord
		if err := dec.Decode(row, &rec); err != nil {
			t.Fatalf("Decode row %d: %v", row.Line, err)
		}
		out = append(out, rec)
	}
}

func TestOpenCompressedVariants(t *testing.T) {
	paths := map[string]string{
		"plain": writeFile(t, "book.csv", bookUpdateCSV),
		"gzip":  writeGzip(t, "book.csv.gz", bookUpdateCSV),
		"zstd":  writeZstd(t, "book.csv.zst", bookUpdateCSV),
	}
	for name, p := range paths {
		src, err := Open(context.Background(), p)
		if err != nil {
			t.Fatalf("%s: Open: %v", name, err)
		}
		recs := readAllBookUpdates(t, src)
		if err := src.Close(); err != nil {
			t.Errorf("%s: Close: %v", name, err)
		}
		if len(recs) != 2 {
			t.Fatalf("%s: expected 2 records, got %d", name, len(recs))
		}
		first := recs[0]
		if first.Exchange != "deribit" || first.Symbol != "BTC-PERPETUAL" || first.Side != "ask" {
			t.Errorf("%s: unexpected record %+v", name, first)
		}
		if first.Timestamp != 1585699200245000 || first.Price != 6443.5 || first.Amount != 38640 || first.IsSnapshot {
			t.Errorf("%s: unexpected values %+v", name, first)
		}
		if recs[1].Amount != 0 {
			t.Errorf("%s: expected zero amount, got %v", name, recs[1].Amount)
		}
	}
}

func TestDetectCompression(t *testing.T) {
	cases := map[string]Compression{
		"a.csv":             CompressionNone,
		"a.csv.gz":          CompressionGzip,
		"s3://b/x.csv.GZ":   CompressionGzip,
		"a.csv.zst":         CompressionZstd,
		"dir.gz/trades.csv": CompressionNone,
	}
	for name, want := range cases {
		if got := DetectCompression(name); got != want {
			t.Errorf("DetectCompression(%q) = %s, want %s", name, got, want)
		}
	}
}

func TestOpenErrors(t *testing.T) {
	_, err := Open(context.Background(), filepath.Join(t.TempDir(), "missing.csv"))
	if !errors.Is(err, models.ErrIO) {
		t.Fatalf("expected ErrIO for missing file, got %v", err)
	}

	bad := writeFile(t, "bad.csv.gz", "this is not gzip")
	_, err = Open(context.Background(), bad)
	if !errors.Is(err, models.ErrIO) {
		t.Fatalf("expected ErrIO for corrupt gzip, got %v", err)
	}
}

func TestEmptyAndHeaderOnlyFiles(t *testing.T) {
	for _, content := range []string{"", "exchange,symbol,timestamp,local_timestamp,is_snapshot,side,price,amount\n"} {
		src, err := Open(context.Background(), writeFile(t, "empty.csv", content))
		if err != nil {
			t.Fatalf("Open: %v", err)
		}
		if _, err := src.Next(); !errors.Is(err, io.EOF) {
			t.Errorf("expected io.EOF, got %v", err)
		}
		src.Close()
	}
}

func TestRowDecodeErrors(t *testing.T) {
	cases := []struct {
		name string
		row  string
	}{
		{"bad timestamp", "deribit,BTC-PERPETUAL,abc,1,false,ask,1,1"},
		{"bad bool", "deribit,BTC-PERPETUAL,1,1,maybe,ask,1,1"},
		{"missing price", "deribit,BTC-PERPETUAL,1,1,false,ask,,1"},
		{"bad amount", "deribit,BTC-PERPETUAL,1,1,false,ask,1,x"},
	}
	header := "exchange,symbol,timestamp,local_timestamp,is_snapshot,side,price,amount\n"
	for _, c := range cases {
		src, err := Open(context.Background(), writeFile(t, "rows.csv", header+c.row+"\n"))
		if err != nil {
			t.Fatalf("%s: Open: %v", c.name, err)
		}
		dec, err := NewBookUpdateDecoder(src.Header())
		if err != nil {
			t.Fatalf("%s: decoder: %v", c.name, err)
		}
		row, err := src.Next()
		if err != nil {
			t.Fatalf("%s: Next: %v", c.name, err)
		}
		var rec BookUpdateRecord
		if err := dec.Decode(row, &rec); !errors.Is(err, models.ErrRowDecode) {
			t.Errorf("%s: expected ErrRowDecode, got %v", c.name, err)
		}
		src.Close()
	}

	// wrong field count is reported by the tokenizer
	src, err := Open(context.Background(), writeFile(t, "short.csv", header+"deribit,BTC\n"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer src.Close()
	if _, err := src.Next(); !errors.Is(err, models.ErrRowDecode) {
		t.Errorf("expected ErrRowDecode for short row, got %v", err)
	}
}

func TestMissingColumn(t *testing.T) {
	header := []string{"exchange", "symbol", "timestamp", "local_timestamp", "side", "price", "amount"}
	if _, err := NewBookUpdateDecoder(header); !errors.Is(err, models.ErrRowDecode) {
		t.Fatalf("expected ErrRowDecode for missing is_snapshot, got %v", err)
	}
	if _, err := NewSnapshotDecoder(snapshotHeader(5), 25); !errors.Is(err, models.ErrRowDecode) {
		t.Fatalf("expected ErrRowDecode binding 25 levels to a 5 level header, got %v", err)
	}
	if _, err := NewSnapshotDecoder(snapshotHeader(5), 0); err == nil {
		t.Fatalf("expected error for zero levels")
	}
}

func snapshotHeader(levels int) []string {
	h := []string{"exchange", "symbol", "timestamp", "local_timestamp"}
	for i := 0; i < levels; i++ {
		h = append(h,
			fmt.Sprintf("asks[%d].price", i), fmt.Sprintf("asks[%d].amount", i),
			fmt.Sprintf("bids[%d].price", i), fmt.Sprintf("bids[%d].amount", i))
	}
	return h
}

func TestSnapshotDecoderOptionalLevels(t *testing.T) {
	header := strings.Join(snapshotHeader(5), ",")
	// asks blank, bids 0-2 populated
	row := "binance-futures,BTCUSDT,1,2,,,100.1,1.5,,,100.0,2,,,99.9,0.25,,,,,,,,"
	src, err := Open(context.Background(), writeFile(t, "snap.csv", header+"\n"+row+"\n"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer src.Close()
	dec, err := NewSnapshotDecoder(src.Header(), 5)
	if err != nil {
		t.Fatalf("NewSnapshotDecoder: %v", err)
	}
	r, err := src.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	var rec SnapshotRecord
	if err := dec.Decode(r, &rec); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if rec.Levels != 5 {
		t.Fatalf("unexpected levels %d", rec.Levels)
	}
	for i := 0; i < 5; i++ {
		if rec.Asks[i].HasPrice {
			t.Errorf("ask %d should be empty", i)
		}
		if want := i < 3; rec.Bids[i].HasPrice != want {
			t.Errorf("bid %d HasPrice = %v, want %v", i, rec.Bids[i].HasPrice, want)
		}
	}
	if rec.Bids[2].Price != 99.9 || rec.Bids[2].Amount != 0.25 {
		t.Errorf("unexpected bid 2: %+v", rec.Bids[2])
	}
}

func TestQuoteAndTradeDecoders(t *testing.T) {
	quotes := "exchange,symbol,timestamp,local_timestamp,ask_amount,ask_price,bid_price,bid_amount\n" +
		"deribit,BTC-PERPETUAL,10,11,,,6443.5,100\n"
	src, err := Open(context.Background(), writeFile(t, "quotes.csv", quotes))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	qd, err := NewQuoteDecoder(src.Header())
	if err != nil {
		t.Fatalf("NewQuoteDecoder: %v", err)
	}
	row, err := src.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	var q QuoteRecord
	if err := qd.Decode(row, &q); err != nil {
		t.Fatalf("Decode quote: %v", err)
	}
	if q.Ask.HasPrice || q.Ask.HasAmount || !q.Bid.HasPrice || q.Bid.Amount != 100 {
		t.Errorf("unexpected quote %+v", q)
	}
	src.Close()

	trades := "exchange,symbol,timestamp,local_timestamp,id,side,price,amount\n" +
		"bitmex,XBTUSD,10,11,t-1,sell,7000.5,20\n" +
		"bitmex,XBTUSD,12,13,,unknown,7001,5\n"
	src, err = Open(context.Background(), writeFile(t, "trades.csv", trades))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer src.Close()
	td, err := NewTradeDecoder(src.Header())
	if err != nil {
		t.Fatalf("NewTradeDecoder: %v", err)
	}
	var got []TradeRecord
	for {
		row, err := src.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		var tr TradeRecord
		if err := td.Decode(row, &tr); err != nil {
			t.Fatalf("Decode trade: %v", err)
		}
		got = append(got, tr)
	}
	if len(got) != 2 || got[0].ID != "t-1" || got[0].Side != "sell" || got[1].ID != "" {
		t.Errorf("unexpected trades %+v", got)
	}
}

type fakeS3 struct {
	objects map[string]string
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	body, ok := f.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)]
	if !ok {
		return nil, fmt.Errorf("no such key")
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader(body))}, nil
}

func (f *fakeS3) PutObject(context.Context, *s3.PutObjectInput, ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	return &s3.PutObjectOutput{}, nil
}

func TestOpenS3(t *testing.T) {
	client := &fakeS3{objects: map[string]string{"tardis/deribit/book.csv": bookUpdateCSV}}
	src, err := Open(context.Background(), "s3://tardis/deribit/book.csv", WithS3Client(client))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer src.Close()
	if recs := readAllBookUpdates(t, src); len(recs) != 2 {
		t.Fatalf("expected 2 records from s3, got %d", len(recs))
	}

	if _, err := Open(context.Background(), "s3://tardis/missing.csv", WithS3Client(client)); !errors.Is(err, models.ErrIO) {
		t.Fatalf("expected ErrIO for missing object, got %v", err)
	}
}
