package writer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/source"
	"github.com/xitongsys/parquet-go/writer"
	"golang.org/x/time/rate"

	appconfig "tardisflow/config"
	"tardisflow/internal/storage"
	"tardisflow/logger"
	"tardisflow/models"
)

const parquetParallelism = 4

// Part kinds used in file names and partition keys.
const (
	partDeltas  = "deltas"
	partDepth10 = "depth10"
	partQuotes  = "quotes"
	partTrades  = "trades"
)

// memFileWriter is an in-memory source.ParquetFile used for S3 uploads.
type memFileWriter struct{ buffer *bytes.Buffer }

func newMemFileWriter() *memFileWriter { return &memFileWriter{buffer: &bytes.Buffer{}} }

func (m *memFileWriter) Create(string) (source.ParquetFile, error) { return m, nil }
func (m *memFileWriter) Open(string) (source.ParquetFile, error)   { return m, nil }
func (m *memFileWriter) Seek(int64, int) (int64, error)            { return int64(m.buffer.Len()), nil }
func (m *memFileWriter) Read([]byte) (int, error)                  { return 0, nil }
func (m *memFileWriter) Write(b []byte) (int, error)               { return m.buffer.Write(b) }
func (m *memFileWriter) Close() error                              { return nil }
func (m *memFileWriter) Bytes() []byte                             { return m.buffer.Bytes() }

type partBuffer struct {
	kind       string
	instrument models.InstrumentID
	firstEvent models.UnixNanos
	rows       []interface{}
}

// ParquetWriter buffers rows per kind and instrument and writes a parquet
// part every writer.batch_size rows, to S3 when storage.s3 is enabled and
// to writer.output_dir otherwise.
type ParquetWriter struct {
	cfg      *appconfig.Config
	s3Client storage.S3API
	limiter  *rate.Limiter
	buffers  map[string]*partBuffer
	parts    []string
	log      *logger.Log
}

// ParquetOption configures a ParquetWriter.
type ParquetOption func(*ParquetWriter)

// WithParquetS3Client replaces the client built from storage.s3.
func WithParquetS3Client(client storage.S3API) ParquetOption {
	return func(w *ParquetWriter) { w.s3Client = client }
}

func NewParquetWriter(ctx context.Context, cfg *appconfig.Config, opts ...ParquetOption) (*ParquetWriter, error) {
	w := &ParquetWriter{
		cfg:     cfg,
		buffers: make(map[string]*partBuffer),
		log:     logger.GetLogger(),
	}
	for _, opt := range opts {
		opt(w)
	}

	if cfg.Storage.S3.Enabled && w.s3Client == nil {
		client, err := storage.NewS3Client(ctx, cfg.Storage.S3)
		if err != nil {
			return nil, err
		}
		w.s3Client = client
	}
	if cfg.Writer.UploadsPerSecond > 0 {
		w.limiter = rate.NewLimiter(rate.Limit(cfg.Writer.UploadsPerSecond), 1)
	}
	if !cfg.Storage.S3.Enabled && cfg.Writer.OutputDir == "" {
		return nil, fmt.Errorf("parquet writer needs writer.output_dir or storage.s3")
	}

	w.log.WithComponent("parquet_writer").WithFields(logger.Fields{
		"s3":          cfg.Storage.S3.Enabled,
		"bucket":      cfg.Storage.S3.Bucket,
		"output_dir":  cfg.Writer.OutputDir,
		"batch_size":  cfg.Writer.BatchSize,
		"compression": cfg.Writer.Compression,
	}).Debug("parquet writer initialized")
	return w, nil
}

func (w *ParquetWriter) WriteDelta(ctx context.Context, d models.OrderBookDelta) error {
	return w.add(ctx, partDeltas, d.InstrumentID, d.TsEvent, newDeltaRow(d))
}

func (w *ParquetWriter) WriteDepth10(ctx context.Context, d models.OrderBookDepth10) error {
	return w.add(ctx, partDepth10, d.InstrumentID, d.TsEvent, newDepthRows(d)...)
}

func (w *ParquetWriter) WriteQuote(ctx context.Context, q models.QuoteTick) error {
	return w.add(ctx, partQuotes, q.InstrumentID, q.TsEvent, newQuoteRow(q))
}

func (w *ParquetWriter) WriteTrade(ctx context.Context, t models.TradeTick) error {
	return w.add(ctx, partTrades, t.InstrumentID, t.TsEvent, newTradeRow(t))
}

func (w *ParquetWriter) add(ctx context.Context, kind string, id models.InstrumentID, ts models.UnixNanos, rows ...interface{}) error {
	key := kind + "|" + id.String()
	buf, ok := w.buffers[key]
	if !ok {
		buf = &partBuffer{kind: kind, instrument: id, firstEvent: ts}
		w.buffers[key] = buf
	}
	buf.rows = append(buf.rows, rows...)

	if w.cfg.Writer.BatchSize > 0 && len(buf.rows) >= w.cfg.Writer.BatchSize {
		delete(w.buffers, key)
		return w.writePart(ctx, buf)
	}
	return nil
}

// Close writes every partially filled buffer. A failed part does not stop
// the remaining ones; all failures are returned joined.
func (w *ParquetWriter) Close(ctx context.Context) error {
	keys := make([]string, 0, len(w.buffers))
	for k := range w.buffers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var errs []error
	for _, k := range keys {
		buf := w.buffers[k]
		delete(w.buffers, k)
		if len(buf.rows) == 0 {
			continue
		}
		if err := w.writePart(ctx, buf); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Parts returns the keys or paths of the parts written so far.
func (w *ParquetWriter) Parts() []string {
	return append([]string(nil), w.parts...)
}

func (w *ParquetWriter) writePart(ctx context.Context, buf *partBuffer) error {
	start := time.Now()
	key := w.partKey(buf)
	log := w.log.WithComponent("parquet_writer").WithFields(logger.Fields{
		"kind":       buf.kind,
		"instrument": buf.instrument.String(),
		"records":    len(buf.rows),
	})

	var (
		size     int64
		location string
		err      error
	)
	if w.cfg.Storage.S3.Enabled {
		size, err = w.upload(ctx, key, buf)
		location = "s3://" + w.cfg.Storage.S3.Bucket + "/" + key
	} else {
		location = filepath.Join(w.cfg.Writer.OutputDir, filepath.FromSlash(key))
		size, err = w.writeLocal(location, buf)
	}
	if err != nil {
		log.WithError(err).Error("write parquet part failed")
		return fmt.Errorf("write %s part %s: %w", buf.kind, location, err)
	}

	w.parts = append(w.parts, location)
	logger.AddPartWritten(buf.kind, size)
	logger.LogPerformanceEntry(log, "parquet_writer", "write_part", time.Since(start), logger.Fields{
		"location": location,
		"bytes":    size,
	})
	return nil
}

func (w *ParquetWriter) compression() parquet.CompressionCodec {
	switch w.cfg.Writer.Compression {
	case "gzip":
		return parquet.CompressionCodec_GZIP
	case "zstd":
		return parquet.CompressionCodec_ZSTD
	case "none":
		return parquet.CompressionCodec_UNCOMPRESSED
	default:
		return parquet.CompressionCodec_SNAPPY
	}
}

func schemaFor(kind string) interface{} {
	switch kind {
	case partDeltas:
		return new(deltaRow)
	case partDepth10:
		return new(depthRow)
	case partQuotes:
		return new(quoteRow)
	default:
		return new(tradeRow)
	}
}

func (w *ParquetWriter) encode(pf source.ParquetFile, buf *partBuffer) error {
	pw, err := writer.NewParquetWriter(pf, schemaFor(buf.kind), parquetParallelism)
	if err != nil {
		return err
	}
	pw.CompressionType = w.compression()
	for _, row := range buf.rows {
		if err := pw.Write(row); err != nil {
			return err
		}
	}
	return pw.WriteStop()
}

func (w *ParquetWriter) writeLocal(name string, buf *partBuffer) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(name), 0o755); err != nil {
		return 0, err
	}
	fw, err := local.NewLocalFileWriter(name)
	if err != nil {
		return 0, err
	}
	if err := w.encode(fw, buf); err != nil {
		fw.Close()
		return 0, err
	}
	if err := fw.Close(); err != nil {
		return 0, err
	}
	info, err := os.Stat(name)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

func (w *ParquetWriter) upload(ctx context.Context, key string, buf *partBuffer) (int64, error) {
	mw := newMemFileWriter()
	if err := w.encode(mw, buf); err != nil {
		return 0, err
	}
	data := mw.Bytes()
	if w.limiter != nil {
		if err := w.limiter.Wait(ctx); err != nil {
			return 0, err
		}
	}
	if _, err := w.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(w.cfg.Storage.S3.Bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(data),
	}); err != nil {
		return 0, err
	}
	logger.IncrementS3Upload(int64(len(data)))
	return int64(len(data)), nil
}

// partKey lays a part out as <additional keys>/<time path>/<file>. The
// time path comes from the first event in the part.
func (w *ParquetWriter) partKey(buf *partBuffer) string {
	ts := time.Unix(0, int64(buf.firstEvent)).UTC()

	var parts []string
	for _, k := range w.cfg.Writer.Partitioning.AdditionalKeys {
		switch k {
		case "exchange", "venue":
			parts = append(parts, "exchange="+strings.ToLower(buf.instrument.Venue))
		case "symbol":
			parts = append(parts, "symbol="+pathSafe(buf.instrument.Symbol))
		case "kind":
			parts = append(parts, "kind="+buf.kind)
		}
	}

	timePath := w.cfg.Writer.Partitioning.TimeFormat
	timePath = strings.ReplaceAll(timePath, "{year}", fmt.Sprintf("%04d", ts.Year()))
	timePath = strings.ReplaceAll(timePath, "{month}", fmt.Sprintf("%02d", int(ts.Month())))
	timePath = strings.ReplaceAll(timePath, "{day}", fmt.Sprintf("%02d", ts.Day()))
	timePath = strings.ReplaceAll(timePath, "{hour}", fmt.Sprintf("%02d", ts.Hour()))
	if timePath != "" {
		parts = append(parts, timePath)
	}

	filename := fmt.Sprintf("%s_%s_%s_%d_%s.parquet",
		buf.kind,
		strings.ToLower(buf.instrument.Venue),
		pathSafe(buf.instrument.Symbol),
		int64(buf.firstEvent),
		uuid.New().String()[:8],
	)
	return path.Join(append(parts, filename)...)
}

var pathReplacer = strings.NewReplacer("/", "-", "\\", "-", " ", "_")

func pathSafe(s string) string {
	return pathReplacer.Replace(s)
}
