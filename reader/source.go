package reader

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"

	appconfig "tardisflow/config"
	"tardisflow/internal/storage"
	"tardisflow/logger"
	"tardisflow/models"
)

const readBufferSize = 1 << 20

// Compression identifies how a source file is encoded on disk.
type Compression string

const (
	CompressionNone Compression = "none"
	CompressionGzip Compression = "gzip"
	CompressionZstd Compression = "zstd"
)

// DetectCompression picks the decompressor from the file extension.
func DetectCompression(name string) Compression {
	switch strings.ToLower(path.Ext(name)) {
	case ".gz", ".gzip":
		return CompressionGzip
	case ".zst", ".zstd":
		return CompressionZstd
	default:
		return CompressionNone
	}
}

type options struct {
	s3Client storage.S3API
	s3Config appconfig.S3Config
}

// Option configures Open.
type Option func(*options)

// WithS3Client sets the client used for s3:// paths.
func WithS3Client(client storage.S3API) Option {
	return func(o *options) { o.s3Client = client }
}

// WithS3Config sets the settings used to build an S3 client when none is
// given with WithS3Client.
func WithS3Config(cfg appconfig.S3Config) Option {
	return func(o *options) { o.s3Config = cfg }
}

// Source yields CSV rows from a local or S3 file in file order.
type Source struct {
	name        string
	compression Compression
	closers     []io.Closer
	csv         *csv.Reader
	header      []string
	line        int
	empty       bool
}

// Open opens name and reads its header row. Paths of the form
// s3://bucket/key are fetched with GetObject. Files ending in .gz or .zst
// are decompressed transparently.
func Open(ctx context.Context, name string, opts ...Option) (*Source, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	log := logger.GetLogger().WithComponent("reader")

	body, err := openRaw(ctx, name, &o)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", models.ErrIO, name, err)
	}

	src := &Source{
		name:        name,
		compression: DetectCompression(name),
		closers:     []io.Closer{body},
	}

	var r io.Reader = bufio.NewReaderSize(body, readBufferSize)
	switch src.compression {
	case CompressionGzip:
		gz, err := gzip.NewReader(r)
		if err != nil {
			src.Close()
			return nil, fmt.Errorf("%w: gzip %s: %v", models.ErrIO, name, err)
		}
		src.closers = append(src.closers, gz)
		r = gz
	case CompressionZstd:
		dec, err := zstd.NewReader(r)
		if err != nil {
			src.Close()
			return nil, fmt.Errorf("%w: zstd %s: %v", models.ErrIO, name, err)
		}
		rc := dec.IOReadCloser()
		src.closers = append(src.closers, rc)
		r = rc
	}

	src.csv = csv.NewReader(r)
	src.csv.ReuseRecord = true

	header, err := src.csv.Read()
	switch {
	case errors.Is(err, io.EOF):
		src.empty = true
	case err != nil:
		src.Close()
		return nil, src.wrapReadError(err)
	default:
		src.header = append([]string(nil), header...)
	}

	log.WithFields(logger.Fields{
		"file":        name,
		"compression": src.compression,
		"columns":     len(src.header),
	}).Debug("source opened")

	return src, nil
}

func openRaw(ctx context.Context, name string, o *options) (io.ReadCloser, error) {
	if !storage.IsS3URI(name) {
		return os.Open(name)
	}

	bucket, key, err := storage.ParseS3URI(name)
	if err != nil {
		return nil, err
	}
	client := o.s3Client
	if client == nil {
		c, err := storage.NewS3Client(ctx, o.s3Config)
		if err != nil {
			return nil, err
		}
		client = c
	}
	out, err := client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, err
	}
	return out.Body, nil
}

// Header returns the column names of the file.
func (s *Source) Header() []string {
	return s.header
}

// Name returns the path the source was opened with.
func (s *Source) Name() string {
	return s.name
}

// Next returns the next data row or io.EOF. The returned Row is only
// valid until the following call to Next.
func (s *Source) Next() (Row, error) {
	if s.empty {
		return Row{}, io.EOF
	}
	record, err := s.csv.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return Row{}, io.EOF
		}
		return Row{}, s.wrapReadError(err)
	}
	s.line++
	return Row{fields: record, Line: s.line}, nil
}

func (s *Source) wrapReadError(err error) error {
	var pe *csv.ParseError
	if errors.As(err, &pe) {
		return fmt.Errorf("%w: %s: %v", models.ErrRowDecode, s.name, err)
	}
	return fmt.Errorf("%w: read %s: %v", models.ErrIO, s.name, err)
}

// Close releases the decompressor and the underlying file or body.
func (s *Source) Close() error {
	var firstErr error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i].Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	s.closers = nil
	return firstErr
}

// Row is one data row. Line is its 1-based position after the header.
type Row struct {
	fields []string
	Line   int
}

// Field returns the value at column i, absent when empty or out of range.
func (r Row) Field(i int) (string, bool) {
	if i < 0 || i >= len(r.fields) {
		return "", false
	}
	v := strings.TrimSpace(r.fields[i])
	if v == "" {
		return "", false
	}
	return v, true
}
