package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"tardisflow/config"
	"tardisflow/logger"
	"tardisflow/models"
	"tardisflow/processor"
	"tardisflow/reader"
	"tardisflow/writer"
)

func main() {
	log := logger.GetLogger()

	// Load environment variables from .env if present
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.WithError(err).Warn("Error loading .env file")
	}

	configPath := flag.String("config", config.DefaultConfigPath, "Path to configuration file")
	file := flag.String("file", "", "Tardis CSV file, local path or s3://bucket/key")
	kind := flag.String("kind", "", "Load kind: deltas, depth10_snapshot5, depth10_snapshot25, quotes, trades")
	pricePrecision := flag.Int("price-precision", -1, "Price precision (0-9)")
	sizePrecision := flag.Int("size-precision", -1, "Size precision (0-9)")
	limit := flag.Int("limit", -1, "Maximum number of events to load, 0 for no limit")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.WithError(err).Error("Failed to load configuration")
		os.Exit(1)
	}
	if err := applyFlags(cfg, loaderFlags{
		file:           *file,
		kind:           *kind,
		pricePrecision: *pricePrecision,
		sizePrecision:  *sizePrecision,
		limit:          *limit,
	}); err != nil {
		log.WithError(err).Error("Invalid command line flags")
		os.Exit(1)
	}
	if err := config.Validate(cfg); err != nil {
		log.WithError(err).Error("Invalid configuration")
		os.Exit(1)
	}
	if cfg.Loader.File == "" {
		log.Error("loader.file or -file is required")
		os.Exit(1)
	}

	if err := log.Configure(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output, cfg.Logging.MaxAge); err != nil {
		log.WithError(err).Error("Failed to configure logger")
		os.Exit(1)
	}

	log.WithFields(logger.Fields{
		"service": cfg.Tardisflow.Name,
		"version": cfg.Tardisflow.Version,
		"env":     config.AppEnvironment(),
	}).Info("starting tardisflow")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if strings.ToLower(cfg.Logging.Level) == logger.ReportLevel {
		logger.StartReport(ctx, log, cfg.Metrics.ReportInterval)
	}
	if cfg.Metrics.CloudWatch.Enabled {
		logger.InitCloudWatch(ctx, cfg.Metrics.CloudWatch.Region, cfg.Metrics.CloudWatch.Namespace)
	}

	start := time.Now()
	events, err := run(ctx, cfg)
	entry := log.WithComponent("main").WithFields(logger.Fields{
		"kind":     cfg.Loader.Kind,
		"file":     cfg.Loader.File,
		"events":   events,
		"duration": time.Since(start).String(),
	})
	if err != nil {
		var rowErr *models.RowError
		if errors.As(err, &rowErr) {
			entry = entry.WithFields(logger.Fields{"row": rowErr.Row})
		}
		entry.WithError(err).Error("load failed")
		os.Exit(1)
	}
	entry.Info("tardisflow finished")
}

// loaderFlags holds the command line overrides. Negative numbers mean the
// flag was not given.
type loaderFlags struct {
	file           string
	kind           string
	pricePrecision int
	sizePrecision  int
	limit          int
}

func applyFlags(cfg *config.Config, f loaderFlags) error {
	if f.file != "" {
		cfg.Loader.File = f.file
	}
	if f.kind != "" {
		cfg.Loader.Kind = strings.ToLower(strings.TrimSpace(f.kind))
	}
	// checked before narrowing to uint8 so large values cannot wrap
	if f.pricePrecision > models.FixedPrecision {
		return fmt.Errorf("-price-precision must be between 0 and %d, got %d", models.FixedPrecision, f.pricePrecision)
	}
	if f.sizePrecision > models.FixedPrecision {
		return fmt.Errorf("-size-precision must be between 0 and %d, got %d", models.FixedPrecision, f.sizePrecision)
	}
	if f.pricePrecision >= 0 {
		cfg.Loader.PricePrecision = uint8(f.pricePrecision)
	}
	if f.sizePrecision >= 0 {
		cfg.Loader.SizePrecision = uint8(f.sizePrecision)
	}
	if f.limit >= 0 {
		cfg.Loader.Limit = f.limit
	}
	return nil
}

// loadConfig reads the config file when present. Outside production a
// missing file at the default location falls back to defaults so the CLI
// flags alone suffice.
func loadConfig(path string) (*config.Config, error) {
	resolved := config.ResolveConfigPath(path)
	if _, err := os.Stat(resolved); err != nil {
		if os.IsNotExist(err) && path == config.DefaultConfigPath && !config.IsProductionLike(config.AppEnvironment()) {
			return config.Default(), nil
		}
		return nil, err
	}
	return config.LoadConfig(resolved)
}

func newSinks(ctx context.Context, cfg *config.Config) (writer.MultiSink, error) {
	var sinks writer.MultiSink
	if cfg.Storage.S3.Enabled || cfg.Writer.OutputDir != "" {
		pw, err := writer.NewParquetWriter(ctx, cfg)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, pw)
	}
	if cfg.Storage.Kafka.Enabled {
		kw, err := writer.NewKafkaWriter(cfg)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, kw)
	}
	return sinks, nil
}

// run loads cfg.Loader.File and hands every event to the configured sinks.
func run(ctx context.Context, cfg *config.Config) (int, error) {
	sinks, err := newSinks(ctx, cfg)
	if err != nil {
		return 0, err
	}

	lc := cfg.Loader
	opts := []reader.Option{reader.WithS3Config(cfg.Source.S3)}
	pp, sp := lc.PricePrecision, lc.SizePrecision

	var n int
	switch lc.Kind {
	case config.KindDeltas:
		n, err = processor.StreamDeltas(ctx, lc.File, pp, sp, lc.Limit, func(d models.OrderBookDelta) error {
			return sinks.WriteDelta(ctx, d)
		}, opts...)
	case config.KindDepth10Snapshot5:
		n, err = processor.StreamDepth10FromSnapshot5(ctx, lc.File, pp, sp, lc.Limit, func(d models.OrderBookDepth10) error {
			return sinks.WriteDepth10(ctx, d)
		}, opts...)
	case config.KindDepth10Snapshot25:
		n, err = processor.StreamDepth10FromSnapshot25(ctx, lc.File, pp, sp, lc.Limit, func(d models.OrderBookDepth10) error {
			return sinks.WriteDepth10(ctx, d)
		}, opts...)
	case config.KindQuotes:
		n, err = processor.StreamQuotes(ctx, lc.File, pp, sp, lc.Limit, func(q models.QuoteTick) error {
			return sinks.WriteQuote(ctx, q)
		}, opts...)
	case config.KindTrades:
		n, err = processor.StreamTrades(ctx, lc.File, pp, sp, lc.Limit, func(t models.TradeTick) error {
			return sinks.WriteTrade(ctx, t)
		}, opts...)
	default:
		err = fmt.Errorf("unknown loader kind %q", lc.Kind)
	}

	// Sinks are closed on a fresh context so buffered parts still land
	// after a shutdown signal.
	closeCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if cerr := sinks.Close(closeCtx); cerr != nil {
		err = errors.Join(err, fmt.Errorf("close sinks: %w", cerr))
	}
	return n, err
}
