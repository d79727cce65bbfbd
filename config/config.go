package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Load kinds accepted by loader.kind.
const (
	KindDeltas             = "deltas"
	KindDepth10Snapshot5   = "depth10_snapshot5"
	KindDepth10Snapshot25  = "depth10_snapshot25"
	KindQuotes             = "quotes"
	KindTrades             = "trades"
	defaultWriterBatchSize = 1_000_000
	defaultKafkaBatchSize  = 1000
	defaultReportInterval  = 30 * time.Second
	defaultTimeFormat      = "{year}/{month}/{day}"
	maxPrecision           = 9
)

type Config struct {
	Tardisflow TardisflowConfig `yaml:"tardisflow"`
	Loader     LoaderConfig     `yaml:"loader"`
	Source     SourceConfig     `yaml:"source"`
	Writer     WriterConfig     `yaml:"writer"`
	Storage    StorageConfig    `yaml:"storage"`
	Logging    LoggingConfig    `yaml:"logging"`
	Metrics    MetricsConfig    `yaml:"metrics"`
}

type TardisflowConfig struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
}

type LoaderConfig struct {
	Kind           string `yaml:"kind"`
	File           string `yaml:"file"`
	PricePrecision uint8  `yaml:"price_precision"`
	SizePrecision  uint8  `yaml:"size_precision"`
	Limit          int    `yaml:"limit"`
}

type SourceConfig struct {
	S3 S3Config `yaml:"s3"`
}

type WriterConfig struct {
	OutputDir        string             `yaml:"output_dir"`
	BatchSize        int                `yaml:"batch_size"`
	Compression      string             `yaml:"compression"`
	UploadsPerSecond float64            `yaml:"uploads_per_second"`
	Partitioning     PartitioningConfig `yaml:"partitioning"`
}

type PartitioningConfig struct {
	TimeFormat     string   `yaml:"time_format"`
	AdditionalKeys []string `yaml:"additional_keys"`
}

type StorageConfig struct {
	S3    S3Config    `yaml:"s3"`
	Kafka KafkaConfig `yaml:"kafka"`
}

type S3Config struct {
	Enabled         bool   `yaml:"enabled"`
	Bucket          string `yaml:"bucket"`
	Region          string `yaml:"region"`
	Endpoint        string `yaml:"endpoint"`
	PathStyle       bool   `yaml:"path_style"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
}

type KafkaConfig struct {
	Enabled   bool     `yaml:"enabled"`
	Brokers   []string `yaml:"brokers"`
	Topic     string   `yaml:"topic"`
	BatchSize int      `yaml:"batch_size"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
	MaxAge int    `yaml:"max_age"`
}

type MetricsConfig struct {
	ReportInterval time.Duration    `yaml:"report_interval"`
	CloudWatch     CloudWatchConfig `yaml:"cloudwatch"`
}

type CloudWatchConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Region    string `yaml:"region"`
	Namespace string `yaml:"namespace"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Tardisflow: TardisflowConfig{Name: "tardisflow", Version: "dev"},
		Loader:     LoaderConfig{Kind: KindDeltas},
		Writer: WriterConfig{
			OutputDir:    "output",
			BatchSize:    defaultWriterBatchSize,
			Compression:  "snappy",
			Partitioning: PartitioningConfig{TimeFormat: defaultTimeFormat},
		},
		Storage: StorageConfig{
			Kafka: KafkaConfig{BatchSize: defaultKafkaBatchSize},
		},
		Logging: LoggingConfig{Level: "info", Format: "json", Output: "stdout"},
		Metrics: MetricsConfig{ReportInterval: defaultReportInterval},
	}
}

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyEnvOverrides(config)

	config.Storage.S3.Bucket = strings.TrimSpace(config.Storage.S3.Bucket)
	config.Loader.Kind = strings.ToLower(strings.TrimSpace(config.Loader.Kind))

	if err := Validate(config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

func applyEnvOverrides(config *Config) {
	for _, s3cfg := range []*S3Config{&config.Storage.S3, &config.Source.S3} {
		if v := os.Getenv("AWS_ACCESS_KEY_ID"); v != "" {
			s3cfg.AccessKeyID = strings.TrimSpace(v)
		}
		if v := os.Getenv("AWS_SECRET_ACCESS_KEY"); v != "" {
			s3cfg.SecretAccessKey = strings.TrimSpace(v)
		}
		if v := os.Getenv("AWS_REGION"); v != "" {
			s3cfg.Region = strings.TrimSpace(v)
		}
	}
	if v := os.Getenv("S3_BUCKET"); v != "" {
		config.Storage.S3.Bucket = strings.TrimSpace(v)
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		var brokers []string
		for _, b := range strings.Split(v, ",") {
			if b = strings.TrimSpace(b); b != "" {
				brokers = append(brokers, b)
			}
		}
		config.Storage.Kafka.Brokers = brokers
	}
}

// Validate checks a configuration after defaults, file values and
// environment overrides have been applied. main calls it again once
// command line flags are merged.
func Validate(cfg *Config) error {
	if cfg.Tardisflow.Name == "" {
		return fmt.Errorf("tardisflow.name is required")
	}

	if cfg.Tardisflow.Version == "" {
		return fmt.Errorf("tardisflow.version is required")
	}

	if !IsValidKind(cfg.Loader.Kind) {
		return fmt.Errorf("loader.kind '%s' is invalid", cfg.Loader.Kind)
	}
	if cfg.Loader.PricePrecision > maxPrecision {
		return fmt.Errorf("loader.price_precision must be between 0 and %d", maxPrecision)
	}
	if cfg.Loader.SizePrecision > maxPrecision {
		return fmt.Errorf("loader.size_precision must be between 0 and %d", maxPrecision)
	}
	if cfg.Loader.Limit < 0 {
		return fmt.Errorf("loader.limit must not be negative")
	}

	if cfg.Writer.BatchSize <= 0 {
		return fmt.Errorf("writer.batch_size must be greater than 0")
	}
	if cfg.Writer.UploadsPerSecond < 0 {
		return fmt.Errorf("writer.uploads_per_second must not be negative")
	}
	switch cfg.Writer.Compression {
	case "snappy", "gzip", "zstd", "none", "":
	default:
		return fmt.Errorf("writer.compression '%s' is invalid", cfg.Writer.Compression)
	}

	if cfg.Storage.S3.Enabled {
		if cfg.Storage.S3.Bucket == "" {
			return fmt.Errorf("storage.s3.bucket is required when S3 is enabled")
		}
		if cfg.Storage.S3.Region == "" {
			return fmt.Errorf("storage.s3.region is required when S3 is enabled")
		}
		if !isValidS3Bucket(cfg.Storage.S3.Bucket) {
			return fmt.Errorf("storage.s3.bucket '%s' is invalid", cfg.Storage.S3.Bucket)
		}
	} else if cfg.Writer.OutputDir == "" && !cfg.Storage.Kafka.Enabled {
		return fmt.Errorf("writer.output_dir is required when S3 and Kafka are disabled")
	}

	if cfg.Storage.Kafka.Enabled {
		if len(cfg.Storage.Kafka.Brokers) == 0 {
			return fmt.Errorf("storage.kafka.brokers is required when Kafka is enabled")
		}
		if cfg.Storage.Kafka.Topic == "" {
			return fmt.Errorf("storage.kafka.topic is required when Kafka is enabled")
		}
		if cfg.Storage.Kafka.BatchSize <= 0 {
			return fmt.Errorf("storage.kafka.batch_size must be greater than 0")
		}
	}

	return nil
}

// IsValidKind reports whether kind names one of the load operations.
func IsValidKind(kind string) bool {
	switch kind {
	case KindDeltas, KindDepth10Snapshot5, KindDepth10Snapshot25, KindQuotes, KindTrades:
		return true
	default:
		return false
	}
}

var s3BucketRegexp = regexp.MustCompile(`^[a-z0-9][a-z0-9.-]{1,61}[a-z0-9]$`)

func isValidS3Bucket(name string) bool {
	if len(name) < 3 || len(name) > 63 {
		return false
	}
	if strings.Contains(name, "..") || strings.HasPrefix(name, ".") || strings.HasSuffix(name, ".") {
		return false
	}
	return s3BucketRegexp.MatchString(name)
}
