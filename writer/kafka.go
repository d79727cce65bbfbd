package writer

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	kafka "github.com/segmentio/kafka-go"

	appconfig "tardisflow/config"
	"tardisflow/logger"
	"tardisflow/models"
)

// messageWriter is the part of *kafka.Writer used by KafkaWriter.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// kafkaEnvelope is the JSON value of every published message.
type kafkaEnvelope struct {
	Type  string      `json:"type"`
	Event interface{} `json:"event"`
}

// KafkaWriter publishes events as JSON keyed by instrument id, so all
// events of one instrument land on the same partition in order.
type KafkaWriter struct {
	writer    messageWriter
	batchSize int
	pending   []kafka.Message
	published int
	log       *logger.Log
}

func NewKafkaWriter(cfg *appconfig.Config) (*KafkaWriter, error) {
	if len(cfg.Storage.Kafka.Brokers) == 0 {
		return nil, fmt.Errorf("kafka brokers not configured")
	}
	log := logger.GetLogger()
	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Storage.Kafka.Brokers...),
		Topic:        cfg.Storage.Kafka.Topic,
		Balancer:     &kafka.Hash{},
		BatchSize:    cfg.Storage.Kafka.BatchSize,
		BatchTimeout: 50 * time.Millisecond,
		RequiredAcks: kafka.RequireAll,
		ErrorLogger: kafka.LoggerFunc(func(msg string, args ...interface{}) {
			log.WithComponent("kafka_writer").Warn(fmt.Sprintf(msg, args...))
		}),
	}
	kw := newKafkaWriter(w, cfg.Storage.Kafka.BatchSize)
	kw.log.WithComponent("kafka_writer").WithFields(logger.Fields{
		"brokers": cfg.Storage.Kafka.Brokers,
		"topic":   cfg.Storage.Kafka.Topic,
	}).Debug("kafka writer initialized")
	return kw, nil
}

func newKafkaWriter(w messageWriter, batchSize int) *KafkaWriter {
	if batchSize < 1 {
		batchSize = 1
	}
	return &KafkaWriter{
		writer:    w,
		batchSize: batchSize,
		pending:   make([]kafka.Message, 0, batchSize),
		log:       logger.GetLogger(),
	}
}

func (kw *KafkaWriter) WriteDelta(ctx context.Context, d models.OrderBookDelta) error {
	return kw.publish(ctx, d.InstrumentID, "order_book_delta", d)
}

func (kw *KafkaWriter) WriteDepth10(ctx context.Context, d models.OrderBookDepth10) error {
	return kw.publish(ctx, d.InstrumentID, "order_book_depth10", d)
}

func (kw *KafkaWriter) WriteQuote(ctx context.Context, q models.QuoteTick) error {
	return kw.publish(ctx, q.InstrumentID, "quote_tick", q)
}

func (kw *KafkaWriter) WriteTrade(ctx context.Context, t models.TradeTick) error {
	return kw.publish(ctx, t.InstrumentID, "trade_tick", t)
}

func (kw *KafkaWriter) publish(ctx context.Context, id models.InstrumentID, typ string, event interface{}) error {
	data, err := json.Marshal(kafkaEnvelope{Type: typ, Event: event})
	if err != nil {
		return fmt.Errorf("marshal %s: %w", typ, err)
	}
	kw.pending = append(kw.pending, kafka.Message{
		Key:   []byte(id.String()),
		Value: data,
	})
	if len(kw.pending) >= kw.batchSize {
		return kw.Flush(ctx)
	}
	return nil
}

// Flush writes all pending messages.
func (kw *KafkaWriter) Flush(ctx context.Context) error {
	if len(kw.pending) == 0 {
		return nil
	}
	if err := kw.writer.WriteMessages(ctx, kw.pending...); err != nil {
		kw.log.WithComponent("kafka_writer").WithError(err).Warn("failed to write messages")
		return fmt.Errorf("kafka write: %w", err)
	}
	kw.published += len(kw.pending)
	logger.AddKafkaMessages(len(kw.pending))
	kw.log.WithComponent("kafka_writer").WithFields(logger.Fields{
		"records": len(kw.pending),
	}).Debug("batch written to kafka")
	kw.pending = kw.pending[:0]
	return nil
}

// Published returns the number of messages acknowledged so far.
func (kw *KafkaWriter) Published() int {
	return kw.published
}

// Close flushes pending messages and closes the underlying writer.
func (kw *KafkaWriter) Close(ctx context.Context) error {
	flushErr := kw.Flush(ctx)
	if err := kw.writer.Close(); err != nil && flushErr == nil {
		return err
	}
	return flushErr
}
