package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/spot-price-refiner/internal/config"
	"github.com/couchcryptid/spot-price-refiner/internal/domain"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Writer publishes refined records to a Kafka topic as JSON.
// It implements pipeline.RecordSink.
type Writer struct {
	writer messageWriter
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured refined topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaTopic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Writer{writer: w, logger: logger}
}

// WriteRecord publishes rec keyed by date and hour, so every version of an
// hour lands on the same partition.
func (w *Writer) WriteRecord(ctx context.Context, rec domain.ClassificationRecord) error {
	msg, err := serializeToMessage(rec)
	if err != nil {
		return err
	}
	if err := w.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("%w: publish %s: %w", domain.ErrWrite, rec.Key(), err)
	}
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals a ClassificationRecord into a Kafka message.
func serializeToMessage(rec domain.ClassificationRecord) (kafkago.Message, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("%w: serialize refined record: %w", domain.ErrWrite, err)
	}
	return kafkago.Message{
		Key:   []byte(rec.Key()),
		Value: data,
		Time:  rec.Timestamp,
		Headers: []kafkago.Header{
			{Key: "date", Value: []byte(rec.Date)},
			{Key: "hour", Value: []byte(strconv.Itoa(rec.Hour))},
			{Key: "hour_start", Value: []byte(rec.Timestamp.Format(time.RFC3339))},
		},
	}, nil
}
