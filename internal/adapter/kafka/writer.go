package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/couchcryptid/traffic-count-etl/internal/config"
	"github.com/couchcryptid/traffic-count-etl/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
)

// Topics names the destination topic of each kind of message.
type Topics struct {
	Class   string
	Speed   string
	Volume  string
	Bicycle string
	Warning string
}

// Writer publishes binned counts and import log entries to Kafka.
// It implements pipeline.BatchLoader and pipeline.WarningSink.
type Writer struct {
	writer *kafkago.Writer
	topics Topics
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured count topics.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr: kafkago.TCP(cfg.KafkaBrokers...),
		// Keyed by record number so every row of a count lands on one partition.
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Writer{writer: w, topics: TopicsFrom(cfg), logger: logger}
}

// TopicsFrom reads the topic names from the configuration.
func TopicsFrom(cfg *config.Config) Topics {
	return Topics{
		Class:   cfg.KafkaClassTopic,
		Speed:   cfg.KafkaSpeedTopic,
		Volume:  cfg.KafkaVolumeTopic,
		Bicycle: cfg.KafkaBicycleTopic,
		Warning: cfg.KafkaWarningTopic,
	}
}

// LoadBatch publishes every row of the batch in a single WriteMessages call.
func (w *Writer) LoadBatch(ctx context.Context, batch domain.CountBatch) error {
	msgs, err := batchMessages(w.topics, batch, domain.Now())
	if err != nil {
		return err
	}
	if len(msgs) == 0 {
		return nil
	}
	if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("publish count %d: %w", batch.RecordNum(), err)
	}
	w.logger.Debug("published count", "record_num", batch.RecordNum(), "messages", len(msgs))
	return nil
}

// RecordWarnings publishes import log entries to the warning topic.
func (w *Writer) RecordWarnings(ctx context.Context, warnings []domain.Warning) error {
	if len(warnings) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(warnings))
	for i := range warnings {
		msg, err := serializeWarning(w.topics.Warning, warnings[i])
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("publish warnings: %w", err)
	}
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// batchMessages converts each row of a batch into a message on its kind's topic.
func batchMessages(topics Topics, batch domain.CountBatch, processedAt time.Time) ([]kafkago.Message, error) {
	n := len(batch.ClassCounts) + len(batch.SpeedCounts) + len(batch.VolumeCounts) + len(batch.BicycleCounts)
	msgs := make([]kafkago.Message, 0, n)

	add := func(topic, kind string, row any) error {
		msg, err := serializeRow(topic, kind, batch.Header, row, processedAt)
		if err != nil {
			return err
		}
		msgs = append(msgs, msg)
		return nil
	}

	for i := range batch.ClassCounts {
		if err := add(topics.Class, "class", batch.ClassCounts[i]); err != nil {
			return nil, err
		}
	}
	for i := range batch.SpeedCounts {
		if err := add(topics.Speed, "speed", batch.SpeedCounts[i]); err != nil {
			return nil, err
		}
	}
	for i := range batch.VolumeCounts {
		if err := add(topics.Volume, "volume", batch.VolumeCounts[i]); err != nil {
			return nil, err
		}
	}
	for i := range batch.BicycleCounts {
		if err := add(topics.Bicycle, "bicycle", batch.BicycleCounts[i]); err != nil {
			return nil, err
		}
	}
	return msgs, nil
}

// serializeRow marshals one aggregate row into a Kafka message keyed by
// record number.
func serializeRow(topic, kind string, header domain.CountHeader, row any, processedAt time.Time) (kafkago.Message, error) {
	data, err := json.Marshal(row)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize %s row of count %d: %w", kind, header.RecordNum, err)
	}
	return kafkago.Message{
		Topic: topic,
		Key:   recordKey(header.RecordNum),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "kind", Value: []byte(kind)},
			{Key: "count_type", Value: []byte(header.Type)},
			{Key: "processed_at", Value: []byte(processedAt.Format(time.RFC3339))},
		},
	}, nil
}

// serializeWarning marshals an import log entry into a Kafka message.
func serializeWarning(topic string, w domain.Warning) (kafkago.Message, error) {
	data, err := json.Marshal(w)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize warning for count %d: %w", w.RecordNum, err)
	}
	return kafkago.Message{
		Topic: topic,
		Key:   recordKey(w.RecordNum),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "level", Value: []byte(w.Level.String())},
			{Key: "rule", Value: []byte(w.Rule)},
		},
	}, nil
}

func recordKey(recordNum int) []byte {
	return []byte(strconv.Itoa(recordNum))
}
