package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"example.com/stravasync/internal/config"
	"example.com/stravasync/internal/domain"
)

// HeaderMessageID carries the receipt id on every task record.
const HeaderMessageID = "message_id"

// MessageWriter is satisfied by outbox.KafkaProducer.
type MessageWriter interface {
	WriteMessages(ctx context.Context, topic string, msgs ...kafka.Message) error
}

// KafkaRelay publishes tasks to a Kafka topic consumed by cmd/consumer. Records are keyed by
// object id so events for one activity stay ordered.
type KafkaRelay struct {
	writer MessageWriter
	topic  string
	logger *slog.Logger
}

// NewKafkaRelay constructs a KafkaRelay.
func NewKafkaRelay(writer MessageWriter, topic string, log *slog.Logger) *KafkaRelay {
	if log == nil {
		log = slog.Default()
	}
	return &KafkaRelay{writer: writer, topic: topic, logger: log}
}

// Enqueue writes task to the topic and returns the generated message id.
func (r *KafkaRelay) Enqueue(ctx context.Context, task domain.QueuedTask) (id string, err error) {
	defer func() { recordEnqueue(config.QueueBackendKafka, err) }()

	value, err := json.Marshal(task)
	if err != nil {
		return "", err
	}

	id = uuid.NewString()
	msg := kafka.Message{
		Key:   []byte(strconv.FormatInt(task.ObjectID, 10)),
		Value: value,
		Headers: []kafka.Header{
			{Key: HeaderMessageID, Value: []byte(id)},
		},
		Time: time.Now().UTC(),
	}
	if err := r.writer.WriteMessages(ctx, r.topic, msg); err != nil {
		r.logger.WarnContext(ctx, "task publish failed", "topic", r.topic, "error", err)
		return "", fmt.Errorf("write task to %s: %w", r.topic, err)
	}
	return id, nil
}
