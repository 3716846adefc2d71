package outbox

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/segmentio/kafka-go"
)

var producerWrites = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "stravasync",
	Subsystem: "kafka",
	Name:      "producer_messages_total",
	Help:      "Messages handed to Kafka writers, by topic and outcome.",
}, []string{"topic", "outcome"})

func init() {
	prometheus.MustRegister(producerWrites)
}

// KafkaProducer lazily manages writers per topic. It serves both the outbox dispatcher and the
// Kafka task relay.
type KafkaProducer struct {
	brokers []string
	mu      sync.Mutex
	writers map[string]*kafka.Writer
}

// NewKafkaProducer creates a KafkaProducer.
func NewKafkaProducer(brokers []string) *KafkaProducer {
	return &KafkaProducer{
		brokers: brokers,
		writers: make(map[string]*kafka.Writer),
	}
}

// WriteMessages writes messages to the given topic, creating a writer if necessary. Messages
// with equal keys land on the same partition.
func (p *KafkaProducer) WriteMessages(ctx context.Context, topic string, msgs ...kafka.Message) error {
	writer := p.writerForTopic(topic)
	if err := writer.WriteMessages(ctx, msgs...); err != nil {
		producerWrites.WithLabelValues(topic, "error").Add(float64(len(msgs)))
		return err
	}
	producerWrites.WithLabelValues(topic, "ok").Add(float64(len(msgs)))
	return nil
}

func (p *KafkaProducer) writerForTopic(topic string) *kafka.Writer {
	p.mu.Lock()
	defer p.mu.Unlock()

	if writer, ok := p.writers[topic]; ok {
		return writer
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(p.brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		Compression:  kafka.Snappy,
		BatchTimeout: 20 * time.Millisecond,
		Async:        false,
	}
	p.writers[topic] = writer
	return writer
}

// Close releases all writers.
func (p *KafkaProducer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var firstErr error
	for topic, writer := range p.writers {
		if err := writer.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(p.writers, topic)
	}
	return firstErr
}
