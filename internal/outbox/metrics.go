package outbox

import "github.com/prometheus/client_golang/prometheus"

// Event outcomes recorded per dispatched outbox row.
const (
	outcomeDelivered     = "delivered"
	outcomeRejected      = "rejected"
	outcomePublishFailed = "publish_failed"
)

var (
	eventsCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "stravasync",
		Subsystem: "outbox",
		Name:      "events_total",
		Help:      "Outbox events handled by the dispatcher, by event type and outcome.",
	}, []string{"event_type", "outcome"})

	batchDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "stravasync",
		Subsystem: "outbox",
		Name:      "batch_duration_seconds",
		Help:      "Time spent claiming, publishing and marking one outbox batch.",
		Buckets:   prometheus.ExponentialBuckets(0.01, 2, 10),
	})

	batchSize = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "stravasync",
		Subsystem: "outbox",
		Name:      "batch_size",
		Help:      "Rows claimed per non-empty outbox batch.",
		Buckets:   []float64{1, 2, 5, 10, 25, 50, 100},
	})

	dlqCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "stravasync",
		Subsystem: "outbox",
		Name:      "events_dlq_total",
		Help:      "Outbox events written to the dead-letter table, by topic and event type.",
	}, []string{"topic", "event_type"})
)

func init() {
	prometheus.MustRegister(eventsCounter, batchDuration, batchSize, dlqCounter)
}

func recordEvents(messages []Message, outcome string) {
	for _, msg := range messages {
		eventsCounter.WithLabelValues(msg.EventType, outcome).Inc()
	}
}

func recordDeadLettered(msg Message) {
	dlqCounter.WithLabelValues(msg.Topic, msg.EventType).Inc()
}
