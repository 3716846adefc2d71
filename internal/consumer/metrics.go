package consumer

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	processedCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "stravasync",
		Subsystem: "consumer",
		Name:      "tasks_processed_total",
		Help:      "Number of Kafka task records successfully handled.",
	}, []string{"topic", "aspect_type"})

	handlerErrorCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "stravasync",
		Subsystem: "consumer",
		Name:      "handler_errors_total",
		Help:      "Number of task failures grouped by topic and result code.",
	}, []string{"topic", "code"})

	decodeErrorCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "stravasync",
		Subsystem: "consumer",
		Name:      "decode_errors_total",
		Help:      "Number of records rejected by the task contract per topic.",
	}, []string{"topic"})

	abandonedCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "stravasync",
		Subsystem: "consumer",
		Name:      "tasks_abandoned_total",
		Help:      "Number of task records committed after exhausting their delivery attempts.",
	}, []string{"topic", "code"})

	restartCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "stravasync",
		Subsystem: "consumer",
		Name:      "reader_restarts_total",
		Help:      "Number of times the reader was reopened to redeliver a failed task.",
	})

	lastMessageGauge = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "stravasync",
		Subsystem: "consumer",
		Name:      "last_message_timestamp_seconds",
		Help:      "Unix timestamp of the most recent successfully processed record per topic.",
	}, []string{"topic"})
)

func init() {
	prometheus.MustRegister(processedCounter, handlerErrorCounter, decodeErrorCounter, abandonedCounter, restartCounter, lastMessageGauge)
}

func recordProcessed(msg Message) {
	processedCounter.WithLabelValues(msg.Topic, msg.Task.AspectType).Inc()
	if !msg.Timestamp.IsZero() {
		lastMessageGauge.WithLabelValues(msg.Topic).Set(float64(msg.Timestamp.Unix()))
	}
}

func recordHandlerError(msg Message, code string) {
	handlerErrorCounter.WithLabelValues(msg.Topic, code).Inc()
}

func recordAbandoned(msg Message, code string) {
	abandonedCounter.WithLabelValues(msg.Topic, code).Inc()
}

func recordDecodeError(topic string) {
	decodeErrorCounter.WithLabelValues(topic).Inc()
}

func recordRestart() {
	restartCounter.Inc()
}
