package api

import "github.com/prometheus/client_golang/prometheus"

var (
	webhookEvents = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "stravasync",
		Subsystem: "webhook",
		Name:      "events_total",
		Help:      "Webhook events received, by outcome code.",
	}, []string{"outcome"})

	handshakes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "stravasync",
		Subsystem: "webhook",
		Name:      "handshakes_total",
		Help:      "Subscription handshakes, by outcome.",
	}, []string{"outcome"})

	tasks = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "stravasync",
		Subsystem: "tasks",
		Name:      "processed_total",
		Help:      "Task callbacks handled, by result code.",
	}, []string{"code"})
)

func init() {
	prometheus.MustRegister(webhookEvents, handshakes, tasks)
}

func recordWebhookEvent(outcome string) {
	webhookEvents.WithLabelValues(outcome).Inc()
}

func recordHandshake(outcome string) {
	handshakes.WithLabelValues(outcome).Inc()
}

func recordTask(code string) {
	tasks.WithLabelValues(code).Inc()
}
