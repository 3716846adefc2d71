package queue

import "github.com/prometheus/client_golang/prometheus"

var (
	enqueueCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "stravasync",
		Subsystem: "queue",
		Name:      "enqueued_total",
		Help:      "Tasks handed to the queue, by backend and outcome.",
	}, []string{"backend", "outcome"})

	dedupeCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "stravasync",
		Subsystem: "webhook",
		Name:      "dedupe_checks_total",
		Help:      "Webhook deduplication checks, by result.",
	}, []string{"result"})
)

func init() {
	prometheus.MustRegister(enqueueCounter, dedupeCounter)
}

func recordEnqueue(backend string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	enqueueCounter.WithLabelValues(backend, outcome).Inc()
}
