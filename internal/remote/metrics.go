package remote

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	callCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "stravasync",
		Subsystem: "remote",
		Name:      "calls_total",
		Help:      "Outbound HTTP calls grouped by target host and outcome.",
	}, []string{"target", "outcome"})

	callDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "stravasync",
		Subsystem: "remote",
		Name:      "call_duration_seconds",
		Help:      "Latency of outbound HTTP calls including body decoding.",
		Buckets:   prometheus.ExponentialBuckets(0.01, 2, 10),
	}, []string{"target"})
)

func init() {
	prometheus.MustRegister(callCounter, callDuration)
}

func recordCall(target, outcome string, start time.Time) {
	callCounter.WithLabelValues(target, outcome).Inc()
	callDuration.WithLabelValues(target).Observe(time.Since(start).Seconds())
}
