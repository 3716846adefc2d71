// Package observability exposes persistence watermark metrics shared across binaries.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	activityPersistGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "stravasync",
		Subsystem: "persistence",
		Name:      "last_activity_persisted_timestamp_seconds",
		Help:      "Unix timestamp of the most recent activity upserted into Postgres.",
	})
	activityRemovedGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "stravasync",
		Subsystem: "persistence",
		Name:      "last_activity_removed_timestamp_seconds",
		Help:      "Unix timestamp of the most recent activity deleted from Postgres.",
	})
	childRowsHistogram = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "stravasync",
		Subsystem: "persistence",
		Name:      "child_rows",
		Help:      "Number of child rows written per upsert, by table.",
		Buckets:   []float64{0, 1, 5, 10, 25, 50, 100, 250},
	}, []string{"table"})
)

func init() {
	prometheus.MustRegister(activityPersistGauge, activityRemovedGauge, childRowsHistogram)
}

// RecordActivityPersisted updates the persistence watermark gauge.
func RecordActivityPersisted(ts time.Time) {
	if ts.IsZero() {
		return
	}
	activityPersistGauge.Set(float64(ts.Unix()))
}

// RecordActivityRemoved updates the delete watermark gauge.
func RecordActivityRemoved(ts time.Time) {
	if ts.IsZero() {
		return
	}
	activityRemovedGauge.Set(float64(ts.Unix()))
}

// RecordChildRows observes how many rows were written to a child table.
func RecordChildRows(table string, n int) {
	childRowsHistogram.WithLabelValues(table).Observe(float64(n))
}
