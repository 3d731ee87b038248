// Package metrics exposes Prometheus instrumentation for client
// attempts. The classification core stays observability-free; clients
// record here after each settlement.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/verdictlabs/verdict"
)

var (
	// AttemptsTotal counts attempts per operation kind.
	AttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "verdict_attempts_total",
			Help: "Total number of client attempts",
		},
		[]string{"kind"},
	)

	// FailuresTotal counts classified failures per operation kind,
	// failure tier and error kind.
	FailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "verdict_failures_total",
			Help: "Total number of classified failures",
		},
		[]string{"kind", "tier", "error_kind"},
	)

	// AttemptDuration tracks wall-clock attempt duration.
	AttemptDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "verdict_attempt_duration_seconds",
			Help:    "Attempt duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"kind"},
	)
)

// Observe records one settled attempt.
func Observe(kind string, err *verdict.Error, d time.Duration) {
	AttemptsTotal.WithLabelValues(kind).Inc()
	AttemptDuration.WithLabelValues(kind).Observe(d.Seconds())
	if err != nil {
		FailuresTotal.WithLabelValues(kind, err.Tier.String(), string(err.Kind)).Inc()
	}
}
