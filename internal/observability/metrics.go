package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	reconcileRuns = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "habitsync",
		Subsystem: "reconcile",
		Name:      "runs_total",
		Help:      "Reconciliation runs by outcome.",
	}, []string{"outcome"})
	backfilledDays = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "habitsync",
		Subsystem: "reconcile",
		Name:      "backfilled_days_total",
		Help:      "Daily stat rows written for elapsed calendar days.",
	})
	remoteWriteFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "habitsync",
		Subsystem: "remote",
		Name:      "write_failures_total",
		Help:      "Remote store writes that failed and were surfaced or skipped over.",
	})
	lastReconcileGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "habitsync",
		Subsystem: "reconcile",
		Name:      "last_completed_timestamp_seconds",
		Help:      "Unix timestamp of the most recent completed reconciliation run.",
	})
)

func init() {
	prometheus.MustRegister(reconcileRuns, backfilledDays, remoteWriteFailures, lastReconcileGauge)
}

// Run outcomes recorded against the reconcile run counter.
const (
	OutcomeSuccess = "success"
	OutcomePartial = "partial"
	OutcomeFailed  = "failed"
)

// RecordReconcileRun counts a finished run.
func RecordReconcileRun(outcome string, finished time.Time) {
	reconcileRuns.WithLabelValues(outcome).Inc()
	if !finished.IsZero() {
		lastReconcileGauge.Set(float64(finished.Unix()))
	}
}

// RecordBackfilledDays counts stat rows written during backfill.
func RecordBackfilledDays(n int) {
	if n > 0 {
		backfilledDays.Add(float64(n))
	}
}

// RecordRemoteWriteFailure counts one failed remote write.
func RecordRemoteWriteFailure() {
	remoteWriteFailures.Inc()
}
