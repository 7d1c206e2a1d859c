// Package metrics provides the ambient Prometheus instrumentation every
// queue-backed handler in this operator is given: a reconcile counter split
// by queue/result and a reconcile-duration histogram. None of it gates
// correctness — a nil *Recorder (or the zero value) is always safe to call
// into, so tests and call sites that don't care about metrics never have to
// construct one.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Recorder records reconcile outcomes for a single named queue
// (e.g. "reconciler", "correlator", "benchmarkset"). The zero value
// is a valid no-op recorder.
type Recorder struct {
	reconcileTotal    *prometheus.CounterVec
	reconcileDuration *prometheus.HistogramVec
}

// NewRecorder builds a Recorder and registers its collectors with reg.
// Passing prometheus.DefaultRegisterer matches the usual single-process
// operator deployment; tests pass a fresh prometheus.NewRegistry() instead
// so repeated construction across test cases never double-registers.
func NewRecorder(reg prometheus.Registerer) *Recorder {
	r := &Recorder{
		reconcileTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "perftest_operator_reconcile_total",
			Help: "Total number of reconcile calls per queue and outcome.",
		}, []string{"queue", "result"}),
		reconcileDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "perftest_operator_reconcile_duration_seconds",
			Help:    "Time spent in a single reconcile call, per queue.",
			Buckets: prometheus.DefBuckets,
		}, []string{"queue"}),
	}
	reg.MustRegister(r.reconcileTotal, r.reconcileDuration)
	return r
}

// outcome classifies a reconcile result the same way the reconciler's own
// toResult helper does: success, a requeue (transient), or an error.
func outcome(requeue bool, err error) string {
	switch {
	case err != nil:
		return "error"
	case requeue:
		return "requeue"
	default:
		return "ok"
	}
}

// Observe records one reconcile call against queue. Safe to call on a nil
// Recorder, so handlers never need a presence check at every call site.
func (r *Recorder) Observe(queue string, start time.Time, requeue bool, err error) {
	if r == nil {
		return
	}
	r.reconcileTotal.WithLabelValues(queue, outcome(requeue, err)).Inc()
	r.reconcileDuration.WithLabelValues(queue).Observe(time.Since(start).Seconds())
}
