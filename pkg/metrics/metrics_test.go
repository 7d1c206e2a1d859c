package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func counterValue(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, family := range families {
		if family.GetName() != name {
			continue
		}
		for _, metric := range family.GetMetric() {
			if labelsMatch(metric.GetLabel(), labels) {
				return metric.GetCounter().GetValue()
			}
		}
	}
	t.Fatalf("no counter %s with labels %v found", name, labels)
	return 0
}

func labelsMatch(pairs []*dto.LabelPair, want map[string]string) bool {
	if len(pairs) != len(want) {
		return false
	}
	for _, pair := range pairs {
		if want[pair.GetName()] != pair.GetValue() {
			return false
		}
	}
	return true
}

func TestObserve_RecordsSuccessOutcome(t *testing.T) {
	reg := prometheus.NewRegistry()
	recorder := NewRecorder(reg)

	recorder.Observe("reconciler", time.Now(), false, nil)

	assert.Equal(t, float64(1), counterValue(t, reg, "perftest_operator_reconcile_total", map[string]string{"queue": "reconciler", "result": "ok"}))
}

func TestObserve_RecordsRequeueOutcome(t *testing.T) {
	reg := prometheus.NewRegistry()
	recorder := NewRecorder(reg)

	recorder.Observe("correlator", time.Now(), true, nil)

	assert.Equal(t, float64(1), counterValue(t, reg, "perftest_operator_reconcile_total", map[string]string{"queue": "correlator", "result": "requeue"}))
}

func TestObserve_RecordsErrorOutcomeEvenWhenRequeueIsAlsoSet(t *testing.T) {
	reg := prometheus.NewRegistry()
	recorder := NewRecorder(reg)

	recorder.Observe("benchmarkset", time.Now(), true, errors.New("boom"))

	assert.Equal(t, float64(1), counterValue(t, reg, "perftest_operator_reconcile_total", map[string]string{"queue": "benchmarkset", "result": "error"}))
}

func TestObserve_NilRecorderIsANoOp(t *testing.T) {
	var recorder *Recorder

	assert.NotPanics(t, func() {
		recorder.Observe("reconciler", time.Now(), false, nil)
	})
}

func TestNewRecorder_AccumulatesAcrossMultipleObservations(t *testing.T) {
	reg := prometheus.NewRegistry()
	recorder := NewRecorder(reg)

	recorder.Observe("reconciler", time.Now(), false, nil)
	recorder.Observe("reconciler", time.Now(), false, nil)
	recorder.Observe("reconciler", time.Now(), false, errors.New("boom"))

	assert.Equal(t, float64(2), counterValue(t, reg, "perftest_operator_reconcile_total", map[string]string{"queue": "reconciler", "result": "ok"}))
	assert.Equal(t, float64(1), counterValue(t, reg, "perftest_operator_reconcile_total", map[string]string{"queue": "reconciler", "result": "error"}))
}
