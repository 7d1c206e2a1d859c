package fio

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stackhpc/perftest-operator/pkg/apis/perftest/v1alpha1"
	operrors "github.com/stackhpc/perftest-operator/pkg/errors"
	"github.com/stackhpc/perftest-operator/pkg/registry"
	"github.com/stackhpc/perftest-operator/pkg/template"
)

const singleClientLog = `{"client_stats":[{"jobname":"fio-client","read":{"bw":1000,"iops":250,"lat_ns":{"mean":100,"stddev":10}},"write":{"bw":500,"iops":125,"lat_ns":{"mean":200,"stddev":20}}}]}`

func noopFetchLog(log string) registry.FetchLog {
	return func(ctx context.Context, namespace, podName, container string) (string, error) {
		return log, nil
	}
}

func TestJobModified_AppliesDefaultPolicy(t *testing.T) {
	benchmark := &v1alpha1.Fio{}
	require.NoError(t, jobModified(benchmark, "Running"))
	assert.Equal(t, v1alpha1.PhaseRunning, benchmark.Status.Phase)
}

func TestJobModified_WrongTypeIsAnError(t *testing.T) {
	assert.Error(t, jobModified(&v1alpha1.IPerf{}, "Running"))
}

func TestPodModified_RecordsWorkerPodInfo(t *testing.T) {
	benchmark := &v1alpha1.Fio{}
	pod := registry.PodEvent{Name: "fio-client-0", Phase: "Running", PodIP: "10.0.0.1", NodeName: "node-a", NodeIP: "10.0.0.2", Container: "client"}

	require.NoError(t, podModified(context.Background(), benchmark, v1alpha1.ComponentClient, pod, noopFetchLog("")))

	require.Contains(t, benchmark.Status.WorkerPods, "fio-client-0")
	assert.Equal(t, "10.0.0.1", benchmark.Status.WorkerPods["fio-client-0"].PodIP)
	assert.Empty(t, benchmark.Status.ClientLogs)
}

func TestPodModified_CapturesLogOnSucceeded(t *testing.T) {
	benchmark := &v1alpha1.Fio{}
	pod := registry.PodEvent{Name: "fio-client-0", Phase: "Succeeded", Container: "client"}

	require.NoError(t, podModified(context.Background(), benchmark, v1alpha1.ComponentClient, pod, noopFetchLog(singleClientLog)))

	assert.Equal(t, singleClientLog, benchmark.Status.ClientLogs["fio-client-0"])
}

func TestPodModified_MasterComponentNeverCapturesLog(t *testing.T) {
	benchmark := &v1alpha1.Fio{}
	pod := registry.PodEvent{Name: "fio-master", Phase: "Succeeded", Container: "master"}

	require.NoError(t, podModified(context.Background(), benchmark, v1alpha1.ComponentMaster, pod, noopFetchLog(singleClientLog)))

	assert.NotNil(t, benchmark.Status.MasterPod)
	assert.Empty(t, benchmark.Status.ClientLogs)
}

func TestSummarise_SingleClient(t *testing.T) {
	benchmark := &v1alpha1.Fio{
		Status: v1alpha1.FioStatus{ClientLogs: map[string]string{"fio-client-0": singleClientLog}},
	}

	require.NoError(t, summarise(benchmark))

	require.NotNil(t, benchmark.Status.Result)
	assert.Equal(t, float64(1000), benchmark.Status.Result.ReadBW)
	assert.NotEmpty(t, benchmark.Status.SummaryResult)
}

func TestSummarise_MultiClientWaitsForAllLogs(t *testing.T) {
	benchmark := &v1alpha1.Fio{
		Spec:   v1alpha1.FioSpec{NumClients: 2},
		Status: v1alpha1.FioStatus{ClientLogs: map[string]string{"fio-client-0": singleClientLog}},
	}

	err := summarise(benchmark)

	delay, ok := operrors.AsTemporary(err)
	require.True(t, ok)
	assert.Equal(t, time.Second, delay)
}

func TestSummarise_MultiClientAggregatesOnceComplete(t *testing.T) {
	benchmark := &v1alpha1.Fio{
		Spec: v1alpha1.FioSpec{NumClients: 2},
		Status: v1alpha1.FioStatus{ClientLogs: map[string]string{
			"fio-client-0": singleClientLog,
			"fio-client-1": singleClientLog,
		}},
	}

	require.NoError(t, summarise(benchmark))

	assert.Equal(t, float64(2000), benchmark.Status.Result.ReadBW)
}

func TestSummarise_NoLogsYetIsIncomplete(t *testing.T) {
	benchmark := &v1alpha1.Fio{}

	_, ok := operrors.AsTemporary(summarise(benchmark))
	assert.True(t, ok)
}

func TestResourcesFor_RendersAndConvertsTemplate(t *testing.T) {
	loader, err := template.NewLoader(map[string]string{
		"fio": `apiVersion: batch.volcano.sh/v1alpha1
kind: Job
metadata:
  name: {{ .Name }}
  namespace: {{ .Namespace }}
`,
	})
	require.NoError(t, err)

	benchmark := &v1alpha1.Fio{}
	benchmark.Name = "sweep-1"
	benchmark.Namespace = "ns"

	children, err := resourcesFor(context.Background(), benchmark, loader)
	require.NoError(t, err)
	require.Len(t, children, 1)
	assert.Equal(t, "sweep-1", children[0].GetName())
}

func TestResourcesFor_WrongTypeIsAnError(t *testing.T) {
	loader, err := template.NewLoader(map[string]string{"fio": ""})
	require.NoError(t, err)

	_, err = resourcesFor(context.Background(), &v1alpha1.IPerf{}, loader)
	assert.Error(t, err)
}
