package openfoam

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stackhpc/perftest-operator/pkg/apis/perftest/v1alpha1"
	operrors "github.com/stackhpc/perftest-operator/pkg/errors"
	"github.com/stackhpc/perftest-operator/pkg/registry"
	"github.com/stackhpc/perftest-operator/pkg/template"
)

const completeLog = `Solving for p, Initial residual = 0.01, Final residual = 0.001
End

real	1m2.500s
user	0m58.200s
sys	0m4.300s
`

const partialLog = `Solving for p, Initial residual = 0.01
real	1m2.500s
`

func noopFetchLog(log string) registry.FetchLog {
	return func(ctx context.Context, namespace, podName, container string) (string, error) {
		return log, nil
	}
}

func TestPodModified_CapturesMasterLogOnSucceeded(t *testing.T) {
	benchmark := &v1alpha1.OpenFOAM{}

	require.NoError(t, podModified(context.Background(), benchmark, v1alpha1.ComponentMaster,
		registry.PodEvent{Name: "of-master", Phase: "Succeeded", Container: "master"}, noopFetchLog(completeLog)))

	assert.Equal(t, completeLog, benchmark.Status.MasterLog)
}

func TestPodModified_TracksWorkerPodInfoWithoutCapturingLog(t *testing.T) {
	benchmark := &v1alpha1.OpenFOAM{}

	require.NoError(t, podModified(context.Background(), benchmark, v1alpha1.ComponentWorker,
		registry.PodEvent{Name: "of-worker-0", Phase: "Succeeded", Container: "worker"}, noopFetchLog(completeLog)))

	require.Contains(t, benchmark.Status.WorkerPods, "of-worker-0")
	assert.Empty(t, benchmark.Status.MasterLog)
}

func TestSummarise_ParsesRealUserSys(t *testing.T) {
	benchmark := &v1alpha1.OpenFOAM{Status: v1alpha1.OpenFOAMStatus{MasterLog: completeLog}}

	require.NoError(t, summarise(benchmark))

	require.NotNil(t, benchmark.Status.Result)
	assert.Equal(t, 62.5, benchmark.Status.Result.RealSeconds)
	assert.Equal(t, 58.2, benchmark.Status.Result.UserSeconds)
	assert.Equal(t, 4.3, benchmark.Status.Result.SysSeconds)
	assert.Contains(t, benchmark.Status.SummaryResult, "real 62.50s")
}

func TestSummarise_PartialTimeBlockIsIncomplete(t *testing.T) {
	benchmark := &v1alpha1.OpenFOAM{Status: v1alpha1.OpenFOAMStatus{MasterLog: partialLog}}

	_, ok := operrors.AsTemporary(summarise(benchmark))
	assert.True(t, ok)
}

func TestSummarise_NoLogYetIsIncomplete(t *testing.T) {
	_, ok := operrors.AsTemporary(summarise(&v1alpha1.OpenFOAM{}))
	assert.True(t, ok)
}

func TestResourcesFor_RendersTemplate(t *testing.T) {
	loader, err := template.NewLoader(map[string]string{
		"openfoam": `apiVersion: batch.volcano.sh/v1alpha1
kind: Job
metadata:
  name: {{ .Name }}
  namespace: {{ .Namespace }}
`,
	})
	require.NoError(t, err)

	benchmark := &v1alpha1.OpenFOAM{}
	benchmark.Name, benchmark.Namespace = "of-1", "ns"

	children, err := resourcesFor(context.Background(), benchmark, loader)
	require.NoError(t, err)
	require.Len(t, children, 1)
	assert.Equal(t, "of-1", children[0].GetName())
}

func TestJobModified_WrongTypeIsAnError(t *testing.T) {
	assert.Error(t, jobModified(&v1alpha1.Fio{}, "Running"))
}
