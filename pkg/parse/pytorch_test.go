package parse

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	operrors "github.com/stackhpc/perftest-operator/pkg/errors"
)

const pyTorchCPULog = `Training started
CPU Wall Time per batch: 12.500 milliseconds
CPU Peak Memory: 3.200 GB
Training finished

real	0m30.000s
user	0m55.000s
sys	0m1.000s
`

const pyTorchGPULog = `Training started
CPU Wall Time per batch: 12.500 milliseconds
CPU Peak Memory: 3.200 GB
GPU Time per batch: 4.200 milliseconds
GPU 0 Peak Memory: 10.500 GB
GPU 1 Peak Memory: 10.800 GB
Training finished

real	0m15.000s
user	0m20.000s
sys	0m1.000s
`

func TestPyTorch_CPUOnly(t *testing.T) {
	result, err := PyTorch([]byte(pyTorchCPULog), "cpu")
	require.NoError(t, err)
	assert.Equal(t, 12.5, result.CPUWallTimePerBatchMS)
	assert.Equal(t, 3.2, result.CPUPeakMemoryGB)
	assert.Equal(t, 30.0, result.WallClockSeconds)
	assert.Empty(t, result.GPUPeakMemoryGB)
}

func TestPyTorch_CUDA(t *testing.T) {
	result, err := PyTorch([]byte(pyTorchGPULog), "cuda")
	require.NoError(t, err)
	assert.Equal(t, 4.2, result.GPUWallTimePerBatchMS)
	require.Len(t, result.GPUPeakMemoryGB, 2)
	assert.Equal(t, 10.5, result.GPUPeakMemoryGB["0"])
	assert.Equal(t, 10.8, result.GPUPeakMemoryGB["1"])
}

func TestPyTorch_CUDAWithoutGPULinesIsIncomplete(t *testing.T) {
	_, err := PyTorch([]byte(pyTorchCPULog), "cuda")
	require.Error(t, err)
	_, ok := operrors.AsTemporary(err)
	assert.True(t, ok)
}

func TestPyTorch_WrongUnitIsParseError(t *testing.T) {
	log := []byte(`CPU Wall Time per batch: 12.500 seconds
CPU Peak Memory: 3.200 GB
real	0m30.000s
`)
	_, err := PyTorch(log, "cpu")
	require.Error(t, err)
	_, ok := operrors.AsTemporary(err)
	assert.False(t, ok)
}

func TestPyTorch_MissingCPUFieldsIsIncomplete(t *testing.T) {
	_, err := PyTorch([]byte("Training started\n"), "cpu")
	require.Error(t, err)
	_, ok := operrors.AsTemporary(err)
	assert.True(t, ok)
}
