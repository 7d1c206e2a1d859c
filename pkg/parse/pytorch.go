package parse

import (
	"regexp"
	"strconv"

	"github.com/stackhpc/perftest-operator/pkg/apis/perftest/v1alpha1"
)

var (
	cpuWallTimeRE = regexp.MustCompile(`CPU Wall Time per batch:\s*([\d.]+)\s*(\S+)`)
	cpuPeakMemRE  = regexp.MustCompile(`CPU Peak Memory:\s*([\d.]+)\s*(\S+)`)
	gpuWallTimeRE = regexp.MustCompile(`GPU Time per batch:\s*([\d.]+)\s*(\S+)`)
	gpuPeakMemRE  = regexp.MustCompile(`GPU (\d+) Peak Memory:\s*([\d.]+)\s*(\S+)`)
	wallClockRE   = regexp.MustCompile(`(?m)^real\s+(?:(\d+)m)?([\d.]+)s`)
)

// PyTorch parses a PyTorch training-script log (spec §4.4 "pyTorch"). CPU
// wall-time-per-batch and CPU peak memory are always required; GPU fields
// are required only when device is "cuda". All time units must be
// "milliseconds" and all memory units must be "GB" — anything else is a
// permanent parse error, since a unit mismatch will never self-correct.
func PyTorch(log []byte, device string) (*v1alpha1.PyTorchResult, error) {
	cpuWall, cpuWallUnit, cpuWallOK := matchValueUnit(cpuWallTimeRE, log)
	cpuMem, cpuMemUnit, cpuMemOK := matchValueUnit(cpuPeakMemRE, log)

	if !cpuWallOK || !cpuMemOK {
		return nil, incomplete("pyTorch", "CPU wall time or peak memory not yet logged")
	}
	if cpuWallUnit != "milliseconds" {
		return nil, parseError("pyTorch", "CPU wall time unit must be milliseconds")
	}
	if cpuMemUnit != "GB" {
		return nil, parseError("pyTorch", "CPU peak memory unit must be GB")
	}

	result := &v1alpha1.PyTorchResult{CPUWallTimePerBatchMS: cpuWall, CPUPeakMemoryGB: cpuMem}

	if device == "cuda" {
		gpuWall, gpuWallUnit, gpuWallOK := matchValueUnit(gpuWallTimeRE, log)
		if !gpuWallOK {
			return nil, incomplete("pyTorch", "GPU wall time not yet logged")
		}
		if gpuWallUnit != "milliseconds" {
			return nil, parseError("pyTorch", "GPU wall time unit must be milliseconds")
		}
		result.GPUWallTimePerBatchMS = gpuWall

		gpuMems := gpuPeakMemRE.FindAllSubmatch(log, -1)
		if len(gpuMems) == 0 {
			return nil, incomplete("pyTorch", "GPU peak memory not yet logged")
		}
		result.GPUPeakMemoryGB = make(map[string]float64, len(gpuMems))
		for _, m := range gpuMems {
			if string(m[3]) != "GB" {
				return nil, parseError("pyTorch", "GPU peak memory unit must be GB")
			}
			value, err := strconv.ParseFloat(string(m[2]), 64)
			if err != nil {
				return nil, parseError("pyTorch", "GPU peak memory is not numeric")
			}
			result.GPUPeakMemoryGB[string(m[1])] = value
		}
	}

	wallClock, wallClockOK := matchSeconds(wallClockRE, log)
	if !wallClockOK {
		return nil, incomplete("pyTorch", "wall-clock time block not yet logged")
	}
	result.WallClockSeconds = wallClock

	return result, nil
}

func matchValueUnit(re *regexp.Regexp, log []byte) (float64, string, bool) {
	m := re.FindSubmatch(log)
	if m == nil {
		return 0, "", false
	}
	value, err := strconv.ParseFloat(string(m[1]), 64)
	if err != nil {
		return 0, "", false
	}
	return value, string(m[2]), true
}
