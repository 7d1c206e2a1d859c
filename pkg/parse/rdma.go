package parse

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/stackhpc/perftest-operator/pkg/apis/perftest/v1alpha1"
)

var rdmaHeaderRE = regexp.MustCompile(`^\s*#bytes`)

// rdmaFields splits an RDMA perftest output row on whitespace and returns
// its numeric columns, or nil if the line isn't a data row (blank, a
// trailing summary line, etc).
func rdmaFields(line string) []float64 {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return nil
	}
	values := make([]float64, 0, len(fields))
	for _, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil
		}
		values = append(values, v)
	}
	return values
}

func rdmaRows(log []byte) (rows []v1alpha1.RDMARow, headerFound bool) {
	lines := dropUntil(scanLines(log), rdmaHeaderRE.MatchString)
	if lines == nil {
		return nil, false
	}

	for _, line := range lines[1:] {
		values := rdmaFields(line)
		if values == nil {
			continue
		}
		row := v1alpha1.RDMARow{Bytes: int64(values[0]), Iterations: int64(values[1])}
		switch len(values) {
		case 5:
			row.PeakBW = values[2]
			row.AverageBW = values[3]
			row.MsgRate = values[4]
		case 9:
			row.T_Min = values[2]
			row.T_Max = values[3]
			row.T_Typical = values[4]
			row.T_Average = values[5]
		default:
			continue
		}
		rows = append(rows, row)
	}
	return rows, true
}

// RDMABandwidth parses an ib_*_bw-style log (spec §4.4 "rdma bandwidth").
// Headline is the maximum peak bandwidth observed, in Gbit/sec.
func RDMABandwidth(log []byte) (*v1alpha1.RDMABandwidthResult, string, error) {
	rows, headerFound := rdmaRows(log)
	if !headerFound {
		return nil, "", parseError("rdma bandwidth", `no "#bytes" header found`)
	}

	var peak, avgSum float64
	avgCount := 0
	for _, row := range rows {
		if row.PeakBW == 0 && row.AverageBW == 0 {
			continue
		}
		if row.PeakBW > peak {
			peak = row.PeakBW
		}
		avgSum += row.AverageBW
		avgCount++
	}
	if avgCount == 0 {
		return nil, "", incomplete("rdma bandwidth", "no bandwidth rows parsed yet")
	}

	result := &v1alpha1.RDMABandwidthResult{Rows: rows, PeakBW: peak, AvgBW: avgSum / float64(avgCount)}
	return result, formatGbit(peak), nil
}

// RDMALatency parses an ib_*_lat-style log (spec §4.4 "rdma latency").
// Headline is the minimum average latency observed, in microseconds.
func RDMALatency(log []byte) (*v1alpha1.RDMALatencyResult, string, error) {
	rows, headerFound := rdmaRows(log)
	if !headerFound {
		return nil, "", parseError("rdma latency", `no "#bytes" header found`)
	}

	var minAvg float64
	found := false
	for _, row := range rows {
		if row.T_Average == 0 {
			continue
		}
		if !found || row.T_Average < minAvg {
			minAvg = row.T_Average
			found = true
		}
	}
	if !found {
		return nil, "", incomplete("rdma latency", "no latency rows parsed yet")
	}

	return &v1alpha1.RDMALatencyResult{Rows: rows, MinAverage: minAvg}, formatMicros(minAvg), nil
}
