package parse

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/stackhpc/perftest-operator/pkg/apis/perftest/v1alpha1"
)

var (
	pingPongHeaderRE = regexp.MustCompile(`^\s*#\s*bytes`)
	pingPongUnitRE   = regexp.MustCompile(`(\w?bytes/sec)`)
)

// PingPong parses an OSU-style MPI ping-pong log (spec §4.4 "mpi
// ping-pong"). The header line carries the bandwidth unit inside a
// "... bytes/sec" fragment; rows are "<bytes> <reps> <time> <bandwidth>".
// Headline is the maximum bandwidth observed, in that unit.
func PingPong(log []byte) (*v1alpha1.PingPongResult, string, error) {
	lines := dropUntil(scanLines(log), pingPongHeaderRE.MatchString)
	if lines == nil {
		return nil, "", parseError("mpi ping-pong", `no "#bytes" header found`)
	}

	unit := "bytes/sec"
	if m := pingPongUnitRE.FindStringSubmatch(lines[0]); m != nil {
		unit = m[1]
	}

	var rows []v1alpha1.PingPongRow
	var maxBandwidth float64
	for _, line := range lines[1:] {
		fields := strings.Fields(line)
		if len(fields) != 4 {
			continue
		}
		bytes_, err1 := strconv.ParseInt(fields[0], 10, 64)
		reps, err2 := strconv.ParseInt(fields[1], 10, 64)
		timeUS, err3 := strconv.ParseFloat(fields[2], 64)
		bandwidth, err4 := strconv.ParseFloat(fields[3], 64)
		if err1 != nil || err2 != nil || err3 != nil || err4 != nil {
			continue
		}
		rows = append(rows, v1alpha1.PingPongRow{Bytes: bytes_, Reps: reps, TimeUS: timeUS, Bandwidth: bandwidth})
		if bandwidth > maxBandwidth {
			maxBandwidth = bandwidth
		}
	}

	if rows == nil {
		return nil, "", incomplete("mpi ping-pong", "no data rows parsed yet")
	}

	result := &v1alpha1.PingPongResult{Rows: rows, MaxBandwidth: maxBandwidth, BandwidthUnit: unit}
	return result, formatBandwidth(maxBandwidth, unit), nil
}
