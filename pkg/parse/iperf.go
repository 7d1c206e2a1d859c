package parse

import (
	"fmt"
	"math"
	"regexp"
	"strconv"

	"github.com/stackhpc/perftest-operator/pkg/apis/perftest/v1alpha1"
)

var amountPrefixes = []string{"", "K", "M", "G", "T", "P", "E", "Z", "Y"}

// formatAmount mirrors the original's utils.format_amount: starting from
// originalPrefix, it climbs the prefix table in quotient-1024 steps until
// amount is expressed with a leading digit in [1, 1024), rendering an
// integer result bare and a fractional one to two significant figures.
func formatAmount(amount float64, originalPrefix string) (string, string) {
	if amount == 0 {
		return "0", originalPrefix
	}

	exponent := int(math.Floor(math.Log(amount) / math.Log(1024)))
	newAmount := amount / math.Pow(1024, float64(exponent))

	var formatted string
	if newAmount == math.Trunc(newAmount) {
		formatted = strconv.Itoa(int(newAmount))
	} else {
		integerPart := int(newAmount)
		fractionalPart := newAmount - float64(integerPart)
		frac := strconv.FormatFloat(fractionalPart, 'g', 2, 64)
		if len(frac) > 2 {
			frac = frac[2:]
		} else {
			frac = ""
		}
		formatted = fmt.Sprintf("%d.%s", integerPart, frac)
	}

	prefixIndex := indexOfPrefix(originalPrefix) + exponent
	return formatted, amountPrefixes[prefixIndex]
}

func indexOfPrefix(prefix string) int {
	for i, p := range amountPrefixes {
		if p == prefix {
			return i
		}
	}
	return 0
}

var (
	iperfHeaderRE = regexp.MustCompile(`^\[\s*ID\]`)
	iperfRowRE    = regexp.MustCompile(`^\[\s*([^\]]+)\].*?\s([\d.]+)\s+KBytes\s+([\d.]+)\s+Kbits/sec`)
)

// IPerf parses an iperf2 log (spec §4.4 "iperf"). Rows are collected after
// the "[ ID]" header; the "SUM" row is the aggregate for multi-stream runs,
// and the sole row is its own aggregate for single-stream runs. The parsed
// stream count must match expectedStreams or the log is rejected outright,
// since a miscounted stream means the run itself misbehaved, not that the
// log is merely incomplete.
func IPerf(log []byte, expectedStreams int) (*v1alpha1.IPerfResult, string, error) {
	lines := dropUntil(scanLines(log), iperfHeaderRE.MatchString)
	if lines == nil {
		return nil, "", parseError("iperf", `no "[ ID]" header found`)
	}

	streams := make(map[string]v1alpha1.IPerfSingleResult)
	var sum *v1alpha1.IPerfSingleResult
	for _, line := range lines[1:] {
		m := iperfRowRE.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		transferKB, err := strconv.ParseFloat(m[2], 64)
		if err != nil {
			continue
		}
		bandwidthKb, err := strconv.ParseFloat(m[3], 64)
		if err != nil {
			continue
		}
		row := v1alpha1.IPerfSingleResult{Transfer: int64(transferKB), Bandwidth: int64(bandwidthKb)}
		if m[1] == "SUM" {
			sum = &row
			continue
		}
		streams[m[1]] = row
	}

	if len(streams) == 0 {
		return nil, "", incomplete("iperf", "no stream rows parsed yet")
	}

	if sum == nil {
		if len(streams) != 1 {
			return nil, "", parseError("iperf", "multiple streams but no SUM row")
		}
		for _, row := range streams {
			r := row
			sum = &r
		}
	}

	if expectedStreams > 0 && len(streams) != expectedStreams {
		return nil, "", parseError("iperf", fmt.Sprintf("expected %d streams, parsed %d", expectedStreams, len(streams)))
	}

	return &v1alpha1.IPerfResult{Streams: streams, Sum: *sum}, humanBandwidth(sum.Bandwidth), nil
}

// humanBandwidth renders a Kbits/sec value the way the original's
// IPerfStatus.summarise does: format_amount(bandwidth, "K"), e.g.
// 1024 -> "1 Mbits/sec", 9412000 -> "8.98 Gbits/sec".
func humanBandwidth(kbitsPerSec int64) string {
	amount, prefix := formatAmount(float64(kbitsPerSec), "K")
	return fmt.Sprintf("%s %sbits/sec", amount, prefix)
}
