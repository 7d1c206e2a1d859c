package parse

import (
	"encoding/json"

	"github.com/stackhpc/perftest-operator/pkg/apis/perftest/v1alpha1"
)

type fioLatency struct {
	Mean   float64 `json:"mean"`
	Stddev float64 `json:"stddev"`
}

type fioJobStats struct {
	BW    float64    `json:"bw"`
	IOPS  float64    `json:"iops"`
	LatNS fioLatency `json:"lat_ns"`
}

type fioClientStat struct {
	JobName string      `json:"jobname"`
	Read    fioJobStats `json:"read"`
	Write   fioJobStats `json:"write"`
}

type fioLog struct {
	ClientStats []fioClientStat `json:"client_stats"`
}

// Fio parses a fio JSON log (spec §4.4 "fio"). When client_stats has a
// single element that is the aggregate; otherwise the element named
// "All clients" is the aggregate, which is only present once every client
// has reported in — absence of it with multiple client_stats entries means
// the run is still in progress.
func Fio(log []byte) (*v1alpha1.FioResult, error) {
	var doc fioLog
	if err := json.Unmarshal(log, &doc); err != nil {
		return nil, parseError("fio", "log is not valid JSON")
	}
	if len(doc.ClientStats) == 0 {
		return nil, incomplete("fio", "client_stats is empty")
	}

	var aggregate *fioClientStat
	if len(doc.ClientStats) == 1 {
		aggregate = &doc.ClientStats[0]
	} else {
		for i := range doc.ClientStats {
			if doc.ClientStats[i].JobName == "All clients" {
				aggregate = &doc.ClientStats[i]
				break
			}
		}
		if aggregate == nil {
			return nil, incomplete("fio", `no "All clients" aggregate entry yet`)
		}
	}

	return &v1alpha1.FioResult{
		ReadBW:           aggregate.Read.BW,
		ReadIOPS:         aggregate.Read.IOPS,
		ReadLatNSMean:    aggregate.Read.LatNS.Mean,
		ReadLatNSStddev:  aggregate.Read.LatNS.Stddev,
		WriteBW:          aggregate.Write.BW,
		WriteIOPS:        aggregate.Write.IOPS,
		WriteLatNSMean:   aggregate.Write.LatNS.Mean,
		WriteLatNSStddev: aggregate.Write.LatNS.Stddev,
	}, nil
}

// FioAggregate handles the multi-client case (spec §8 scenario 3, "fio
// 2-client aggregate"): each client pod writes its own JSON log, and no
// pod synthesises an "All clients" entry. Every expected client log must
// have been captured before aggregating; bandwidth and IOPS are summed
// across clients, latency is averaged.
func FioAggregate(logsByPod map[string]string, expectedClients int) (*v1alpha1.FioResult, error) {
	if len(logsByPod) < expectedClients {
		return nil, incomplete("fio", "not all client logs captured yet")
	}

	var sum v1alpha1.FioResult
	var latSamples int
	for _, log := range logsByPod {
		result, err := Fio([]byte(log))
		if err != nil {
			return nil, err
		}
		sum.ReadBW += result.ReadBW
		sum.ReadIOPS += result.ReadIOPS
		sum.WriteBW += result.WriteBW
		sum.WriteIOPS += result.WriteIOPS
		sum.ReadLatNSMean += result.ReadLatNSMean
		sum.ReadLatNSStddev += result.ReadLatNSStddev
		sum.WriteLatNSMean += result.WriteLatNSMean
		sum.WriteLatNSStddev += result.WriteLatNSStddev
		latSamples++
	}
	if latSamples == 0 {
		return nil, incomplete("fio", "not all client logs captured yet")
	}

	sum.ReadLatNSMean /= float64(latSamples)
	sum.ReadLatNSStddev /= float64(latSamples)
	sum.WriteLatNSMean /= float64(latSamples)
	sum.WriteLatNSStddev /= float64(latSamples)

	return &sum, nil
}
