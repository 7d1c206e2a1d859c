package parse

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	operrors "github.com/stackhpc/perftest-operator/pkg/errors"
)

func TestFio_SingleClient(t *testing.T) {
	log := []byte(`{"client_stats":[{"jobname":"client0","read":{"bw":1000,"iops":250,"lat_ns":{"mean":400,"stddev":10}},"write":{"bw":2000,"iops":500,"lat_ns":{"mean":600,"stddev":20}}}]}`)

	result, err := Fio(log)
	require.NoError(t, err)
	assert.Equal(t, 1000.0, result.ReadBW)
	assert.Equal(t, 2000.0, result.WriteBW)
}

func TestFio_MultiClientAggregate(t *testing.T) {
	log := []byte(`{"client_stats":[
		{"jobname":"client0","read":{"bw":1000,"iops":100,"lat_ns":{"mean":1,"stddev":1}},"write":{"bw":0,"iops":0,"lat_ns":{"mean":0,"stddev":0}}},
		{"jobname":"client1","read":{"bw":1000,"iops":100,"lat_ns":{"mean":1,"stddev":1}},"write":{"bw":0,"iops":0,"lat_ns":{"mean":0,"stddev":0}}},
		{"jobname":"All clients","read":{"bw":2000,"iops":200,"lat_ns":{"mean":1,"stddev":1}},"write":{"bw":0,"iops":0,"lat_ns":{"mean":0,"stddev":0}}}
	]}`)

	result, err := Fio(log)
	require.NoError(t, err)
	assert.Equal(t, 2000.0, result.ReadBW)
	assert.Equal(t, 200.0, result.ReadIOPS)
}

func TestFio_MultiClientMissingAggregateIsIncomplete(t *testing.T) {
	log := []byte(`{"client_stats":[{"jobname":"client0","read":{},"write":{}},{"jobname":"client1","read":{},"write":{}}]}`)

	_, err := Fio(log)
	require.Error(t, err)
	_, ok := operrors.AsTemporary(err)
	assert.True(t, ok)
}

func TestFio_InvalidJSONIsParseError(t *testing.T) {
	_, err := Fio([]byte("not json"))
	require.Error(t, err)
	_, ok := operrors.AsTemporary(err)
	assert.False(t, ok)
	var parseErr *operrors.Error
	require.ErrorAs(t, err, &parseErr)
	assert.Equal(t, "PARSE_ERROR", parseErr.Code)
}

func TestFio_EmptyClientStatsIsIncomplete(t *testing.T) {
	_, err := Fio([]byte(`{"client_stats":[]}`))
	require.Error(t, err)
	_, ok := operrors.AsTemporary(err)
	assert.True(t, ok)
}

func TestFioAggregate_TwoClientsSumAndMean(t *testing.T) {
	client0 := `{"client_stats":[{"jobname":"client0","read":{"bw":1000,"iops":100,"lat_ns":{"mean":200,"stddev":10}},"write":{"bw":0,"iops":0,"lat_ns":{"mean":0,"stddev":0}}}]}`
	client1 := `{"client_stats":[{"jobname":"client1","read":{"bw":3000,"iops":300,"lat_ns":{"mean":400,"stddev":30}},"write":{"bw":0,"iops":0,"lat_ns":{"mean":0,"stddev":0}}}]}`

	result, err := FioAggregate(map[string]string{"pod-0": client0, "pod-1": client1}, 2)
	require.NoError(t, err)
	assert.Equal(t, 4000.0, result.ReadBW)
	assert.Equal(t, 400.0, result.ReadIOPS)
	assert.Equal(t, 300.0, result.ReadLatNSMean)
}

func TestFioAggregate_MissingClientIsIncomplete(t *testing.T) {
	client0 := `{"client_stats":[{"jobname":"client0","read":{"bw":1000,"iops":100,"lat_ns":{"mean":200,"stddev":10}},"write":{"bw":0,"iops":0,"lat_ns":{"mean":0,"stddev":0}}}]}`

	_, err := FioAggregate(map[string]string{"pod-0": client0}, 2)
	require.Error(t, err)
	_, ok := operrors.AsTemporary(err)
	assert.True(t, ok)
}
