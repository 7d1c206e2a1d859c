package parse

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	operrors "github.com/stackhpc/perftest-operator/pkg/errors"
)

const rdmaBandwidthLog = `************************************
* Waiting for client to connect... *
************************************
---------------------------------------------------------------------------------------
 #bytes     #iterations    BW peak[Gb/sec]    BW average[Gb/sec]   MsgRate[Mpps]
 65536      1000             97.23              97.10              0.185200
 131072     1000             98.50              98.40              0.093900
---------------------------------------------------------------------------------------
`

const rdmaLatencyLog = `---------------------------------------------------------------------------------------
 #bytes #iterations    t_min[usec]    t_max[usec]  t_typical[usec]   t_avg[usec]   t_stdev[usec]   99% percentile[usec]   99.9% percentile[usec]
 2       1000            1.23           5.67           1.30            1.35            0.10            2.00                   4.00
 4       1000            1.25           5.70           1.32            1.38            0.11            2.10                   4.10
---------------------------------------------------------------------------------------
`

func TestRDMABandwidth_Parses(t *testing.T) {
	result, headline, err := RDMABandwidth([]byte(rdmaBandwidthLog))
	require.NoError(t, err)
	require.Len(t, result.Rows, 2)
	assert.Equal(t, 98.50, result.PeakBW)
	assert.Contains(t, headline, "98.50")
}

func TestRDMABandwidth_NoHeaderIsParseError(t *testing.T) {
	_, _, err := RDMABandwidth([]byte("nothing useful here\n"))
	require.Error(t, err)
	_, ok := operrors.AsTemporary(err)
	assert.False(t, ok)
}

func TestRDMALatency_Parses(t *testing.T) {
	result, headline, err := RDMALatency([]byte(rdmaLatencyLog))
	require.NoError(t, err)
	require.Len(t, result.Rows, 2)
	assert.Equal(t, 1.35, result.MinAverage)
	assert.Contains(t, headline, "1.35")
}

func TestRDMALatency_HeaderButNoRowsIsIncomplete(t *testing.T) {
	_, _, err := RDMALatency([]byte(" #bytes #iterations    t_min[usec]\n"))
	require.Error(t, err)
	_, ok := operrors.AsTemporary(err)
	assert.True(t, ok)
}
