package parse

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	operrors "github.com/stackhpc/perftest-operator/pkg/errors"
)

const pingPongLog = `#---------------------------------------------------
# Benchmarking PingPong
#bytes #repetitions      t[usec]   Mbytes/sec
1           1000      1.23       0.81
1048576     100      1240.00   845.32
`

func TestPingPong_Parses(t *testing.T) {
	result, headline, err := PingPong([]byte(pingPongLog))
	require.NoError(t, err)
	require.Len(t, result.Rows, 2)
	assert.Equal(t, 845.32, result.MaxBandwidth)
	assert.Equal(t, "Mbytes/sec", result.BandwidthUnit)
	assert.Contains(t, headline, "845.32")
}

func TestPingPong_NoHeaderIsParseError(t *testing.T) {
	_, _, err := PingPong([]byte("nothing here\n"))
	require.Error(t, err)
	_, ok := operrors.AsTemporary(err)
	assert.False(t, ok)
}

func TestPingPong_HeaderButNoRowsIsIncomplete(t *testing.T) {
	_, _, err := PingPong([]byte("#bytes #repetitions      t[usec]   Mbytes/sec\n"))
	require.Error(t, err)
	_, ok := operrors.AsTemporary(err)
	assert.True(t, ok)
}
