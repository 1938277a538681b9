package compress

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestStatsConcurrentCounting(t *testing.T) {
	s := newStats(true)

	const workers = 8
	const perWorker = 1000

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				s.addRequestDecompressed()
				s.addResponseCompressed(100, 40)
				s.addHandlingTime(time.Millisecond)
			}
		}()
	}
	wg.Wait()

	snap := s.Snapshot()
	require.Equal(t, int64(workers*perWorker), snap.RequestsDecompressed)
	require.Equal(t, int64(workers*perWorker), snap.ResponsesCompressed)
	require.Equal(t, int64(workers*perWorker*100), snap.ResponseBytesIn)
	require.Equal(t, int64(workers*perWorker*40), snap.ResponseBytesOut)
	require.InDelta(t, 0.4, snap.CompressionRatio, 1e-9)
	require.Equal(t, time.Duration(workers*perWorker)*time.Millisecond, snap.HandlingTime)
	require.False(t, snap.TakenAt.IsZero())
}

func TestStatsDisabled(t *testing.T) {
	s := newStats(false)
	s.addRequestDecompressed()
	s.addRequestNotDecompressed()
	s.addResponseCompressed(100, 40)
	s.addResponseNotCompressed()
	s.addHandlingTime(time.Second)

	snap := s.Snapshot()
	require.Zero(t, snap.RequestsDecompressed)
	require.Zero(t, snap.RequestsNotDecompressed)
	require.Zero(t, snap.ResponsesCompressed)
	require.Zero(t, snap.ResponsesNotCompressed)
	require.Zero(t, snap.ResponseBytesIn)
	require.Zero(t, snap.ResponseBytesOut)
	require.Zero(t, snap.CompressionRatio)
	require.Zero(t, snap.HandlingTime)
}

func TestStatsRatioWithoutTraffic(t *testing.T) {
	s := newStats(true)
	require.Zero(t, s.Snapshot().CompressionRatio)
}
