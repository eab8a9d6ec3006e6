package director

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRateStatsAvgAndSD(t *testing.T) {
	s := NewRateStats()
	assert.Equal(t, float64(0), s.Avg())
	assert.Equal(t, float64(0), s.SD())

	for _, v := range []float64{10, 20, 30} {
		s.Add(v)
	}
	assert.InDelta(t, 20, s.Avg(), 1e-9)
	assert.Greater(t, s.SD(), 0.0)
	assert.Equal(t, 3, s.Count())
}

func TestRateStatsWindowSlidesAfterFill(t *testing.T) {
	s := NewRateStats()
	for i := 0; i < windowSize+2; i++ {
		s.Add(100)
	}
	assert.Equal(t, windowSize, s.Count())
	assert.InDelta(t, 100, s.Avg(), 1e-9)
}

func TestRateStatsDecayingAverageTracksMostRecentSample(t *testing.T) {
	s := NewRateStats()
	s.Add(0)
	for i := 0; i < 50; i++ {
		s.Add(100)
	}
	assert.InDelta(t, 100, s.DAvg(), 1.0)
}

func TestCycleStatsWarmsUpAfterThreeCycles(t *testing.T) {
	c := NewCycleStats()
	assert.False(t, c.Snapshot().IsWarm)
	assert.False(t, c.Snapshot().IsTimeTrustable)

	for i := 0; i < warmCycles; i++ {
		c.RecordCycle(0.01, 0.02, 4)
	}
	snap := c.Snapshot()
	assert.True(t, snap.IsWarm)
	assert.True(t, snap.IsTimeTrustable)
	assert.Equal(t, uint32(4), snap.LastActiveWorkers)
}

func TestCycleStatsTickAccumulatesAndResetsOnRecord(t *testing.T) {
	c := NewCycleStats()
	c.Tick(0.1)
	c.Tick(0.1)
	assert.InDelta(t, 0.2, c.Snapshot().TimeSinceLast, 1e-9)

	c.RecordCycle(0.01, 0.01, 2)
	assert.Equal(t, float64(0), c.Snapshot().TimeSinceLast)
}
