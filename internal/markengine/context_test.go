package markengine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestConcurrentContextNeverTimesOut(t *testing.T) {
	ctx := NewConcurrentContext()
	for i := 0; i < timeoutCheckInterval*3; i++ {
		assert.False(t, ctx.Tick())
	}
}

func TestEndContextTimesOutOnlyAfterDeadlinePassesOnCheckCadence(t *testing.T) {
	fakeNow := time.Unix(0, 0)
	restore := now
	now = func() time.Time { return fakeNow }
	defer func() { now = restore }()

	ctx := NewEndContext(time.Millisecond)

	for i := 0; i < timeoutCheckInterval-1; i++ {
		assert.False(t, ctx.Tick())
	}

	fakeNow = fakeNow.Add(time.Hour)
	assert.True(t, ctx.Tick())
}

func TestEndContextDoesNotCheckClockBetweenCadenceIntervals(t *testing.T) {
	fakeNow := time.Unix(0, 0)
	restore := now
	now = func() time.Time { return fakeNow }
	defer func() { now = restore }()

	ctx := NewEndContext(time.Nanosecond)
	fakeNow = fakeNow.Add(time.Hour)

	for i := 0; i < timeoutCheckInterval-1; i++ {
		assert.False(t, ctx.Tick(), "should not sample the clock before the cadence interval elapses")
	}
}
