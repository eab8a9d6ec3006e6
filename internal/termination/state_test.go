package termination

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	sleepShort = func() { time.Sleep(time.Microsecond) }
	goleak.VerifyTestMain(m)
}

func TestStripeMapSetGetAndAll(t *testing.T) {
	var m StripeMap
	m = m.Set(0).Set(3)
	assert.True(t, m.Get(0))
	assert.True(t, m.Get(3))
	assert.False(t, m.Get(1))

	assert.Equal(t, uint32(0b111), All(3).Bits())
	assert.Equal(t, uint32(0xFFFFFFFF), All(32).Bits())
}

func TestResetInitializesWorkersAndClearsStripes(t *testing.T) {
	var s State
	s.Reset(4)
	assert.Equal(t, uint32(4), s.NActiveWorkers())
	assert.False(t, s.HasActiveStripes())
	assert.False(t, s.IsTerminated())
}

func TestSetActiveStripesOrsBitsIn(t *testing.T) {
	var s State
	s.Reset(2)
	s.SetActiveStripes(StripeMap(0).Set(1))
	s.SetActiveStripes(StripeMap(0).Set(2))
	assert.True(t, s.ActiveStripes().Get(1))
	assert.True(t, s.ActiveStripes().Get(2))
}

func TestEnterIdleModeResumesWhenWatchedStripeStillFlagged(t *testing.T) {
	var s State
	s.Reset(2)
	watch := StripeMap(0).Set(0)
	s.SetActiveStripes(watch)

	idle := s.EnterIdleMode(watch)
	assert.False(t, idle)
	assert.Equal(t, uint32(2), s.NActiveWorkers())
	assert.False(t, s.ActiveStripes().Get(0))
}

func TestEnterIdleModeDecrementsWhenNoWatchedStripeFlagged(t *testing.T) {
	var s State
	s.Reset(2)
	watch := StripeMap(0).Set(0)

	idle := s.EnterIdleMode(watch)
	assert.True(t, idle)
	assert.Equal(t, uint32(1), s.NActiveWorkers())
}

func TestEnterTerminateModeRequiresFullQuiescence(t *testing.T) {
	var s State
	s.Reset(1)
	assert.False(t, s.EnterTerminateMode())

	s.EnterIdleMode(StripeMap(0))
	assert.True(t, s.EnterTerminateMode())
	assert.True(t, s.IsTerminated())
	assert.True(t, s.EnterTerminateMode())
}

func TestExitIdleModeReturnsFalseOnceTerminated(t *testing.T) {
	var s State
	s.Reset(1)
	s.EnterIdleMode(StripeMap(0))
	require.True(t, s.EnterTerminateMode())

	resumed := s.ExitIdleMode(StripeMap(0).Set(0))
	assert.False(t, resumed)
}

func TestExitIdleModeResumesWhenWatchedStripeFlagged(t *testing.T) {
	var s State
	s.Reset(2)
	watch := StripeMap(0).Set(0)
	s.EnterIdleMode(watch)
	s.SetActiveStripes(watch)

	resumed := s.ExitIdleMode(watch)
	assert.True(t, resumed)
	assert.Equal(t, uint32(2), s.NActiveWorkers())
}

func TestRestartPreservesStripeBitsWhileResettingWorkerCount(t *testing.T) {
	var s State
	s.Reset(4)
	watch := StripeMap(0).Set(2)
	s.SetActiveStripes(watch)

	s.Restart(6)
	assert.Equal(t, uint32(6), s.NActiveWorkers())
	assert.True(t, s.ActiveStripes().Get(2))
}

func TestIdleReturnsTrueOnlyAfterEveryWorkerTerminates(t *testing.T) {
	var s State
	s.Reset(2)

	var wg sync.WaitGroup
	results := make([]bool, 2)
	wg.Add(2)
	for i := 0; i < 2; i++ {
		go func(i int) {
			defer wg.Done()
			results[i] = s.Idle(StripeMap(0))
		}(i)
	}
	wg.Wait()

	assert.True(t, results[0])
	assert.True(t, results[1])
	assert.True(t, s.IsTerminated())
}

func TestIdleWakesWorkerWhenWorkIsPublished(t *testing.T) {
	var s State
	s.Reset(2)
	watch := StripeMap(0).Set(0)

	done := make(chan bool, 1)
	go func() {
		done <- s.Idle(watch)
	}()

	time.Sleep(5 * time.Millisecond)
	s.SetActiveStripes(watch)

	select {
	case woke := <-done:
		assert.False(t, woke)
	case <-time.After(time.Second):
		t.Fatal("idle worker never woke")
	}
}
