package collector

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/zbench/stripemark/internal/director"
	"github.com/zbench/stripemark/internal/markengine"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeHeapSource struct{ snap director.HeapSnapshot }

func (f fakeHeapSource) Snapshot() director.HeapSnapshot { return f.snap }

type fakeDriver struct {
	mu       sync.Mutex
	busy     bool
	requests []director.DriverRequest
}

func (d *fakeDriver) IsBusy() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.busy
}

func (d *fakeDriver) Collect(req director.DriverRequest) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.requests = append(d.requests, req)
}

type fakePool struct{ n int }

func (p fakePool) Size() int { return p.n }

type noopRoots struct{}

func (noopRoots) WalkRoots(int, func(uintptr, bool, bool)) {}

type noopBarrier struct{}

func (noopBarrier) FollowObject(uintptr, bool, func(uintptr))                      {}
func (noopBarrier) FollowArrayRange(uintptr, uintptr, uintptr, bool, func(uintptr)) {}

type noopPageTable struct{}

func (noopPageTable) PageFor(uintptr) markengine.Page { return nil }

func TestNewWiresDirectorAndEngine(t *testing.T) {
	cfg := DefaultConfig()
	heap := fakeHeapSource{snap: director.HeapSnapshot{SoftMaxCapacity: 1 << 30}}
	drv := &fakeDriver{}

	c := New(cfg, heap, drv, fakePool{n: 2}, noopPageTable{}, noopRoots{}, noopBarrier{})
	require.NotNil(t, c.Director())
	require.NotNil(t, c.Engine())
}

func TestStartStopDrivesDirectorMetronome(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SampleHz = 200
	heap := fakeHeapSource{snap: director.HeapSnapshot{SoftMaxCapacity: 1 << 30, HasAllocStalled: true}}
	drv := &fakeDriver{}

	c := New(cfg, heap, drv, fakePool{n: 1}, noopPageTable{}, noopRoots{}, noopBarrier{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c.Start(ctx)
	time.Sleep(30 * time.Millisecond)
	c.Stop()

	drv.mu.Lock()
	defer drv.mu.Unlock()
	assert.NotEmpty(t, drv.requests)
	assert.Equal(t, director.CauseAllocStall, drv.requests[0].Cause)
}
