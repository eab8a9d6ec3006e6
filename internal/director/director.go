package director

import (
	"context"
	"sync"
	"time"

	"go.uber.org/atomic"
	"go.uber.org/zap"

	"github.com/zbench/stripemark/gclog"
)

// HeapSource is the out-of-scope page-table/heap-layout collaborator
// the Director reads from once per tick. It is supplied by the
// embedding collector, never implemented by this package.
type HeapSource interface {
	Snapshot() HeapSnapshot
}

// Busy reports whether a collection cycle is already running. The
// Director's metronome consults it at the top of every tick and skips
// rule evaluation entirely while true.
type Busy interface {
	IsBusy() bool
}

// Director runs the fixed metronome: wake at sample_hz, sample the
// allocator, and -- unless a cycle is already running -- evaluate the
// ordered rule list, forwarding at most one DriverRequest per tick to
// Send.
type Director struct {
	cfg     Config
	heap    HeapSource
	busy    Busy
	sampler *AllocRateSampler
	cycles  *CycleStats
	send    func(DriverRequest)

	running atomic.Bool
	stopped chan struct{}
	wg      sync.WaitGroup
}

// New creates a Director. send is called from the metronome goroutine
// for every tick whose winning rule is not CauseNone; it must not block
// for long (the driver should enqueue and return).
func New(cfg Config, heap HeapSource, busy Busy, cycles *CycleStats, send func(DriverRequest)) *Director {
	return &Director{
		cfg:     cfg,
		heap:    heap,
		busy:    busy,
		sampler: NewAllocRateSampler(cfg.SampleHz),
		cycles:  cycles,
		send:    send,
	}
}

// Sampler exposes the allocation-rate sampler so mutator-side code can
// reach RecordAlloc.
func (d *Director) Sampler() *AllocRateSampler { return d.sampler }

// Start launches the metronome goroutine. Safe to call once; a second
// call is a no-op until Stop has completed.
func (d *Director) Start(ctx context.Context) {
	if !d.running.CompareAndSwap(false, true) {
		return
	}
	d.stopped = make(chan struct{})
	d.wg.Add(1)
	go d.loop(ctx)
}

// Stop signals the metronome to exit and blocks until it has.
func (d *Director) Stop() {
	if !d.running.CompareAndSwap(true, false) {
		return
	}
	close(d.stopped)
	d.wg.Wait()
}

func (d *Director) loop(ctx context.Context) {
	defer d.wg.Done()
	interval := d.cfg.sampleInterval()
	ticker := time.NewTicker(time.Duration(interval * float64(time.Second)))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-d.stopped:
			return
		case <-ticker.C:
			d.tick()
		}
	}
}

// tick is the body of one metronome wake-up: sample, then (unless busy)
// evaluate rules and forward at most one request -- never more than one
// DriverRequest per tick.
func (d *Director) tick() {
	rate := d.sampler.SampleAndReset()
	d.cycles.Tick(d.cfg.sampleInterval())
	gclog.L().Debug("director tick", zap.Float64("alloc_rate_bps", rate))

	if d.busy.IsBusy() {
		return
	}

	req := d.Evaluate(d.heap.Snapshot())
	if req.Fires() {
		gclog.L().Info("director fired",
			zap.Stringer("cause", req.Cause),
			zap.Uint32("nworkers", req.NWorkers))
		d.send(req)
	}
}

// Evaluate runs the ordered rule list (R1..R6) once against a single
// heap snapshot and the current statistics, returning the first rule's
// request that fires, or a CauseNone request if none did. It is a pure
// function of its inputs, which is what lets the end-to-end tests
// exercise it directly without a live metronome.
func (d *Director) Evaluate(heap HeapSnapshot) DriverRequest {
	in := ruleInput{
		cfg:        d.cfg,
		heap:       heap,
		counters:   d.cycles.Snapshot(),
		allocAvg:   d.sampler.Stats().Avg(),
		allocSD:    d.sampler.Stats().SD(),
		serialDAvg: d.cycles.SerialTime.DAvg(),
		serialDSD:  d.cycles.SerialTime.DSD(),
		parDAvg:    d.cycles.ParallelizableTime.DAvg(),
		parDSD:     d.cycles.ParallelizableTime.DSD(),
	}

	if c := ruleAllocStall(in); c != CauseNone {
		return DriverRequest{Cause: c, NWorkers: d.cfg.ConcGCThreads}
	}
	if c := ruleWarmup(in); c != CauseNone {
		return DriverRequest{Cause: c, NWorkers: d.cfg.ConcGCThreads}
	}
	if c := ruleTimer(in); c != CauseNone {
		return DriverRequest{Cause: c, NWorkers: d.cfg.ConcGCThreads}
	}

	if req := d.evaluateAllocRate(in); req.Fires() {
		return req
	} else if req.NWorkers != 0 {
		// R4 did not fire but still computed a recommended worker
		// count; later rules must carry it forward even when R4 itself
		// stays silent.
		if c := ruleHighUsage(in); c != CauseNone {
			return DriverRequest{Cause: c, NWorkers: req.NWorkers}
		}
		if c := ruleProactive(in); c != CauseNone {
			return DriverRequest{Cause: c, NWorkers: req.NWorkers}
		}
		return req
	}

	if c := ruleHighUsage(in); c != CauseNone {
		return DriverRequest{Cause: c, NWorkers: d.cfg.ConcGCThreads}
	}
	if c := ruleProactive(in); c != CauseNone {
		return DriverRequest{Cause: c, NWorkers: d.cfg.ConcGCThreads}
	}
	return DriverRequest{Cause: CauseNone}
}

// evaluateAllocRate runs R4 in whichever mode Config selects, logging
// the A/B diff against the retired stricter-floor variant at Debug level.
func (d *Director) evaluateAllocRate(in ruleInput) DriverRequest {
	var req DriverRequest
	if d.cfg.UseDynamicNumberOfGCThreads {
		req = ruleAllocRateDynamic(in)
	} else if staticReq, ok := ruleAllocRateStatic(in); ok {
		req = staticReq
	} else {
		return DriverRequest{}
	}

	serialGC, parallelizableGC := in.gcTimes()
	if floor := strictFloorWorkers(serialGC, parallelizableGC); floor > req.NWorkers {
		gclog.L().Debug("alloc-rate rule A/B diff",
			zap.Uint32("chosen", req.NWorkers),
			zap.Uint32("orig_floor", floor))
	}
	return req
}
