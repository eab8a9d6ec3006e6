package director

import "math"

// ruleInput bundles the read-only snapshots every rule needs. Building it
// once per tick keeps each rule a small, independently testable pure
// function instead of a method with hidden reads.
type ruleInput struct {
	cfg      Config
	heap     HeapSnapshot
	counters CycleCounters

	allocAvg float64
	allocSD  float64

	serialDAvg float64
	serialDSD  float64
	parDAvg    float64
	parDSD     float64
}

// free returns the two free-space figures defines:
// free including relocation headroom, and free with headroom carved out.
func (in ruleInput) free() (freeInclHeadroom, free float64) {
	freeInclHeadroom = math.Max(0, float64(in.heap.SoftMaxCapacity)-float64(in.heap.Used))
	free = math.Max(0, freeInclHeadroom-float64(in.heap.RelocationHeadroom))
	return
}

// gcTimes returns the tail-bounded serial/parallelizable time estimates
// shared by R4 and R6.
func (in ruleInput) gcTimes() (serialGC, parallelizableGC float64) {
	serialGC = in.serialDAvg + in.serialDSD*oneIn1000
	parallelizableGC = in.parDAvg + in.parDSD*oneIn1000
	return
}

// ruleAllocStall is R1.
func ruleAllocStall(in ruleInput) Cause {
	if in.heap.HasAllocStalled {
		return CauseAllocStall
	}
	return CauseNone
}

// ruleWarmup is R2.
func ruleWarmup(in ruleInput) Cause {
	if in.counters.IsWarm {
		return CauseNone
	}
	t := float64(in.counters.NWarmupCycles+1) * 0.1
	if float64(in.heap.Used) >= float64(in.heap.SoftMaxCapacity)*t {
		return CauseWarmup
	}
	return CauseNone
}

// ruleTimer is R3.
func ruleTimer(in ruleInput) Cause {
	if in.cfg.CollectionInterval > 0 && in.counters.TimeSinceLast >= in.cfg.CollectionInterval {
		return CauseTimer
	}
	return CauseNone
}

// workersLong computes the worker count that would make the
// parallelizable portion finish within t seconds of wall-time budget
// left after the serial portion.
func workersLong(parallelizableGC, serialGC, t float64) float64 {
	denom := math.Max(t-serialGC, 0.001)
	return parallelizableGC / denom
}

// ruleAllocRateStatic evaluates R4 in static (fixed worker count) mode.
// Returns ok=false if statistics are not yet trustable (static mode is
// unavailable until then).
func ruleAllocRateStatic(in ruleInput) (DriverRequest, bool) {
	if !in.counters.IsTimeTrustable {
		return DriverRequest{}, false
	}
	_, free := in.free()
	serialGC, parallelizableGC := in.gcTimes()

	maxAllocRate := in.allocAvg*in.cfg.AllocationSpikeTolerance + in.allocSD*oneIn1000
	timeUntilOOM := free / (maxAllocRate + 1.0)
	c := float64(in.cfg.ConcGCThreads)
	gcDuration := serialGC + parallelizableGC/c
	sampleInterval := in.cfg.sampleInterval()
	timeUntilGC := timeUntilOOM - gcDuration - sampleInterval

	req := DriverRequest{NWorkers: in.cfg.ConcGCThreads}
	if timeUntilGC <= 0 {
		req.Cause = CauseAllocRate
	}
	return req, true
}

// ruleAllocRateDynamic evaluates R4 in dynamic (chosen worker count)
// mode, including the downshift-friction correction that discourages
// dropping the worker count right after raising it.
func ruleAllocRateDynamic(in ruleInput) DriverRequest {
	_, free := in.free()
	serialGC, parallelizableGC := in.gcTimes()
	c := float64(in.cfg.ConcGCThreads)
	sampleInterval := in.cfg.sampleInterval()

	allocRate := in.allocAvg*in.cfg.AllocationSpikeTolerance + in.allocSD*oneIn1000 + 1.0
	sdPercent := in.allocSD / (in.allocAvg + 1.0)
	allocSteady := sdPercent < 0.15

	timeUntilOOM := free / allocRate
	if !allocSteady {
		timeUntilOOM /= 1 + sdPercent
	}

	avoidLong := workersLong(parallelizableGC, serialGC, in.cfg.MaxCycleWalltime)
	avoidOOM := workersLong(parallelizableGC, serialGC, timeUntilOOM)
	want := math.Max(avoidLong, avoidOOM)
	n := clampF(math.Ceil(want), 1, c)

	lastN := float64(in.counters.LastActiveWorkers)
	if lastN > 0 && n < lastN {
		deltaDur := parallelizableGC * (1/n - 1/lastN)
		extraAlloc := in.counters.TimeSinceLast - deltaDur - sampleInterval
		nextOOM := timeUntilOOM + extraAlloc
		nextWant := math.Max(avoidLong, workersLong(parallelizableGC, serialGC, nextOOM))
		n = clampF(math.Ceil(nextWant+0.5), n, lastN)
		if !allocSteady {
			n = math.Max(n, lastN)
		}
	}

	actual := uint32(clampF(math.Ceil(n), 1, c))
	actualDuration := serialGC + parallelizableGC/float64(actual)
	safetySlack := (c - float64(actual)) * sampleInterval
	timeUntilGC := timeUntilOOM - actualDuration - sampleInterval - safetySlack

	req := DriverRequest{NWorkers: actual}
	if float64(actual) > lastN || timeUntilGC <= 0 {
		req.Cause = CauseAllocRate
	}
	return req
}

// strictFloorWorkers is an alternate, stricter min_n floor kept only as
// an A/B diff-logger reference point; it is never applied to the chosen
// worker count (see DESIGN.md).
func strictFloorWorkers(serialGC, parallelizableGC float64) uint32 {
	return uint32(math.Ceil((serialGC + parallelizableGC) / 10.0))
}

func clampF(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// ruleHighUsage is R5.
func ruleHighUsage(in ruleInput) Cause {
	if in.heap.SoftMaxCapacity == 0 {
		return CauseNone
	}
	_, free := in.free()
	if free/float64(in.heap.SoftMaxCapacity) <= 0.05 {
		return CauseHighUsage
	}
	return CauseNone
}

// ruleProactive is R6.
func ruleProactive(in ruleInput) Cause {
	if !in.cfg.Proactive || !in.counters.IsWarm {
		return CauseNone
	}
	gated := float64(in.heap.Used) >= float64(in.heap.UsedAtLastRelocateEnd)+0.1*float64(in.heap.SoftMaxCapacity) ||
		in.counters.TimeSinceLast >= 300
	if !gated {
		return CauseNone
	}

	serialGC, parallelizableGC := in.gcTimes()
	c := float64(in.cfg.ConcGCThreads)
	gcDuration := serialGC + parallelizableGC/c

	const throughputDropDuringGC = 0.5
	const acceptableDrop = 0.01
	acceptableInterval := gcDuration * (throughputDropDuringGC/acceptableDrop - 1)

	if in.counters.TimeSinceLast >= acceptableInterval {
		return CauseProactive
	}
	return CauseNone
}
