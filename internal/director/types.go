// Package director implements the heuristic controller that decides when
// to start a collection cycle and how many worker threads it should use.
// It owns the allocation-rate sampler, the rolling cycle-time statistics,
// and the ordered rule list; it never performs a collection itself, it
// only emits requests for an external driver to act on.
package director

import "fmt"

// Cause identifies which rule, if any, triggered a DriverRequest.
type Cause int

// Causes in rule-evaluation order. None means "do not collect".
const (
	CauseNone Cause = iota
	CauseAllocStall
	CauseWarmup
	CauseTimer
	CauseAllocRate
	CauseHighUsage
	CauseProactive
)

func (c Cause) String() string {
	switch c {
	case CauseNone:
		return "None"
	case CauseAllocStall:
		return "AllocStall"
	case CauseWarmup:
		return "Warmup"
	case CauseTimer:
		return "Timer"
	case CauseAllocRate:
		return "AllocRate"
	case CauseHighUsage:
		return "HighUsage"
	case CauseProactive:
		return "Proactive"
	default:
		return fmt.Sprintf("Cause(%d)", int(c))
	}
}

// DriverRequest is what the Director forwards to the external driver.
// Cause == CauseNone is an inhibit: the driver must not start a cycle.
// Any other cause is a request to start one using NWorkers (the driver
// may clamp it further).
type DriverRequest struct {
	Cause    Cause
	NWorkers uint32
}

// Fires reports whether this request asks the driver to start a cycle.
func (r DriverRequest) Fires() bool {
	return r.Cause != CauseNone
}

// HeapSnapshot is the read-only view of heap state the Director consumes.
// It is produced by the heap/page-table subsystem, which is out of scope
// for this module; the Director only ever reads it.
type HeapSnapshot struct {
	SoftMaxCapacity       uint64
	Used                  uint64
	HasAllocStalled       bool
	RelocationHeadroom    uint64
	UsedAtLastRelocateEnd uint64
}

// CycleCounters tracks the small amount of state that persists across
// cycles: warmup progress, the worker count used last cycle, and how
// long ago the last cycle started.
type CycleCounters struct {
	NWarmupCycles     int
	LastActiveWorkers uint32
	TimeSinceLast     float64 // seconds
	IsWarm            bool
	IsTimeTrustable   bool
}
