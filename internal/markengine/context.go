package markengine

import (
	"time"

	"github.com/zbench/stripemark/internal/stripe"
)

// timeoutCheckInterval is how many drained entries pass between
// deadline checks in the end-phase context, so a hot drain loop isn't
// calling time.Now() after every single entry.
const timeoutCheckInterval = 100

// Kind selects which of the two context policies parameterises a
// worker's loop.
type Kind int

const (
	// Concurrent never times out; nvictim_stripes = 3.
	Concurrent Kind = iota
	// End has a hard wall-clock deadline, checked every
	// timeoutCheckInterval entries; nvictim_stripes = StripesMax.
	End
)

// Context is the per-cycle-phase policy object. A worker's loop takes
// one Context for its whole phase; Tick's deadline check is the only
// behavior that differs between Concurrent and End.
type Context struct {
	Kind           Kind
	NVictimStripes int

	deadline time.Time
	drained  uint64
}

// NewConcurrentContext returns the policy used for the initial-roots
// pass and the repeated concurrent mark passes: never times out.
func NewConcurrentContext() *Context {
	return &Context{Kind: Concurrent, NVictimStripes: 3}
}

// NewEndContext returns the policy used for the pause-time completion
// pass: a hard deadline of timeout from now.
func NewEndContext(timeout time.Duration) *Context {
	return &Context{
		Kind:           End,
		NVictimStripes: stripe.StripesMax,
		deadline:       now().Add(timeout),
	}
}

// now is a seam for tests that need a deterministic clock.
var now = time.Now

// Tick records one drained entry and reports whether the phase's
// deadline has now passed. Concurrent contexts always report false.
// End contexts only actually read the clock every timeoutCheckInterval
// calls, so the deadline is re-checked on a cadence, not on every pop.
func (c *Context) Tick() bool {
	if c.Kind != End {
		return false
	}
	c.drained++
	if c.drained%timeoutCheckInterval != 0 {
		return false
	}
	return !now().Before(c.deadline)
}
