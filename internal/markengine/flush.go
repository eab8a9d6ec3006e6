package markengine

import (
	"sync"

	"github.com/zbench/stripemark/internal/markstack"
	"github.com/zbench/stripemark/internal/termination"
)

// handshakeTarget pairs one thread's ThreadLocalStacks with the mutex
// that emulates a handshake rendezvous: the owning thread holds it
// while pushing/popping its own stacks; the Flusher holds it while
// draining them on that thread's behalf. Go has no runtime-provided
// safepoint/handshake primitive, so a per-target mutex stands in for
// the per-thread stop-and-run signal a real handshake would send.
type handshakeTarget struct {
	mu     sync.Mutex
	stacks *markstack.ThreadLocalStacks
}

// Flusher performs the handshake-based periodic and final flushes:
// visit every registered thread (workers and mutators alike), drain
// its active stacks into their stripes'
// overflow lists, and OR the resulting bitmap into TerminationState.
// The periodic call during concurrent marking is deliberately not a
// global safepoint -- each target is visited under its own mutex, never
// all at once -- while the caller treats the end-phase call as the
// safepoint-equivalent simply by virtue of no mutator being able to
// mutate further at that point.
type Flusher struct {
	mu      sync.Mutex
	targets []*handshakeTarget
	term    *termination.State
}

func newFlusher(term *termination.State) *Flusher {
	return &Flusher{term: term}
}

func (f *Flusher) register(stacks *markstack.ThreadLocalStacks) *handshakeTarget {
	t := &handshakeTarget{stacks: stacks}
	f.mu.Lock()
	f.targets = append(f.targets, t)
	f.mu.Unlock()
	return t
}

func (f *Flusher) unregister(t *handshakeTarget) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, cur := range f.targets {
		if cur == t {
			f.targets = append(f.targets[:i], f.targets[i+1:]...)
			return
		}
	}
}

// FlushAll drains every registered target's active stacks and
// publishes the combined stripe bitmap, if any, to TerminationState.
func (f *Flusher) FlushAll() {
	f.mu.Lock()
	targets := make([]*handshakeTarget, len(f.targets))
	copy(targets, f.targets)
	f.mu.Unlock()

	var combined termination.StripeMap
	for _, t := range targets {
		t.mu.Lock()
		combined |= t.stacks.Flush()
		t.mu.Unlock()
	}
	if combined != 0 {
		f.term.SetActiveStripes(combined)
	}
}
