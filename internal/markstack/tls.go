package markstack

import (
	"github.com/zbench/stripemark/internal/stripe"
	"github.com/zbench/stripemark/internal/termination"
)

// ThreadLocalStacks is the per-thread mapping stripe_id -> active
// MarkStack: each mutator or worker thread owns exactly one of these,
// indexed by stripe id, plus a Magazine cache of empty stacks.
type ThreadLocalStacks struct {
	stripes *stripe.StripeSet
	active  []*MarkStack // indexed by stripe id; nil until first push
	mag     *Magazine
	freed   bool
}

// New creates a ThreadLocalStacks sized to stripes' current stripe
// count, backed by mag for fresh/recycled stacks.
func New(stripes *stripe.StripeSet, mag *Magazine) *ThreadLocalStacks {
	return &ThreadLocalStacks{
		stripes: stripes,
		active:  make([]*MarkStack, stripes.N()),
		mag:     mag,
	}
}

func (t *ThreadLocalStacks) ensure(stripeID int) (*MarkStack, error) {
	if s := t.active[stripeID]; s != nil {
		return s, nil
	}
	s, err := t.mag.Get()
	if err != nil {
		return nil, err
	}
	t.active[stripeID] = s
	return s, nil
}

// Push finds the active stack for st; if it's full, hands it to st's
// overflow list and gets a fresh one, then pushes entry. If publish is
// set and a fill event occurred, it also marks st as having pending
// work in term.
func (t *ThreadLocalStacks) Push(st *stripe.Stripe, entry Entry, publish bool, term *termination.State) error {
	stripeID := t.stripes.StripeID(st)
	s, err := t.ensure(stripeID)
	if err != nil {
		return err
	}
	filled := false
	if s.Full() {
		st.Push(s.asNode())
		filled = true
		s, err = t.mag.Get()
		if err != nil {
			t.active[stripeID] = nil
			return err
		}
		t.active[stripeID] = s
	}
	s.Push(entry)
	if publish && filled {
		term.SetActiveStripes(termination.StripeMap(0).Set(stripeID))
	}
	return nil
}

// Pop pops from the active stack; if empty, it attempts to reclaim a
// stack from st's overflow list. Returns false if neither has an entry.
func (t *ThreadLocalStacks) Pop(st *stripe.Stripe) (Entry, bool) {
	stripeID := t.stripes.StripeID(st)
	s := t.active[stripeID]
	if s != nil {
		if e, ok := s.Pop(); ok {
			return e, true
		}
	}
	if node := st.Steal(); node != nil {
		reclaimed := stackFromNode(node)
		if s != nil {
			t.mag.Put(s)
		}
		t.active[stripeID] = reclaimed
		if e, ok := reclaimed.Pop(); ok {
			return e, true
		}
	}
	return 0, false
}

// Flush hands each stripe's non-empty active stack to that stripe's
// overflow list, returning a bitmap of the stripes that received work.
func (t *ThreadLocalStacks) Flush() termination.StripeMap {
	var m termination.StripeMap
	for id, s := range t.active {
		if s == nil || s.Empty() {
			continue
		}
		t.stripes.StripeAt(id).Push(s.asNode())
		t.active[id] = nil
		m = m.Set(id)
	}
	return m
}

// Install installs stack as this thread's active stack for st,
// overwriting (and returning to the magazine) whatever was previously
// active there -- used after a successful MarkEngine steal, where the
// stolen stack is consumed as if it belonged to the caller's home stripe.
func (t *ThreadLocalStacks) Install(st *stripe.Stripe, stack *MarkStack) {
	stripeID := t.stripes.StripeID(st)
	if old := t.active[stripeID]; old != nil && old != stack {
		t.mag.Put(old)
	}
	t.active[stripeID] = stack
}

// IsEmpty reports whether every active stack is nil or empty.
func (t *ThreadLocalStacks) IsEmpty() bool {
	for _, s := range t.active {
		if s != nil && !s.Empty() {
			return false
		}
	}
	return true
}

// IsFreed reports whether Free has already run.
func (t *ThreadLocalStacks) IsFreed() bool { return t.freed }

// FreeMagazineOnly drains the magazine cache back to the shared
// allocator without freeing this thread's active stacks -- the
// narrower cleanup a worker does when exiting the initial
// concurrent-roots pass, as distinct from the full Free done at true
// worker exit.
func (t *ThreadLocalStacks) FreeMagazineOnly() {
	t.mag.Drain()
}

// Free returns all remaining (empty) stacks to the allocator and
// releases the magazine.
func (t *ThreadLocalStacks) Free() {
	for id, s := range t.active {
		if s != nil {
			t.mag.Put(s)
			t.active[id] = nil
		}
	}
	t.mag.Drain()
	t.freed = true
}
